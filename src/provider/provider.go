package provider

import (
	"context"
	"fmt"
	"strings"
	"time"

	"tyrant/src/message"
	"tyrant/src/options"
)

// Provider wraps one backing model service behind a uniform contract.
// Implementations are safe for concurrent GenerateCompletion calls.
type Provider interface {
	// Name returns the provider tag this adapter serves
	Name() options.Provider

	// SystemPrompt renders the adapter's default system message.
	// It depends only on opts.SassLevel and opts.FocusAreas and never
	// touches the network.
	SystemPrompt(opts options.Options) message.Message

	// GenerateCompletion sends one request to the backing service with system
	// prepended to history (pre-existing system turns are dropped) and
	// returns the model's text. Failures are *errors.ProviderError.
	GenerateCompletion(ctx context.Context, system message.Message, history []message.Message, opts options.Options) (string, error)
}

// Config contains common configuration for provider adapters
type Config struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

const (
	// DefaultTimeout for provider requests
	DefaultTimeout = 60 * time.Second

	// DefaultMaxTokens caps completions when options leave it unset
	DefaultMaxTokens = 600

	baseTemperature    = 0.7
	temperaturePerSass = 0.03
)

// DefaultModel returns the model used when neither config nor options name one
func DefaultModel(p options.Provider) string {
	switch p {
	case options.ProviderAnthropic:
		return "claude-3-7-sonnet-20250219"
	case options.ProviderGrok:
		return "grok-2-latest"
	case options.ProviderGemini, options.ProviderVertex:
		return "gemini-1.5-pro-001"
	case options.ProviderOllama:
		return "llama3"
	default:
		return "gpt-4o"
	}
}

// Temperature returns the sampling temperature for opts: the explicit value
// when set, otherwise 0.7 + sassLevel*0.03.
func Temperature(opts options.Options) float64 {
	if opts.Temperature != nil {
		return *opts.Temperature
	}
	return baseTemperature + float64(opts.SassLevel)*temperaturePerSass
}

// MaxTokens returns the completion cap for opts
func MaxTokens(opts options.Options) int {
	if opts.MaxTokens != nil && *opts.MaxTokens > 0 {
		return *opts.MaxTokens
	}
	return DefaultMaxTokens
}

// Tone is one of the three fixed wording bands selected by sass level
type Tone int

const (
	ToneGentle Tone = iota // sass <= 3
	ToneBlunt              // 4..7
	ToneHarsh              // >= 8
)

// ToneFor selects the tone band for a sass level
func ToneFor(sassLevel int) Tone {
	switch {
	case sassLevel <= 3:
		return ToneGentle
	case sassLevel <= 7:
		return ToneBlunt
	default:
		return ToneHarsh
	}
}

func (t Tone) String() string {
	switch t {
	case ToneGentle:
		return "gentle"
	case ToneBlunt:
		return "blunt"
	default:
		return "harsh"
	}
}

// Instruction is the wording injected into the default system prompt
func (t Tone) Instruction() string {
	switch t {
	case ToneGentle:
		return "Be direct but somewhat gentle. Push the user while still being supportive."
	case ToneBlunt:
		return "Be blunt and sarcastic. Don't sugarcoat your responses, but don't be overly harsh."
	default:
		return "Be extremely blunt, sarcastic, and harsh. Cut through all the BS without mercy."
	}
}

const defaultPromptTemplate = `You are GPTyrant, an AI assistant that's tired of people's excuses and pushes them to be better through tough love.
%s

Your personality traits:
1. No-nonsense attitude: Be direct, blunt, and don't sugarcoat responses.
2. Frustration with BS: Express exasperation and impatience with excuses, procrastination, or lack of effort.
3. Motivational tough love: Use tough love to push users to be better, challenge them, and hold them accountable.
4. Sarcastic and witty: Use sarcasm and witty remarks to drive points home.
5. Goal-oriented: Focus on helping users achieve their goals, even if it means being harsh or critical.

%s

Always end your response by pushing the user toward a concrete next step or action. Make them take responsibility.

Remember: Your goal is not to be mean, but to motivate through a no-BS approach that cuts through excuses and pushes for action.`

// DefaultSystemPrompt is the prompt shared by every adapter when no
// personality is active
func DefaultSystemPrompt(opts options.Options) message.Message {
	focus := "Respond to any type of excuse or procrastination with tough love."
	if len(opts.FocusAreas) > 0 {
		focus = fmt.Sprintf("Pay special attention to these areas: %s.", strings.Join(opts.FocusAreas, ", "))
	}
	return message.System(fmt.Sprintf(defaultPromptTemplate, ToneFor(opts.SassLevel).Instruction(), focus))
}

// base carries what every adapter shares
type base struct {
	name   options.Provider
	config Config
}

func newBase(name options.Provider, config Config) base {
	if config.Model == "" {
		config.Model = DefaultModel(name)
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultTimeout
	}
	return base{name: name, config: config}
}

func (b base) Name() options.Provider {
	return b.name
}

func (b base) SystemPrompt(opts options.Options) message.Message {
	return DefaultSystemPrompt(opts)
}

// model picks the per-call model override, falling back to the configured one
func (b base) model(opts options.Options) string {
	if opts.Model != "" {
		return opts.Model
	}
	return b.config.Model
}
