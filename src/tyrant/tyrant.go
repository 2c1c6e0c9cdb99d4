// Package tyrant is the dispatch core: it owns the active provider adapter and
// the optional active personality, merges per-call overrides, and pipes model
// output through the personality's transform.
package tyrant

import (
	"context"
	"fmt"
	"log"

	tyerrors "tyrant/src/errors"
	"tyrant/src/message"
	"tyrant/src/options"
	"tyrant/src/personality"
	"tyrant/src/provider"
)

// Tyrant dispatches conversations to one provider adapter at a time.
//
// An instance is not safe for concurrent mutation: UpdateOptions, SetProvider,
// SetPersonality and ClearPersonality must not overlap with any other call.
// Concurrent read-only GenerateResponse calls with no interleaved option
// mutation are safe.
type Tyrant struct {
	registry *personality.Registry
	factory  provider.Factory
	config   provider.Config

	provider      provider.Provider
	options       options.Options
	personalityID string
}

type config struct {
	registry       *personality.Registry
	factory        provider.Factory
	providerConfig provider.Config
	personalityID  string
	applyDefaults  bool
}

// Option configures New
type Option func(*config)

// WithRegistry sets the registry personalities are resolved from. Without it
// the process-wide personality.Default registry is used.
func WithRegistry(r *personality.Registry) Option {
	return func(c *config) { c.registry = r }
}

// WithProviderFactory replaces provider.New as the adapter constructor
func WithProviderFactory(f provider.Factory) Option {
	return func(c *config) { c.factory = f }
}

// WithProviderConfig sets base URL, timeout and model for the first adapter.
// The API key passed to New takes precedence over cfg.APIKey.
func WithProviderConfig(cfg provider.Config) Option {
	return func(c *config) { c.providerConfig = cfg }
}

// UsePersonality activates id during construction, applying the pack's
// default options when applyDefaults is set
func UsePersonality(id string, applyDefaults bool) Option {
	return func(c *config) {
		c.personalityID = id
		c.applyDefaults = applyDefaults
	}
}

// New builds a dispatcher whose options are options.Defaults with overrides
// applied. The adapter is selected by the resulting provider tag.
func New(apiKey string, overrides options.Overrides, opts ...Option) (*Tyrant, error) {
	cfg := config{factory: provider.New}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.registry == nil {
		cfg.registry = personality.Default()
	}

	t := &Tyrant{
		registry: cfg.registry,
		factory:  cfg.factory,
		options:  options.Defaults().Merge(overrides),
	}

	// Pack defaults may pick the provider or model, so resolve the
	// personality before building the adapter.
	if cfg.personalityID != "" {
		if _, err := t.SetPersonality(cfg.personalityID, cfg.applyDefaults); err != nil {
			return nil, err
		}
	}

	pc := cfg.providerConfig
	if apiKey != "" {
		pc.APIKey = apiKey
	}
	if t.options.Model != "" {
		pc.Model = t.options.Model
	}

	p, err := t.factory(t.options.Provider, pc)
	if err != nil {
		return nil, err
	}
	t.provider = p
	t.config = pc
	return t, nil
}

// SystemPrompt renders the system message the next GenerateResponse would
// send: the active personality's template, or the adapter's default prompt.
func (t *Tyrant) SystemPrompt() (message.Message, error) {
	return t.systemPrompt(t.options)
}

func (t *Tyrant) systemPrompt(opts options.Options) (message.Message, error) {
	pack, err := t.activePack()
	if err != nil {
		return message.Message{}, err
	}
	if pack != nil {
		return pack.SystemPrompt(opts), nil
	}
	return t.provider.SystemPrompt(opts), nil
}

// GenerateResponse sends history to the active adapter and returns the reply.
// overrides apply to this call only and are never written back to the
// instance. When a personality is active its transform is applied using the
// merged sass level. Adapter failures are returned unchanged.
func (t *Tyrant) GenerateResponse(ctx context.Context, history []message.Message, overrides options.Overrides) (string, error) {
	merged := t.options.Merge(overrides)

	pack, err := t.activePack()
	if err != nil {
		return "", err
	}

	var system message.Message
	if pack != nil {
		system = pack.SystemPrompt(merged)
	} else {
		system = t.provider.SystemPrompt(merged)
	}

	raw, err := t.provider.GenerateCompletion(ctx, system, history, merged)
	if err != nil {
		return "", err
	}

	if pack != nil {
		return pack.Transform(raw, merged.SassLevel), nil
	}
	return raw, nil
}

// UpdateOptions merges partial into the instance options. Values are taken as
// given; callers validate external input first.
func (t *Tyrant) UpdateOptions(partial options.Overrides) {
	t.options = t.options.Merge(partial)
}

// SetProvider discards the current adapter and builds a new one for tag. An
// empty apiKey falls back to the provider's environment variable and an empty
// model to the provider default. On failure the current adapter is kept.
func (t *Tyrant) SetProvider(tag options.Provider, apiKey, model string) error {
	if tag == "" {
		tag = options.DefaultProvider
	}

	pc := provider.Config{
		APIKey:  apiKey,
		Model:   model,
		Timeout: t.config.Timeout,
	}
	if tag == t.provider.Name() {
		pc.BaseURL = t.config.BaseURL
	}

	p, err := t.factory(tag, pc)
	if err != nil {
		return tyerrors.WrapWithContext(err, "failed to switch provider to %s", tag)
	}

	t.provider = p
	t.config = pc
	t.options.Provider = tag
	t.options.Model = model

	log.Printf("[Tyrant] Switched provider to %s", tag)
	return nil
}

// SetPersonality activates id. With applyDefaults the pack's default options
// overwrite the instance options for every key they declare. An unknown id
// returns *errors.PersonalityNotFoundError and leaves the instance untouched.
func (t *Tyrant) SetPersonality(id string, applyDefaults bool) (*personality.Pack, error) {
	pack, err := t.registry.Lookup(id)
	if err != nil {
		return nil, err
	}

	t.personalityID = id
	if applyDefaults && pack.DefaultOptions != nil {
		t.options = t.options.Merge(*pack.DefaultOptions)
	}
	return pack, nil
}

// ClearPersonality returns to adapter-provided prompts with no transform
func (t *Tyrant) ClearPersonality() {
	t.personalityID = ""
}

// CurrentPersonality returns the active pack, or nil when none is active or
// it has since been unregistered
func (t *Tyrant) CurrentPersonality() *personality.Pack {
	if t.personalityID == "" {
		return nil
	}
	pack, _ := t.registry.Get(t.personalityID)
	return pack
}

// activePack resolves the active personality. A pack unregistered after
// selection is an error rather than a silent fall back to the default prompt.
func (t *Tyrant) activePack() (*personality.Pack, error) {
	if t.personalityID == "" {
		return nil, nil
	}
	return t.registry.Lookup(t.personalityID)
}

// RegisterPersonality adds pack to the instance's registry
func (t *Tyrant) RegisterPersonality(pack *personality.Pack) error {
	return t.registry.Register(pack)
}

// AvailablePersonalities lists the registry's packs in registration order
func (t *Tyrant) AvailablePersonalities() []*personality.Pack {
	return t.registry.List()
}

// Options returns a copy of the instance options
func (t *Tyrant) Options() options.Options {
	return t.options.Clone()
}

func (t *Tyrant) ProviderName() options.Provider {
	return t.provider.Name()
}

func (t *Tyrant) String() string {
	id := t.personalityID
	if id == "" {
		id = "none"
	}
	return fmt.Sprintf("tyrant(provider=%s, personality=%s, sass=%d)", t.provider.Name(), id, t.options.SassLevel)
}
