package personality

import (
	"tyrant/src/message"
	"tyrant/src/options"
)

// Transformer post-processes raw model output for a personality.
// Implementations must be pure apart from their injected random source.
type Transformer interface {
	Transform(text string, effectiveSassLevel float64) string
}

// TransformerFunc adapts a plain function to Transformer
type TransformerFunc func(text string, effectiveSassLevel float64) string

func (f TransformerFunc) Transform(text string, effectiveSassLevel float64) string {
	return f(text, effectiveSassLevel)
}

// Display holds presentation hints for terminals and UIs
type Display struct {
	Color string `toml:"color" json:"color,omitempty"`
	Icon  string `toml:"icon" json:"icon,omitempty"`
}

// Pack is a named coaching voice: a prompt template, tone parameters and an
// optional output transform. Registered packs are shared; treat them as
// read-only.
type Pack struct {
	ID                   string
	Name                 string
	Description          string
	SystemPromptTemplate string

	// Transformer is nil for packs that return model output unchanged
	Transformer Transformer

	// SassMultiplier scales the sass level handed to Transformer. Zero means 1.0.
	SassMultiplier float64

	// DefaultOptions are merged into instance options when the pack is
	// selected with defaults applied
	DefaultOptions *options.Overrides

	RecommendedProviders []options.Provider
	Version              string
	Author               string
	Display              Display
}

// Multiplier returns the effective sass multiplier
func (p *Pack) Multiplier() float64 {
	if p.SassMultiplier == 0 {
		return 1.0
	}
	return p.SassMultiplier
}

// EffectiveSassLevel is sassLevel * multiplier, deliberately not clamped
func (p *Pack) EffectiveSassLevel(sassLevel int) float64 {
	return float64(sassLevel) * p.Multiplier()
}

// SystemPrompt renders the pack's template against opts
func (p *Pack) SystemPrompt(opts options.Options) message.Message {
	return Render(p.SystemPromptTemplate, opts)
}

// Transform applies the pack's transformer, or returns text unchanged when
// the pack has none
func (p *Pack) Transform(text string, sassLevel int) string {
	if p.Transformer == nil {
		return text
	}
	return p.Transformer.Transform(text, p.EffectiveSassLevel(sassLevel))
}
