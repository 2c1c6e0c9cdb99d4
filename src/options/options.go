package options

// Provider is the tag selecting a backing model service
type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
	ProviderGrok      Provider = "grok"
	ProviderGemini    Provider = "gemini"
	ProviderVertex    Provider = "vertex"
	ProviderOllama    Provider = "ollama"
)

// DefaultProvider is used when no provider tag is given
const DefaultProvider = ProviderOpenAI

const (
	MinSassLevel     = 1
	MaxSassLevel     = 10
	DefaultSassLevel = 7
)

// Providers lists every supported provider tag
func Providers() []Provider {
	return []Provider{
		ProviderOpenAI,
		ProviderAnthropic,
		ProviderGrok,
		ProviderGemini,
		ProviderVertex,
		ProviderOllama,
	}
}

// Options is the runtime configuration of a tyrant instance.
// Temperature and MaxTokens are nil when the provider should derive them.
type Options struct {
	SassLevel   int      `json:"sassLevel"`
	FocusAreas  []string `json:"focusAreas"`
	Temperature *float64 `json:"temperature,omitempty"`
	MaxTokens   *int     `json:"maxTokens,omitempty"`
	Provider    Provider `json:"provider"`
	Model       string   `json:"model,omitempty"`
}

// Overrides is a partial Options. Nil fields are left alone by Merge.
type Overrides struct {
	SassLevel   *int      `json:"sassLevel,omitempty" toml:"sass_level"`
	FocusAreas  []string  `json:"focusAreas,omitempty" toml:"focus_areas"`
	Temperature *float64  `json:"temperature,omitempty" toml:"temperature"`
	MaxTokens   *int      `json:"maxTokens,omitempty" toml:"max_tokens"`
	Provider    *Provider `json:"provider,omitempty" toml:"provider"`
	Model       *string   `json:"model,omitempty" toml:"model"`
}

// Defaults returns the options every instance starts from
func Defaults() Options {
	return Options{
		SassLevel:  DefaultSassLevel,
		FocusAreas: []string{"procrastination", "excuses", "goal-setting"},
		MaxTokens:  Int(600),
		Provider:   DefaultProvider,
	}
}

// Merge returns a copy of o with every set field of ov applied on top.
// o itself is not modified.
func (o Options) Merge(ov Overrides) Options {
	out := o.Clone()
	if ov.SassLevel != nil {
		out.SassLevel = *ov.SassLevel
	}
	if ov.FocusAreas != nil {
		out.FocusAreas = append([]string{}, ov.FocusAreas...)
	}
	if ov.Temperature != nil {
		out.Temperature = Float(*ov.Temperature)
	}
	if ov.MaxTokens != nil {
		out.MaxTokens = Int(*ov.MaxTokens)
	}
	if ov.Provider != nil {
		out.Provider = *ov.Provider
	}
	if ov.Model != nil {
		out.Model = *ov.Model
	}
	return out
}

// Clone returns a deep copy so callers can't mutate shared slices or pointers
func (o Options) Clone() Options {
	out := o
	if o.FocusAreas != nil {
		out.FocusAreas = append([]string{}, o.FocusAreas...)
	}
	if o.Temperature != nil {
		out.Temperature = Float(*o.Temperature)
	}
	if o.MaxTokens != nil {
		out.MaxTokens = Int(*o.MaxTokens)
	}
	return out
}

// Merge layers other on top of ov: every field set in other wins
func (ov Overrides) Merge(other Overrides) Overrides {
	out := ov
	if other.SassLevel != nil {
		out.SassLevel = other.SassLevel
	}
	if other.FocusAreas != nil {
		out.FocusAreas = other.FocusAreas
	}
	if other.Temperature != nil {
		out.Temperature = other.Temperature
	}
	if other.MaxTokens != nil {
		out.MaxTokens = other.MaxTokens
	}
	if other.Provider != nil {
		out.Provider = other.Provider
	}
	if other.Model != nil {
		out.Model = other.Model
	}
	return out
}

// IsZero reports whether no field of ov is set
func (ov Overrides) IsZero() bool {
	return ov.SassLevel == nil && ov.FocusAreas == nil && ov.Temperature == nil &&
		ov.MaxTokens == nil && ov.Provider == nil && ov.Model == nil
}

// ClampSassLevel forces level into [MinSassLevel, MaxSassLevel].
// Ingress layers call this; the core passes levels through unchanged.
func ClampSassLevel(level int) int {
	if level < MinSassLevel {
		return MinSassLevel
	}
	if level > MaxSassLevel {
		return MaxSassLevel
	}
	return level
}

// ParseProvider maps a tag to a Provider, reporting whether it is known.
// The empty tag maps to DefaultProvider.
func ParseProvider(tag string) (Provider, bool) {
	if tag == "" {
		return DefaultProvider, true
	}
	for _, p := range Providers() {
		if string(p) == tag {
			return p, true
		}
	}
	return Provider(tag), false
}

func Int(v int) *int { return &v }

func Float(v float64) *float64 { return &v }

func String(v string) *string { return &v }

func ProviderPtr(p Provider) *Provider { return &p }
