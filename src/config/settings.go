package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	tyerrors "tyrant/src/errors"
	"tyrant/src/options"
	"tyrant/src/provider"
)

// History backends
const (
	HistoryLibSQL = "libsql"
	HistoryRedis  = "redis"
	HistoryMemory = "memory"
	HistoryNone   = "none"
)

type Settings struct {
	Tyrant    TyrantConfig              `toml:"tyrant" mapstructure:"tyrant"`
	Providers map[string]ProviderConfig `toml:"providers" mapstructure:"providers"`
	History   HistoryConfig             `toml:"history" mapstructure:"history"`
	Server    ServerConfig              `toml:"server" mapstructure:"server"`
}

// TyrantConfig holds the instance options a session starts from.
// Zero Temperature and MaxTokens mean "derive".
type TyrantConfig struct {
	Provider    string   `toml:"provider" mapstructure:"provider"`
	Model       string   `toml:"model" mapstructure:"model"`
	SassLevel   int      `toml:"sass_level" mapstructure:"sass_level"`
	FocusAreas  []string `toml:"focus_areas" mapstructure:"focus_areas"`
	Temperature float64  `toml:"temperature,omitempty" mapstructure:"temperature"`
	MaxTokens   int      `toml:"max_tokens" mapstructure:"max_tokens"`
	Personality string   `toml:"personality" mapstructure:"personality"`
}

type ProviderConfig struct {
	APIKey  string `toml:"api_key,omitempty" mapstructure:"api_key"`
	BaseURL string `toml:"base_url,omitempty" mapstructure:"base_url"`
	Model   string `toml:"model,omitempty" mapstructure:"model"`
}

type HistoryConfig struct {
	Backend  string `toml:"backend" mapstructure:"backend"`
	Path     string `toml:"path" mapstructure:"path"`
	RedisURL string `toml:"redis_url" mapstructure:"redis_url"`
	Size     int    `toml:"size" mapstructure:"size"`
}

type ServerConfig struct {
	Addr string `toml:"addr" mapstructure:"addr"`
}

// Defaults returns the settings used when no file exists
func Defaults() *Settings {
	d := options.Defaults()
	return &Settings{
		Tyrant: TyrantConfig{
			Provider:   string(d.Provider),
			SassLevel:  d.SassLevel,
			FocusAreas: d.FocusAreas,
			MaxTokens:  *d.MaxTokens,
		},
		Providers: map[string]ProviderConfig{},
		History: HistoryConfig{
			Backend:  HistoryLibSQL,
			Path:     GetHistoryPath(),
			RedisURL: "redis://localhost:6379/0",
			Size:     20,
		},
		Server: ServerConfig{
			Addr: ":3001",
		},
	}
}

// Load reads settings from path on top of Defaults. A missing file is not an
// error.
func Load(path string) (*Settings, error) {
	settings := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return settings, nil
		}
		return nil, err
	}

	if _, err := toml.Decode(string(data), settings); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	if err := settings.Normalize(); err != nil {
		return nil, err
	}
	return settings, nil
}

// Save writes settings to path, creating parent directories
func (s *Settings) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(s); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0600)
}

// Normalize clamps the sass level into range, fills empty values from
// Defaults and rejects unknown provider tags or history backends
func (s *Settings) Normalize() error {
	d := Defaults()

	if s.Tyrant.Provider == "" {
		s.Tyrant.Provider = d.Tyrant.Provider
	}
	if _, ok := options.ParseProvider(s.Tyrant.Provider); !ok {
		return &tyerrors.ValidationError{Field: "tyrant.provider", Value: s.Tyrant.Provider, Message: "unknown provider"}
	}
	for tag := range s.Providers {
		if _, ok := options.ParseProvider(tag); !ok {
			return &tyerrors.ValidationError{Field: "providers", Value: tag, Message: "unknown provider"}
		}
	}

	s.Tyrant.SassLevel = options.ClampSassLevel(s.Tyrant.SassLevel)
	if s.Tyrant.MaxTokens <= 0 {
		s.Tyrant.MaxTokens = d.Tyrant.MaxTokens
	}
	if s.Providers == nil {
		s.Providers = map[string]ProviderConfig{}
	}

	switch s.History.Backend {
	case "":
		s.History.Backend = d.History.Backend
	case HistoryLibSQL, HistoryRedis, HistoryMemory, HistoryNone:
	default:
		return &tyerrors.ValidationError{Field: "history.backend", Value: s.History.Backend, Message: "expected libsql, redis, memory or none"}
	}
	if s.History.Path == "" {
		s.History.Path = d.History.Path
	}
	if s.History.Size <= 0 {
		s.History.Size = d.History.Size
	}
	if s.Server.Addr == "" {
		s.Server.Addr = d.Server.Addr
	}
	return nil
}

// Overrides converts the [tyrant] section into instance option overrides
func (s *Settings) Overrides() options.Overrides {
	return s.OverridesFor(options.Provider(s.Tyrant.Provider))
}

// OverridesFor is Overrides targeted at tag. [tyrant].model names a model of
// the configured provider, so it is only carried when tag is that provider;
// other tags get their [providers.<tag>] model through ProviderConfig.
func (s *Settings) OverridesFor(tag options.Provider) options.Overrides {
	ov := options.Overrides{
		SassLevel:  options.Int(s.Tyrant.SassLevel),
		FocusAreas: s.Tyrant.FocusAreas,
		Provider:   options.ProviderPtr(tag),
	}
	if s.Tyrant.Model != "" && string(tag) == s.Tyrant.Provider {
		ov.Model = options.String(s.Tyrant.Model)
	}
	if s.Tyrant.Temperature > 0 {
		ov.Temperature = options.Float(s.Tyrant.Temperature)
	}
	if s.Tyrant.MaxTokens > 0 {
		ov.MaxTokens = options.Int(s.Tyrant.MaxTokens)
	}
	return ov
}

// ProviderConfig returns adapter configuration for tag. explicitKey wins over
// the configured key; an empty result lets the adapter fall back to its
// environment variable.
func (s *Settings) ProviderConfig(tag options.Provider, explicitKey string) provider.Config {
	pc := s.Providers[string(tag)]
	cfg := provider.Config{
		APIKey:  pc.APIKey,
		BaseURL: pc.BaseURL,
		Model:   pc.Model,
	}
	if explicitKey != "" {
		cfg.APIKey = explicitKey
	}
	return cfg
}

// APIKey resolves the key for tag: explicit, then config, then environment
func (s *Settings) APIKey(tag options.Provider, explicit string) string {
	if explicit != "" {
		return explicit
	}
	if key := s.Providers[string(tag)].APIKey; key != "" {
		return key
	}
	if env := provider.EnvKey(tag); env != "" {
		return os.Getenv(env)
	}
	return ""
}
