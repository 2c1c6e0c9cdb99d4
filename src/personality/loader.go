package personality

import (
	"embed"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	tyerrors "tyrant/src/errors"
	"tyrant/src/options"
)

//go:embed data/builtin.toml
var embeddedPersonalities embed.FS

// packFile is the on-disk layout: one or more [[personality]] tables
type packFile struct {
	Personality []packConfig `toml:"personality"`
}

type packConfig struct {
	ID                   string             `toml:"id"`
	Name                 string             `toml:"name"`
	Description          string             `toml:"description"`
	Template             string             `toml:"template"`
	Transformer          string             `toml:"transformer"`
	SassMultiplier       float64            `toml:"sass_multiplier"`
	RecommendedProviders []string           `toml:"recommended_providers"`
	Version              string             `toml:"version"`
	Author               string             `toml:"author"`
	Display              Display            `toml:"display"`
	DefaultOptions       *options.Overrides `toml:"default_options"`
}

// Builtins returns fresh copies of the built-in packs in registration order.
// rng seeds the drill sergeant transform; nil uses a time-seeded source.
func Builtins(rng *rand.Rand) []*Pack {
	data, err := embeddedPersonalities.ReadFile("data/builtin.toml")
	if err != nil {
		panic(fmt.Sprintf("personality: embedded data missing: %v", err))
	}

	packs, err := parsePacks(data, rng)
	if err != nil {
		panic(fmt.Sprintf("personality: embedded data invalid: %v", err))
	}
	return packs
}

// LoadFile parses every pack in a TOML personality file
func LoadFile(path string, rng *rand.Rand) ([]*Pack, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	packs, err := parsePacks(data, rng)
	if err != nil {
		return nil, fmt.Errorf("failed to parse personality file %s: %w", path, err)
	}
	return packs, nil
}

// LoadDir loads every *.toml file in dir, in file name order. A missing
// directory yields no packs and no error.
func LoadDir(dir string, rng *rand.Rand) ([]*Pack, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".toml") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	var packs []*Pack
	for _, name := range names {
		loaded, err := LoadFile(filepath.Join(dir, name), rng)
		if err != nil {
			return nil, err
		}
		packs = append(packs, loaded...)
	}
	return packs, nil
}

func parsePacks(data []byte, rng *rand.Rand) ([]*Pack, error) {
	var pf packFile
	if _, err := toml.Decode(string(data), &pf); err != nil {
		return nil, err
	}

	packs := make([]*Pack, 0, len(pf.Personality))
	for _, pc := range pf.Personality {
		pack, err := pc.toPack(rng)
		if err != nil {
			return nil, err
		}
		packs = append(packs, pack)
	}
	return packs, nil
}

func (pc packConfig) toPack(rng *rand.Rand) (*Pack, error) {
	if pc.ID == "" {
		return nil, &tyerrors.ValidationError{Field: "id", Message: "personality id is required"}
	}

	transformer, err := TransformerByName(pc.Transformer, rng)
	if err != nil {
		return nil, &tyerrors.ValidationError{Field: "transformer", Value: pc.Transformer, Message: err.Error()}
	}

	var providers []options.Provider
	for _, tag := range pc.RecommendedProviders {
		p, ok := options.ParseProvider(tag)
		if !ok {
			return nil, &tyerrors.ValidationError{Field: "recommended_providers", Value: tag, Message: "unknown provider"}
		}
		providers = append(providers, p)
	}

	name := pc.Name
	if name == "" {
		name = pc.ID
	}

	return &Pack{
		ID:                   pc.ID,
		Name:                 name,
		Description:          pc.Description,
		SystemPromptTemplate: pc.Template,
		Transformer:          transformer,
		SassMultiplier:       pc.SassMultiplier,
		DefaultOptions:       pc.DefaultOptions,
		RecommendedProviders: providers,
		Version:              pc.Version,
		Author:               pc.Author,
		Display:              pc.Display,
	}, nil
}
