package cmd

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"tyrant/src/config"
	"tyrant/src/history"
	"tyrant/src/personality"
)

var (
	// Config file
	cfgFile string

	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "tyrant",
	Short: "Tough-love AI assistant that refuses to accept your excuses",
	Long: `tyrant wraps OpenAI, Anthropic, Grok, Gemini, Vertex and Ollama models
behind a set of coaching personalities, from a supportive coach to a drill sergeant.

Run "tyrant chat" to start talking, or "tyrant serve" for the HTTP API.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if !verbose {
			log.SetOutput(io.Discard)
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $XDG_CONFIG_HOME/tyrant/config.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log lifecycle events to stderr")
}

// initConfig reads in config file and ENV variables if set
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(config.GetConfigDir())
		viper.SetConfigType("toml")
		viper.SetConfigName("config")
	}

	setDefaults()

	// TYRANT_TYRANT_SASS_LEVEL, TYRANT_HISTORY_BACKEND, ...
	viper.SetEnvPrefix("TYRANT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && cfgFile != "" {
			fmt.Fprintf(os.Stderr, "Warning: failed to read config %s: %v\n", cfgFile, err)
		}
	}
}

// setDefaults registers every settings key so env vars and flags can
// override values the file doesn't mention
func setDefaults() {
	d := config.Defaults()
	viper.SetDefault("tyrant.provider", d.Tyrant.Provider)
	viper.SetDefault("tyrant.model", d.Tyrant.Model)
	viper.SetDefault("tyrant.sass_level", d.Tyrant.SassLevel)
	viper.SetDefault("tyrant.focus_areas", d.Tyrant.FocusAreas)
	viper.SetDefault("tyrant.temperature", d.Tyrant.Temperature)
	viper.SetDefault("tyrant.max_tokens", d.Tyrant.MaxTokens)
	viper.SetDefault("tyrant.personality", d.Tyrant.Personality)
	viper.SetDefault("history.backend", d.History.Backend)
	viper.SetDefault("history.path", d.History.Path)
	viper.SetDefault("history.redis_url", d.History.RedisURL)
	viper.SetDefault("history.size", d.History.Size)
	viper.SetDefault("server.addr", d.Server.Addr)
}

// loadSettings builds settings from defaults, config file, env and bound flags
func loadSettings() (*config.Settings, error) {
	settings := config.Defaults()
	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("failed to decode settings: %w", err)
	}
	if err := settings.Normalize(); err != nil {
		return nil, err
	}
	return settings, nil
}

// loadRegistry returns the default registry with the user's personality
// packs registered on top of the built-ins
func loadRegistry() *personality.Registry {
	reg := personality.Default()

	packs, err := personality.LoadDir(config.GetPersonalitiesDir(), nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to load personalities: %v\n", err)
		return reg
	}
	for _, p := range packs {
		if err := reg.Register(p); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: skipping personality %s: %v\n", p.ID, err)
		}
	}
	return reg
}

// openHistory opens the configured store, or returns nil when history is
// disabled
func openHistory(ctx context.Context, settings *config.Settings) (history.Store, error) {
	store, err := history.Open(ctx, settings.History)
	if err != nil {
		return nil, fmt.Errorf("failed to open history: %w", err)
	}
	return store, nil
}

// requireHistory is openHistory for commands that make no sense without it
func requireHistory(ctx context.Context) (history.Store, error) {
	settings, err := loadSettings()
	if err != nil {
		return nil, err
	}
	store, err := openHistory(ctx, settings)
	if err != nil {
		return nil, err
	}
	if store == nil {
		return nil, fmt.Errorf("history is disabled; set history.backend in %s", config.GetConfigPath())
	}
	return store, nil
}
