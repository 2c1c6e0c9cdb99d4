package cmd

import (
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"tyrant/src/config"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage tyrant configuration",
	Long: `Manage tyrant configuration settings.

Examples:
  tyrant config get tyrant.sass_level
  tyrant config set tyrant.provider anthropic
  tyrant config set providers.anthropic.api_key sk-ant-...
  tyrant config list
  tyrant config edit`,
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a configuration value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		value := viper.Get(args[0])
		if value == nil {
			return fmt.Errorf("key '%s' not found", args[0])
		}
		fmt.Println(value)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]
		viper.Set(key, parseValue(value))

		// Reject values Normalize would refuse before they reach disk
		if _, err := loadSettings(); err != nil {
			return err
		}

		configFile := viper.ConfigFileUsed()
		if configFile == "" {
			if err := config.EnsureConfigDirs(); err != nil {
				return err
			}
			configFile = config.GetConfigPath()
		}

		if err := viper.WriteConfigAs(configFile); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}

		fmt.Printf("Set %s = %v\n", key, value)
		fmt.Printf("Config saved to %s\n", configFile)
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all configuration values",
	Run: func(cmd *cobra.Command, args []string) {
		flattened := flattenMap("", viper.AllSettings())

		keys := make([]string, 0, len(flattened))
		for k := range flattened {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		fmt.Println("Configuration settings:")
		for _, key := range keys {
			value := flattened[key]
			if strings.HasSuffix(key, "api_key") {
				value = mask(fmt.Sprint(value))
			}
			fmt.Printf("  %s = %v\n", key, value)
		}

		if configFile := viper.ConfigFileUsed(); configFile != "" {
			fmt.Printf("\nConfig file: %s\n", configFile)
		}
	},
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Edit configuration file in your default editor",
	RunE: func(cmd *cobra.Command, args []string) error {
		configFile := viper.ConfigFileUsed()
		if configFile == "" {
			configFile = config.GetConfigPath()
			if _, err := os.Stat(configFile); os.IsNotExist(err) {
				if err := config.Defaults().Save(configFile); err != nil {
					return err
				}
			}
		}

		editor := os.Getenv("EDITOR")
		if editor == "" {
			editor = os.Getenv("VISUAL")
		}
		if editor == "" {
			for _, e := range []string{"vim", "vi", "nano", "emacs"} {
				if _, err := exec.LookPath(e); err == nil {
					editor = e
					break
				}
			}
		}
		if editor == "" {
			return fmt.Errorf("no editor found; set $EDITOR or $VISUAL")
		}

		editorCmd := exec.Command(editor, configFile)
		editorCmd.Stdin = os.Stdin
		editorCmd.Stdout = os.Stdout
		editorCmd.Stderr = os.Stderr
		if err := editorCmd.Run(); err != nil {
			return err
		}

		if _, err := config.Load(configFile); err != nil {
			return fmt.Errorf("%s is not valid: %w", configFile, err)
		}
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print configuration and data locations",
	Run: func(cmd *cobra.Command, args []string) {
		configFile := viper.ConfigFileUsed()
		if configFile == "" {
			configFile = config.GetConfigPath()
		}
		fmt.Printf("config:        %s\n", configFile)
		fmt.Printf("personalities: %s\n", config.GetPersonalitiesDir())
		fmt.Printf("history:       %s\n", config.GetHistoryPath())
	},
}

// parseValue keeps numbers and booleans typed so the TOML file stays typed
func parseValue(value string) interface{} {
	if i, err := strconv.Atoi(value); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(value, 64); err == nil {
		return f
	}
	if value == "true" || value == "false" {
		return value == "true"
	}
	if strings.Contains(value, ",") {
		return strings.Split(value, ",")
	}
	return value
}

func mask(key string) string {
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return key[:4] + strings.Repeat("*", len(key)-8) + key[len(key)-4:]
}

// flattenMap flattens a nested map into dot-notation keys
func flattenMap(prefix string, m map[string]interface{}) map[string]interface{} {
	result := make(map[string]interface{})

	for key, value := range m {
		fullKey := key
		if prefix != "" {
			fullKey = prefix + "." + key
		}

		switch v := value.(type) {
		case map[string]interface{}:
			for k, val := range flattenMap(fullKey, v) {
				result[k] = val
			}
		case []interface{}:
			items := make([]string, 0, len(v))
			for _, item := range v {
				items = append(items, fmt.Sprintf("%v", item))
			}
			result[fullKey] = strings.Join(items, ", ")
		case []string:
			result[fullKey] = strings.Join(v, ", ")
		default:
			result[fullKey] = value
		}
	}

	return result
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configEditCmd)
	configCmd.AddCommand(configPathCmd)
}
