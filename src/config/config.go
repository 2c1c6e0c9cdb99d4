package config

import (
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
)

const appName = "tyrant"

// GetConfigDir returns the OS-appropriate configuration directory for tyrant
// ($XDG_CONFIG_HOME/tyrant on Linux, the platform equivalent elsewhere)
func GetConfigDir() string {
	return filepath.Join(xdg.ConfigHome, appName)
}

// GetConfigPath returns the default settings file path
func GetConfigPath() string {
	return filepath.Join(GetConfigDir(), "config.toml")
}

// GetPersonalitiesDir returns the directory user personality packs are loaded from
func GetPersonalitiesDir() string {
	return filepath.Join(GetConfigDir(), "personalities")
}

// GetDataDir returns the directory for persistent state such as history
func GetDataDir() string {
	return filepath.Join(xdg.DataHome, appName)
}

// GetHistoryPath returns the default libsql history database path
func GetHistoryPath() string {
	return filepath.Join(GetDataDir(), "history.db")
}

// EnsureConfigDirs creates the config, personalities and data directories if
// they don't exist
func EnsureConfigDirs() error {
	for _, dir := range []string{GetConfigDir(), GetPersonalitiesDir(), GetDataDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}
