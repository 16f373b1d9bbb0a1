package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// EnvConfigPath names a config file when no --config flag is given.
const EnvConfigPath = "GLASSBRIDGE_CONFIG"

// ResolvePath picks the config location: the explicit flag, then
// GLASSBRIDGE_CONFIG, then $XDG_CONFIG_HOME, then ~/.config.
func ResolvePath(explicit string) (string, error) {
	for _, candidate := range []string{explicit, os.Getenv(EnvConfigPath)} {
		if strings.TrimSpace(candidate) != "" {
			return candidate, nil
		}
	}

	base := strings.TrimSpace(os.Getenv("XDG_CONFIG_HOME"))
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", errors.New("unable to resolve user home for config fallback")
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "glassbridge", "config.jsonc"), nil
}
