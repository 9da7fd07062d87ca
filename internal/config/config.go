// Package config holds user preferences, directory resolution, API key
// lookup, and the file logger.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// VendorEnvVars maps vendor names to their API key environment variables.
var VendorEnvVars = map[string]string{
	"openai":  "OPENAI_API_KEY",
	"claude":  "ANTHROPIC_API_KEY",
	"gemini":  "GOOGLE_API_KEY",
	"mistral": "MISTRAL_API_KEY",
}

// KnownVendors lists valid vendor names for validation.
var KnownVendors = []string{"openai", "claude", "gemini", "mistral", "ollama"}

// configDirOverride is set by tests to redirect ConfigDir.
var configDirOverride string

// ConfigDir returns the halcyon config directory.
func ConfigDir() string {
	if configDirOverride != "" {
		return configDirOverride
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "halcyon")
}

// DataDir returns ~/.local/share/halcyon, creating it if needed.
func DataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(home, ".local", "share", "halcyon")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}
	return dir, nil
}

// APIKey resolves the key for a vendor: environment variable first, then the
// preferences file. Ollama needs no key.
func APIKey(prefs Preferences, vendorName string) (string, error) {
	if vendorName == "ollama" {
		return "", nil
	}

	if envVar, ok := VendorEnvVars[vendorName]; ok {
		if key := strings.TrimSpace(os.Getenv(envVar)); key != "" {
			return key, nil
		}
	}
	if key := strings.TrimSpace(prefs.APIKeys[vendorName]); key != "" {
		return key, nil
	}
	return "", fmt.Errorf("no API key for %s: set %s or add it to %s",
		vendorName, VendorEnvVars[vendorName], filepath.Join(ConfigDir(), prefsFileName))
}

// IsKnownVendor reports whether name is a configurable vendor.
func IsKnownVendor(name string) bool {
	for _, v := range KnownVendors {
		if v == name {
			return true
		}
	}
	return false
}
