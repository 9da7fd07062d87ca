package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const prefsFileName = "config.json"

// Preferences holds user-configurable settings, persisted to
// ~/.config/halcyon/config.json.
type Preferences struct {
	Vendor string `json:"vendor"`
	Model  string `json:"model"`

	APIKeys  map[string]string `json:"api_keys,omitempty"`
	BaseURLs map[string]string `json:"base_urls,omitempty"`

	SystemPrompt string  `json:"system_prompt,omitempty"`
	Temperature  float64 `json:"temperature"`
	MaxTokens    int     `json:"max_tokens,omitempty"`
	HistoryTurns int     `json:"history_turns,omitempty"`

	// Relay settings route vendor traffic through an out-of-process proxy.
	RelayURL   string `json:"relay_url,omitempty"`
	RelayToken string `json:"relay_token,omitempty"`
}

// DefaultPreferences returns the settings used before any file exists.
func DefaultPreferences() Preferences {
	return Preferences{
		Vendor:      "openai",
		Model:       "gpt-4o",
		Temperature: 0.7,
	}
}

func prefsPath() string {
	dir := ConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, prefsFileName)
}

// LoadPreferences reads the preferences file, returning defaults when it
// does not exist yet. A corrupt file is an error rather than a silent reset.
func LoadPreferences() (Preferences, error) {
	prefs := DefaultPreferences()

	path := prefsPath()
	if path == "" {
		return prefs, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return prefs, nil
		}
		return prefs, fmt.Errorf("reading %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &prefs); err != nil {
		return DefaultPreferences(), fmt.Errorf("parsing %s: %w", path, err)
	}
	if prefs.Vendor == "" {
		prefs.Vendor = "openai"
	}
	return prefs, nil
}

// SavePreferences writes the preferences file, creating the directory if
// needed.
func SavePreferences(prefs Preferences) error {
	dir := ConfigDir()
	if dir == "" {
		return fmt.Errorf("cannot resolve config directory")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(prefs, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, prefsFileName), data, 0o600)
}

// BaseURL returns the configured endpoint override for a vendor, or "".
func (p Preferences) BaseURL(vendorName string) string {
	return p.BaseURLs[vendorName]
}
