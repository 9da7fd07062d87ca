package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadPreferences_defaultsWhenMissing(t *testing.T) {
	configDirOverride = t.TempDir()
	defer func() { configDirOverride = "" }()

	prefs, err := LoadPreferences()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if prefs.Vendor != "openai" || prefs.Model != "gpt-4o" {
		t.Fatalf("defaults = %+v", prefs)
	}
}

func TestPreferences_roundTrip(t *testing.T) {
	configDirOverride = t.TempDir()
	defer func() { configDirOverride = "" }()

	want := Preferences{
		Vendor:      "claude",
		Model:       "claude-sonnet-4-5",
		APIKeys:     map[string]string{"claude": "sk-test"},
		BaseURLs:    map[string]string{"ollama": "http://box:11434"},
		Temperature: 0.3,
	}
	if err := SavePreferences(want); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := LoadPreferences()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Vendor != want.Vendor || got.Model != want.Model {
		t.Fatalf("got %+v", got)
	}
	if got.APIKeys["claude"] != "sk-test" {
		t.Fatalf("api keys = %v", got.APIKeys)
	}
	if got.BaseURL("ollama") != "http://box:11434" {
		t.Fatalf("base url = %q", got.BaseURL("ollama"))
	}
}

func TestLoadPreferences_corruptFileErrors(t *testing.T) {
	configDirOverride = t.TempDir()
	defer func() { configDirOverride = "" }()

	path := filepath.Join(configDirOverride, prefsFileName)
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadPreferences(); err == nil {
		t.Fatal("corrupt preferences must error")
	}
}

func TestAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	prefs := Preferences{APIKeys: map[string]string{"openai": "from-prefs"}}
	key, err := APIKey(prefs, "openai")
	if err != nil || key != "from-prefs" {
		t.Fatalf("key = %q, err = %v", key, err)
	}

	t.Setenv("OPENAI_API_KEY", "from-env")
	key, _ = APIKey(prefs, "openai")
	if key != "from-env" {
		t.Fatalf("env must win, got %q", key)
	}

	t.Setenv("MISTRAL_API_KEY", "")
	if _, err := APIKey(Preferences{}, "mistral"); err == nil {
		t.Fatal("missing key must error")
	}

	if key, err := APIKey(Preferences{}, "ollama"); err != nil || key != "" {
		t.Fatalf("ollama needs no key, got %q, %v", key, err)
	}
}

func TestIsKnownVendor(t *testing.T) {
	if !IsKnownVendor("gemini") || IsKnownVendor("grok") {
		t.Fatal("vendor table mismatch")
	}
}
