package toolhost

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Config holds tool server configuration loaded from tools.json files.
type Config struct {
	Servers map[string]ServerConfig `json:"toolServers"`
}

// ServerConfig describes how to connect to a single tool server.
type ServerConfig struct {
	Type    string            `json:"type"`              // "stdio" or "http"
	Command string            `json:"command,omitempty"` // stdio: executable
	Args    []string          `json:"args,omitempty"`    // stdio: arguments
	Env     map[string]string `json:"env,omitempty"`     // stdio: env vars
	URL     string            `json:"url,omitempty"`     // http: server URL
}

// userConfigDir returns the user-scope tool config directory.
var userConfigDir = defaultUserConfigDir

func defaultUserConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "halcyon")
}

// LoadConfig loads and merges tool server configuration from user and
// project scope. Project-scoped (tools.json in cwd) overrides user-scoped
// (~/.config/halcyon/tools.json).
func LoadConfig(cwd string) (Config, error) {
	merged := Config{Servers: map[string]ServerConfig{}}

	if dir := userConfigDir(); dir != "" {
		if cfg, err := loadConfigFile(filepath.Join(dir, "tools.json")); err == nil {
			for name, sc := range cfg.Servers {
				merged.Servers[name] = sc
			}
		}
	}

	if cwd != "" {
		if cfg, err := loadConfigFile(filepath.Join(cwd, "tools.json")); err == nil {
			for name, sc := range cfg.Servers {
				merged.Servers[name] = sc
			}
		}
	}

	for name, sc := range merged.Servers {
		sc.Command = expandEnvVars(sc.Command)
		sc.URL = expandEnvVars(sc.URL)
		for i, arg := range sc.Args {
			sc.Args[i] = expandEnvVars(arg)
		}
		for k, v := range sc.Env {
			sc.Env[k] = expandEnvVars(v)
		}
		if err := validateServerConfig(name, sc); err != nil {
			return Config{}, err
		}
		merged.Servers[name] = sc
	}

	return merged, nil
}

func loadConfigFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing %s: %w", path, err)
	}
	if cfg.Servers == nil {
		cfg.Servers = map[string]ServerConfig{}
	}
	return cfg, nil
}

func validateServerConfig(name string, sc ServerConfig) error {
	switch sc.Type {
	case "stdio", "":
		if sc.Command == "" {
			return fmt.Errorf("tool server %q: stdio type requires 'command'", name)
		}
	case "http":
		if sc.URL == "" {
			return fmt.Errorf("tool server %q: http type requires 'url'", name)
		}
	default:
		return fmt.Errorf("tool server %q: unknown type %q (expected 'stdio' or 'http')", name, sc.Type)
	}
	return nil
}

// envVarPattern matches ${VAR} and ${VAR:-default}.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-([^}]*))?\}`)

// lookupEnvFunc returns (value, exists) for an environment variable.
// Override in tests to control the environment.
var lookupEnvFunc = os.LookupEnv

// expandEnvVars replaces ${VAR} and ${VAR:-default} patterns with values.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		varName := groups[1]
		defaultVal := ""
		if len(groups) >= 3 {
			defaultVal = groups[2]
		}
		if val, exists := lookupEnvFunc(varName); exists {
			return val
		}
		return strings.TrimSpace(defaultVal)
	})
}
