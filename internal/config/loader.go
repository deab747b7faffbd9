package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/everydev1618/dockwright"
)

// Load loads configuration from defaults, the discovered YAML file and the
// environment, then validates it.
func Load(configPath string) (*Config, error) {
	cfg := Defaults()

	filePath := discoverConfigFile(configPath)
	if filePath != "" {
		if err := loadYAMLFile(filePath, &cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", filePath, err)
		}
	}

	applyEnvOverrides(&cfg)

	if err := resolveFileReferences(&cfg); err != nil {
		return nil, fmt.Errorf("resolving file references: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return &cfg, nil
}

// discoverConfigFile returns the first config file found, or "" if none:
// the explicit path, DOCKWRIGHT_CONFIG, ./dockwright.yaml, then the home
// directory's config.yaml.
func discoverConfigFile(configPath string) string {
	if configPath != "" {
		return configPath
	}

	if envPath := os.Getenv("DOCKWRIGHT_CONFIG"); envPath != "" {
		return envPath
	}

	candidates := []string{
		"dockwright.yaml",
		dockwright.ConfigPath(),
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// loadYAMLFile parses a YAML file into cfg. Fields absent from the file keep
// their current values.
func loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// applyEnvOverrides maps DOCKWRIGHT_* variables to config fields. Malformed
// numbers are ignored.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DOCKWRIGHT_PROVIDER"); v != "" {
		cfg.Provider.Name = v
	}
	if v := os.Getenv("DOCKWRIGHT_MODEL"); v != "" {
		cfg.Provider.Model = v
	}
	if v := os.Getenv("DOCKWRIGHT_BASE_URL"); v != "" {
		cfg.Provider.BaseURL = v
	}
	if v := os.Getenv("DOCKWRIGHT_MAX_TURNS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Generation.MaxTurns = n
		}
	}
	if v := os.Getenv("DOCKWRIGHT_OUTPUT_DIR"); v != "" {
		cfg.Generation.OutputDir = v
	}
	if v := os.Getenv("DOCKWRIGHT_BUILD_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Sandbox.BuildTimeout = d
		}
	}
	if v := os.Getenv("DOCKWRIGHT_DB"); v != "" {
		cfg.Serve.DB = v
	}
	if v := os.Getenv("DOCKWRIGHT_ADDR"); v != "" {
		cfg.Serve.Addr = v
	}
	if v := os.Getenv("DOCKWRIGHT_LOG_LEVEL"); v != "" {
		cfg.Log.Level = strings.ToLower(v)
	}
}

// resolveFileReferences fills empty value fields from their _file variants.
func resolveFileReferences(cfg *Config) error {
	if cfg.Provider.APIKeyFile != "" && cfg.Provider.APIKey == "" {
		val, err := readSecretFile(cfg.Provider.APIKeyFile)
		if err != nil {
			return fmt.Errorf("provider.api_key_file: %w", err)
		}
		cfg.Provider.APIKey = val
	}
	return nil
}

// readSecretFile reads a file and returns its content with surrounding whitespace trimmed.
func readSecretFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
