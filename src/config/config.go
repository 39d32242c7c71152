package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"nargo-bridge/src/internal/common"
)

// Config contains the editor-bridge settings.
type Config struct {
	// NargoPath overrides nargo binary discovery when set.
	NargoPath string `yaml:"nargo_path,omitempty"`
	// NargoFlags are extra arguments appended to the `nargo lsp` launch.
	NargoFlags []string `yaml:"nargo_flags,omitempty"`
	// EnableLSP gates the language-client connection entirely.
	EnableLSP bool `yaml:"enable_lsp"`
	// EnableCodeLens is forwarded to the server in initializationOptions.
	EnableCodeLens bool   `yaml:"enable_code_lens"`
	LogLevel       string `yaml:"log_level,omitempty"`
}

// GetDefaultConfig returns the settings used when no config file exists.
func GetDefaultConfig() *Config {
	return &Config{
		EnableLSP:      true,
		EnableCodeLens: true,
		LogLevel:       "info",
	}
}

// DefaultConfigPath returns the standard config file location.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(home, ".nargo-bridge", "config.yaml")
}

// LoadConfig loads configuration from a YAML file. An empty path means the
// default location; a missing file at the default location yields defaults.
func LoadConfig(path string) (*Config, error) {
	usedDefault := false
	if path == "" {
		path = DefaultConfigPath()
		usedDefault = true
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && usedDefault {
			return GetDefaultConfig(), nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := GetDefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return config, nil
}

// SaveConfig saves configuration to a YAML file.
func SaveConfig(config *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ApplyLogLevel propagates the configured level to the component loggers.
func (c *Config) ApplyLogLevel() {
	common.SetGlobalLevel(common.ParseLogLevel(c.LogLevel))
}

func validateConfig(config *Config) error {
	if config.NargoPath != "" && !filepath.IsAbs(config.NargoPath) {
		return fmt.Errorf("nargo_path must be absolute, got %q", config.NargoPath)
	}
	switch config.LogLevel {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("unknown log_level %q", config.LogLevel)
	}
	return nil
}
