// ABOUTME: Configuration loading and parsing for tokstore
// ABOUTME: Supports YAML files with environment variable expansion

package config

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// StoreDirEnvVar names the environment variable that, when set, provides
// the store override directory without a config file.
const StoreDirEnvVar = "TOKSTORE_DIR"

// Config represents the complete tokstore configuration
type Config struct {
	Store   StoreConfig   `yaml:"store"`
	Logging LoggingConfig `yaml:"logging"`
}

// StoreConfig holds store location configuration
type StoreConfig struct {
	// Dir is the explicit override directory, tried before the per-user,
	// working-directory and system locations.
	Dir string `yaml:"dir"`
	// SystemDir replaces the compiled-in system directory. Empty keeps
	// the default.
	SystemDir string `yaml:"system_dir"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads a configuration file from the given path and returns a parsed
// Config. Environment variables in the format ${VAR_NAME} are expanded.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyEnv()
	return &cfg, nil
}

// Default returns the configuration used when no config file is present:
// everything at its zero value except the store override directory, which
// the TOKSTORE_DIR environment variable may provide.
func Default() *Config {
	cfg := &Config{}
	cfg.applyEnv()
	return cfg
}

// applyEnv fills the store override directory from the environment when
// the config file leaves it empty.
func (c *Config) applyEnv() {
	if c.Store.Dir == "" {
		c.Store.Dir = os.Getenv(StoreDirEnvVar)
	}
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	// Match ${VAR_NAME} pattern
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}
