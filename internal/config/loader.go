package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/spf13/viper"
)

// Load reads configuration from the specified file path.
// It supports YAML files and performs environment variable substitution.
// An empty path yields the defaults.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		return DefaultConfig(), nil
	}

	v := viper.New()

	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	// Read the config file
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return LoadFromViper(v)
}

// LoadFromViper creates a Config from an existing Viper instance.
// Useful for testing or when Viper is configured externally.
func LoadFromViper(v *viper.Viper) (*Config, error) {
	cfg := DefaultConfig()

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	substituteEnvVars(cfg)

	return cfg, nil
}

// envVarPattern matches ${VAR_NAME} or $VAR_NAME patterns
var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

// substituteEnvVars replaces ${VAR_NAME} patterns with environment variable values.
func substituteEnvVars(cfg *Config) {
	cfg.Store.URI = expandEnvVar(cfg.Store.URI)
	cfg.Store.Database = expandEnvVar(cfg.Store.Database)

	cfg.Store.MySQL.Host = expandEnvVar(cfg.Store.MySQL.Host)
	cfg.Store.MySQL.User = expandEnvVar(cfg.Store.MySQL.User)
	cfg.Store.MySQL.Password = expandEnvVar(cfg.Store.MySQL.Password)

	cfg.Server.Listen = expandEnvVar(cfg.Server.Listen)
	cfg.Logging.Output = expandEnvVar(cfg.Logging.Output)
}

// expandEnvVar expands environment variables in the format ${VAR} or $VAR.
func expandEnvVar(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		var varName string
		if strings.HasPrefix(match, "${") {
			varName = match[2 : len(match)-1]
		} else {
			varName = match[1:]
		}

		if value, exists := os.LookupEnv(varName); exists {
			return value
		}
		// Return original if env var not found
		return match
	})
}

// Overrides carries CLI flag values; zero values leave the file setting alone.
type Overrides struct {
	LogLevel   string
	LogFormat  string
	Driver     string
	URI        string
	Database   string
	BatchSize  int
	SampleSize int
	Listen     string
}

// ApplyOverrides applies CLI flag overrides to the configuration.
// Only non-zero/non-empty values are applied.
func (c *Config) ApplyOverrides(o Overrides) {
	if o.LogLevel != "" {
		c.Logging.Level = o.LogLevel
	}
	if o.LogFormat != "" {
		c.Logging.Format = o.LogFormat
	}
	if o.Driver != "" {
		c.Store.Driver = o.Driver
	}
	if o.URI != "" {
		c.Store.URI = o.URI
	}
	if o.Database != "" {
		c.Store.Database = o.Database
	}
	if o.BatchSize > 0 {
		c.Stream.DefaultBatchSize = o.BatchSize
	}
	if o.SampleSize > 0 {
		c.Schema.SampleSize = o.SampleSize
	}
	if o.Listen != "" {
		c.Server.Listen = o.Listen
	}
}
