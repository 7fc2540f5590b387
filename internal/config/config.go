// Package config provides configuration structures and loading for MongoNexus.
package config

import "time"

// Config represents the complete application configuration.
type Config struct {
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Schema  SchemaConfig  `yaml:"schema" mapstructure:"schema"`
	Stream  StreamConfig  `yaml:"stream" mapstructure:"stream"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Logging LoggingConfig `yaml:"logging" mapstructure:"logging"`
}

// StoreConfig selects and configures the document store backend.
type StoreConfig struct {
	Driver                string      `yaml:"driver" mapstructure:"driver"` // mongo, mysql or memory
	URI                   string      `yaml:"uri" mapstructure:"uri"`       // mongodb:// URI, or a fixture directory for memory
	Database              string      `yaml:"database" mapstructure:"database"`
	ConnectTimeoutSeconds int         `yaml:"connect_timeout_seconds" mapstructure:"connect_timeout_seconds"`
	ConnectRetries        int         `yaml:"connect_retries" mapstructure:"connect_retries"`
	MySQL                 MySQLConfig `yaml:"mysql" mapstructure:"mysql"`
}

// MySQLConfig represents a MySQL connection whose tables hold JSON documents.
type MySQLConfig struct {
	Host               string `yaml:"host" mapstructure:"host"`
	Port               int    `yaml:"port" mapstructure:"port"`
	User               string `yaml:"user" mapstructure:"user"`
	Password           string `yaml:"password" mapstructure:"password"`
	TLS                string `yaml:"tls" mapstructure:"tls"` // disable, preferred, required
	MaxConnections     int    `yaml:"max_connections" mapstructure:"max_connections"`
	MaxIdleConnections int    `yaml:"max_idle_connections" mapstructure:"max_idle_connections"`
	DocumentColumn     string `yaml:"document_column" mapstructure:"document_column"`
	IDColumn           string `yaml:"id_column" mapstructure:"id_column"`
}

// SchemaConfig controls sampling and inference.
type SchemaConfig struct {
	SampleSize          int `yaml:"sample_size" mapstructure:"sample_size"`
	MaxDepth            int `yaml:"max_depth" mapstructure:"max_depth"`
	MaxExamples         int `yaml:"max_examples" mapstructure:"max_examples"`
	MaxDistinct         int `yaml:"max_distinct" mapstructure:"max_distinct"`
	MaxScan             int `yaml:"max_scan" mapstructure:"max_scan"` // reservoir fallback scan bound
	Concurrency         int `yaml:"concurrency" mapstructure:"concurrency"`
	CacheSize           int `yaml:"cache_size" mapstructure:"cache_size"`
	CacheTTLSeconds     int `yaml:"cache_ttl_seconds" mapstructure:"cache_ttl_seconds"` // 0 disables the cache
	InferTimeoutSeconds int `yaml:"infer_timeout_seconds" mapstructure:"infer_timeout_seconds"` // bounds a shared inference
}

// StreamConfig controls the streaming query executor.
type StreamConfig struct {
	DefaultBatchSize int    `yaml:"default_batch_size" mapstructure:"default_batch_size"`
	MaxBatchSize     int    `yaml:"max_batch_size" mapstructure:"max_batch_size"`
	MaxLimit         int64  `yaml:"max_limit" mapstructure:"max_limit"`   // 0 means no cap
	CountMode        string `yaml:"count_mode" mapstructure:"count_mode"` // always, unfiltered, never
	CountTimeoutMS   int    `yaml:"count_timeout_ms" mapstructure:"count_timeout_ms"`
	BatchIntervalMS  int    `yaml:"batch_interval_ms" mapstructure:"batch_interval_ms"`
	CloseTimeoutMS   int    `yaml:"close_timeout_ms" mapstructure:"close_timeout_ms"`
}

// ServerConfig represents the HTTP adapter settings.
type ServerConfig struct {
	Listen                 string `yaml:"listen" mapstructure:"listen"`
	ShutdownTimeoutSeconds int    `yaml:"shutdown_timeout_seconds" mapstructure:"shutdown_timeout_seconds"`
	CORSOrigin             string `yaml:"cors_origin" mapstructure:"cors_origin"` // empty disables CORS headers
}

// LoggingConfig represents logging settings.
type LoggingConfig struct {
	Level      string `yaml:"level" mapstructure:"level"`   // debug, info, warn, error
	Format     string `yaml:"format" mapstructure:"format"` // json or text
	Output     string `yaml:"output" mapstructure:"output"` // stdout, stderr, or file path
	MaxSizeMB  int    `yaml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups" mapstructure:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days" mapstructure:"max_age_days"`
	Compress   bool   `yaml:"compress" mapstructure:"compress"`
}

// Count modes.
const (
	CountAlways     = "always"
	CountUnfiltered = "unfiltered"
	CountNever      = "never"
)

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	return &Config{
		Store: StoreConfig{
			Driver:                "mongo",
			URI:                   "mongodb://localhost:27017",
			ConnectTimeoutSeconds: 10,
			ConnectRetries:        3,
			MySQL: MySQLConfig{
				Port:               3306,
				TLS:                "preferred",
				MaxConnections:     10,
				MaxIdleConnections: 5,
				DocumentColumn:     "doc",
				IDColumn:           "id",
			},
		},
		Schema: SchemaConfig{
			SampleSize:  100,
			MaxDepth:    50,
			MaxExamples: 3,
			MaxDistinct: 20,
			MaxScan:     10000,
			Concurrency: 4,
			CacheSize:   128,

			InferTimeoutSeconds: 60,
		},
		Stream: StreamConfig{
			DefaultBatchSize: 10,
			MaxBatchSize:     100,
			CountMode:        CountAlways,
			CountTimeoutMS:   2000,
			CloseTimeoutMS:   5000,
		},
		Server: ServerConfig{
			Listen:                 ":8000",
			ShutdownTimeoutSeconds: 10,
			CORSOrigin:             "*",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "json",
			Output:     "stderr",
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// CountTimeout returns the count deadline as a duration.
func (s StreamConfig) CountTimeout() time.Duration {
	return time.Duration(s.CountTimeoutMS) * time.Millisecond
}

// BatchInterval returns the pause between batches; zero disables pacing.
func (s StreamConfig) BatchInterval() time.Duration {
	return time.Duration(s.BatchIntervalMS) * time.Millisecond
}

// CloseTimeout bounds cursor release.
func (s StreamConfig) CloseTimeout() time.Duration {
	return time.Duration(s.CloseTimeoutMS) * time.Millisecond
}

// ConnectTimeout bounds the initial connection attempt.
func (s StoreConfig) ConnectTimeout() time.Duration {
	return time.Duration(s.ConnectTimeoutSeconds) * time.Second
}

// CacheTTL returns the schema cache lifetime.
func (s SchemaConfig) CacheTTL() time.Duration {
	return time.Duration(s.CacheTTLSeconds) * time.Second
}

// InferTimeout bounds one schema inference.
func (s SchemaConfig) InferTimeout() time.Duration {
	return time.Duration(s.InferTimeoutSeconds) * time.Second
}

// ShutdownTimeout bounds graceful HTTP shutdown.
func (s ServerConfig) ShutdownTimeout() time.Duration {
	return time.Duration(s.ShutdownTimeoutSeconds) * time.Second
}
