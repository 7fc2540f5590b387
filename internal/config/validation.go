package config

import (
	"fmt"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("validation failed:\n  - %s", strings.Join(msgs, "\n  - "))
}

// Validate checks the configuration for required fields and valid values.
func (c *Config) Validate() error {
	var errors ValidationErrors

	errors = append(errors, c.validateStore()...)
	errors = append(errors, c.validateSchema()...)
	errors = append(errors, c.validateStream()...)
	errors = append(errors, c.validateServer()...)
	errors = append(errors, c.validateLogging()...)

	if len(errors) > 0 {
		return errors
	}
	return nil
}

func (c *Config) validateStore() ValidationErrors {
	var errors ValidationErrors

	switch c.Store.Driver {
	case "mongo":
		if c.Store.URI == "" {
			errors = append(errors, ValidationError{
				Field:   "store.uri",
				Message: "uri is required for the mongo driver",
			})
		}
	case "mysql":
		errors = append(errors, c.validateMySQL()...)
	case "memory":
	default:
		errors = append(errors, ValidationError{
			Field:   "store.driver",
			Message: "driver must be 'mongo', 'mysql', or 'memory'",
		})
	}

	if c.Store.ConnectTimeoutSeconds < 0 {
		errors = append(errors, ValidationError{
			Field:   "store.connect_timeout_seconds",
			Message: "connect_timeout_seconds cannot be negative",
		})
	}

	if c.Store.ConnectRetries < 0 {
		errors = append(errors, ValidationError{
			Field:   "store.connect_retries",
			Message: "connect_retries cannot be negative",
		})
	}

	return errors
}

func (c *Config) validateMySQL() ValidationErrors {
	var errors ValidationErrors
	db := c.Store.MySQL

	if db.Host == "" {
		errors = append(errors, ValidationError{
			Field:   "store.mysql.host",
			Message: "host is required",
		})
	}

	if db.Port <= 0 || db.Port > 65535 {
		errors = append(errors, ValidationError{
			Field:   "store.mysql.port",
			Message: "port must be between 1 and 65535",
		})
	}

	if db.User == "" {
		errors = append(errors, ValidationError{
			Field:   "store.mysql.user",
			Message: "user is required",
		})
	}

	validTLS := map[string]bool{"disable": true, "preferred": true, "required": true, "": true}
	if !validTLS[db.TLS] {
		errors = append(errors, ValidationError{
			Field:   "store.mysql.tls",
			Message: "tls must be 'disable', 'preferred', or 'required'",
		})
	}

	if db.MaxConnections < 0 {
		errors = append(errors, ValidationError{
			Field:   "store.mysql.max_connections",
			Message: "max_connections cannot be negative",
		})
	}

	if db.MaxIdleConnections < 0 {
		errors = append(errors, ValidationError{
			Field:   "store.mysql.max_idle_connections",
			Message: "max_idle_connections cannot be negative",
		})
	}

	if db.DocumentColumn == "" {
		errors = append(errors, ValidationError{
			Field:   "store.mysql.document_column",
			Message: "document_column is required",
		})
	}

	return errors
}

func (c *Config) validateSchema() ValidationErrors {
	var errors ValidationErrors

	if c.Schema.SampleSize <= 0 {
		errors = append(errors, ValidationError{
			Field:   "schema.sample_size",
			Message: "sample_size must be positive",
		})
	}

	if c.Schema.MaxDepth <= 0 {
		errors = append(errors, ValidationError{
			Field:   "schema.max_depth",
			Message: "max_depth must be positive",
		})
	}

	if c.Schema.MaxExamples < 0 {
		errors = append(errors, ValidationError{
			Field:   "schema.max_examples",
			Message: "max_examples cannot be negative",
		})
	}

	if c.Schema.MaxDistinct < 0 {
		errors = append(errors, ValidationError{
			Field:   "schema.max_distinct",
			Message: "max_distinct cannot be negative",
		})
	}

	if c.Schema.MaxScan < c.Schema.SampleSize {
		errors = append(errors, ValidationError{
			Field:   "schema.max_scan",
			Message: "max_scan must be at least sample_size",
		})
	}

	if c.Schema.Concurrency <= 0 {
		errors = append(errors, ValidationError{
			Field:   "schema.concurrency",
			Message: "concurrency must be positive",
		})
	}

	if c.Schema.CacheSize < 0 || c.Schema.CacheTTLSeconds < 0 {
		errors = append(errors, ValidationError{
			Field:   "schema.cache_size",
			Message: "cache_size and cache_ttl_seconds cannot be negative",
		})
	}

	if c.Schema.InferTimeoutSeconds <= 0 {
		errors = append(errors, ValidationError{
			Field:   "schema.infer_timeout_seconds",
			Message: "infer_timeout_seconds must be positive",
		})
	}

	return errors
}

func (c *Config) validateStream() ValidationErrors {
	var errors ValidationErrors

	if c.Stream.MaxBatchSize <= 0 {
		errors = append(errors, ValidationError{
			Field:   "stream.max_batch_size",
			Message: "max_batch_size must be positive",
		})
	}

	if c.Stream.DefaultBatchSize <= 0 || c.Stream.DefaultBatchSize > c.Stream.MaxBatchSize {
		errors = append(errors, ValidationError{
			Field:   "stream.default_batch_size",
			Message: fmt.Sprintf("default_batch_size must be between 1 and %d", c.Stream.MaxBatchSize),
		})
	}

	if c.Stream.MaxLimit < 0 {
		errors = append(errors, ValidationError{
			Field:   "stream.max_limit",
			Message: "max_limit cannot be negative",
		})
	}

	validModes := map[string]bool{CountAlways: true, CountUnfiltered: true, CountNever: true}
	if !validModes[c.Stream.CountMode] {
		errors = append(errors, ValidationError{
			Field:   "stream.count_mode",
			Message: "count_mode must be 'always', 'unfiltered', or 'never'",
		})
	}

	if c.Stream.CountTimeoutMS < 0 || c.Stream.BatchIntervalMS < 0 {
		errors = append(errors, ValidationError{
			Field:   "stream.count_timeout_ms",
			Message: "count_timeout_ms and batch_interval_ms cannot be negative",
		})
	}

	if c.Stream.CloseTimeoutMS <= 0 {
		errors = append(errors, ValidationError{
			Field:   "stream.close_timeout_ms",
			Message: "close_timeout_ms must be positive",
		})
	}

	return errors
}

func (c *Config) validateServer() ValidationErrors {
	var errors ValidationErrors

	if c.Server.Listen == "" {
		errors = append(errors, ValidationError{
			Field:   "server.listen",
			Message: "listen address is required",
		})
	}

	if c.Server.ShutdownTimeoutSeconds < 0 {
		errors = append(errors, ValidationError{
			Field:   "server.shutdown_timeout_seconds",
			Message: "shutdown_timeout_seconds cannot be negative",
		})
	}

	return errors
}

func (c *Config) validateLogging() ValidationErrors {
	var errors ValidationErrors

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true, "": true}
	if !validLevels[c.Logging.Level] {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Message: "level must be 'debug', 'info', 'warn', or 'error'",
		})
	}

	validFormats := map[string]bool{"json": true, "text": true, "": true}
	if !validFormats[c.Logging.Format] {
		errors = append(errors, ValidationError{
			Field:   "logging.format",
			Message: "format must be 'json' or 'text'",
		})
	}

	if c.Logging.MaxSizeMB < 0 || c.Logging.MaxBackups < 0 || c.Logging.MaxAgeDays < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Message: "rotation settings cannot be negative",
		})
	}

	return errors
}
