package config

import (
	"strings"
	"testing"
)

func TestValidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Store.Driver = "mysql"
	cfg.Store.MySQL.Host = "localhost"
	cfg.Store.MySQL.User = "root"

	if err := cfg.Validate(); err != nil {
		t.Errorf("expected no validation errors, got: %v", err)
	}
}

func TestValidationFailures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"unknown driver", func(c *Config) { c.Store.Driver = "redis" }, "store.driver"},
		{"mongo without uri", func(c *Config) { c.Store.URI = "" }, "store.uri"},
		{"mysql without host", func(c *Config) {
			c.Store.Driver = "mysql"
			c.Store.MySQL.User = "root"
		}, "store.mysql.host"},
		{"mysql bad port", func(c *Config) {
			c.Store.Driver = "mysql"
			c.Store.MySQL.Host = "localhost"
			c.Store.MySQL.User = "root"
			c.Store.MySQL.Port = 99999
		}, "store.mysql.port"},
		{"zero sample size", func(c *Config) { c.Schema.SampleSize = 0 }, "schema.sample_size"},
		{"scan below sample", func(c *Config) { c.Schema.MaxScan = 10 }, "schema.max_scan"},
		{"zero depth", func(c *Config) { c.Schema.MaxDepth = 0 }, "schema.max_depth"},
		{"zero concurrency", func(c *Config) { c.Schema.Concurrency = 0 }, "schema.concurrency"},
		{"zero infer timeout", func(c *Config) { c.Schema.InferTimeoutSeconds = 0 }, "schema.infer_timeout_seconds"},
		{"batch above max", func(c *Config) { c.Stream.DefaultBatchSize = 500 }, "stream.default_batch_size"},
		{"bad count mode", func(c *Config) { c.Stream.CountMode = "sometimes" }, "stream.count_mode"},
		{"negative limit", func(c *Config) { c.Stream.MaxLimit = -1 }, "stream.max_limit"},
		{"no listen", func(c *Config) { c.Server.Listen = "" }, "server.listen"},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }, "logging.level"},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatalf("expected validation error mentioning %q", tt.field)
			}
			if !strings.Contains(err.Error(), tt.field) {
				t.Errorf("expected error to mention %q, got: %v", tt.field, err)
			}
		})
	}
}

func TestMultipleErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Schema.SampleSize = 0
	cfg.Logging.Format = "xml"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation errors")
	}

	verrs, ok := err.(ValidationErrors)
	if !ok {
		t.Fatalf("expected ValidationErrors, got %T", err)
	}
	if len(verrs) != 2 {
		t.Errorf("expected 2 errors, got %d: %v", len(verrs), verrs)
	}
	if !strings.HasPrefix(err.Error(), "validation failed:") {
		t.Errorf("unexpected message: %s", err.Error())
	}
}
