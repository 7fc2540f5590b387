package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// Version information (set via ldflags at build time)
var (
	Version = "0.0.1-dev"
	Commit  = "unknown"
)

// CLI flags that override config file values
var (
	cfgFile    string
	logLevel   string
	logFormat  string
	driver     string
	uri        string
	dbName     string
	batchSize  int
	sampleSize int
	output     string
	noColor    bool
)

var rootCmd = &cobra.Command{
	Use:   "mongonexus",
	Short: "Schema explorer and streaming query runner for document stores",
	Long: `MongoNexus infers the schema of document collections by sampling them
and runs find and aggregate queries as paced streams of batches.

Features:
  - Schema inference with type unions, optionality and string profiling
  - JSON Schema export of inferred schemas
  - Streaming find/aggregate with bounded batches and clean cancellation
  - MongoDB, MySQL (JSON document tables) and in-memory fixture backends
  - HTTP API with Server-Sent Events and Prometheus metrics`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	// Config file flag
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"Path to configuration file (defaults apply when omitted)")

	// Logging overrides
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"Override log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "",
		"Override log format (json, text)")

	// Store overrides
	rootCmd.PersistentFlags().StringVar(&driver, "driver", "",
		"Override store driver (mongo, mysql, memory)")
	rootCmd.PersistentFlags().StringVar(&uri, "uri", "",
		"Override store URI (or fixture directory for the memory driver)")
	rootCmd.PersistentFlags().StringVarP(&dbName, "db", "d", "",
		"Database to use (overrides store.database)")

	// Processing overrides
	rootCmd.PersistentFlags().IntVar(&batchSize, "batch-size", 0,
		"Override default stream batch size")
	rootCmd.PersistentFlags().IntVar(&sampleSize, "sample-size", 0,
		"Override schema sample size")

	// Output
	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", "table",
		"Output format (table, json, yaml)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false,
		"Disable colored output")
}

// GetConfigFile returns the config file path
func GetConfigFile() string {
	return cfgFile
}
