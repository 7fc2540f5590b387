package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/IngaleChinmay04/MongoNexus/internal/config"
	"github.com/IngaleChinmay04/MongoNexus/internal/database"
	"github.com/IngaleChinmay04/MongoNexus/internal/explorer"
	"github.com/IngaleChinmay04/MongoNexus/internal/logger"
	"github.com/IngaleChinmay04/MongoNexus/internal/metrics"
	"github.com/IngaleChinmay04/MongoNexus/internal/render"
)

// GetCLIOverrides returns the CLI flag override values
func GetCLIOverrides() config.Overrides {
	return config.Overrides{
		LogLevel:   logLevel,
		LogFormat:  logFormat,
		Driver:     driver,
		URI:        uri,
		Database:   dbName,
		BatchSize:  batchSize,
		SampleSize: sampleSize,
	}
}

// loadConfig loads the config file, applies CLI overrides and validates
// the result.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	cfg.ApplyOverrides(GetCLIOverrides())
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// app holds what a command needs once the store is connected.
type app struct {
	cfg    *config.Config
	log    *logger.Logger
	db     *database.Manager
	svc    *explorer.Service
	format render.Format
}

// connect loads configuration, builds the logger and opens the store. m
// may be nil. The caller must call close.
func connect(ctx context.Context, m *metrics.Metrics) (*app, error) {
	format, err := render.ParseFormat(output)
	if err != nil {
		return nil, err
	}
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	log, err := logger.New(&cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	db := database.NewManager(&cfg.Store, log)
	if err := db.Connect(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to store: %w", err)
	}

	return &app{
		cfg:    cfg,
		log:    log,
		db:     db,
		svc:    explorer.New(db.Store, cfg, m, log),
		format: format,
	}, nil
}

func (a *app) close() {
	if err := a.db.Close(context.Background()); err != nil {
		a.log.Warnf("Failed to close store: %v", err)
	}
	_ = a.log.Sync()
}

// database returns the --db flag or store.database.
func (a *app) database() (string, error) {
	if a.cfg.Store.Database == "" {
		return "", fmt.Errorf("no database selected: pass --db or set store.database")
	}
	return a.cfg.Store.Database, nil
}

func (a *app) printer(cmd *cobra.Command) *render.Printer {
	return render.NewPrinter(cmd.OutOrStdout(), !noColor)
}
