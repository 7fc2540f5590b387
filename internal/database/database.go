// Package database opens and closes the configured document store backend.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql" // MySQL driver

	"github.com/IngaleChinmay04/MongoNexus/internal/config"
	"github.com/IngaleChinmay04/MongoNexus/internal/logger"
	"github.com/IngaleChinmay04/MongoNexus/internal/store"
	"github.com/IngaleChinmay04/MongoNexus/internal/store/memstore"
	"github.com/IngaleChinmay04/MongoNexus/internal/store/mongostore"
	"github.com/IngaleChinmay04/MongoNexus/internal/store/mysqlstore"
)

// Manager owns the connection to the configured backend.
type Manager struct {
	Store   store.Store
	config  *config.StoreConfig
	logger  *logger.Logger
	backoff time.Duration
}

// NewManager creates a new manager from the store configuration.
func NewManager(cfg *config.StoreConfig, log *logger.Logger) *Manager {
	if log == nil {
		log = logger.NewDefault()
	}
	return &Manager{
		config:  cfg,
		logger:  log,
		backoff: time.Second,
	}
}

// Connect opens the backend named by store.driver and verifies it answers.
func (m *Manager) Connect(ctx context.Context) error {
	var (
		st  store.Store
		err error
	)
	switch m.config.Driver {
	case "mongo":
		st, err = m.connectWithRetry(ctx, "mongo", func(ctx context.Context) (store.Store, error) {
			return mongostore.Connect(ctx, m.config.URI, m.config.ConnectTimeout())
		})
	case "mysql":
		st, err = m.connectWithRetry(ctx, "mysql", m.openMySQL)
	case "memory":
		st, err = OpenFixtures(m.config.URI)
	default:
		return fmt.Errorf("unknown store driver %q", m.config.Driver)
	}
	if err != nil {
		return fmt.Errorf("failed to connect to %s store: %w", m.config.Driver, err)
	}
	m.Store = st
	m.logger.Infof("Connected to %s store", m.config.Driver)
	return nil
}

// connectWithRetry attempts to connect with exponential backoff.
func (m *Manager) connectWithRetry(ctx context.Context, name string, open func(context.Context) (store.Store, error)) (store.Store, error) {
	var err error

	maxRetries := max(m.config.ConnectRetries, 1)
	backoff := m.backoff

	for i := 0; i < maxRetries; i++ {
		var st store.Store
		st, err = open(ctx)
		if err == nil {
			pingErr := m.ping(ctx, st)
			if pingErr == nil {
				return st, nil
			}
			_ = st.Close(context.WithoutCancel(ctx))
			err = pingErr
		}

		if i < maxRetries-1 {
			m.logger.Warnf("Connecting to %s failed (attempt %d/%d), retrying in %v: %v", name, i+1, maxRetries, backoff, err)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
				backoff *= 2 // Exponential backoff
			}
		}
	}

	return nil, fmt.Errorf("failed after %d attempts: %w", maxRetries, err)
}

func (m *Manager) ping(ctx context.Context, st store.Store) error {
	if d := m.config.ConnectTimeout(); d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}
	return st.Ping(ctx)
}

func (m *Manager) openMySQL(ctx context.Context) (store.Store, error) {
	cfg := &m.config.MySQL
	db, err := sql.Open("mysql", BuildDSN(cfg, m.config.Database))
	if err != nil {
		return nil, err
	}

	// Configure connection pool
	if cfg.MaxConnections > 0 {
		db.SetMaxOpenConns(cfg.MaxConnections)
	}
	if cfg.MaxIdleConnections > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConnections)
	}
	db.SetConnMaxLifetime(10 * time.Minute)

	return mysqlstore.New(db, mysqlstore.Options{
		DocumentColumn: cfg.DocumentColumn,
		IDColumn:       cfg.IDColumn,
	}), nil
}

// BuildDSN constructs a MySQL DSN from configuration.
func BuildDSN(cfg *config.MySQLConfig, database string) string {
	// Format: user:password@tcp(host:port)/database?params
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s",
		cfg.User,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		database,
	)

	params := "?parseTime=true&interpolateParams=false"
	switch cfg.TLS {
	case "disable":
		params += "&tls=false"
	case "required":
		params += "&tls=true"
	case "preferred", "":
		params += "&tls=preferred"
	}

	return dsn + params
}

// OpenFixtures builds an in-memory store from dir, where every
// <dir>/<database>/<collection>.jsonl file holds one relaxed Extended JSON
// document per line. An empty dir yields an empty store.
func OpenFixtures(dir string) (*memstore.Store, error) {
	st := memstore.New(memstore.Options{})
	if dir == "" {
		return st, nil
	}

	dbs, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixture directory: %w", err)
	}
	for _, db := range dbs {
		if !db.IsDir() {
			continue
		}
		files, err := os.ReadDir(filepath.Join(dir, db.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read fixture database %s: %w", db.Name(), err)
		}
		for _, f := range files {
			ext := filepath.Ext(f.Name())
			if f.IsDir() || (ext != ".jsonl" && ext != ".ndjson") {
				continue
			}
			ns := store.Namespace{Database: db.Name(), Collection: strings.TrimSuffix(f.Name(), ext)}
			if err := loadFixture(st, ns, filepath.Join(dir, db.Name(), f.Name())); err != nil {
				return nil, err
			}
		}
	}
	return st, nil
}

func loadFixture(st *memstore.Store, ns store.Namespace, path string) error {
	fh, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open fixture %s: %w", ns, err)
	}
	defer fh.Close()
	if _, err := st.Load(ns, fh); err != nil {
		return fmt.Errorf("failed to load fixture %s: %w", ns, err)
	}
	return nil
}

// Close closes the backend connection.
func (m *Manager) Close(ctx context.Context) error {
	if m.Store == nil {
		return nil
	}
	if err := m.Store.Close(ctx); err != nil {
		return fmt.Errorf("store close: %w", err)
	}
	return nil
}

// Ping verifies the connection is alive.
func (m *Manager) Ping(ctx context.Context) error {
	if m.Store == nil {
		return fmt.Errorf("store is not connected")
	}
	return m.Store.Ping(ctx)
}
