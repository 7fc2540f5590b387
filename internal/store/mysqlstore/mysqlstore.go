// Package mysqlstore implements store.Store over MySQL tables that keep one
// document per row in a JSON column. Databases map to MySQL schemas and
// collections to tables. Documents are stored as relaxed Extended JSON.
//
// Filters support equality, $ne, $gt, $gte, $lt, $lte, $in, $nin, $exists,
// $and, $or and $nor; projections are applied after decoding. Aggregation
// pipelines are not supported.
package mysqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/IngaleChinmay04/MongoNexus/internal/apperr"
	"github.com/IngaleChinmay04/MongoNexus/internal/docpath"
	"github.com/IngaleChinmay04/MongoNexus/internal/store"
)

// maxRows stands in for "no limit" when only an offset is given.
const maxRows = "18446744073709551615"

// MySQL server errors that mean the credentials were rejected.
const (
	erAccessDenied   = 1045
	erDBAccessDenied = 1044
)

// Options names the columns of a document table.
type Options struct {
	DocumentColumn string
	IDColumn       string
}

// Store is a store.Store over a *sql.DB.
type Store struct {
	db   *sql.DB
	opts Options
}

var (
	_ store.Store         = (*Store)(nil)
	_ store.RandomSampler = (*Store)(nil)
)

// New wraps db. Empty column names default to "doc" and "id".
func New(db *sql.DB, opts Options) *Store {
	if opts.DocumentColumn == "" {
		opts.DocumentColumn = "doc"
	}
	if opts.IDColumn == "" {
		opts.IDColumn = "id"
	}
	return &Store{db: db, opts: opts}
}

// Count implements store.Store.
func (s *Store) Count(ctx context.Context, ns store.Namespace, filter bson.D) (int64, error) {
	table, err := tableName(ns)
	if err != nil {
		return 0, err
	}
	b := newSQLBuilder(s.opts.DocumentColumn)
	where, err := b.where(filter)
	if err != nil {
		return 0, err
	}

	var n int64
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s", table, where)
	if err := s.db.QueryRowContext(ctx, query, b.args...).Scan(&n); err != nil {
		return 0, classify("count", err)
	}
	return n, nil
}

// Find implements store.Store.
func (s *Store) Find(ctx context.Context, q *store.NativeQuery) (store.Cursor, error) {
	table, err := tableName(q.Namespace)
	if err != nil {
		return nil, err
	}

	var proj projection
	if len(q.Projection) > 0 {
		proj.paths, proj.inclusive, proj.keepID, err = docpath.ParseProjection(q.Projection)
		if err != nil {
			return nil, fmt.Errorf("mysql backend: %v: %w", err, apperr.ErrUnsupported)
		}
		proj.enabled = true
	}

	b := newSQLBuilder(s.opts.DocumentColumn)
	where, err := b.where(q.Filter)
	if err != nil {
		return nil, err
	}
	order, err := b.orderBy(q.Sort, s.opts.IDColumn)
	if err != nil {
		return nil, err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT %s FROM %s WHERE %s ORDER BY %s",
		quoteIdentifier(s.opts.DocumentColumn), table, where, order)
	args := b.args
	switch {
	case q.Limit > 0:
		sb.WriteString(" LIMIT ? OFFSET ?")
		args = append(args, q.Limit, q.Skip)
	case q.Skip > 0:
		sb.WriteString(" LIMIT " + maxRows + " OFFSET ?")
		args = append(args, q.Skip)
	}

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, classify("find", err)
	}
	return &Cursor{rows: rows, proj: proj}, nil
}

// Aggregate is not available on this backend.
func (s *Store) Aggregate(ctx context.Context, q *store.NativeQuery) (store.Cursor, error) {
	return nil, fmt.Errorf("mysql backend: aggregation pipelines: %w", apperr.ErrUnsupported)
}

// Sample draws size random matching rows with ORDER BY RAND().
func (s *Store) Sample(ctx context.Context, ns store.Namespace, filter bson.D, size int) (store.Cursor, error) {
	table, err := tableName(ns)
	if err != nil {
		return nil, err
	}
	b := newSQLBuilder(s.opts.DocumentColumn)
	where, err := b.where(filter)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s ORDER BY RAND() LIMIT ?",
		quoteIdentifier(s.opts.DocumentColumn), table, where)
	rows, err := s.db.QueryContext(ctx, query, append(b.args, size)...)
	if err != nil {
		return nil, classify("sample", err)
	}
	return &Cursor{rows: rows}, nil
}

// ListCollections returns the tables of database that have the document
// column.
func (s *Store) ListCollections(ctx context.Context, database string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT TABLE_NAME FROM information_schema.COLUMNS WHERE TABLE_SCHEMA = ? AND COLUMN_NAME = ? ORDER BY TABLE_NAME",
		database, s.opts.DocumentColumn)
	if err != nil {
		return nil, classify("list collections", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan table name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("list collections", err)
	}
	return names, nil
}

// Ping implements store.Store.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return &apperr.ConnectivityError{Op: "ping", Err: err}
	}
	return nil
}

// Close closes the connection pool.
func (s *Store) Close(ctx context.Context) error {
	return s.db.Close()
}

type projection struct {
	enabled   bool
	paths     []docpath.Path
	inclusive bool
	keepID    bool
}

// Cursor streams rows from a *sql.Rows.
type Cursor struct {
	rows   *sql.Rows
	proj   projection
	closed bool
}

// NextBatch implements store.Cursor.
func (c *Cursor) NextBatch(ctx context.Context, n int) ([]bson.D, error) {
	if c.closed {
		return nil, fmt.Errorf("cursor is closed")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]bson.D, 0, n)
	for len(out) < n {
		if !c.rows.Next() {
			if err := c.rows.Err(); err != nil {
				return out, classify("next batch", err)
			}
			return out, store.EOF
		}
		var raw []byte
		if err := c.rows.Scan(&raw); err != nil {
			return out, fmt.Errorf("failed to scan document: %w", err)
		}
		var doc bson.D
		if err := bson.UnmarshalExtJSON(raw, false, &doc); err != nil {
			return out, fmt.Errorf("failed to decode document: %w", err)
		}
		if c.proj.enabled {
			doc = docpath.Project(doc, c.proj.paths, c.proj.inclusive, c.proj.keepID)
		}
		out = append(out, doc)
	}
	return out, nil
}

// Close implements store.Cursor.
func (c *Cursor) Close(ctx context.Context) error {
	if c.closed {
		return nil
	}
	c.closed = true
	return c.rows.Close()
}

func classify(op string, err error) error {
	var me *mysql.MySQLError
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%s: %w", op, err)
	case errors.As(err, &me) && (me.Number == erAccessDenied || me.Number == erDBAccessDenied):
		return &apperr.ConnectivityError{Op: op, Err: err}
	case errors.Is(err, mysql.ErrInvalidConn), errors.Is(err, sql.ErrConnDone):
		return &apperr.ConnectivityError{Op: op, Err: err}
	}
	return fmt.Errorf("%s: %w", op, err)
}
