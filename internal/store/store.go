// Package store defines the contract the schema sampler and the streaming
// controller consume from a document store backend. Concrete backends live
// in the mongostore and mysqlstore subpackages.
package store

import (
	"context"
	"fmt"
	"io"

	"go.mongodb.org/mongo-driver/bson"
)

// EOF is returned by Cursor.NextBatch once the result set is exhausted.
var EOF = io.EOF

// Namespace addresses one collection inside one database.
type Namespace struct {
	Database   string
	Collection string
}

func (ns Namespace) String() string {
	return fmt.Sprintf("%s.%s", ns.Database, ns.Collection)
}

// NativeQuery is a validated, normalized query in the store's own terms.
// Exactly one of the find fields (Filter/Projection/Sort) or Pipeline is in
// use; IsAggregate tells which.
type NativeQuery struct {
	Namespace  Namespace
	Filter     bson.D
	Projection bson.D
	Sort       bson.D
	Pipeline   []bson.D
	Skip       int64
	Limit      int64 // 0 means unbounded
	BatchSize  int
	aggregate  bool
}

// NewFindQuery returns a find-style query.
func NewFindQuery(ns Namespace) *NativeQuery {
	return &NativeQuery{Namespace: ns, Filter: bson.D{}}
}

// NewAggregateQuery returns a pipeline query.
func NewAggregateQuery(ns Namespace, pipeline []bson.D) *NativeQuery {
	return &NativeQuery{Namespace: ns, Pipeline: pipeline, aggregate: true}
}

// IsAggregate reports whether the query runs as an aggregation pipeline.
func (q *NativeQuery) IsAggregate() bool {
	return q.aggregate
}

// HasFilter reports whether the query restricts the collection at all.
func (q *NativeQuery) HasFilter() bool {
	return len(q.Filter) > 0
}

// Cursor is an incremental handle over a result set. A Cursor is owned by a
// single goroutine; implementations are not safe for concurrent use.
type Cursor interface {
	// NextBatch returns up to n documents in the cursor's native order.
	// When nothing remains it returns (nil, EOF). Implementations may
	// return a final partial batch together with EOF.
	NextBatch(ctx context.Context, n int) ([]bson.D, error)
	// Close releases server-side resources. Safe to call more than once.
	Close(ctx context.Context) error
}

// Store is the document store collaborator.
type Store interface {
	// Count returns the number of documents matching filter. It may be
	// slow; callers bound it with a context deadline.
	Count(ctx context.Context, ns Namespace, filter bson.D) (int64, error)
	// Find opens a cursor for a find-style query.
	Find(ctx context.Context, q *NativeQuery) (Cursor, error)
	// Aggregate opens a cursor for a pipeline query.
	Aggregate(ctx context.Context, q *NativeQuery) (Cursor, error)
	// ListCollections returns collection names in a database, sorted.
	ListCollections(ctx context.Context, database string) ([]string, error)
	// Ping verifies the store is reachable.
	Ping(ctx context.Context) error
	// Close releases the connection pool.
	Close(ctx context.Context) error
}

// RandomSampler is implemented by stores with a native random sampling
// facility. The returned cursor yields at most size documents.
type RandomSampler interface {
	Sample(ctx context.Context, ns Namespace, filter bson.D, size int) (Cursor, error)
}

// Open opens the cursor q asks for.
func Open(ctx context.Context, s Store, q *NativeQuery) (Cursor, error) {
	if q.IsAggregate() {
		return s.Aggregate(ctx, q)
	}
	return s.Find(ctx, q)
}
