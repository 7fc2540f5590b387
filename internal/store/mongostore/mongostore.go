// Package mongostore implements store.Store on the official MongoDB driver.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.mongodb.org/mongo-driver/x/mongo/driver/topology"

	"github.com/IngaleChinmay04/MongoNexus/internal/apperr"
	"github.com/IngaleChinmay04/MongoNexus/internal/store"
)

// Server error codes that mean the credentials were rejected.
const (
	codeUnauthorized         = 13
	codeAuthenticationFailed = 18
)

// Store is a store.Store backed by a mongo.Client.
type Store struct {
	client *mongo.Client
}

var (
	_ store.Store         = (*Store)(nil)
	_ store.RandomSampler = (*Store)(nil)
)

// Connect creates a client for uri. The driver connects lazily; call Ping
// to verify the deployment is reachable.
func Connect(ctx context.Context, uri string, timeout time.Duration) (*Store, error) {
	opts := options.Client().ApplyURI(uri).SetAppName("mongonexus")
	if timeout > 0 {
		opts.SetConnectTimeout(timeout).SetServerSelectionTimeout(timeout)
	}
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, &apperr.ConnectivityError{Op: "connect", Err: err}
	}
	return New(client), nil
}

// New wraps an existing client.
func New(client *mongo.Client) *Store {
	return &Store{client: client}
}

func (s *Store) collection(ns store.Namespace) *mongo.Collection {
	return s.client.Database(ns.Database).Collection(ns.Collection)
}

// Count uses the collection metadata when there is no filter and a real
// count otherwise.
func (s *Store) Count(ctx context.Context, ns store.Namespace, filter bson.D) (int64, error) {
	coll := s.collection(ns)
	var (
		n   int64
		err error
	)
	if len(filter) == 0 {
		n, err = coll.EstimatedDocumentCount(ctx)
	} else {
		n, err = coll.CountDocuments(ctx, filter)
	}
	if err != nil {
		return 0, classify("count", err)
	}
	return n, nil
}

// Find implements store.Store.
func (s *Store) Find(ctx context.Context, q *store.NativeQuery) (store.Cursor, error) {
	opts := options.Find()
	if q.BatchSize > 0 {
		opts.SetBatchSize(int32(q.BatchSize))
	}
	if len(q.Projection) > 0 {
		opts.SetProjection(q.Projection)
	}
	if len(q.Sort) > 0 {
		opts.SetSort(q.Sort)
	}
	if q.Skip > 0 {
		opts.SetSkip(q.Skip)
	}
	if q.Limit > 0 {
		opts.SetLimit(q.Limit)
	}

	filter := q.Filter
	if filter == nil {
		filter = bson.D{}
	}
	cur, err := s.collection(q.Namespace).Find(ctx, filter, opts)
	if err != nil {
		return nil, classify("find", err)
	}
	return &Cursor{cur: cur}, nil
}

// Aggregate implements store.Store.
func (s *Store) Aggregate(ctx context.Context, q *store.NativeQuery) (store.Cursor, error) {
	opts := options.Aggregate()
	if q.BatchSize > 0 {
		opts.SetBatchSize(int32(q.BatchSize))
	}
	pipeline := make(mongo.Pipeline, len(q.Pipeline))
	copy(pipeline, q.Pipeline)

	cur, err := s.collection(q.Namespace).Aggregate(ctx, pipeline, opts)
	if err != nil {
		return nil, classify("aggregate", err)
	}
	return &Cursor{cur: cur}, nil
}

// Sample runs {$match: filter}, {$sample: {size}}. $sample may return the
// same document more than once.
func (s *Store) Sample(ctx context.Context, ns store.Namespace, filter bson.D, size int) (store.Cursor, error) {
	pipeline := mongo.Pipeline{}
	if len(filter) > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$match", Value: filter}})
	}
	pipeline = append(pipeline, bson.D{{Key: "$sample", Value: bson.D{{Key: "size", Value: size}}}})

	cur, err := s.collection(ns).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, classify("sample", err)
	}
	return &Cursor{cur: cur}, nil
}

// ListCollections implements store.Store.
func (s *Store) ListCollections(ctx context.Context, database string) ([]string, error) {
	names, err := s.client.Database(database).ListCollectionNames(ctx, bson.D{})
	if err != nil {
		return nil, classify("list collections", err)
	}
	sort.Strings(names)
	return names, nil
}

// Ping checks the primary is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx, readpref.Primary()); err != nil {
		return &apperr.ConnectivityError{Op: "ping", Err: err}
	}
	return nil
}

// Close disconnects the client.
func (s *Store) Close(ctx context.Context) error {
	if err := s.client.Disconnect(ctx); err != nil && !errors.Is(err, mongo.ErrClientDisconnected) {
		return fmt.Errorf("failed to disconnect: %w", err)
	}
	return nil
}

// Cursor adapts *mongo.Cursor to store.Cursor.
type Cursor struct {
	cur    *mongo.Cursor
	closed bool
}

// NextBatch decodes up to n documents. The driver fetches from the server
// in batches of the query's BatchSize; this only draws from them.
func (c *Cursor) NextBatch(ctx context.Context, n int) ([]bson.D, error) {
	if c.closed {
		return nil, fmt.Errorf("cursor is closed")
	}
	out := make([]bson.D, 0, n)
	for len(out) < n {
		if !c.cur.Next(ctx) {
			if err := c.cur.Err(); err != nil {
				return out, classify("next batch", err)
			}
			return out, store.EOF
		}
		var doc bson.D
		if err := c.cur.Decode(&doc); err != nil {
			return out, fmt.Errorf("failed to decode document: %w", err)
		}
		out = append(out, doc)
	}
	return out, nil
}

// Close kills the server-side cursor. Calling it again is a no-op.
func (c *Cursor) Close(ctx context.Context) error {
	if c.closed {
		return nil
	}
	c.closed = true
	if err := c.cur.Close(ctx); err != nil {
		return classify("close cursor", err)
	}
	return nil
}

// classify turns network, server selection and authentication failures
// into apperr.ConnectivityError and leaves everything else wrapped as is.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}

	var sel topology.ServerSelectionError
	var cmd mongo.CommandError
	switch {
	case mongo.IsNetworkError(err),
		errors.As(err, &sel),
		errors.Is(err, mongo.ErrClientDisconnected):
		return &apperr.ConnectivityError{Op: op, Err: err}
	case errors.As(err, &cmd) && (cmd.Code == codeAuthenticationFailed || cmd.Code == codeUnauthorized):
		return &apperr.ConnectivityError{Op: op, Err: err}
	}
	return fmt.Errorf("%s: %w", op, err)
}
