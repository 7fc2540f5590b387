// Package memstore is an in-process document store backend. It evaluates a
// small subset of the query language and records cursor activity, which
// makes it the backend of choice for tests and for running the server
// without a database.
package memstore

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/IngaleChinmay04/MongoNexus/internal/apperr"
	"github.com/IngaleChinmay04/MongoNexus/internal/docpath"
	"github.com/IngaleChinmay04/MongoNexus/internal/store"
)

// Options injects failures and latency for testing error paths.
type Options struct {
	CountDelay   time.Duration // Count blocks this long (or until ctx is done)
	CountErr     error         // Count fails with this error
	OpenErr      error         // Find/Aggregate/Sample fail with this error
	BatchErr     error         // NextBatch fails with this error ...
	BatchErrCall int           // ... on this call number (1-based)
}

// Store is an in-memory store.Store.
type Store struct {
	mu          sync.Mutex
	collections map[store.Namespace][]bson.D
	cursors     []*Cursor
	opts        Options
	rng         *rand.Rand
}

var (
	_ store.Store         = (*Store)(nil)
	_ store.RandomSampler = (*Store)(nil)
)

// New creates an empty store.
func New(opts Options) *Store {
	return &Store{
		collections: make(map[store.Namespace][]bson.D),
		opts:        opts,
		rng:         rand.New(rand.NewPCG(1, 2)),
	}
}

// Insert appends documents to a collection, creating it if needed.
func (s *Store) Insert(ns store.Namespace, docs ...bson.D) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.collections[ns] = append(s.collections[ns], docs...)
}

// Load reads one relaxed Extended JSON document per line into ns.
func (s *Store) Load(ns store.Namespace, r io.Reader) (int, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	n := 0
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var doc bson.D
		if err := bson.UnmarshalExtJSON(line, false, &doc); err != nil {
			return n, fmt.Errorf("line %d: %w", n+1, err)
		}
		s.Insert(ns, doc)
		n++
	}
	return n, scanner.Err()
}

// Cursors returns every cursor opened so far, oldest first.
func (s *Store) Cursors() []*Cursor {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Cursor, len(s.cursors))
	copy(out, s.cursors)
	return out
}

// Count implements store.Store.
func (s *Store) Count(ctx context.Context, ns store.Namespace, filter bson.D) (int64, error) {
	if s.opts.CountDelay > 0 {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(s.opts.CountDelay):
		}
	}
	if s.opts.CountErr != nil {
		return 0, s.opts.CountErr
	}
	docs, err := s.matching(ns, filter)
	if err != nil {
		return 0, err
	}
	return int64(len(docs)), nil
}

// Find implements store.Store.
func (s *Store) Find(ctx context.Context, q *store.NativeQuery) (store.Cursor, error) {
	if s.opts.OpenErr != nil {
		return nil, s.opts.OpenErr
	}
	docs, err := s.matching(q.Namespace, q.Filter)
	if err != nil {
		return nil, err
	}
	if len(q.Sort) > 0 {
		sortDocs(docs, q.Sort)
	}
	docs = window(docs, q.Skip, q.Limit)
	if len(q.Projection) > 0 {
		paths, inclusive, keepID, err := docpath.ParseProjection(q.Projection)
		if err != nil {
			return nil, err
		}
		for i := range docs {
			docs[i] = docpath.Project(docs[i], paths, inclusive, keepID)
		}
	}
	return s.newCursor(docs), nil
}

// Aggregate implements store.Store for $match, $sort, $skip, $limit and
// $project stages.
func (s *Store) Aggregate(ctx context.Context, q *store.NativeQuery) (store.Cursor, error) {
	if s.opts.OpenErr != nil {
		return nil, s.opts.OpenErr
	}
	docs, err := s.matching(q.Namespace, nil)
	if err != nil {
		return nil, err
	}
	for _, stage := range q.Pipeline {
		if len(stage) != 1 {
			return nil, fmt.Errorf("stage must have exactly one operator")
		}
		op, arg := stage[0].Key, stage[0].Value
		switch op {
		case "$match":
			filter, _ := arg.(bson.D)
			var kept []bson.D
			for _, d := range docs {
				ok, err := matches(d, filter)
				if err != nil {
					return nil, err
				}
				if ok {
					kept = append(kept, d)
				}
			}
			docs = kept
		case "$sort":
			spec, _ := arg.(bson.D)
			sortDocs(docs, spec)
		case "$skip":
			docs = window(docs, toInt64(arg), 0)
		case "$limit":
			docs = window(docs, 0, toInt64(arg))
		case "$project":
			spec, _ := arg.(bson.D)
			paths, inclusive, keepID, err := docpath.ParseProjection(spec)
			if err != nil {
				return nil, err
			}
			for i := range docs {
				docs[i] = docpath.Project(docs[i], paths, inclusive, keepID)
			}
		default:
			return nil, fmt.Errorf("memstore: stage %s: %w", op, apperr.ErrUnsupported)
		}
	}
	return s.newCursor(docs), nil
}

// Sample implements store.RandomSampler without replacement.
func (s *Store) Sample(ctx context.Context, ns store.Namespace, filter bson.D, size int) (store.Cursor, error) {
	if s.opts.OpenErr != nil {
		return nil, s.opts.OpenErr
	}
	docs, err := s.matching(ns, filter)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.rng.Shuffle(len(docs), func(i, j int) { docs[i], docs[j] = docs[j], docs[i] })
	s.mu.Unlock()
	if size >= 0 && size < len(docs) {
		docs = docs[:size]
	}
	return s.newCursor(docs), nil
}

// ListCollections implements store.Store.
func (s *Store) ListCollections(ctx context.Context, database string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var names []string
	for ns := range s.collections {
		if ns.Database == database {
			names = append(names, ns.Collection)
		}
	}
	sort.Strings(names)
	return names, nil
}

// Ping implements store.Store.
func (s *Store) Ping(ctx context.Context) error { return ctx.Err() }

// Close implements store.Store.
func (s *Store) Close(ctx context.Context) error { return nil }

func (s *Store) matching(ns store.Namespace, filter bson.D) ([]bson.D, error) {
	s.mu.Lock()
	src := s.collections[ns]
	s.mu.Unlock()

	out := make([]bson.D, 0, len(src))
	for _, d := range src {
		ok, err := matches(d, filter)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, d)
		}
	}
	return out, nil
}

func (s *Store) newCursor(docs []bson.D) *Cursor {
	c := &Cursor{docs: docs, opts: s.opts}
	s.mu.Lock()
	s.cursors = append(s.cursors, c)
	s.mu.Unlock()
	return c
}

func window(docs []bson.D, skip, limit int64) []bson.D {
	if skip > 0 {
		if skip >= int64(len(docs)) {
			return nil
		}
		docs = docs[skip:]
	}
	if limit > 0 && limit < int64(len(docs)) {
		docs = docs[:limit]
	}
	return docs
}

// Cursor is the memstore cursor. It records every NextBatch request size
// and every Close call.
type Cursor struct {
	mu       sync.Mutex
	docs     []bson.D
	pos      int
	calls    int
	requests []int
	closes   atomic.Int32
	opts     Options
}

// NextBatch implements store.Cursor.
func (c *Cursor) NextBatch(ctx context.Context, n int) ([]bson.D, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	c.requests = append(c.requests, n)
	if c.closes.Load() > 0 {
		return nil, fmt.Errorf("cursor is closed")
	}
	if c.opts.BatchErr != nil && c.calls == c.opts.BatchErrCall {
		return nil, c.opts.BatchErr
	}
	if c.pos >= len(c.docs) {
		return nil, store.EOF
	}
	end := c.pos + n
	if end > len(c.docs) {
		end = len(c.docs)
	}
	batch := c.docs[c.pos:end]
	c.pos = end
	return batch, nil
}

// Close implements store.Cursor.
func (c *Cursor) Close(ctx context.Context) error {
	c.closes.Add(1)
	return nil
}

// Closes returns how many times Close was called.
func (c *Cursor) Closes() int { return int(c.closes.Load()) }

// Requests returns the batch sizes passed to NextBatch, in call order.
func (c *Cursor) Requests() []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]int, len(c.requests))
	copy(out, c.requests)
	return out
}
