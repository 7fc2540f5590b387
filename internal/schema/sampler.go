package schema

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"golang.org/x/sync/errgroup"

	"github.com/IngaleChinmay04/MongoNexus/internal/apperr"
	"github.com/IngaleChinmay04/MongoNexus/internal/logger"
	"github.com/IngaleChinmay04/MongoNexus/internal/store"
)

// DefaultMaxScan bounds the fallback scan when a store cannot sample.
const DefaultMaxScan = 10000

const sampleBatchSize = 100

// SamplerConfig configures a Sampler.
type SamplerConfig struct {
	Options
	MaxScan     int // documents scanned by the reservoir fallback; 0 means unbounded
	Concurrency int // collections inferred at once by InferDatabase
}

// Sampler chooses documents from a collection and drives the Walker and
// Merger over them one document at a time.
type Sampler struct {
	store   store.Store
	cfg     SamplerConfig
	logger  *logger.Logger
	newRand func() *rand.Rand
}

// NewSampler creates a Sampler over st.
func NewSampler(st store.Store, cfg SamplerConfig, log *logger.Logger) *Sampler {
	if log == nil {
		log = logger.NewDefault()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	return &Sampler{
		store:  st,
		cfg:    cfg,
		logger: log,
		newRand: func() *rand.Rand {
			return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
		},
	}
}

// Sample visits at most size documents of ns matching filter, each once,
// chosen approximately uniformly at random. When the collection holds
// fewer than size matching documents, all of them are visited. It returns
// the number of documents visited.
func (s *Sampler) Sample(ctx context.Context, ns store.Namespace, size int, filter bson.D, visit func(bson.D) error) (int, error) {
	if size <= 0 {
		return 0, apperr.Invalid("sample_size", "must be positive, got %d", size)
	}
	if rs, ok := s.store.(store.RandomSampler); ok {
		return s.sampleNative(ctx, rs, ns, size, filter, visit)
	}
	return s.sampleReservoir(ctx, ns, size, filter, visit)
}

func (s *Sampler) sampleNative(ctx context.Context, rs store.RandomSampler, ns store.Namespace, size int, filter bson.D, visit func(bson.D) error) (int, error) {
	cur, err := rs.Sample(ctx, ns, filter, size)
	if err != nil {
		return 0, fmt.Errorf("failed to sample %s: %w", ns, err)
	}
	defer closeQuietly(ctx, cur, s.logger)

	// $sample may hand back the same document twice.
	seen := make(map[string]struct{}, size)
	visited := 0
	for visited < size {
		batch, err := cur.NextBatch(ctx, min(sampleBatchSize, size-visited))
		for _, doc := range batch {
			if visited == size {
				break
			}
			if key, ok := idKey(doc); ok {
				if _, dup := seen[key]; dup {
					continue
				}
				seen[key] = struct{}{}
			}
			if verr := visit(doc); verr != nil {
				return visited, verr
			}
			visited++
		}
		if errors.Is(err, store.EOF) {
			break
		}
		if err != nil {
			return visited, fmt.Errorf("failed to read sample of %s: %w", ns, err)
		}
	}
	return visited, nil
}

// sampleReservoir scans up to MaxScan matching documents and keeps a
// uniform reservoir of size of them.
func (s *Sampler) sampleReservoir(ctx context.Context, ns store.Namespace, size int, filter bson.D, visit func(bson.D) error) (int, error) {
	q := store.NewFindQuery(ns)
	if filter != nil {
		q.Filter = filter
	}
	q.Limit = int64(s.cfg.MaxScan)
	q.BatchSize = sampleBatchSize

	cur, err := s.store.Find(ctx, q)
	if err != nil {
		return 0, fmt.Errorf("failed to scan %s: %w", ns, err)
	}
	defer closeQuietly(ctx, cur, s.logger)

	rng := s.newRand()
	reservoir := make([]bson.D, 0, min(size, sampleBatchSize))
	scanned := 0
	for {
		batch, err := cur.NextBatch(ctx, sampleBatchSize)
		for _, doc := range batch {
			scanned++
			if len(reservoir) < size {
				reservoir = append(reservoir, doc)
				continue
			}
			if j := rng.IntN(scanned); j < size {
				reservoir[j] = doc
			}
		}
		if errors.Is(err, store.EOF) {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("failed to scan %s: %w", ns, err)
		}
	}

	s.logger.Debugf("Reservoir sampled %d of %d scanned documents from %s", len(reservoir), scanned, ns)
	for i, doc := range reservoir {
		if err := visit(doc); err != nil {
			return i, err
		}
	}
	return len(reservoir), nil
}

// Infer samples ns and returns its aggregate schema.
func (s *Sampler) Infer(ctx context.Context, ns store.Namespace, size int, filter bson.D) (*AggregateSchema, error) {
	start := time.Now()
	walker := NewWalker(s.cfg.MaxDepth)
	merger := NewMerger(s.cfg.Options)

	n, err := s.Sample(ctx, ns, size, filter, func(doc bson.D) error {
		merger.Add(walker.Walk(doc))
		return ctx.Err()
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithCollection(ns.Database, ns.Collection).Debugf(
		"Inferred schema from %d documents in %v", n, time.Since(start))
	return merger.Result(), nil
}

// CollectionSchema pairs a collection name with its schema.
type CollectionSchema struct {
	Name   string
	Schema *AggregateSchema
}

// DatabaseSchema holds the schema of every collection in a database.
type DatabaseSchema struct {
	Database    string
	Collections []CollectionSchema
}

// InferDatabase infers every non-system collection of database, running up
// to Concurrency collections at once. The first failure cancels the rest.
func (s *Sampler) InferDatabase(ctx context.Context, database string, size int) (*DatabaseSchema, error) {
	names, err := s.store.ListCollections(ctx, database)
	if err != nil {
		return nil, fmt.Errorf("failed to list collections of %s: %w", database, err)
	}

	var wanted []string
	for _, name := range names {
		if !strings.HasPrefix(name, "system.") {
			wanted = append(wanted, name)
		}
	}

	out := &DatabaseSchema{Database: database, Collections: make([]CollectionSchema, len(wanted))}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for i, name := range wanted {
		g.Go(func() error {
			sch, err := s.Infer(gctx, store.Namespace{Database: database, Collection: name}, size, nil)
			if err != nil {
				return fmt.Errorf("collection %s: %w", name, err)
			}
			out.Collections[i] = CollectionSchema{Name: name, Schema: sch}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func idKey(doc bson.D) (string, bool) {
	for _, e := range doc {
		if e.Key == "_id" {
			return fmt.Sprintf("%T|%v", e.Value, e.Value), true
		}
	}
	return "", false
}

func closeQuietly(ctx context.Context, cur store.Cursor, log *logger.Logger) {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := cur.Close(cctx); err != nil {
		log.Warnf("Failed to close sampling cursor: %v", err)
	}
}
