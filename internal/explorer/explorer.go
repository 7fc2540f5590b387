// Package explorer is the service layer shared by the CLI and the HTTP
// adapter. It composes the store, the schema sampler, the streaming
// controller, an optional schema cache and the metrics.
package explorer

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/invopop/jsonschema"
	"go.mongodb.org/mongo-driver/bson"
	"golang.org/x/sync/singleflight"

	"github.com/IngaleChinmay04/MongoNexus/internal/apperr"
	"github.com/IngaleChinmay04/MongoNexus/internal/config"
	"github.com/IngaleChinmay04/MongoNexus/internal/logger"
	"github.com/IngaleChinmay04/MongoNexus/internal/metrics"
	"github.com/IngaleChinmay04/MongoNexus/internal/query"
	"github.com/IngaleChinmay04/MongoNexus/internal/schema"
	"github.com/IngaleChinmay04/MongoNexus/internal/store"
	"github.com/IngaleChinmay04/MongoNexus/internal/stream"
)

// MaxSampleSize bounds the sample_size a caller may ask for.
const MaxSampleSize = 10000

// Bounds on the documents one buffered find returns.
const (
	DefaultFindLimit = 100
	MaxFindLimit     = 1000
)

// SchemaRequest selects the documents a schema is inferred from.
type SchemaRequest struct {
	Database   string
	Collection string
	Filter     bson.D
	SampleSize int // 0 selects the configured default
}

// Service answers schema, listing and streaming requests.
type Service struct {
	store      store.Store
	sampler    *schema.Sampler
	controller *stream.Controller
	metrics    *metrics.Metrics
	logger     *logger.Logger

	sampleSize   int
	inferTimeout time.Duration
	countTimeout time.Duration
	cache        *expirable.LRU[string, *schema.AggregateSchema]
	group        singleflight.Group
}

// New builds a Service over st. m may be nil.
func New(st store.Store, cfg *config.Config, m *metrics.Metrics, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault()
	}

	sampler := schema.NewSampler(st, schema.SamplerConfig{
		Options: schema.Options{
			MaxDepth:    cfg.Schema.MaxDepth,
			MaxExamples: cfg.Schema.MaxExamples,
			MaxDistinct: cfg.Schema.MaxDistinct,
		},
		MaxScan:     cfg.Schema.MaxScan,
		Concurrency: cfg.Schema.Concurrency,
	}, log)

	controller := stream.NewController(st, stream.OptionsFromConfig(&cfg.Stream), log)
	if m != nil {
		controller.SetObserver(m)
	}

	s := &Service{
		store:        st,
		sampler:      sampler,
		controller:   controller,
		metrics:      m,
		logger:       log,
		sampleSize:   cfg.Schema.SampleSize,
		inferTimeout: cfg.Schema.InferTimeout(),
		countTimeout: cfg.Stream.CountTimeout(),
	}
	if ttl := cfg.Schema.CacheTTL(); ttl > 0 && cfg.Schema.CacheSize > 0 {
		s.cache = expirable.NewLRU[string, *schema.AggregateSchema](cfg.Schema.CacheSize, nil, ttl)
	}
	if s.sampleSize <= 0 {
		s.sampleSize = config.DefaultConfig().Schema.SampleSize
	}
	if s.inferTimeout <= 0 {
		s.inferTimeout = config.DefaultConfig().Schema.InferTimeout()
	}
	return s
}

// Limits returns the bounds stream requests are validated against.
func (s *Service) Limits() query.Limits {
	return s.controller.Limits()
}

// InferSchema samples one collection and returns its aggregate schema.
// Identical concurrent requests share one inference, and results are cached
// when a cache TTL is configured. The result must not be modified.
//
// The shared inference is detached from any single caller: it runs until it
// finishes or the infer timeout passes, while each caller stops waiting when
// its own ctx is done.
func (s *Service) InferSchema(ctx context.Context, req SchemaRequest) (*schema.AggregateSchema, error) {
	size, filter, err := s.validate(req, true)
	if err != nil {
		return nil, err
	}
	req.Filter = filter
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key, err := cacheKey(req, size)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if cached, ok := s.cache.Get(key); ok {
			s.logger.WithCollection(req.Database, req.Collection).Debug("Schema served from cache")
			return cached, nil
		}
	}

	shared := context.WithoutCancel(ctx)
	ch := s.group.DoChan(key, func() (interface{}, error) {
		inferCtx, cancel := context.WithTimeout(shared, s.inferTimeout)
		defer cancel()
		return s.infer(inferCtx, req, size)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		sch := res.Val.(*schema.AggregateSchema)
		if s.cache != nil {
			s.cache.Add(key, sch)
		}
		return sch, nil
	}
}

func (s *Service) infer(ctx context.Context, req SchemaRequest, size int) (*schema.AggregateSchema, error) {
	start := time.Now()
	ns := store.Namespace{Database: req.Database, Collection: req.Collection}
	sch, err := s.sampler.Infer(ctx, ns, size, req.Filter)
	s.observeSchema(sch, time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to infer schema of %s: %w", ns, err)
	}
	return sch, nil
}

// InferJSONSchema exports the inferred schema as a JSON Schema document
// titled with the collection name.
func (s *Service) InferJSONSchema(ctx context.Context, req SchemaRequest) (*jsonschema.Schema, error) {
	sch, err := s.InferSchema(ctx, req)
	if err != nil {
		return nil, err
	}
	return schema.ToJSONSchema(sch, req.Collection), nil
}

// InferDatabase infers every collection of database. Results are not
// cached.
func (s *Service) InferDatabase(ctx context.Context, database string, sampleSize int) (*schema.DatabaseSchema, error) {
	size, _, err := s.validate(SchemaRequest{Database: database, SampleSize: sampleSize}, false)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	out, err := s.sampler.InferDatabase(ctx, database, size)
	if s.metrics != nil {
		docs := 0
		if out != nil {
			for _, c := range out.Collections {
				docs += c.Schema.TotalSampled
			}
		}
		s.metrics.SchemaInferred(docs, time.Since(start), err)
	}
	if err != nil {
		return nil, err
	}
	s.logger.WithFields(map[string]interface{}{"database": database}).Infof(
		"Inferred %d collection schemas in %v", len(out.Collections), time.Since(start))
	return out, nil
}

// ListCollections returns the collection names of database in order.
func (s *Service) ListCollections(ctx context.Context, database string) ([]string, error) {
	if verr := query.ValidateDatabase(database); verr != nil {
		return nil, verr
	}
	names, err := s.store.ListCollections(ctx, database)
	if err != nil {
		return nil, fmt.Errorf("failed to list collections of %s: %w", database, err)
	}
	return names, nil
}

// Prepare validates spec and opens its cursor; see stream.Controller.
func (s *Service) Prepare(ctx context.Context, spec *query.Spec) (*stream.Session, error) {
	return s.controller.Prepare(ctx, spec)
}

// Stream prepares and runs spec; see stream.Controller.
func (s *Service) Stream(ctx context.Context, spec *query.Spec, emit stream.Emitter) (stream.State, error) {
	return s.controller.Stream(ctx, spec, emit)
}

// FindResult is the buffered answer to a find request.
type FindResult struct {
	Documents []bson.D
	// TotalCount counts every match, ignoring skip and limit. It is nil
	// when the count failed or timed out.
	TotalCount *int64
}

// Find runs a find query through the streaming controller and buffers the
// documents. The limit defaults to DefaultFindLimit and may not exceed
// MaxFindLimit; pipelines are only accepted by Stream.
func (s *Service) Find(ctx context.Context, spec *query.Spec) (*FindResult, error) {
	if spec == nil {
		return nil, apperr.Invalid("", "query is required")
	}
	q := *spec
	var errs apperr.ValidationErrors
	if q.IsAggregate() {
		errs = append(errs, apperr.Invalid("pipeline", "is not accepted by find; use the aggregate stream"))
	}
	switch {
	case q.Limit == 0:
		q.Limit = DefaultFindLimit
	case q.Limit > MaxFindLimit:
		errs = append(errs, apperr.Invalid("limit", "must be between 1 and %d", MaxFindLimit))
	}
	if len(errs) > 0 {
		return nil, errs
	}
	if q.BatchSize == 0 {
		q.BatchSize = s.Limits().MaxBatchSize
	}

	out := &FindResult{Documents: []bson.D{}}
	state, err := s.controller.Stream(ctx, &q, func(e stream.Event) error {
		if b, ok := e.(stream.Batch); ok {
			out.Documents = append(out.Documents, b.Documents...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if state != stream.StateCompleted {
		if cerr := ctx.Err(); cerr != nil {
			return nil, cerr
		}
		return nil, fmt.Errorf("find on %s ended %s", q.Namespace(), state)
	}
	out.TotalCount = s.countMatches(ctx, q.Namespace(), q.Filter)
	return out, nil
}

func (s *Service) countMatches(ctx context.Context, ns store.Namespace, filter bson.D) *int64 {
	filter, err := query.NormalizeFilter(filter, s.Limits().CoerceObjectIDs)
	if err != nil {
		return nil
	}
	if s.countTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.countTimeout)
		defer cancel()
	}
	n, err := s.store.Count(ctx, ns, filter)
	if err != nil {
		s.logger.WithCollection(ns.Database, ns.Collection).Warnf("Count failed: %v", err)
		return nil
	}
	return &n
}

// Ping checks the store answers.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// validate checks req and returns the effective sample size and the
// normalized filter.
func (s *Service) validate(req SchemaRequest, needCollection bool) (int, bson.D, error) {
	var errs apperr.ValidationErrors
	if verr := query.ValidateDatabase(req.Database); verr != nil {
		errs = append(errs, verr)
	}
	if needCollection {
		if verr := query.ValidateCollection(req.Collection); verr != nil {
			errs = append(errs, verr)
		}
	}

	size := req.SampleSize
	switch {
	case size == 0:
		size = s.sampleSize
	case size < 0 || size > MaxSampleSize:
		errs = append(errs, apperr.Invalid("sample_size", "must be between 1 and %d", MaxSampleSize))
	}

	filter, err := query.NormalizeFilter(req.Filter, s.controller.Limits().CoerceObjectIDs)
	if err != nil {
		var verrs apperr.ValidationErrors
		if errors.As(err, &verrs) {
			errs = append(errs, verrs...)
		} else {
			return 0, nil, err
		}
	}
	if len(errs) > 0 {
		return 0, nil, errs
	}
	return size, filter, nil
}

func (s *Service) observeSchema(sch *schema.AggregateSchema, took time.Duration, err error) {
	if s.metrics == nil {
		return
	}
	docs := 0
	if sch != nil {
		docs = sch.TotalSampled
	}
	s.metrics.SchemaInferred(docs, took, err)
}

// cacheKey identifies a schema request. The filter is rendered as
// canonical Extended JSON so equal filters share an entry.
func cacheKey(req SchemaRequest, size int) (string, error) {
	raw, err := bson.MarshalExtJSON(req.Filter, true, false)
	if err != nil {
		return "", apperr.Invalid("filter", "cannot be encoded: %v", err)
	}
	return strings.Join([]string{req.Database, req.Collection, strconv.Itoa(size), string(raw)}, "\x00"), nil
}
