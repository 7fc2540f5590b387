package stream

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"golang.org/x/time/rate"

	"github.com/IngaleChinmay04/MongoNexus/internal/apperr"
	"github.com/IngaleChinmay04/MongoNexus/internal/config"
	"github.com/IngaleChinmay04/MongoNexus/internal/logger"
	"github.com/IngaleChinmay04/MongoNexus/internal/query"
	"github.com/IngaleChinmay04/MongoNexus/internal/store"
)

const defaultCloseTimeout = 5 * time.Second

// Options tune a Controller.
type Options struct {
	Limits        query.Limits
	CountMode     string        // config.CountAlways, CountUnfiltered or CountNever
	CountTimeout  time.Duration // 0 means no deadline beyond the caller's
	BatchInterval time.Duration // minimum spacing between pulls; 0 disables pacing
	CloseTimeout  time.Duration
}

// OptionsFromConfig builds Options from the stream section of the config.
func OptionsFromConfig(cfg *config.StreamConfig) Options {
	return Options{
		Limits: query.Limits{
			DefaultBatchSize: cfg.DefaultBatchSize,
			MaxBatchSize:     cfg.MaxBatchSize,
			MaxLimit:         cfg.MaxLimit,
			CoerceObjectIDs:  true,
		},
		CountMode:     cfg.CountMode,
		CountTimeout:  cfg.CountTimeout(),
		BatchInterval: cfg.BatchInterval(),
		CloseTimeout:  cfg.CloseTimeout(),
	}
}

// Observer receives session telemetry. *metrics.Metrics satisfies it.
type Observer interface {
	SessionFinished(state string)
	BatchPulled(docs int, took time.Duration)
}

type nopObserver struct{}

func (nopObserver) SessionFinished(string) {}
func (nopObserver) BatchPulled(int, time.Duration) {}

// Controller turns query specs into streaming sessions over one store.
// It holds no per-session state and is safe for concurrent use.
type Controller struct {
	store    store.Store
	opts     Options
	logger   *logger.Logger
	observer Observer
	newID    func() string
}

// NewController creates a Controller.
func NewController(st store.Store, opts Options, log *logger.Logger) *Controller {
	if log == nil {
		log = logger.NewDefault()
	}
	if opts.CloseTimeout <= 0 {
		opts.CloseTimeout = defaultCloseTimeout
	}
	if opts.CountMode == "" {
		opts.CountMode = config.CountAlways
	}
	return &Controller{
		store:    st,
		opts:     opts,
		logger:   log,
		observer: nopObserver{},
		newID:    func() string { return uuid.NewString() },
	}
}

// SetObserver installs telemetry hooks.
func (c *Controller) SetObserver(o Observer) {
	if o == nil {
		o = nopObserver{}
	}
	c.observer = o
}

// Limits returns the bounds requests are validated against.
func (c *Controller) Limits() query.Limits {
	return c.opts.Limits
}

// Prepare validates spec and opens its cursor. Nothing has been emitted
// when Prepare returns, so callers may still answer a failure out of band.
// The returned Session owns the cursor; the caller must either Run it or
// Close it.
func (c *Controller) Prepare(ctx context.Context, spec *query.Spec) (*Session, error) {
	q, err := query.Translate(spec, c.opts.Limits)
	if err != nil {
		return nil, err
	}

	cur, err := store.Open(ctx, c.store, q)
	if err != nil {
		return nil, fmt.Errorf("failed to open cursor on %s: %w", q.Namespace, err)
	}

	id := c.newID()
	s := &Session{
		ID:     id,
		query:  q,
		cursor: cur,
		ctrl:   c,
		logger: c.logger.WithSession(id).WithCollection(q.Namespace.Database, q.Namespace.Collection),
	}
	s.logger.Debugf("Session opened (batch_size=%d, limit=%d, aggregate=%v)", q.BatchSize, q.Limit, q.IsAggregate())
	return s, nil
}

// Stream prepares and runs spec in one call. A failure before the cursor
// opens is reported to emit as a single Error event. Cancellation is never
// reported to emit. The returned error is nil unless the session failed.
func (c *Controller) Stream(ctx context.Context, spec *query.Spec, emit Emitter) (State, error) {
	s, err := c.Prepare(ctx, spec)
	if err != nil {
		if ctx.Err() != nil {
			c.observer.SessionFinished(StateCancelled.String())
			return StateCancelled, nil
		}
		c.observer.SessionFinished(StateFailed.String())
		_ = emit(Error{Message: apperr.Sanitize(err)})
		return StateFailed, err
	}
	err = s.Run(ctx, emit)
	return s.State(), err
}

// Session is one streaming query. It is driven by a single goroutine;
// State and Emitted may be read concurrently.
type Session struct {
	ID string

	query   *store.NativeQuery
	cursor  store.Cursor
	ctrl    *Controller
	logger  *logger.Logger
	emitted atomic.Int64

	mu    sync.Mutex
	state State

	releaseOnce sync.Once
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Emitted returns the number of documents delivered so far.
func (s *Session) Emitted() int64 {
	return s.emitted.Load()
}

// Namespace returns the collection being streamed.
func (s *Session) Namespace() store.Namespace {
	return s.query.Namespace
}

func (s *Session) transition(to State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Terminal() {
		return
	}
	s.state = to
}

// Close abandons a session that will not be run, releasing its cursor.
// It is a no-op after Run has finished.
func (s *Session) Close() {
	s.transition(StateCancelled)
	s.release()
}

// release closes the cursor exactly once, on a fresh context so that a
// cancelled request still frees server-side resources.
func (s *Session) release() {
	s.releaseOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.ctrl.opts.CloseTimeout)
		defer cancel()
		if err := s.cursor.Close(ctx); err != nil {
			s.logger.Warnf("Failed to close cursor: %v", err)
		}
		state := s.State()
		s.ctrl.observer.SessionFinished(state.String())
		s.logger.Infof("Session %s after %d documents", state, s.emitted.Load())
	})
}

// Run drives the session to a terminal state. Events go to emit in the
// order Metadata, Batch*, then Complete or Error. Run returns the pull
// error when the session fails and nil otherwise; it must be called at
// most once.
func (s *Session) Run(ctx context.Context, emit Emitter) error {
	defer s.release()

	if s.State().Terminal() {
		return nil
	}
	if ctx.Err() != nil {
		s.transition(StateCancelled)
		return nil
	}

	meta := Metadata{
		Database:   s.query.Namespace.Database,
		Collection: s.query.Namespace.Collection,
		TotalCount: s.count(ctx),
		SessionID:  s.ID,
	}
	if err := emit(meta); err != nil {
		s.cancelled("metadata", err)
		return nil
	}
	s.transition(StateStreaming)

	var limiter *rate.Limiter
	if iv := s.ctrl.opts.BatchInterval; iv > 0 {
		limiter = rate.NewLimiter(rate.Every(iv), 1)
	}

	for batchNum := 1; ; batchNum++ {
		if err := ctx.Err(); err != nil {
			s.cancelled("pull", err)
			return nil
		}
		n := s.query.BatchSize
		if s.query.Limit > 0 {
			remaining := s.query.Limit - s.emitted.Load()
			if remaining <= 0 {
				return s.complete(emit)
			}
			n = int(min(int64(n), remaining))
		}

		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				s.cancelled("pacing", err)
				return nil
			}
		}

		docs, err := s.pull(ctx, n)
		if err != nil && !errors.Is(err, store.EOF) {
			if ctx.Err() != nil {
				s.cancelled("pull", err)
				return nil
			}
			return s.fail(emit, batchNum, err)
		}

		if len(docs) > 0 {
			total := s.emitted.Add(int64(len(docs)))
			batch := Batch{Documents: docs, BatchSize: len(docs), CumulativeCount: total}
			if eerr := emit(batch); eerr != nil {
				s.cancelled("batch", eerr)
				return nil
			}
			s.logger.WithBatch(batchNum).Debugf("Emitted %d documents (%d total)", len(docs), total)
		}

		if errors.Is(err, store.EOF) || len(docs) == 0 {
			return s.complete(emit)
		}
	}
}

func (s *Session) pull(ctx context.Context, n int) ([]bson.D, error) {
	start := time.Now()
	docs, err := s.cursor.NextBatch(ctx, n)
	if len(docs) > n {
		err = fmt.Errorf("cursor returned %d documents for a pull of %d", len(docs), n)
		docs = nil
	}
	s.ctrl.observer.BatchPulled(len(docs), time.Since(start))
	return docs, err
}

func (s *Session) complete(emit Emitter) error {
	if err := emit(Complete{TotalCount: s.emitted.Load()}); err != nil {
		s.cancelled("complete", err)
		return nil
	}
	s.transition(StateCompleted)
	return nil
}

func (s *Session) fail(emit Emitter, batchNum int, err error) error {
	wrapped := &apperr.CursorError{Op: fmt.Sprintf("batch %d", batchNum), Err: err}
	s.transition(StateFailed)
	s.logger.WithBatch(batchNum).Errorf("Cursor failed: %v", err)
	_ = emit(Error{Message: apperr.Sanitize(wrapped)})
	return wrapped
}

func (s *Session) cancelled(at string, cause error) {
	s.transition(StateCancelled)
	s.logger.Debugf("Session cancelled during %s: %v", at, cause)
}

// count returns the best-effort total for Metadata, or nil when the count
// mode skips it or the count fails or times out.
func (s *Session) count(ctx context.Context) *int64 {
	q := s.query
	switch s.ctrl.opts.CountMode {
	case config.CountNever:
		return nil
	case config.CountUnfiltered:
		if q.HasFilter() {
			return nil
		}
	}
	// A pipeline can reshape its input; only find results are counted.
	if q.IsAggregate() {
		return nil
	}

	cctx := ctx
	if d := s.ctrl.opts.CountTimeout; d > 0 {
		var cancel context.CancelFunc
		cctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	start := time.Now()
	n, err := s.ctrl.store.Count(cctx, q.Namespace, q.Filter)
	if err != nil {
		s.logger.Warnf("Count unavailable after %v: %v", time.Since(start), err)
		return nil
	}

	n = max(n-q.Skip, 0)
	if q.Limit > 0 {
		n = min(n, q.Limit)
	}
	return &n
}
