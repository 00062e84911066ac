// Package engine orchestrates carbon-aware execution: it reads the carbon
// signal, asks the policy for a decision, and either runs the query under
// the chosen strategy with profiling or defers it to a later window.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"nathanbeddoewebdev/carbonq/internal/deferstore"
	"nathanbeddoewebdev/carbonq/internal/domain"
	"nathanbeddoewebdev/carbonq/internal/executor"
	"nathanbeddoewebdev/carbonq/internal/history"
	"nathanbeddoewebdev/carbonq/internal/policy"
	"nathanbeddoewebdev/carbonq/internal/strategy"
)

const (
	DefaultPollInterval  = 30 * time.Second
	DefaultMaxRedefers   = 3
	DefaultForecastHours = 24
)

// CarbonSource supplies the grid signal. Implementations never fail;
// degradation shows in the reading's Source and Stale fields.
type CarbonSource interface {
	Current(ctx context.Context) domain.CarbonReading
	Forecast(ctx context.Context, hours int) []domain.ForecastPoint
}

// Profiler measures a single run.
type Profiler interface {
	Measure(ctx context.Context, threads int, run func(context.Context) error) (domain.ExecutionMetrics, error)
}

// DeferredStore persists the deferred queue across processes.
type DeferredStore interface {
	Save(req domain.DeferredRequest) error
	SetStatus(id string, status deferstore.Status, detail string) error
	Get(id string) (*deferstore.Record, error)
	ListPending() ([]domain.DeferredRequest, error)
}

// Recorder stores completed executions.
type Recorder interface {
	Save(record *history.Record) error
}

// Observer receives engine events, typically for metrics export.
type Observer interface {
	ObserveCarbon(reading domain.CarbonReading)
	ObserveDecision(urgency domain.Urgency, decision domain.Decision)
	ObserveExecution(s domain.Strategy, metrics domain.ExecutionMetrics, intensity float64)
	SetQueueDepth(n int)
}

// Outcome is the result of one Execute call. Exactly one of Deferred or
// Metrics is set on success.
type Outcome struct {
	Result   *executor.Result         `json:"result,omitempty"`
	Metrics  *domain.ExecutionMetrics `json:"metrics,omitempty"`
	Decision domain.Decision          `json:"decision"`
	Carbon   domain.CarbonReading     `json:"carbon"`
	Deferred *domain.DeferredRequest  `json:"deferred,omitempty"`

	// Explanation is set when WithExplain was requested.
	Explanation string `json:"explanation,omitempty"`
}

// DeferredResult reports the completion of a previously deferred request.
type DeferredResult struct {
	Request domain.DeferredRequest
	Outcome *Outcome
	Err     error
}

// Deps are the engine's required collaborators.
type Deps struct {
	Carbon   CarbonSource
	Policy   *policy.Policy
	Compiler *strategy.Compiler
	Profiler Profiler
	Executor executor.Executor
}

// Engine is safe for concurrent use.
type Engine struct {
	carbon   CarbonSource
	policy   *policy.Policy
	compiler *strategy.Compiler
	profiler Profiler
	executor executor.Executor

	store    DeferredStore
	history  Recorder
	observer Observer
	logger   *zap.Logger
	now      func() time.Time

	pollInterval  time.Duration
	maxRedefers   int
	forecastHours int

	queue *deferredQueue
	wake  chan struct{}

	hookMu sync.RWMutex
	onDone func(DeferredResult)
}

// Option configures an Engine.
type Option func(*Engine)

// WithDeferredStore persists deferred requests.
func WithDeferredStore(s DeferredStore) Option {
	return func(e *Engine) { e.store = s }
}

// WithHistory records every completed run.
func WithHistory(r Recorder) Option {
	return func(e *Engine) { e.history = r }
}

// WithObserver sets the event observer.
func WithObserver(o Observer) Option {
	return func(e *Engine) {
		if o != nil {
			e.observer = o
		}
	}
}

// WithLogger sets the engine logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithClock overrides the time source used for due times.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithPollInterval bounds how long the scheduler loop sleeps.
func WithPollInterval(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.pollInterval = d
		}
	}
}

// WithMaxRedefers sets how many deferrals a request may accumulate before
// it is forced to run.
func WithMaxRedefers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxRedefers = n
		}
	}
}

// WithForecastHours sets the horizon searched for a deferral window.
func WithForecastHours(h int) Option {
	return func(e *Engine) {
		if h > 0 {
			e.forecastHours = h
		}
	}
}

// New wires an engine. Missing required collaborators are a configuration
// error.
func New(deps Deps, opts ...Option) (*Engine, error) {
	missing := func(name string) error {
		return &domain.ConfigurationError{Field: "engine." + name, Reason: "required"}
	}
	switch {
	case deps.Carbon == nil:
		return nil, missing("carbon")
	case deps.Policy == nil:
		return nil, missing("policy")
	case deps.Compiler == nil:
		return nil, missing("compiler")
	case deps.Profiler == nil:
		return nil, missing("profiler")
	case deps.Executor == nil:
		return nil, missing("executor")
	}

	e := &Engine{
		carbon:        deps.Carbon,
		policy:        deps.Policy,
		compiler:      deps.Compiler,
		profiler:      deps.Profiler,
		executor:      deps.Executor,
		observer:      nopObserver{},
		logger:        zap.NewNop(),
		now:           time.Now,
		pollInterval:  DefaultPollInterval,
		maxRedefers:   DefaultMaxRedefers,
		forecastHours: DefaultForecastHours,
		queue:         newDeferredQueue(),
		wake:          make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// PollInterval returns the scheduler's maximum sleep.
func (e *Engine) PollInterval() time.Duration { return e.pollInterval }

// MaxRedefers returns the re-defer limit.
func (e *Engine) MaxRedefers() int { return e.maxRedefers }

// OnDeferredResult registers a hook called after each deferred request
// completes or fails. It replaces any previous hook.
func (e *Engine) OnDeferredResult(fn func(DeferredResult)) {
	e.hookMu.Lock()
	e.onDone = fn
	e.hookMu.Unlock()
}

type executeOptions struct {
	timeout time.Duration
	explain bool
	detach  bool
}

// ExecuteOption tunes a single Execute call.
type ExecuteOption func(*executeOptions)

// WithTimeout bounds the run. Deferral decisions are not affected.
func WithTimeout(d time.Duration) ExecuteOption {
	return func(o *executeOptions) { o.timeout = d }
}

// WithExplain adds a human-readable explanation to the outcome.
func WithExplain() ExecuteOption {
	return func(o *executeOptions) { o.explain = true }
}

// WithDetach keeps a deferred request queued after the caller's context
// ends. Callers whose context is request-scoped, or that rely on the
// deferred store to hand the request to another process, need this.
func WithDetach() ExecuteOption {
	return func(o *executeOptions) { o.detach = true }
}

// Execute decides how to run query and either runs it or defers it.
// Only execution failures are returned; they satisfy
// errors.Is(err, domain.ErrExecutionFailed) and, on timeout or
// cancellation, the context error too. The outcome is non-nil whenever a
// decision was made, carrying partial metrics on failure.
func (e *Engine) Execute(ctx context.Context, query string, urgency domain.Urgency, opts ...ExecuteOption) (*Outcome, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: empty query", domain.ErrExecutionFailed)
	}
	if !urgency.Valid() {
		return nil, fmt.Errorf("invalid urgency %d", int(urgency))
	}
	var o executeOptions
	for _, opt := range opts {
		opt(&o)
	}

	reading, forecast := e.signal(ctx)
	decision := e.policy.Decide(urgency, reading, forecast)
	e.observer.ObserveCarbon(reading)
	e.observer.ObserveDecision(urgency, decision)

	if decision.ShouldDefer {
		req := e.deferRequest(ctx, query, urgency, decision, o)
		out := &Outcome{Decision: decision, Carbon: reading, Deferred: &req}
		if o.explain {
			out.Explanation = e.explain(out)
		}
		return out, nil
	}

	runCtx := ctx
	if o.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}
	out, err := e.run(runCtx, query, urgency, decision, reading, "")
	if o.explain {
		out.Explanation = e.explain(out)
	}
	return out, err
}

// CompareStrategies runs query once under every strategy, in declared
// order, independent of the policy.
func (e *Engine) CompareStrategies(ctx context.Context, query string) (map[domain.Strategy]domain.ExecutionMetrics, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: empty query", domain.ErrExecutionFailed)
	}
	out := make(map[domain.Strategy]domain.ExecutionMetrics, len(domain.Strategies))
	for _, s := range e.compiler.All() {
		cfg := e.compiler.Compile(s)
		metrics, err := e.profiler.Measure(ctx, cfg.Threads, func(ctx context.Context) error {
			_, err := e.executor.Execute(ctx, query, cfg)
			return err
		})
		if err != nil {
			return nil, normalizeExecErr(ctx, fmt.Errorf("compare %s: %w", s, err))
		}
		out[s] = metrics
	}
	return out, nil
}

// Cancel removes a deferred request. It reports whether a pending request
// was found, in memory or in the deferred store.
func (e *Engine) Cancel(id string) bool {
	_, inMemory := e.queue.remove(id)
	if inMemory {
		e.observer.SetQueueDepth(e.queue.len())
	}

	inStore := false
	if e.store != nil {
		if rec, err := e.store.Get(id); err == nil && rec != nil && rec.Status == deferstore.StatusPending {
			if err := e.store.SetStatus(id, deferstore.StatusCancelled, "cancelled"); err == nil {
				inStore = true
			}
		}
	}
	if inMemory || inStore {
		e.logger.Info("deferred request cancelled", zap.String("id", id))
	}
	return inMemory || inStore
}

// Pending returns the in-memory deferred queue in execution order.
func (e *Engine) Pending() []domain.DeferredRequest {
	return e.queue.snapshot()
}

// signal fetches the current reading and forecast concurrently.
func (e *Engine) signal(ctx context.Context) (domain.CarbonReading, []domain.ForecastPoint) {
	var (
		reading  domain.CarbonReading
		forecast []domain.ForecastPoint
		g        errgroup.Group
	)
	g.Go(func() error {
		reading = e.carbon.Current(ctx)
		return nil
	})
	g.Go(func() error {
		forecast = e.carbon.Forecast(ctx, e.forecastHours)
		return nil
	})
	_ = g.Wait()
	return reading, forecast
}

func (e *Engine) deferRequest(ctx context.Context, query string, urgency domain.Urgency, decision domain.Decision, o executeOptions) domain.DeferredRequest {
	now := e.now()
	req := domain.DeferredRequest{
		ID:          uuid.NewString(),
		SQL:         query,
		Urgency:     urgency,
		SubmittedAt: now,
		DueAt:       now.Add(time.Duration(decision.DeferMinutes) * time.Minute),
		Attempts:    1,
		Timeout:     o.timeout,
	}

	var unbind func() bool
	if !o.detach {
		id := req.ID
		unbind = context.AfterFunc(ctx, func() { e.Cancel(id) })
	}
	e.enqueue(req, unbind)

	e.logger.Info("query deferred",
		zap.String("id", req.ID),
		zap.String("urgency", urgency.String()),
		zap.Int("defer_minutes", decision.DeferMinutes),
		zap.Time("due_at", req.DueAt),
	)
	return req
}

func (e *Engine) enqueue(req domain.DeferredRequest, unbind func() bool) {
	e.queue.push(req, unbind)
	if e.store != nil {
		if err := e.store.Save(req); err != nil {
			e.logger.Warn("persist deferred request failed", zap.String("id", req.ID), zap.Error(err))
		}
	}
	e.observer.SetQueueDepth(e.queue.len())
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

// run executes query under decision's strategy with profiling.
func (e *Engine) run(ctx context.Context, query string, urgency domain.Urgency, decision domain.Decision, reading domain.CarbonReading, requestID string) (*Outcome, error) {
	if err := ctx.Err(); err != nil {
		return &Outcome{Decision: decision, Carbon: reading}, normalizeExecErr(ctx, err)
	}

	s, _ := decision.Selected()
	cfg := e.compiler.Compile(s)

	var result *executor.Result
	metrics, err := e.profiler.Measure(ctx, cfg.Threads, func(ctx context.Context) error {
		r, err := e.executor.Execute(ctx, query, cfg)
		result = r
		return err
	})

	out := &Outcome{Decision: decision, Carbon: reading, Metrics: &metrics}
	outcome := history.OutcomeSuccess
	detail := ""
	if err != nil {
		err = normalizeExecErr(ctx, err)
		if ctx.Err() != nil {
			metrics.Partial = true
			outcome = history.OutcomePartial
		} else {
			outcome = history.OutcomeError
		}
		detail = err.Error()
	} else {
		out.Result = result
	}

	e.observer.ObserveExecution(cfg.Strategy, metrics, reading.Value)
	e.record(ctx, query, urgency, decision, reading, metrics, requestID, outcome, detail)
	return out, err
}

func (e *Engine) record(ctx context.Context, query string, urgency domain.Urgency, decision domain.Decision, reading domain.CarbonReading, m domain.ExecutionMetrics, requestID, outcome, detail string) {
	if e.history == nil {
		return
	}
	rec := &history.Record{
		Origin:          history.OriginFromContext(ctx),
		RequestID:       requestID,
		SQL:             query,
		Urgency:         urgency,
		Strategy:        decision.Strategy,
		Reason:          decision.Reason,
		CarbonIntensity: reading.Value,
		CarbonSource:    reading.Source,
		CarbonStale:     reading.Stale,
		DurationMs:      m.DurationMs(),
		EnergyJoules:    m.EnergyJoules,
		PowerWatts:      m.PowerWatts,
		CPUPercent:      m.CPUPercent,
		MemoryMB:        m.MemoryMB,
		CarbonGrams:     m.CarbonGrams(reading.Value),
		Tier:            m.Tier,
		Outcome:         outcome,
		Detail:          detail,
	}
	if err := e.history.Save(rec); err != nil {
		e.logger.Warn("save execution history failed", zap.Error(err))
	}
}

// normalizeExecErr guarantees the returned error matches
// domain.ErrExecutionFailed and, when ctx ended, its context error.
func normalizeExecErr(ctx context.Context, err error) error {
	if !errors.Is(err, domain.ErrExecutionFailed) {
		err = fmt.Errorf("%w: %w", domain.ErrExecutionFailed, err)
	}
	if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
		err = fmt.Errorf("%w: %w", err, ctxErr)
	}
	return err
}

type nopObserver struct{}

func (nopObserver) ObserveCarbon(domain.CarbonReading) {}

func (nopObserver) ObserveDecision(domain.Urgency, domain.Decision) {}

func (nopObserver) ObserveExecution(domain.Strategy, domain.ExecutionMetrics, float64) {}

func (nopObserver) SetQueueDepth(int) {}
