package engine

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"nathanbeddoewebdev/carbonq/internal/deferstore"
	"nathanbeddoewebdev/carbonq/internal/domain"
	"nathanbeddoewebdev/carbonq/internal/history"
)

// Run drives the deferred queue until ctx is cancelled. It sleeps until
// the nearest due time or the poll interval, whichever is sooner, and
// wakes early when a request is enqueued. Each pass also picks up requests
// other processes wrote to the deferred store.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info("scheduler started",
		zap.Duration("poll_interval", e.pollInterval),
		zap.Int("max_redefers", e.maxRedefers),
	)
	for {
		if _, err := e.Resume(); err != nil {
			e.logger.Warn("failed to load deferred requests", zap.Error(err))
		}
		e.processDue(ctx)

		wait := e.pollInterval
		if next, ok := e.queue.nextDue(); ok {
			if d := next.Sub(e.now()); d < wait {
				wait = max(d, 0)
			}
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			e.logger.Info("scheduler stopped", zap.Int("pending", e.queue.len()))
			return nil
		case <-e.wake:
			timer.Stop()
		case <-timer.C:
		}
	}
}

// Resume loads pending requests from the deferred store into the queue.
// Requests already queued are skipped. It returns how many were added.
func (e *Engine) Resume() (int, error) {
	if e.store == nil {
		return 0, nil
	}
	pending, err := e.store.ListPending()
	if err != nil {
		return 0, err
	}
	added := 0
	for _, req := range pending {
		if e.queue.contains(req.ID) {
			continue
		}
		e.queue.push(req, nil)
		added++
	}
	e.observer.SetQueueDepth(e.queue.len())
	if added > 0 {
		e.logger.Info("resumed deferred requests", zap.Int("count", added))
		select {
		case e.wake <- struct{}{}:
		default:
		}
	}
	return added, nil
}

// processDue re-submits every due request in queue order.
func (e *Engine) processDue(ctx context.Context) {
	due := e.queue.popDue(e.now())
	if len(due) == 0 {
		return
	}
	e.observer.SetQueueDepth(e.queue.len())

	for _, req := range due {
		if ctx.Err() != nil {
			// Put the rest back for the next process to pick up.
			e.queue.push(req, nil)
			continue
		}
		if !e.stillPending(req.ID) {
			continue
		}
		e.resubmit(ctx, req)
	}
}

// stillPending checks the store for cancellations made by other processes.
func (e *Engine) stillPending(id string) bool {
	if e.store == nil {
		return true
	}
	rec, err := e.store.Get(id)
	if err != nil || rec == nil {
		// Unknown to the store; trust the in-memory queue.
		return true
	}
	return rec.Status == deferstore.StatusPending
}

func (e *Engine) resubmit(ctx context.Context, req domain.DeferredRequest) {
	reading, forecast := e.signal(ctx)
	e.observer.ObserveCarbon(reading)

	var decision domain.Decision
	if req.Attempts >= e.maxRedefers {
		decision = e.policy.DecideForced(req.Urgency, reading, req.Attempts)
		e.logger.Info("deferral exhausted, forcing execution",
			zap.String("id", req.ID),
			zap.Int("attempts", req.Attempts),
			zap.String("strategy", decision.Strategy.String()),
			zap.Error(domain.ErrDeferralExhausted),
		)
	} else {
		decision = e.policy.Decide(req.Urgency, reading, forecast)
	}
	e.observer.ObserveDecision(req.Urgency, decision)

	if decision.ShouldDefer {
		req.Attempts++
		req.DueAt = e.now().Add(time.Duration(decision.DeferMinutes) * time.Minute)
		e.enqueue(req, nil)
		e.logger.Info("query re-deferred",
			zap.String("id", req.ID),
			zap.Int("attempts", req.Attempts),
			zap.Time("due_at", req.DueAt),
		)
		return
	}

	runCtx := history.WithOrigin(ctx, history.OriginScheduler)
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(runCtx, req.Timeout)
		defer cancel()
	}
	out, err := e.run(runCtx, req.SQL, req.Urgency, decision, reading, req.ID)

	if err != nil && ctx.Err() != nil {
		// Interrupted by shutdown; the store still has it as pending.
		e.queue.push(req, nil)
		e.observer.SetQueueDepth(e.queue.len())
		e.logger.Info("deferred execution interrupted, left pending", zap.String("id", req.ID))
		return
	}

	if e.store != nil {
		status, detail := deferstore.StatusDone, decision.Reason
		if err != nil {
			status, detail = deferstore.StatusFailed, err.Error()
		}
		if serr := e.store.SetStatus(req.ID, status, detail); serr != nil && !errors.Is(serr, domain.ErrNotFound) {
			e.logger.Warn("update deferred request failed", zap.String("id", req.ID), zap.Error(serr))
		}
	}
	if err != nil {
		e.logger.Error("deferred execution failed", zap.String("id", req.ID), zap.Error(err))
	}

	e.hookMu.RLock()
	hook := e.onDone
	e.hookMu.RUnlock()
	if hook != nil {
		hook(DeferredResult{Request: req, Outcome: out, Err: err})
	}
}

// RunOnce loads pending requests from the deferred store and executes
// those already due, then returns.
func (e *Engine) RunOnce(ctx context.Context) error {
	if _, err := e.Resume(); err != nil {
		return err
	}
	e.processDue(ctx)
	return nil
}
