package ocr

import (
	"context"
	"errors"
	"image"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/MeKo-Tech/artex/internal/metrics"
)

// Default per-call bounds.
const (
	DefaultSoftTimeout = 10 * time.Second
	DefaultHardTimeout = 15 * time.Second
)

// Guard runs engine calls on a worker goroutine. The caller gets ErrTimeout
// once the soft deadline passes; the worker keeps its context-derived
// deadline and is reported as abandoned if it outlives the hard ceiling.
type Guard struct {
	engine    Engine
	soft      time.Duration
	hard      time.Duration
	calls     atomic.Int64
	timeouts  atomic.Int64
	abandoned atomic.Int64
}

// NewGuard wraps engine. Non-positive durations take the defaults.
func NewGuard(engine Engine, soft, hard time.Duration) *Guard {
	if soft <= 0 {
		soft = DefaultSoftTimeout
	}
	if hard < soft {
		hard = max(DefaultHardTimeout, soft)
	}
	return &Guard{engine: engine, soft: soft, hard: hard}
}

// Engine returns the wrapped engine.
func (g *Guard) Engine() Engine { return g.engine }

// Available reports whether the wrapped engine can run.
func (g *Guard) Available() bool { return g.engine != nil && g.engine.Available() }

// Stats returns call, timeout and abandonment counts.
func (g *Guard) Stats() (calls, timeouts, abandoned int64) {
	return g.calls.Load(), g.timeouts.Load(), g.abandoned.Load()
}

// Text runs ImageToString under the deadline.
func (g *Guard) Text(ctx context.Context, img image.Image, opts Options) (string, error) {
	return guarded(g, ctx, func(c context.Context) (string, error) {
		return g.engine.ImageToString(c, img, opts)
	})
}

// Data runs ImageToData under the deadline.
func (g *Guard) Data(ctx context.Context, img image.Image, opts Options) ([]Word, error) {
	return guarded(g, ctx, func(c context.Context) ([]Word, error) {
		return g.engine.ImageToData(c, img, opts)
	})
}

type outcome[T any] struct {
	v   T
	err error
}

func guarded[T any](g *Guard, ctx context.Context, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if !g.Available() {
		return zero, ErrUnavailable
	}
	g.calls.Add(1)
	name := g.engine.Name()
	start := time.Now()

	callCtx, cancel := context.WithTimeout(ctx, g.soft)
	done := make(chan outcome[T], 1)
	go func() {
		v, err := fn(callCtx)
		done <- outcome[T]{v: v, err: err}
	}()

	select {
	case r := <-done:
		cancel()
		switch {
		case r.err == nil:
			metrics.ObserveOCRCall(name, metrics.OutcomeOK, time.Since(start))
		case errors.Is(r.err, ErrTimeout) || errors.Is(r.err, context.DeadlineExceeded):
			g.timeouts.Add(1)
			metrics.ObserveOCRCall(name, metrics.OutcomeTimeout, time.Since(start))
			return zero, ErrTimeout
		default:
			metrics.ObserveOCRCall(name, metrics.OutcomeError, time.Since(start))
		}
		return r.v, r.err
	case <-callCtx.Done():
		cancel()
		if ctx.Err() != nil {
			go reap(g, name, done, start)
			return zero, ctx.Err()
		}
		g.timeouts.Add(1)
		metrics.ObserveOCRCall(name, metrics.OutcomeTimeout, time.Since(start))
		slog.Warn("OCR call timed out", "engine", name, "timeout", g.soft)
		go reap(g, name, done, start)
		return zero, ErrTimeout
	}
}

// reap waits for a timed-out worker up to the hard ceiling.
func reap[T any](g *Guard, name string, done <-chan outcome[T], start time.Time) {
	remaining := g.hard - time.Since(start)
	if remaining <= 0 {
		remaining = time.Millisecond
	}
	timer := time.NewTimer(remaining)
	defer timer.Stop()
	select {
	case <-done:
	case <-timer.C:
		g.abandoned.Add(1)
		metrics.ObserveOCRCall(name, metrics.OutcomeAbandoned, 0)
		slog.Warn("OCR worker still running past hard ceiling, abandoning", "engine", name, "ceiling", g.hard)
	}
}
