// Package poller fetches ranked/windowed snapshots from the upstream
// service on an interval and exposes the latest successful result.
package poller

import (
	"context"
	"sync"
	"time"

	"hypewatch/internal/metrics"
	"hypewatch/pkg/logger"
)

// FetchFunc retrieves one payload from the upstream service.
type FetchFunc[T any] func(ctx context.Context) (T, error)

// Aggregator polls a fetch function and keeps the freshest payload.
//
// Supersession: every issued request carries a monotonically increasing
// sequence number, drawn in the same critical section that reads the
// fetch function, and a response commits only while its sequence is
// still the most recently issued. When Retarget replaces the fetch
// function mid-flight, every request issued against the old parameters
// holds an older sequence than any issued after, so its response is
// discarded on arrival (last-request-wins, never last-response-wins).
//
// Failures keep previously loaded data: a failed attempt sets the error
// flag, which clears only once a fresher attempt succeeds.
type Aggregator[T any] struct {
	name     string
	interval time.Duration
	log      *logger.Logger

	mu          sync.RWMutex
	seq         uint64
	fetch       FetchFunc[T]
	latest      T
	hasData     bool
	lastErr     error
	lastAttempt time.Time
	inFlight    bool
}

// New creates an aggregator; name labels log lines and metrics.
func New[T any](name string, interval time.Duration, fetch FetchFunc[T], log *logger.Logger) *Aggregator[T] {
	return &Aggregator[T]{
		name:     name,
		interval: interval,
		fetch:    fetch,
		log:      log.With("poller", name),
	}
}

// Name returns the aggregator's label.
func (a *Aggregator[T]) Name() string { return a.name }

// Interval returns the polling cadence.
func (a *Aggregator[T]) Interval() time.Duration { return a.interval }

// Enabled reports whether the scheduler should run this aggregator.
func (a *Aggregator[T]) Enabled() bool { return true }

// Run performs one scheduled poll. Errors are recorded, never fatal to
// the polling loop.
func (a *Aggregator[T]) Run(ctx context.Context) error {
	a.Refresh(ctx)
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.lastErr
}

// Latest returns the last successfully decoded payload. ok is false
// before the first success, in which case the zero value is returned.
func (a *Aggregator[T]) Latest() (T, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.latest, a.hasData
}

// IsLoading is true only while no fetch has succeeded yet.
func (a *Aggregator[T]) IsLoading() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return !a.hasData
}

// IsError is true when the most recent attempt failed and no fresher
// success has superseded it.
func (a *Aggregator[T]) IsError() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.lastErr != nil
}

// Refresh issues one fetch synchronously and commits the result unless a
// newer request superseded it while in flight.
func (a *Aggregator[T]) Refresh(ctx context.Context) {
	a.poll(ctx)
}

// RefreshIfStale triggers an asynchronous refresh when the last attempt
// is older than the polling interval and nothing is already in flight.
// Stale-but-present data keeps being served while the refresh runs.
func (a *Aggregator[T]) RefreshIfStale(ctx context.Context) {
	a.mu.Lock()
	if a.inFlight || time.Since(a.lastAttempt) < a.interval {
		a.mu.Unlock()
		return
	}
	a.inFlight = true
	a.lastAttempt = time.Now()
	a.mu.Unlock()

	go func() {
		a.poll(ctx)
		a.mu.Lock()
		a.inFlight = false
		a.mu.Unlock()
	}()
}

// Retarget swaps the fetch parameters and refreshes asynchronously. Any
// response from the previous parameter set still in flight is discarded
// when it lands.
func (a *Aggregator[T]) Retarget(ctx context.Context, fetch FetchFunc[T]) {
	a.mu.Lock()
	a.fetch = fetch
	a.lastAttempt = time.Now()
	a.mu.Unlock()

	go a.poll(ctx)
}

// issue reserves the next sequence number together with the fetch
// function it belongs to. Taking both under one lock means a request
// issued before a Retarget can never draw a higher sequence than one
// issued after it.
func (a *Aggregator[T]) issue() (FetchFunc[T], uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.seq++
	return a.fetch, a.seq
}

func (a *Aggregator[T]) poll(ctx context.Context) {
	fetch, seq := a.issue()

	start := time.Now()
	payload, err := fetch(ctx)
	metrics.PollDuration.WithLabelValues(a.name).Observe(time.Since(start).Seconds())

	a.commit(seq, payload, err)
}

func (a *Aggregator[T]) commit(seq uint64, payload T, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	// Checked under the same lock that guards the commit, so a response
	// that was superseded while waiting here still gets discarded.
	if seq != a.seq {
		metrics.PollAttempts.WithLabelValues(a.name, "superseded").Inc()
		a.log.Debugw("discarding superseded poll response", "seq", seq)
		return
	}

	a.lastAttempt = time.Now()

	if err != nil {
		a.lastErr = err
		metrics.PollAttempts.WithLabelValues(a.name, "error").Inc()
		a.log.Warnw("poll failed, keeping previous data", "error", err)
		return
	}

	a.latest = payload
	a.hasData = true
	a.lastErr = nil
	metrics.PollAttempts.WithLabelValues(a.name, "success").Inc()
}
