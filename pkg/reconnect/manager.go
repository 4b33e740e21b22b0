// Package reconnect provides capped exponential backoff for long-lived
// connections that must be reopened by their owner after failure.
package reconnect

import (
	"context"
	"sync"
	"time"
)

// Config configures a backoff Manager.
type Config struct {
	MinBackoff time.Duration // initial backoff (default 1s)
	MaxBackoff time.Duration // backoff ceiling (default 1m)
	Multiplier float64       // growth factor between attempts (default 2.0)
	MaxRetries int           // consecutive failures before GiveUp (0 = unlimited)
}

// Manager tracks consecutive connection failures and yields the wait
// duration before the next attempt. Safe for concurrent use.
type Manager struct {
	cfg Config

	mu                  sync.Mutex
	currentBackoff      time.Duration
	consecutiveFailures int
	totalReconnects     int
}

// NewManager creates a Manager, filling in defaults for zero fields.
func NewManager(cfg Config) *Manager {
	if cfg.MinBackoff == 0 {
		cfg.MinBackoff = time.Second
	}
	if cfg.MaxBackoff == 0 {
		cfg.MaxBackoff = time.Minute
	}
	if cfg.Multiplier == 0 {
		cfg.Multiplier = 2.0
	}
	return &Manager{
		cfg:            cfg,
		currentBackoff: cfg.MinBackoff,
	}
}

// Backoff returns the wait duration that applies to the next attempt.
func (m *Manager) Backoff() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentBackoff
}

// GiveUp reports whether the failure budget is exhausted.
func (m *Manager) GiveUp() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg.MaxRetries > 0 && m.consecutiveFailures >= m.cfg.MaxRetries
}

// RecordFailure notes a failed attempt and grows the backoff toward the cap.
func (m *Manager) RecordFailure() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.consecutiveFailures++
	next := time.Duration(float64(m.currentBackoff) * m.cfg.Multiplier)
	if next > m.cfg.MaxBackoff {
		next = m.cfg.MaxBackoff
	}
	m.currentBackoff = next
}

// RecordSuccess resets the backoff after a working connection.
func (m *Manager) RecordSuccess() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.currentBackoff = m.cfg.MinBackoff
	m.consecutiveFailures = 0
	m.totalReconnects++
}

// Stats returns failure and reconnect counters.
func (m *Manager) Stats() (consecutiveFailures, totalReconnects int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.consecutiveFailures, m.totalReconnects
}

// Wait blocks for the current backoff duration or until ctx is done.
func (m *Manager) Wait(ctx context.Context) error {
	backoff := m.Backoff()

	timer := time.NewTimer(backoff)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
