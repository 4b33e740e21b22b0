package stream

import (
	"context"
	"net/http"
	"sync"

	"hypewatch/internal/metrics"
	"hypewatch/pkg/logger"
	"hypewatch/pkg/reconnect"
)

// Supervisor owns the alert tape and the consumer lifecycle: it opens a
// consumer, waits for it to terminate, and reopens with capped exponential
// backoff. The tape survives reconnects; changing its capacity requires a
// new supervisor, which starts with an empty tape.
type Supervisor struct {
	url        string
	httpClient *http.Client
	buffer     *Buffer
	backoff    *reconnect.Manager
	log        *logger.Logger

	startOnce sync.Once
	stopOnce  sync.Once
	cancel    context.CancelFunc
	wg        sync.WaitGroup

	mu      sync.Mutex
	current *Consumer
}

// NewSupervisor creates a supervisor for the live-alert URL with a tape of
// the given capacity.
func NewSupervisor(url string, capacity int, httpClient *http.Client, backoff *reconnect.Manager, log *logger.Logger) *Supervisor {
	if backoff == nil {
		backoff = reconnect.NewManager(reconnect.Config{})
	}
	return &Supervisor{
		url:        url,
		httpClient: httpClient,
		buffer:     NewBuffer(capacity),
		backoff:    backoff,
		log:        log.With("component", "alert_supervisor"),
	}
}

// Buffer returns the alert tape shared across reconnects.
func (s *Supervisor) Buffer() *Buffer {
	return s.buffer
}

// Connected reports whether a consumer currently holds an open stream.
func (s *Supervisor) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current != nil && s.current.State() == StateConnected
}

// Start launches the supervision loop. Subsequent calls are no-ops.
func (s *Supervisor) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		ctx, s.cancel = context.WithCancel(ctx)
		s.wg.Add(1)
		go s.run(ctx)
	})
}

// Stop terminates the current consumer and the supervision loop.
// Idempotent; safe after the loop has already exited.
func (s *Supervisor) Stop() {
	s.stopOnce.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
		s.mu.Lock()
		if s.current != nil {
			s.current.Close()
		}
		s.mu.Unlock()
		s.wg.Wait()
	})
}

func (s *Supervisor) run(ctx context.Context) {
	defer s.wg.Done()

	for {
		if ctx.Err() != nil {
			return
		}

		consumer := NewConsumer(s.url, s.buffer, s.httpClient, s.log)
		if err := consumer.Start(ctx); err != nil {
			s.backoff.RecordFailure()
			metrics.StreamReconnects.Inc()
			s.log.Warnw("alert stream open failed, backing off",
				"error", err,
				"backoff", s.backoff.Backoff(),
			)
			if s.backoff.Wait(ctx) != nil {
				return
			}
			continue
		}

		s.mu.Lock()
		s.current = consumer
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			consumer.Close()
			return
		case <-consumer.Done():
		}

		// A connection counts as a success only once it has delivered
		// something; accept-then-drop servers keep growing the backoff.
		if consumer.Events() > 0 {
			s.backoff.RecordSuccess()
		} else {
			s.backoff.RecordFailure()
		}
		if err := consumer.Err(); err != nil {
			s.log.Warnw("alert stream dropped, reopening",
				"error", err,
				"backoff", s.backoff.Backoff(),
			)
		}
		metrics.StreamReconnects.Inc()
		if s.backoff.Wait(ctx) != nil {
			return
		}
	}
}
