package workers

import (
	"context"
	"sync"
	"time"

	"hypewatch/pkg/errors"
	"hypewatch/pkg/logger"
)

// Scheduler manages and coordinates multiple workers
type Scheduler struct {
	workers []Worker
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	log     *logger.Logger
	started bool
}

// NewScheduler creates a new worker scheduler
func NewScheduler(log *logger.Logger) *Scheduler {
	return &Scheduler{log: log.With("component", "scheduler")}
}

// Register adds a worker before the scheduler starts
func (s *Scheduler) Register(w Worker) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		s.log.Warnw("cannot register worker after scheduler has started", "worker", w.Name())
		return
	}

	s.workers = append(s.workers, w)
	s.log.Infow("worker registered", "worker", w.Name(), "interval", w.Interval())
}

// Start begins running all registered workers, each on its own ticker.
// Every worker also runs once immediately.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return errors.Wrap(errors.ErrInternal, "scheduler already started")
	}
	s.started = true
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	for _, worker := range s.workers {
		if !worker.Enabled() {
			s.log.Infow("skipping disabled worker", "worker", worker.Name())
			continue
		}
		s.wg.Add(1)
		go s.runWorker(worker)
	}

	s.log.Infow("workers started", "count", len(s.workers))
	return nil
}

// Stop cancels all workers and waits for them to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.cancel()
	s.mu.Unlock()

	s.wg.Wait()

	s.mu.Lock()
	s.started = false
	s.mu.Unlock()

	s.log.Infow("all workers stopped")
}

func (s *Scheduler) runWorker(worker Worker) {
	defer s.wg.Done()

	ticker := time.NewTicker(worker.Interval())
	defer ticker.Stop()

	s.execute(worker)

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.execute(worker)
		}
	}
}

func (s *Scheduler) execute(worker Worker) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Errorw("worker panicked", "worker", worker.Name(), "panic", r)
		}
	}()

	if err := worker.Run(s.ctx); err != nil {
		s.log.Warnw("worker iteration failed", "worker", worker.Name(), "error", err)
	}
}
