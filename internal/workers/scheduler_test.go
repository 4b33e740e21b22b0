package workers

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hypewatch/pkg/logger"
)

type fakeWorker struct {
	name     string
	interval time.Duration
	enabled  bool
	runs     atomic.Int32
	panics   bool
}

func (w *fakeWorker) Name() string            { return w.name }
func (w *fakeWorker) Interval() time.Duration { return w.interval }
func (w *fakeWorker) Enabled() bool           { return w.enabled }

func (w *fakeWorker) Run(ctx context.Context) error {
	w.runs.Add(1)
	if w.panics {
		panic("worker exploded")
	}
	return nil
}

func TestSchedulerRunsOnStartAndOnTicks(t *testing.T) {
	w := &fakeWorker{name: "ticky", interval: 10 * time.Millisecond, enabled: true}

	s := NewScheduler(logger.Get())
	s.Register(w)
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	require.Eventually(t, func() bool {
		return w.runs.Load() >= 3
	}, 5*time.Second, 5*time.Millisecond)
}

func TestSchedulerSkipsDisabledWorkers(t *testing.T) {
	w := &fakeWorker{name: "off", interval: time.Millisecond, enabled: false}

	s := NewScheduler(logger.Get())
	s.Register(w)
	require.NoError(t, s.Start(context.Background()))

	time.Sleep(30 * time.Millisecond)
	s.Stop()
	assert.Zero(t, w.runs.Load())
}

func TestSchedulerRecoversFromPanics(t *testing.T) {
	w := &fakeWorker{name: "bomb", interval: 10 * time.Millisecond, enabled: true, panics: true}

	s := NewScheduler(logger.Get())
	s.Register(w)
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	require.Eventually(t, func() bool {
		return w.runs.Load() >= 2
	}, 5*time.Second, 5*time.Millisecond, "a panicking worker must keep its schedule")
}

func TestSchedulerStartTwice(t *testing.T) {
	s := NewScheduler(logger.Get())
	require.NoError(t, s.Start(context.Background()))
	assert.Error(t, s.Start(context.Background()))
	s.Stop()
}
