package logger

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hypewatch/pkg/errors"
)

type recordingTracker struct {
	mu       sync.Mutex
	captured []error
}

func (r *recordingTracker) CaptureError(ctx context.Context, err error, tags map[string]string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.captured = append(r.captured, err)
	return nil
}

func (r *recordingTracker) CaptureMessage(ctx context.Context, message string, level errors.Level, tags map[string]string) error {
	return nil
}

func (r *recordingTracker) Flush(ctx context.Context) error { return nil }

func (r *recordingTracker) errs() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.captured...)
}

func setupTracker(t *testing.T) *recordingTracker {
	t.Helper()
	require.NoError(t, Init("debug", "test"))
	tracker := &recordingTracker{}
	SetErrorTracker(tracker)
	t.Cleanup(func() { SetErrorTracker(nil) })
	return tracker
}

func TestErrorfReportsToTracker(t *testing.T) {
	tracker := setupTracker(t)

	Get().Errorf("poll failed: %v", errors.New("upstream down"))

	errs := tracker.errs()
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "upstream down")
}

func TestErrorReportsToTracker(t *testing.T) {
	tracker := setupTracker(t)

	Get().Error("snapshot write failed")

	assert.Len(t, tracker.errs(), 1)
}

func TestWarningsAreNotTracked(t *testing.T) {
	tracker := setupTracker(t)

	Get().Warnf("poll failed, keeping previous data: %v", errors.New("timeout"))
	Get().Infof("system initialized")

	assert.Empty(t, tracker.errs())
}

func TestChildLoggerKeepsTracker(t *testing.T) {
	tracker := setupTracker(t)

	Get().With("component", "api").Errorf("chat request failed: %v", errors.New("provider 500"))

	errs := tracker.errs()
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "provider 500")
}

func TestErrorWithContextForwardsTags(t *testing.T) {
	tracker := setupTracker(t)

	Get().ErrorWithContext(context.Background(), errors.New("boom"), map[string]string{"poller": "trending"})

	require.Len(t, tracker.errs(), 1)
}
