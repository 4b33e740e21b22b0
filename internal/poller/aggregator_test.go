package poller

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hypewatch/pkg/errors"
	"hypewatch/pkg/logger"
)

func TestAggregatorInitialState(t *testing.T) {
	a := New("test", time.Minute, func(ctx context.Context) (int, error) {
		return 0, nil
	}, logger.Get())

	got, ok := a.Latest()
	assert.False(t, ok)
	assert.Zero(t, got)
	assert.True(t, a.IsLoading())
	assert.False(t, a.IsError())
}

func TestAggregatorRefreshCommits(t *testing.T) {
	a := New("test", time.Minute, func(ctx context.Context) ([]string, error) {
		return []string{"GME", "AMC"}, nil
	}, logger.Get())

	a.Refresh(context.Background())

	got, ok := a.Latest()
	require.True(t, ok)
	assert.Equal(t, []string{"GME", "AMC"}, got)
	assert.False(t, a.IsLoading())
}

func TestAggregatorFailureKeepsStaleData(t *testing.T) {
	calls := 0
	a := New("test", time.Minute, func(ctx context.Context) (int, error) {
		calls++
		if calls > 1 {
			return 0, errors.New("upstream down")
		}
		return 42, nil
	}, logger.Get())

	a.Refresh(context.Background())
	a.Refresh(context.Background())

	got, ok := a.Latest()
	require.True(t, ok, "stale data must survive a failed poll")
	assert.Equal(t, 42, got)
	assert.True(t, a.IsError())

	// A later success clears the flag again.
	calls = -10
	a.Refresh(context.Background())
	assert.False(t, a.IsError())
}

func TestAggregatorRunReportsLastError(t *testing.T) {
	a := New("test", time.Minute, func(ctx context.Context) (int, error) {
		return 0, errors.New("boom")
	}, logger.Get())

	err := a.Run(context.Background())
	assert.Error(t, err)
	assert.True(t, a.IsLoading())
}

func TestAggregatorLastRequestWins(t *testing.T) {
	// Two polls race: the first request's response arrives after the
	// second request has been issued and must be discarded.
	release := make(chan struct{})
	firstIssued := make(chan struct{})

	a := New("test", time.Minute, func(ctx context.Context) (string, error) {
		close(firstIssued)
		<-release
		return "stale", nil
	}, logger.Get())

	done := make(chan struct{})
	go func() {
		a.Refresh(context.Background())
		close(done)
	}()
	<-firstIssued

	a.Retarget(context.Background(), func(ctx context.Context) (string, error) {
		return "fresh", nil
	})

	require.Eventually(t, func() bool {
		got, ok := a.Latest()
		return ok && got == "fresh"
	}, 5*time.Second, time.Millisecond)

	close(release)
	<-done

	got, ok := a.Latest()
	require.True(t, ok)
	assert.Equal(t, "fresh", got, "older in-flight response must not overwrite the newer one")
}

func TestAggregatorSequenceIssuedWithFetch(t *testing.T) {
	// The sequence number is drawn in the same critical section that reads
	// the fetch function, so a request issued before a retarget always
	// carries an older sequence, no matter when its fetch actually runs or
	// its response lands.
	a := New("test", time.Minute, func(ctx context.Context) (string, error) {
		return "old-window", nil
	}, logger.Get())

	// A scheduled poll draws its sequence, then stalls before fetching.
	oldFetch, oldSeq := a.issue()

	a.Retarget(context.Background(), func(ctx context.Context) (string, error) {
		return "new-window", nil
	})
	require.Eventually(t, func() bool {
		got, ok := a.Latest()
		return ok && got == "new-window"
	}, 5*time.Second, time.Millisecond)

	// The stalled poll resolves last; its commit must be discarded.
	payload, err := oldFetch(context.Background())
	require.NoError(t, err)
	a.commit(oldSeq, payload, nil)

	got, ok := a.Latest()
	require.True(t, ok)
	assert.Equal(t, "new-window", got, "request issued before the retarget must never win the commit")
}

func TestAggregatorRefreshIfStaleSkipsFreshData(t *testing.T) {
	calls := 0
	a := New("test", time.Hour, func(ctx context.Context) (int, error) {
		calls++
		return calls, nil
	}, logger.Get())

	a.Refresh(context.Background())
	require.Equal(t, 1, calls)

	// Within the interval nothing new is issued.
	a.RefreshIfStale(context.Background())
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, calls)
}

func TestAggregatorRefreshIfStaleRevalidates(t *testing.T) {
	calls := make(chan struct{}, 4)
	a := New("test", time.Nanosecond, func(ctx context.Context) (int, error) {
		calls <- struct{}{}
		return 1, nil
	}, logger.Get())

	a.RefreshIfStale(context.Background())

	select {
	case <-calls:
	case <-time.After(5 * time.Second):
		t.Fatal("stale aggregator never revalidated")
	}
}

func TestAggregatorWorkerContract(t *testing.T) {
	a := New("trending", 30*time.Second, func(ctx context.Context) (int, error) {
		return 1, nil
	}, logger.Get())

	assert.Equal(t, "trending", a.Name())
	assert.Equal(t, 30*time.Second, a.Interval())
	assert.True(t, a.Enabled())
}
