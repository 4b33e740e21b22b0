package stream

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hypewatch/internal/domain/hype"
)

func makeAlert(ticker string, offset int) hype.AlertEvent {
	return hype.AlertEvent{
		TS:        time.Date(2026, 8, 30, 12, 0, offset, 0, time.UTC),
		Ticker:    ticker,
		Tier:      hype.TierHeadsUp,
		HypeScore: float64(offset),
	}
}

func TestBufferDefaultCapacity(t *testing.T) {
	assert.Equal(t, DefaultCapacity, NewBuffer(0).Capacity())
	assert.Equal(t, DefaultCapacity, NewBuffer(-3).Capacity())
	assert.Equal(t, 1, NewBuffer(1).Capacity())
}

func TestBufferNewestFirst(t *testing.T) {
	b := NewBuffer(5)
	b.Push(makeAlert("GME", 0))
	b.Push(makeAlert("AMC", 1))
	b.Push(makeAlert("TSLA", 2))

	got := b.Snapshot()
	require.Len(t, got, 3)
	assert.Equal(t, "TSLA", got[0].Ticker)
	assert.Equal(t, "AMC", got[1].Ticker)
	assert.Equal(t, "GME", got[2].Ticker)
}

func TestBufferEvictsOldest(t *testing.T) {
	b := NewBuffer(2)
	b.Push(makeAlert("T0", 0))
	b.Push(makeAlert("T1", 1))
	b.Push(makeAlert("T2", 2))

	got := b.Snapshot()
	require.Len(t, got, 2)
	assert.Equal(t, "T2", got[0].Ticker)
	assert.Equal(t, "T1", got[1].Ticker)
	assert.Equal(t, 2, b.Len())
}

func TestBufferKeepsDuplicates(t *testing.T) {
	b := NewBuffer(5)
	dup := makeAlert("GME", 7)
	b.Push(dup)
	b.Push(dup)

	assert.Equal(t, 2, b.Len())
}

func TestBufferSnapshotIsolation(t *testing.T) {
	b := NewBuffer(5)
	b.Push(makeAlert("GME", 0))

	snap := b.Snapshot()
	snap[0].Ticker = "mutated"

	assert.Equal(t, "GME", b.Snapshot()[0].Ticker)
}

func TestBufferConcurrentPush(t *testing.T) {
	b := NewBuffer(8)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			b.Push(makeAlert(fmt.Sprintf("T%d", n), n))
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 8, b.Len())
	assert.Len(t, b.Snapshot(), 8)
}
