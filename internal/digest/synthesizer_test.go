package digest

import (
	"fmt"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hypewatch/internal/domain/hype"
)

func trendingRow(sym string, hypeScore float64, mentions, authors int, z, sentiment float64) hype.TrendingTicker {
	return hype.TrendingTicker{
		Ticker:        sym,
		HypeScore:     hypeScore,
		Mentions:      mentions,
		UniqueAuthors: authors,
		ZScore:        z,
		AvgSentiment:  sentiment,
	}
}

func TestFormatSentiment(t *testing.T) {
	assert.Equal(t, "+12%", FormatSentiment(0.12))
	assert.Equal(t, "-8%", FormatSentiment(-0.08))
	assert.Equal(t, "0%", FormatSentiment(0))
	assert.Equal(t, "+100%", FormatSentiment(1.0))
	assert.Equal(t, "n/a", FormatSentiment(math.NaN()))
	assert.Equal(t, "n/a", FormatSentiment(math.Inf(1)))
	assert.Equal(t, "n/a", FormatSentiment(math.Inf(-1)))
}

func TestBuildSnapshotSourcePrecedence(t *testing.T) {
	clientRows := []hype.TrendingTicker{trendingRow("GME", 90, 100, 10, 2, 0.5)}
	apiRows := []hype.TrendingTicker{trendingRow("AMC", 80, 50, 5, 1, 0.2)}
	payload := &hype.DashboardPayload{Timeframe: "5m", Tickers: clientRows}

	t.Run("api wins over client", func(t *testing.T) {
		snap := BuildSnapshot(payload, apiRows)
		assert.Equal(t, hype.SourceAPI, snap.Source)
		assert.Equal(t, "AMC", snap.Tickers[0].Ticker)
	})

	t.Run("client when api empty", func(t *testing.T) {
		snap := BuildSnapshot(payload, nil)
		assert.Equal(t, hype.SourceClient, snap.Source)
		assert.Equal(t, "GME", snap.Tickers[0].Ticker)
	})

	t.Run("none when both empty", func(t *testing.T) {
		snap := BuildSnapshot(&hype.DashboardPayload{}, nil)
		assert.Equal(t, hype.SourceNone, snap.Source)
		assert.Empty(t, snap.Tickers)
	})
}

func TestBuildSnapshotDefaults(t *testing.T) {
	snap := BuildSnapshot(nil, nil)
	assert.Equal(t, hype.DefaultWindow, snap.Timeframe)
	assert.Equal(t, hype.SourceNone, snap.Source)
	assert.NotEmpty(t, snap.AsOf)
}

func TestBuildSnapshotCaps(t *testing.T) {
	var rows []hype.TrendingTicker
	for i := 0; i < 25; i++ {
		rows = append(rows, trendingRow(fmt.Sprintf("T%d", i), 50, i, 1, 0, 0))
	}
	var alerts []hype.AlertEvent
	for i := 0; i < 9; i++ {
		alerts = append(alerts, hype.AlertEvent{Ticker: fmt.Sprintf("A%d", i)})
	}

	snap := BuildSnapshot(&hype.DashboardPayload{Tickers: rows, Alerts: alerts}, nil)
	assert.Len(t, snap.Tickers, MaxTickers)
	assert.Len(t, snap.Alerts, MaxAlerts)
	// Caps keep the head of each list.
	assert.Equal(t, "T0", snap.Tickers[0].Ticker)
	assert.Equal(t, "A0", snap.Alerts[0].Ticker)
}

func TestNarrativeEmptyBoard(t *testing.T) {
	snap := hype.DashboardSnapshot{
		Timeframe: "24h",
		AsOf:      "2026-08-30T12:00:00Z",
		Source:    hype.SourceNone,
	}

	got := Narrative(snap)
	sections := strings.Split(got, "\n\n")
	require.Len(t, sections, 4)
	assert.Equal(t, "Dashboard data as of 2026-08-30T12:00:00Z (source: none).", sections[0])
	assert.Equal(t, "No trending tickers supplied for the 24h window.", sections[1])
	assert.Equal(t, "No live alerts captured yet.", sections[2])
	assert.Equal(t, "Reference these numbers directly when answering and call out notable divergences, spikes, or risk signals.", sections[3])
}

func TestNarrativeTrendingSection(t *testing.T) {
	snap := hype.DashboardSnapshot{
		Timeframe: "1h",
		AsOf:      "2026-08-30T12:00:00Z",
		Source:    hype.SourceAPI,
		Tickers: []hype.TrendingTicker{
			trendingRow("AAPL", 72.4, 310, 120, 3.21, 0.18),
			trendingRow("TSLA", 65.1, 250, 90, 4.02, -0.12),
		},
	}

	got := Narrative(snap)
	sections := strings.Split(got, "\n\n")
	require.Len(t, sections, 4)

	trending := sections[1]
	assert.Contains(t, trending, "Trending snapshot (1h window) top hype entries: "+
		"AAPL: hype 72.4, mentions 310, authors 120, z 3.21, sentiment +18%; "+
		"TSLA: hype 65.1, mentions 250, authors 90, z 4.02, sentiment -12%.")
	assert.Contains(t, trending, "AAPL leads mentions at 310.")
	assert.Contains(t, trending, "TSLA shows the sharpest z-score spike at 4.02.")
	assert.Contains(t, trending, "Sentiment spans from TSLA (-12%) to AAPL (+18%).")
}

func TestNarrativeExtremaTieBreakFirstWins(t *testing.T) {
	snap := hype.DashboardSnapshot{
		Timeframe: "1h",
		AsOf:      "x",
		Source:    hype.SourceClient,
		Tickers: []hype.TrendingTicker{
			trendingRow("FIRST", 50, 100, 10, 2.0, 0.1),
			trendingRow("SECOND", 50, 100, 10, 2.0, 0.1),
		},
	}

	trending := strings.Split(Narrative(snap), "\n\n")[1]
	assert.Contains(t, trending, "FIRST leads mentions at 100.")
	assert.Contains(t, trending, "FIRST shows the sharpest z-score spike at 2.00.")
	assert.Contains(t, trending, "Sentiment spans from FIRST (+10%) to FIRST (+10%).")
}

func TestNarrativeDescribesOnlyTopFive(t *testing.T) {
	var rows []hype.TrendingTicker
	for i := 0; i < 8; i++ {
		rows = append(rows, trendingRow(fmt.Sprintf("T%d", i), 10, 1, 1, 0, 0))
	}
	snap := hype.DashboardSnapshot{Timeframe: "1h", AsOf: "x", Source: hype.SourceClient, Tickers: rows}

	trending := strings.Split(Narrative(snap), "\n\n")[1]
	assert.Contains(t, trending, "T4:")
	assert.NotContains(t, trending, "T5:")
}

func TestNarrativeAlertTape(t *testing.T) {
	price := 187.5
	snap := hype.DashboardSnapshot{
		Timeframe: "1h",
		AsOf:      "x",
		Source:    hype.SourceNone,
		Alerts: []hype.AlertEvent{
			{
				TS:            time.Date(2026, 8, 30, 14, 30, 0, 0, time.UTC),
				Ticker:        "GME",
				Tier:          hype.TierActionable,
				HypeScore:     91.5,
				UniqueAuthors: 44,
				AvgSentiment:  0.305,
				PriceAtAlert:  &price,
			},
			{
				TS:            time.Date(2026, 8, 30, 14, 15, 0, 0, time.UTC),
				Ticker:        "AMC",
				Tier:          hype.TierHeadsUp,
				HypeScore:     55.0,
				UniqueAuthors: 12,
				AvgSentiment:  -0.2,
			},
		},
	}

	alerts := strings.Split(Narrative(snap), "\n\n")[2]
	assert.Equal(t, "Recent alert tape (latest first): "+
		"02:30 PM GME (actionable) hype 91.5, authors 44, sentiment +31%; "+
		"02:15 PM AMC (heads-up) hype 55.0, authors 12, sentiment -20%.", alerts)
}

func TestNarrativeIsDeterministic(t *testing.T) {
	snap := hype.DashboardSnapshot{
		Timeframe: "1h",
		AsOf:      "2026-08-30T12:00:00Z",
		Source:    hype.SourceAPI,
		Tickers:   []hype.TrendingTicker{trendingRow("NVDA", 88, 400, 200, 5.5, 0.4)},
	}

	assert.Equal(t, Narrative(snap), Narrative(snap))
}
