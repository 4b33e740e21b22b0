// Package digest turns dashboard state into the deterministic prose digest
// that grounds chat completions.
package digest

import (
	"fmt"
	"math"
	"strings"
	"time"

	"hypewatch/internal/domain/hype"
)

const (
	// MaxTickers bounds how many trending rows a single digest considers.
	MaxTickers = 15
	// MaxAlerts bounds the alert tape carried into the digest.
	MaxAlerts = 5
	// topEntries is how many rows the headline enumeration describes.
	topEntries = 5
)

// BuildSnapshot assembles the capped, provenance-tagged dashboard view for
// one chat request. Server-fetched rows take precedence over caller-supplied
// ones; the source tag records which side won.
func BuildSnapshot(payload *hype.DashboardPayload, apiTickers []hype.TrendingTicker) hype.DashboardSnapshot {
	timeframe := hype.DefaultWindow
	if payload != nil && payload.Timeframe != "" {
		timeframe = payload.Timeframe
	}

	var tickers []hype.TrendingTicker
	source := hype.SourceNone
	switch {
	case len(apiTickers) > 0:
		tickers = capTickers(apiTickers)
		source = hype.SourceAPI
	case payload != nil && len(payload.Tickers) > 0:
		tickers = capTickers(payload.Tickers)
		source = hype.SourceClient
	}

	var alerts []hype.AlertEvent
	if payload != nil && len(payload.Alerts) > 0 {
		alerts = payload.Alerts
		if len(alerts) > MaxAlerts {
			alerts = alerts[:MaxAlerts]
		}
	}

	asOf := time.Now().UTC().Format(time.RFC3339)
	if payload != nil && payload.AsOf != "" {
		asOf = payload.AsOf
	}

	return hype.DashboardSnapshot{
		Timeframe: timeframe,
		Tickers:   tickers,
		Alerts:    alerts,
		AsOf:      asOf,
		Source:    source,
	}
}

func capTickers(tickers []hype.TrendingTicker) []hype.TrendingTicker {
	if len(tickers) > MaxTickers {
		return tickers[:MaxTickers]
	}
	return tickers
}

// Narrative renders the digest: provenance line, trending summary, alert
// tape, and usage instruction, separated by blank lines. The output is a
// pure function of the snapshot.
func Narrative(snapshot hype.DashboardSnapshot) string {
	sections := []string{
		fmt.Sprintf("Dashboard data as of %s (source: %s).", snapshot.AsOf, snapshot.Source),
		trendingNarrative(snapshot),
		alertsNarrative(snapshot.Alerts),
		"Reference these numbers directly when answering and call out notable divergences, spikes, or risk signals.",
	}
	return strings.Join(sections, "\n\n")
}

func trendingNarrative(snapshot hype.DashboardSnapshot) string {
	if len(snapshot.Tickers) == 0 {
		return fmt.Sprintf("No trending tickers supplied for the %s window.", snapshot.Timeframe)
	}

	top := snapshot.Tickers
	if len(top) > topEntries {
		top = top[:topEntries]
	}
	described := make([]string, len(top))
	for i, t := range top {
		described[i] = describeTicker(t)
	}

	// Extrema scans are strict comparisons left to right, so the earlier
	// (higher-ranked) row wins every tie.
	mentionLeader := snapshot.Tickers[0]
	sentimentHigh := snapshot.Tickers[0]
	sentimentLow := snapshot.Tickers[0]
	zSpike := snapshot.Tickers[0]
	for _, t := range snapshot.Tickers[1:] {
		if t.Mentions > mentionLeader.Mentions {
			mentionLeader = t
		}
		if t.AvgSentiment > sentimentHigh.AvgSentiment {
			sentimentHigh = t
		}
		if t.AvgSentiment < sentimentLow.AvgSentiment {
			sentimentLow = t
		}
		if t.ZScore > zSpike.ZScore {
			zSpike = t
		}
	}

	sentences := []string{
		fmt.Sprintf("Trending snapshot (%s window) top hype entries: %s.", snapshot.Timeframe, strings.Join(described, "; ")),
		fmt.Sprintf("%s leads mentions at %d.", mentionLeader.Ticker, mentionLeader.Mentions),
		fmt.Sprintf("%s shows the sharpest z-score spike at %.2f.", zSpike.Ticker, zSpike.ZScore),
		fmt.Sprintf("Sentiment spans from %s (%s) to %s (%s).",
			sentimentLow.Ticker, FormatSentiment(sentimentLow.AvgSentiment),
			sentimentHigh.Ticker, FormatSentiment(sentimentHigh.AvgSentiment)),
	}
	return strings.Join(sentences, " ")
}

func describeTicker(t hype.TrendingTicker) string {
	return fmt.Sprintf("%s: hype %.1f, mentions %d, authors %d, z %.2f, sentiment %s",
		t.Ticker, t.HypeScore, t.Mentions, t.UniqueAuthors, t.ZScore, FormatSentiment(t.AvgSentiment))
}

func alertsNarrative(alerts []hype.AlertEvent) string {
	if len(alerts) == 0 {
		return "No live alerts captured yet."
	}
	if len(alerts) > MaxAlerts {
		alerts = alerts[:MaxAlerts]
	}

	rows := make([]string, len(alerts))
	for i, a := range alerts {
		rows[i] = fmt.Sprintf("%s %s (%s) hype %.1f, authors %d, sentiment %s",
			a.TS.Format("03:04 PM"), a.Ticker, a.Tier, a.HypeScore, a.UniqueAuthors, FormatSentiment(a.AvgSentiment))
	}
	return fmt.Sprintf("Recent alert tape (latest first): %s.", strings.Join(rows, "; "))
}

// FormatSentiment renders a sentiment score in [-1, 1] as a signed whole
// percent. Positive values carry an explicit plus sign; non-finite input
// renders as "n/a".
func FormatSentiment(value float64) string {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return "n/a"
	}
	percent := math.Round(value * 100)
	if value > 0 {
		return fmt.Sprintf("+%.0f%%", percent)
	}
	return fmt.Sprintf("%.0f%%", percent)
}
