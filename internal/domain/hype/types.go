// Package hype holds the wire types exchanged with the upstream metrics
// service and the shapes derived from them for chat grounding.
package hype

import "time"

// TrendingTicker is one ranked row of the trending board. Ordering within
// a board is rank order (upstream sorts by mentions descending).
type TrendingTicker struct {
	Ticker        string   `json:"ticker"`
	Mentions      int      `json:"mentions"`
	UniqueAuthors int      `json:"unique_authors"`
	AvgSentiment  float64  `json:"avg_sentiment"`
	ZScore        float64  `json:"zscore"`
	HypeScore     float64  `json:"hype_score"`
	FirstSeen     string   `json:"first_seen"`
	Window        string   `json:"window,omitempty"`
	LastPrice     *float64 `json:"last_price,omitempty"`
	Sparkline     []int    `json:"sparkline,omitempty"`
}

// AlertTier classifies alert severity.
type AlertTier string

const (
	TierHeadsUp    AlertTier = "heads-up"
	TierActionable AlertTier = "actionable"
)

// AlertEvent is one threshold-triggered alert pushed over the live stream.
// Events are immutable once received; arrival order is authoritative.
type AlertEvent struct {
	TS             time.Time `json:"ts"`
	Ticker         string    `json:"ticker"`
	Tier           AlertTier `json:"tier"`
	HypeScore      float64   `json:"hype_score"`
	ZScore         float64   `json:"zscore"`
	UniqueAuthors  int       `json:"unique_authors"`
	ThreadsTouched int       `json:"threads_touched"`
	AvgSentiment   float64   `json:"avg_sentiment"`
	PriceAtAlert   *float64  `json:"price_at_alert,omitempty"`
}

// LeaderboardRow is one ranked poster on the realized-alpha leaderboard.
type LeaderboardRow struct {
	Author       string  `json:"author"`
	N            int     `json:"n"`
	Alpha1dMed   float64 `json:"alpha_1d_med"`
	Alpha1hMed   float64 `json:"alpha_1h_med"`
	WinRate      float64 `json:"win_rate"`
	EarlyScore   float64 `json:"early_score"`
	LastCalledAt *string `json:"last_called_at,omitempty"`
}

// MentionPoint is one bucket of the per-ticker mention series.
type MentionPoint struct {
	TS       time.Time `json:"ts"`
	Mentions int       `json:"mentions"`
}

// MentionsResponse is the per-ticker mention time series.
type MentionsResponse struct {
	Ticker string         `json:"ticker"`
	Series []MentionPoint `json:"series"`
}

// ImpactStats aggregates forward returns after alerts, keyed by return window.
type ImpactStats struct {
	Samples int                `json:"samples"`
	Avg     map[string]float64 `json:"avg"`
	CAR     map[string]float64 `json:"car,omitempty"`
}

// Windows accepted by the trending endpoint.
var TrendingWindows = []string{"5m", "1h", "24h", "7d", "30d"}

// DefaultWindow is the timeframe assumed when a caller does not name one.
const DefaultWindow = "1h"

// ValidWindow reports whether w is one of the supported trending windows.
func ValidWindow(w string) bool {
	for _, known := range TrendingWindows {
		if w == known {
			return true
		}
	}
	return false
}

// Snapshot is a user-captured trending board persisted across sessions.
type Snapshot struct {
	ID         string           `json:"id"`
	Timeframe  string           `json:"timeframe"`
	CapturedAt time.Time        `json:"captured_at"`
	Tickers    []TrendingTicker `json:"tickers"`
}

// Source tags where a dashboard snapshot's ranked list came from.
type Source string

const (
	SourceAPI    Source = "api"    // fresh server-side re-fetch
	SourceClient Source = "client" // caller-supplied rows
	SourceNone   Source = "none"   // nothing available
)

// DashboardPayload is the optional caller-supplied dashboard state on a
// chat request.
type DashboardPayload struct {
	Timeframe string           `json:"timeframe,omitempty"`
	Tickers   []TrendingTicker `json:"tickers,omitempty"`
	Alerts    []AlertEvent     `json:"alerts,omitempty"`
	AsOf      string           `json:"asOf,omitempty"`
}

// DashboardSnapshot is the capped, provenance-tagged view a single chat
// request is grounded in. Rebuilt per request, never persisted.
type DashboardSnapshot struct {
	Timeframe string
	Tickers   []TrendingTicker
	Alerts    []AlertEvent
	AsOf      string
	Source    Source
}

// Role identifies the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of the chat conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}
