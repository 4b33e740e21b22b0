package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	"hypewatch/internal/adapters/upstream"
	"hypewatch/internal/chat"
	"hypewatch/internal/domain/hype"
	"hypewatch/internal/metrics"
	"hypewatch/internal/poller"
	"hypewatch/internal/snapshots"
	"hypewatch/internal/stream"
	"hypewatch/pkg/errors"
	"hypewatch/pkg/logger"
)

// maxSeriesAggregators bounds the lazily created per-symbol pollers.
const maxSeriesAggregators = 64

// SeriesConfig carries the per-symbol polling settings.
type SeriesConfig struct {
	MentionsInterval time.Duration
	ImpactInterval   time.Duration
	ImpactWindow     string
}

// Handlers serves the dashboard read endpoints and the chat stream.
type Handlers struct {
	log          *logger.Logger
	client       *upstream.Client
	trending     *poller.Aggregator[[]hype.TrendingTicker]
	leaderboard  *poller.Aggregator[[]hype.LeaderboardRow]
	buffer       *stream.Buffer
	store        *snapshots.Store
	orchestrator *chat.Orchestrator
	series       SeriesConfig

	mu             sync.Mutex
	trendingWindow string
	trendingLimit  int
	mentions       map[string]*poller.Aggregator[*hype.MentionsResponse]
	impact         map[string]*poller.Aggregator[*hype.ImpactStats]
}

// NewHandlers wires the read endpoints over the shared aggregators, the
// alert tape, and the snapshot store.
func NewHandlers(
	client *upstream.Client,
	trending *poller.Aggregator[[]hype.TrendingTicker],
	trendingWindow string,
	trendingLimit int,
	leaderboard *poller.Aggregator[[]hype.LeaderboardRow],
	buffer *stream.Buffer,
	store *snapshots.Store,
	orchestrator *chat.Orchestrator,
	series SeriesConfig,
	log *logger.Logger,
) *Handlers {
	return &Handlers{
		log:            log.With("component", "api"),
		client:         client,
		trending:       trending,
		leaderboard:    leaderboard,
		buffer:         buffer,
		store:          store,
		orchestrator:   orchestrator,
		series:         series,
		trendingWindow: trendingWindow,
		trendingLimit:  trendingLimit,
		mentions:       make(map[string]*poller.Aggregator[*hype.MentionsResponse]),
		impact:         make(map[string]*poller.Aggregator[*hype.ImpactStats]),
	}
}

// HandleTrending serves the current trending board. A window query that
// differs from the one being polled retargets the shared aggregator, so the
// first response after a switch may still carry the previous window's rows.
func (h *Handlers) HandleTrending(w http.ResponseWriter, r *http.Request) {
	window := r.URL.Query().Get("window")
	if window == "" {
		window = hype.DefaultWindow
	}
	if !hype.ValidWindow(window) {
		http.Error(w, "unsupported window", http.StatusBadRequest)
		return
	}

	h.mu.Lock()
	if window != h.trendingWindow {
		h.trendingWindow = window
		limit := h.trendingLimit
		// The poll outlives this request, so detach from its cancellation.
		h.trending.Retarget(context.WithoutCancel(r.Context()), func(ctx context.Context) ([]hype.TrendingTicker, error) {
			return h.client.Trending(ctx, window, limit)
		})
	}
	h.mu.Unlock()

	rows, _ := h.trending.Latest()
	if rows == nil {
		rows = []hype.TrendingTicker{}
	}
	h.writeJSON(w, http.StatusOK, rows)
}

// HandleLeaderboard serves the latest poster leaderboard.
func (h *Handlers) HandleLeaderboard(w http.ResponseWriter, r *http.Request) {
	rows, _ := h.leaderboard.Latest()
	if rows == nil {
		rows = []hype.LeaderboardRow{}
	}
	h.writeJSON(w, http.StatusOK, rows)
}

// HandleAlerts serves the alert tape, newest first.
func (h *Handlers) HandleAlerts(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.buffer.Snapshot())
}

// HandleMentions serves the mention series for one ticker, polled lazily
// per symbol with stale-while-revalidate semantics.
func (h *Handlers) HandleMentions(w http.ResponseWriter, r *http.Request) {
	symbol := r.PathValue("symbol")
	if symbol == "" {
		http.Error(w, "symbol is required", http.StatusBadRequest)
		return
	}

	agg := h.mentionsAggregator(symbol)
	agg.RefreshIfStale(context.WithoutCancel(r.Context()))

	resp, ok := agg.Latest()
	if !ok {
		// First request for this symbol: block on one synchronous fetch.
		agg.Refresh(r.Context())
		resp, ok = agg.Latest()
	}
	if !ok {
		http.Error(w, "mention series unavailable", http.StatusBadGateway)
		return
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// HandleImpact serves post-alert return statistics for one ticker.
func (h *Handlers) HandleImpact(w http.ResponseWriter, r *http.Request) {
	symbol := r.PathValue("symbol")
	if symbol == "" {
		http.Error(w, "symbol is required", http.StatusBadRequest)
		return
	}

	agg := h.impactAggregator(symbol)
	agg.RefreshIfStale(context.WithoutCancel(r.Context()))

	stats, ok := agg.Latest()
	if !ok {
		agg.Refresh(r.Context())
		stats, ok = agg.Latest()
	}
	if !ok {
		http.Error(w, "impact stats unavailable", http.StatusBadGateway)
		return
	}
	h.writeJSON(w, http.StatusOK, stats)
}

// HandleListSnapshots serves the pinned snapshot history, newest first.
func (h *Handlers) HandleListSnapshots(w http.ResponseWriter, r *http.Request) {
	snaps, err := h.store.List()
	if err != nil {
		h.log.Errorf("Failed to list snapshots: %v", err)
		http.Error(w, "failed to list snapshots", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, snaps)
}

type captureRequest struct {
	Timeframe string                `json:"timeframe,omitempty"`
	Tickers   []hype.TrendingTicker `json:"tickers,omitempty"`
}

// HandleCaptureSnapshot pins a trending board. The caller may supply rows
// explicitly; otherwise the current trending poll is captured. Capturing an
// empty board is a no-op and answers 204.
func (h *Handlers) HandleCaptureSnapshot(w http.ResponseWriter, r *http.Request) {
	var req captureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	timeframe := req.Timeframe
	tickers := req.Tickers
	if len(tickers) == 0 {
		tickers, _ = h.trending.Latest()
		if timeframe == "" {
			h.mu.Lock()
			timeframe = h.trendingWindow
			h.mu.Unlock()
		}
	}

	snap, err := h.store.Save(timeframe, tickers)
	if err != nil {
		h.log.Errorf("Failed to save snapshot: %v", err)
		http.Error(w, "failed to save snapshot", http.StatusInternalServerError)
		return
	}
	if snap == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	h.writeJSON(w, http.StatusCreated, snap)
}

// HandleDeleteSnapshot removes one pinned snapshot. Unknown ids answer 204
// as well: the end state is the same.
func (h *Handlers) HandleDeleteSnapshot(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.store.Delete(id); err != nil {
		h.log.Errorf("Failed to delete snapshot %s: %v", id, err)
		http.Error(w, "failed to delete snapshot", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleClearSnapshots removes the whole snapshot history.
func (h *Handlers) HandleClearSnapshots(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Clear(); err != nil {
		h.log.Errorf("Failed to clear snapshots: %v", err)
		http.Error(w, "failed to clear snapshots", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type chatRequest struct {
	Messages  []hype.Message         `json:"messages"`
	Dashboard *hype.DashboardPayload `json:"dashboard,omitempty"`
}

// HandleChat streams a grounded completion as chunked text/plain, flushing
// each delta as it arrives. The status line is held until the provider
// produces its first delta, so a failure before any output still answers
// 500; once streaming has begun, provider failures can only terminate the
// body early.
func (h *Handlers) HandleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		metrics.ChatRequests.WithLabelValues("invalid").Inc()
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Messages == nil {
		metrics.ChatRequests.WithLabelValues("invalid").Inc()
		http.Error(w, "`messages` array is required", http.StatusBadRequest)
		return
	}

	start := time.Now()
	textCh, errCh, err := h.orchestrator.Stream(r.Context(), req.Messages, req.Dashboard)
	if err != nil {
		switch {
		case errors.Is(err, errors.ErrMissingCredential):
			metrics.ChatRequests.WithLabelValues("config_error").Inc()
			http.Error(w, "Missing OPENAI_API_KEY environment variable", http.StatusInternalServerError)
		case errors.Is(err, errors.ErrInvalidInput):
			metrics.ChatRequests.WithLabelValues("invalid").Inc()
			http.Error(w, err.Error(), http.StatusBadRequest)
		default:
			metrics.ChatRequests.WithLabelValues("provider_error").Inc()
			h.log.Errorf("Chat request failed: %v", err)
			http.Error(w, "Unable to generate response", http.StatusInternalServerError)
		}
		return
	}

	// Wait for the first delta before committing the status. The producer
	// closes textCh before errCh, and any terminal error is buffered first,
	// so a closed textCh with zero deltas means the verdict is already in.
	first, ok := <-textCh
	if !ok {
		if streamErr := <-errCh; streamErr != nil {
			metrics.ChatRequests.WithLabelValues("provider_error").Inc()
			h.log.Errorf("Chat request failed before streaming: %v", streamErr)
			http.Error(w, "Unable to generate response", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		metrics.ChatRequests.WithLabelValues("success").Inc()
		metrics.ChatStreamDuration.Observe(time.Since(start).Seconds())
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	rc := http.NewResponseController(w)

	delta := first
	for {
		if _, err := w.Write([]byte(delta)); err != nil {
			// Client went away; drain so the producer goroutine exits.
			for range textCh {
			}
			break
		}
		_ = rc.Flush()
		var more bool
		delta, more = <-textCh
		if !more {
			break
		}
	}

	status := "success"
	if streamErr := <-errCh; streamErr != nil {
		status = "provider_error"
		h.log.Warnf("Chat stream terminated early: %v", streamErr)
	}
	metrics.ChatRequests.WithLabelValues(status).Inc()
	metrics.ChatStreamDuration.Observe(time.Since(start).Seconds())
}

func (h *Handlers) mentionsAggregator(symbol string) *poller.Aggregator[*hype.MentionsResponse] {
	h.mu.Lock()
	defer h.mu.Unlock()

	if agg, ok := h.mentions[symbol]; ok {
		return agg
	}
	if len(h.mentions) >= maxSeriesAggregators {
		evictOne(h.mentions)
	}

	client := h.client
	agg := poller.New("mentions_"+symbol, h.series.MentionsInterval, func(ctx context.Context) (*hype.MentionsResponse, error) {
		end := time.Now().UTC()
		return client.Mentions(ctx, symbol, "1m", end.Add(-time.Hour), end)
	}, h.log)
	h.mentions[symbol] = agg
	return agg
}

func (h *Handlers) impactAggregator(symbol string) *poller.Aggregator[*hype.ImpactStats] {
	h.mu.Lock()
	defer h.mu.Unlock()

	if agg, ok := h.impact[symbol]; ok {
		return agg
	}
	if len(h.impact) >= maxSeriesAggregators {
		evictOne(h.impact)
	}

	client := h.client
	window := h.series.ImpactWindow
	agg := poller.New("impact_"+symbol, h.series.ImpactInterval, func(ctx context.Context) (*hype.ImpactStats, error) {
		return client.Impact(ctx, symbol, window)
	}, h.log)
	h.impact[symbol] = agg
	return agg
}

// evictOne drops one arbitrary entry from a full per-symbol cache. Evicted
// symbols are revived on their next request, so which one goes does not
// matter.
func evictOne[T any](m map[string]*poller.Aggregator[T]) {
	for k := range m {
		delete(m, k)
		return
	}
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.log.Warnf("Failed to encode response: %v", err)
	}
}
