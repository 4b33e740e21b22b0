package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"hypewatch/pkg/logger"
)

// Pinger checks connectivity to a storage backend.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PollerState reports whether a background poller has usable data.
type PollerState interface {
	IsLoading() bool
	IsError() bool
}

// StreamState reports whether the live alert feed is connected.
type StreamState interface {
	Connected() bool
}

// Handler provides health check endpoints
type Handler struct {
	log         *logger.Logger
	store       Pinger
	trending    PollerState
	stream      StreamState
	startTime   time.Time
	serviceName string
	version     string
}

// New creates a new health check handler
func New(log *logger.Logger, store Pinger, trending PollerState, stream StreamState, serviceName, version string) *Handler {
	return &Handler{
		log:         log,
		store:       store,
		trending:    trending,
		stream:      stream,
		startTime:   time.Now(),
		serviceName: serviceName,
		version:     version,
	}
}

// HealthStatus represents the overall health status
type HealthStatus struct {
	Status    string                     `json:"status"` // "healthy", "degraded", "unhealthy"
	Service   string                     `json:"service"`
	Version   string                     `json:"version"`
	Uptime    string                     `json:"uptime"`
	Timestamp string                     `json:"timestamp"`
	Checks    map[string]ComponentHealth `json:"checks"`
}

// ComponentHealth represents health of a single component
type ComponentHealth struct {
	Status       string `json:"status"`
	ResponseTime string `json:"response_time,omitempty"`
	Error        string `json:"error,omitempty"`
}

// HandleLiveness returns 200 OK if service is running
func (h *Handler) HandleLiveness(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status": "alive",
	})
}

// HandleHealth returns detailed health status with per-component checks.
// The snapshot store gates overall health; a disconnected stream or a
// failing poller only degrades.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]ComponentHealth)

	storeHealth := h.checkStore(ctx)
	checks["snapshot_store"] = storeHealth
	checks["trending_poller"] = h.checkTrending()
	checks["alert_stream"] = h.checkStream()

	degraded := false
	for _, c := range checks {
		if c.Status != "healthy" {
			degraded = true
		}
	}

	status := HealthStatus{
		Status:    "healthy",
		Service:   h.serviceName,
		Version:   h.version,
		Uptime:    time.Since(h.startTime).String(),
		Timestamp: time.Now().Format(time.RFC3339),
		Checks:    checks,
	}

	statusCode := http.StatusOK
	if storeHealth.Status != "healthy" {
		status.Status = "unhealthy"
		statusCode = http.StatusServiceUnavailable
	} else if degraded {
		status.Status = "degraded" // still 200: reads keep working
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(status)
}

func (h *Handler) checkStore(ctx context.Context) ComponentHealth {
	if h.store == nil {
		return ComponentHealth{Status: "healthy"}
	}

	start := time.Now()
	err := h.store.Ping(ctx)
	elapsed := time.Since(start)

	if err != nil {
		h.log.Errorf("Snapshot store health check failed after %s: %v", elapsed, err)
		return ComponentHealth{
			Status:       "unhealthy",
			ResponseTime: elapsed.String(),
			Error:        err.Error(),
		}
	}

	return ComponentHealth{
		Status:       "healthy",
		ResponseTime: elapsed.String(),
	}
}

func (h *Handler) checkTrending() ComponentHealth {
	if h.trending == nil {
		return ComponentHealth{Status: "healthy"}
	}
	switch {
	case h.trending.IsError():
		return ComponentHealth{Status: "unhealthy", Error: "last poll failed"}
	case h.trending.IsLoading():
		return ComponentHealth{Status: "unhealthy", Error: "no data yet"}
	default:
		return ComponentHealth{Status: "healthy"}
	}
}

func (h *Handler) checkStream() ComponentHealth {
	if h.stream == nil {
		return ComponentHealth{Status: "healthy"}
	}
	if !h.stream.Connected() {
		return ComponentHealth{Status: "unhealthy", Error: "alert stream disconnected"}
	}
	return ComponentHealth{Status: "healthy"}
}
