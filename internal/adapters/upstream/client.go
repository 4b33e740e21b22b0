// Package upstream is the HTTP client for the hype metrics service. All
// dashboard reads (trending, leaderboard, per-ticker series) go through it;
// the live alert stream only borrows its URL builder and HTTP client.
package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"hypewatch/internal/domain/hype"
	"hypewatch/pkg/errors"
	"hypewatch/pkg/logger"
)

const maxResponseSize = 8 << 20

// Config holds the connection settings for the metrics service.
type Config struct {
	BaseURL        string
	Timeout        time.Duration
	MaxRetries     int
	RequestsPerSec float64
	Burst          int
}

// Client talks to the metrics service REST API. It rate-limits outgoing
// requests and retries transient failures with a short linear backoff.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	maxRetries int
	log        *logger.Logger
}

func NewClient(cfg Config, log *logger.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.Wrap(errors.ErrInvalidInput, "upstream base URL is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, errors.Wrapf(err, "invalid upstream base URL %q", cfg.BaseURL)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	rps := cfg.RequestsPerSec
	if rps <= 0 {
		rps = 5
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}

	return &Client{
		baseURL:    cfg.BaseURL,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(rps), burst),
		maxRetries: cfg.MaxRetries,
		log:        log,
	}, nil
}

// HTTPClient exposes the underlying client so the alert stream consumer can
// share its transport settings.
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}

// LiveAlertsURL returns the SSE endpoint for the live alert feed.
func (c *Client) LiveAlertsURL() string {
	return c.baseURL + "/v1/alerts/live"
}

// Trending fetches the ranked trending tickers for a window.
func (c *Client) Trending(ctx context.Context, window string, limit int) ([]hype.TrendingTicker, error) {
	q := url.Values{}
	q.Set("window", window)
	q.Set("limit", fmt.Sprintf("%d", limit))

	var tickers []hype.TrendingTicker
	if err := c.getJSON(ctx, "/v1/trending", q, &tickers); err != nil {
		return nil, errors.Wrapf(err, "fetch trending window=%s", window)
	}
	return tickers, nil
}

// Leaderboard fetches poster rankings by realized alpha.
func (c *Client) Leaderboard(ctx context.Context, metric string, minCalls int, window string) ([]hype.LeaderboardRow, error) {
	q := url.Values{}
	q.Set("metric", metric)
	q.Set("min_calls", fmt.Sprintf("%d", minCalls))
	q.Set("window", window)

	var rows []hype.LeaderboardRow
	if err := c.getJSON(ctx, "/v1/posters/leaderboard", q, &rows); err != nil {
		return nil, errors.Wrapf(err, "fetch leaderboard metric=%s", metric)
	}
	return rows, nil
}

// Mentions fetches the mention time series for one ticker.
func (c *Client) Mentions(ctx context.Context, symbol, granularity string, start, end time.Time) (*hype.MentionsResponse, error) {
	if symbol == "" {
		return nil, errors.Wrap(errors.ErrInvalidInput, "symbol is required")
	}

	q := url.Values{}
	q.Set("granularity", granularity)
	q.Set("start", start.UTC().Format(time.RFC3339))
	q.Set("end", end.UTC().Format(time.RFC3339))

	var resp hype.MentionsResponse
	path := fmt.Sprintf("/v1/tickers/%s/mentions", url.PathEscape(symbol))
	if err := c.getJSON(ctx, path, q, &resp); err != nil {
		return nil, errors.Wrapf(err, "fetch mentions symbol=%s", symbol)
	}
	return &resp, nil
}

// Impact fetches post-alert return statistics for one ticker.
func (c *Client) Impact(ctx context.Context, symbol, window string) (*hype.ImpactStats, error) {
	if symbol == "" {
		return nil, errors.Wrap(errors.ErrInvalidInput, "symbol is required")
	}

	q := url.Values{}
	q.Set("window", window)

	var stats hype.ImpactStats
	path := fmt.Sprintf("/v1/tickers/%s/impact", url.PathEscape(symbol))
	if err := c.getJSON(ctx, path, q, &stats); err != nil {
		return nil, errors.Wrapf(err, "fetch impact symbol=%s", symbol)
	}
	return &stats, nil
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out interface{}) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var lastErr error
	attempts := c.maxRetries + 1
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * 500 * time.Millisecond):
			}
			c.log.Debugf("Retrying upstream request %s (attempt %d/%d)", path, attempt+1, attempts)
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return errors.Wrap(err, "rate limiter wait")
		}

		retryable, err := c.doRequest(ctx, endpoint, out)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retryable {
			return err
		}
	}

	return lastErr
}

// doRequest performs a single GET and decodes the body. The bool reports
// whether the failure is worth retrying (network errors and 5xx responses).
func (c *Client) doRequest(ctx context.Context, endpoint string, out interface{}) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false, errors.Wrap(err, "create request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		return true, errors.Wrap(errors.ErrUnavailable, err.Error())
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return true, errors.Wrap(err, "read response body")
	}

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound:
		return false, errors.Wrapf(errors.ErrNotFound, "upstream returned 404 for %s", endpoint)
	case resp.StatusCode >= 500:
		return true, errors.Wrapf(errors.ErrExternal, "upstream returned %d", resp.StatusCode)
	default:
		return false, errors.Wrapf(errors.ErrExternal, "upstream returned %d: %s", resp.StatusCode, truncate(body, 200))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return false, errors.Wrap(err, "decode upstream response")
	}
	return false, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
