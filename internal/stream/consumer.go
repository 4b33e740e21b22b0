package stream

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"

	"hypewatch/internal/domain/hype"
	"hypewatch/internal/metrics"
	"hypewatch/pkg/errors"
	"hypewatch/pkg/logger"
)

// State describes the consumer's position in its connection lifecycle.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateClosed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

const maxEventSize = 1 << 20

// Consumer owns exactly one subscription to the live alert stream and
// feeds decoded events into its buffer. It never reconnects on its own:
// a connection-level failure moves it to StateClosed and signals Done,
// leaving the decision to reopen to the owner.
type Consumer struct {
	url        string
	httpClient *http.Client
	buffer     *Buffer
	log        *logger.Logger

	state  atomic.Int32
	events atomic.Uint64
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
	err    error
}

// NewConsumer creates a consumer for the given live-alert URL, pushing
// into buffer. The buffer's capacity is fixed for the consumer's lifetime;
// a different capacity requires a new buffer and a new consumer.
func NewConsumer(url string, buffer *Buffer, httpClient *http.Client, log *logger.Logger) *Consumer {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Consumer{
		url:        url,
		httpClient: httpClient,
		buffer:     buffer,
		log:        log.With("component", "alert_consumer"),
		done:       make(chan struct{}),
	}
}

// State returns the current lifecycle state.
func (c *Consumer) State() State {
	return State(c.state.Load())
}

// Done is closed once the consumer has terminated, whether by stream
// failure or an explicit Close.
func (c *Consumer) Done() <-chan struct{} {
	return c.done
}

// Events returns how many alerts this connection has delivered.
func (c *Consumer) Events() uint64 {
	return c.events.Load()
}

// Err returns the terminal stream error, if any, after Done is closed.
func (c *Consumer) Err() error {
	select {
	case <-c.done:
		return c.err
	default:
		return nil
	}
}

// Start opens the subscription and begins decoding events in the
// background. It may be called at most once.
func (c *Consumer) Start(ctx context.Context) error {
	if !c.state.CompareAndSwap(int32(StateDisconnected), int32(StateConnecting)) {
		return errors.Wrap(errors.ErrInvalidInput, "consumer already started")
	}

	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		wrapped := errors.Wrap(err, "build alert stream request")
		c.shutdown(wrapped)
		return wrapped
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-store")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		wrapped := errors.Wrap(err, "open alert stream")
		c.shutdown(wrapped)
		return wrapped
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		wrapped := errors.Wrapf(errors.ErrExternal, "alert stream returned status %d", resp.StatusCode)
		c.shutdown(wrapped)
		return wrapped
	}

	c.state.Store(int32(StateConnected))
	c.log.Infow("alert stream connected", "url", c.url)

	go c.readLoop(resp.Body)
	return nil
}

// Close tears down the subscription. Idempotent; safe after the stream
// has already finished naturally.
func (c *Consumer) Close() {
	c.shutdown(nil)
}

// readLoop decodes SSE frames until the stream ends. A malformed payload
// drops that single event; only connection-level errors end the loop.
func (c *Consumer) readLoop(body io.ReadCloser) {
	defer body.Close()

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxEventSize)

	for scanner.Scan() {
		line := scanner.Text()
		// Blank separators, ":" comments and "event:"/"id:" fields carry no payload.
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" {
			continue
		}

		var event hype.AlertEvent
		if err := json.Unmarshal([]byte(payload), &event); err != nil {
			metrics.AlertEventsDropped.Inc()
			c.log.Debugw("dropping malformed alert payload", "error", err)
			continue
		}

		c.buffer.Push(event)
		c.events.Add(1)
		metrics.AlertEventsReceived.Inc()
	}

	err := scanner.Err()
	if err != nil && !errors.Is(err, context.Canceled) {
		c.shutdown(errors.Wrap(err, "alert stream read"))
		return
	}
	c.shutdown(nil)
}

func (c *Consumer) shutdown(err error) {
	c.once.Do(func() {
		c.err = err
		if c.cancel != nil {
			c.cancel()
		}
		c.state.Store(int32(StateClosed))
		close(c.done)

		if err != nil {
			c.log.Warnw("alert stream closed", "error", err)
		} else {
			c.log.Debugw("alert stream closed")
		}
	})
}
