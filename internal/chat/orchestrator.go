// Package chat streams grounded completions from the model provider.
package chat

import (
	"context"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"hypewatch/internal/digest"
	"hypewatch/internal/domain/hype"
	"hypewatch/pkg/errors"
	"hypewatch/pkg/logger"
)

const systemPersona = "You are a helpful WallStreetBets market intel assistant. Be concise, quantify hype, and mention relevant tickers."

// TrendingFetcher supplies fresh trending rows for grounding. A nil result
// is tolerated: the orchestrator falls back to caller-supplied rows.
type TrendingFetcher interface {
	Trending(ctx context.Context, window string, limit int) ([]hype.TrendingTicker, error)
}

// Config holds the model provider settings.
type Config struct {
	APIKey  string
	Model   string
	BaseURL string // overridable for tests
	Timeout time.Duration
}

// Orchestrator grounds each chat request in current dashboard data and
// relays the provider's streamed completion.
type Orchestrator struct {
	client   openai.Client // NewClient returns Client (not *Client)
	model    string
	hasKey   bool
	timeout  time.Duration
	trending TrendingFetcher
	log      *logger.Logger
}

// New creates the orchestrator. A missing API key is not an error here:
// construction always succeeds and requests fail with ErrMissingCredential,
// so the rest of the service runs without chat configured.
func New(cfg Config, trending TrendingFetcher) *Orchestrator {
	model := cfg.Model
	if model == "" {
		model = string(openai.ChatModelGPT4oMini)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &Orchestrator{
		client:   openai.NewClient(opts...),
		model:    model,
		hasKey:   cfg.APIKey != "",
		timeout:  timeout,
		trending: trending,
		log:      logger.Get().With("component", "chat_orchestrator", "model", model),
	}
}

// Ready reports whether the provider credential is configured.
func (o *Orchestrator) Ready() bool {
	return o.hasKey
}

// Stream validates the request, grounds it in dashboard data, and starts a
// completion stream. Pre-flight failures (missing credential, invalid
// conversation) are returned synchronously; failures after streaming begins
// arrive on the error channel after the text channel closes. Cancelling ctx
// stops the stream without discarding deltas already delivered.
func (o *Orchestrator) Stream(ctx context.Context, messages []hype.Message, dashboard *hype.DashboardPayload) (<-chan string, <-chan error, error) {
	if !o.hasKey {
		return nil, nil, errors.Wrap(errors.ErrMissingCredential, "OPENAI_API_KEY is not configured")
	}
	if len(messages) == 0 {
		return nil, nil, errors.Wrap(errors.ErrInvalidInput, "messages array is required")
	}
	last := messages[len(messages)-1]
	if strings.TrimSpace(last.Content) == "" {
		return nil, nil, errors.Wrap(errors.ErrInvalidInput, "last message is empty")
	}

	snapshot := o.buildSnapshot(ctx, dashboard)
	systemPrompt := systemPersona + "\n\n" + digest.Narrative(snapshot)

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(o.model),
		Messages: buildMessages(systemPrompt, messages),
	}

	textCh := make(chan string)
	errCh := make(chan error, 1)

	go func() {
		defer close(errCh)
		defer close(textCh)

		streamCtx, cancel := context.WithTimeout(ctx, o.timeout)
		defer cancel()

		stream := o.client.Chat.Completions.NewStreaming(streamCtx, params)
		defer stream.Close()

		for stream.Next() {
			chunk := stream.Current()
			if len(chunk.Choices) == 0 {
				continue
			}
			delta := chunk.Choices[0].Delta.Content
			if delta == "" {
				continue
			}
			select {
			case textCh <- delta:
			case <-ctx.Done():
				return
			}
		}

		if err := stream.Err(); err != nil && ctx.Err() == nil {
			o.log.Warnf("Completion stream failed: %v", err)
			errCh <- errors.Wrap(errors.ErrExternal, err.Error())
		}
	}()

	return textCh, errCh, nil
}

// buildSnapshot re-fetches trending server-side and merges with the caller's
// payload. Fetch failures degrade to the caller's rows rather than failing
// the chat request.
func (o *Orchestrator) buildSnapshot(ctx context.Context, dashboard *hype.DashboardPayload) hype.DashboardSnapshot {
	timeframe := hype.DefaultWindow
	if dashboard != nil && dashboard.Timeframe != "" {
		timeframe = dashboard.Timeframe
	}

	var apiTickers []hype.TrendingTicker
	if o.trending != nil {
		fetched, err := o.trending.Trending(ctx, timeframe, digest.MaxTickers)
		if err != nil {
			o.log.Warnf("Trending fetch for chat grounding failed: %v", err)
		} else {
			apiTickers = fetched
		}
	}

	return digest.BuildSnapshot(dashboard, apiTickers)
}

func buildMessages(systemPrompt string, messages []hype.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages)+1)
	out = append(out, openai.SystemMessage(systemPrompt))
	for _, m := range messages {
		switch m.Role {
		case hype.RoleAssistant:
			out = append(out, openai.AssistantMessage(m.Content))
		case hype.RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}
