package anthropic

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/promo-scout/internal/resilience"
)

// Completer issues a single prompt as one user-role message and returns the raw
// response text. No conversation state, no streaming, no caching.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// CompleterConfig configures a Completer.
type CompleterConfig struct {
	Model             string
	MaxTokens         int64
	MaxAttempts       int
	RequestsPerMinute int
}

type completer struct {
	client  Client
	model   string
	maxTok  int64
	limiter *rate.Limiter
	retry   resilience.Config
}

// NewCompleter builds a Completer over a Client with a fixed model. Transient
// upstream failures are retried with backoff inside this boundary; callers see
// only the final error.
func NewCompleter(client Client, cfg CompleterConfig) Completer {
	maxTok := cfg.MaxTokens
	if maxTok <= 0 {
		maxTok = 4096
	}

	rpm := cfg.RequestsPerMinute
	limiter := rate.NewLimiter(rate.Inf, 1)
	if rpm > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(rpm)/60.0), 1)
	}

	retryCfg := resilience.DefaultConfig()
	if cfg.MaxAttempts > 0 {
		retryCfg.MaxAttempts = cfg.MaxAttempts
	}
	retryCfg.OnRetry = resilience.RetryLogger("anthropic", "complete")

	return &completer{
		client:  client,
		model:   cfg.Model,
		maxTok:  maxTok,
		limiter: limiter,
		retry:   retryCfg,
	}
}

func (c *completer) Complete(ctx context.Context, prompt string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", eris.Wrap(err, "anthropic: rate limiter")
	}

	resp, err := resilience.Do(ctx, c.retry, func(ctx context.Context) (*MessageResponse, error) {
		return c.client.CreateMessage(ctx, MessageRequest{
			Model:     c.model,
			MaxTokens: c.maxTok,
			Messages: []Message{
				{Role: "user", Content: prompt},
			},
		})
	})
	if err != nil {
		return "", err
	}

	resp.Usage.LogUsage(c.model, "complete")
	return ExtractText(resp), nil
}

// ExtractText concatenates all text content blocks from a message response.
func ExtractText(resp *MessageResponse) string {
	if resp == nil {
		return ""
	}
	var parts []string
	for _, block := range resp.Content {
		if block.Text != "" {
			parts = append(parts, block.Text)
		}
	}
	return strings.Join(parts, "\n")
}
