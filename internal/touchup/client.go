package touchup

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrWong99/voicewriter/internal/observe"
)

// DefaultTimeout bounds a single backend call.
const DefaultTimeout = 15 * time.Second

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per-call backend timeout. Non-positive values disable
// the timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithMetrics records backend outcomes on m.
func WithMetrics(m *observe.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithName labels the backend in metrics. Default: "backend".
func WithName(name string) Option {
	return func(c *Client) {
		c.name = name
	}
}

// WithRules replaces the local fallback rules.
func WithRules(r *Rules) Option {
	return func(c *Client) {
		c.rules = r
	}
}

// Client is the text touch-up entry point. It is safe for concurrent use.
type Client struct {
	backend Improver
	name    string
	rules   *Rules
	timeout time.Duration
	metrics *observe.Metrics
}

// NewClient returns a Client that asks backend first and falls back to the
// local rules. A nil backend means rules only.
func NewClient(backend Improver, opts ...Option) *Client {
	c := &Client{
		backend: backend,
		name:    "backend",
		rules:   defaultRules,
		timeout: DefaultTimeout,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Improve returns the touched-up form of text. Blank input returns "".
// Backend failures are logged and degrade to the local rules; Improve itself
// never fails.
func (c *Client) Improve(ctx context.Context, text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	if c.backend == nil {
		return c.rules.apply(text)
	}

	ctx, span := observe.StartSpan(ctx, "touchup.improve",
		trace.WithAttributes(attribute.Int("text.length", len(text))))
	defer span.End()

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	improved, err := c.backend.Improve(ctx, text)
	if c.metrics != nil {
		c.metrics.RecordProviderRequest(ctx, c.name, "touchup", statusOf(err))
		c.metrics.RecordTouchupDuration(ctx, time.Since(start))
	}
	improved = strings.TrimSpace(improved)
	if err != nil || improved == "" {
		observe.Logger(ctx).Warn("touchup backend unusable, applying local rules", "err", err)
		if c.metrics != nil {
			c.metrics.RecordProviderError(ctx, c.name, "touchup")
		}
		return c.rules.apply(text)
	}
	return improved
}

func statusOf(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
