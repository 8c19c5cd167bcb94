// Package metrika implements a server-side Yandex Metrika client that
// reports goal hits for visitor milestones. Hits are best effort: a broken
// counter never affects the visitor flow.
package metrika

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/vote-vog/remedia-hub/internal/domain/shared"
	"github.com/vote-vog/remedia-hub/pkg/circuitbreaker"
	"github.com/vote-vog/remedia-hub/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// ClientConfig contains configuration for the Metrika client.
type ClientConfig struct {
	// CounterID is the Metrika counter the landing page is registered under.
	CounterID string

	// SiteHost is the host goals are attributed to, e.g. "remedia.health".
	SiteHost string

	// BaseURL is the Metrika collection endpoint (default: https://mc.yandex.ru).
	BaseURL string

	// Timeout is the HTTP request timeout.
	Timeout time.Duration

	// Logger for structured logging.
	Logger *slog.Logger
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig(counterID, siteHost string) ClientConfig {
	return ClientConfig{
		CounterID: counterID,
		SiteHost:  siteHost,
		BaseURL:   "https://mc.yandex.ru",
		Timeout:   5 * time.Second,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// Client reports goal hits to Yandex Metrika.
type Client struct {
	config     ClientConfig
	httpClient *http.Client
	logger     *slog.Logger
	retrier    *retry.Retrier
	breaker    *circuitbreaker.CircuitBreaker
}

// NewClient creates a new Metrika client.
func NewClient(config ClientConfig) *Client {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.BaseURL == "" {
		config.BaseURL = "https://mc.yandex.ru"
	}

	logger := config.Logger.With("component", "metrika")
	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		logger:  logger,
		retrier: retry.MetrikaRetrier(),
		breaker: circuitbreaker.MetrikaBreaker(func(name string, from, to circuitbreaker.State) {
			logger.Warn("circuit state changed", "breaker", name, "from", from.String(), "to", to.String())
		}),
	}
}

// Enabled reports whether the client has a counter to report to.
func (c *Client) Enabled() bool {
	return c.config.CounterID != ""
}

// ReachGoal reports a goal hit for the given visitor. Params are attached
// as site-info payload; nil params are fine.
func (c *Client) ReachGoal(ctx context.Context, visitorID, goal string, params map[string]interface{}) error {
	if !c.Enabled() {
		return nil
	}
	if goal == "" {
		return fmt.Errorf("metrika: empty goal name")
	}

	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		return c.retrier.Do(ctx, func(ctx context.Context) error {
			return c.sendHit(ctx, visitorID, goal, params)
		})
	})
	if err != nil {
		return shared.WrapError("metrika", "ReachGoal", shared.ErrMetrikaAPIFailed, "goal hit failed", err)
	}
	return nil
}

// sendHit performs a single collection request. The goal URL scheme is the
// one the Metrika JS counter uses for reachGoal.
func (c *Client) sendHit(ctx context.Context, visitorID, goal string, params map[string]interface{}) error {
	query := url.Values{}
	query.Set("page-url", fmt.Sprintf("goal://%s/%s", c.config.SiteHost, goal))
	query.Set("browser-info", "ar:1")
	if visitorID != "" {
		query.Set("uid", visitorID)
	}
	if len(params) > 0 {
		if encoded, err := json.Marshal(params); err == nil {
			query.Set("site-info", string(encoded))
		}
	}

	hitURL := fmt.Sprintf("%s/watch/%s?%s", c.config.BaseURL, c.config.CounterID, query.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, hitURL, nil)
	if err != nil {
		return retry.Permanent(fmt.Errorf("create request: %w", err))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return retry.Retryable(fmt.Errorf("http request: %w", err))
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return retry.Retryable(fmt.Errorf("metrika status %d", resp.StatusCode))
	default:
		return retry.Permanent(fmt.Errorf("metrika status %d", resp.StatusCode))
	}
}
