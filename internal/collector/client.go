// Package collector delivers completed rows to the remote research sink.
package collector

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/feedlab/feedlab/internal/core/domain"
	"github.com/feedlab/feedlab/internal/core/ports"
)

const defaultTimeout = 10 * time.Second

// Client posts a participant row plus its full event log to the collector
// endpoint in a single exchange authenticated by a shared token. Delivery is
// best effort: any failure is contained and reported as false. There is no
// automatic retry; callers must persist locally before attempting a send.
type Client struct {
	url        string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

var _ ports.Collector = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient substitutes the HTTP client, for tests.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpClient = c }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(cl *Client) { cl.httpClient.Timeout = d }
}

// WithLogger sets the client's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(cl *Client) { cl.logger = logger }
}

// New creates a collector client for the given endpoint.
func New(url, token string, opts ...Option) *Client {
	c := &Client{
		url:   url,
		token: token,
		httpClient: &http.Client{
			Timeout:   defaultTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type payload struct {
	Token  string            `json:"token"`
	Row    map[string]string `json:"row"`
	Events []domain.Event    `json:"events"`
}

type response struct {
	OK bool `json:"ok"`
}

// Send performs the single request/response exchange. Success requires a 2xx
// status and a body decoding to {ok: true}; everything else is a contained
// failure logged as a warning.
func (c *Client) Send(ctx context.Context, row domain.ParticipantRow, events []domain.Event) bool {
	if c.url == "" {
		c.logger.Warn("collector not configured, skipping send",
			slog.String("session_id", row.SessionID))
		return false
	}

	body, err := json.Marshal(payload{Token: c.token, Row: row.FlatMap(), Events: events})
	if err != nil {
		c.logger.Warn("collector payload marshal failed", slog.String("error", err.Error()))
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		c.logger.Warn("collector request build failed", slog.String("error", err.Error()))
		return false
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("collector unreachable",
			slog.String("session_id", row.SessionID),
			slog.String("error", err.Error()))
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn("collector rejected row",
			slog.String("session_id", row.SessionID),
			slog.Int("status", resp.StatusCode))
		return false
	}

	var out response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		c.logger.Warn("collector response unreadable", slog.String("error", err.Error()))
		return false
	}
	if !out.OK {
		c.logger.Warn("collector reported not ok", slog.String("session_id", row.SessionID))
		return false
	}

	c.logger.Info("row delivered to collector",
		slog.String("session_id", row.SessionID),
		slog.Int("events", len(events)))
	return true
}
