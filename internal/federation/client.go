package federation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/dreamware/solarnet/internal/resource"
)

const tracerName = "github.com/dreamware/solarnet/internal/federation"

const (
	// DefaultTimeout bounds a hub query when the caller passes no timeout.
	DefaultTimeout = 5 * time.Second
	// DefaultMaxBodyBytes caps the catalog body read from one hub.
	DefaultMaxBodyBytes int64 = 10 << 20
	// MaxBodyBytesLimit is the largest accepted MaxBodyBytes; larger values
	// are clamped to it.
	MaxBodyBytesLimit int64 = 1 << 40
)

// ClientConfig tunes the Hub Query Client.
type ClientConfig struct {
	DefaultTimeout time.Duration
	MaxBodyBytes   int64
	UserAgent      string
}

// DefaultClientConfig returns the configuration used by the CLI and gateway.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		DefaultTimeout: DefaultTimeout,
		MaxBodyBytes:   DefaultMaxBodyBytes,
		UserAgent:      "solarnet-search/1.0",
	}
}

// catalogEnvelope is the body shape of GET /api/resources. Other top-level
// fields (@context, timestamp) are ignored. Elements are decoded one by one so
// a single stray entry does not cost the whole hub.
type catalogEnvelope struct {
	Resources []json.RawMessage `json:"resources"`
}

// Client queries a single hub's catalog and classifies the outcome.
// It holds no per-query state and is safe for concurrent use.
type Client struct {
	httpClient *http.Client
	cfg        ClientConfig
	logger     *zap.Logger
	metrics    *Metrics
	tracer     trace.Tracer
}

// NewClient creates a Hub Query Client. A nil logger or metrics disables
// that concern.
//
// Example:
//
//	client := NewClient(DefaultClientConfig(), logger, NewMetrics())
//	outcome := client.QueryHub(ctx, hub, resource.Filter{Type: resource.TypeTool}, 5*time.Second)
func NewClient(cfg ClientConfig, logger *zap.Logger, metrics *Metrics) *Client {
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = DefaultTimeout
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if cfg.MaxBodyBytes > MaxBodyBytesLimit {
		cfg.MaxBodyBytes = MaxBodyBytesLimit
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		httpClient: &http.Client{},
		cfg:        cfg,
		logger:     logger.With(zap.String("component", "hub_client")),
		metrics:    metrics,
		tracer:     otel.Tracer(tracerName),
	}
}

// SetHTTPClient overrides the underlying HTTP client. Timeouts are always
// enforced through the request context, so hc needs no Timeout of its own.
func (c *Client) SetHTTPClient(hc *http.Client) {
	c.httpClient = hc
}

// QueryHub issues one GET to the hub catalog and returns exactly one outcome.
// Failures are never returned as errors: a deadline yields Timeout, a
// transport failure yields ConnectionFailure, a non-200 status yields
// HTTPError and an unreadable body yields ProtocolError. On success the
// records are narrowed by filter, type first.
//
// Parameters:
//   - ctx: parent context; its cancellation abandons the request
//   - hub: peer to contact, never modified
//   - filter: client-side constraints applied to the returned catalog
//   - timeout: budget for the whole exchange including the body; <= 0 uses the default
func (c *Client) QueryHub(ctx context.Context, hub HubDescriptor, filter resource.Filter, timeout time.Duration) HubOutcome {
	if timeout <= 0 {
		timeout = c.cfg.DefaultTimeout
	}

	ctx, span := c.tracer.Start(ctx, "federation.QueryHub", trace.WithAttributes(
		attribute.String("hub.name", hub.Name),
		attribute.String("hub.url", hub.URL),
	))
	defer span.End()

	start := time.Now()
	outcome, err := c.fetch(ctx, hub, filter, timeout)
	elapsed := time.Since(start)

	span.SetAttributes(attribute.String("hub.outcome", string(outcome.Kind)))
	if outcome.OK() {
		span.SetAttributes(attribute.Int("hub.records", len(outcome.Records)))
		c.logger.Debug("hub answered",
			zap.String("hub", hub.Name),
			zap.Int("records", len(outcome.Records)),
			zap.Duration("elapsed", elapsed))
	} else {
		span.SetStatus(codes.Error, outcome.String())
		fields := []zap.Field{
			zap.String("hub", hub.Name),
			zap.String("url", hub.URL),
			zap.String("outcome", outcome.String()),
			zap.Duration("elapsed", elapsed),
		}
		if err != nil {
			fields = append(fields, zap.Error(err))
		}
		c.logger.Warn("hub query failed", fields...)
	}
	c.metrics.observeQuery(hub.Name, outcome, elapsed)

	return outcome
}

// fetch performs the exchange. The returned error, when set, is the cause
// behind a failure outcome and is only used for logging.
func (c *Client) fetch(ctx context.Context, hub HubDescriptor, filter resource.Filter, timeout time.Duration) (HubOutcome, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, hub.ResourcesURL(), nil)
	if err != nil {
		return ConnectionFailure(), err
	}
	req.Header.Set("Accept", "application/json")
	if c.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return classifyTransportError(ctx, err), err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Drain a little so the connection can be reused; the body is not parsed.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return HTTPError(resp.StatusCode), nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.cfg.MaxBodyBytes+1))
	if err != nil {
		return classifyTransportError(ctx, err), err
	}
	if int64(len(body)) > c.cfg.MaxBodyBytes {
		return ProtocolError(fmt.Sprintf("response body exceeds %d bytes", c.cfg.MaxBodyBytes)), nil
	}

	var env catalogEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return ProtocolError("malformed catalog: " + err.Error()), err
	}

	records := make([]resource.Record, 0, len(env.Resources))
	skipped := 0
	for _, raw := range env.Resources {
		var r resource.Record
		if err := json.Unmarshal(raw, &r); err != nil {
			skipped++
			continue
		}
		records = append(records, r)
	}
	if skipped > 0 {
		c.logger.Warn("skipped catalog entries that are not objects",
			zap.String("hub", hub.Name), zap.Int("skipped", skipped))
	}

	return Success(filter.Apply(records)), nil
}

// classifyTransportError maps an error from the HTTP exchange to Timeout or
// ConnectionFailure. ctx is the per-query context.
func classifyTransportError(ctx context.Context, err error) HubOutcome {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return Timeout()
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Timeout()
	}
	return ConnectionFailure()
}
