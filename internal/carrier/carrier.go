// Package carrier fetches open orders from the carrier API and classifies
// every failure into the fetch error taxonomy. It never retries; the next
// sync cycle is the retry.
package carrier

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/agentstation/ordersync/internal/transport"
	"github.com/agentstation/ordersync/pkg/constants"
	"github.com/agentstation/ordersync/pkg/errors"
	"github.com/agentstation/ordersync/pkg/logging"
	"github.com/agentstation/ordersync/pkg/orders"
	"github.com/agentstation/ordersync/pkg/store"
)

// Fetcher returns the current open orders.
type Fetcher interface {
	FetchOpenOrders(ctx context.Context) ([]orders.UpstreamOrder, error)
}

// Config describes the carrier endpoint.
type Config struct {
	BaseURL     string
	Path        string
	StatusParam string
	StatusValue string
	APIKey      string
	Auth        transport.Authenticator
	Timeout     time.Duration
	MaxBytes    int64
}

// Client is the carrier API client.
type Client struct {
	cfg      Config
	endpoint string
	http     *transport.Client
	cache    store.PayloadCache
}

var _ Fetcher = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithPayloadCache stores every non-empty successful raw response in cache
// before it is decoded.
func WithPayloadCache(cache store.PayloadCache) Option {
	return func(c *Client) {
		c.cache = cache
	}
}

// WithHTTPClient replaces the HTTP client, mainly for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = transport.New(c.cfg.Auth,
			transport.WithHTTPClient(hc),
			transport.WithAPIKey(c.cfg.APIKey),
		)
	}
}

// New validates cfg and creates a Client.
func New(cfg Config, opts ...Option) (*Client, error) {
	if cfg.Timeout == 0 {
		cfg.Timeout = constants.DefaultFetchTimeout
	}
	if cfg.Timeout < constants.MinFetchTimeout || cfg.Timeout > constants.MaxFetchTimeout {
		return nil, errors.NewValidationError("timeout", cfg.Timeout.String(),
			fmt.Sprintf("must be between %s and %s", constants.MinFetchTimeout, constants.MaxFetchTimeout))
	}
	if cfg.StatusParam == "" {
		cfg.StatusParam = constants.DefaultStatusParam
	}
	if cfg.StatusValue == "" {
		cfg.StatusValue = constants.DefaultStatusValue
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = constants.MaxResponseBytes
	}
	if cfg.Auth == nil {
		cfg.Auth = &transport.BearerAuth{}
	}

	endpoint, err := buildURL(cfg)
	if err != nil {
		return nil, err
	}

	c := &Client{
		cfg:      cfg,
		endpoint: endpoint,
		http: transport.New(cfg.Auth,
			transport.WithTimeout(cfg.Timeout),
			transport.WithAPIKey(cfg.APIKey),
		),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func buildURL(cfg Config) (string, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return "", errors.NewConfigError("carrier", "base url is required", nil)
	}
	u, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/") + "/" + strings.TrimLeft(cfg.Path, "/"))
	if err != nil {
		return "", errors.NewConfigError("carrier", "invalid base url", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", errors.NewConfigError("carrier", "base url must be http or https", nil)
	}
	q := u.Query()
	q.Set(cfg.StatusParam, cfg.StatusValue)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Endpoint returns the request URL with its status filter.
func (c *Client) Endpoint() string { return c.endpoint }

// FetchOpenOrders performs one GET and decodes the open orders.
func (c *Client) FetchOpenOrders(ctx context.Context) ([]orders.UpstreamOrder, error) {
	logger := logging.FromContext(ctx)
	start := time.Now()

	// Step 1: Issue the request
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, nil)
	if err != nil {
		return nil, errors.NewConfigError("carrier", "cannot build request", err)
	}
	endpoint := transport.Endpoint(req)

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return nil, c.classify(ctx, endpoint, err)
	}

	// Step 2: Read the body
	body, err := transport.ReadBody(ctx, resp, c.cfg.MaxBytes)
	if err != nil {
		var tooLarge *errors.ResourceError
		if stderrors.As(err, &tooLarge) {
			return nil, errors.NewMalformedResponseError(endpoint, tooLarge.Message, err)
		}
		return nil, c.classify(ctx, endpoint, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		logger.Warn().
			Str("endpoint", endpoint).
			Int("status", resp.StatusCode).
			Msg("Carrier rejected request")
		return nil, errors.NewUpstreamError(endpoint, resp.StatusCode, string(body))
	}

	// Step 3: Cache the verbatim payload, recognized or not
	if c.cache != nil && len(bytes.TrimSpace(body)) > 0 {
		if err := c.cache.PutPayload(ctx, body); err != nil {
			logger.Warn().Err(err).Msg("Failed to cache carrier payload")
		}
	}

	// Step 4: Recognize the envelope
	raw, envelope, err := orders.SplitEnvelope(body)
	if err != nil {
		return nil, withEndpoint(err, endpoint)
	}

	// Step 5: Decode
	list, err := orders.DecodeOrders(raw)
	if err != nil {
		return nil, withEndpoint(err, endpoint)
	}

	logger.Debug().
		Str("endpoint", endpoint).
		Str("envelope", string(envelope)).
		Int("orders", len(list)).
		Int("bytes", len(body)).
		Dur("took", time.Since(start)).
		Msg("Fetched open orders")
	return list, nil
}

// classify maps a transport failure to Timeout, Canceled or Unavailable.
func (c *Client) classify(ctx context.Context, endpoint string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		if stderrors.Is(ctxErr, context.DeadlineExceeded) {
			return errors.NewTimeoutError("fetch open orders", "", ctxErr.Error())
		}
		return fmt.Errorf("%w: %w", errors.ErrCanceled, ctxErr)
	}

	var netErr net.Error
	if stderrors.As(err, &netErr) && netErr.Timeout() {
		return errors.NewTimeoutError("fetch open orders", c.cfg.Timeout.String(), err.Error())
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return errors.NewTimeoutError("fetch open orders", c.cfg.Timeout.String(), err.Error())
	}
	return errors.WrapUnavailable(endpoint, err)
}

// withEndpoint fills the endpoint of envelope errors, which are produced
// without one.
func withEndpoint(err error, endpoint string) error {
	var upstream *errors.UpstreamError
	if stderrors.As(err, &upstream) && upstream.Endpoint == "" {
		upstream.Endpoint = endpoint
	}
	var malformed *errors.MalformedResponseError
	if stderrors.As(err, &malformed) && malformed.Endpoint == "" {
		malformed.Endpoint = endpoint
	}
	return err
}
