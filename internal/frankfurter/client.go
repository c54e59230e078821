// Package frankfurter is a client for the Frankfurter currency-data API.
package frankfurter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fxgate/fxgate/internal/metrics"
)

const (
	// DefaultTimeout bounds a whole upstream request.
	DefaultTimeout = 10 * time.Second

	maxErrorBody = 4 << 10
)

// ErrUpstreamUnavailable is returned when the provider cannot be reached:
// connection refused, DNS failure or timeout.
var ErrUpstreamUnavailable = errors.New("upstream unavailable")

// RequestFailedError is returned when the provider answers with a non-2xx
// status.
type RequestFailedError struct {
	StatusCode int
	Body       string
}

func (e *RequestFailedError) Error() string {
	return fmt.Sprintf("upstream request failed: status %d: %s", e.StatusCode, e.Body)
}

// Rates is the provider's response for latest and historical quotes.
type Rates struct {
	Amount float64            `json:"amount"`
	Base   string             `json:"base"`
	Date   string             `json:"date"`
	Rates  map[string]float64 `json:"rates"`
}

type Client struct {
	baseURL    string
	httpClient *http.Client
}

type Option func(*Client)

// WithHTTPClient replaces the default transport, e.g. with an httptest
// server's client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient returns a client for baseURL, e.g. "https://api.frankfurter.dev/v1".
func NewClient(baseURL string, timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: newHTTPClient(timeout),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   5 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout:   5 * time.Second,
			ResponseHeaderTimeout: timeout,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   10,
			IdleConnTimeout:       90 * time.Second,
		},
	}
}

// ListCurrencies returns supported currency codes mapped to display names.
func (c *Client) ListCurrencies(ctx context.Context) (map[string]string, error) {
	var out map[string]string
	if err := c.get(ctx, "currencies", "/currencies", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// LatestRates returns the latest rate from base to target.
func (c *Client) LatestRates(ctx context.Context, base, target string) (*Rates, error) {
	q := url.Values{"base": {base}, "symbols": {target}}

	var out Rates
	if err := c.get(ctx, "latest", "/latest", q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// HistoricalRates returns the rates from base to target on date (YYYY-MM-DD).
func (c *Client) HistoricalRates(ctx context.Context, date, base, target string) (map[string]float64, error) {
	q := url.Values{"base": {base}, "symbols": {target}}

	var out Rates
	if err := c.get(ctx, "historical", "/"+url.PathEscape(date), q, &out); err != nil {
		return nil, err
	}
	return out.Rates, nil
}

func (c *Client) get(ctx context.Context, op, path string, query url.Values, out any) error {
	start := time.Now()
	result := "ok"
	defer func() {
		metrics.UpstreamRequestDuration.WithLabelValues(op, result).Observe(time.Since(start).Seconds())
	}()

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		result = "error"
		return fmt.Errorf("building %s request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		result = "unavailable"
		return fmt.Errorf("%w: %s: %v", ErrUpstreamUnavailable, op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		result = "failed"
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &RequestFailedError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		result = "invalid"
		return fmt.Errorf("decoding %s response: %w", op, err)
	}
	return nil
}
