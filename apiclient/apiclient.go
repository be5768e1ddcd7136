// Package APICLIENT sends GET requests to the API under test. It never
// retries; a failed request fails the step that sent it.
package apiclient

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/time/rate"

	"github.com/Shoowa/cotejo/config"
	"github.com/Shoowa/cotejo/fault"
	"github.com/Shoowa/cotejo/logging"
	"github.com/Shoowa/cotejo/metrics"
)

// Bodies of error replies are cut to this many bytes.
const maxErrorBody = 4096

type Client struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

// Response is a fully read reply.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(client *Client) {
		client.http = c
	}
}

// WithRateLimiter paces outbound requests. A nil limiter disables pacing.
func WithRateLimiter(l *rate.Limiter) Option {
	return func(client *Client) {
		client.limiter = l
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(client *Client) {
		client.logger = logging.Component(l, "apiclient")
	}
}

func New(baseURL string, options ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
		logger:  logging.Discard(),
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// FromConfig builds a Client from the api section. TLS verification is off
// when insecure_skip_verify is set.
func FromConfig(cfg *config.Api, logger *slog.Logger) *Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	options := []Option{
		WithLogger(logger),
		WithHTTPClient(&http.Client{
			Timeout:   time.Duration(cfg.Timeout) * time.Second,
			Transport: transport,
		}),
	}
	if cfg.RateLimiter.Average > 0 {
		options = append(options, WithRateLimiter(rate.NewLimiter(rate.Limit(cfg.RateLimiter.Average), cfg.RateLimiter.Burst)))
	}
	return New(cfg.BaseURL, options...)
}

// Get requests {baseURL}{path}?{params}. A non-2xx reply yields a
// *fault.StatusError and no Response.
func (c *Client) Get(ctx context.Context, path string, params url.Values) (*Response, error) {
	target := c.baseURL + path
	if len(params) > 0 {
		target += "?" + params.Encode()
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("apiclient: waiting for rate limiter: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("apiclient: %w", err)
	}

	c.logger.Info("Sending GET request", "url", target)
	resp, err := c.http.Do(req)
	if err != nil {
		metrics.ApiRequests.WithLabelValues("transport", http.MethodGet).Inc()
		c.logger.Error("GET request failed", "url", target, "err", err.Error())
		return nil, fmt.Errorf("apiclient: GET %s: %w", target, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("apiclient: reading body of %s: %w", target, err)
	}

	metrics.ApiRequests.WithLabelValues(strconv.Itoa(resp.StatusCode), http.MethodGet).Inc()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		text := truncate(body, maxErrorBody)
		c.logger.Error("HTTP error occurred", "status", resp.StatusCode, "body", text)
		return nil, &fault.StatusError{Method: http.MethodGet, URL: target, StatusCode: resp.StatusCode, Body: text}
	}

	c.logger.Info("Received response", "status", resp.StatusCode)
	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: body}, nil
}

// truncate keeps at most limit bytes of body without splitting a UTF-8
// sequence.
func truncate(body []byte, limit int) string {
	if len(body) <= limit {
		return string(body)
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(body[cut]) {
		cut--
	}
	return string(body[:cut])
}
