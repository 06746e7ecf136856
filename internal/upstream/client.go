// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

// Package upstream contains read-only HTTP clients for the media server
// history endpoints consumed by the importers.
//
// Every client shares the same request path: a token-bucket limiter, a
// circuit breaker per server, 429 backoff, and goccy/go-json decoding.
package upstream

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/tomtom215/historian/internal/config"
	"github.com/tomtom215/historian/internal/logging"
	"github.com/tomtom215/historian/internal/metrics"
)

const (
	maxRateLimitRetries = 5
	maxErrorBodyBytes   = 512
	userAgent           = "historian/1.0"
)

// Options configures transport behaviour shared by all clients.
type Options struct {
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
	CircuitBreaker    bool

	// HTTPClient overrides the default client. Tests inject httptest clients.
	HTTPClient *http.Client

	// RetryBaseDelay is the first 429 backoff step; it doubles per attempt.
	RetryBaseDelay time.Duration
}

// OptionsFromConfig maps the upstream config section onto Options.
func OptionsFromConfig(cfg *config.UpstreamConfig) Options {
	return Options{
		Timeout:           cfg.Timeout,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Burst:             cfg.Burst,
		CircuitBreaker:    cfg.CircuitBreakerEnabled,
	}
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	ServerType string
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s returned status %d: %s", e.ServerType, e.Endpoint, e.StatusCode, e.Body)
}

// baseClient performs authenticated JSON GETs against one server.
type baseClient struct {
	serverType string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *breaker
	retryBase  time.Duration
	authorize  func(*http.Request)
}

func newBaseClient(serverType, serverID, baseURL string, opts Options, authorize func(*http.Request)) *baseClient {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	burst := opts.Burst
	if burst < 1 {
		burst = 1
	}

	retryBase := opts.RetryBaseDelay
	if retryBase <= 0 {
		retryBase = time.Second
	}

	c := &baseClient{
		serverType: serverType,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		limiter:    rate.NewLimiter(limit, burst),
		retryBase:  retryBase,
		authorize:  authorize,
	}
	if opts.CircuitBreaker {
		c.breaker = newBreaker(serverType + "-" + serverID)
	}
	return c
}

// getJSON fetches endpoint with query and decodes the body into out.
func (c *baseClient) getJSON(ctx context.Context, endpoint string, query url.Values, out any) error {
	call := func() error {
		return c.doGetJSON(ctx, endpoint, query, out)
	}
	if c.breaker == nil {
		return call()
	}
	return c.breaker.execute(call)
}

func (c *baseClient) doGetJSON(ctx context.Context, endpoint string, query url.Values, out any) error {
	fullURL := c.baseURL + endpoint
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	resp, err := c.doWithRateLimit(ctx, fullURL)
	metrics.RecordUpstreamRequest(c.serverType, statusCode(resp), err)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return &StatusError{
			ServerType: c.serverType,
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s %s response: %w", c.serverType, endpoint, err)
	}
	return nil
}

// doWithRateLimit waits for the limiter, then retries HTTP 429 responses
// with exponential backoff, honoring Retry-After when given in seconds.
func (c *baseClient) doWithRateLimit(ctx context.Context, fullURL string) (*http.Response, error) {
	for attempt := 0; ; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, http.NoBody)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", userAgent)
		c.authorize(req)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("execute request: %w", err)
		}
		if resp.StatusCode != http.StatusTooManyRequests {
			return resp, nil
		}
		resp.Body.Close()

		if attempt == maxRateLimitRetries {
			return nil, fmt.Errorf("%s rate limit exceeded after %d retries", c.serverType, maxRateLimitRetries)
		}

		delay := c.retryBase * time.Duration(1<<attempt)
		if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
			if seconds, err := strconv.Atoi(retryAfter); err == nil && seconds >= 0 {
				delay = time.Duration(seconds) * time.Second
			}
		}

		logging.Ctx(ctx).Warn().
			Str("server_type", c.serverType).
			Dur("retry_delay", delay).
			Int("attempt", attempt+1).
			Msg("Upstream rate limited (HTTP 429), retrying")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
}

func statusCode(resp *http.Response) int {
	if resp == nil {
		return 0
	}
	return resp.StatusCode
}
