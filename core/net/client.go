// Package net provides the HTTP transport used to reach Horizon, with retry,
// timeout, and circuit breaker patterns.
//
// The Client struct offers configurable timeout, retry attempts, and exponential backoff.
// It includes a simple circuit breaker to prevent cascading failures when Horizon is down.
// Client.Horizon adapts it to horizonclient.HTTP so both streaming and one-shot
// Horizon requests go through the same retry policy.
//
// Example usage:
//
//	client := net.NewClient(
//	    net.WithTimeout(0), // streams stay open indefinitely
//	    net.WithMaxRetries(5),
//	    net.WithRetryBackoff(2*time.Second),
//	    net.WithLogger(logger),
//	)
//	src := observer.NewHorizonSource(horizonURL, observer.WithHTTP(client.Horizon()))
package net

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/marwen-abid/stellar-watch-sdk-go/errors"
)

// Default configuration values
const (
	defaultTimeout      = 30 * time.Second
	defaultMaxRetries   = 3
	defaultBackoff      = 1 * time.Second
	defaultFailureLimit = 5
	defaultResetTimeout = 60 * time.Second
)

// Client is an HTTP client with retry, timeout, and circuit breaker capabilities.
type Client struct {
	httpClient     *http.Client
	maxRetries     int
	retryBackoff   time.Duration
	circuitBreaker *circuitBreaker
	logger         *zap.Logger
}

// ClientOption is a function that configures a Client.
type ClientOption func(*Client)

// WithTimeout sets the HTTP client timeout (default: 30s). Zero disables the
// timeout, which streaming requests require.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithMaxRetries sets the maximum number of retry attempts (default: 3).
func WithMaxRetries(n int) ClientOption {
	return func(c *Client) {
		c.maxRetries = n
	}
}

// WithRetryBackoff sets the base duration for exponential backoff (default: 1s).
func WithRetryBackoff(d time.Duration) ClientOption {
	return func(c *Client) {
		c.retryBackoff = d
	}
}

// WithLogger sets the logger used to report retries and circuit breaker trips.
func WithLogger(logger *zap.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithCircuitBreaker sets how many consecutive failures open the circuit
// (default: 5) and how long it stays open (default: 60s).
func WithCircuitBreaker(failureLimit int, resetTimeout time.Duration) ClientOption {
	return func(c *Client) {
		c.circuitBreaker.failureLimit = failureLimit
		c.circuitBreaker.resetTimeout = resetTimeout
	}
}

// NewClient creates a new HTTP client with the given options.
func NewClient(opts ...ClientOption) *Client {
	client := &Client{
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		maxRetries:   defaultMaxRetries,
		retryBackoff: defaultBackoff,
		circuitBreaker: &circuitBreaker{
			failureLimit: defaultFailureLimit,
			resetTimeout: defaultResetTimeout,
		},
		logger: zap.NewNop(),
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// Response wraps an HTTP response with convenience methods.
type Response struct {
	*http.Response
}

// Get performs an HTTP GET request with retry and circuit breaker logic.
func (c *Client) Get(ctx context.Context, url string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.NewCoreError(errors.NETWORK_ERROR, "failed to create GET request", err)
	}
	return c.Do(req)
}

// Post performs an HTTP POST request with retry and circuit breaker logic.
func (c *Client) Post(ctx context.Context, url string, body io.Reader) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, errors.NewCoreError(errors.NETWORK_ERROR, "failed to create POST request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.Do(req)
}

// PostForm performs an HTTP POST request with form data.
func (c *Client) PostForm(ctx context.Context, urlStr string, data url.Values) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, urlStr, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, errors.NewCoreError(errors.NETWORK_ERROR, "failed to create POST form request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.Do(req)
}

// Do executes the HTTP request with retry logic and circuit breaker.
// Server errors (5xx) and transport failures are retried; client errors (4xx)
// are returned as-is for the caller to interpret.
func (c *Client) Do(req *http.Request) (*Response, error) {
	// Check circuit breaker
	if !c.circuitBreaker.allowRequest() {
		return nil, errors.NewCoreError(
			errors.NETWORK_ERROR,
			"circuit breaker is open",
			nil,
		).With("url", req.URL.String())
	}

	// Buffer the request body so it can be replayed on retries
	var bodyBytes []byte
	if req.Body != nil {
		var err error
		bodyBytes, err = io.ReadAll(req.Body)
		if err != nil {
			return nil, errors.NewCoreError(errors.NETWORK_ERROR, "failed to read request body", err)
		}
		req.Body.Close()
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		// Check context cancellation
		select {
		case <-req.Context().Done():
			return nil, errors.NewCoreError(
				errors.NETWORK_ERROR,
				"request cancelled",
				req.Context().Err(),
			)
		default:
		}

		// Reset body for each attempt
		if bodyBytes != nil {
			req.Body = io.NopCloser(bytes.NewReader(bodyBytes))
			req.ContentLength = int64(len(bodyBytes))
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			// Network error - retry
			if attempt < c.maxRetries {
				c.logger.Debug("request failed, retrying",
					zap.String("url", req.URL.Redacted()),
					zap.Int("attempt", attempt),
					zap.Error(err),
				)
				if !c.backoff(req.Context(), attempt) {
					return nil, errors.NewCoreError(errors.NETWORK_ERROR, "request cancelled", req.Context().Err())
				}
				continue
			}
			c.recordFailure(req)
			return nil, errors.NewCoreError(
				errors.NETWORK_ERROR,
				fmt.Sprintf("request failed after %d attempts", attempt+1),
				err,
			)
		}

		// Check status code
		if resp.StatusCode >= 500 {
			// Server error - retry
			resp.Body.Close()
			lastErr = fmt.Errorf("server error: %d %s", resp.StatusCode, resp.Status)
			if attempt < c.maxRetries {
				c.logger.Debug("server error, retrying",
					zap.String("url", req.URL.Redacted()),
					zap.Int("attempt", attempt),
					zap.Int("status", resp.StatusCode),
				)
				if !c.backoff(req.Context(), attempt) {
					return nil, errors.NewCoreError(errors.NETWORK_ERROR, "request cancelled", req.Context().Err())
				}
				continue
			}
			c.recordFailure(req)
			return nil, errors.NewCoreError(
				errors.NETWORK_ERROR,
				fmt.Sprintf("server error after %d attempts: %s", attempt+1, resp.Status),
				lastErr,
			)
		}

		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			// Client error - don't retry
			c.circuitBreaker.recordSuccess()
			return &Response{resp}, nil
		}

		// Success
		c.circuitBreaker.recordSuccess()
		return &Response{resp}, nil
	}

	// Should not reach here
	return nil, errors.NewCoreError(
		errors.NETWORK_ERROR,
		"unexpected retry exhaustion",
		lastErr,
	)
}

// backoff waits retryBackoff * 2^attempt, returning false if ctx ends first.
func (c *Client) backoff(ctx context.Context, attempt int) bool {
	duration := c.retryBackoff * (1 << uint(attempt)) // 2^attempt
	select {
	case <-time.After(duration):
		return true
	case <-ctx.Done():
		return false
	}
}

func (c *Client) recordFailure(req *http.Request) {
	if c.circuitBreaker.recordFailure() {
		c.logger.Warn("circuit breaker opened",
			zap.String("host", req.URL.Host),
			zap.Duration("reset_after", c.circuitBreaker.resetTimeout),
		)
	}
}

// circuitBreaker implements a simple circuit breaker pattern.
type circuitBreaker struct {
	mu           sync.RWMutex
	failures     int
	lastFailTime time.Time
	failureLimit int
	resetTimeout time.Duration
	state        circuitState
}

type circuitState int

const (
	stateClosed circuitState = iota
	stateOpen
)

// allowRequest checks if the circuit breaker allows the request to proceed.
func (cb *circuitBreaker) allowRequest() bool {
	cb.mu.RLock()
	defer cb.mu.RUnlock()

	if cb.state == stateClosed {
		return true
	}

	// Check if reset timeout has elapsed
	if time.Since(cb.lastFailTime) > cb.resetTimeout {
		return true
	}

	return false
}

// recordSuccess records a successful request and may close the circuit.
func (cb *circuitBreaker) recordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures = 0
	cb.state = stateClosed
}

// recordFailure records a failed request and may open the circuit. It reports
// whether this failure opened it.
func (cb *circuitBreaker) recordFailure() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	cb.lastFailTime = time.Now()

	if cb.failures >= cb.failureLimit && cb.state != stateOpen {
		cb.state = stateOpen
		return true
	}
	return false
}
