// Package client is a typed Go client for the riskbook HTTP API. Requests
// carry the bearer token, decode the response envelope, and retry a bounded
// number of times on transport errors and retryable status codes. POST
// requests are retried only when the operation is idempotent.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"
)

// APIError is a non-2xx response decoded from the error envelope.
type APIError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Code, e.StatusCode, e.Message)
}

// IsNotFound reports whether err is a NOT_FOUND API error.
func IsNotFound(err error) bool {
	var ae *APIError
	return errors.As(err, &ae) && ae.Code == "NOT_FOUND"
}

// Client talks to one riskbook server.
type Client struct {
	baseURL string
	token   string
	http    *http.Client

	retries int           // additional attempts after the first
	backoff time.Duration // base delay, doubled per retry
}

// Option customizes a Client.
type Option func(*Client)

// WithToken sets the bearer token sent on every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithHTTPClient swaps the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithRetries sets how many times a failed request is retried.
func WithRetries(n int) Option {
	return func(c *Client) { c.retries = n }
}

// WithBackoff sets the base retry delay.
func WithBackoff(d time.Duration) Option {
	return func(c *Client) { c.backoff = d }
}

// New creates a Client for a base URL like "http://localhost:8080".
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
		retries: 2,
		backoff: 250 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetToken replaces the bearer token, e.g. after Login.
func (c *Client) SetToken(token string) { c.token = token }

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *APIError       `json:"error"`
}

func retryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// do runs one API call. idempotent gates retries for non-GET methods; GETs
// are always safe to retry.
func (c *Client) do(ctx context.Context, method, path string, body, out any, idempotent bool) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
	}

	canRetry := method == http.MethodGet || idempotent
	attempts := 1
	if canRetry {
		attempts += c.retries
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			delay := time.Duration(float64(c.backoff) * math.Pow(2, float64(attempt-1)))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return err
		}
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				return ctx.Err()
			}
			continue
		}

		if retryableStatus(resp.StatusCode) && attempt < attempts-1 {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			lastErr = &APIError{StatusCode: resp.StatusCode, Code: "RETRYABLE", Message: resp.Status}
			continue
		}

		err = decodeEnvelope(resp, out)
		resp.Body.Close()
		return err
	}
	return fmt.Errorf("%s %s failed after %d attempts: %w", method, path, attempts, lastErr)
}

func decodeEnvelope(resp *http.Response, out any) error {
	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("decoding response (%s): %w", resp.Status, err)
	}
	if !env.Success {
		if env.Error == nil {
			return &APIError{StatusCode: resp.StatusCode, Code: "UNKNOWN", Message: resp.Status}
		}
		env.Error.StatusCode = resp.StatusCode
		return env.Error
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decoding payload: %w", err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out, true)
}
