// Package oraclehttp calls a remote answer-validation service over HTTP.
package oraclehttp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/lessonloop/lessonloop/pkg/ports"
)

// Client implements ports.Oracle against a JSON endpoint: POST the check
// request, read back {isCorrect, feedback, reactionText}. Transport failures
// surface as errors; the session layer normalizes them into an incorrect
// outcome with a retry prompt.
type Client struct {
	url    string
	client *http.Client
}

type Option func(*Client)

// WithTimeout sets the per-request timeout (default 15s).
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.client.Timeout = d
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.client = hc
	}
}

// New creates a client for the given endpoint URL.
func New(url string, opts ...Option) *Client {
	c := &Client{
		url:    url,
		client: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Check submits the answer for grading.
func (c *Client) Check(ctx context.Context, req ports.CheckRequest) (ports.CheckResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return ports.CheckResult{}, fmt.Errorf("marshal check request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return ports.CheckResult{}, fmt.Errorf("build check request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return ports.CheckResult{}, fmt.Errorf("oracle request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ports.CheckResult{}, fmt.Errorf("oracle returned status %d", resp.StatusCode)
	}

	var result ports.CheckResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return ports.CheckResult{}, fmt.Errorf("decode oracle response: %w", err)
	}
	return result, nil
}
