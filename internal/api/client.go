// Package api provides the typed HTTP client for the FieldSync backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Config holds backend connection configuration.
type Config struct {
	BaseURL string
	APIKey  string
}

// Client talks to the backend REST API. All calls take a context and
// return *StatusError for non-2xx responses so callers can branch on the
// HTTP status (409 conflicts, 404/410 missing-on-server).
type Client struct {
	config     *Config
	httpClient *http.Client
}

// NewClient creates a new backend API client.
func NewClient(config *Config) *Client {
	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:    10,
				IdleConnTimeout: 30 * time.Second,
			},
		},
	}
}

// StatusError is a non-2xx backend response.
type StatusError struct {
	StatusCode int
	Body       string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("backend returned status %d: %s", e.StatusCode, e.Body)
}

// IsConflict reports whether err is an optimistic-lock rejection.
func IsConflict(err error) bool {
	se, ok := err.(*StatusError)
	return ok && se.StatusCode == http.StatusConflict
}

// IsMissingOnServer reports whether err means the resource no longer
// exists remotely (404 or 410).
func IsMissingOnServer(err error) bool {
	se, ok := err.(*StatusError)
	return ok && (se.StatusCode == http.StatusNotFound || se.StatusCode == http.StatusGone)
}

// StatusBody returns the response body of a StatusError, "" otherwise.
// Some 404 bodies name the missing parent resource; handlers inspect them.
func StatusBody(err error) string {
	if se, ok := err.(*StatusError); ok {
		return se.Body
	}
	return ""
}

// do executes one JSON request. A non-nil out is decoded from the
// response body. extraHeaders may be nil.
func (c *Client) do(ctx context.Context, method, path string, extraHeaders map[string]string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	url := strings.TrimSuffix(c.config.BaseURL, "/") + path
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.config.APIKey != "" {
		req.Header.Set("x-api-key", c.config.APIKey)
	}
	for k, v := range extraHeaders {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{StatusCode: resp.StatusCode, Body: string(data)}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// idempotencyHeader builds the create-replay header map.
func idempotencyHeader(key string) map[string]string {
	if key == "" {
		return nil
	}
	return map[string]string{"Idempotency-Key": key}
}
