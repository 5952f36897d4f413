// Package backend is the HTTP client for the nutrition backend REST API.
//
// Every failure to reach the backend, or any non-2xx reply, wraps
// ErrUnavailable so callers can fall back to local storage.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

var (
	// ErrUnavailable marks any failure to complete a backend call.
	ErrUnavailable = errors.New("backend unavailable")
	// ErrNotFound is returned for 404 replies, in addition to ErrUnavailable.
	ErrNotFound = errors.New("backend resource not found")
	// ErrNotConfigured is returned when no base URL is set.
	ErrNotConfigured = errors.New("backend URL not configured")
)

// StatusError is a non-2xx reply from the backend.
type StatusError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.Status)
}

// Is reports ErrUnavailable for every status error and ErrNotFound for 404.
func (e *StatusError) Is(target error) bool {
	switch target {
	case ErrUnavailable:
		return true
	case ErrNotFound:
		return e.Status == http.StatusNotFound
	}
	return false
}

// Config configures a Client.
type Config struct {
	BaseURL string
	// Token is sent as a Bearer token. An expired JWT is not sent.
	Token   string
	UserID  string
	Timeout time.Duration
	// RequestsPerSecond paces outgoing requests. Zero disables pacing.
	RequestsPerSecond float64
	Burst             int
	HTTPClient        *http.Client
}

// Client is a JSON-over-HTTP client for one backend base URL.
type Client struct {
	baseURL string
	token   string
	userID  string
	http    *http.Client
	limiter *rate.Limiter
	now     func() time.Time
}

// New creates a Client. An empty BaseURL yields a client whose calls all
// fail with ErrNotConfigured wrapped in ErrUnavailable.
func New(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		userID:  cfg.UserID,
		http:    httpClient,
		limiter: limiter,
		now:     time.Now,
	}
}

// Configured reports whether a base URL is set.
func (c *Client) Configured() bool {
	return c.baseURL != ""
}

// UserID returns the user the client acts for.
func (c *Client) UserID() string {
	return c.userID
}

// Ping checks that the backend answers on path.
func (c *Client) Ping(ctx context.Context, path string) error {
	return c.Do(ctx, http.MethodGet, path, nil, nil)
}

// Do sends body as JSON and decodes a JSON reply into out when out is non-nil.
func (c *Client) Do(ctx context.Context, method, path string, body, out any) error {
	if !c.Configured() {
		return fmt.Errorf("%w: %w", ErrUnavailable, ErrNotConfigured)
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" && tokenUsable(c.token, c.now()) {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrUnavailable, method, path, err)
	}
	defer resp.Body.Close()

	slog.Debug("backend request",
		"component", "backend",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Method: method, Path: path, Status: resp.StatusCode, Body: string(snippet)}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("%w: decode %s %s: %v", ErrUnavailable, method, path, err)
	}
	return nil
}
