// Package upstream adapts the microchat HTTP API and its server-sent event
// stream to the collaborator interfaces of package chatsync.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const defaultTimeout = 15 * time.Second

// ErrNoToken is returned when a request needs a bearer token and none is set.
var ErrNoToken = errors.New("no access token configured")

// APIError is a request the server rejected, either with a non-2xx status or
// with a non-zero envelope status.
type APIError struct {
	StatusCode  int
	Status      int
	Name        string
	Description string
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Name
	if e.Description != "" {
		msg = strings.TrimSpace(msg + ": " + e.Description)
	}
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("api error (%d): %s", e.StatusCode, msg)
}

// Temporary reports whether retrying the request later may succeed.
func (e *APIError) Temporary() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// envelope is the response wrapper every endpoint uses.
type envelope struct {
	Status      int             `json:"status"`
	Result      json.RawMessage `json:"result"`
	File        json.RawMessage `json:"file"`
	Error       string          `json:"error"`
	Description string          `json:"description"`
}

// Client talks to one microchat server.
type Client struct {
	baseURL string
	http    *http.Client
	stream  *http.Client
	logger  *zap.Logger

	mu    sync.RWMutex
	token string
}

// New creates a client for baseURL authenticating with token.
func New(baseURL, token string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
		// The event stream is long-lived; only the request context ends it.
		stream: &http.Client{},
		logger: logger,
		token:  token,
	}
}

// BaseURL returns the server root without a trailing slash.
func (c *Client) BaseURL() string { return c.baseURL }

// SetToken swaps the bearer token used by subsequent requests.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

// Token returns the current bearer token.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Client) authorize(req *http.Request) error {
	token := c.Token()
	if strings.TrimSpace(token) == "" {
		return ErrNoToken
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return nil
}

// doJSON posts body as JSON (nil for an empty body) and decodes the
// envelope's result into out.
func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	env, err := c.do(req)
	if err != nil {
		return err
	}
	return decodeResult(env.Result, out)
}

// doForm posts URL-encoded form values.
func (c *Client) doForm(ctx context.Context, path string, form url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	env, err := c.do(req)
	if err != nil {
		return err
	}
	return decodeResult(env.Result, out)
}

func (c *Client) do(req *http.Request) (*envelope, error) {
	return c.doWith(c.http, req)
}

func (c *Client) doWith(hc *http.Client, req *http.Request) (*envelope, error) {
	if err := c.authorize(req); err != nil {
		return nil, err
	}
	start := time.Now()
	resp, err := hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	c.logger.Debug("request",
		zap.String("method", req.Method),
		zap.String("path", req.URL.Path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("took", time.Since(start)))

	var env envelope
	decodeErr := json.NewDecoder(resp.Body).Decode(&env)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{
			StatusCode:  resp.StatusCode,
			Status:      env.Status,
			Name:        env.Error,
			Description: env.Description,
		}
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("decode %s response: %w", req.URL.Path, decodeErr)
	}
	if env.Status != 0 {
		return nil, &APIError{
			StatusCode:  resp.StatusCode,
			Status:      env.Status,
			Name:        env.Error,
			Description: env.Description,
		}
	}
	return &env, nil
}

func decodeResult(raw json.RawMessage, out any) error {
	if out == nil || len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode result: %w", err)
	}
	return nil
}

// AsAPIError unwraps an *APIError from err.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}
