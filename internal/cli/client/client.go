package client

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type Client struct {
	baseURL  string
	fallback *Fallback
	token    string
	email    string
	http     *http.Client
}

func New(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		token:   strings.TrimSpace(token),
		http: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// NewWithFallback sends every request through fb, trying its local server first.
func NewWithFallback(fb *Fallback, token string) *Client {
	c := New(fb.Current(), token)
	c.fallback = fb
	return c
}

// WithEmail identifies the caller with X-User-Email instead of (or alongside) a token.
func (c *Client) WithEmail(email string) *Client {
	c.email = strings.TrimSpace(email)
	return c
}

func (c *Client) SetToken(token string) {
	c.token = strings.TrimSpace(token)
}

func (c *Client) BaseURL() string {
	if c.fallback != nil {
		return c.fallback.Current()
	}
	return c.baseURL
}

func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) Post(ctx context.Context, path string, body any, out any) error {
	return c.do(ctx, http.MethodPost, path, body, out)
}

func (c *Client) Put(ctx context.Context, path string, body any, out any) error {
	return c.do(ctx, http.MethodPut, path, body, out)
}

func (c *Client) Delete(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodDelete, path, nil, out)
}

// WebSocketURL returns the realtime endpoint with the token attached as a query parameter.
func (c *Client) WebSocketURL() string {
	base := c.BaseURL()
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	q := url.Values{}
	if c.token != "" {
		q.Set("token", c.token)
	} else if c.email != "" {
		q.Set("email", c.email)
	}
	if len(q) == 0 {
		return base + "/api/ws"
	}
	return base + "/api/ws?" + q.Encode()
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		payload = b
	}
	op := method + " " + path
	attempt := func(ctx context.Context, base string) error {
		return c.roundTrip(ctx, op, method, base+path, payload, out)
	}
	if c.fallback != nil {
		return c.fallback.run(ctx, attempt)
	}
	return attempt(ctx, c.baseURL)
}

func (c *Client) roundTrip(ctx context.Context, op, method, target string, payload []byte, out any) error {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.email != "" {
		req.Header.Set("X-User-Email", c.email)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return &FetchError{Op: op, Transient: true, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		fe := &FetchError{Op: op, Status: resp.StatusCode, Transient: transientStatus(resp.StatusCode)}
		var errBody struct {
			Error string `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&errBody); err == nil {
			fe.Message = errBody.Error
		}
		return fe
	}

	if out != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return &FetchError{Op: op, Status: resp.StatusCode, Message: "decode response", Err: err}
		}
	}
	return nil
}
