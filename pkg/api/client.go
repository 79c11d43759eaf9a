package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

const csrfCookieName = "csrftoken"

// Client talks to the backend collaborator. It keeps the session token and a
// cookie jar so every request carries same-origin credentials, and mirrors
// the cross-site-request-forgery cookie into a header on state-changing
// calls.
type Client struct {
	base   *url.URL
	http   *http.Client
	logger *log.Logger

	mu       sync.Mutex
	token    string
	username string

	onUnauthorized func()
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient substitutes the underlying HTTP client. A cookie jar is
// attached when the given client has none.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithToken seeds an existing session token.
func WithToken(token string) ClientOption {
	return func(c *Client) {
		c.token = token
	}
}

// WithLogger routes client diagnostics to the given logger.
func WithLogger(logger *log.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithUnauthorizedHandler runs fn after an unauthenticated response has
// cleared the cached session, typically to redirect to a login entry point.
func WithUnauthorizedHandler(fn func()) ClientOption {
	return func(c *Client) {
		c.onUnauthorized = fn
	}
}

// NewClient builds a client for the backend at baseURL.
func NewClient(baseURL string, opts ...ClientOption) (*Client, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("api: parse base url %q: %w", baseURL, err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("api: base url %q must be absolute", baseURL)
	}

	c := &Client{
		base:   base,
		logger: log.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: 30 * time.Second}
	}
	if c.http.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("api: cookie jar: %w", err)
		}
		c.http.Jar = jar
	}
	return c, nil
}

// Session reports the cached token and username, if any.
func (c *Client) Session() (token, username string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token, c.username
}

func (c *Client) setSession(token, username string) {
	c.mu.Lock()
	c.token = token
	c.username = username
	c.mu.Unlock()
}

// ClearSession drops the cached token and username.
func (c *Client) ClearSession() {
	c.setSession("", "")
}

func (c *Client) resolve(path string) string {
	ref := &url.URL{Path: path}
	return c.base.ResolveReference(ref).String()
}

// do sends the request with session and CSRF headers attached and converts
// failure responses. The response body is returned in full.
func (c *Client) do(req *http.Request) (*http.Response, []byte, error) {
	c.decorate(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("api: %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("api: read response of %s %s: %w", req.Method, req.URL.Path, err)
	}

	c.logger.Debug("backend call", "method", req.Method, "path", req.URL.Path, "status", resp.StatusCode)

	if resp.StatusCode == http.StatusUnauthorized {
		c.ClearSession()
		if c.onUnauthorized != nil {
			c.onUnauthorized()
		}
	}
	return resp, body, nil
}

// doJSON is do plus a 2xx status check with best-effort error translation.
func (c *Client) doJSON(req *http.Request) ([]byte, error) {
	resp, body, err := c.do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, newAPIError(resp.StatusCode, body)
	}
	return body, nil
}

func (c *Client) decorate(req *http.Request) {
	token, _ := c.Session()
	if token != "" && req.Header.Get("Authorization") == "" {
		req.Header.Set("Authorization", "Token "+token)
	}
	if req.Method == http.MethodGet || req.Method == http.MethodHead {
		return
	}
	// State-changing calls mirror the CSRF cookie unless an explicit
	// override header was supplied.
	if req.Header.Get("X-CSRFToken") != "" {
		return
	}
	for _, cookie := range c.http.Jar.Cookies(c.base) {
		if cookie.Name == csrfCookieName {
			req.Header.Set("X-CSRFToken", cookie.Value)
			return
		}
	}
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.resolve(path), body)
	if err != nil {
		return nil, fmt.Errorf("api: build %s %s: %w", method, path, err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return req, nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload []byte) ([]byte, error) {
	req, err := c.newRequest(ctx, http.MethodPost, path, bytes.NewReader(payload), "application/json")
	if err != nil {
		return nil, err
	}
	return c.doJSON(req)
}
