// Package apiclient talks to the REST backend on behalf of a logged-in user.
//
// Every request carries the session's bearer token. A 401 triggers exactly one
// refresh of the access token followed by one replay of the request; a failed
// refresh clears the session tokens and surfaces ErrRefreshFailed so the HTTP
// layer can send the user back to the login page.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"finmgr/internal/log"
)

const (
	maxResponseBody = 32 << 20

	// refreshTimeout bounds a shared token refresh.
	refreshTimeout = 15 * time.Second
)

// TokenStore gives the client access to one session's tokens.
type TokenStore interface {
	Tokens(ctx context.Context) (access, refresh string, err error)
	SetAccessToken(ctx context.Context, access string) error
	ClearTokens(ctx context.Context) error
}

// Tokens is the pair returned by the login endpoint.
type Tokens struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// Request is a backend call. Path is relative to the base URL. Body is
// buffered so a replay sends the same bytes.
type Request struct {
	Method      string
	Path        string
	Query       url.Values
	Body        []byte
	ContentType string
	Accept      string
}

// Response is a fully read backend response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Err returns a *StatusError for non-2xx responses and nil otherwise.
func (r *Response) Err() error {
	if r.OK() {
		return nil
	}
	return &StatusError{StatusCode: r.StatusCode, Body: string(r.Body)}
}

// Decode unmarshals a JSON body into v.
func (r *Response) Decode(v any) error {
	if len(bytes.TrimSpace(r.Body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Client is shared by the whole process; For binds it to one session.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	logger  *log.Logger
	refresh singleflight.Group
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the logger; the default discards output.
func WithLogger(l *log.Logger) Option {
	return func(c *Client) { c.logger = l.WithComponent(log.ComponentAPIClient) }
}

// New creates a Client for the backend rooted at baseURL.
func New(baseURL string, timeout time.Duration, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported base URL scheme %q", u.Scheme)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	c := &Client{
		baseURL: u,
		http:    &http.Client{Timeout: timeout},
		logger:  log.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// For returns a client that authenticates with the tokens in store.
func (c *Client) For(store TokenStore) *AuthenticatedClient {
	return &AuthenticatedClient{client: c, tokens: store}
}

// Login exchanges credentials for a token pair.
func (c *Client) Login(ctx context.Context, username, password string) (Tokens, error) {
	body, err := json.Marshal(map[string]string{"username": username, "password": password})
	if err != nil {
		return Tokens{}, err
	}
	resp, err := c.do(ctx, Request{Method: http.MethodPost, Path: "token/", Body: body}, "")
	if err != nil {
		return Tokens{}, err
	}
	if resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnauthorized {
		return Tokens{}, ErrInvalidCredentials
	}
	if err := resp.Err(); err != nil {
		return Tokens{}, err
	}
	var t Tokens
	if err := resp.Decode(&t); err != nil {
		return Tokens{}, err
	}
	if t.Access == "" {
		return Tokens{}, fmt.Errorf("login response without access token")
	}
	return t, nil
}

// refreshAccess calls the refresh endpoint. It never carries a bearer header
// and is never retried. Callers holding the same refresh token share one call,
// which runs detached from any single caller's context; a caller that goes
// away gets its own context error while the others keep waiting.
func (c *Client) refreshAccess(ctx context.Context, refresh string) (string, error) {
	ch := c.refresh.DoChan(refresh, func() (any, error) {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
		defer cancel()
		return c.exchangeRefresh(rctx, refresh)
	})
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		c.logger.DebugContext(ctx, "Access token refreshed", log.FieldOperation, log.OpRefresh, "shared", res.Shared)
		return res.Val.(string), nil
	}
}

func (c *Client) exchangeRefresh(ctx context.Context, refresh string) (string, error) {
	body, err := json.Marshal(map[string]string{"refresh": refresh})
	if err != nil {
		return "", err
	}
	resp, err := c.do(ctx, Request{Method: http.MethodPost, Path: "token/refresh/", Body: body}, "")
	if err != nil {
		return "", err
	}
	if err := resp.Err(); err != nil {
		return "", err
	}
	var out struct {
		Access string `json:"access"`
	}
	if err := resp.Decode(&out); err != nil {
		return "", err
	}
	if out.Access == "" {
		return "", fmt.Errorf("refresh response without access token")
	}
	return out.Access, nil
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := c.baseURL.ResolveReference(&url.URL{Path: strings.TrimPrefix(path, "/")})
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

func (c *Client) do(ctx context.Context, r Request, access string) (*Response, error) {
	var body io.Reader
	if r.Body != nil {
		body = bytes.NewReader(r.Body)
	}
	req, err := http.NewRequestWithContext(ctx, r.Method, c.endpoint(r.Path, r.Query), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if r.Body != nil {
		ct := r.ContentType
		if ct == "" {
			ct = "application/json"
		}
		req.Header.Set("Content-Type", ct)
	}
	accept := r.Accept
	if accept == "" {
		accept = "application/json"
	}
	req.Header.Set("Accept", accept)
	if access != "" {
		req.Header.Set("Authorization", "Bearer "+access)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.WarnContext(ctx, "Backend request failed",
			log.FieldMethod, r.Method,
			log.FieldEndpoint, r.Path,
			log.FieldErrorType, log.ErrorTypeNetwork,
			log.FieldError, err)
		return nil, fmt.Errorf("%w: %s %s: %w", ErrNetwork, r.Method, r.Path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", ErrNetwork, r.Path, err)
	}
	c.logger.DebugContext(ctx, "Backend request",
		log.FieldMethod, r.Method,
		log.FieldEndpoint, r.Path,
		log.FieldStatusCode, resp.StatusCode,
		log.FieldDuration, time.Since(start).Milliseconds())

	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: data}, nil
}
