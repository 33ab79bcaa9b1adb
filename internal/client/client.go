package client

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

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/smartcampus/internal/telemetry"
	"golang.org/x/oauth2"
)

const (
	// DefaultBaseURL is used when no API URL is configured.
	DefaultBaseURL = "http://localhost:8000/api"

	// LoginPath is where callers are sent after a 401.
	LoginPath = "/login"

	SchemeBearer = "Bearer"
	// SchemeToken is the Django REST framework TokenAuthentication scheme.
	SchemeToken = "Token"
)

// Config holds common client configuration
type Config struct {
	BaseURL    string
	AuthScheme string
	// Timeout of zero means no timeout.
	Timeout time.Duration
	// Cache enables RFC 7234 response caching, on disk when CacheDir is set.
	Cache    bool
	CacheDir string
	// Tracing wraps the transport with OpenTelemetry spans.
	Tracing bool
}

// DefaultConfig returns a default client configuration
func DefaultConfig() Config {
	return Config{
		BaseURL:    DefaultBaseURL,
		AuthScheme: SchemeBearer,
	}
}

// TokenStore provides the stored access token and clears the session on 401.
type TokenStore interface {
	AccessToken() (string, error)
	Clear() error
}

// Navigator is told where the user should go next, the CLI equivalent of a page redirect.
type Navigator interface {
	Navigate(path string)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(path string)

func (f NavigatorFunc) Navigate(path string) { f(path) }

// RequestOptions customizes a single call.
type RequestOptions struct {
	Method string
	Header http.Header
	Query  url.Values
	// Body is encoded as JSON unless it is already an io.Reader.
	Body any
	// Anonymous requests carry no Authorization header and a 401 does not end the session.
	Anonymous bool
	// Token authenticates the request instead of the stored access token. A 401 does
	// not end the stored session either.
	Token string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client built from Config.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithNavigator sets the navigator invoked after a 401.
func WithNavigator(n Navigator) Option {
	return func(c *Client) {
		c.navigator = n
	}
}

// Client is the REST client shared by every SmartCampus service.
type Client struct {
	baseURL string
	scheme  string
	http    *http.Client
	tokens  TokenStore

	mu        sync.RWMutex
	navigator Navigator
}

// New creates a client for the configured API.
func New(config Config, tokens TokenStore, opts ...Option) *Client {
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	if config.AuthScheme == "" {
		config.AuthScheme = SchemeBearer
	}

	c := &Client{
		baseURL: strings.TrimRight(config.BaseURL, "/"),
		scheme:  config.AuthScheme,
		tokens:  tokens,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.http == nil {
		c.http = NewHTTPClient(config)
	}

	log.Debug().
		Str("baseURL", c.baseURL).
		Str("scheme", c.scheme).
		Msg("initialized api client")

	return c
}

// BaseURL returns the API prefix every endpoint is appended to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// SetNavigator replaces the navigator invoked after a 401.
func (c *Client) SetNavigator(n Navigator) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.navigator = n
}

func (c *Client) Get(ctx context.Context, endpoint string, out any) error {
	return c.Do(ctx, endpoint, &RequestOptions{Method: http.MethodGet}, out)
}

func (c *Client) Post(ctx context.Context, endpoint string, body, out any) error {
	return c.Do(ctx, endpoint, &RequestOptions{Method: http.MethodPost, Body: body}, out)
}

func (c *Client) Put(ctx context.Context, endpoint string, body, out any) error {
	return c.Do(ctx, endpoint, &RequestOptions{Method: http.MethodPut, Body: body}, out)
}

func (c *Client) Patch(ctx context.Context, endpoint string, body, out any) error {
	return c.Do(ctx, endpoint, &RequestOptions{Method: http.MethodPatch, Body: body}, out)
}

func (c *Client) Delete(ctx context.Context, endpoint string, out any) error {
	return c.Do(ctx, endpoint, &RequestOptions{Method: http.MethodDelete}, out)
}

// Do performs a single request and decodes the JSON response into out.
// out may be nil, or a *json.RawMessage to receive the untyped body.
func (c *Client) Do(ctx context.Context, endpoint string, opts *RequestOptions, out any) error {
	if opts == nil {
		opts = &RequestOptions{}
	}

	req, err := c.newRequest(ctx, endpoint, opts)
	if err != nil {
		return err
	}

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		telemetry.RecordRequest(ctx, req.Method, 0, time.Since(started))
		return fmt.Errorf("request %s %s failed: %w", req.Method, endpoint, err)
	}
	defer resp.Body.Close()

	telemetry.RecordRequest(ctx, req.Method, resp.StatusCode, time.Since(started))

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if resp.StatusCode == http.StatusUnauthorized && !opts.Anonymous && opts.Token == "" {
			c.endSession(endpoint)
			return ErrUnauthorized
		}
		return newRequestError(resp.StatusCode, body)
	}

	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}

	if raw, ok := out.(*json.RawMessage); ok {
		*raw = append((*raw)[:0], body...)
		return nil
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", endpoint, err)
	}

	return nil
}

func (c *Client) newRequest(ctx context.Context, endpoint string, opts *RequestOptions) (*http.Request, error) {
	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}

	target := c.baseURL + endpoint
	if len(opts.Query) > 0 {
		sep := "?"
		if strings.Contains(target, "?") {
			sep = "&"
		}
		target += sep + opts.Query.Encode()
	}

	var body io.Reader
	switch b := opts.Body.(type) {
	case nil:
	case io.Reader:
		body = b
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())

	if !opts.Anonymous {
		token := opts.Token
		if token == "" {
			var err error
			if token, err = c.tokens.AccessToken(); err != nil {
				return nil, fmt.Errorf("failed to read access token: %w", err)
			}
		}
		if token != "" {
			(&oauth2.Token{AccessToken: token, TokenType: c.scheme}).SetAuthHeader(req)
		}
	}

	// caller headers win
	for key, values := range opts.Header {
		req.Header.Del(key)
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}

	return req, nil
}

// endSession clears stored credentials and sends the user to the login page.
func (c *Client) endSession(endpoint string) {
	log.Warn().Str("endpoint", endpoint).Msg("unauthorized, clearing session")

	telemetry.RecordUnauthorized(context.Background())

	if err := c.tokens.Clear(); err != nil {
		log.Error().Err(err).Msg("failed to clear token store")
	}

	c.mu.RLock()
	n := c.navigator
	c.mu.RUnlock()

	if n != nil {
		n.Navigate(LoginPath)
	}
}

// IsUnauthorized is a convenience for errors.Is(err, ErrUnauthorized).
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}
