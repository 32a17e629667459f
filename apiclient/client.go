// Package apiclient is the single outbound path to the RAG learning-assistant
// API. It applies the base URL, JSON headers, a fixed deadline and the bearer
// credential from the session store, and recovers once from an expired access
// token by refreshing it (see refreshTransport).
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

	"github.com/google/uuid"
	"github.com/jrsteele09/go-rag-client/internal/errors"
	"github.com/jrsteele09/go-rag-client/routes"
	"github.com/jrsteele09/go-rag-client/session"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	DefaultBaseURL = "http://localhost:8000"
	DefaultTimeout = 30 * time.Second

	headerRequestID = "X-Request-ID"
	contentTypeJSON = "application/json"
)

// SessionStore is the part of session.Store the client needs.
type SessionStore interface {
	Get() session.Session
	UpdateIf(ctx context.Context, cond func(session.Session) bool, fn func(*session.Session)) (bool, error)
	ClearIf(ctx context.Context, cond func(session.Session) bool) (bool, error)
}

type Client struct {
	baseURL    string
	timeout    time.Duration
	sessions   SessionStore
	httpClient *http.Client
	transport  *refreshTransport
	log        zerolog.Logger
	userAgent  string
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithTransport replaces the transport underneath the refresh interceptor.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) {
		if rt != nil {
			c.transport.base = rt
		}
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) {
		c.log = l
	}
}

func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithSessionExpiredHandler registers fn to run after an unrecoverable 401
// has cleared the session. It is where callers send the user back to login.
func WithSessionExpiredHandler(fn func()) Option {
	return func(c *Client) {
		c.transport.onExpired = fn
	}
}

// New creates a client for the API at baseURL. sessions supplies the bearer
// credential and receives refreshed tokens.
func New(baseURL string, sessions SessionStore, options ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		timeout:  DefaultTimeout,
		sessions: sessions,
		log:      log.Logger,
	}
	c.transport = &refreshTransport{
		base:     http.DefaultTransport,
		client:   c,
		sessions: sessions,
	}
	for _, opt := range options {
		opt(c)
	}
	c.httpClient = &http.Client{
		Transport: c.transport,
		Timeout:   c.timeout,
	}
	return c
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// OnSessionExpired replaces the handler set by WithSessionExpiredHandler.
// It must be called before the client is shared between goroutines.
func (c *Client) OnSessionExpired(fn func()) {
	c.transport.onExpired = fn
}

func (c *Client) url(path string, query url.Values) string {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// newRequest builds a request with the default headers and the current bearer
// credential. Bodies are always rewindable so the interceptor can replay them.
func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body []byte, contentType string) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.url(path, query), reader)
	if err != nil {
		return nil, fmt.Errorf("[apiclient] build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", contentTypeJSON)
	if contentType == "" {
		contentType = contentTypeJSON
	}
	if body != nil {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set(headerRequestID, uuid.NewString())
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if tok := c.sessions.Get().OAuth2Token(); tok != nil {
		tok.SetAuthHeader(req)
	}
	if routes.Unintercepted[path] {
		req = req.WithContext(withoutRefresh(req.Context()))
	}
	return req, nil
}

// doJSON sends in (when non-nil) as JSON and decodes a 2xx body into out (when non-nil).
func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, in, out any) error {
	var body []byte
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("[apiclient] encode %s %s: %w", method, path, err)
		}
		body = raw
	}
	req, err := c.newRequest(ctx, method, path, query, body, contentTypeJSON)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return c.transportError(req, err)
	}
	defer resp.Body.Close()

	c.log.Debug().
		Str("method", req.Method).
		Str("path", req.URL.Path).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Str("request_id", req.Header.Get(headerRequestID)).
		Msg("api call")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newAPIError(req, resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
		return fmt.Errorf("[apiclient] decode %s %s: %w", req.Method, req.URL.Path, err)
	}
	return nil
}

// transportError maps a failed round trip: refresh failures pass through,
// caller cancellation stays a context error, and everything else (timeouts
// included) means no response was received.
func (c *Client) transportError(req *http.Request, err error) error {
	var refreshErr *RefreshError
	if errors.As(err, &refreshErr) {
		return refreshErr
	}
	if ctxErr := req.Context().Err(); ctxErr == context.Canceled {
		return ctxErr
	}
	c.log.Warn().Err(err).Str("method", req.Method).Str("path", req.URL.Path).Msg("no response from api")
	return fmt.Errorf("%w: %s %s: %w", ErrNoConnection, req.Method, req.URL.Path, err)
}
