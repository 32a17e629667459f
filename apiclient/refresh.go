package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/jrsteele09/go-rag-client/internal/errors"
	"github.com/jrsteele09/go-rag-client/routes"
	"github.com/jrsteele09/go-rag-client/session"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

type ctxKey int

const (
	ctxKeyRetried ctxKey = iota
	ctxKeyNoRefresh
)

func withRetried(ctx context.Context) context.Context {
	return context.WithValue(ctx, ctxKeyRetried, true)
}

func isRetried(ctx context.Context) bool {
	v, _ := ctx.Value(ctxKeyRetried).(bool)
	return v
}

func withoutRefresh(ctx context.Context) context.Context {
	return context.WithValue(ctx, ctxKeyNoRefresh, true)
}

func refreshDisabled(ctx context.Context) bool {
	v, _ := ctx.Value(ctxKeyNoRefresh).(bool)
	return v
}

// refreshTransport turns a 401 into one refresh-token exchange and a single
// replay of the original request with the new access token. Any other status
// passes through untouched. When the refresh cannot happen the session is
// cleared and onExpired runs. Both outcomes only touch the session that held
// the refresh token used for the exchange.
type refreshTransport struct {
	base      http.RoundTripper
	client    *Client
	sessions  SessionStore
	onExpired func()

	// Concurrent 401s carrying the same refresh token share one exchange.
	flight singleflight.Group
}

func (t *refreshTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if err != nil || resp.StatusCode != http.StatusUnauthorized {
		return resp, err
	}
	ctx := req.Context()
	if refreshDisabled(ctx) || isRetried(ctx) {
		return resp, nil
	}
	if req.Body != nil && req.Body != http.NoBody && req.GetBody == nil {
		// Not replayable; surface the 401.
		return resp, nil
	}

	sentToken := bearerToken(req)
	current := t.sessions.Get()

	var accessToken string
	switch {
	case current.AccessToken != "" && current.AccessToken != sentToken:
		// Another request already renewed the token while this one was in flight.
		accessToken = current.AccessToken
	case current.RefreshToken == "":
		t.client.log.Info().Str("path", req.URL.Path).Msg("401 without a refresh token, ending session")
		t.expire(ctx, "")
		return resp, nil
	default:
		accessToken, err = t.refresh(ctx, current.RefreshToken)
		if err != nil {
			drain(resp)
			return nil, &RefreshError{Err: err}
		}
	}
	drain(resp)

	retry, err := replay(req, accessToken)
	if err != nil {
		return nil, err
	}
	return t.base.RoundTrip(retry)
}

// refresh exchanges refreshToken for a new access token and stores it. The
// session is cleared, once per failed exchange, before the error is returned.
func (t *refreshTransport) refresh(ctx context.Context, refreshToken string) (string, error) {
	v, err, _ := t.flight.Do(refreshToken, func() (any, error) {
		// The exchange outlives whichever caller started it.
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), t.client.timeout)
		defer cancel()

		tok, err := t.exchange(rctx, refreshToken)
		if err != nil {
			t.client.log.Warn().Err(err).Msg("token refresh failed, ending session")
			t.expire(rctx, refreshToken)
			return "", err
		}

		applied, err := t.sessions.UpdateIf(rctx, holds(refreshToken), func(s *session.Session) {
			s.AccessToken = tok.AccessToken
			if tok.RefreshToken != "" {
				s.RefreshToken = tok.RefreshToken
			}
		})
		if !applied {
			// Signed out or signed in again while the exchange was in flight.
			t.client.log.Info().Msg("session changed during token refresh, discarding new tokens")
			return "", ErrSessionChanged
		}
		if err != nil {
			// The in-memory session already holds the new token.
			t.client.log.Error().Err(err).Msg("failed to persist refreshed token")
		}
		t.client.log.Debug().Msg("access token refreshed")
		return tok.AccessToken, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// exchange posts {"refresh_token": ...} straight to the base transport so a
// 401 here can never recurse into another refresh.
func (t *refreshTransport) exchange(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	body, err := json.Marshal(RefreshRequest{RefreshToken: refreshToken})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.client.url(routes.AuthRefreshToken, nil), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentTypeJSON)
	req.Header.Set("Accept", contentTypeJSON)

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoConnection, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, newAPIError(req, resp)
	}
	var tr TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, fmt.Errorf("decode refresh response: %w", err)
	}
	if tr.AccessToken == "" {
		return nil, errors.ErrInvalidToken
	}
	return tr.Token(), nil
}

// expire clears the session if it still holds refreshToken and then runs
// onExpired. A session established since is left alone.
func (t *refreshTransport) expire(ctx context.Context, refreshToken string) {
	cleared, err := t.sessions.ClearIf(context.WithoutCancel(ctx), holds(refreshToken))
	if err != nil {
		t.client.log.Error().Err(err).Msg("failed to clear expired session")
	}
	if !cleared {
		t.client.log.Debug().Msg("session changed before expiry, keeping it")
		return
	}
	if t.onExpired != nil {
		t.onExpired()
	}
}

func holds(refreshToken string) func(session.Session) bool {
	return func(s session.Session) bool {
		return s.RefreshToken == refreshToken
	}
}

// replay clones req with a fresh body and the new bearer credential, marked
// as retried so it is never intercepted again.
func replay(req *http.Request, accessToken string) (*http.Request, error) {
	retry := req.Clone(withRetried(req.Context()))
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, fmt.Errorf("[apiclient] rewind body: %w", err)
		}
		retry.Body = body
	}
	(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"}).SetAuthHeader(retry)
	return retry, nil
}

func bearerToken(req *http.Request) string {
	auth := req.Header.Get("Authorization")
	if len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
		return auth[7:]
	}
	return ""
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
	resp.Body.Close()
}
