// Package session holds the credentials and identity of the signed-in user
// and keeps an in-memory copy in step with a durable Backend.
package session

import (
	"context"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-rag-client/users"
	"golang.org/x/oauth2"
)

// Keys of the persisted credential record.
const (
	KeyAccessToken  = "access_token"
	KeyRefreshToken = "refresh_token"
	KeyUser         = "user" // JSON snapshot of users.User
)

// Keys lists every persisted key; they are always cleared together.
var Keys = []string{KeyAccessToken, KeyRefreshToken, KeyUser}

// Session is the current credential pair plus the last known identity.
// Tokens are opaque strings and never validated here.
type Session struct {
	AccessToken  string
	RefreshToken string
	User         *users.User
}

// Backend is the durable side of the store. Save replaces the whole record:
// keys missing from values must not survive the call.
type Backend interface {
	Load(ctx context.Context) (map[string]string, error)
	Save(ctx context.Context, values map[string]string) error
	Clear(ctx context.Context) error
}

func (s Session) IsEmpty() bool {
	return s.AccessToken == "" && s.RefreshToken == "" && s.User == nil
}

// HasAccessToken reports whether requests can carry a bearer credential.
func (s Session) HasAccessToken() bool {
	return s.AccessToken != ""
}

// Expiry reads the exp claim when the access token happens to be a JWT.
// Opaque tokens, and JWTs without exp, report the zero time.
func (s Session) Expiry() time.Time {
	if s.AccessToken == "" {
		return time.Time{}
	}
	claims := jwtlib.RegisteredClaims{}
	if _, _, err := jwtlib.NewParser().ParseUnverified(s.AccessToken, &claims); err != nil {
		return time.Time{}
	}
	if claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}

// OAuth2Token exposes the credentials as an oauth2 bearer token, nil without an access token.
func (s Session) OAuth2Token() *oauth2.Token {
	if s.AccessToken == "" {
		return nil
	}
	return &oauth2.Token{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		TokenType:    "Bearer",
		Expiry:       s.Expiry(),
	}
}

// normalised enforces that a session without an access token carries no identity.
func (s Session) normalised() Session {
	if s.AccessToken == "" {
		s.User = nil
	}
	if s.User != nil {
		u := *s.User
		u.PasswordHash = ""
		s.User = &u
	}
	return s
}
