package jwt

import (
	"fmt"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jrsteele09/go-rag-client/token"
	"github.com/jrsteele09/go-rag-client/users"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// Creator issues access tokens for signed-in users.
type Creator struct {
	signer token.Signer
	expiry time.Duration
}

func NewCreator(signer token.Signer, expiry time.Duration) *Creator {
	if expiry <= 0 {
		expiry = 15 * time.Minute
	}
	return &Creator{
		signer: signer,
		expiry: expiry,
	}
}

func (c *Creator) Expiry() time.Duration {
	return c.expiry
}

// CreateAccessToken returns a signed access token for user.
func (c *Creator) CreateAccessToken(user *users.User) (string, error) {
	now := NowTimeFunc()
	claims := jwtlib.MapClaims{
		"sub":        user.ID,                  // The user the token was issued to
		"email":      user.Email,               // Convenience copy for logging
		"role":       string(user.Role),        // Platform role
		"iat":        now.Unix(),               // Issued At
		"exp":        now.Add(c.expiry).Unix(), // Expiry
		"jti":        uuid.New().String(),      // Unique token ID for revocation
		"token_type": "access",                 // Distinguishes access tokens from anything else signed with the key
	}

	signed, err := c.signer.Sign(claims)
	if err != nil {
		return "", fmt.Errorf("failed to sign JWT token: %w", err)
	}
	return signed, nil
}
