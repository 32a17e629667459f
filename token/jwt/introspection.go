package jwt

import (
	"errors"
	"fmt"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-rag-client/token"
)

// TokenIntrospection describes an access token. When Active is false the
// other fields may be empty.
type TokenIntrospection struct {
	Active bool   `json:"active"`
	Sub    string `json:"sub,omitempty"`
	Email  string `json:"email,omitempty"`
	Role   string `json:"role,omitempty"`
	Jti    string `json:"jti,omitempty"`
	Exp    int64  `json:"exp,omitempty"`
	Iat    int64  `json:"iat,omitempty"`
}

// RevokedChecker is an interface for checking if a token has been revoked
type RevokedChecker interface {
	IsRevoked(jti string) bool
}

// Inspector verifies access tokens issued by Creator.
type Inspector struct {
	signer         token.Signer
	revokedChecker RevokedChecker
}

func NewInspector(signer token.Signer, revokedChecker RevokedChecker) *Inspector {
	return &Inspector{
		signer:         signer,
		revokedChecker: revokedChecker,
	}
}

// Introspect verifies rawToken. Bad signatures and malformed tokens return an
// error; expired or revoked tokens come back inactive without one.
func (i *Inspector) Introspect(rawToken string) (*TokenIntrospection, error) {
	if strings.TrimSpace(rawToken) == "" {
		return &TokenIntrospection{Active: false}, nil
	}

	claims, err := i.parse(rawToken)
	if err != nil {
		return &TokenIntrospection{Active: false}, err
	}

	sub, _ := claims["sub"].(string)
	email, _ := claims["email"].(string)
	role, _ := claims["role"].(string)
	jti, _ := claims["jti"].(string)
	iat, _ := claims["iat"].(float64)
	exp, _ := claims["exp"].(float64)

	active := NowTimeFunc().Unix() <= int64(exp)
	if jti != "" && i.revokedChecker != nil && i.revokedChecker.IsRevoked(jti) {
		active = false
	}

	return &TokenIntrospection{
		Active: active,
		Sub:    sub,
		Email:  email,
		Role:   role,
		Jti:    jti,
		Exp:    int64(exp),
		Iat:    int64(iat),
	}, nil
}

// ParseAndExtractJTI returns the jti and expiry of a validly signed token,
// expired or not, so it can be revoked.
func (i *Inspector) ParseAndExtractJTI(rawToken string) (jti string, exp time.Time, err error) {
	claims, err := i.parse(rawToken)
	if err != nil {
		return "", time.Time{}, err
	}

	jti, ok := claims["jti"].(string)
	if !ok || jti == "" {
		return "", time.Time{}, errors.New("token missing jti claim")
	}
	expClaim, ok := claims["exp"].(float64)
	if !ok {
		return "", time.Time{}, errors.New("token missing exp claim")
	}
	return jti, time.Unix(int64(expClaim), 0), nil
}

// parse checks the signature only; expiry is judged by the caller against NowTimeFunc.
func (i *Inspector) parse(rawToken string) (jwtlib.MapClaims, error) {
	parsed, err := jwtlib.ParseWithClaims(rawToken, jwtlib.MapClaims{}, i.signer.GetVerificationKey,
		jwtlib.WithoutClaimsValidation(),
		jwtlib.WithValidMethods([]string{i.signer.GetSigningMethod().Alg()}),
	)
	if err != nil || !parsed.Valid {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	claims, ok := parsed.Claims.(jwtlib.MapClaims)
	if !ok {
		return nil, errors.New("error extracting claims from token")
	}
	return claims, nil
}
