package apiclient

import (
	"context"
	"net/http"
	"strings"

	"github.com/jrsteele09/go-rag-client/internal/errors"
	"github.com/jrsteele09/go-rag-client/routes"
	"github.com/jrsteele09/go-rag-client/users"
)

// Login exchanges credentials for a token pair. The session store is not touched.
func (c *Client) Login(ctx context.Context, creds LoginRequest) (*TokenResponse, error) {
	creds.Email = strings.TrimSpace(creds.Email)
	if err := users.ValidateEmail(creds.Email); err != nil {
		return nil, invalid("email", "%s", err)
	}
	if creds.Password == "" {
		return nil, invalid("password", "password is required")
	}
	var tr TokenResponse
	if err := c.doJSON(ctx, http.MethodPost, routes.AuthLogin, nil, creds, &tr); err != nil {
		return nil, err
	}
	if tr.AccessToken == "" {
		return nil, errors.ErrInvalidToken
	}
	return &tr, nil
}

func (c *Client) Register(ctx context.Context, in RegisterRequest) (*TokenResponse, error) {
	in.Email = strings.TrimSpace(in.Email)
	if err := users.ValidateEmail(in.Email); err != nil {
		return nil, invalid("email", "%s", err)
	}
	if err := users.ValidatePasswordStrength(in.Password); err != nil {
		return nil, invalid("password", "%s", err)
	}
	var tr TokenResponse
	if err := c.doJSON(ctx, http.MethodPost, routes.AuthRegister, nil, in, &tr); err != nil {
		return nil, err
	}
	return &tr, nil
}

// Me fetches the identity behind the current access token.
func (c *Client) Me(ctx context.Context) (*users.User, error) {
	var u users.User
	if err := c.doJSON(ctx, http.MethodGet, routes.AuthMe, nil, nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *Client) Logout(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodPost, routes.AuthLogout, nil, nil, nil)
}

// RefreshToken performs an explicit refresh-token exchange. The interceptor
// does this on its own after a 401; this is for callers that want to renew early.
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	if refreshToken == "" {
		return nil, invalid("refresh_token", "refresh token is required")
	}
	var tr TokenResponse
	if err := c.doJSON(ctx, http.MethodPost, routes.AuthRefreshToken, nil, RefreshRequest{RefreshToken: refreshToken}, &tr); err != nil {
		return nil, err
	}
	return &tr, nil
}

func (c *Client) ChangePassword(ctx context.Context, in ChangePasswordRequest) (*MessageResponse, error) {
	if in.CurrentPassword == "" {
		return nil, invalid("current_password", "current password is required")
	}
	if err := users.ValidatePasswordStrength(in.NewPassword); err != nil {
		return nil, invalid("new_password", "%s", err)
	}
	var msg MessageResponse
	if err := c.doJSON(ctx, http.MethodPost, routes.AuthChangePassword, nil, in, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (c *Client) RequestPasswordReset(ctx context.Context, email string) (*MessageResponse, error) {
	email = strings.TrimSpace(email)
	if err := users.ValidateEmail(email); err != nil {
		return nil, invalid("email", "%s", err)
	}
	var msg MessageResponse
	if err := c.doJSON(ctx, http.MethodPost, routes.AuthResetPasswordRequest, nil, ResetPasswordRequest{Email: email}, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (c *Client) ConfirmPasswordReset(ctx context.Context, in ResetPasswordConfirm) (*MessageResponse, error) {
	in.Token = strings.TrimSpace(in.Token)
	if in.Token == "" {
		return nil, invalid("token", "reset token is required")
	}
	if err := users.ValidatePasswordStrength(in.NewPassword); err != nil {
		return nil, invalid("new_password", "%s", err)
	}
	var msg MessageResponse
	if err := c.doJSON(ctx, http.MethodPost, routes.AuthResetPasswordConfirm, nil, in, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
