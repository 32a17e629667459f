package mockapi

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-rag-client/apiclient"
	"github.com/jrsteele09/go-rag-client/internal/errors"
	"github.com/jrsteele09/go-rag-client/internal/utils"
	"github.com/jrsteele09/go-rag-client/users"
)

const resetRequestedMessage = "If the email is registered, a reset link has been sent"

func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in apiclient.LoginRequest
		if !decodeJSON(w, r, &in) {
			return
		}
		user, err := s.users.GetByEmail(in.Email)
		if err != nil || !users.CheckPasswordHash(in.Password, user.PasswordHash) {
			writeUnauthorized(w, "Incorrect email or password")
			return
		}
		tr, err := s.issueTokens(user)
		if err != nil {
			s.log.Error().Err(err).Str("user_id", user.ID).Msg("issue tokens")
			writeError(w, http.StatusInternalServerError, "Could not issue tokens")
			return
		}
		writeJSON(w, http.StatusOK, tr)
	}
}

// RegisterHandler creates the account but does not sign it in.
func (s *Server) RegisterHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in apiclient.RegisterRequest
		if !decodeJSON(w, r, &in) {
			return
		}
		in.Email = strings.TrimSpace(in.Email)
		if err := users.ValidateEmail(in.Email); err != nil {
			writeValidationError(w, "email", err.Error())
			return
		}
		if err := users.ValidatePasswordStrength(in.Password); err != nil {
			writeValidationError(w, "password", err.Error())
			return
		}
		if _, err := s.users.GetByEmail(in.Email); err == nil {
			writeError(w, http.StatusBadRequest, "Email already registered")
			return
		}

		hash, err := users.HashPassword(in.Password)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Could not register user")
			return
		}
		user := &users.User{
			Email:        in.Email,
			FirstName:    in.FirstName,
			LastName:     in.LastName,
			Role:         users.RoleStudent,
			CreatedAt:    utils.NewTimestamp(time.Now()),
			PasswordHash: hash,
		}
		if err := s.users.Upsert(user); err != nil {
			writeError(w, http.StatusInternalServerError, "Could not register user")
			return
		}
		s.log.Info().Str("user_id", user.ID).Msg("user registered")
		writeJSON(w, http.StatusCreated, apiclient.TokenResponse{User: user.Public()})
	}
}

func (s *Server) MeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, userFromContext(r.Context()).Public())
	}
}

// LogoutHandler revokes whatever the bearer token names and always succeeds,
// so a client can sign out with an expired or missing token.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if raw, ok := bearerToken(r); ok {
			if jti, exp, err := s.inspector.ParseAndExtractJTI(raw); err == nil {
				if err := s.revoked.Add(jti, exp); err != nil {
					s.log.Warn().Err(err).Str("jti", jti).Msg("failed to revoke access token")
				}
			}
			if claims, err := s.inspector.Introspect(raw); err == nil && claims.Sub != "" {
				s.refresh.RevokeUser(claims.Sub)
			}
		}
		writeJSON(w, http.StatusOK, apiclient.MessageResponse{Message: "Successfully logged out"})
	}
}

// RefreshTokenHandler rotates the refresh token: the presented one stops working.
func (s *Server) RefreshTokenHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in apiclient.RefreshRequest
		if !decodeJSON(w, r, &in) {
			return
		}
		userID, next, err := s.refresh.Rotate(in.RefreshToken)
		if err != nil {
			writeUnauthorized(w, "Invalid refresh token")
			return
		}
		user, err := s.users.GetByID(userID)
		if err != nil {
			s.refresh.RevokeUser(userID)
			writeUnauthorized(w, "Invalid refresh token")
			return
		}
		access, err := s.creator.CreateAccessToken(user)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Could not issue tokens")
			return
		}
		writeJSON(w, http.StatusOK, apiclient.TokenResponse{
			AccessToken:  access,
			RefreshToken: next,
			TokenType:    "bearer",
			ExpiresIn:    int64(s.creator.Expiry().Seconds()),
		})
	}
}

func (s *Server) ChangePasswordHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in apiclient.ChangePasswordRequest
		if !decodeJSON(w, r, &in) {
			return
		}
		user := userFromContext(r.Context())
		if !users.CheckPasswordHash(in.CurrentPassword, user.PasswordHash) {
			writeError(w, http.StatusBadRequest, "Incorrect current password")
			return
		}
		if err := users.ValidatePasswordStrength(in.NewPassword); err != nil {
			writeValidationError(w, "new_password", err.Error())
			return
		}
		if !s.setPassword(w, user.Email, in.NewPassword) {
			return
		}
		writeJSON(w, http.StatusOK, apiclient.MessageResponse{Message: "Password changed successfully"})
	}
}

// ResetPasswordRequestHandler answers the same way whether or not the email exists.
func (s *Server) ResetPasswordRequestHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in apiclient.ResetPasswordRequest
		if !decodeJSON(w, r, &in) {
			return
		}
		if user, err := s.users.GetByEmail(in.Email); err == nil {
			token := s.resets.Issue(user.Email)
			if s.env == "DEV" {
				s.log.Info().Str("email", user.Email).Str("reset_token", token).Msg("password reset requested")
			}
		}
		writeJSON(w, http.StatusOK, apiclient.MessageResponse{Message: resetRequestedMessage})
	}
}

func (s *Server) ResetPasswordConfirmHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in apiclient.ResetPasswordConfirm
		if !decodeJSON(w, r, &in) {
			return
		}
		if err := users.ValidatePasswordStrength(in.NewPassword); err != nil {
			writeValidationError(w, "new_password", err.Error())
			return
		}
		email, err := s.resets.Redeem(in.Token)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid or expired reset token")
			return
		}
		if !s.setPassword(w, email, in.NewPassword) {
			return
		}
		if user, err := s.users.GetByEmail(email); err == nil {
			s.refresh.RevokeUser(user.ID)
		}
		writeJSON(w, http.StatusOK, apiclient.MessageResponse{Message: "Password has been reset"})
	}
}

// PendingResetToken returns the outstanding reset token for email. The mock
// has no mailer, so this is how a caller completes the flow.
func (s *Server) PendingResetToken(email string) (string, bool) {
	return s.resets.Pending(email)
}

func (s *Server) setPassword(w http.ResponseWriter, email, password string) bool {
	hash, err := users.HashPassword(password)
	if err == nil {
		err = s.users.SetPasswordHash(email, hash)
	}
	if err != nil {
		s.log.Error().Err(err).Msg("set password")
		writeError(w, http.StatusInternalServerError, "Could not update password")
		return false
	}
	return true
}

func (s *Server) issueTokens(user *users.User) (*apiclient.TokenResponse, error) {
	access, err := s.creator.CreateAccessToken(user)
	if err != nil {
		return nil, err
	}
	refreshToken, err := s.refresh.Create(user.ID)
	if err != nil {
		return nil, err
	}
	return &apiclient.TokenResponse{
		AccessToken:  access,
		RefreshToken: refreshToken,
		TokenType:    "bearer",
		ExpiresIn:    int64(s.creator.Expiry().Seconds()),
		User:         user.Public(),
	}, nil
}

type resetToken struct {
	email   string
	expires time.Time
}

// resetTokens holds single-use password reset tokens, at most one per email.
type resetTokens struct {
	ttl    time.Duration
	now    func() time.Time
	tokens map[string]resetToken
	lock   sync.Mutex
}

func newResetTokens(ttl time.Duration) *resetTokens {
	return &resetTokens{
		ttl:    ttl,
		now:    time.Now,
		tokens: make(map[string]resetToken),
	}
}

func (rt *resetTokens) Issue(email string) string {
	rt.lock.Lock()
	defer rt.lock.Unlock()

	for token, entry := range rt.tokens {
		if entry.email == email {
			delete(rt.tokens, token)
		}
	}
	token := uuid.NewString()
	rt.tokens[token] = resetToken{email: email, expires: rt.now().Add(rt.ttl)}
	return token
}

func (rt *resetTokens) Redeem(token string) (string, error) {
	rt.lock.Lock()
	defer rt.lock.Unlock()

	entry, ok := rt.tokens[token]
	if !ok {
		return "", errors.ErrInvalidToken
	}
	delete(rt.tokens, token)
	if rt.now().After(entry.expires) {
		return "", errors.ErrTokenExpired
	}
	return entry.email, nil
}

func (rt *resetTokens) Pending(email string) (string, bool) {
	rt.lock.Lock()
	defer rt.lock.Unlock()

	for token, entry := range rt.tokens {
		if entry.email == email && !rt.now().After(entry.expires) {
			return token, true
		}
	}
	return "", false
}
