package mockapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/jrsteele09/go-rag-client/users"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// ContextKeyUser stores the authenticated *users.User
	ContextKeyUser ContextKey = "user"
)

// RequireAuth validates the Bearer access token and loads its user into the
// request context. Missing, malformed, expired and revoked tokens all get 401.
func (s *Server) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, ok := bearerToken(r)
		if !ok {
			writeUnauthorized(w, "Not authenticated")
			return
		}

		claims, err := s.inspector.Introspect(raw)
		if err != nil || !claims.Active {
			writeUnauthorized(w, "Could not validate credentials")
			return
		}

		user, err := s.users.GetByID(claims.Sub)
		if err != nil {
			writeUnauthorized(w, "Could not validate credentials")
			return
		}

		next(w, r.WithContext(context.WithValue(r.Context(), ContextKeyUser, user)))
	}
}

// bearerToken extracts the credential of an "Authorization: Bearer <token>" header.
func bearerToken(r *http.Request) (string, bool) {
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

func userFromContext(ctx context.Context) *users.User {
	u, _ := ctx.Value(ContextKeyUser).(*users.User)
	return u
}
