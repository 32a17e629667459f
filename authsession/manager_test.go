package authsession_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jrsteele09/go-rag-client/apiclient"
	"github.com/jrsteele09/go-rag-client/authsession"
	"github.com/jrsteele09/go-rag-client/routes"
	"github.com/jrsteele09/go-rag-client/session"
	"github.com/jrsteele09/go-rag-client/session/memstore"
	"github.com/jrsteele09/go-rag-client/users"
	"github.com/stretchr/testify/require"
)

const (
	testEmail    = "test@example.com"
	testPassword = "test123"
)

type harness struct {
	mux         *http.ServeMux
	server      *httptest.Server
	backend     *memstore.Store
	store       *session.Store
	client      *apiclient.Client
	manager     *authsession.Manager
	navigations atomic.Int32
	calls       sync.Map // path -> *atomic.Int32
}

func newHarness(t *testing.T, healthy bool) *harness {
	t.Helper()
	h := &harness{mux: http.NewServeMux()}
	h.server = httptest.NewServer(h.counting(h.mux))
	t.Cleanup(h.server.Close)

	if healthy {
		h.mux.HandleFunc("GET "+routes.Health, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})
	}
	h.backend = memstore.New()
	h.store = session.NewStore(h.backend)
	h.client = apiclient.New(h.server.URL, h.store, apiclient.WithTimeout(2*time.Second))
	h.manager = authsession.New(h.client, h.store, authsession.WithNavigator(authsession.NavigatorFunc(func() {
		h.navigations.Add(1)
	})))
	h.client.OnSessionExpired(h.manager.HandleSessionExpired)
	return h
}

func (h *harness) counting(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n, _ := h.calls.LoadOrStore(r.URL.Path, new(atomic.Int32))
		n.(*atomic.Int32).Add(1)
		next.ServeHTTP(w, r)
	})
}

func (h *harness) callCount(path string) int32 {
	n, ok := h.calls.Load(path)
	if !ok {
		return 0
	}
	return n.(*atomic.Int32).Load()
}

func (h *harness) persist(t *testing.T, sess session.Session) {
	t.Helper()
	require.NoError(t, session.NewStore(h.backend).Set(context.Background(), sess))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func testUser() *users.User {
	return &users.User{ID: "u1", Email: testEmail, FirstName: "Test", LastName: "User", Role: users.RoleStudent}
}

func meHandler(token string, u *users.User) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+token {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Not authenticated"})
			return
		}
		writeJSON(w, http.StatusOK, u)
	}
}

func TestStartWithoutToken(t *testing.T) {
	h := newHarness(t, true)
	require.Equal(t, authsession.StateUnknown, h.manager.State())

	require.NoError(t, h.manager.Start(context.Background()))

	snap := h.manager.Snapshot()
	require.Equal(t, authsession.StateUnauthenticated, snap.State)
	require.Nil(t, snap.User)
	require.True(t, snap.ConnectionHealthy)
	require.False(t, snap.Loading)
	require.Equal(t, int32(0), h.callCount(routes.AuthMe))
}

func TestStartResolvesIdentity(t *testing.T) {
	h := newHarness(t, true)
	stale := testUser()
	stale.FirstName = "Stale"
	h.persist(t, session.Session{AccessToken: "T1", RefreshToken: "R1", User: stale})
	h.mux.HandleFunc("GET "+routes.AuthMe, meHandler("T1", testUser()))

	var seen []authsession.Snapshot
	var mu sync.Mutex
	unsubscribe := h.manager.Subscribe(func(s authsession.Snapshot) {
		mu.Lock()
		seen = append(seen, s)
		mu.Unlock()
	})
	defer unsubscribe()

	require.NoError(t, h.manager.Start(context.Background()))

	snap := h.manager.Snapshot()
	require.Equal(t, authsession.StateAuthenticated, snap.State)
	require.Equal(t, "Test", snap.User.FirstName)
	require.True(t, snap.ConnectionHealthy)
	require.Equal(t, "Test", h.store.Get().User.FirstName)

	// The cached identity is shown while resolving.
	mu.Lock()
	defer mu.Unlock()
	var resolving *authsession.Snapshot
	for i := range seen {
		if seen[i].State == authsession.StateResolving {
			resolving = &seen[i]
			break
		}
	}
	require.NotNil(t, resolving)
	require.Equal(t, "Stale", resolving.User.FirstName)
}

func TestStartUnauthorizedClearsSession(t *testing.T) {
	h := newHarness(t, true)
	h.persist(t, session.Session{AccessToken: "T1", RefreshToken: "R1", User: testUser()})
	h.mux.HandleFunc("GET "+routes.AuthMe, meHandler("never", nil))
	h.mux.HandleFunc("POST "+routes.AuthRefreshToken, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Invalid refresh token"})
	})

	require.NoError(t, h.manager.Start(context.Background()))

	snap := h.manager.Snapshot()
	require.Equal(t, authsession.StateUnauthenticated, snap.State)
	require.Nil(t, snap.User)
	require.True(t, h.store.Get().IsEmpty())
	for _, key := range session.Keys {
		_, ok := h.backend.Value(key)
		require.False(t, ok, key)
	}
	require.Equal(t, int32(1), h.navigations.Load())
}

func TestStartNetworkFailureKeepsCachedSession(t *testing.T) {
	h := newHarness(t, true)
	h.persist(t, session.Session{AccessToken: "T1", RefreshToken: "R1", User: testUser()})
	h.server.Close()

	require.NoError(t, h.manager.Start(context.Background()))

	snap := h.manager.Snapshot()
	require.Equal(t, authsession.StateAuthenticated, snap.State)
	require.True(t, snap.Degraded())
	require.False(t, snap.ConnectionHealthy)
	require.Equal(t, "u1", snap.User.ID)
	require.Equal(t, "T1", h.store.Get().AccessToken)
	require.Equal(t, int32(0), h.navigations.Load())
}

func TestStartServerErrorKeepsCachedSession(t *testing.T) {
	h := newHarness(t, true)
	h.persist(t, session.Session{AccessToken: "T1", RefreshToken: "R1", User: testUser()})
	h.mux.HandleFunc("GET "+routes.AuthMe, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": "boom"})
	})

	require.NoError(t, h.manager.Start(context.Background()))

	snap := h.manager.Snapshot()
	require.Equal(t, authsession.StateAuthenticated, snap.State)
	require.False(t, snap.ConnectionHealthy)
	require.Equal(t, authsession.MsgProfileLoadFailed, snap.LastError)
	require.Equal(t, "R1", h.store.Get().RefreshToken)
}

func TestStartNetworkFailureWithoutCachedUser(t *testing.T) {
	h := newHarness(t, true)
	h.persist(t, session.Session{AccessToken: "T1", RefreshToken: "R1"})
	h.server.Close()

	require.NoError(t, h.manager.Start(context.Background()))

	snap := h.manager.Snapshot()
	require.Equal(t, authsession.StateResolving, snap.State)
	require.Nil(t, snap.User)
	require.False(t, snap.ConnectionHealthy)
	require.Equal(t, "T1", h.store.Get().AccessToken)
}

func TestLoginScenario(t *testing.T) {
	h := newHarness(t, true)
	h.mux.HandleFunc("POST "+routes.AuthLogin, func(w http.ResponseWriter, r *http.Request) {
		var in apiclient.LoginRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		require.Equal(t, apiclient.LoginRequest{Email: testEmail, Password: testPassword}, in)
		writeJSON(w, http.StatusOK, map[string]any{
			"access_token":  "T1",
			"refresh_token": "R1",
			"user":          map[string]string{"id": "u1", "email": testEmail},
		})
	})
	require.NoError(t, h.manager.Start(context.Background()))

	res := h.manager.Login(context.Background(), testEmail, testPassword)
	require.True(t, res.Success, res.Error)
	require.NoError(t, res.Err())
	require.Equal(t, "u1", res.Data.ID)

	snap := h.manager.Snapshot()
	require.Equal(t, authsession.StateAuthenticated, snap.State)
	require.Equal(t, "u1", snap.User.ID)

	sess := h.store.Get()
	require.Equal(t, "T1", sess.AccessToken)
	require.Equal(t, "R1", sess.RefreshToken)
	require.Equal(t, "u1", sess.User.ID)

	for _, key := range session.Keys {
		_, ok := h.backend.Value(key)
		require.True(t, ok, key)
	}
}

func TestLoginResolvesIdentityWhenNotEmbedded(t *testing.T) {
	h := newHarness(t, true)
	h.mux.HandleFunc("POST "+routes.AuthLogin, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"access_token": "T1", "refresh_token": "R1", "token_type": "bearer"})
	})
	h.mux.HandleFunc("GET "+routes.AuthMe, meHandler("T1", testUser()))

	res := h.manager.Login(context.Background(), testEmail, testPassword)
	require.True(t, res.Success, res.Error)
	require.Equal(t, "Test User", res.Data.DisplayName())
	require.Equal(t, int32(1), h.callCount(routes.AuthMe))
	require.Equal(t, "u1", h.store.Get().User.ID)
}

func TestLoginWithoutConnectivity(t *testing.T) {
	t.Run("health failing", func(t *testing.T) {
		h := newHarness(t, false)
		h.mux.HandleFunc("GET "+routes.Health, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
		h.mux.HandleFunc("POST "+routes.AuthLogin, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"access_token": "T1"})
		})

		res := h.manager.Login(context.Background(), testEmail, testPassword)
		require.False(t, res.Success)
		require.Equal(t, authsession.MsgNoConnection, res.Error)
		require.Equal(t, int32(0), h.callCount(routes.AuthLogin))
		require.False(t, h.manager.Snapshot().ConnectionHealthy)
		require.Equal(t, authsession.StateUnauthenticated, h.manager.State())
	})

	t.Run("server unreachable", func(t *testing.T) {
		h := newHarness(t, true)
		h.server.Close()

		res := h.manager.Login(context.Background(), testEmail, testPassword)
		require.False(t, res.Success)
		require.Equal(t, authsession.MsgNoConnection, res.Error)
		require.Equal(t, authsession.MsgNoConnection, h.manager.Snapshot().LastError)
		require.True(t, h.store.Get().IsEmpty())
	})
}

func TestLoginFailureMessages(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"unauthorized", http.StatusUnauthorized, `{"detail":"Invalid email or password"}`, authsession.MsgInvalidCredentials},
		{"unprocessable", http.StatusUnprocessableEntity, `{"detail":[{"loc":["body","email"],"msg":"bad"}]}`, authsession.MsgInvalidInput},
		{"server error", http.StatusInternalServerError, `{"detail":"db down"}`, authsession.MsgServerError},
		{"detail", http.StatusForbidden, `{"detail":"Account locked"}`, "Account locked"},
		{"no detail", http.StatusTeapot, ``, authsession.MsgLoginFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, true)
			h.mux.HandleFunc("POST "+routes.AuthLogin, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			res := h.manager.Login(context.Background(), testEmail, "wrong1")
			require.False(t, res.Success)
			require.Equal(t, tt.want, res.Error)
			require.Error(t, res.Err())

			snap := h.manager.Snapshot()
			require.Equal(t, tt.want, snap.LastError)
			require.Equal(t, authsession.StateUnauthenticated, snap.State)
			require.True(t, snap.ConnectionHealthy)
			require.True(t, h.store.Get().IsEmpty())
		})
	}
}

func TestLoginValidationFailsLocally(t *testing.T) {
	h := newHarness(t, true)

	res := h.manager.Login(context.Background(), "not-an-email", testPassword)
	require.False(t, res.Success)
	require.Contains(t, res.Error, "not a valid address")
	require.Equal(t, int32(0), h.callCount(routes.AuthLogin))
}

func TestLoginWithoutAccessTokenFails(t *testing.T) {
	h := newHarness(t, true)
	h.mux.HandleFunc("POST "+routes.AuthLogin, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"access_token":  "",
			"refresh_token": "R1",
			"user":          map[string]string{"id": "u1", "email": testEmail},
		})
	})

	res := h.manager.Login(context.Background(), testEmail, testPassword)
	require.False(t, res.Success)
	require.Equal(t, authsession.MsgLoginFailed, res.Error)

	snap := h.manager.Snapshot()
	require.Equal(t, authsession.StateUnauthenticated, snap.State)
	require.Nil(t, snap.User)
	require.True(t, h.store.Get().IsEmpty())
	require.Equal(t, int32(0), h.callCount(routes.AuthMe))
}

func TestLoginIdentityFailureLeavesNoPartialState(t *testing.T) {
	h := newHarness(t, true)
	h.mux.HandleFunc("POST "+routes.AuthLogin, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"access_token": "T1", "refresh_token": "R1"})
	})
	h.mux.HandleFunc("GET "+routes.AuthMe, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": "boom"})
	})

	res := h.manager.Login(context.Background(), testEmail, testPassword)
	require.False(t, res.Success)
	require.Equal(t, authsession.MsgServerError, res.Error)
	require.True(t, h.store.Get().IsEmpty())
	for _, key := range session.Keys {
		_, ok := h.backend.Value(key)
		require.False(t, ok, key)
	}
	require.Equal(t, authsession.StateUnauthenticated, h.manager.State())
}

func TestLogoutWithoutSessionIsNoop(t *testing.T) {
	h := newHarness(t, true)
	require.NoError(t, h.manager.Start(context.Background()))

	for i := 0; i < 2; i++ {
		res := h.manager.Logout(context.Background())
		require.True(t, res.Success)
		require.Equal(t, authsession.StateUnauthenticated, h.manager.State())
	}
	require.Equal(t, int32(0), h.callCount(routes.AuthLogout))
}

func TestLogoutClearsEvenWhenServerFails(t *testing.T) {
	h := newHarness(t, true)
	h.persist(t, session.Session{AccessToken: "T1", RefreshToken: "R1", User: testUser()})
	h.mux.HandleFunc("GET "+routes.AuthMe, meHandler("T1", testUser()))
	h.mux.HandleFunc("POST "+routes.AuthLogout, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer T1", r.Header.Get("Authorization"))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": "boom"})
	})
	require.NoError(t, h.manager.Start(context.Background()))
	require.Equal(t, authsession.StateAuthenticated, h.manager.State())

	res := h.manager.Logout(context.Background())
	require.True(t, res.Success)
	require.Equal(t, int32(1), h.callCount(routes.AuthLogout))

	snap := h.manager.Snapshot()
	require.Equal(t, authsession.StateUnauthenticated, snap.State)
	require.Nil(t, snap.User)
	require.True(t, h.store.Get().IsEmpty())
}

func TestRefreshFailureEndsSession(t *testing.T) {
	h := newHarness(t, true)
	h.mux.HandleFunc("POST "+routes.AuthLogin, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"access_token": "T1", "refresh_token": "R1", "user": testUser()})
	})
	h.mux.HandleFunc("GET "+routes.Documents, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Token expired"})
	})
	h.mux.HandleFunc("POST "+routes.AuthRefreshToken, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Invalid refresh token"})
	})

	require.True(t, h.manager.Login(context.Background(), testEmail, testPassword).Success)

	_, err := h.client.ListDocuments(context.Background(), apiclient.ListDocumentsParams{})
	require.True(t, apiclient.IsUnauthorized(err))

	snap := h.manager.Snapshot()
	require.Equal(t, authsession.StateUnauthenticated, snap.State)
	require.Nil(t, snap.User)
	require.Equal(t, authsession.MsgSessionExpired, snap.LastError)
	require.True(t, h.store.Get().IsEmpty())
	require.Equal(t, int32(1), h.navigations.Load())
	require.Equal(t, int32(1), h.callCount(routes.AuthRefreshToken))
}

func TestRefreshUser(t *testing.T) {
	h := newHarness(t, true)

	res := h.manager.RefreshUser(context.Background())
	require.False(t, res.Success)
	require.Equal(t, authsession.MsgNotSignedIn, res.Error)

	h.persist(t, session.Session{AccessToken: "T1", RefreshToken: "R1"})
	h.mux.HandleFunc("GET "+routes.AuthMe, meHandler("T1", testUser()))
	require.NoError(t, h.manager.Start(context.Background()))

	res = h.manager.RefreshUser(context.Background())
	require.True(t, res.Success, res.Error)
	require.Equal(t, "u1", res.Data.ID)
	require.Equal(t, int32(2), h.callCount(routes.AuthMe))
}

func TestPassThroughOperations(t *testing.T) {
	h := newHarness(t, true)
	h.persist(t, session.Session{AccessToken: "T1", RefreshToken: "R1", User: testUser()})
	h.mux.HandleFunc("GET "+routes.AuthMe, meHandler("T1", testUser()))
	h.mux.HandleFunc("POST "+routes.AuthRegister, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "User with this email already exists"})
	})
	h.mux.HandleFunc("POST "+routes.AuthChangePassword, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"message": "Password changed"})
	})
	h.mux.HandleFunc("POST "+routes.AuthResetPasswordRequest, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"message": "Reset instructions sent"})
	})
	h.mux.HandleFunc("POST "+routes.AuthResetPasswordConfirm, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]string{})
	})
	ctx := context.Background()
	require.NoError(t, h.manager.Start(ctx))

	reg := h.manager.Register(ctx, apiclient.RegisterRequest{Email: testEmail, Password: "abc123"})
	require.False(t, reg.Success)
	require.Equal(t, "User with this email already exists", reg.Error)
	require.Equal(t, reg.Error, h.manager.Snapshot().LastError)

	weak := h.manager.Register(ctx, apiclient.RegisterRequest{Email: "new@example.com", Password: "abc"})
	require.False(t, weak.Success)
	require.Contains(t, weak.Error, "at least 6 characters")

	changed := h.manager.ChangePassword(ctx, testPassword, "newpass1")
	require.True(t, changed.Success, changed.Error)
	require.Equal(t, "Password changed", changed.Data.Message)
	require.Equal(t, "T1", h.store.Get().AccessToken)
	require.Equal(t, authsession.StateAuthenticated, h.manager.State())

	reset := h.manager.RequestPasswordReset(ctx, testEmail)
	require.True(t, reset.Success, reset.Error)

	confirm := h.manager.ConfirmPasswordReset(ctx, "token", "newpass1")
	require.False(t, confirm.Success)
	require.Equal(t, authsession.MsgResetConfirmFailed, confirm.Error)
}

func TestErrorHelpersAndSubscribe(t *testing.T) {
	h := newHarness(t, true)

	var count atomic.Int32
	unsubscribe := h.manager.Subscribe(func(authsession.Snapshot) { count.Add(1) })

	h.manager.SetError("something broke")
	require.Equal(t, "something broke", h.manager.Snapshot().LastError)
	h.manager.ClearError()
	require.Empty(t, h.manager.Snapshot().LastError)
	require.Equal(t, int32(2), count.Load())

	unsubscribe()
	h.manager.SetError("ignored")
	require.Equal(t, int32(2), count.Load())
}

func TestSnapshotIsACopy(t *testing.T) {
	h := newHarness(t, true)
	h.persist(t, session.Session{AccessToken: "T1", User: testUser()})
	h.mux.HandleFunc("GET "+routes.AuthMe, meHandler("T1", testUser()))
	require.NoError(t, h.manager.Start(context.Background()))

	snap := h.manager.Snapshot()
	snap.User.FirstName = "Changed"
	require.Equal(t, "Test", h.manager.Snapshot().User.FirstName)
}
