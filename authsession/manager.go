// Package authsession decides why the session changes: startup resolution,
// login, logout, registration and password flows. It owns the state machine
// and publishes Snapshots; the session package only applies the changes.
package authsession

import (
	"context"
	"sync"

	"github.com/jrsteele09/go-rag-client/apiclient"
	"github.com/jrsteele09/go-rag-client/internal/errors"
	"github.com/jrsteele09/go-rag-client/session"
	"github.com/jrsteele09/go-rag-client/users"
	pkgerrors "github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// API is the subset of apiclient.Client the manager calls.
type API interface {
	Health(ctx context.Context) (*apiclient.Health, error)
	Login(ctx context.Context, creds apiclient.LoginRequest) (*apiclient.TokenResponse, error)
	Register(ctx context.Context, in apiclient.RegisterRequest) (*apiclient.TokenResponse, error)
	Me(ctx context.Context) (*users.User, error)
	Logout(ctx context.Context) error
	ChangePassword(ctx context.Context, in apiclient.ChangePasswordRequest) (*apiclient.MessageResponse, error)
	RequestPasswordReset(ctx context.Context, email string) (*apiclient.MessageResponse, error)
	ConfirmPasswordReset(ctx context.Context, in apiclient.ResetPasswordConfirm) (*apiclient.MessageResponse, error)
}

// SessionStore is the part of session.Store the manager drives.
type SessionStore interface {
	Restore(ctx context.Context) (session.Session, error)
	Get() session.Session
	Set(ctx context.Context, s session.Session) error
	Update(ctx context.Context, fn func(*session.Session)) error
	Clear(ctx context.Context) error
}

// Navigator sends the user back to the login entry point.
type Navigator interface {
	NavigateToLogin()
}

type NavigatorFunc func()

func (f NavigatorFunc) NavigateToLogin() { f() }

type Manager struct {
	api   API
	store SessionStore
	nav   Navigator
	log   zerolog.Logger

	opMu sync.Mutex // one session-changing operation at a time

	mu        sync.RWMutex
	snap      Snapshot
	listeners map[int]func(Snapshot)
	nextID    int
}

type Option func(*Manager)

func WithNavigator(nav Navigator) Option {
	return func(m *Manager) {
		m.nav = nav
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(m *Manager) {
		m.log = l
	}
}

// New returns a manager in StateUnknown. Call Start before using it.
func New(api API, store SessionStore, options ...Option) *Manager {
	m := &Manager{
		api:       api,
		store:     store,
		log:       log.Logger,
		listeners: make(map[int]func(Snapshot)),
		snap:      Snapshot{State: StateUnknown, ConnectionHealthy: true},
	}
	for _, opt := range options {
		opt(m)
	}
	return m
}

// Snapshot returns the current state. The user is a copy.
func (m *Manager) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snap.clone()
}

func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snap.State
}

// Subscribe calls fn with every new snapshot until the returned func is called.
// fn runs on the goroutine that caused the change and must not block.
func (m *Manager) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.listeners, id)
		m.mu.Unlock()
	}
}

func (m *Manager) update(fn func(*Snapshot)) {
	m.mu.Lock()
	fn(&m.snap)
	if m.snap.State != StateAuthenticated && m.snap.State != StateResolving {
		m.snap.User = nil
	}
	snap := m.snap.clone()
	listeners := make([]func(Snapshot), 0, len(m.listeners))
	for _, l := range m.listeners {
		listeners = append(listeners, l)
	}
	m.mu.Unlock()

	for _, l := range listeners {
		l(snap)
	}
}

// Start resolves the session persisted by a previous run. Without an access
// token the manager is Unauthenticated. With one it shows the cached identity
// while Resolving and asks the server who the token belongs to: a 401 signs
// the user out, any other failure keeps the cached identity with the
// connection flagged unhealthy.
func (m *Manager) Start(ctx context.Context) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	m.update(func(s *Snapshot) { s.Loading = true })

	var startErr error
	sess, err := m.store.Restore(ctx)
	if err != nil {
		m.log.Warn().Err(err).Msg("could not restore session, starting signed out")
		if errors.Is(err, errors.ErrSessionCorrupt) {
			if err := m.store.Clear(ctx); err != nil {
				m.log.Error().Err(err).Msg("failed to discard corrupt session")
			}
		} else {
			startErr = pkgerrors.Wrap(err, "restore session")
		}
		sess = session.Session{}
	}

	m.CheckConnection(ctx)

	if !sess.HasAccessToken() {
		m.update(func(s *Snapshot) {
			s.State = StateUnauthenticated
			s.Loading = false
		})
		return startErr
	}

	m.update(func(s *Snapshot) {
		s.State = StateResolving
		s.User = sess.User
	})
	m.resolveIdentity(ctx)
	return startErr
}

// RefreshUser re-runs identity resolution for the current access token.
func (m *Manager) RefreshUser(ctx context.Context) Result[*users.User] {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	if !m.store.Get().HasAccessToken() {
		return fail[*users.User](MsgNotSignedIn)
	}
	m.update(func(s *Snapshot) { s.Loading = true })
	return m.resolveIdentity(ctx)
}

func (m *Manager) resolveIdentity(ctx context.Context) Result[*users.User] {
	u, err := m.api.Me(ctx)
	if err == nil {
		if err := m.store.Update(ctx, func(s *session.Session) { s.User = u }); err != nil {
			m.log.Warn().Err(err).Msg("failed to cache user snapshot")
		}
		m.update(func(s *Snapshot) {
			s.State = StateAuthenticated
			s.User = u
			s.ConnectionHealthy = true
			s.Loading = false
		})
		m.log.Debug().Str("user_id", u.ID).Msg("identity confirmed")
		return ok(u.Public())
	}

	if apiclient.IsUnauthorized(err) {
		m.log.Info().Err(err).Msg("stored credentials rejected, signing out")
		if err := m.store.Clear(ctx); err != nil {
			m.log.Error().Err(err).Msg("failed to clear rejected session")
		}
		m.update(func(s *Snapshot) {
			s.State = StateUnauthenticated
			s.Loading = false
			s.LastError = MsgSessionExpired
		})
		return fail[*users.User](MsgSessionExpired)
	}

	// Transient failure: keep the local session.
	cached := m.store.Get().User
	m.log.Warn().Err(err).Bool("cached_user", cached != nil).Msg("identity check failed, keeping local session")
	m.update(func(s *Snapshot) {
		s.ConnectionHealthy = false
		s.Loading = false
		s.LastError = MsgProfileLoadFailed
		if cached != nil {
			s.State = StateAuthenticated
			s.User = cached
		}
	})
	return fail[*users.User](failureMessage(err, MsgProfileLoadFailed))
}

// CheckConnection probes the health endpoint and records the outcome.
func (m *Manager) CheckConnection(ctx context.Context) bool {
	_, err := m.api.Health(ctx)
	healthy := err == nil
	if !healthy {
		m.log.Warn().Err(err).Msg("server health check failed")
	}
	m.update(func(s *Snapshot) { s.ConnectionHealthy = healthy })
	return healthy
}

// Login establishes a session from credentials. Either tokens and identity
// are both stored or nothing is.
func (m *Manager) Login(ctx context.Context, email, password string) Result[*users.User] {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	m.update(func(s *Snapshot) {
		s.LastError = ""
		s.Loading = true
	})

	if !m.CheckConnection(ctx) {
		return m.failed(MsgNoConnection, false)
	}

	tr, err := m.api.Login(ctx, apiclient.LoginRequest{Email: email, Password: password})
	if err != nil {
		m.log.Info().Err(err).Msg("login rejected")
		return m.failed(failureMessage(err, MsgLoginFailed), apiclient.IsConnectionError(err))
	}

	if err := m.store.Set(ctx, session.Session{AccessToken: tr.AccessToken, RefreshToken: tr.RefreshToken}); err != nil {
		m.log.Warn().Err(err).Msg("failed to persist tokens")
	}

	u := tr.User
	if u == nil {
		u, err = m.api.Me(ctx)
		if err != nil {
			m.log.Warn().Err(err).Msg("identity lookup after login failed, discarding tokens")
			if err := m.store.Clear(ctx); err != nil {
				m.log.Error().Err(err).Msg("failed to discard tokens")
			}
			return m.failed(failureMessage(err, MsgLoginFailed), apiclient.IsConnectionError(err))
		}
	}

	if err := m.store.Update(ctx, func(s *session.Session) { s.User = u }); err != nil {
		m.log.Warn().Err(err).Msg("failed to cache user snapshot")
	}
	m.update(func(s *Snapshot) {
		s.State = StateAuthenticated
		s.User = u
		s.ConnectionHealthy = true
		s.Loading = false
		s.LastError = ""
	})
	m.log.Info().Str("user_id", u.ID).Msg("signed in")
	return ok(u.Public())
}

// failed records msg as the last error and drops back to Unauthenticated
// unless an earlier session is still stored.
func (m *Manager) failed(msg string, connectionLost bool) Result[*users.User] {
	signedIn := m.store.Get().HasAccessToken()
	m.update(func(s *Snapshot) {
		s.LastError = msg
		s.Loading = false
		if connectionLost {
			s.ConnectionHealthy = false
		}
		if !signedIn {
			s.State = StateUnauthenticated
		}
	})
	return fail[*users.User](msg)
}

// Logout always ends Unauthenticated. The server call is best effort and is
// skipped when there is nothing to sign out of.
func (m *Manager) Logout(ctx context.Context) Result[struct{}] {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	if m.store.Get().HasAccessToken() {
		if err := m.api.Logout(ctx); err != nil {
			m.log.Warn().Err(err).Msg("server logout failed, clearing local session anyway")
		}
	}
	if err := m.store.Clear(ctx); err != nil {
		m.log.Error().Err(err).Msg("failed to clear persisted session")
	}
	m.update(func(s *Snapshot) {
		s.State = StateUnauthenticated
		s.Loading = false
		s.LastError = ""
	})
	return ok(struct{}{})
}

// HandleSessionExpired runs after the client gave up on refreshing the access
// token. The store has already been cleared.
func (m *Manager) HandleSessionExpired() {
	m.update(func(s *Snapshot) {
		s.State = StateUnauthenticated
		s.Loading = false
		s.LastError = MsgSessionExpired
	})
	if m.nav != nil {
		m.nav.NavigateToLogin()
	}
}

// Register creates an account. It does not sign the user in.
func (m *Manager) Register(ctx context.Context, in apiclient.RegisterRequest) Result[*apiclient.TokenResponse] {
	m.ClearError()
	if !m.CheckConnection(ctx) {
		m.SetError(MsgNoConnection)
		return fail[*apiclient.TokenResponse](MsgNoConnection)
	}
	tr, err := m.api.Register(ctx, in)
	if err != nil {
		return passThroughFailure[*apiclient.TokenResponse](m, err, MsgRegisterFailed)
	}
	return ok(tr)
}

func (m *Manager) RequestPasswordReset(ctx context.Context, email string) Result[*apiclient.MessageResponse] {
	m.ClearError()
	resp, err := m.api.RequestPasswordReset(ctx, email)
	if err != nil {
		return passThroughFailure[*apiclient.MessageResponse](m, err, MsgResetRequestFailed)
	}
	return ok(resp)
}

func (m *Manager) ConfirmPasswordReset(ctx context.Context, token, newPassword string) Result[*apiclient.MessageResponse] {
	m.ClearError()
	resp, err := m.api.ConfirmPasswordReset(ctx, apiclient.ResetPasswordConfirm{Token: token, NewPassword: newPassword})
	if err != nil {
		return passThroughFailure[*apiclient.MessageResponse](m, err, MsgResetConfirmFailed)
	}
	return ok(resp)
}

// ChangePassword keeps the current tokens on success.
func (m *Manager) ChangePassword(ctx context.Context, current, next string) Result[*apiclient.MessageResponse] {
	m.ClearError()
	resp, err := m.api.ChangePassword(ctx, apiclient.ChangePasswordRequest{CurrentPassword: current, NewPassword: next})
	if err != nil {
		return passThroughFailure[*apiclient.MessageResponse](m, err, MsgChangePasswordFailed)
	}
	return ok(resp)
}

func passThroughFailure[T any](m *Manager, err error, fallback string) Result[T] {
	msg := failureMessage(err, fallback)
	m.log.Info().Err(err).Msg(fallback)
	m.update(func(s *Snapshot) {
		s.LastError = msg
		if apiclient.IsConnectionError(err) {
			s.ConnectionHealthy = false
		}
	})
	return fail[T](msg)
}

func (m *Manager) SetError(msg string) {
	m.update(func(s *Snapshot) { s.LastError = msg })
}

func (m *Manager) ClearError() {
	m.update(func(s *Snapshot) { s.LastError = "" })
}
