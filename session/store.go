package session

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/jrsteele09/go-rag-client/internal/errors"
	"github.com/jrsteele09/go-rag-client/session/memstore"
	"github.com/jrsteele09/go-rag-client/users"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Store is the single source of truth for the current session.
// Writes go to memory first and then to the backend; a backend failure leaves
// the in-memory copy ahead of the durable one until the next successful write.
type Store struct {
	backend Backend
	log     zerolog.Logger

	writeMu sync.Mutex // serialises Set/Update/Clear
	mu      sync.RWMutex
	current Session
}

type StoreOption func(*Store)

func WithLogger(l zerolog.Logger) StoreOption {
	return func(s *Store) {
		s.log = l
	}
}

// NewStore creates an empty store. A nil backend keeps the session in memory only.
func NewStore(backend Backend, options ...StoreOption) *Store {
	if backend == nil {
		backend = memstore.New()
	}
	s := &Store{
		backend: backend,
		log:     log.Logger,
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// Restore loads the durable record into memory. It is meant to run once at startup.
func (s *Store) Restore(ctx context.Context) (Session, error) {
	values, err := s.backend.Load(ctx)
	if err != nil {
		return Session{}, errors.Wrapf(err, "[Store.Restore] backend.Load")
	}

	restored := Session{
		AccessToken:  values[KeyAccessToken],
		RefreshToken: values[KeyRefreshToken],
	}
	if raw := values[KeyUser]; raw != "" {
		var u users.User
		if err := json.Unmarshal([]byte(raw), &u); err != nil {
			s.log.Warn().Err(err).Msg("discarding unreadable cached user")
		} else {
			restored.User = &u
		}
	}
	restored = restored.normalised()

	s.mu.Lock()
	s.current = restored
	s.mu.Unlock()
	return restored.copy(), nil
}

// Get returns a copy of the in-memory session.
func (s *Store) Get() Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.copy()
}

// Set replaces the session in memory and in the backend.
func (s *Store) Set(ctx context.Context, sess Session) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.set(ctx, sess)
}

// Update applies fn to the current session and stores the result.
func (s *Store) Update(ctx context.Context, fn func(*Session)) error {
	_, err := s.UpdateIf(ctx, func(Session) bool { return true }, fn)
	return err
}

// UpdateIf is Update guarded by cond, which sees the current session under the
// write lock. It reports whether fn was applied.
func (s *Store) UpdateIf(ctx context.Context, cond func(Session) bool, fn func(*Session)) (bool, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	next := s.Get()
	if !cond(next) {
		return false, nil
	}
	fn(&next)
	return true, s.set(ctx, next)
}

// Clear drops access token, refresh token and cached user everywhere.
func (s *Store) Clear(ctx context.Context) error {
	_, err := s.ClearIf(ctx, func(Session) bool { return true })
	return err
}

// ClearIf clears the session only when cond holds for it. It reports whether
// the session was cleared.
func (s *Store) ClearIf(ctx context.Context, cond func(Session) bool) (bool, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if !cond(s.Get()) {
		return false, nil
	}
	s.mu.Lock()
	s.current = Session{}
	s.mu.Unlock()

	if err := s.backend.Clear(ctx); err != nil {
		s.log.Error().Err(err).Msg("failed to clear persisted session")
		return true, errors.Wrapf(err, "[Store.Clear] backend.Clear")
	}
	return true, nil
}

func (s *Store) set(ctx context.Context, sess Session) error {
	sess = sess.normalised()

	values, err := encode(sess)
	if err != nil {
		return errors.Wrapf(err, "[Store.Set] encode")
	}

	s.mu.Lock()
	s.current = sess
	s.mu.Unlock()

	if err := s.backend.Save(ctx, values); err != nil {
		s.log.Error().Err(err).Msg("failed to persist session")
		return errors.Wrapf(err, "[Store.Set] backend.Save")
	}
	return nil
}

func encode(sess Session) (map[string]string, error) {
	values := make(map[string]string, len(Keys))
	if sess.AccessToken != "" {
		values[KeyAccessToken] = sess.AccessToken
	}
	if sess.RefreshToken != "" {
		values[KeyRefreshToken] = sess.RefreshToken
	}
	if sess.User != nil {
		raw, err := json.Marshal(sess.User)
		if err != nil {
			return nil, err
		}
		values[KeyUser] = string(raw)
	}
	return values, nil
}

func (s Session) copy() Session {
	if s.User != nil {
		u := *s.User
		s.User = &u
	}
	return s
}
