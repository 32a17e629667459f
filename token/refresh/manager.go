package refresh

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/jrsteele09/go-rag-client/internal/errors"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// Config is the part of the mock API configuration the manager reads.
type Config interface {
	GetRefreshTokenLength() int
	GetRefreshTokenExpiry() time.Duration
}

// Manager handles refresh token creation, validation, and rotation
type Manager struct {
	repo   Repo
	config Config
}

func NewManager(repo Repo, cfg Config) *Manager {
	return &Manager{
		repo:   repo,
		config: cfg,
	}
}

// Create issues a new refresh token for userID, replacing any previous one.
func (m *Manager) Create(userID string) (string, error) {
	if existing, err := m.repo.GetByUserID(userID); err == nil && existing != nil {
		if err := m.repo.Delete(existing.Token); err != nil {
			return "", fmt.Errorf("failed to delete existing refresh token: %w", err)
		}
	}

	tokenBytes := make([]byte, m.config.GetRefreshTokenLength())
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	tokenStr := hex.EncodeToString(tokenBytes)
	if err := m.repo.Upsert(&StoredRefreshToken{
		Token:  tokenStr,
		UserID: userID,
		Iat:    NowTimeFunc(),
	}); err != nil {
		return "", fmt.Errorf("failed to store refresh token: %w", err)
	}
	return tokenStr, nil
}

// Rotate consumes token and issues a replacement for the same user. Unknown
// tokens fail with ErrInvalidRefreshToken, expired ones with
// ErrRefreshTokenExpired and are deleted.
func (m *Manager) Rotate(token string) (userID, next string, err error) {
	rt, err := m.repo.Get(token)
	if err != nil {
		return "", "", errors.ErrInvalidRefreshToken
	}
	if m.IsExpired(rt) {
		_ = m.repo.Delete(token)
		return "", "", errors.ErrRefreshTokenExpired
	}
	next, err = m.Create(rt.UserID)
	if err != nil {
		return "", "", err
	}
	return rt.UserID, next, nil
}

func (m *Manager) Get(token string) (*StoredRefreshToken, error) {
	return m.repo.Get(token)
}

// RevokeUser drops the refresh token held by userID, if any.
func (m *Manager) RevokeUser(userID string) {
	if rt, err := m.repo.GetByUserID(userID); err == nil && rt != nil {
		_ = m.repo.Delete(rt.Token)
	}
}

func (m *Manager) IsExpired(rt *StoredRefreshToken) bool {
	return NowTimeFunc().Sub(rt.Iat) > m.config.GetRefreshTokenExpiry()
}
