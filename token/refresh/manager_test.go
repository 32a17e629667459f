package refresh_test

import (
	"testing"
	"time"

	"github.com/jrsteele09/go-rag-client/internal/errors"
	"github.com/jrsteele09/go-rag-client/token/refresh"
	refreshrepofake "github.com/jrsteele09/go-rag-client/token/refresh/repofake"
	"github.com/stretchr/testify/require"
)

type testConfig struct {
	expiry time.Duration
}

func (testConfig) GetRefreshTokenLength() int { return 16 }
func (c testConfig) GetRefreshTokenExpiry() time.Duration { return c.expiry }

func TestCreateReplacesPreviousToken(t *testing.T) {
	m := refresh.NewManager(refreshrepofake.NewFakeRefreshTokenRepo(), testConfig{expiry: time.Hour})

	first, err := m.Create("u1")
	require.NoError(t, err)
	require.Len(t, first, 32)

	second, err := m.Create("u1")
	require.NoError(t, err)
	require.NotEqual(t, first, second)

	_, err = m.Get(first)
	require.Error(t, err)
	rt, err := m.Get(second)
	require.NoError(t, err)
	require.Equal(t, "u1", rt.UserID)
}

func TestRotate(t *testing.T) {
	m := refresh.NewManager(refreshrepofake.NewFakeRefreshTokenRepo(), testConfig{expiry: time.Hour})
	first, err := m.Create("u1")
	require.NoError(t, err)

	userID, next, err := m.Rotate(first)
	require.NoError(t, err)
	require.Equal(t, "u1", userID)
	require.NotEqual(t, first, next)

	// A rotated token cannot be replayed.
	_, _, err = m.Rotate(first)
	require.ErrorIs(t, err, errors.ErrInvalidRefreshToken)
}

func TestRotateExpired(t *testing.T) {
	m := refresh.NewManager(refreshrepofake.NewFakeRefreshTokenRepo(), testConfig{expiry: time.Minute})
	refresh.NowTimeFunc = func() time.Time { return time.Now().Add(-time.Hour) }
	tok, err := m.Create("u1")
	refresh.NowTimeFunc = time.Now
	require.NoError(t, err)

	_, _, err = m.Rotate(tok)
	require.ErrorIs(t, err, errors.ErrRefreshTokenExpired)
	_, err = m.Get(tok)
	require.Error(t, err)
}

func TestRevokeUser(t *testing.T) {
	m := refresh.NewManager(refreshrepofake.NewFakeRefreshTokenRepo(), testConfig{expiry: time.Hour})
	tok, err := m.Create("u1")
	require.NoError(t, err)

	m.RevokeUser("u1")
	_, err = m.Get(tok)
	require.Error(t, err)
	m.RevokeUser("nobody")
}
