package filestore_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/jrsteele09/go-rag-client/internal/errors"
	"github.com/jrsteele09/go-rag-client/session/filestore"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFile(t *testing.T) {
	s := filestore.New(filepath.Join(t.TempDir(), "nested", "session.json"))
	values, err := s.Load(context.Background())
	require.NoError(t, err)
	require.Empty(t, values)
}

func TestPlainRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "session.json")
	s := filestore.New(path)

	require.NoError(t, s.Save(ctx, map[string]string{"access_token": "T1", "refresh_token": "R1"}))

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(raw), "T1")

	values, err := filestore.New(path).Load(ctx)
	require.NoError(t, err)
	require.Equal(t, map[string]string{"access_token": "T1", "refresh_token": "R1"}, values)

	require.NoError(t, s.Clear(ctx))
	_, err = os.Stat(path)
	require.True(t, os.IsNotExist(err))
	require.NoError(t, s.Clear(ctx))
}

func TestEncryptedRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "session.json")
	s := filestore.New(path, filestore.WithSecret("passphrase"))

	require.NoError(t, s.Save(ctx, map[string]string{"access_token": "T1"}))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NotContains(t, string(raw), "T1")

	values, err := filestore.New(path, filestore.WithSecret("passphrase")).Load(ctx)
	require.NoError(t, err)
	require.Equal(t, "T1", values["access_token"])
}

func TestEncryptedFileWithWrongSecret(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, filestore.New(path, filestore.WithSecret("right")).Save(ctx, map[string]string{"access_token": "T1"}))

	_, err := filestore.New(path, filestore.WithSecret("wrong")).Load(ctx)
	require.ErrorIs(t, err, errors.ErrSessionCorrupt)

	_, err = filestore.New(path).Load(ctx)
	require.ErrorIs(t, err, errors.ErrSessionCorrupt)
}

func TestCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o600))

	_, err := filestore.New(path).Load(context.Background())
	require.ErrorIs(t, err, errors.ErrSessionCorrupt)
}
