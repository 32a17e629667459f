package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/jrsteele09/go-rag-client/authsession"
	"github.com/jrsteele09/go-rag-client/internal/config"
	"github.com/jrsteele09/go-rag-client/mockapi"
	fakeuserrepo "github.com/jrsteele09/go-rag-client/users/repofake"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type cli struct {
	t           *testing.T
	sessionFile string
}

func newCLI(t *testing.T) *cli {
	t.Helper()
	t.Setenv("ENV", "TEST")
	t.Setenv("LOG_LEVEL", "disabled")
	t.Setenv("SESSION_BACKEND", "file")
	t.Setenv("SESSION_SECRET", "correct horse battery staple")
	sessionFile := filepath.Join(t.TempDir(), "session.json")
	t.Setenv("SESSION_FILE", sessionFile)

	cfg, err := config.Parse()
	require.NoError(t, err)
	srv, err := mockapi.New(cfg, fakeuserrepo.NewFakeUserRepo(), mockapi.WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	t.Setenv("RAG_API_URL", ts.URL)

	return &cli{t: t, sessionFile: sessionFile}
}

func (c *cli) run(args ...string) (code int, stdout, stderr string) {
	c.t.Helper()
	var out, errOut bytes.Buffer
	code = run(context.Background(), args, &out, &errOut)
	return code, out.String(), errOut.String()
}

func TestRun_Version(t *testing.T) {
	var out bytes.Buffer
	code := run(context.Background(), []string{"version"}, &out, &bytes.Buffer{})
	require.Zero(t, code)
	require.Contains(t, out.String(), "ragcli "+version)
}

func TestRun_Usage(t *testing.T) {
	var errOut bytes.Buffer
	require.Equal(t, 2, run(context.Background(), nil, &bytes.Buffer{}, &errOut))
	require.Contains(t, errOut.String(), "conversations")

	errOut.Reset()
	require.Equal(t, 2, run(context.Background(), []string{"frobnicate"}, &bytes.Buffer{}, &errOut))
	require.Contains(t, errOut.String(), `unknown command "frobnicate"`)
}

func TestRun_SessionLifecycle(t *testing.T) {
	c := newCLI(t)

	code, out, errOut := c.run("login", "-email", mockapi.DemoEmail, "-password", mockapi.DemoPassword)
	require.Zero(t, code, errOut)
	require.Contains(t, out, "Signed in as Test Student")

	raw, err := os.ReadFile(c.sessionFile)
	require.NoError(t, err)
	require.Contains(t, string(raw), "ciphertext")
	require.NotContains(t, string(raw), "refresh_token")

	// A fresh invocation restores the session from disk
	code, out, errOut = c.run("whoami")
	require.Zero(t, code, errOut)
	require.Contains(t, out, mockapi.DemoEmail)

	code, out, errOut = c.run("docs", "list", "-limit", "2")
	require.Zero(t, code, errOut)
	require.Contains(t, out, "doc_001")
	require.Contains(t, out, "doc_002")
	require.NotContains(t, out, "doc_003")

	code, out, errOut = c.run("chat", "what", "is", "a", "vector", "embedding")
	require.Zero(t, code, errOut)
	require.Contains(t, out, "According to")
	require.Contains(t, errOut, "conversation: conv_")

	code, out, errOut = c.run("conversations")
	require.Zero(t, code, errOut)
	require.Contains(t, out, "what is a vector embedding")

	code, out, _ = c.run("logout")
	require.Zero(t, code)
	require.Contains(t, out, "Signed out")

	code, _, errOut = c.run("whoami")
	require.Equal(t, 1, code)
	require.Contains(t, errOut, authsession.MsgNotSignedIn)
}

func TestRun_LoginWithWrongPassword(t *testing.T) {
	c := newCLI(t)

	code, _, errOut := c.run("login", "-email", mockapi.DemoEmail, "-password", "wrong-password1")
	require.Equal(t, 1, code)
	require.Contains(t, errOut, authsession.MsgInvalidCredentials)
}

func TestRun_RequiresSignIn(t *testing.T) {
	c := newCLI(t)

	code, _, errOut := c.run("search", "vectors")
	require.Equal(t, 1, code)
	require.Contains(t, errOut, authsession.MsgNotSignedIn)

	code, out, _ := c.run("health")
	require.Zero(t, code)
	require.Contains(t, out, "healthy")
}

func TestRun_UploadAndSearch(t *testing.T) {
	c := newCLI(t)
	code, _, errOut := c.run("login", "-email", mockapi.DemoEmail, "-password", mockapi.DemoPassword)
	require.Zero(t, code, errOut)

	file := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(file, []byte("Mitochondria are the powerhouse of the cell."), 0o600))

	code, out, errOut := c.run("docs", "upload", file)
	require.Zero(t, code, errOut)
	require.Contains(t, out, `"filename": "notes.txt"`)

	code, out, errOut = c.run("search", "-limit", "1", "mitochondria")
	require.Zero(t, code, errOut)
	require.Contains(t, out, "powerhouse")

	code, _, errOut = c.run("docs", "get")
	require.Equal(t, 2, code)
	require.Contains(t, errOut, "usage: ragcli docs")
}
