package mockapi

import (
	"testing"
	"time"

	"github.com/jrsteele09/go-rag-client/apiclient"
	"github.com/jrsteele09/go-rag-client/internal/errors"
	"github.com/stretchr/testify/require"
)

func TestLibrary_SearchRanksByTermCoverage(t *testing.T) {
	l := newLibrary()
	l.Add("a", "a.txt", "", []byte("cats and dogs\n\ncats only"))
	l.Add("b", "b.txt", "", []byte("dogs only"))

	results := l.Search("Cats, dogs!", 10, 0)
	require.Len(t, results, 3)
	require.Equal(t, "a_chunk_0", results[0].ID)
	require.InDelta(t, 1.0, results[0].Score, 1e-9)
	require.InDelta(t, 0.5, results[1].Score, 1e-9)

	require.Len(t, l.Search("cats dogs", 10, 0.75), 1)
	require.Len(t, l.Search("cats dogs", 1, 0), 1)
	require.Empty(t, l.Search("?!", 10, 0))
}

func TestLibrary_EmptyUploadFails(t *testing.T) {
	l := newLibrary()
	doc := l.Add("", "empty.txt", "", []byte("  \n\n "))
	require.Equal(t, apiclient.DocumentFailed, doc.Status)
	require.NotEmpty(t, doc.ID)

	require.Len(t, l.List(0, 0, apiclient.DocumentFailed), 1)
	require.Empty(t, l.List(0, 0, apiclient.DocumentProcessed))
}

func TestLibrary_ConversationsAreOwned(t *testing.T) {
	l := newLibrary()
	id, err := l.Converse("alice", "", "hello there", "hi", nil)
	require.NoError(t, err)

	_, err = l.Converse("bob", id, "let me in", "no", nil)
	require.True(t, errors.Is(err, errors.ErrNotFound))
	_, err = l.History("bob", id)
	require.True(t, errors.Is(err, errors.ErrNotFound))
	require.Empty(t, l.Conversations("bob"))

	// A client generated id is adopted as is
	local, err := l.Converse("alice", "chat_1_abc", "second", "ok", nil)
	require.NoError(t, err)
	require.Equal(t, "chat_1_abc", local)
	require.Len(t, l.Conversations("alice"), 2)
}

func TestLibrary_QueriesWindow(t *testing.T) {
	l := newLibrary()
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now.AddDate(0, 0, -10) }
	l.RecordQuery("old", time.Millisecond)
	l.now = func() time.Time { return now }
	l.RecordQuery("new", time.Millisecond)

	queries := l.Queries(7)
	require.Len(t, queries, 1)
	require.Equal(t, "new", queries[0].Query)
	require.Len(t, l.Queries(30), 2)
}

func TestResetTokens_SingleUseAndExpiry(t *testing.T) {
	rt := newResetTokens(time.Minute)
	now := time.Now()
	rt.now = func() time.Time { return now }

	first := rt.Issue("a@example.com")
	second := rt.Issue("a@example.com")
	_, err := rt.Redeem(first)
	require.ErrorIs(t, err, errors.ErrInvalidToken)

	email, err := rt.Redeem(second)
	require.NoError(t, err)
	require.Equal(t, "a@example.com", email)

	expired := rt.Issue("a@example.com")
	rt.now = func() time.Time { return now.Add(2 * time.Minute) }
	_, ok := rt.Pending("a@example.com")
	require.False(t, ok)
	_, err = rt.Redeem(expired)
	require.ErrorIs(t, err, errors.ErrTokenExpired)
}
