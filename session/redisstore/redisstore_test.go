package redisstore_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-rag-client/session/redisstore"
	"github.com/stretchr/testify/require"
)

func TestRedisStore(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}
	ctx := context.Background()
	client, err := redisstore.Connect(ctx, url)
	require.NoError(t, err)
	defer client.Close()

	key := "ragclient:test:" + uuid.NewString()
	s := redisstore.New(client, key, time.Minute)
	defer s.Clear(ctx)

	values, err := s.Load(ctx)
	require.NoError(t, err)
	require.Empty(t, values)

	require.NoError(t, s.Save(ctx, map[string]string{"access_token": "T1", "refresh_token": "R1"}))
	ttl, err := client.TTL(ctx, key).Result()
	require.NoError(t, err)
	require.Greater(t, ttl, time.Duration(0))

	require.NoError(t, s.Save(ctx, map[string]string{"access_token": "T2"}))
	values, err = s.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, map[string]string{"access_token": "T2"}, values)

	require.NoError(t, s.Clear(ctx))
	values, err = s.Load(ctx)
	require.NoError(t, err)
	require.Empty(t, values)
}

func TestConnectInvalidURL(t *testing.T) {
	_, err := redisstore.Connect(context.Background(), "://bad")
	require.Error(t, err)
}
