// verdict/pkg/store/redis_store_test.go

package store

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMiniredis(t *testing.T) (*RedisBackend, *miniredis.Miniredis) {
	t.Helper()
	s, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(s.Close)

	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	return &RedisBackend{client: client}, s
}

func TestRedisBackendContains(t *testing.T) {
	ctx := context.Background()
	b, _ := setupMiniredis(t)

	require.NoError(t, b.Add(ctx, "blocked", "KP", "IR"))

	found, err := b.Contains(ctx, "blocked", "KP")
	require.NoError(t, err)
	assert.True(t, found)

	found, err = b.Contains(ctx, "blocked", "NO")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRedisBackendAddRemove(t *testing.T) {
	ctx := context.Background()
	b, _ := setupMiniredis(t)

	require.NoError(t, b.Add(ctx, "trusted", "dev-1", "dev-2"))
	require.NoError(t, b.Remove(ctx, "trusted", "dev-1"))

	members, err := b.Members(ctx, "trusted")
	require.NoError(t, err)
	assert.Equal(t, []string{"dev-2"}, members)
}

// Lists live under a shared key prefix so other users of the same Redis
// database never collide with them.
func TestRedisBackendKeyPrefix(t *testing.T) {
	ctx := context.Background()
	b, s := setupMiniredis(t)

	require.NoError(t, b.Add(ctx, "blocked", "KP"))
	assert.True(t, s.Exists("verdict:list:blocked"))
}

// A lost backend must surface as an error, not a silent miss.
func TestRedisBackendDownstreamError(t *testing.T) {
	ctx := context.Background()
	b, s := setupMiniredis(t)
	s.Close()

	_, err := b.Contains(ctx, "blocked", "KP")
	assert.Error(t, err)
}
