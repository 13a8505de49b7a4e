// verdict/pkg/store/redis_store.go

package store

import (
	"context"

	"github.com/redis/go-redis/v9"

	"calder/verdict/pkg/logging"
)

const redisKeyPrefix = "verdict:list:"

// RedisBackend keeps list members in Redis sets, one set per list under
// the verdict:list: prefix. This is the backend for large or shared
// lists that operators mutate at runtime.
type RedisBackend struct {
	client *redis.Client
}

// NewRedisBackend connects to Redis with the given address, password and
// database number and verifies the connection with a ping.
func NewRedisBackend(addr, password string, db int) (*RedisBackend, error) {
	logging.Logger.Info().Str("addr", addr).Int("db", db).Msg("Connecting to Redis")

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if _, err := client.Ping(context.Background()).Result(); err != nil {
		return nil, logging.NewError(logging.ErrorTypeStore, "failed to connect to Redis", err,
			map[string]interface{}{"addr": addr})
	}

	logging.Logger.Info().Msg("Successfully connected to Redis")
	return &RedisBackend{client: client}, nil
}

// NewRedisBackendFromClient wraps an existing client, leaving connection
// management to the caller.
func NewRedisBackendFromClient(client *redis.Client) *RedisBackend {
	return &RedisBackend{client: client}
}

func key(listID string) string {
	return redisKeyPrefix + listID
}

func (b *RedisBackend) Contains(ctx context.Context, listID, value string) (bool, error) {
	found, err := b.client.SIsMember(ctx, key(listID), value).Result()
	if err != nil {
		logging.Logger.Error().Err(err).Str("list", listID).Msg("Failed to check list membership")
		return false, err
	}
	return found, nil
}

func (b *RedisBackend) Add(ctx context.Context, listID string, values ...string) error {
	if len(values) == 0 {
		return nil
	}
	members := make([]interface{}, len(values))
	for i, v := range values {
		members[i] = v
	}
	return b.client.SAdd(ctx, key(listID), members...).Err()
}

func (b *RedisBackend) Remove(ctx context.Context, listID string, values ...string) error {
	if len(values) == 0 {
		return nil
	}
	members := make([]interface{}, len(values))
	for i, v := range values {
		members[i] = v
	}
	return b.client.SRem(ctx, key(listID), members...).Err()
}

func (b *RedisBackend) Members(ctx context.Context, listID string) ([]string, error) {
	return b.client.SMembers(ctx, key(listID)).Result()
}

func (b *RedisBackend) Close() error {
	return b.client.Close()
}
