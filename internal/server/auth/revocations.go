package auth

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// revocationSetKey is the Redis set holding revoked token ids. The
// identity provider's backchannel writes to it; the server only reads.
const revocationSetKey = "auth:revoked"

// RedisRevocations checks token ids against a revocation set in Redis.
type RedisRevocations struct {
	client *redis.Client
}

// NewRedisRevocations constructs a revocation list over the given client.
func NewRedisRevocations(client *redis.Client) *RedisRevocations {
	return &RedisRevocations{client: client}
}

// IsRevoked reports whether tokenID is in the revocation set.
func (r *RedisRevocations) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	return r.client.SIsMember(ctx, revocationSetKey, tokenID).Result()
}

// Revoke adds tokenID to the revocation set. Used by operational tooling.
func (r *RedisRevocations) Revoke(ctx context.Context, tokenID string) error {
	return r.client.SAdd(ctx, revocationSetKey, tokenID).Err()
}
