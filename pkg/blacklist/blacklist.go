package blacklist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	tokenPrefix = "crm:blacklist:token:"
	userPrefix  = "crm:blacklist:user:"
)

// TokenBlacklist keeps revoked token IDs and per-user invalidation marks in Redis
type TokenBlacklist struct {
	redis redis.Cmdable
}

func NewTokenBlacklist(redisClient redis.Cmdable) *TokenBlacklist {
	return &TokenBlacklist{
		redis: redisClient,
	}
}

// Add revokes a token ID for ttl. Redis drops the key once the token could no longer verify anyway.
func (b *TokenBlacklist) Add(ctx context.Context, tokenID string, ttl time.Duration) error {
	if err := b.redis.Set(ctx, tokenPrefix+tokenID, "1", ttl).Err(); err != nil {
		return fmt.Errorf("failed to add token to blacklist: %w", err)
	}
	return nil
}

// AddAccessToken uses the token's remaining lifetime as TTL
func (b *TokenBlacklist) AddAccessToken(ctx context.Context, tokenID string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)

	// If already expired, no need to blacklist
	if ttl <= 0 {
		return nil
	}

	return b.Add(ctx, tokenID, ttl)
}

func (b *TokenBlacklist) IsBlacklisted(ctx context.Context, tokenID string) (bool, error) {
	exists, err := b.redis.Exists(ctx, tokenPrefix+tokenID).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check blacklist: %w", err)
	}
	return exists > 0, nil
}

func (b *TokenBlacklist) Remove(ctx context.Context, tokenID string) error {
	if err := b.redis.Del(ctx, tokenPrefix+tokenID).Err(); err != nil {
		return fmt.Errorf("failed to remove token from blacklist: %w", err)
	}
	return nil
}

// BlacklistUser invalidates every token issued to the user up to now.
// The mark expires after ttl, which should outlive the longest token.
func (b *TokenBlacklist) BlacklistUser(ctx context.Context, userID string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	if err := b.redis.Set(ctx, userPrefix+userID, time.Now().UnixNano(), ttl).Err(); err != nil {
		return fmt.Errorf("failed to blacklist user: %w", err)
	}
	return nil
}

// IsUserBlacklisted reports whether a token issued at issuedAt predates the
// user's mark. Token iat claims only carry whole seconds, so a token issued
// in the same second as the mark counts as revoked.
func (b *TokenBlacklist) IsUserBlacklisted(ctx context.Context, userID string, issuedAt time.Time) (bool, error) {
	nanos, err := b.redis.Get(ctx, userPrefix+userID).Int64()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check user blacklist: %w", err)
	}

	mark := time.Unix(0, nanos).Truncate(time.Second)
	return !issuedAt.Truncate(time.Second).After(mark), nil
}
