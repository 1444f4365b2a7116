package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tutorlab/session-guard/internal/core/domain"
)

const defaultRoleTTL = 24 * time.Hour

// RoleCache remembers the last verified role per user, backed by Redis.
// Key format: guard:role:<user_id>
type RoleCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRoleCache creates a RoleCache wrapping the given Redis client.
func NewRoleCache(client *redis.Client, ttl time.Duration) *RoleCache {
	if ttl <= 0 {
		ttl = defaultRoleTTL
	}
	return &RoleCache{client: client, ttl: ttl}
}

// LastRole returns the remembered role, or domain.RoleNone on a miss.
func (c *RoleCache) LastRole(ctx context.Context, userID string) (domain.Role, error) {
	v, err := c.client.Get(ctx, c.key(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.RoleNone, nil
		}
		return domain.RoleNone, fmt.Errorf("role cache get: %w", err)
	}
	role := domain.Role(v)
	if !role.Valid() {
		return domain.RoleNone, nil
	}
	return role, nil
}

// Remember stores role for userID (expires after the configured TTL).
func (c *RoleCache) Remember(ctx context.Context, userID string, role domain.Role) error {
	if err := c.client.Set(ctx, c.key(userID), string(role), c.ttl).Err(); err != nil {
		return fmt.Errorf("role cache set: %w", err)
	}
	return nil
}

func (c *RoleCache) Forget(ctx context.Context, userID string) error {
	if err := c.client.Del(ctx, c.key(userID)).Err(); err != nil {
		return fmt.Errorf("role cache del: %w", err)
	}
	return nil
}

func (c *RoleCache) key(userID string) string {
	return fmt.Sprintf("guard:role:%s", userID)
}
