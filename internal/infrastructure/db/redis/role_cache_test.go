package redis

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestRoleCache_Defaults(t *testing.T) {
	c := NewRoleCache(nil, 0)

	if c.ttl != defaultRoleTTL {
		t.Fatalf("expected default ttl %v, got %v", defaultRoleTTL, c.ttl)
	}
	if got := c.key("u1"); got != "guard:role:u1" {
		t.Fatalf("unexpected key %q", got)
	}
}

func TestRoleCache_UnreachableServerIsAnError(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()
	c := NewRoleCache(client, time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	role, err := c.LastRole(ctx, "u1")
	if err == nil {
		t.Fatalf("expected error from unreachable redis")
	}
	if role != "" {
		t.Fatalf("expected no role on error, got %q", role)
	}
}
