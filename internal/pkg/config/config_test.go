package config

import (
	"context"
	"testing"
	"time"

	"github.com/sethvargo/go-envconfig"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := load(context.Background(), envconfig.MapLookuper(map[string]string{}))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("expected port 8080, got %q", cfg.Port)
	}
	if cfg.ProfileStore != StorePostgres {
		t.Errorf("expected postgres store, got %q", cfg.ProfileStore)
	}
	if cfg.Guard.MaxAttempts != 3 {
		t.Errorf("expected 3 attempts, got %d", cfg.Guard.MaxAttempts)
	}
	if cfg.Guard.InitialTimeout != 12*time.Second || cfg.Guard.EstablishedTimeout != 10*time.Second {
		t.Errorf("unexpected timeouts: %v / %v", cfg.Guard.InitialTimeout, cfg.Guard.EstablishedTimeout)
	}
	if cfg.Guard.RetryDelay != 2*time.Second {
		t.Errorf("expected 2s retry delay, got %v", cfg.Guard.RetryDelay)
	}
	if !cfg.IsDevelopment() {
		t.Errorf("expected development env by default")
	}
}

func TestLoad_Overrides(t *testing.T) {
	cfg, err := load(context.Background(), envconfig.MapLookuper(map[string]string{
		"PROFILE_STORE":         "mongo",
		"GUARD_MAX_ATTEMPTS":    "5",
		"GUARD_RETRY_DELAY":     "500ms",
		"GUARD_CLIENT_IDLE_TTL": "1h",
	}))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ProfileStore != StoreMongo {
		t.Errorf("expected mongo store, got %q", cfg.ProfileStore)
	}
	if cfg.Guard.MaxAttempts != 5 || cfg.Guard.RetryDelay != 500*time.Millisecond {
		t.Errorf("overrides not applied: %+v", cfg.Guard)
	}
	if cfg.Guard.ClientIdleTTL != time.Hour {
		t.Errorf("expected 1h idle ttl, got %v", cfg.Guard.ClientIdleTTL)
	}
}

func TestLoad_RejectsUnknownStore(t *testing.T) {
	_, err := load(context.Background(), envconfig.MapLookuper(map[string]string{
		"PROFILE_STORE": "sqlite",
	}))
	if err == nil {
		t.Fatalf("expected error for unknown store")
	}
}
