package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	if cfg.Port == "" {
		t.Fatalf("expected default port to be set")
	}
	if cfg.MovementTTLSeconds < 1 {
		t.Fatalf("expected movement ttl >= 1, got %d", cfg.MovementTTLSeconds)
	}
	if cfg.Address() != ":"+cfg.Port {
		t.Fatalf("unexpected address: %s", cfg.Address())
	}
}

func TestMovementTTLFallsBackOnGarbage(t *testing.T) {
	t.Setenv("MOVEMENT_TTL_SECONDS", "not-a-number")
	cfg := Load()
	if cfg.MovementTTLSeconds != 20 {
		t.Fatalf("expected fallback ttl 20, got %d", cfg.MovementTTLSeconds)
	}
}
