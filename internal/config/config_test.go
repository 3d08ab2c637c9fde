package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.Port != "8080" {
		t.Errorf("Port default = %q, want 8080", cfg.Port)
	}
	if cfg.WorkerCount != 2 {
		t.Errorf("WorkerCount default = %d, want 2", cfg.WorkerCount)
	}
	if cfg.BusinessTimezone != "America/Mexico_City" {
		t.Errorf("BusinessTimezone default = %q", cfg.BusinessTimezone)
	}
	if cfg.MediaSendDelay != 800*time.Millisecond {
		t.Errorf("MediaSendDelay default = %v", cfg.MediaSendDelay)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("WORKER_COUNT", "5")
	t.Setenv("USE_MEMORY_QUEUE", "true")
	t.Setenv("TURN_LOCK_TTL", "10s")

	cfg := Load()

	if cfg.Port != "9090" {
		t.Errorf("Port = %q, want 9090", cfg.Port)
	}
	if cfg.WorkerCount != 5 {
		t.Errorf("WorkerCount = %d, want 5", cfg.WorkerCount)
	}
	if !cfg.UseMemoryQueue {
		t.Error("UseMemoryQueue should be true")
	}
	if cfg.TurnLockTTL != 10*time.Second {
		t.Errorf("TurnLockTTL = %v, want 10s", cfg.TurnLockTTL)
	}
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	t.Setenv("WORKER_COUNT", "lots")
	t.Setenv("REDIS_TLS", "si")
	t.Setenv("MEDIA_SEND_DELAY", "soon")

	cfg := Load()

	if cfg.WorkerCount != 2 {
		t.Errorf("WorkerCount = %d, want default 2", cfg.WorkerCount)
	}
	if cfg.RedisTLS {
		t.Error("RedisTLS should fall back to false")
	}
	if cfg.MediaSendDelay != 800*time.Millisecond {
		t.Errorf("MediaSendDelay = %v, want default", cfg.MediaSendDelay)
	}
}
