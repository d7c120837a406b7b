package infra

import (
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/app")
	t.Setenv("JWT_SECRET", "secret")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Port != "8080" {
		t.Fatalf("port = %q, want 8080", cfg.Port)
	}
	if cfg.VideoPollInterval != 5*time.Second {
		t.Fatalf("poll interval = %s, want 5s", cfg.VideoPollInterval)
	}
	if cfg.VideoPollBudget != 300*time.Second {
		t.Fatalf("poll budget = %s, want 300s", cfg.VideoPollBudget)
	}
	if cfg.FFmpegPath != "ffmpeg" {
		t.Fatalf("ffmpeg path = %q, want ffmpeg", cfg.FFmpegPath)
	}
}

func TestLoadConfigRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("JWT_SECRET", "secret")

	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error for missing DATABASE_URL")
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/app")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("VIDEO_POLL_INTERVAL", "1s")
	t.Setenv("VIDEO_POLL_BUDGET", "30s")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example,https://b.example")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.VideoPollInterval != time.Second {
		t.Fatalf("poll interval = %s, want 1s", cfg.VideoPollInterval)
	}
	if cfg.VideoPollBudget != 30*time.Second {
		t.Fatalf("poll budget = %s, want 30s", cfg.VideoPollBudget)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "https://b.example" {
		t.Fatalf("allowed origins = %v", cfg.AllowedOrigins)
	}
}
