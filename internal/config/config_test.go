package config

import (
	"testing"
)

func TestDefaults(t *testing.T) {
	cfg := Load()
	if cfg.Grid.Width != 20 || cfg.Grid.Height != 20 {
		t.Errorf("expected 20x20 default grid, got %dx%d", cfg.Grid.Width, cfg.Grid.Height)
	}
	if cfg.Observability.ListenAddr != "127.0.0.1:6060" {
		t.Errorf("debug server must default to localhost, got %s", cfg.Observability.ListenAddr)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("GRID_WIDTH", "64")
	t.Setenv("GRID_HEIGHT", "-5") // ignored
	t.Setenv("PORT", "8081")
	t.Setenv("RATE_LIMIT_RPS", "2.5")
	t.Setenv("JOURNAL_ENABLED", "false")
	t.Setenv("DISABLE_DEBUG_SERVER", "true")
	t.Setenv("CORS_ORIGINS", "https://a.example, ,https://b.example")

	cfg := Load()
	if cfg.Grid.Width != 64 || cfg.Grid.Height != 20 {
		t.Errorf("expected 64x20, got %dx%d", cfg.Grid.Width, cfg.Grid.Height)
	}
	if cfg.Server.Port != 8081 {
		t.Errorf("expected port 8081, got %d", cfg.Server.Port)
	}
	if cfg.Limits.RequestsPerSecond != 2.5 {
		t.Errorf("expected 2.5 rps, got %v", cfg.Limits.RequestsPerSecond)
	}
	if cfg.Journal.Enabled {
		t.Error("journal should be disabled")
	}
	if cfg.Observability.Enabled {
		t.Error("debug server should be disabled")
	}
	if got := cfg.Server.CORSOrigins; len(got) != 2 || got[0] != "https://a.example" || got[1] != "https://b.example" {
		t.Errorf("unexpected CORS origins %q", got)
	}
}
