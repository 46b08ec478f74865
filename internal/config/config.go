// Package config provides centralized configuration management.
// Every tunable of the service lives here; other packages receive the
// values through their constructors.
//
// Values come from the Default* builders and may be overridden by
// environment variables through the *FromEnv builders.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// =============================================================================
// GRID CONFIGURATION
// =============================================================================

// GridConfig describes the grid the service starts with.
type GridConfig struct {
	Width      int    // Columns when no layout file is given
	Height     int    // Rows when no layout file is given
	LayoutPath string // Optional text layout to seed the grid from
}

// DefaultGrid returns the 20x20 demo grid.
func DefaultGrid() GridConfig {
	return GridConfig{
		Width:  20,
		Height: 20,
	}
}

// GridFromEnv returns grid configuration with environment variable overrides.
func GridFromEnv() GridConfig {
	cfg := DefaultGrid()

	if w := getEnvInt("GRID_WIDTH", 0); w > 0 {
		cfg.Width = w
	}
	if h := getEnvInt("GRID_HEIGHT", 0); h > 0 {
		cfg.Height = h
	}
	if p := os.Getenv("GRID_LAYOUT"); p != "" {
		cfg.LayoutPath = p
	}

	return cfg
}

// =============================================================================
// SERVER CONFIGURATION
// =============================================================================

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int
	CORSOrigins     []string // nil means localhost only
	ShutdownTimeout time.Duration
}

// DefaultServer returns the default server configuration.
func DefaultServer() ServerConfig {
	return ServerConfig{
		Port:            3000,
		ShutdownTimeout: 5 * time.Second,
	}
}

// ServerFromEnv returns server configuration with environment variable overrides.
func ServerFromEnv() ServerConfig {
	cfg := DefaultServer()

	if p := getEnvInt("PORT", 0); p > 0 {
		cfg.Port = p
	}
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.CORSOrigins = append(cfg.CORSOrigins, o)
			}
		}
	}

	return cfg
}

// =============================================================================
// REQUEST LIMITS
// =============================================================================

// LimitsConfig controls DoS protection.
type LimitsConfig struct {
	RequestsPerSecond float64 // Per-IP HTTP rate
	Burst             int     // Per-IP burst
	MaxWSClients      int     // Total WebSocket clients
	MaxWSPerIP        int     // WebSocket clients per IP
	MaxCoordinate     float64 // Largest accepted |coordinate| in a query
}

// DefaultLimits returns the default request limits.
func DefaultLimits() LimitsConfig {
	return LimitsConfig{
		RequestsPerSecond: 50,
		Burst:             100,
		MaxWSClients:      200,
		MaxWSPerIP:        10,
		MaxCoordinate:     1_000_000,
	}
}

// LimitsFromEnv returns limits with environment variable overrides.
func LimitsFromEnv() LimitsConfig {
	cfg := DefaultLimits()

	if v := getEnvFloat("RATE_LIMIT_RPS", 0); v > 0 {
		cfg.RequestsPerSecond = v
	}
	if v := getEnvInt("RATE_LIMIT_BURST", 0); v > 0 {
		cfg.Burst = v
	}

	return cfg
}

// =============================================================================
// RENDER CONFIGURATION
// =============================================================================

// RenderConfig holds PNG rendering settings.
type RenderConfig struct {
	CellSize  int // Pixels per cell
	MaxPixels int // Cap on the longer image side
}

// DefaultRender returns the default render configuration.
func DefaultRender() RenderConfig {
	return RenderConfig{
		CellSize:  30,
		MaxPixels: 4096,
	}
}

// RenderFromEnv returns render configuration with environment variable overrides.
func RenderFromEnv() RenderConfig {
	cfg := DefaultRender()

	if v := getEnvInt("RENDER_CELL_SIZE", 0); v > 0 {
		cfg.CellSize = v
	}

	return cfg
}

// =============================================================================
// JOURNAL CONFIGURATION
// =============================================================================

// JournalConfig controls the JSONL journal of edits and queries.
type JournalConfig struct {
	Enabled      bool
	Path         string
	MaxPerSecond float64
	Burst        int
}

// DefaultJournal returns the default journal configuration.
func DefaultJournal() JournalConfig {
	return JournalConfig{
		Enabled:      true,
		Path:         "journal.jsonl",
		MaxPerSecond: 1000,
		Burst:        100,
	}
}

// JournalFromEnv returns journal configuration with environment variable overrides.
func JournalFromEnv() JournalConfig {
	cfg := DefaultJournal()

	if p := os.Getenv("JOURNAL_PATH"); p != "" {
		cfg.Path = p
	}
	cfg.Enabled = getEnvBool("JOURNAL_ENABLED", cfg.Enabled)

	return cfg
}

// =============================================================================
// OBSERVABILITY CONFIGURATION
// =============================================================================

// ObservabilityConfig configures the debug server (pprof + metrics).
type ObservabilityConfig struct {
	Enabled       bool
	ListenAddr    string // Localhost only unless ALLOW_DEBUG_EXTERNAL=true
	BasicAuthUser string
	BasicAuthPass string
}

// DefaultObservability returns safe defaults.
func DefaultObservability() ObservabilityConfig {
	return ObservabilityConfig{
		Enabled:    true,
		ListenAddr: "127.0.0.1:6060",
	}
}

// ObservabilityFromEnv returns observability configuration with environment overrides.
func ObservabilityFromEnv() ObservabilityConfig {
	cfg := DefaultObservability()

	if os.Getenv("DISABLE_DEBUG_SERVER") == "true" {
		cfg.Enabled = false
	}
	if addr := os.Getenv("DEBUG_ADDR"); addr != "" {
		cfg.ListenAddr = addr
	}
	cfg.BasicAuthUser = os.Getenv("DEBUG_USER")
	cfg.BasicAuthPass = os.Getenv("DEBUG_PASS")

	return cfg
}

// =============================================================================
// COMPLETE APP CONFIGURATION
// =============================================================================

// AppConfig holds the complete application configuration.
type AppConfig struct {
	Grid          GridConfig
	Server        ServerConfig
	Limits        LimitsConfig
	Render        RenderConfig
	Journal       JournalConfig
	Observability ObservabilityConfig
}

// Load returns the complete configuration with environment overrides.
func Load() AppConfig {
	return AppConfig{
		Grid:          GridFromEnv(),
		Server:        ServerFromEnv(),
		Limits:        LimitsFromEnv(),
		Render:        RenderFromEnv(),
		Journal:       JournalFromEnv(),
		Observability: ObservabilityFromEnv(),
	}
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}
