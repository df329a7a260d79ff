// Package config provides centralized configuration management.
// Every tunable of the server and CLI is defined here with its default and
// its environment override.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// =============================================================================
// VISION CONFIGURATION
// =============================================================================

// VisionConfig holds sampling and estimation settings.
type VisionConfig struct {
	MaxMapDimension int           // Largest accepted map edge in tiles
	TileSize        int           // Game pixels per tile
	SampleInterval  int           // Frames between vision samples
	FrameBudget     time.Duration // Per-estimate time budget (0 disables reporting)
	Parallel        bool          // Estimate owners concurrently
	Diagnostic      bool          // Sample vision on every frame
}

// DefaultVision returns the default vision configuration.
func DefaultVision() VisionConfig {
	return VisionConfig{
		MaxMapDimension: 256,
		TileSize:        32,
		SampleInterval:  240,              // 10 seconds of game time at 24 fps
		FrameBudget:     time.Second / 24, // one simulation frame
		Parallel:        true,
		Diagnostic:      false,
	}
}

// VisionFromEnv returns vision configuration with environment variable overrides.
func VisionFromEnv() VisionConfig {
	cfg := DefaultVision()

	if ts := getEnvInt("VISION_TILE_SIZE", 0); ts > 0 {
		cfg.TileSize = ts
	}
	if si := getEnvInt("VISION_SAMPLE_INTERVAL", 0); si > 0 {
		cfg.SampleInterval = si
	}
	if ms := getEnvInt("VISION_FRAME_BUDGET_MS", -1); ms >= 0 {
		cfg.FrameBudget = time.Duration(ms) * time.Millisecond
	}
	cfg.Parallel = getEnvBool("VISION_PARALLEL", cfg.Parallel)
	cfg.Diagnostic = getEnvBool("VISION_DIAGNOSTIC", cfg.Diagnostic)

	return cfg
}

// =============================================================================
// SERVER CONFIGURATION
// =============================================================================

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port           int
	AllowedOrigins []string // CORS and WebSocket origins
	DebugEnabled   bool     // pprof + /metrics on localhost
}

// DefaultServer returns the default server configuration.
func DefaultServer() ServerConfig {
	return ServerConfig{
		Port: 3000,
		AllowedOrigins: []string{
			"http://localhost:3000",
			"http://127.0.0.1:3000",
		},
		DebugEnabled: true,
	}
}

// ServerFromEnv returns server configuration with environment variable overrides.
func ServerFromEnv() ServerConfig {
	cfg := DefaultServer()

	if p := getEnvInt("PORT", 0); p > 0 {
		cfg.Port = p
	}
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		cfg.AllowedOrigins = splitList(origins)
	}
	cfg.DebugEnabled = getEnvBool("DEBUG_SERVER", cfg.DebugEnabled)

	return cfg
}

// =============================================================================
// RECORD CONFIGURATION
// =============================================================================

// RecordConfig holds analysis output settings.
type RecordConfig struct {
	OutputDir        string        // CSV output directory
	SQLitePath       string        // Empty disables the SQLite store
	FlushInterval    time.Duration // Background flush period
	MaxRecordsPerSec int           // Record pacing rate, negative disables
}

// DefaultRecord returns the default record configuration.
func DefaultRecord() RecordConfig {
	return RecordConfig{
		OutputDir:        ".",
		SQLitePath:       "",
		FlushInterval:    100 * time.Millisecond,
		MaxRecordsPerSec: 10000,
	}
}

// RecordFromEnv returns record configuration with environment variable overrides.
func RecordFromEnv() RecordConfig {
	cfg := DefaultRecord()

	if dir := os.Getenv("RECORD_DIR"); dir != "" {
		cfg.OutputDir = dir
	}
	if path := os.Getenv("RECORD_SQLITE_PATH"); path != "" {
		cfg.SQLitePath = path
	}
	if ms := getEnvInt("RECORD_FLUSH_MS", 0); ms > 0 {
		cfg.FlushInterval = time.Duration(ms) * time.Millisecond
	}
	if rps := getEnvInt("RECORD_MAX_PER_SEC", 0); rps != 0 {
		cfg.MaxRecordsPerSec = rps
	}

	return cfg
}

// =============================================================================
// OVERLAY CONFIGURATION
// =============================================================================

// OverlayConfig holds diagnostic rendering settings.
type OverlayConfig struct {
	TilePixels     int // Output pixels per tile
	ViewportWidth  int // Screen width in game pixels
	ViewportHeight int // Screen height in game pixels
}

// DefaultOverlay returns the default overlay configuration.
func DefaultOverlay() OverlayConfig {
	return OverlayConfig{
		TilePixels:     8,
		ViewportWidth:  640,
		ViewportHeight: 480,
	}
}

// =============================================================================
// REPLAY CONFIGURATION
// =============================================================================

// ReplayConfig holds the optional frame dump ingested at startup.
type ReplayConfig struct {
	Path string
}

// ReplayFromEnv returns replay configuration with environment variable overrides.
func ReplayFromEnv() ReplayConfig {
	return ReplayConfig{Path: os.Getenv("REPLAY_PATH")}
}

// =============================================================================
// COMPLETE APP CONFIGURATION
// =============================================================================

// AppConfig holds the complete application configuration.
type AppConfig struct {
	Vision  VisionConfig
	Server  ServerConfig
	Record  RecordConfig
	Overlay OverlayConfig
	Replay  ReplayConfig
}

// Load returns the complete configuration with environment overrides.
func Load() AppConfig {
	return AppConfig{
		Vision:  VisionFromEnv(),
		Server:  ServerFromEnv(),
		Record:  RecordFromEnv(),
		Overlay: DefaultOverlay(),
		Replay:  ReplayFromEnv(),
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

func getEnvBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
