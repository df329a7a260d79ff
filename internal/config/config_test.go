package config

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestDefaultVision(t *testing.T) {
	cfg := DefaultVision()
	if cfg.MaxMapDimension != 256 || cfg.TileSize != 32 || cfg.SampleInterval != 240 {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.FrameBudget != time.Second/24 {
		t.Errorf("frame budget = %v, want one frame at 24 fps", cfg.FrameBudget)
	}
	if !cfg.Parallel || cfg.Diagnostic {
		t.Errorf("unexpected flags: %+v", cfg)
	}
}

func TestVisionFromEnv(t *testing.T) {
	t.Setenv("VISION_TILE_SIZE", "16")
	t.Setenv("VISION_SAMPLE_INTERVAL", "24")
	t.Setenv("VISION_FRAME_BUDGET_MS", "0")
	t.Setenv("VISION_PARALLEL", "false")
	t.Setenv("VISION_DIAGNOSTIC", "true")

	want := VisionConfig{
		MaxMapDimension: 256,
		TileSize:        16,
		SampleInterval:  24,
		FrameBudget:     0,
		Parallel:        false,
		Diagnostic:      true,
	}
	if diff := cmp.Diff(want, VisionFromEnv()); diff != "" {
		t.Errorf("VisionFromEnv mismatch (-want +got):\n%s", diff)
	}
}

func TestVisionFromEnv_IgnoresInvalid(t *testing.T) {
	t.Setenv("VISION_TILE_SIZE", "-4")
	t.Setenv("VISION_SAMPLE_INTERVAL", "often")
	t.Setenv("VISION_PARALLEL", "maybe")

	if diff := cmp.Diff(DefaultVision(), VisionFromEnv()); diff != "" {
		t.Errorf("invalid values should keep defaults (-want +got):\n%s", diff)
	}
}

func TestServerAndRecordFromEnv(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("RECORD_DIR", "/tmp/out")
	t.Setenv("RECORD_SQLITE_PATH", "/tmp/out/vision.db")
	t.Setenv("RECORD_FLUSH_MS", "250")
	t.Setenv("REPLAY_PATH", "frames.jsonl")

	cfg := Load()
	if cfg.Server.Port != 8080 {
		t.Errorf("port = %d", cfg.Server.Port)
	}
	if diff := cmp.Diff([]string{"https://a.example", "https://b.example"}, cfg.Server.AllowedOrigins); diff != "" {
		t.Errorf("origins mismatch (-want +got):\n%s", diff)
	}
	if cfg.Record.OutputDir != "/tmp/out" || cfg.Record.SQLitePath != "/tmp/out/vision.db" {
		t.Errorf("unexpected record config: %+v", cfg.Record)
	}
	if cfg.Record.FlushInterval != 250*time.Millisecond || cfg.Record.MaxRecordsPerSec != 10000 {
		t.Errorf("unexpected record tuning: %+v", cfg.Record)
	}
	if cfg.Replay.Path != "frames.jsonl" {
		t.Errorf("replay path = %q", cfg.Replay.Path)
	}
	if cfg.Overlay != DefaultOverlay() {
		t.Errorf("overlay = %+v", cfg.Overlay)
	}
}

func TestRecordFromEnv_NegativeRateDisablesPacing(t *testing.T) {
	t.Setenv("RECORD_MAX_PER_SEC", "-1")
	if got := RecordFromEnv().MaxRecordsPerSec; got != -1 {
		t.Errorf("MaxRecordsPerSec = %d, want -1", got)
	}
}
