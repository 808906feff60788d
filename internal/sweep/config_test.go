package sweep

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.TickInterval != 20*time.Second {
		t.Fatalf("expected 20s tick, got %s", cfg.TickInterval)
	}
	if cfg.WindowWidth != time.Minute {
		t.Fatalf("expected 1m window, got %s", cfg.WindowWidth)
	}
	if !cfg.Enabled {
		t.Fatal("sweep should default to enabled")
	}
	if len(cfg.ThresholdMinutes) == 0 {
		t.Fatal("expected default thresholds")
	}
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("SWEEP_THRESHOLD_MINUTES", "15, 5, 10, 5")
	t.Setenv("SWEEP_TICK_INTERVAL", "10s")
	t.Setenv("SWEEP_WINDOW_WIDTH", "30s")
	t.Setenv("SWEEP_ENABLED", "false")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	want := []int{5, 10, 15}
	if len(cfg.ThresholdMinutes) != len(want) {
		t.Fatalf("expected %v, got %v", want, cfg.ThresholdMinutes)
	}
	for i := range want {
		if cfg.ThresholdMinutes[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, cfg.ThresholdMinutes)
		}
	}
	if cfg.TickInterval != 10*time.Second {
		t.Fatalf("expected 10s tick, got %s", cfg.TickInterval)
	}
	if cfg.WindowWidth != 30*time.Second {
		t.Fatalf("expected 30s window, got %s", cfg.WindowWidth)
	}
	if cfg.Enabled {
		t.Fatal("expected sweep disabled")
	}
}

func TestLoadConfigFromYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sweep.yaml")
	content := []byte("threshold_minutes: [3, 7]\ntick_interval: 5s\nwindow_width: 20s\nenabled: true\n")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("SWEEP_CONFIG", path)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if len(cfg.ThresholdMinutes) != 2 || cfg.ThresholdMinutes[0] != 3 || cfg.ThresholdMinutes[1] != 7 {
		t.Fatalf("unexpected thresholds %v", cfg.ThresholdMinutes)
	}
	if cfg.TickInterval != 5*time.Second {
		t.Fatalf("expected 5s tick, got %s", cfg.TickInterval)
	}
}

func TestValidateRejectsTickAtOrAboveWindow(t *testing.T) {
	cfg := Config{
		ThresholdMinutes: []int{5},
		TickInterval:     time.Minute,
		WindowWidth:      time.Minute,
		PromoteInterval:  15 * time.Second,
		ArchiveAfter:     time.Hour,
		ArchiveInterval:  time.Hour,
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("tick equal to window must fail validation")
	}
	cfg.TickInterval = 2 * time.Minute
	if err := cfg.Validate(); err == nil {
		t.Fatal("tick above window must fail validation")
	}
	cfg.TickInterval = 20 * time.Second
	if err := cfg.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
}

func TestValidateRejectsBadThresholds(t *testing.T) {
	cfg := Config{
		TickInterval:    20 * time.Second,
		WindowWidth:     time.Minute,
		PromoteInterval: 15 * time.Second,
		ArchiveAfter:    time.Hour,
		ArchiveInterval: time.Hour,
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("empty thresholds must fail validation")
	}
	cfg.ThresholdMinutes = []int{0}
	if err := cfg.Validate(); err == nil {
		t.Fatal("non-positive threshold must fail validation")
	}
}
