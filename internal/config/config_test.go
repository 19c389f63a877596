package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CAMERA_COUNT", "")
	t.Setenv("CAMERA_IDS", "")
	t.Setenv("FRAME_SKIP", "")

	cfg := Load()

	if cfg.CameraCount != 3 {
		t.Errorf("CameraCount = %d, want 3", cfg.CameraCount)
	}
	if len(cfg.CameraIDs) != 3 || cfg.CameraIDs[2] != 2 {
		t.Errorf("CameraIDs = %v, want [0 1 2]", cfg.CameraIDs)
	}
	if cfg.FrameSkip != 2 {
		t.Errorf("FrameSkip = %d, want 2", cfg.FrameSkip)
	}
	if cfg.AlertDecay != 5*time.Second {
		t.Errorf("AlertDecay = %v, want 5s", cfg.AlertDecay)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("CAMERA_COUNT", "2")
	t.Setenv("CAMERA_IDS", "4, 7")
	t.Setenv("FRAME_SKIP", "3")
	t.Setenv("PERSON_MIN_CONFIDENCE", "0.6")
	t.Setenv("TICK_INTERVAL", "40ms")

	cfg := Load()

	if len(cfg.CameraIDs) != 2 || cfg.CameraIDs[0] != 4 || cfg.CameraIDs[1] != 7 {
		t.Errorf("CameraIDs = %v, want [4 7]", cfg.CameraIDs)
	}
	if cfg.FrameSkip != 3 {
		t.Errorf("FrameSkip = %d, want 3", cfg.FrameSkip)
	}
	if cfg.PersonMinConfidence != 0.6 {
		t.Errorf("PersonMinConfidence = %v, want 0.6", cfg.PersonMinConfidence)
	}
	if cfg.TickInterval != 40*time.Millisecond {
		t.Errorf("TickInterval = %v, want 40ms", cfg.TickInterval)
	}
}

func TestMalformedIntListFallsBack(t *testing.T) {
	t.Setenv("CAMERA_COUNT", "2")
	t.Setenv("CAMERA_IDS", "1,x")

	cfg := Load()
	if len(cfg.CameraIDs) != 2 || cfg.CameraIDs[0] != 0 || cfg.CameraIDs[1] != 1 {
		t.Errorf("CameraIDs = %v, want default [0 1]", cfg.CameraIDs)
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			CameraIDs:          []int{0, 1},
			FrameSkip:          2,
			ConfirmWindowTicks: 3,
			JPEGQuality:        85,
			Port:               8765,
			AlertDecay:         5 * time.Second,
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"no cameras", func(c *Config) { c.CameraIDs = nil }, true},
		{"duplicate camera", func(c *Config) { c.CameraIDs = []int{1, 1} }, true},
		{"negative camera", func(c *Config) { c.CameraIDs = []int{-1} }, true},
		{"zero frame skip", func(c *Config) { c.FrameSkip = 0 }, true},
		{"zero window", func(c *Config) { c.ConfirmWindowTicks = 0 }, true},
		{"bad quality", func(c *Config) { c.JPEGQuality = 101 }, true},
		{"bad port", func(c *Config) { c.Port = 0 }, true},
		{"no decay", func(c *Config) { c.AlertDecay = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base()
			tt.mutate(c)
			err := c.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadTuning(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "threat.yaml")
	content := `
scoring:
  near_multiplier: 1.8
  interaction_multiplier: 1.25
weapons:
  43:
    name: Knife
    severity: 9
    min_confidence: 0.25
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	tuning, err := LoadTuning(path)
	if err != nil {
		t.Fatalf("LoadTuning: %v", err)
	}
	if tuning.Scoring.NearMultiplier != 1.8 {
		t.Errorf("NearMultiplier = %v, want 1.8", tuning.Scoring.NearMultiplier)
	}
	if tuning.Scoring.MidMultiplier != 0 {
		t.Errorf("MidMultiplier = %v, want unset", tuning.Scoring.MidMultiplier)
	}
	if w := tuning.Weapons[43]; w.Name != "Knife" || w.Severity != 9 || w.MinConfidence != 0.25 {
		t.Errorf("weapon 43 = %+v", w)
	}
}

func TestLoadTuningErrors(t *testing.T) {
	if _, err := LoadTuning(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("weapons:\n  1:\n    severity: 3\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadTuning(path); err == nil {
		t.Error("expected error for unnamed weapon class")
	}

	empty, err := LoadTuning("")
	if err != nil || empty == nil {
		t.Errorf("empty path should yield empty tuning, got %v, %v", empty, err)
	}
}
