package infra

import (
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("API_BASE_URL", "")
	t.Setenv("POLL_INTERVAL", "")
	t.Setenv("NOT_FOUND_THRESHOLD", "")
	t.Setenv("RESOLUTIONS", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.APIBaseURL != "http://localhost:8080" {
		t.Fatalf("APIBaseURL = %q, want default", cfg.APIBaseURL)
	}
	if cfg.PollInterval != 2*time.Second {
		t.Fatalf("PollInterval = %v, want 2s", cfg.PollInterval)
	}
	if cfg.SlowPollInterval != 5*time.Second {
		t.Fatalf("SlowPollInterval = %v, want 5s", cfg.SlowPollInterval)
	}
	if cfg.NotFoundThreshold != 5 {
		t.Fatalf("NotFoundThreshold = %d, want 5", cfg.NotFoundThreshold)
	}
	if cfg.MinDurationSeconds != 1 || cfg.MaxDurationSeconds != 10 {
		t.Fatalf("duration bounds = %d-%d, want 1-10", cfg.MinDurationSeconds, cfg.MaxDurationSeconds)
	}
	if len(cfg.Resolutions) == 0 {
		t.Fatalf("resolution allow-list is empty")
	}
}

func TestLoadConfigHonorsOverrides(t *testing.T) {
	t.Setenv("API_BASE_URL", "https://api.example.com")
	t.Setenv("POLL_INTERVAL", "500ms")
	t.Setenv("RESOLUTIONS", "640x360, 854x480 ")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.APIBaseURL != "https://api.example.com" {
		t.Fatalf("APIBaseURL = %q, want override", cfg.APIBaseURL)
	}
	if cfg.PollInterval != 500*time.Millisecond {
		t.Fatalf("PollInterval = %v, want 500ms", cfg.PollInterval)
	}
	if len(cfg.Resolutions) != 2 || cfg.Resolutions[0] != "640x360" || cfg.Resolutions[1] != "854x480" {
		t.Fatalf("Resolutions = %#v, want trimmed overrides", cfg.Resolutions)
	}
}

func TestLoadConfigRejectsInvertedBounds(t *testing.T) {
	t.Setenv("MIN_DURATION_SECONDS", "10")
	t.Setenv("MAX_DURATION_SECONDS", "5")

	if _, err := LoadConfig(); err == nil {
		t.Fatalf("LoadConfig accepted inverted duration bounds")
	}
}

func TestLoadConfigRejectsZeroThreshold(t *testing.T) {
	t.Setenv("NOT_FOUND_THRESHOLD", "0")

	if _, err := LoadConfig(); err == nil {
		t.Fatalf("LoadConfig accepted a zero not-found threshold")
	}
}
