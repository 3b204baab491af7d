package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.TTS.PollInterval != 3*time.Second {
		t.Errorf("poll interval = %v, want 3s", cfg.TTS.PollInterval)
	}
	if cfg.TTS.MaxPollAttempts != 60 {
		t.Errorf("max poll attempts = %d, want 60", cfg.TTS.MaxPollAttempts)
	}
	if cfg.Dedup.ThresholdDuplicate != 0.92 || cfg.Dedup.ThresholdNearDuplicate != 0.82 {
		t.Errorf("dedup thresholds = %v/%v", cfg.Dedup.ThresholdDuplicate, cfg.Dedup.ThresholdNearDuplicate)
	}
	if cfg.App.Workers != 3 {
		t.Errorf("workers = %d, want 3", cfg.App.Workers)
	}
	if cfg.Site.MaxHomeArticles != 20 {
		t.Errorf("max home articles = %d, want 20", cfg.Site.MaxHomeArticles)
	}
}

func TestPollIntervalSecondsFromEnv(t *testing.T) {
	Reset()
	t.Cleanup(Reset)
	t.Setenv("TTS_POLL_INTERVAL_SEC", "7")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load with bare-seconds poll interval: %v", err)
	}
	if cfg.TTS.PollInterval != 7*time.Second {
		t.Errorf("poll interval = %v, want 7s", cfg.TTS.PollInterval)
	}
}

func TestValidateRejectsUnknownCaptionStyle(t *testing.T) {
	Reset()
	t.Cleanup(Reset)
	t.Setenv("IMAGE_CAPTION_STYLE", "fancy")

	if _, err := Load(""); err == nil {
		t.Fatal("expected error for unknown caption style")
	}
}
