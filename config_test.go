package main

import (
	"os"
	"path/filepath"
	"testing"
)

func setRequiredConfigEnv(t *testing.T) {
	t.Helper()
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("SLACK_BOT_TOKEN", "xoxb-test")
	t.Setenv("SLACK_APP_TOKEN", "xapp-test")
	t.Setenv("SELLER_USER_ID", "U000SELLER")
}

func TestLoadConfigDefaults(t *testing.T) {
	setRequiredConfigEnv(t)

	cfg := LoadConfig()
	if cfg.AlertChannelID != placeholderAlertChannel {
		t.Fatalf("expected placeholder alert channel, got %s", cfg.AlertChannelID)
	}
	if cfg.WindowSize != 5 {
		t.Fatalf("expected default window size 5, got %d", cfg.WindowSize)
	}
	if cfg.ScanFetchLimit != 50 {
		t.Fatalf("expected default scan fetch limit 50, got %d", cfg.ScanFetchLimit)
	}
	if cfg.BusinessTimezone != "America/Santiago" {
		t.Fatalf("expected default business timezone, got %s", cfg.BusinessTimezone)
	}
	if cfg.Location == nil || cfg.Location.String() != "America/Santiago" {
		t.Fatalf("expected resolved location, got %v", cfg.Location)
	}
	if cfg.ReportTime != "09:00" {
		t.Fatalf("expected default report time, got %s", cfg.ReportTime)
	}
	if cfg.OpenAIBaseURL != "https://api.openai.com/v1" {
		t.Fatalf("expected default OpenAI base URL, got %s", cfg.OpenAIBaseURL)
	}
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	setRequiredConfigEnv(t)
	t.Setenv("ALERT_CHANNEL_ID", "C999GROUP")
	t.Setenv("WINDOW_SIZE", "8")
	t.Setenv("OPENAI_BASE_URL", "https://api.groq.com/openai/v1")
	t.Setenv("REPORT_TIME", "08:30")

	cfg := LoadConfig()
	if cfg.AlertChannelID != "C999GROUP" {
		t.Fatalf("expected alert channel override, got %s", cfg.AlertChannelID)
	}
	if cfg.WindowSize != 8 {
		t.Fatalf("expected window size override, got %d", cfg.WindowSize)
	}
	if cfg.OpenAIBaseURL != "https://api.groq.com/openai/v1" {
		t.Fatalf("expected base URL override, got %s", cfg.OpenAIBaseURL)
	}
	if cfg.ReportTime != "08:30" {
		t.Fatalf("expected report time override, got %s", cfg.ReportTime)
	}
}

func TestLoadConfigYAML(t *testing.T) {
	setRequiredConfigEnv(t)

	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	yaml := "db_path: /tmp/custom.db\nwindow_size: 7\nalert_channel_id: CFROMYAML\n"
	if err := os.WriteFile(configPath, []byte(yaml), 0644); err != nil {
		t.Fatalf("writing config failed: %v", err)
	}
	t.Setenv("CONFIG_PATH", configPath)

	cfg := LoadConfig()
	if cfg.DBPath != "/tmp/custom.db" {
		t.Fatalf("expected db path from yaml, got %s", cfg.DBPath)
	}
	if cfg.WindowSize != 7 {
		t.Fatalf("expected window size from yaml, got %d", cfg.WindowSize)
	}
	if cfg.AlertChannelID != "CFROMYAML" {
		t.Fatalf("expected alert channel from yaml, got %s", cfg.AlertChannelID)
	}
}

func TestParseClock(t *testing.T) {
	h, m, err := parseClock("09:05")
	if err != nil {
		t.Fatalf("parseClock returned error: %v", err)
	}
	if h != 9 || m != 5 {
		t.Fatalf("unexpected parseClock result: %02d:%02d", h, m)
	}

	if _, _, err := parseClock("24:00"); err == nil {
		t.Fatal("expected parseClock to fail for out-of-range hour")
	}
	if _, _, err := parseClock("foo"); err == nil {
		t.Fatal("expected parseClock to fail for malformed input")
	}
}
