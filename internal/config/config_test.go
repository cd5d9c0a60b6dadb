package config

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Intake.MaxTurns != 10 {
		t.Errorf("Intake.MaxTurns = %d, want 10", cfg.Intake.MaxTurns)
	}
	if cfg.Intake.Oracle != OracleRules {
		t.Errorf("Intake.Oracle = %q, want %q", cfg.Intake.Oracle, OracleRules)
	}
	if cfg.History.Lookback != 365*24*time.Hour || cfg.History.Threshold != 3 {
		t.Errorf("History = %+v, want 8760h / 3", cfg.History)
	}
	if cfg.Session.TTL != time.Hour || cfg.Session.CleanupInterval != 10*time.Minute {
		t.Errorf("Session = %+v, want 1h / 10m", cfg.Session)
	}
	if filepath.Base(cfg.Store.Path) != "claims.db" {
		t.Errorf("Store.Path = %q, want .../claims.db", cfg.Store.Path)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default().Validate() error = %v", err)
	}
}

func TestLoadFromPath(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	content := `
anthropic:
  api_key: test-key
  use_bedrock: true
  aws_region: us-west-2
intake:
  max_turns: 6
  oracle: anthropic
history:
  lookback: 720h
store:
  path: /tmp/claims-test.db
session:
  ttl: 30m
log:
  level: debug
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := LoadFromPath(configPath)
	if err != nil {
		t.Fatalf("LoadFromPath() error = %v", err)
	}
	if cfg.Anthropic.APIKey != "test-key" || !cfg.Anthropic.UseBedrock || cfg.Anthropic.AWSRegion != "us-west-2" {
		t.Errorf("Anthropic = %+v", cfg.Anthropic)
	}
	if cfg.Intake.MaxTurns != 6 || cfg.Intake.Oracle != OracleAnthropic {
		t.Errorf("Intake = %+v", cfg.Intake)
	}
	if cfg.History.Lookback != 720*time.Hour {
		t.Errorf("History.Lookback = %v, want 720h", cfg.History.Lookback)
	}
	if cfg.History.Threshold != 3 {
		t.Errorf("History.Threshold = %d, want default 3", cfg.History.Threshold)
	}
	if cfg.Store.Path != "/tmp/claims-test.db" {
		t.Errorf("Store.Path = %q", cfg.Store.Path)
	}
	if cfg.Session.TTL != 30*time.Minute || cfg.Session.CleanupInterval != 10*time.Minute {
		t.Errorf("Session = %+v", cfg.Session)
	}
	if cfg.Log.SlogLevel() != slog.LevelDebug {
		t.Errorf("Log.SlogLevel() = %v, want debug", cfg.Log.SlogLevel())
	}
}

func TestLoadFromPath_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unknown oracle", "intake:\n  oracle: crystal-ball\n"},
		{"bad embedder", "retrieval:\n  embed_provider: cohere\n"},
		{"zero turns", "intake:\n  max_turns: 0\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0644); err != nil {
				t.Fatalf("failed to write config file: %v", err)
			}
			if _, err := LoadFromPath(path); err == nil {
				t.Error("LoadFromPath() error = nil, want validation error")
			}
		})
	}
}

func TestLoadFromPath_Missing(t *testing.T) {
	if _, err := LoadFromPath(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("LoadFromPath() error = nil for missing file")
	}
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	if got := expandHome("~/x/claims.db"); got != filepath.Join(home, "x", "claims.db") {
		t.Errorf("expandHome() = %q", got)
	}
	if got := expandHome("/abs/claims.db"); got != "/abs/claims.db" {
		t.Errorf("expandHome() = %q, want unchanged", got)
	}
}

func TestSetupLoggerWithWriters(t *testing.T) {
	var stderr, file bytes.Buffer
	logger := SetupLoggerWithWriters(&stderr, &file, slog.LevelInfo)

	logger.Debug("hidden")
	logger.Info("claim processed", "claim", "CLM-1")

	if strings.Contains(stderr.String(), "hidden") {
		t.Error("debug line written at info level")
	}
	if !strings.Contains(stderr.String(), "claim=CLM-1") {
		t.Errorf("stderr = %q, want text record", stderr.String())
	}
	var rec map[string]any
	if err := json.Unmarshal(file.Bytes(), &rec); err != nil {
		t.Fatalf("file output is not JSON: %v (%q)", err, file.String())
	}
	if rec["claim"] != "CLM-1" {
		t.Errorf("file record = %v", rec)
	}
}

func TestSetupLogger_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "claimflow.log")
	logger, cleanup := SetupLogger(path, slog.LevelInfo)
	logger.Info("hello")
	if err := cleanup(); err != nil {
		t.Fatalf("cleanup() error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.Contains(string(data), `"msg":"hello"`) {
		t.Errorf("log file = %q", data)
	}
}

func TestWith(t *testing.T) {
	base := Default()

	tests := []struct {
		key, value string
		check      func(*Config) bool
	}{
		{"intake.max_turns", "4", func(c *Config) bool { return c.Intake.MaxTurns == 4 }},
		{"session.ttl", "15m", func(c *Config) bool { return c.Session.TTL == 15*time.Minute }},
		{"rules.watch", "true", func(c *Config) bool { return c.Rules.Watch }},
		{"Intake.Oracle", "anthropic", func(c *Config) bool { return c.Intake.Oracle == OracleAnthropic }},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got, err := With(base, tt.key, tt.value)
			if err != nil {
				t.Fatalf("With() error = %v", err)
			}
			if !tt.check(got) {
				t.Errorf("With(%q, %q) did not apply: %+v", tt.key, tt.value, got)
			}
		})
	}

	if base.Intake.MaxTurns != 10 {
		t.Errorf("With() modified its input: max_turns = %d", base.Intake.MaxTurns)
	}
	if _, err := With(base, "nope.key", "1"); err == nil {
		t.Error("With() unknown key error = nil")
	}
	if _, err := With(base, "intake.max_turns", "0"); err == nil {
		t.Error("With() invalid value error = nil")
	}
}
