package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func validConfig(t *testing.T) *Config {
	t.Helper()

	modelPath := filepath.Join(t.TempDir(), "sell_model.json")
	if err := os.WriteFile(modelPath, []byte("{}"), 0o644); err != nil {
		t.Fatalf("write model stub: %v", err)
	}

	return &Config{
		Database: DatabaseConfig{
			DSN:               "postgres://localhost/sellwatcher",
			SnapshotsTable:    "market_snapshots",
			ActiveTradesTable: "active_trades",
			SignalsTable:      "suggested_signals",
		},
		Model:     ModelConfig{Path: modelPath, Threshold: 0.7},
		Scheduler: SchedulerConfig{Interval: 5 * time.Minute},
		Export:    ExportConfig{MaxDataPoints: 1000},
	}
}

func TestValidateAccepts(t *testing.T) {
	cfg := validConfig(t)
	if err := cfg.Validate(); err != nil {
		t.Fatalf("valid config should pass: %v", err)
	}
}

func TestValidateRejects(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing dsn", func(c *Config) { c.Database.DSN = "" }},
		{"missing snapshots table", func(c *Config) { c.Database.SnapshotsTable = "" }},
		{"missing trades table", func(c *Config) { c.Database.ActiveTradesTable = "" }},
		{"missing signals table", func(c *Config) { c.Database.SignalsTable = "" }},
		{"missing model path", func(c *Config) { c.Model.Path = "" }},
		{"absent model file", func(c *Config) { c.Model.Path = c.Model.Path + ".missing" }},
		{"threshold above one", func(c *Config) { c.Model.Threshold = 1.5 }},
		{"negative threshold", func(c *Config) { c.Model.Threshold = -0.1 }},
		{"zero interval", func(c *Config) { c.Scheduler.Interval = 0 }},
		{"zero max points", func(c *Config) { c.Export.MaxDataPoints = 0 }},
		{"telegram without token", func(c *Config) {
			c.Alerting.Telegram.Enabled = true
			c.Alerting.Telegram.ChatID = "chat"
		}},
		{"telegram without chat id", func(c *Config) {
			c.Alerting.Telegram.Enabled = true
			c.Alerting.Telegram.BotToken = "token"
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig(t)
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestResolveMaxPoints(t *testing.T) {
	cfg := validConfig(t)
	if got := cfg.ResolveMaxPoints(0); got != 1000 {
		t.Fatalf("expected config default 1000, got %d", got)
	}
	if got := cfg.ResolveMaxPoints(50); got != 50 {
		t.Fatalf("expected override 50, got %d", got)
	}
}
