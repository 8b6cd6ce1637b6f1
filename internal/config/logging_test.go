package config

import "testing"

func TestLoadLogDefaults(t *testing.T) {
	cfg, err := LoadLog()
	if err != nil {
		t.Fatalf("LoadLog() error = %v", err)
	}
	if cfg.Level != "info" {
		t.Fatalf("Level = %q, want info", cfg.Level)
	}
}

func TestLoadLogParse(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := LoadLog()
	if err != nil {
		t.Fatalf("LoadLog() error = %v", err)
	}
	if cfg.Level != "debug" {
		t.Fatalf("unexpected log config: %+v", cfg)
	}
}

func TestLoadLogFileOutput(t *testing.T) {
	t.Setenv("LOG_FILE", "/var/log/game-server.log")
	t.Setenv("LOG_MAX_MB", "25")

	cfg, err := LoadLog()
	if err != nil {
		t.Fatalf("LoadLog() error = %v", err)
	}
	if cfg.File != "/var/log/game-server.log" {
		t.Fatalf("File = %q", cfg.File)
	}
	if cfg.MaxMB != 25 {
		t.Fatalf("MaxMB = %d, want 25", cfg.MaxMB)
	}
}
