package config

import (
	"testing"
	"time"
)

func TestLoadServerDefaults(t *testing.T) {
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("KAFKA_BROKERS", "localhost:9092")

	cfg, err := LoadServer()
	if err != nil {
		t.Fatalf("LoadServer() error = %v", err)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Fatalf("HTTPAddr = %q, want :8080", cfg.HTTPAddr)
	}
	if cfg.SessionTTL != time.Hour {
		t.Fatalf("SessionTTL = %v, want 1h", cfg.SessionTTL)
	}
	if cfg.SweepInterval != 10*time.Second {
		t.Fatalf("SweepInterval = %v, want 10s", cfg.SweepInterval)
	}
	if cfg.ReconnectGrace != 30*time.Second {
		t.Fatalf("ReconnectGrace = %v, want 30s", cfg.ReconnectGrace)
	}
	if cfg.InstanceID == "" {
		t.Fatal("InstanceID not generated")
	}
}

func TestLoadServerRequiresRedisAddr(t *testing.T) {
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("KAFKA_BROKERS", "localhost:9092")

	_, err := LoadServer()
	if err == nil {
		t.Fatal("LoadServer() expected error, got nil")
	}
}

func TestLoadServerParseTypes(t *testing.T) {
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092,kafka-2:9092")
	t.Setenv("INSTANCE_ID", "instance-a")
	t.Setenv("RECONNECT_GRACE", "45s")
	t.Setenv("REDIS_DB", "3")

	cfg, err := LoadServer()
	if err != nil {
		t.Fatalf("LoadServer() error = %v", err)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "kafka-2:9092" {
		t.Fatalf("KafkaBrokers = %v", cfg.KafkaBrokers)
	}
	if cfg.InstanceID != "instance-a" {
		t.Fatalf("InstanceID = %q, want instance-a", cfg.InstanceID)
	}
	if cfg.ReconnectGrace != 45*time.Second {
		t.Fatalf("ReconnectGrace = %v, want 45s", cfg.ReconnectGrace)
	}
	if cfg.RedisDB != 3 {
		t.Fatalf("RedisDB = %d, want 3", cfg.RedisDB)
	}
}
