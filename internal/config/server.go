package config

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/oklog/ulid/v2"
)

type ServerConfig struct {
	HTTPAddr   string `env:"HTTP_ADDR" envDefault:":8080"`
	InstanceID string `env:"INSTANCE_ID"`

	RedisAddr     string `env:"REDIS_ADDR,required,notEmpty"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	KafkaBrokers []string `env:"KAFKA_BROKERS,required,notEmpty" envSeparator:","`
	KafkaGroupID string   `env:"KAFKA_GROUP_ID" envDefault:"game-server"`

	SessionTTL     time.Duration `env:"SESSION_TTL" envDefault:"1h"`
	SweepInterval  time.Duration `env:"SWEEP_INTERVAL" envDefault:"10s"`
	ReconnectGrace time.Duration `env:"RECONNECT_GRACE" envDefault:"30s"`
}

func LoadServer() (ServerConfig, error) {
	var cfg ServerConfig
	if err := env.Parse(&cfg); err != nil {
		return cfg, err
	}
	if cfg.InstanceID == "" {
		cfg.InstanceID = ulid.Make().String()
	}
	return cfg, nil
}
