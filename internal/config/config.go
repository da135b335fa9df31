package config

import (
	"fmt"
	"time"

	"github.com/Netflix/go-env"
)

type Config struct {
	DatabaseDSN     string `env:"DATABASE_DSN,required=true"`
	RedisURL        string `env:"REDIS_URL,required=true"`
	RabbitMQURL     string `env:"RABBITMQ_URL,required=true"`
	EmailWebhookURL string `env:"EMAIL_WEBHOOK_URL,required=true"`
	SMSWebhookURL   string `env:"SMS_WEBHOOK_URL,required=true"`
	APIPort         int    `env:"API_PORT,default=8080"`
	LogLevel        string `env:"LOG_LEVEL,default=info"`
	RateLimitPerSec int    `env:"RATE_LIMIT_PER_SEC,default=20"`
	OutboundWorkers int    `env:"OUTBOUND_WORKERS,default=8"`

	QueueMaxPerUser  int `env:"QUEUE_MAX_PER_USER,default=100"`
	QueueMaxAgeHours int `env:"QUEUE_MAX_AGE_HOURS,default=72"`

	PromotionIntervalSec  int `env:"PROMOTION_INTERVAL_SEC,default=60"`
	DrainIntervalSec      int `env:"DRAIN_INTERVAL_SEC,default=10"`
	EvictionIntervalSec   int `env:"EVICTION_INTERVAL_SEC,default=300"`
	CheckpointIntervalSec int `env:"CHECKPOINT_INTERVAL_SEC,default=30"`
	IdleThresholdSec      int `env:"IDLE_THRESHOLD_SEC,default=300"`
}

func Load() (*Config, error) {
	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) PromotionInterval() time.Duration {
	return time.Duration(c.PromotionIntervalSec) * time.Second
}

func (c *Config) DrainInterval() time.Duration {
	return time.Duration(c.DrainIntervalSec) * time.Second
}

func (c *Config) EvictionInterval() time.Duration {
	return time.Duration(c.EvictionIntervalSec) * time.Second
}

func (c *Config) CheckpointInterval() time.Duration {
	return time.Duration(c.CheckpointIntervalSec) * time.Second
}

func (c *Config) IdleThreshold() time.Duration {
	return time.Duration(c.IdleThresholdSec) * time.Second
}

func (c *Config) QueueMaxAge() time.Duration {
	return time.Duration(c.QueueMaxAgeHours) * time.Hour
}
