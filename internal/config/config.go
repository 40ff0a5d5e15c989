package config

import (
	"fmt"

	"github.com/Netflix/go-env"
)

type Config struct {
	DatabaseDSN          string `env:"DATABASE_DSN,required=true"`
	RedisURL             string `env:"REDIS_URL,required=true"`
	RabbitMQURL          string `env:"RABBITMQ_URL,required=true"`
	EmailGatewayURL      string `env:"EMAIL_GATEWAY_URL,required=true"`
	SMSGatewayURL        string `env:"SMS_GATEWAY_URL,required=true"`
	CredentialKeyHex     string `env:"CREDENTIAL_KEY_HEX,required=true"`
	SendConcurrency      int    `env:"SEND_CONCURRENCY,default=16"`
	SendRatePerSec       int    `env:"SEND_RATE_PER_SEC,default=100"`
	SweepIntervalMinutes int    `env:"SWEEP_INTERVAL_MINUTES,default=60"`
	OutboxIntervalSec    int    `env:"OUTBOX_INTERVAL_SEC,default=5"`
	WatchdogIntervalSec  int    `env:"WATCHDOG_INTERVAL_SEC,default=300"`
	StuckAfterMinutes    int    `env:"STUCK_AFTER_MINUTES,default=30"`
	APIPort              int    `env:"API_PORT,default=8080"`
	LogLevel             string `env:"LOG_LEVEL,default=info"`
}

func Load() (*Config, error) {
	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}
