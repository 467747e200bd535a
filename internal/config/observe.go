package config

import (
	"context"

	"github.com/sethvargo/go-envconfig"
)

type ObserveConfig struct {
	// MetricsAddr is the listen address for /metrics and /healthz.
	// Empty disables the listener.
	MetricsAddr string `env:"METRICS_ADDR"`
}

func NewObserveConfigFromEnv() (*ObserveConfig, error) {
	var cfg ObserveConfig
	if err := envconfig.Process(context.Background(), &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
