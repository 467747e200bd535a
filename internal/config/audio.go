package config

import (
	"context"
	"fmt"

	"github.com/sethvargo/go-envconfig"

	"github.com/glizzus/cobot/internal/schedule"
)

const (
	AudioSourceLocal = "local"
	AudioSourceMinio = "minio"
)

type AudioConfig struct {
	Source      string `env:"AUDIO_SOURCE, default=local"`
	Dir         string `env:"AUDIO_DIR, default=sounds"`
	ScratchDir  string `env:"AUDIO_SCRATCH_DIR"`
	Extension   string `env:"AUDIO_EXTENSION, default=.ogg"`
	RefreshCron string `env:"CATALOG_REFRESH_CRON"`
}

func NewAudioConfigFromEnv() (*AudioConfig, error) {
	return newAudioConfig(envconfig.OsLookuper())
}

func newAudioConfig(lookuper envconfig.Lookuper) (*AudioConfig, error) {
	var cfg AudioConfig
	if err := envconfig.ProcessWith(context.Background(), &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookuper,
	}); err != nil {
		return nil, err
	}
	switch cfg.Source {
	case AudioSourceLocal, AudioSourceMinio:
	default:
		return nil, fmt.Errorf("unknown AUDIO_SOURCE %q, expected %q or %q", cfg.Source, AudioSourceLocal, AudioSourceMinio)
	}
	if cfg.RefreshCron != "" {
		if _, err := schedule.ParseCron(cfg.RefreshCron); err != nil {
			return nil, fmt.Errorf("CATALOG_REFRESH_CRON: %w", err)
		}
	}
	return &cfg, nil
}
