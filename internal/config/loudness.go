package config

import (
	"context"
	"time"

	"github.com/sethvargo/go-envconfig"
)

type LoudnessConfig struct {
	FFmpegPath string        `env:"FFMPEG_PATH, default=ffmpeg"`
	TargetI    float64       `env:"LOUDNORM_TARGET_I, default=-15"`
	TargetTP   float64       `env:"LOUDNORM_TARGET_TP, default=0"`
	Timeout    time.Duration `env:"LOUDNORM_TIMEOUT, default=30s"`
}

func NewLoudnessConfigFromEnv() (*LoudnessConfig, error) {
	var cfg LoudnessConfig
	if err := envconfig.Process(context.Background(), &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
