package config

import (
	"context"
	"fmt"

	"github.com/sethvargo/go-envconfig"
)

const (
	ResolvePolicyFuzzy = "fuzzy"
	ResolvePolicyExact = "exact"
)

type ResolverConfig struct {
	Policy            string `env:"RESOLVE_POLICY, default=fuzzy"`
	MinThreshold      int    `env:"RESOLVE_MIN_THRESHOLD, default=50"`
	HighThreshold     int    `env:"RESOLVE_HIGH_THRESHOLD, default=70"`
	AutocompleteLimit int    `env:"RESOLVE_AUTOCOMPLETE_LIMIT, default=20"`
}

func NewResolverConfigFromEnv() (*ResolverConfig, error) {
	return newResolverConfig(envconfig.OsLookuper())
}

func newResolverConfig(lookuper envconfig.Lookuper) (*ResolverConfig, error) {
	var cfg ResolverConfig
	if err := envconfig.ProcessWith(context.Background(), &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookuper,
	}); err != nil {
		return nil, err
	}
	if cfg.Policy != ResolvePolicyFuzzy && cfg.Policy != ResolvePolicyExact {
		return nil, fmt.Errorf("unknown RESOLVE_POLICY %q, expected %q or %q", cfg.Policy, ResolvePolicyFuzzy, ResolvePolicyExact)
	}
	if cfg.MinThreshold < 0 || cfg.HighThreshold > 100 || cfg.MinThreshold > cfg.HighThreshold {
		return nil, fmt.Errorf("resolver thresholds must satisfy 0 <= min <= high <= 100, got min=%d high=%d", cfg.MinThreshold, cfg.HighThreshold)
	}
	// Discord rejects more than 25 autocomplete choices.
	if cfg.AutocompleteLimit < 1 || cfg.AutocompleteLimit > 25 {
		return nil, fmt.Errorf("RESOLVE_AUTOCOMPLETE_LIMIT must be between 1 and 25, got %d", cfg.AutocompleteLimit)
	}
	return &cfg, nil
}
