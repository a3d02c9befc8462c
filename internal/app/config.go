package app

import "errors"

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	// ProvidersPath is the file or directory the provider records are
	// read from.
	ProvidersPath string

	// ModulePrefixes is the discovery allow-list matched against source
	// names. Empty admits every compiled-in source.
	ModulePrefixes []string

	// CollectDiscoveryErrors switches discovery to fail-soft: invalid
	// descriptors are logged and reported instead of aborting startup.
	CollectDiscoveryErrors bool

	LogFormat string
	LogLevel  string
}

// NewConfig validates a Config and returns it.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.ProvidersPath == "" {
		return nil, errors.New("ProvidersPath is a required configuration field and cannot be empty")
	}
	return &cfg, nil
}
