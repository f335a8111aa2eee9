package config

import "time"

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Store.Path == "" {
		cfg.Store.Path = "/usr/local/var/recall/vectors"
	}
	if cfg.Search.DefaultK == 0 {
		cfg.Search.DefaultK = 3
	}
	if cfg.Search.MaxK == 0 {
		cfg.Search.MaxK = 100
	}
	if cfg.Search.DefaultEfSearch == 0 {
		cfg.Search.DefaultEfSearch = 150
	}
	if cfg.Worker.Isolation == "" {
		cfg.Worker.Isolation = IsolationProcess
	}
	if cfg.Worker.Timeout == 0 {
		cfg.Worker.Timeout = 10 * time.Second
	}
	if cfg.Worker.MaxConcurrent == 0 {
		cfg.Worker.MaxConcurrent = 4
	}
}
