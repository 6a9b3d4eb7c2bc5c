package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Load reads and parses the configuration file
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// applyDefaults sets default values for optional configuration fields
func applyDefaults(cfg *Config) {
	if cfg.Tokenize.Encoding == "" {
		cfg.Tokenize.Encoding = "cl100k_base"
	}
	if cfg.Tokenize.MaxLength == 0 {
		cfg.Tokenize.MaxLength = 4096
	}
	if cfg.Tokenize.NumProc == 0 {
		cfg.Tokenize.NumProc = 8
	}
	if cfg.Tokenize.ChunkSize == 0 {
		// The original queue feeds one chunk per worker at a time.
		cfg.Tokenize.ChunkSize = cfg.Tokenize.NumProc
	}
	if !cfg.Tokenize.IsDPO && !cfg.Tokenize.IsReward {
		cfg.Tokenize.IsDPO = true
	}
	if cfg.Pack.MaxPackedLength == 0 {
		cfg.Pack.MaxPackedLength = 16384
	}
}
