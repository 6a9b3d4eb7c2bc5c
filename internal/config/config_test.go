package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/prefpack/prefpack/pkg/models"
)

func validConfig() Config {
	return Config{
		Dataset: DatasetConfig{
			DataFiles: []string{"pairs.jsonl"},
		},
		Tokenize: TokenizeConfig{
			Encoding:  "cl100k_base",
			MaxLength: 4096,
			IsDPO:     true,
			NumProc:   8,
			ChunkSize: 8,
		},
		Pack: PackConfig{
			MaxPackedLength: 16384,
		},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"no input source", func(c *Config) {
			c.Dataset.DataFiles = nil
		}, true},
		{"both input sources", func(c *Config) {
			c.Dataset.DataDir = "/data"
		}, true},
		{"data_dir with suffix", func(c *Config) {
			c.Dataset.DataFiles = nil
			c.Dataset.DataDir = "/data"
			c.Dataset.Suffix = ".jsonl"
		}, false},
		{"suffix without data_dir", func(c *Config) {
			c.Dataset.Suffix = ".jsonl"
		}, true},
		{"neither label mode", func(c *Config) {
			c.Tokenize.IsDPO = false
		}, true},
		{"both label modes", func(c *Config) {
			c.Tokenize.IsReward = true
		}, true},
		{"reward without token id", func(c *Config) {
			c.Tokenize.IsDPO = false
			c.Tokenize.IsReward = true
		}, true},
		{"reward with token id", func(c *Config) {
			c.Tokenize.IsDPO = false
			c.Tokenize.IsReward = true
			c.Tokenize.RewardTokenID = 32000
		}, false},
		{"zero max_length", func(c *Config) {
			c.Tokenize.MaxLength = 0
		}, true},
		{"zero num_proc", func(c *Config) {
			c.Tokenize.NumProc = 0
		}, true},
		{"zero chunk_size", func(c *Config) {
			c.Tokenize.ChunkSize = 0
		}, true},
		{"zero max_packed_length", func(c *Config) {
			c.Pack.MaxPackedLength = 0
		}, true},
		{"bin smaller than one continuation", func(c *Config) {
			c.Pack.UseVarlenAttn = true
			c.Pack.MaxPackedLength = 1024
			c.Tokenize.MaxLength = 4096
		}, true},
		{"bin smaller than max_length without packing", func(c *Config) {
			c.Pack.MaxPackedLength = 1024
			c.Tokenize.MaxLength = 4096
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr = %v", err, tt.wantErr)
			}
		})
	}
}

func TestMode(t *testing.T) {
	cfg := validConfig()
	if got := cfg.Mode(); got != models.LabelModeDPO {
		t.Errorf("Mode() = %v, want dpo", got)
	}

	cfg.Tokenize.IsDPO = false
	cfg.Tokenize.IsReward = true
	if got := cfg.Mode(); got != models.LabelModeReward {
		t.Errorf("Mode() = %v, want reward", got)
	}
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfigFile(t, `
[dataset]
data_files = ["pairs.jsonl"]
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Tokenize.Encoding != "cl100k_base" {
		t.Errorf("encoding = %q, want cl100k_base", cfg.Tokenize.Encoding)
	}
	if cfg.Tokenize.MaxLength != 4096 {
		t.Errorf("max_length = %d, want 4096", cfg.Tokenize.MaxLength)
	}
	if cfg.Tokenize.NumProc != 8 {
		t.Errorf("num_proc = %d, want 8", cfg.Tokenize.NumProc)
	}
	if cfg.Tokenize.ChunkSize != 8 {
		t.Errorf("chunk_size = %d, want num_proc", cfg.Tokenize.ChunkSize)
	}
	if !cfg.Tokenize.IsDPO {
		t.Error("is_dpo default not applied")
	}
	if cfg.Pack.MaxPackedLength != 16384 {
		t.Errorf("max_packed_length = %d, want 16384", cfg.Pack.MaxPackedLength)
	}
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfigFile(t, `
[dataset]
data_dir = "/data/orca"
suffix = ".jsonl"
map_fn = "intel_orca"

[tokenize]
encoding = "cl100k_base"
max_length = 2048
is_reward = true
reward_token_id = 32001
num_proc = 4
chunk_size = 2

[pack]
use_varlen_attn = true
max_packed_length = 8192
shuffle_before_pack = true
shuffle_seed = 7
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Dataset.DataDir != "/data/orca" || cfg.Dataset.MapFn != "intel_orca" {
		t.Errorf("dataset section mismatch: %+v", cfg.Dataset)
	}
	if cfg.Mode() != models.LabelModeReward {
		t.Errorf("Mode() = %v, want reward", cfg.Mode())
	}
	if cfg.Tokenize.RewardTokenID != 32001 {
		t.Errorf("reward_token_id = %d, want 32001", cfg.Tokenize.RewardTokenID)
	}
	if !cfg.Pack.UseVarlenAttn || cfg.Pack.MaxPackedLength != 8192 {
		t.Errorf("pack section mismatch: %+v", cfg.Pack)
	}
	if !cfg.Pack.ShuffleBeforePack || cfg.Pack.ShuffleSeed != 7 {
		t.Errorf("shuffle settings mismatch: %+v", cfg.Pack)
	}
}

func TestLoadInvalidConfig(t *testing.T) {
	path := writeConfigFile(t, `
[dataset]
data_files = ["a.jsonl"]
data_dir = "/data"
`)

	if _, err := Load(path); err == nil {
		t.Error("expected validation error, got nil")
	}
}

func TestLoadMalformedTOML(t *testing.T) {
	path := writeConfigFile(t, `[dataset`)
	if _, err := Load(path); err == nil {
		t.Error("expected parse error, got nil")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.toml")); err == nil {
		t.Error("expected error for missing file, got nil")
	}
}
