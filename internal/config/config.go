package config

import (
	"fmt"

	"github.com/prefpack/prefpack/pkg/models"
)

// Config represents the complete application configuration
type Config struct {
	Dataset  DatasetConfig  `toml:"dataset"`
	Tokenize TokenizeConfig `toml:"tokenize"`
	Pack     PackConfig     `toml:"pack"`
}

// DatasetConfig describes where input rows come from and how they are adapted
type DatasetConfig struct {
	DataFiles []string `toml:"data_files"` // Explicit list of JSONL files (mutually exclusive with data_dir)
	DataDir   string   `toml:"data_dir"`   // Directory to scan for input files
	Suffix    string   `toml:"suffix"`     // Optional filename suffix filter when scanning data_dir
	MapFn     string   `toml:"map_fn"`     // Registered row adapter name (empty = rows already in pair format)
}

// TokenizeConfig holds tokenization settings
type TokenizeConfig struct {
	Encoding      string `toml:"encoding"`        // BPE encoding name (default: cl100k_base)
	MaxLength     int    `toml:"max_length"`      // Per-continuation truncation bound
	IsDPO         bool   `toml:"is_dpo"`          // Preference-label mode (mask prompt, supervise continuation)
	IsReward      bool   `toml:"is_reward"`       // Reward-label mode (terminal classification token)
	RewardTokenID int    `toml:"reward_token_id"` // Required when is_reward is true
	NumProc       int    `toml:"num_proc"`        // Tokenization worker count (default: 8)
	ChunkSize     int    `toml:"chunk_size"`      // Examples per work-queue chunk (default: num_proc)
}

// PackConfig holds bin-packing settings
type PackConfig struct {
	UseVarlenAttn     bool  `toml:"use_varlen_attn"`     // Pack pairs into capacity-bounded bins
	MaxPackedLength   int   `toml:"max_packed_length"`   // Token budget per bin (default: 16384)
	ShuffleBeforePack bool  `toml:"shuffle_before_pack"` // Shuffle ungrouped pairs before packing
	ShuffleSeed       int64 `toml:"shuffle_seed"`        // Seed for the pre-pack shuffle (keeps packing reproducible)
}

// Mode returns the configured label mode. Valid only after Validate.
func (c *Config) Mode() models.LabelMode {
	if c.Tokenize.IsReward {
		return models.LabelModeReward
	}
	return models.LabelModeDPO
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	hasFiles := len(c.Dataset.DataFiles) > 0
	hasDir := c.Dataset.DataDir != ""
	if hasFiles == hasDir {
		return fmt.Errorf("exactly one of dataset.data_files and dataset.data_dir must be set")
	}
	if c.Dataset.Suffix != "" && !hasDir {
		return fmt.Errorf("dataset.suffix is only valid together with dataset.data_dir")
	}

	if c.Tokenize.IsDPO == c.Tokenize.IsReward {
		return fmt.Errorf("exactly one of tokenize.is_dpo and tokenize.is_reward must be true")
	}
	if c.Tokenize.IsReward && c.Tokenize.RewardTokenID <= 0 {
		return fmt.Errorf("tokenize.reward_token_id must be set when tokenize.is_reward is true")
	}
	if c.Tokenize.MaxLength < 1 {
		return fmt.Errorf("tokenize.max_length must be at least 1 (got %d)", c.Tokenize.MaxLength)
	}
	if c.Tokenize.NumProc < 1 {
		return fmt.Errorf("tokenize.num_proc must be at least 1 (got %d)", c.Tokenize.NumProc)
	}
	if c.Tokenize.ChunkSize < 1 {
		return fmt.Errorf("tokenize.chunk_size must be at least 1 (got %d)", c.Tokenize.ChunkSize)
	}

	if c.Pack.MaxPackedLength < 1 {
		return fmt.Errorf("pack.max_packed_length must be at least 1 (got %d)", c.Pack.MaxPackedLength)
	}
	if c.Pack.UseVarlenAttn && c.Pack.MaxPackedLength < c.Tokenize.MaxLength {
		return fmt.Errorf("pack.max_packed_length (%d) must not be smaller than tokenize.max_length (%d)",
			c.Pack.MaxPackedLength, c.Tokenize.MaxLength)
	}

	return nil
}
