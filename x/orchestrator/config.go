package orchestrator

import (
	"errors"
	"fmt"
)

const (
	DefaultMaxEpochDuration           = 32
	DefaultMessagesPerCheckpoint      = 16
	DefaultMessagesPerBaseParity      = 4
	DefaultMaxBlobFieldsPerCheckpoint = 6 * 4096
	DefaultMaxBlocksPerCheckpoint     = 64
	DefaultMaxTxsPerBlock             = 1 << 16
)

type Config struct {
	// MaxEpochDuration is the number of checkpoints an epoch can hold and
	// the length of the padded header hash array.
	MaxEpochDuration           int    `mapstructure:"max_epoch_duration"             yaml:"max_epoch_duration"`
	MessagesPerCheckpoint      int    `mapstructure:"messages_per_checkpoint"        yaml:"messages_per_checkpoint"`
	MessagesPerBaseParity      int    `mapstructure:"messages_per_base_parity"       yaml:"messages_per_base_parity"`
	MaxBlobFieldsPerCheckpoint uint64 `mapstructure:"max_blob_fields_per_checkpoint" yaml:"max_blob_fields_per_checkpoint"`
	MaxBlocksPerCheckpoint     int    `mapstructure:"max_blocks_per_checkpoint"      yaml:"max_blocks_per_checkpoint"`
	MaxTxsPerBlock             int    `mapstructure:"max_txs_per_block"              yaml:"max_txs_per_block"`
	// PersistProvenState writes the epoch's state fork back to the store
	// once the epoch is proven.
	PersistProvenState bool `mapstructure:"persist_proven_state" yaml:"persist_proven_state"`
}

func DefaultConfig() Config {
	return Config{
		MaxEpochDuration:           DefaultMaxEpochDuration,
		MessagesPerCheckpoint:      DefaultMessagesPerCheckpoint,
		MessagesPerBaseParity:      DefaultMessagesPerBaseParity,
		MaxBlobFieldsPerCheckpoint: DefaultMaxBlobFieldsPerCheckpoint,
		MaxBlocksPerCheckpoint:     DefaultMaxBlocksPerCheckpoint,
		MaxTxsPerBlock:             DefaultMaxTxsPerBlock,
		PersistProvenState:         true,
	}
}

func isPow2(n int) bool {
	return n > 0 && n&(n-1) == 0
}

func (c Config) Validate() error {
	if c.MaxEpochDuration <= 0 {
		return fmt.Errorf("max_epoch_duration must be positive, got %d", c.MaxEpochDuration)
	}
	if !isPow2(c.MessagesPerCheckpoint) || !isPow2(c.MessagesPerBaseParity) {
		return errors.New("messages_per_checkpoint and messages_per_base_parity must be powers of two")
	}
	if c.MessagesPerBaseParity > c.MessagesPerCheckpoint {
		return errors.New("messages_per_base_parity cannot exceed messages_per_checkpoint")
	}
	if c.MaxBlobFieldsPerCheckpoint == 0 {
		return errors.New("max_blob_fields_per_checkpoint must be positive")
	}
	if c.MaxBlocksPerCheckpoint <= 0 || c.MaxTxsPerBlock <= 0 {
		return errors.New("max_blocks_per_checkpoint and max_txs_per_block must be positive")
	}
	return nil
}

// BaseParityPerCheckpoint is the number of base parity jobs per checkpoint.
func (c Config) BaseParityPerCheckpoint() int {
	return c.MessagesPerCheckpoint / c.MessagesPerBaseParity
}
