package worldstate

import "fmt"

const (
	DefaultTreeHeight = 32
	MaxTreeHeight     = 64
)

type Config struct {
	// DataDir is the LevelDB directory. Empty keeps state in memory.
	DataDir    string `mapstructure:"data_dir"    yaml:"data_dir"`
	TreeHeight int    `mapstructure:"tree_height" yaml:"tree_height"`
}

func DefaultConfig() Config {
	return Config{TreeHeight: DefaultTreeHeight}
}

func (c Config) Validate() error {
	if c.TreeHeight <= 0 || c.TreeHeight > MaxTreeHeight {
		return fmt.Errorf("tree height must be in [1, %d], got %d", MaxTreeHeight, c.TreeHeight)
	}
	return nil
}
