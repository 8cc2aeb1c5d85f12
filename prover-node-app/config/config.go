package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	apisrv "github.com/compose-network/epoch-prover/server/api"
	"github.com/compose-network/epoch-prover/x/orchestrator"
	"github.com/compose-network/epoch-prover/x/prover"
	"github.com/compose-network/epoch-prover/x/worldstate"
)

// Config holds the complete application configuration
type Config struct {
	API          apisrv.Config       `mapstructure:"api"          yaml:"api"`
	Metrics      MetricsConfig       `mapstructure:"metrics"      yaml:"metrics"`
	Log          LogConfig           `mapstructure:"log"          yaml:"log"`
	Prover       prover.Config       `mapstructure:"prover"       yaml:"prover"`
	WorldState   worldstate.Config   `mapstructure:"world_state"  yaml:"world_state"`
	Orchestrator orchestrator.Config `mapstructure:"orchestrator" yaml:"orchestrator"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Path    string `mapstructure:"path"    yaml:"path"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`
	Pretty bool   `mapstructure:"pretty" yaml:"pretty"`
}

// Load reads configuration from the file at configPath, if any, and from
// the environment. Nested keys map to env vars with "." replaced by "_",
// e.g. PROVER_MODE or API_LISTEN_ADDR.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// setDefaults registers every key so AutomaticEnv can override it.
func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("api.listen_addr", d.API.ListenAddr)
	v.SetDefault("api.read_header_timeout", d.API.ReadHeaderTimeout)
	v.SetDefault("api.read_timeout", d.API.ReadTimeout)
	v.SetDefault("api.write_timeout", d.API.WriteTimeout)
	v.SetDefault("api.idle_timeout", d.API.IdleTimeout)
	v.SetDefault("api.max_header_bytes", d.API.MaxHeaderBytes)
	v.SetDefault("api.enable_cors", d.API.EnableCORS)

	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("metrics.path", d.Metrics.Path)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.pretty", d.Log.Pretty)

	v.SetDefault("prover.mode", string(d.Prover.Mode))
	v.SetDefault("prover.base_url", d.Prover.BaseURL)
	v.SetDefault("prover.poll_interval", d.Prover.PollInterval)
	v.SetDefault("prover.workers", d.Prover.Workers)
	v.SetDefault("prover.simulated_latency", d.Prover.SimulatedLatency)
	v.SetDefault("prover.latency_jitter", d.Prover.LatencyJitter)

	v.SetDefault("world_state.data_dir", d.WorldState.DataDir)
	v.SetDefault("world_state.tree_height", d.WorldState.TreeHeight)

	v.SetDefault("orchestrator.max_epoch_duration", d.Orchestrator.MaxEpochDuration)
	v.SetDefault("orchestrator.messages_per_checkpoint", d.Orchestrator.MessagesPerCheckpoint)
	v.SetDefault("orchestrator.messages_per_base_parity", d.Orchestrator.MessagesPerBaseParity)
	v.SetDefault("orchestrator.max_blob_fields_per_checkpoint", d.Orchestrator.MaxBlobFieldsPerCheckpoint)
	v.SetDefault("orchestrator.max_blocks_per_checkpoint", d.Orchestrator.MaxBlocksPerCheckpoint)
	v.SetDefault("orchestrator.max_txs_per_block", d.Orchestrator.MaxTxsPerBlock)
	v.SetDefault("orchestrator.persist_proven_state", d.Orchestrator.PersistProvenState)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if err := c.API.Validate(); err != nil {
		return fmt.Errorf("api: %w", err)
	}
	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return errors.New("metrics.path must start with /")
	}
	if err := c.Prover.Validate(); err != nil {
		return fmt.Errorf("prover: %w", err)
	}
	if err := c.WorldState.Validate(); err != nil {
		return fmt.Errorf("world_state: %w", err)
	}
	if err := c.Orchestrator.Validate(); err != nil {
		return fmt.Errorf("orchestrator: %w", err)
	}
	return nil
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		API: apisrv.DefaultConfig(),
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Log: LogConfig{
			Level: "info",
		},
		Prover:       prover.DefaultConfig(),
		WorldState:   worldstate.DefaultConfig(),
		Orchestrator: orchestrator.DefaultConfig(),
	}
}
