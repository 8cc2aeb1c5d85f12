package prover

import (
	"errors"
	"fmt"
	"time"
)

type Mode string

const (
	ModeLocal  Mode = "local"
	ModeRemote Mode = "remote"
)

const (
	DefaultWorkers      = 8
	DefaultPollInterval = 500 * time.Millisecond
	DefaultMaxPollErrs  = 5
)

type Config struct {
	Mode             Mode          `mapstructure:"mode"              yaml:"mode"`
	BaseURL          string        `mapstructure:"base_url"          yaml:"base_url"`
	PollInterval     time.Duration `mapstructure:"poll_interval"     yaml:"poll_interval"`
	Workers          int           `mapstructure:"workers"           yaml:"workers"`
	SimulatedLatency time.Duration `mapstructure:"simulated_latency" yaml:"simulated_latency"`
	LatencyJitter    time.Duration `mapstructure:"latency_jitter"    yaml:"latency_jitter"`
}

func DefaultConfig() Config {
	return Config{
		Mode:         ModeLocal,
		PollInterval: DefaultPollInterval,
		Workers:      DefaultWorkers,
	}
}

func (c Config) Validate() error {
	switch c.Mode {
	case ModeLocal:
	case ModeRemote:
		if c.BaseURL == "" {
			return errors.New("base_url is required in remote mode")
		}
		if c.PollInterval <= 0 {
			return errors.New("poll_interval must be positive")
		}
	default:
		return fmt.Errorf("unknown prover mode %q", c.Mode)
	}
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	}
	if c.SimulatedLatency < 0 || c.LatencyJitter < 0 {
		return errors.New("simulated latency and jitter must not be negative")
	}
	return nil
}
