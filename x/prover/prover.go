// Package prover is the boundary between the orchestrator and the circuit
// provers. Every backend satisfies Prover; Pool bounds how many jobs run at
// once and Broker forwards jobs to a remote prover service.
package prover

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/compose-network/epoch-prover/x/circuits"
)

// Prover runs one circuit job to completion.
type Prover interface {
	Prove(ctx context.Context, job circuits.Job) (circuits.Result, error)
}

// Func adapts a plain function to Prover.
type Func func(ctx context.Context, job circuits.Job) (circuits.Result, error)

func (f Func) Prove(ctx context.Context, job circuits.Job) (circuits.Result, error) {
	return f(ctx, job)
}

// New builds the prover described by cfg: a pool over the simulator for
// local mode, or a pool over a broker to the remote service.
func New(cfg Config, log zerolog.Logger) (*Pool, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid prover config: %w", err)
	}

	var backend Prover
	switch cfg.Mode {
	case ModeRemote:
		client, err := NewHTTPClient(cfg.BaseURL, nil, log)
		if err != nil {
			return nil, err
		}
		backend = NewBroker(client, cfg.PollInterval, log)
	default:
		backend = NewSimulator(cfg.SimulatedLatency, cfg.LatencyJitter, log)
	}
	return NewPool(backend, cfg.Workers, log), nil
}
