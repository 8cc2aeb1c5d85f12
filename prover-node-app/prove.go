package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/compose-network/epoch-prover/prover-node-app/config"
	"github.com/compose-network/epoch-prover/x/circuits"
	"github.com/compose-network/epoch-prover/x/orchestrator"
	"github.com/compose-network/epoch-prover/x/prover"
	"github.com/compose-network/epoch-prover/x/worldstate"
)

func runProve(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	scenario, err := LoadScenario(args[0])
	if err != nil {
		return err
	}

	out := io.Writer(os.Stdout)
	if path, _ := cmd.Flags().GetString("output"); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("failed to create output: %w", err)
		}
		defer f.Close()
		out = f
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	proofs, err := proveScenario(ctx, cfg, scenario, logger.Logger)
	if len(proofs) > 0 {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if encErr := enc.Encode(proofs); encErr != nil {
			return fmt.Errorf("failed to write proofs: %w", encErr)
		}
	}
	return err
}

// proveScenario proves the scenario's epochs in order against one world
// state and returns the proofs produced before the first failure.
func proveScenario(ctx context.Context, cfg *config.Config, s *Scenario, log zerolog.Logger,
) ([]*orchestrator.EpochProof, error) {
	store, err := worldstate.Open(cfg.WorldState, log)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close world state")
		}
	}()

	pool, err := prover.New(cfg.Prover, log)
	if err != nil {
		return nil, err
	}

	o, err := orchestrator.New(cfg.Orchestrator, pool, store, log)
	if err != nil {
		return nil, err
	}
	defer o.Stop()

	var (
		proofs []*orchestrator.EpochProof
		prev   *circuits.BlockHeader
	)
	for _, e := range s.Epochs {
		proof, last, err := proveEpoch(ctx, o, e, prev, log)
		if err != nil {
			return proofs, fmt.Errorf("epoch %d: %w", e.Number, err)
		}
		log.Info().
			Uint64("epoch", proof.EpochNumber).
			Int("checkpoints", len(proof.Headers)).
			Uint64("blob_fields", proof.BlobFieldsTotal).
			Msg("Epoch proof ready")
		proofs = append(proofs, proof)
		prev = last
	}

	log.Info().
		Interface("prover", pool.GetStats()).
		Interface("orchestrator", o.GetStats()).
		Msg("Scenario proven")
	return proofs, nil
}
