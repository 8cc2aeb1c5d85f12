package prover

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/rs/zerolog"

	"github.com/compose-network/epoch-prover/x/circuits"
)

// Simulator proves jobs by evaluating the circuit outputs directly. The
// proof is a digest of kind and outputs, so equal jobs give equal proofs.
type Simulator struct {
	latency time.Duration
	jitter  time.Duration
	log     zerolog.Logger
}

func NewSimulator(latency, jitter time.Duration, log zerolog.Logger) *Simulator {
	return &Simulator{
		latency: latency,
		jitter:  jitter,
		log:     log.With().Str("component", "prover-simulator").Logger(),
	}
}

func (s *Simulator) Prove(ctx context.Context, job circuits.Job) (circuits.Result, error) {
	if d := s.delay(job.ID); d > 0 {
		timer := time.NewTimer(d)
		select {
		case <-ctx.Done():
			timer.Stop()
			return circuits.Result{}, ctx.Err()
		case <-timer.C:
		}
	}

	out, err := circuits.Evaluate(job)
	if err != nil {
		s.log.Debug().Err(err).Str("job_id", job.ID).Stringer("kind", job.Kind).Msg("Simulated circuit rejected inputs")
		return circuits.Result{}, err
	}
	proof, err := SimulatedProof(job.Kind, out)
	if err != nil {
		return circuits.Result{}, err
	}
	return circuits.Result{Kind: job.Kind, Proof: proof, Outputs: out}, nil
}

// delay spreads jobs over [latency, latency+jitter) keyed by job id.
func (s *Simulator) delay(id string) time.Duration {
	if s.jitter <= 0 {
		return s.latency
	}
	h := crypto.Keccak256([]byte(id))
	return s.latency + time.Duration(binary.BigEndian.Uint64(h[:8])%uint64(s.jitter))
}

// SimulatedProof derives the placeholder proof of a simulated job.
func SimulatedProof(kind circuits.JobKind, out circuits.Outputs) (circuits.ProofBytes, error) {
	raw, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("encode %s outputs: %w", kind, err)
	}
	return circuits.ProofBytes(crypto.Keccak256([]byte{byte(kind)}, raw)), nil
}

var _ Prover = (*Simulator)(nil)
