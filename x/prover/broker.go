package prover

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/compose-network/epoch-prover/x/circuits"
)

// RemoteJobError is returned when the prover service reports a job failed.
type RemoteJobError struct {
	RequestID string
	Kind      circuits.JobKind
	Message   string
}

func (e *RemoteJobError) Error() string {
	return e.Message
}

// Broker proves jobs on a remote service: it submits each job and polls
// its status until the job reaches a terminal state.
type Broker struct {
	client       ProverClient
	pollInterval time.Duration
	maxPollErrs  int
	log          zerolog.Logger
}

func NewBroker(client ProverClient, pollInterval time.Duration, log zerolog.Logger) *Broker {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	return &Broker{
		client:       client,
		pollInterval: pollInterval,
		maxPollErrs:  DefaultMaxPollErrs,
		log:          log.With().Str("component", "prover-broker").Logger(),
	}
}

func (b *Broker) Prove(ctx context.Context, job circuits.Job) (circuits.Result, error) {
	requestID, err := b.client.RequestProof(ctx, job)
	if err != nil {
		return circuits.Result{}, fmt.Errorf("submit %s job: %w", job.Kind, err)
	}
	log := b.log.With().Str("job_id", job.ID).Str("request_id", requestID).Stringer("kind", job.Kind).Logger()

	ticker := time.NewTicker(b.pollInterval)
	defer ticker.Stop()

	pollErrs := 0
	for {
		select {
		case <-ctx.Done():
			return circuits.Result{}, ctx.Err()
		case <-ticker.C:
		}

		st, err := b.client.GetStatus(ctx, requestID)
		if err != nil {
			if ctx.Err() != nil {
				return circuits.Result{}, ctx.Err()
			}
			pollErrs++
			log.Warn().Err(err).Int("consecutive", pollErrs).Msg("Failed to poll proof status")
			if pollErrs >= b.maxPollErrs {
				return circuits.Result{}, fmt.Errorf("poll %s job %s: %w", job.Kind, requestID, err)
			}
			continue
		}
		pollErrs = 0

		switch st.State {
		case JobCompleted:
			if st.Result == nil {
				return circuits.Result{}, errors.New("prover completed job without a result")
			}
			if st.Result.Kind != job.Kind {
				return circuits.Result{}, fmt.Errorf("prover returned %s result for %s job", st.Result.Kind, job.Kind)
			}
			log.Debug().Msg("Remote proof ready")
			return *st.Result, nil
		case JobFailed:
			return circuits.Result{}, &RemoteJobError{RequestID: requestID, Kind: job.Kind, Message: st.Error}
		}
	}
}

var _ Prover = (*Broker)(nil)
