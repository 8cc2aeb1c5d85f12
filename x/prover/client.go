package prover

import (
	"context"
	"time"

	"github.com/compose-network/epoch-prover/x/circuits"
)

// JobState is the lifecycle state reported by a prover service.
type JobState string

const (
	JobQueued    JobState = "queued"
	JobRunning   JobState = "running"
	JobCompleted JobState = "completed"
	JobFailed    JobState = "failed"
)

// Terminal reports whether the job will not change state again.
func (s JobState) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// JobStatus is the prover service's view of a submitted job.
type JobStatus struct {
	ID          string           `json:"id"`
	Kind        circuits.JobKind `json:"kind"`
	State       JobState         `json:"state"`
	Result      *circuits.Result `json:"result,omitempty"`
	Error       string           `json:"error,omitempty"`
	SubmittedAt time.Time        `json:"submitted_at"`
	FinishedAt  time.Time        `json:"finished_at,omitzero"`
}

// ProverClient talks to a remote prover service.
type ProverClient interface {
	RequestProof(ctx context.Context, job circuits.Job) (jobID string, err error)
	GetStatus(ctx context.Context, jobID string) (JobStatus, error)
}
