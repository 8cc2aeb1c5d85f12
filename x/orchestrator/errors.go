package orchestrator

import (
	"errors"
	"fmt"

	"github.com/compose-network/epoch-prover/x/circuits"
)

// ErrOrchestratorState matches every *StateError via errors.Is.
var ErrOrchestratorState = errors.New("orchestrator state error")

// StateError reports an API call made out of sequence. The orchestrator is
// left exactly as it was before the call.
type StateError struct {
	Op      string
	Message string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *StateError) Is(target error) bool {
	return target == ErrOrchestratorState
}

func stateError(op, format string, args ...any) *StateError {
	return &StateError{Op: op, Message: fmt.Sprintf(format, args...)}
}

// Level is the scope a failure is reported at.
type Level uint8

const (
	LevelBlock Level = iota
	LevelCheckpoint
	LevelEpoch
)

func (l Level) String() string {
	switch l {
	case LevelBlock:
		return "Block"
	case LevelCheckpoint:
		return "Checkpoint"
	case LevelEpoch:
		return "Epoch"
	default:
		return "Unknown"
	}
}

// JobFailure records the first failure inside a scope. Ancestor scopes
// inherit the same record.
type JobFailure struct {
	Scope   string
	Kind    circuits.JobKind
	Message string
	Cause   error
}

func (f *JobFailure) Error() string {
	return f.Message
}

func (f *JobFailure) Unwrap() error {
	return f.Cause
}

func newJobFailure(scope string, kind circuits.JobKind, cause error) *JobFailure {
	return &JobFailure{Scope: scope, Kind: kind, Message: cause.Error(), Cause: cause}
}

// ScopeError is what callers waiting on a failed scope receive.
type ScopeError struct {
	Level   Level
	Failure *JobFailure
}

func (e *ScopeError) Error() string {
	return fmt.Sprintf("%s proving failed: %s", e.Level, e.Failure.Message)
}

func (e *ScopeError) Unwrap() error {
	return e.Failure
}

// StructuralKind classifies inconsistencies between what the orchestrator
// built and what the circuits attested to.
type StructuralKind uint8

const (
	BlobLengthMismatch StructuralKind = iota
	BlobCapacityExceeded
	HeaderMismatch
)

func (k StructuralKind) String() string {
	switch k {
	case BlobLengthMismatch:
		return "blob length mismatch"
	case BlobCapacityExceeded:
		return "blob capacity exceeded"
	case HeaderMismatch:
		return "header mismatch"
	default:
		return "structural error"
	}
}

// StructuralError is fatal to the epoch it occurs in.
type StructuralError struct {
	Kind    StructuralKind
	Message string
}

func (e *StructuralError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func structuralError(kind StructuralKind, format string, args ...any) *StructuralError {
	return &StructuralError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}
