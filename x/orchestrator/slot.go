package orchestrator

import (
	"github.com/compose-network/epoch-prover/x/circuits"
)

// JobStatus is the state of one job slot.
type JobStatus uint8

const (
	StatusEmpty JobStatus = iota
	StatusPending
	StatusReady
	StatusFailed
)

func (s JobStatus) String() string {
	switch s {
	case StatusEmpty:
		return "empty"
	case StatusPending:
		return "pending"
	case StatusReady:
		return "ready"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// slot is one position of an aggregation tree. It moves
// Empty -> Pending -> Ready|Failed once and never goes back.
type slot struct {
	id       string
	position int
	kind     circuits.JobKind
	status   JobStatus
	result   *circuits.Result
	failure  *JobFailure
}

func newSlot(id string, position int) *slot {
	return &slot{id: id, position: position}
}

func (s *slot) begin(kind circuits.JobKind) bool {
	if s.status != StatusEmpty {
		return false
	}
	s.kind = kind
	s.status = StatusPending
	return true
}

func (s *slot) complete(res circuits.Result) bool {
	if s.status != StatusPending {
		return false
	}
	s.result = &res
	s.status = StatusReady
	return true
}

func (s *slot) fail(f *JobFailure) bool {
	if s.status != StatusPending {
		return false
	}
	s.failure = f
	s.status = StatusFailed
	return true
}

func (s *slot) ready() bool {
	return s.status == StatusReady
}
