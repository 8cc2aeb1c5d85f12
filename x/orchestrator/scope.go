package orchestrator

// Phase is the lifecycle of a block, checkpoint or epoch scope.
type Phase uint8

const (
	PhaseOpen Phase = iota
	PhaseAwaitingChildren
	PhaseSucceeded
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseOpen:
		return "open"
	case PhaseAwaitingChildren:
		return "awaiting_children"
	case PhaseSucceeded:
		return "succeeded"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// scope carries the state every proving scope shares. done is closed
// exactly once, when the scope settles.
type scope struct {
	id      string
	level   Level
	phase   Phase
	failure *JobFailure
	done    chan struct{}
}

func newScope(id string, level Level) scope {
	return scope{id: id, level: level, done: make(chan struct{})}
}

func (s *scope) settled() bool {
	return s.phase == PhaseSucceeded || s.phase == PhaseFailed
}

func (s *scope) failed() bool {
	return s.phase == PhaseFailed
}

func (s *scope) await() {
	if s.phase == PhaseOpen {
		s.phase = PhaseAwaitingChildren
	}
}

func (s *scope) succeed() bool {
	if s.settled() {
		return false
	}
	s.phase = PhaseSucceeded
	close(s.done)
	return true
}

func (s *scope) failWith(f *JobFailure) bool {
	if s.settled() {
		return false
	}
	s.phase = PhaseFailed
	s.failure = f
	close(s.done)
	return true
}

// err returns the caller-facing error of a failed scope.
func (s *scope) err() error {
	if s.failure == nil {
		return nil
	}
	return &ScopeError{Level: s.level, Failure: s.failure}
}
