package recovery

import (
	"sync"

	"github.com/google/uuid"
)

// State is a recovery session's lifecycle position.
type State string

const (
	StatePending   State = "PENDING"
	StateRunning   State = "RUNNING"
	StateSucceeded State = "SUCCEEDED"
	StateExhausted State = "EXHAUSTED"
)

// Session carries the cross-call memory of one recovery effort: which
// strategy was already tried against which error-set fingerprint, the
// full fix-attempt trail, and the strategies whose fixes were accepted.
// A session is sequential by contract; the manager serializes calls
// into it.
type Session struct {
	ID      string
	AppType string

	mu       sync.Mutex
	state    State
	tried    map[string]map[string]bool // fingerprint -> strategy -> done
	attempts []FixAttempt
	applied  []string
}

// NewSession creates a pending session for the given app type.
func NewSession(appType string) *Session {
	return &Session{
		ID:      uuid.NewString(),
		AppType: appType,
		state:   StatePending,
		tried:   make(map[string]map[string]bool),
	}
}

// State returns the session's current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
}

// Attempts returns a copy of the fix-attempt trail.
func (s *Session) Attempts() []FixAttempt {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]FixAttempt, len(s.attempts))
	copy(out, s.attempts)
	return out
}

// Applied returns a copy of the accepted strategy names, in order.
func (s *Session) Applied() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.applied))
	copy(out, s.applied)
	return out
}

func (s *Session) attemptCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.attempts)
}

// triedAlready reports whether the strategy already ran against this
// exact fingerprint, in any earlier call on the session.
func (s *Session) triedAlready(fingerprint, strategyName string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tried[fingerprint][strategyName]
}

func (s *Session) markTried(fingerprint, strategyName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tried[fingerprint] == nil {
		s.tried[fingerprint] = make(map[string]bool)
	}
	s.tried[fingerprint][strategyName] = true
}

func (s *Session) record(a FixAttempt) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts = append(s.attempts, a)
}

func (s *Session) recordApplied(strategyName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applied = append(s.applied, strategyName)
}
