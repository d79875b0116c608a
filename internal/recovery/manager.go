package recovery

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"

	"codemend/internal/logging"
	"codemend/internal/types"
)

// ErrUnknownSession is returned for operations on a session ID the
// manager does not hold.
var ErrUnknownSession = errors.New("unknown session")

// Manager owns the live recovery sessions and bounds how many run at
// once. Calls into the same session are serialized: a session's chain
// walk is sequential by contract, only distinct sessions run in
// parallel.
type Manager struct {
	factory func(appType string) *Coordinator
	sem     *semaphore.Weighted

	mu       sync.Mutex
	sessions map[string]*Session
	coords   map[string]*Coordinator
	running  map[string]*sync.Mutex
}

// NewManager creates a manager running every session on the same
// coordinator, allowing maxConcurrent parallel sessions.
func NewManager(coord *Coordinator, maxConcurrent int) *Manager {
	return NewManagerWithFactory(func(string) *Coordinator { return coord }, maxConcurrent)
}

// NewManagerWithFactory creates a manager that builds a coordinator per
// session, so the chain can be specialized to the session's app type.
func NewManagerWithFactory(factory func(appType string) *Coordinator, maxConcurrent int) *Manager {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &Manager{
		factory:  factory,
		sem:      semaphore.NewWeighted(int64(maxConcurrent)),
		sessions: make(map[string]*Session),
		coords:   make(map[string]*Coordinator),
		running:  make(map[string]*sync.Mutex),
	}
}

// StartSession registers a new pending session for an app type.
func (m *Manager) StartSession(appType string) *Session {
	s := NewSession(appType)
	m.mu.Lock()
	m.sessions[s.ID] = s
	m.coords[s.ID] = m.factory(appType)
	m.running[s.ID] = &sync.Mutex{}
	m.mu.Unlock()
	logging.Recover("session %s started for app type %q", s.ID, appType)
	return s
}

// Session looks up a live session by ID.
func (m *Manager) Session(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return s, ok
}

// CloseSession forgets a session. Its trail is gone afterwards; export
// it first if it matters.
func (m *Manager) CloseSession(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	delete(m.coords, id)
	delete(m.running, id)
}

// Recover runs one recovery call on the identified session, waiting
// for a concurrency slot first. ctx cancellation while waiting returns
// the context error without touching the session.
func (m *Manager) Recover(ctx context.Context, sessionID string, rawDiags []string, files []types.SourceFile) (*Outcome, error) {
	m.mu.Lock()
	session, ok := m.sessions[sessionID]
	coord := m.coords[sessionID]
	gate := m.running[sessionID]
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSession, sessionID)
	}

	if err := m.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer m.sem.Release(1)

	gate.Lock()
	defer gate.Unlock()
	return coord.Recover(ctx, session, rawDiags, files)
}
