// Package session tracks live simulation sessions in memory. Each session
// owns one immutable simulation snapshot; Apply serializes snapshot
// replacement per session so concurrent tool calls never lose a step.
// Sessions are process-local and vanish on restart.
package session

import (
	"strings"
	"sync"
	"time"

	apperrors "github.com/streamlogic/tslsim/internal/platform/errors"
	"github.com/streamlogic/tslsim/internal/platform/id"
	"github.com/streamlogic/tslsim/internal/scenario"
	"github.com/streamlogic/tslsim/internal/sim"
)

var (
	// ErrNotFound indicates a session lookup missed.
	ErrNotFound = apperrors.New(apperrors.CodeSessionNotFound, "session not found")
	// ErrIDRequired indicates a missing session id.
	ErrIDRequired = apperrors.New(apperrors.CodeSessionIDEmpty, "session id is required")
	// ErrNameRequired indicates a missing scenario name.
	ErrNameRequired = apperrors.New(apperrors.CodeScenarioNameEmpty, "scenario name is required")
	// ErrLimitReached indicates the manager refuses to start more sessions.
	ErrLimitReached = apperrors.New(apperrors.CodeSessionLimit, "session limit reached")
)

// DefaultLimit caps how many sessions one manager serves at a time.
const DefaultLimit = 64

// Session is a point-in-time view of one live session. The Sim snapshot is
// immutable; a later Apply replaces it inside the manager without affecting
// views handed out earlier.
type Session struct {
	ID        string
	Scenario  string
	Sim       sim.SystemSimulation[string]
	CreatedAt time.Time
	LastUsed  time.Time
}

// entry pairs a session with the mutex that serializes its snapshot
// replacement.
type entry struct {
	mu      sync.Mutex
	session Session
}

// Manager starts, tracks, and stops sessions against a scenario catalog.
type Manager struct {
	catalog *scenario.Catalog
	limit   int
	now     func() time.Time
	newID   func() (string, error)

	mu      sync.Mutex
	entries map[string]*entry
}

// NewManager creates a manager over the given catalog with DefaultLimit.
func NewManager(catalog *scenario.Catalog) *Manager {
	return &Manager{
		catalog: catalog,
		limit:   DefaultLimit,
		now:     time.Now,
		newID:   id.NewID,
		entries: make(map[string]*entry),
	}
}

// Start builds the initial simulation for the named scenario and registers a
// fresh session around it.
func (m *Manager) Start(name string) (Session, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Session{}, ErrNameRequired
	}
	sc, err := m.catalog.Get(name)
	if err != nil {
		return Session{}, apperrors.Wrap(apperrors.CodeScenarioUnknown, "unknown scenario "+name, err)
	}
	snapshot, err := sc.Start()
	if err != nil {
		return Session{}, apperrors.Wrap(apperrors.CodeScenarioInvalid, "start scenario "+name, err)
	}
	sessionID, err := m.newID()
	if err != nil {
		return Session{}, apperrors.Wrap(apperrors.CodeUnknown, "generate session id", err)
	}

	createdAt := m.now().UTC()
	session := Session{
		ID:        sessionID,
		Scenario:  sc.Name,
		Sim:       snapshot,
		CreatedAt: createdAt,
		LastUsed:  createdAt,
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.entries) >= m.limit {
		return Session{}, ErrLimitReached
	}
	m.entries[sessionID] = &entry{session: session}
	return session, nil
}

// Get returns the current view of a session and refreshes its idle timer.
func (m *Manager) Get(sessionID string) (Session, error) {
	e, err := m.lookup(sessionID)
	if err != nil {
		return Session{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.session.LastUsed = m.now().UTC()
	return e.session, nil
}

// Apply replaces a session's simulation snapshot with the result of fn,
// holding the session's lock for the duration so concurrent calls see each
// other's steps. fn errors propagate unchanged and leave the snapshot as it
// was.
func (m *Manager) Apply(sessionID string, fn func(sim.SystemSimulation[string]) (sim.SystemSimulation[string], error)) (Session, error) {
	e, err := m.lookup(sessionID)
	if err != nil {
		return Session{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	next, err := fn(e.session.Sim)
	if err != nil {
		return Session{}, err
	}
	e.session.Sim = next
	e.session.LastUsed = m.now().UTC()
	return e.session, nil
}

// Stop removes a session. Stopping an unknown session reports ErrNotFound.
func (m *Manager) Stop(sessionID string) error {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return ErrIDRequired
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[sessionID]; !ok {
		return ErrNotFound
	}
	delete(m.entries, sessionID)
	return nil
}

// Sweep drops every session idle for longer than maxIdle and reports how
// many were removed.
func (m *Manager) Sweep(maxIdle time.Duration) int {
	deadline := m.now().UTC().Add(-maxIdle)
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for sessionID, e := range m.entries {
		e.mu.Lock()
		idle := e.session.LastUsed.Before(deadline)
		e.mu.Unlock()
		if idle {
			delete(m.entries, sessionID)
			removed++
		}
	}
	return removed
}

// Len reports how many sessions are live.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *Manager) lookup(sessionID string) (*entry, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, ErrIDRequired
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	return e, nil
}
