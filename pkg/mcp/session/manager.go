// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package session owns the mapping from session identifiers to live transport
// bindings. All mutation goes through Manager so that identifiers stay unique
// and a closed identifier can never be registered again.
package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// State is the lifecycle state of a session identifier.
type State int

const (
	StateAbsent State = iota
	StatePending
	StateActive
	StateClosed
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "initializing"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	default:
		return "absent"
	}
}

var (
	// ErrExists is returned when creating an identifier that is already live.
	ErrExists = errors.New("session already exists")
	// ErrClosed is returned when an identifier was used by a session that has
	// since closed. Identifiers are never reused.
	ErrClosed = errors.New("session closed")
	// ErrNotFound is returned for identifiers the manager has never seen.
	ErrNotFound = errors.New("session not found")
)

// Binding is the transport object a session owns exclusively. Close releases
// its resources and is called exactly once, on removal.
type Binding interface {
	Close() error
}

// Session is a registered identifier and its binding.
type Session struct {
	ID        string
	CreatedAt time.Time
	Binding   Binding

	mu    sync.Mutex
	state State
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// Manager is safe for concurrent use.
type Manager struct {
	mu     sync.Mutex
	live   map[string]*Session
	closed map[string]struct{}
	now    func() time.Time
	logger *zap.Logger
}

// NewManager creates an empty manager.
func NewManager(logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		live:   make(map[string]*Session),
		closed: make(map[string]struct{}),
		now:    time.Now,
		logger: logger.With(zap.String("component", "sessions")),
	}
}

// NewID returns a fresh collision-resistant identifier.
func (m *Manager) NewID() string {
	return uuid.NewString()
}

// Create registers id in the pending state. It is the only way a session
// enters the manager.
func (m *Manager) Create(id string, binding Binding) (*Session, error) {
	if id == "" {
		return nil, fmt.Errorf("create session: empty id")
	}
	if binding == nil {
		return nil, fmt.Errorf("create session %s: nil binding", id)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.closed[id]; ok {
		return nil, fmt.Errorf("create session %s: %w", id, ErrClosed)
	}
	if _, ok := m.live[id]; ok {
		return nil, fmt.Errorf("create session %s: %w", id, ErrExists)
	}
	s := &Session{ID: id, CreatedAt: m.now(), Binding: binding, state: StatePending}
	m.live[id] = s
	m.logger.Debug("session created", zap.String("session_id", id), zap.Int("live", len(m.live)))
	return s, nil
}

// Activate moves a pending session to active. Activating an active session
// is a no-op.
func (m *Manager) Activate(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.closed[id]; ok {
		return fmt.Errorf("activate session %s: %w", id, ErrClosed)
	}
	s, ok := m.live[id]
	if !ok {
		return fmt.Errorf("activate session %s: %w", id, ErrNotFound)
	}
	if s.State() == StatePending {
		s.setState(StateActive)
		m.logger.Info("session active", zap.String("session_id", id))
	}
	return nil
}

// Get returns a pending or active session.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.live[id]
	return s, ok
}

// State reports the lifecycle state of an identifier.
func (m *Manager) State(id string) State {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.live[id]; ok {
		return s.State()
	}
	if _, ok := m.closed[id]; ok {
		return StateClosed
	}
	return StateAbsent
}

// Remove deletes a live session, marks its identifier closed and closes the
// binding. It reports whether a live session was removed.
func (m *Manager) Remove(id string) bool {
	m.mu.Lock()
	s, ok := m.live[id]
	if ok {
		delete(m.live, id)
		m.closed[id] = struct{}{}
		s.setState(StateClosed)
	}
	remaining := len(m.live)
	m.mu.Unlock()

	if !ok {
		return false
	}
	if err := s.Binding.Close(); err != nil {
		m.logger.Warn("session binding close failed", zap.String("session_id", id), zap.Error(err))
	}
	m.logger.Info("session closed",
		zap.String("session_id", id),
		zap.Duration("age", m.now().Sub(s.CreatedAt)),
		zap.Int("live", remaining))
	return true
}

// Len is the number of pending and active sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.live)
}

// CloseAll removes every live session. Used at process shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	ids := make([]string, 0, len(m.live))
	for id := range m.live {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	for _, id := range ids {
		m.Remove(id)
	}
}
