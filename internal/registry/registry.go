// Package registry holds the in-memory table of connected sessions and
// their declared capabilities. It is the single source of truth for
// whether a peer is reachable.
package registry

import (
	"sort"
	"sync"

	"screenlink/internal/clock"
	"screenlink/internal/model"
)

type Registry struct {
	mu       sync.RWMutex
	clock    clock.Clock
	sessions map[string]model.Session
}

func New() *Registry {
	return NewWithClock(clock.Real())
}

func NewWithClock(clk clock.Clock) *Registry {
	return &Registry{
		clock:    clk,
		sessions: make(map[string]model.Session),
	}
}

// Register inserts or overwrites the declared info for sessionID. An
// existing entry keeps its state and connect time; a new one starts
// available.
func (r *Registry) Register(sessionID string, info model.DeviceInfo) model.Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[sessionID]
	if !ok {
		sess = model.Session{
			ID:          sessionID,
			State:       model.StateAvailable,
			ConnectedAt: r.clock.Now(),
		}
	}
	sess.DisplayName = info.DisplayName
	sess.DeviceClass = info.DeviceClass
	if sess.DeviceClass == "" {
		sess.DeviceClass = model.DeviceUnknown
	}
	sess.DeclaredResolution = info.DeclaredResolution
	r.sessions[sessionID] = sess
	return sess
}

// Unregister removes sessionID and returns the entry it held.
func (r *Registry) Unregister(sessionID string) (model.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[sessionID]
	if ok {
		delete(r.sessions, sessionID)
	}
	return sess, ok
}

// SetState reports whether the state actually changed.
func (r *Registry) SetState(sessionID string, state model.SessionState) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[sessionID]
	if !ok || sess.State == state {
		return false
	}
	sess.State = state
	r.sessions[sessionID] = sess
	return true
}

// CompareAndSetState moves sessionID to next only if it is currently in
// from.
func (r *Registry) CompareAndSetState(sessionID string, from, next model.SessionState) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[sessionID]
	if !ok || sess.State != from || from == next {
		return false
	}
	sess.State = next
	r.sessions[sessionID] = sess
	return true
}

func (r *Registry) Get(sessionID string) (model.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sess, ok := r.sessions[sessionID]
	return sess, ok
}

// List returns a point-in-time copy ordered by connect time.
func (r *Registry) List() []model.Session {
	r.mu.RLock()
	result := make([]model.Session, 0, len(r.sessions))
	for _, sess := range r.sessions {
		result = append(result, sess)
	}
	r.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		if !result[i].ConnectedAt.Equal(result[j].ConnectedAt) {
			return result[i].ConnectedAt.Before(result[j].ConnectedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
