package form

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shaheenweb/portal/internal/observability"
	"github.com/shaheenweb/portal/model"
)

// Session pairs a wizard with its identity and expiry. Sessions live only in
// memory: form state is session-local and is discarded on expiry or after a
// completed submission flow. The embedded mutex serializes wizard access:
// a session is driven by one user, but requests can still overlap.
type Session struct {
	sync.Mutex

	ID        string
	FormID    string
	Wizard    *Wizard
	Focus     *FocusRecorder
	CreatedAt time.Time
	ExpiresAt time.Time
}

// SessionStore holds live wizard sessions with TTL-based expiry. The store
// owns the session-count metrics so the active gauge moves symmetrically
// with every create, delete, and expiry.
type SessionStore struct {
	ttl     time.Duration
	metrics *observability.Metrics

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewSessionStore creates a store whose sessions expire after ttl. metrics
// may be nil.
func NewSessionStore(ttl time.Duration, metrics *observability.Metrics) *SessionStore {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &SessionStore{
		ttl:      ttl,
		metrics:  metrics,
		sessions: make(map[string]*Session),
	}
}

// Create starts a new wizard session for the given schema. The focus
// recorder, when non-nil, should be the wizard's installed FocusSink.
func (s *SessionStore) Create(formID string, wizard *Wizard, focus *FocusRecorder) *Session {
	now := time.Now().UTC()
	sess := &Session{
		ID:        uuid.New().String(),
		FormID:    formID,
		Wizard:    wizard,
		Focus:     focus,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = sess
	s.metrics.RecordSessionStarted()
	return sess
}

// Get returns a live session and refreshes its expiry. Expired or unknown
// sessions yield SESSION_NOT_FOUND.
func (s *SessionStore) Get(id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, exists := s.sessions[id]
	if !exists {
		return nil, model.NewSessionNotFoundError(id)
	}
	now := time.Now().UTC()
	if now.After(sess.ExpiresAt) {
		delete(s.sessions, id)
		s.metrics.RecordSessionsExpired(1)
		return nil, model.NewSessionNotFoundError(id)
	}
	sess.ExpiresAt = now.Add(s.ttl)
	return sess, nil
}

// Delete removes a session.
func (s *SessionStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sessions[id]; exists {
		delete(s.sessions, id)
		s.metrics.RecordSessionEnded()
	}
}

// Len returns the number of stored sessions. For testing.
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// sweep drops expired sessions.
func (s *SessionStore) sweep() {
	now := time.Now().UTC()
	s.mu.Lock()
	defer s.mu.Unlock()
	expired := 0
	for id, sess := range s.sessions {
		if now.After(sess.ExpiresAt) {
			delete(s.sessions, id)
			expired++
		}
	}
	s.metrics.RecordSessionsExpired(expired)
}

// RunSweeper periodically evicts expired sessions until ctx is cancelled.
func (s *SessionStore) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}
