package session

import (
	"sync"
	"time"

	"ai-refinery-be/internal/model"
	"ai-refinery-be/pkg/companion"
)

// Session owns the companion state for one conversation. All access to its
// mutable fields goes through its lock; long generation calls must run
// between locked sections, never inside them.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu           sync.Mutex
	lastAccessed time.Time
	companions   map[string]*companion.Companion
	middleware   map[string]interface{}
}

func NewSession(id string) *Session {
	now := time.Now()
	return &Session{
		ID:           id,
		CreatedAt:    now,
		lastAccessed: now,
		companions:   make(map[string]*companion.Companion),
		middleware:   make(map[string]interface{}),
	}
}

// NewFromSnapshot rebuilds a session from its persisted image.
func NewFromSnapshot(snap *model.SessionSnapshot) *Session {
	sess := NewSession(snap.SessionID)
	if createdAt, err := time.Parse(time.RFC3339Nano, snap.CreatedAt); err == nil {
		sess.CreatedAt = createdAt
	}
	if lastAccessed, err := time.Parse(time.RFC3339Nano, snap.LastAccessed); err == nil {
		sess.lastAccessed = lastAccessed
	}
	if snap.Middleware != nil {
		sess.middleware = snap.Middleware
	}
	for kind, comp := range snap.Companions {
		if comp != nil {
			sess.companions[kind] = comp
		}
	}
	return sess
}

// Touch refreshes the last-accessed time.
func (s *Session) Touch() {
	s.mu.Lock()
	s.lastAccessed = time.Now()
	s.mu.Unlock()
}

func (s *Session) LastAccessed() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastAccessed
}

// EnsureCompanion returns the companion of the given kind, constructing it
// with create on first access. The created flag tells the caller a snapshot
// is due.
func (s *Session) EnsureCompanion(kind string, create func() *companion.Companion) (*companion.Companion, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastAccessed = time.Now()

	if comp, ok := s.companions[kind]; ok {
		return comp, false
	}
	comp := create()
	s.companions[kind] = comp
	return comp, true
}

// WithCompanion runs fn on the named companion while holding the session
// lock. The companion pointer must not escape fn.
func (s *Session) WithCompanion(kind string, fn func(c *companion.Companion) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastAccessed = time.Now()

	comp, ok := s.companions[kind]
	if !ok {
		return &companion.ProtocolError{
			Code:    companion.CodeInvalidRequest,
			Message: "unknown companion kind: " + kind,
		}
	}
	return fn(comp)
}

// Accessor adapts one companion of this session to the engine's locked
// access contract.
func (s *Session) Accessor(kind string) companion.Accessor {
	return companionAccessor{sess: s, kind: kind}
}

type companionAccessor struct {
	sess *Session
	kind string
}

func (a companionAccessor) With(fn func(c *companion.Companion) error) error {
	return a.sess.WithCompanion(a.kind, fn)
}

// MiddlewareGet reads one cross-call bookkeeping value.
func (s *Session) MiddlewareGet(key string) (interface{}, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	value, ok := s.middleware[key]
	return value, ok
}

// MiddlewareSet stores one cross-call bookkeeping value.
func (s *Session) MiddlewareSet(key string, value interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.middleware[key] = value
}

// Snapshot produces a detached serializable image of the session, safe to
// marshal and persist off the lock.
func (s *Session) Snapshot() *model.SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	companions := make(map[string]*companion.Companion, len(s.companions))
	for kind, comp := range s.companions {
		companions[kind] = comp.Clone()
	}

	middleware := make(map[string]interface{}, len(s.middleware))
	for key, value := range s.middleware {
		middleware[key] = value
	}

	return &model.SessionSnapshot{
		SessionID:    s.ID,
		CreatedAt:    s.CreatedAt.Format(time.RFC3339Nano),
		LastAccessed: s.lastAccessed.Format(time.RFC3339Nano),
		Middleware:   middleware,
		Companions:   companions,
	}
}

// Metadata summarizes the session for inspection callers.
type Metadata struct {
	SessionID       string
	CreatedAt       time.Time
	LastAccessed    time.Time
	CompanionKinds  []string
	TotalRequests   int
	TotalIterations int
}

// Metadata counts requests (slots) and iterations (critiques) across all
// companions of this session.
func (s *Session) Metadata() Metadata {
	s.mu.Lock()
	defer s.mu.Unlock()

	meta := Metadata{
		SessionID:    s.ID,
		CreatedAt:    s.CreatedAt,
		LastAccessed: s.lastAccessed,
	}
	for kind, comp := range s.companions {
		meta.CompanionKinds = append(meta.CompanionKinds, kind)
		meta.TotalRequests += len(comp.Slots)
		for _, slot := range comp.Slots {
			meta.TotalIterations += len(slot.Critiques)
		}
	}
	return meta
}
