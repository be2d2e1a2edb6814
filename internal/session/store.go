package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"ai-refinery-be/internal/pkg/logger"
	"ai-refinery-be/internal/repository/contract"

	"github.com/google/uuid"
)

// Config tunes the store's expiry behaviour.
type Config struct {
	TTL           time.Duration
	SweepInterval time.Duration
	MaxSessions   int
}

// ExpiredFunc is invoked for every session removed by an expiry sweep,
// outside the store lock.
type ExpiredFunc func(sessionID string, idleFor time.Duration)

// Store owns all live sessions. Persistence is read-through only: a miss
// consults the snapshot repository before creating a fresh session; writes
// happen elsewhere (save-after-mutate through the snapshot pipeline).
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	cfg  Config
	repo contract.SnapshotRepository
	log  logger.ILogger

	onExpired ExpiredFunc
	sweeping  atomic.Bool
	done      chan struct{}
	stopOnce  sync.Once
}

func NewStore(cfg Config, repo contract.SnapshotRepository, log logger.ILogger) *Store {
	if cfg.TTL <= 0 {
		cfg.TTL = 30 * time.Minute
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = 10 * time.Minute
	}
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = 100
	}
	return &Store{
		sessions: make(map[string]*Session),
		cfg:      cfg,
		repo:     repo,
		log:      log,
		done:     make(chan struct{}),
	}
}

// OnExpired installs the expiry hook. Must be set before StartCleanupTask.
func (st *Store) OnExpired(fn ExpiredFunc) {
	st.onExpired = fn
}

// LoadOrCreate resolves a session by id, generating a fresh id when blank.
// A store miss first tries warm recovery from the snapshot repository. The
// created flag is true only for brand-new sessions, not recovered ones.
func (st *Store) LoadOrCreate(ctx context.Context, sessionID string) (*Session, bool, error) {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	st.mu.RLock()
	sess, ok := st.sessions[sessionID]
	st.mu.RUnlock()
	if ok {
		sess.Touch()
		return sess, false, nil
	}

	// Recovery runs off the store lock; a racing creator wins via the
	// double-checked insert below.
	var restored *Session
	if st.repo != nil {
		snap, err := st.repo.Load(ctx, sessionID)
		if err != nil {
			st.log.Warn("session_store", "snapshot load failed, starting fresh", map[string]interface{}{
				"session_id": sessionID,
				"error":      err.Error(),
			})
		} else if snap != nil {
			restored = NewFromSnapshot(snap)
			restored.Touch()
		}
	}

	st.mu.Lock()
	if existing, ok := st.sessions[sessionID]; ok {
		st.mu.Unlock()
		existing.Touch()
		return existing, false, nil
	}
	created := restored == nil
	if restored == nil {
		restored = NewSession(sessionID)
	}
	st.sessions[sessionID] = restored
	count := len(st.sessions)
	st.mu.Unlock()

	if count > st.cfg.MaxSessions {
		go st.Sweep()
	}

	return restored, created, nil
}

// Get looks up a live session without creating one.
func (st *Store) Get(sessionID string) (*Session, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	sess, ok := st.sessions[sessionID]
	return sess, ok
}

// Count returns the number of live sessions.
func (st *Store) Count() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

// Sweep removes sessions idle past the TTL. At most one sweep runs at a
// time; callers that lose the race return immediately.
func (st *Store) Sweep() {
	if !st.sweeping.CompareAndSwap(false, true) {
		return
	}
	defer st.sweeping.Store(false)

	now := time.Now()
	type expired struct {
		id      string
		idleFor time.Duration
	}
	var removed []expired

	st.mu.Lock()
	for id, sess := range st.sessions {
		idleFor := now.Sub(sess.LastAccessed())
		if idleFor > st.cfg.TTL {
			removed = append(removed, expired{id: id, idleFor: idleFor})
			delete(st.sessions, id)
		}
	}
	remaining := len(st.sessions)
	st.mu.Unlock()

	if len(removed) == 0 {
		return
	}

	st.log.Info("session_store", "expired sessions removed", map[string]interface{}{
		"expired":   len(removed),
		"remaining": remaining,
	})
	if st.onExpired != nil {
		for _, e := range removed {
			st.onExpired(e.id, e.idleFor)
		}
	}
}

// StartCleanupTask launches the periodic expiry sweep. It runs until
// Shutdown is called.
func (st *Store) StartCleanupTask() {
	go func() {
		ticker := time.NewTicker(st.cfg.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				st.Sweep()
			case <-st.done:
				return
			}
		}
	}()
}

// Shutdown stops the cleanup task and releases all live sessions.
func (st *Store) Shutdown() {
	st.stopOnce.Do(func() {
		close(st.done)
	})

	st.mu.Lock()
	count := len(st.sessions)
	st.sessions = make(map[string]*Session)
	st.mu.Unlock()

	if count > 0 {
		st.log.Info("session_store", "released sessions on shutdown", map[string]interface{}{
			"count": count,
		})
	}
}
