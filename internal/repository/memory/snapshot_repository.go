package memory

import (
	"context"
	"encoding/json"
	"sync"

	"ai-refinery-be/internal/model"
	"ai-refinery-be/internal/repository/contract"
)

// SnapshotRepository keeps snapshots in process memory. Suitable for tests
// and single-node development runs without Redis or Postgres.
type SnapshotRepository struct {
	mu        sync.RWMutex
	snapshots map[string][]byte
}

func NewSnapshotRepository() contract.SnapshotRepository {
	return &SnapshotRepository{
		snapshots: make(map[string][]byte),
	}
}

func (r *SnapshotRepository) Save(_ context.Context, snapshot *model.SessionSnapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshots[snapshot.SessionID] = data
	return nil
}

func (r *SnapshotRepository) Load(_ context.Context, sessionID string) (*model.SessionSnapshot, error) {
	r.mu.RLock()
	data, found := r.snapshots[sessionID]
	r.mu.RUnlock()
	if !found {
		return nil, nil
	}

	var snapshot model.SessionSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, err
	}
	return &snapshot, nil
}

func (r *SnapshotRepository) Delete(_ context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.snapshots, sessionID)
	return nil
}
