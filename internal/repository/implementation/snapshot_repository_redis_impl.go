package implementation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"ai-refinery-be/internal/model"
	"ai-refinery-be/internal/repository/contract"

	"github.com/redis/go-redis/v9"
)

const (
	snapshotKeyPrefix = "ra:session:"

	// Redis-side safety net. The session store expires sessions long before
	// this; the key TTL only cleans up after ungraceful shutdowns.
	snapshotExpiry = 24 * time.Hour
)

type SnapshotRepositoryRedisImpl struct {
	rdb *redis.Client
}

func NewRedisSnapshotRepository(rdb *redis.Client) contract.SnapshotRepository {
	return &SnapshotRepositoryRedisImpl{
		rdb: rdb,
	}
}

func snapshotKey(sessionID string) string {
	return snapshotKeyPrefix + sessionID
}

func (r *SnapshotRepositoryRedisImpl) Save(ctx context.Context, snapshot *model.SessionSnapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	return r.rdb.Set(ctx, snapshotKey(snapshot.SessionID), data, snapshotExpiry).Err()
}

func (r *SnapshotRepositoryRedisImpl) Load(ctx context.Context, sessionID string) (*model.SessionSnapshot, error) {
	data, err := r.rdb.Get(ctx, snapshotKey(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var snapshot model.SessionSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return &snapshot, nil
}

func (r *SnapshotRepositoryRedisImpl) Delete(ctx context.Context, sessionID string) error {
	return r.rdb.Del(ctx, snapshotKey(sessionID)).Err()
}
