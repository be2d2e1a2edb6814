package contract

import (
	"context"

	"ai-refinery-be/internal/model"
)

// SnapshotRepository persists serialized session state for warm recovery.
// Load returns (nil, nil) when no snapshot exists for the id.
type SnapshotRepository interface {
	Save(ctx context.Context, snapshot *model.SessionSnapshot) error
	Load(ctx context.Context, sessionID string) (*model.SessionSnapshot, error)
	Delete(ctx context.Context, sessionID string) error
}
