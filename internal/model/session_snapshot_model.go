package model

import (
	"time"

	"ai-refinery-be/pkg/companion"

	"gorm.io/datatypes"
)

// SessionSnapshot is the serializable image of one live session, written on
// every mutation and read back on a session-store miss. Timestamps travel as
// ISO-8601 strings so the blob stays storage-agnostic.
type SessionSnapshot struct {
	SessionID    string                          `json:"session_id"`
	CreatedAt    string                          `json:"created_at"`
	LastAccessed string                          `json:"last_accessed"`
	Middleware   map[string]interface{}          `json:"middleware,omitempty"`
	Companions   map[string]*companion.Companion `json:"companions"`
}

// SessionSnapshotRecord stores a snapshot as a JSONB row for warm recovery.
type SessionSnapshotRecord struct {
	SessionID string         `gorm:"type:varchar(64);primaryKey"`
	Snapshot  datatypes.JSON `gorm:"type:jsonb;not null"`
	CreatedAt time.Time      `gorm:"autoCreateTime"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime"`
}

func (SessionSnapshotRecord) TableName() string {
	return "session_snapshots"
}
