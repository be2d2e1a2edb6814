package implementation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"ai-refinery-be/internal/model"
	"ai-refinery-be/internal/repository/contract"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type SnapshotRepositoryGormImpl struct {
	db *gorm.DB
}

func NewGormSnapshotRepository(db *gorm.DB) contract.SnapshotRepository {
	return &SnapshotRepositoryGormImpl{
		db: db,
	}
}

func (r *SnapshotRepositoryGormImpl) Save(ctx context.Context, snapshot *model.SessionSnapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	res := r.db.WithContext(ctx).
		Model(&model.SessionSnapshotRecord{}).
		Where("session_id = ?", snapshot.SessionID).
		Update("snapshot", datatypes.JSON(data))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}

	record := model.SessionSnapshotRecord{
		SessionID: snapshot.SessionID,
		Snapshot:  datatypes.JSON(data),
	}
	return r.db.WithContext(ctx).Create(&record).Error
}

func (r *SnapshotRepositoryGormImpl) Load(ctx context.Context, sessionID string) (*model.SessionSnapshot, error) {
	var record model.SessionSnapshotRecord
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var snapshot model.SessionSnapshot
	if err := json.Unmarshal(record.Snapshot, &snapshot); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return &snapshot, nil
}

func (r *SnapshotRepositoryGormImpl) Delete(ctx context.Context, sessionID string) error {
	return r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Delete(&model.SessionSnapshotRecord{}).Error
}
