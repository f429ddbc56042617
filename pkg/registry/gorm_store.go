package registry

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yesahmedyes/lecture-assistant/pkg/pipeline"
)

// SessionModel is the durable row for one session, keyed by session_id.
type SessionModel struct {
	Id          uuid.UUID  `gorm:"type:uuid;primaryKey"`
	Topic       string     `gorm:"type:text;not null"`
	Status      string     `gorm:"type:varchar(32);not null;index"`
	CreatedAt   time.Time  `gorm:"autoCreateTime"`
	CompletedAt *time.Time `gorm:""`
}

func (SessionModel) TableName() string {
	return "sessions"
}

// ExecutionRecordModel is one trace entry, keyed by (session_id, sequence).
type ExecutionRecordModel struct {
	SessionId   uuid.UUID      `gorm:"type:uuid;primaryKey"`
	Sequence    int            `gorm:"primaryKey"`
	Stage       string         `gorm:"type:varchar(64);not null"`
	StartedAt   time.Time      `gorm:""`
	CompletedAt time.Time      `gorm:""`
	Inputs      datatypes.JSON `gorm:"type:jsonb"`
	Outputs     datatypes.JSON `gorm:"type:jsonb"`
	Prompt      string         `gorm:"type:text"`
	Model       datatypes.JSON `gorm:"type:jsonb"`
	Decision    datatypes.JSON `gorm:"type:jsonb"`
	Error       string         `gorm:"type:text"`
}

func (ExecutionRecordModel) TableName() string {
	return "execution_records"
}

// GormStore persists sessions and trace records to Postgres.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&SessionModel{}, &ExecutionRecordModel{}); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

func (s *GormStore) SaveSession(ctx context.Context, rec SessionRecord) error {
	row := SessionModel{
		Id:          rec.ID,
		Topic:       rec.Topic,
		Status:      string(rec.Status),
		CreatedAt:   rec.CreatedAt,
		CompletedAt: rec.CompletedAt,
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"status", "completed_at"}),
	}).Create(&row).Error
}

func (s *GormStore) SaveRecord(ctx context.Context, sessionID uuid.UUID, rec pipeline.Record) error {
	row := ExecutionRecordModel{
		SessionId:   sessionID,
		Sequence:    rec.Sequence,
		Stage:       rec.Stage,
		StartedAt:   rec.StartedAt,
		CompletedAt: rec.CompletedAt,
		Inputs:      datatypes.JSON(rec.Inputs),
		Outputs:     datatypes.JSON(rec.Outputs),
		Prompt:      rec.Prompt,
		Model:       datatypes.JSON(pipeline.Snapshot(rec.Model)),
		Decision:    datatypes.JSON(pipeline.Snapshot(rec.Decision)),
		Error:       rec.Error,
	}
	// Records are immutable once appended; conflicts are ignored so a
	// replayed message cannot rewrite history.
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error
}

func (s *GormStore) DeleteSession(ctx context.Context, id uuid.UUID) error {
	if err := s.db.WithContext(ctx).Where("session_id = ?", id).Delete(&ExecutionRecordModel{}).Error; err != nil {
		return err
	}
	return s.db.WithContext(ctx).Delete(&SessionModel{Id: id}).Error
}
