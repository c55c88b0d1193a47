package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// ExtractionEvent is published for every completed extraction.
type ExtractionEvent struct {
	UserID      string    `json:"user_id"`
	Language    string    `json:"language"`
	Task        TaskData  `json:"task"`
	ExtractedAt time.Time `json:"extracted_at"`
}

func (e ExtractionEvent) Validate() error {
	if e.UserID == "" {
		return errors.New("extraction event: user_id is required")
	}
	if e.ExtractedAt.IsZero() {
		return errors.New("extraction event: extracted_at is required")
	}
	return nil
}

type Publisher interface {
	PublishExtraction(ctx context.Context, ev ExtractionEvent) error
}

// ExtractionRecord is the persisted form of an ExtractionEvent.
type ExtractionRecord struct {
	ID          uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID      string    `gorm:"type:varchar(64);index;not null" json:"user_id"`
	Language    string    `gorm:"type:varchar(8);not null" json:"language"`
	Title       string    `gorm:"type:varchar(255);not null" json:"title"`
	Priority    string    `gorm:"type:varchar(16);not null" json:"priority"`
	TaskType    string    `gorm:"type:varchar(16);not null" json:"task_type"`
	ProjectID   *string   `gorm:"type:varchar(64);index" json:"project_id"`
	MissionID   *string   `gorm:"type:varchar(64)" json:"mission_id"`
	Confidence  float64   `gorm:"not null" json:"confidence"`
	Payload     string    `gorm:"type:text;not null" json:"payload"`
	ExtractedAt time.Time `gorm:"index;not null" json:"extracted_at"`
	CreatedAt   time.Time `json:"created_at"`
}

func (ExtractionRecord) TableName() string { return "task_extractions" }

type RecordRepo struct {
	db *gorm.DB
}

func NewRecordRepo(db *gorm.DB) *RecordRepo {
	return &RecordRepo{db: db}
}

func (r *RecordRepo) AutoMigrate() error {
	return r.db.AutoMigrate(&ExtractionRecord{})
}

func (r *RecordRepo) Save(ctx context.Context, ev ExtractionEvent) (*ExtractionRecord, error) {
	if err := ev.Validate(); err != nil {
		return nil, err
	}
	payload, err := json.Marshal(ev.Task)
	if err != nil {
		return nil, fmt.Errorf("encode task: %w", err)
	}
	rec := &ExtractionRecord{
		UserID:      ev.UserID,
		Language:    ev.Language,
		Title:       ev.Task.Title,
		Priority:    ev.Task.Priority,
		TaskType:    ev.Task.TaskType,
		ProjectID:   ev.Task.ProjectID,
		MissionID:   ev.Task.MissionID,
		Confidence:  ev.Task.Confidence,
		Payload:     string(payload),
		ExtractedAt: ev.ExtractedAt,
	}
	if err := r.db.WithContext(ctx).Create(rec).Error; err != nil {
		return nil, err
	}
	return rec, nil
}

// ListByUser returns the newest records first.
func (r *RecordRepo) ListByUser(ctx context.Context, userID string, limit int) ([]ExtractionRecord, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	var out []ExtractionRecord
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("extracted_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}
