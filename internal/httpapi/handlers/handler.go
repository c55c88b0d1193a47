package handlers

import (
	"context"
	"time"

	"github.com/suPer8Hu/agent-services/internal/chat"
	"github.com/suPer8Hu/agent-services/internal/tasks"
)

// CacheStatus reports the reference cache state for the task health check.
type CacheStatus interface {
	Status() (hasData bool, lastUpdate time.Time)
}

// RecordLister reads persisted extractions.
type RecordLister interface {
	ListByUser(ctx context.Context, userID string, limit int) ([]tasks.ExtractionRecord, error)
}

// Handler serves both services; each router only uses the fields it needs.
type Handler struct {
	ChatSvc *chat.Service
	TaskSvc *tasks.Service
	Cache   CacheStatus
	// Records is nil when no database is configured.
	Records RecordLister
}

func NewChatHandler(svc *chat.Service) *Handler {
	return &Handler{ChatSvc: svc}
}

func NewTaskHandler(svc *tasks.Service, cache CacheStatus) *Handler {
	return &Handler{TaskSvc: svc, Cache: cache}
}
