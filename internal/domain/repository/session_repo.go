package repository

import (
	"context"
	"time"

	"github.com/yourusername/testprep-api/internal/domain/entity"
	"gorm.io/gorm"
)

// SessionRepository is the durable store for in-progress test sessions.
type SessionRepository interface {
	// Create assigns a fresh id when the session has none.
	Create(ctx context.Context, session *entity.TestSession) error
	GetByID(ctx context.Context, id string) (*entity.TestSession, error)
	// MarkCompleted records the answers and flips completed only if it was false.
	// Returns apperrors.ErrAlreadyCompleted or apperrors.ErrNotFound when no row changed.
	MarkCompleted(ctx context.Context, tx *gorm.DB, id string, ownerID uint, answers entity.AnswerMap) error
	Delete(ctx context.Context, tx *gorm.DB, id string) error
	// DeleteStale removes sessions created before olderThan.
	DeleteStale(ctx context.Context, olderThan time.Time) (int64, error)
}
