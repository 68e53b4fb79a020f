package repository

import (
	"context"

	"github.com/yourusername/testprep-api/internal/domain/entity"
	"gorm.io/gorm"
)

// ResultRepository is append-only: results are never updated after creation.
type ResultRepository interface {
	// Create returns apperrors.ErrAlreadyCompleted when a result for the session exists.
	Create(ctx context.Context, tx *gorm.DB, result *entity.TestResult) error
	GetByID(ctx context.Context, id uint) (*entity.TestResult, error)
	GetBySessionID(ctx context.Context, sessionID string) (*entity.TestResult, error)
	ListByUser(ctx context.Context, userID uint, limit, offset int) ([]entity.TestResult, int64, error)
}
