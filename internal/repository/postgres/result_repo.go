package postgres

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/yourusername/testprep-api/internal/domain/entity"
	apperrors "github.com/yourusername/testprep-api/internal/pkg/errors"
)

type ResultRepo struct {
	db *gorm.DB
}

func NewResultRepo(db *gorm.DB) *ResultRepo {
	return &ResultRepo{db: db}
}

func (r *ResultRepo) Create(ctx context.Context, tx *gorm.DB, result *entity.TestResult) error {
	if err := tx.WithContext(ctx).Create(result).Error; err != nil {
		if isUniqueViolation(err) {
			return apperrors.ErrAlreadyCompleted
		}
		return err
	}
	return nil
}

func (r *ResultRepo) GetByID(ctx context.Context, id uint) (*entity.TestResult, error) {
	var result entity.TestResult
	if err := r.db.WithContext(ctx).First(&result, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &result, nil
}

func (r *ResultRepo) GetBySessionID(ctx context.Context, sessionID string) (*entity.TestResult, error) {
	var result entity.TestResult
	if err := r.db.WithContext(ctx).Where("session_id = ?", sessionID).First(&result).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &result, nil
}

func (r *ResultRepo) ListByUser(ctx context.Context, userID uint, limit, offset int) ([]entity.TestResult, int64, error) {
	var (
		results []entity.TestResult
		total   int64
	)
	if err := r.db.WithContext(ctx).Model(&entity.TestResult{}).
		Where("user_id = ?", userID).
		Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("taken_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&results).Error; err != nil {
		return nil, 0, err
	}
	return results, total, nil
}
