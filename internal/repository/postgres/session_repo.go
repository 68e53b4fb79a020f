package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yourusername/testprep-api/internal/domain/entity"
	apperrors "github.com/yourusername/testprep-api/internal/pkg/errors"
)

type SessionRepo struct {
	db *gorm.DB
}

func NewSessionRepo(db *gorm.DB) *SessionRepo {
	return &SessionRepo{db: db}
}

func (r *SessionRepo) Create(ctx context.Context, session *entity.TestSession) error {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	if session.Answers == nil {
		session.Answers = entity.AnswerMap{}
	}
	session.Completed = false
	return r.db.WithContext(ctx).Create(session).Error
}

func (r *SessionRepo) GetByID(ctx context.Context, id string) (*entity.TestSession, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, apperrors.ErrNotFound
	}
	var session entity.TestSession
	err := r.db.WithContext(ctx).First(&session, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &session, nil
}

// MarkCompleted is the single write that decides which finalize call wins.
func (r *SessionRepo) MarkCompleted(ctx context.Context, tx *gorm.DB, id string, ownerID uint, answers entity.AnswerMap) error {
	if answers == nil {
		answers = entity.AnswerMap{}
	}
	res := tx.WithContext(ctx).Model(&entity.TestSession{}).
		Where("id = ? AND owner_id = ? AND completed = ?", id, ownerID, false).
		Updates(map[string]interface{}{
			"answers":    answers,
			"completed":  true,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 1 {
		return nil
	}

	var count int64
	if err := tx.WithContext(ctx).Model(&entity.TestSession{}).
		Where("id = ? AND owner_id = ?", id, ownerID).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return apperrors.ErrAlreadyCompleted
	}
	return apperrors.ErrNotFound
}

func (r *SessionRepo) Delete(ctx context.Context, tx *gorm.DB, id string) error {
	return tx.WithContext(ctx).Delete(&entity.TestSession{}, "id = ?", id).Error
}

func (r *SessionRepo) DeleteStale(ctx context.Context, olderThan time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("created_at < ?", olderThan).Delete(&entity.TestSession{})
	return res.RowsAffected, res.Error
}
