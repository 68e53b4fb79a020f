package postgres

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yourusername/testprep-api/internal/domain/entity"
	apperrors "github.com/yourusername/testprep-api/internal/pkg/errors"
)

// UserRepo implements repository.UserRepository with gorm.
type UserRepo struct {
	db *gorm.DB
}

func NewUserRepo(db *gorm.DB) *UserRepo {
	return &UserRepo{db: db}
}

func (r *UserRepo) Create(ctx context.Context, user *entity.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		if isUniqueViolation(err) {
			return apperrors.ErrConflict
		}
		return err
	}
	return nil
}

func (r *UserRepo) GetByID(ctx context.Context, id uint) (*entity.User, error) {
	var user entity.User
	err := r.db.WithContext(ctx).First(&user, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *UserRepo) GetByIdentifier(ctx context.Context, identifier string) (*entity.User, error) {
	var user entity.User
	err := r.db.WithContext(ctx).
		Where("email = ? OR username = ?", identifier, identifier).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *UserRepo) ExistsByEmailOrUsername(ctx context.Context, email, username string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.User{}).
		Where("email = ? OR username = ?", email, username).
		Count(&count).Error
	return count > 0, err
}

// profileColumns are the columns a profile update may touch. Statistics are owned by
// SaveStats and login state by SaveLogin, both under a row lock.
var profileColumns = []string{"full_name", "avatar_id", "password", "goal", "plan", "plan_progress", "updated_at"}

func (r *UserRepo) Update(ctx context.Context, user *entity.User) error {
	res := r.db.WithContext(ctx).Model(user).Select(profileColumns).Updates(user)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *UserRepo) SaveLogin(ctx context.Context, tx *gorm.DB, user *entity.User) error {
	res := tx.WithContext(ctx).Model(&entity.User{}).Where("id = ?", user.ID).Updates(map[string]interface{}{
		"login_streak": user.LoginStreak,
		"last_login":   user.LastLogin,
		"badges":       user.Badges,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *UserRepo) LockByID(ctx context.Context, tx *gorm.DB, id uint) (*entity.User, error) {
	var user entity.User
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&user, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *UserRepo) SaveStats(ctx context.Context, tx *gorm.DB, user *entity.User) error {
	res := tx.WithContext(ctx).Model(&entity.User{}).Where("id = ?", user.ID).Updates(map[string]interface{}{
		"xp":              user.XP,
		"level":           user.Level,
		"tests_taken":     user.TestsTaken,
		"average_score":   user.AverageScore,
		"last_test_taken": user.LastTestTaken,
		"badges":          user.Badges,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *UserRepo) GetLeaderboard(ctx context.Context, limit int) ([]entity.User, error) {
	var users []entity.User
	err := r.db.WithContext(ctx).
		Select("id", "full_name", "username", "avatar_id", "level", "xp").
		Where("is_admin = ?", false).
		Order("xp DESC, id ASC").
		Limit(limit).
		Find(&users).Error
	return users, err
}

func (r *UserRepo) List(ctx context.Context, limit, offset int) ([]entity.User, int64, error) {
	var (
		users []entity.User
		total int64
	)
	if err := r.db.WithContext(ctx).Model(&entity.User{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := r.db.WithContext(ctx).
		Order("id ASC").
		Limit(limit).
		Offset(offset).
		Find(&users).Error; err != nil {
		return nil, 0, err
	}
	return users, total, nil
}
