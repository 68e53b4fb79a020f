package repository

import (
	"context"

	"github.com/yourusername/testprep-api/internal/domain/entity"
	"gorm.io/gorm"
)

// UserRepository stores user accounts and their cumulative statistics.
type UserRepository interface {
	Create(ctx context.Context, user *entity.User) error
	GetByID(ctx context.Context, id uint) (*entity.User, error)
	// GetByIdentifier looks a user up by email or username.
	GetByIdentifier(ctx context.Context, identifier string) (*entity.User, error)
	ExistsByEmailOrUsername(ctx context.Context, email, username string) (bool, error)
	// Update writes profile fields only (name, avatar, password, goal, plan).
	Update(ctx context.Context, user *entity.User) error
	// LockByID loads the user with a row lock held until tx ends.
	LockByID(ctx context.Context, tx *gorm.DB, id uint) (*entity.User, error)
	// SaveStats writes the aggregate columns touched by a finalized test.
	SaveStats(ctx context.Context, tx *gorm.DB, user *entity.User) error
	// SaveLogin writes the login streak, last login and badges.
	SaveLogin(ctx context.Context, tx *gorm.DB, user *entity.User) error
	// GetLeaderboard returns non-admin users ordered by XP.
	GetLeaderboard(ctx context.Context, limit int) ([]entity.User, error)
	// List returns one page of all accounts, admins included, ordered by id, plus the total count.
	List(ctx context.Context, limit, offset int) ([]entity.User, int64, error)
}
