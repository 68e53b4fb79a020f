package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/yourusername/testprep-api/internal/domain/entity"
	"github.com/yourusername/testprep-api/internal/domain/repository"
	apperrors "github.com/yourusername/testprep-api/internal/pkg/errors"
	"gorm.io/gorm"
)

const (
	minPasswordLength = 6
	avatarCount       = 30
)

// TokenIssuer signs access tokens for a user.
type TokenIssuer interface {
	GenerateToken(user *entity.User) (string, error)
}

// AuthService handles signup, login and the login streak.
type AuthService struct {
	userRepo   repository.UserRepository
	transactor repository.Transactor
	tokens     TokenIssuer
	now        func() time.Time
	avatar     func() int
}

func NewAuthService(userRepo repository.UserRepository, transactor repository.Transactor, tokens TokenIssuer) (*AuthService, error) {
	if userRepo == nil {
		return nil, fmt.Errorf("UserRepository is required for AuthService")
	}
	if transactor == nil {
		return nil, fmt.Errorf("Transactor is required for AuthService")
	}
	if tokens == nil {
		return nil, fmt.Errorf("TokenIssuer is required for AuthService")
	}
	return &AuthService{
		userRepo:   userRepo,
		transactor: transactor,
		tokens:     tokens,
		now:        time.Now,
		avatar:     func() int { return rand.Intn(avatarCount) },
	}, nil
}

type SignupInput struct {
	FullName string
	Username string
	Email    string
	Password string
}

// AuthResult is a signed-in user with a fresh token.
type AuthResult struct {
	User           *entity.User
	Token          string
	UnlockedBadges []entity.BadgeID
}

// Signup creates an account. Email and username are stored lowercased and must be unique.
func (s *AuthService) Signup(ctx context.Context, input SignupInput) (*AuthResult, error) {
	input.FullName = strings.TrimSpace(input.FullName)
	input.Email = normalizeIdentifier(input.Email)
	input.Username = normalizeIdentifier(input.Username)

	if input.FullName == "" || input.Email == "" || input.Username == "" {
		return nil, fmt.Errorf("%w: fullName, username and email are required", apperrors.ErrValidation)
	}
	if len(input.Password) < minPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", apperrors.ErrValidation, minPasswordLength)
	}

	exists, err := s.userRepo.ExistsByEmailOrUsername(ctx, input.Email, input.Username)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing users: %w", err)
	}
	if exists {
		return nil, fmt.Errorf("%w: user already exists", apperrors.ErrConflict)
	}

	user := &entity.User{
		FullName: input.FullName,
		Username: input.Username,
		Email:    input.Email,
		Password: input.Password,
		AvatarID: s.avatar(),
		Level:    1,
		Badges:   entity.BadgeList{},
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, apperrors.ErrConflict) {
			return nil, fmt.Errorf("%w: user already exists", apperrors.ErrConflict)
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	token, err := s.tokens.GenerateToken(user)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}
	log.Info().Msgf("[AuthService] user #%d signed up as %s", user.ID, user.Username)
	return &AuthResult{User: user, Token: token}, nil
}

// Login checks the credentials and, on the first login of a calendar day, advances the
// login streak under a row lock.
func (s *AuthService) Login(ctx context.Context, identifier, password string) (*AuthResult, error) {
	identifier = normalizeIdentifier(identifier)
	user, err := s.userRepo.GetByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("%w: invalid credentials", apperrors.ErrUnauthorized)
		}
		return nil, err
	}
	if !user.CheckPassword(password) {
		log.Info().Msgf("[AuthService] failed login for user #%d", user.ID)
		return nil, fmt.Errorf("%w: invalid credentials", apperrors.ErrUnauthorized)
	}

	var unlocked []entity.BadgeID
	err = s.transactor.WithinTransaction(ctx, func(tx *gorm.DB) error {
		locked, err := s.userRepo.LockByID(ctx, tx, user.ID)
		if err != nil {
			return err
		}
		changed, badges := locked.RegisterLogin(s.now())
		if changed {
			if err := s.userRepo.SaveLogin(ctx, tx, locked); err != nil {
				return err
			}
		}
		unlocked = badges
		user = locked
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record login for user #%d: %w", user.ID, err)
	}

	token, err := s.tokens.GenerateToken(user)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}
	return &AuthResult{User: user, Token: token, UnlockedBadges: unlocked}, nil
}

// Me returns the user behind a verified token.
func (s *AuthService) Me(ctx context.Context, userID uint) (*entity.User, error) {
	return s.userRepo.GetByID(ctx, userID)
}

func normalizeIdentifier(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}
