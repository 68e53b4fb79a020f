package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/yourusername/testprep-api/internal/domain/entity"
	"github.com/yourusername/testprep-api/internal/domain/repository"
	"github.com/yourusername/testprep-api/internal/handler/dto"
	apperrors "github.com/yourusername/testprep-api/internal/pkg/errors"
)

const leaderboardCacheKey = "leaderboard:top"

const (
	defaultLeaderboardSize = 50
	defaultLeaderboardTTL  = time.Minute
	maxResultsPageSize     = 100
)

// TokenInvalidator revokes every token issued to a user so far.
type TokenInvalidator interface {
	InvalidateTokensForUser(userID uint) error
}

// LeaderboardPolicy controls the size and cache lifetime of the leaderboard.
type LeaderboardPolicy struct {
	Size     int
	CacheTTL time.Duration
}

// UserService serves profiles, result history and the leaderboard.
type UserService struct {
	userRepo    repository.UserRepository
	resultRepo  repository.ResultRepository
	cacheRepo   repository.CacheRepository
	invalidator TokenInvalidator
	leaderboard LeaderboardPolicy
}

func NewUserService(
	userRepo repository.UserRepository,
	resultRepo repository.ResultRepository,
	cacheRepo repository.CacheRepository,
	invalidator TokenInvalidator,
	leaderboard LeaderboardPolicy,
) (*UserService, error) {
	if userRepo == nil || resultRepo == nil {
		return nil, fmt.Errorf("user and result repositories are required for UserService")
	}
	if leaderboard.Size <= 0 {
		leaderboard.Size = defaultLeaderboardSize
	}
	if leaderboard.CacheTTL <= 0 {
		leaderboard.CacheTTL = defaultLeaderboardTTL
	}
	return &UserService{
		userRepo:    userRepo,
		resultRepo:  resultRepo,
		cacheRepo:   cacheRepo,
		invalidator: invalidator,
		leaderboard: leaderboard,
	}, nil
}

// UpdateProfileInput carries optional profile changes; nil fields are left untouched.
type UpdateProfileInput struct {
	FullName        *string
	AvatarID        *int
	Goal            *entity.ExamGoal
	CurrentPassword string
	NewPassword     string
}

// UpdateProfile applies profile changes. Changing the password requires the current one
// and revokes all previously issued tokens.
func (s *UserService) UpdateProfile(ctx context.Context, userID uint, input UpdateProfileInput) (*entity.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if input.FullName != nil {
		name := strings.TrimSpace(*input.FullName)
		if name == "" {
			return nil, fmt.Errorf("%w: fullName cannot be empty", apperrors.ErrValidation)
		}
		user.FullName = name
	}
	if input.AvatarID != nil {
		if *input.AvatarID < 0 {
			return nil, fmt.Errorf("%w: avatarId must not be negative", apperrors.ErrValidation)
		}
		user.AvatarID = *input.AvatarID
	}
	if input.Goal != nil {
		if err := validateGoal(input.Goal); err != nil {
			return nil, err
		}
		goal := *input.Goal
		user.Goal = &goal
	}

	passwordChanged := false
	if input.NewPassword != "" {
		if input.CurrentPassword == "" || !user.CheckPassword(input.CurrentPassword) {
			return nil, fmt.Errorf("%w: current password is incorrect", apperrors.ErrUnauthorized)
		}
		if len(input.NewPassword) < minPasswordLength {
			return nil, fmt.Errorf("%w: password must be at least %d characters", apperrors.ErrValidation, minPasswordLength)
		}
		// BeforeSave hashes the plain value.
		user.Password = input.NewPassword
		passwordChanged = true
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to update user #%d: %w", userID, err)
	}

	if passwordChanged && s.invalidator != nil {
		if err := s.invalidator.InvalidateTokensForUser(userID); err != nil {
			log.Error().Err(err).Msgf("[UserService] failed to invalidate tokens for user #%d after password change", userID)
		}
	}
	s.invalidateLeaderboard()
	return user, nil
}

func validateGoal(goal *entity.ExamGoal) error {
	switch goal.Exam {
	case entity.ExamSAT, entity.ExamACT, entity.ExamAP:
	default:
		return fmt.Errorf("%w: unknown exam %q", apperrors.ErrValidation, goal.Exam)
	}
	if goal.TargetScore < 0 {
		return fmt.Errorf("%w: targetScore must not be negative", apperrors.ErrValidation)
	}
	if goal.ExamDate != "" {
		if _, err := time.Parse(examDateLayout, goal.ExamDate); err != nil {
			return fmt.Errorf("%w: examDate must be YYYY-MM-DD", apperrors.ErrValidation)
		}
	}
	return nil
}

// GetLeaderboard returns the top users by XP, served from Redis while the cache is warm.
func (s *UserService) GetLeaderboard(ctx context.Context) ([]*dto.LeaderboardUserDTO, error) {
	if s.cacheRepo != nil {
		var cached []*dto.LeaderboardUserDTO
		err := s.cacheRepo.GetJSON(leaderboardCacheKey, &cached)
		if err == nil {
			return cached, nil
		}
		if !errors.Is(err, apperrors.ErrNotFound) {
			log.Warn().Err(err).Msg("[UserService] leaderboard cache read failed")
		}
	}

	users, err := s.userRepo.GetLeaderboard(ctx, s.leaderboard.Size)
	if err != nil {
		log.Error().Err(err).Msg("[UserService] failed to load leaderboard")
		return nil, err
	}

	rows := make([]*dto.LeaderboardUserDTO, len(users))
	for i, user := range users {
		rows[i] = &dto.LeaderboardUserDTO{
			Rank:     i + 1,
			UserID:   user.ID,
			FullName: user.FullName,
			Username: user.Username,
			AvatarID: user.AvatarID,
			Level:    user.Level,
			XP:       user.XP,
		}
	}

	if s.cacheRepo != nil {
		if err := s.cacheRepo.SetJSON(leaderboardCacheKey, rows, s.leaderboard.CacheTTL); err != nil {
			log.Warn().Err(err).Msg("[UserService] failed to cache leaderboard")
		}
	}
	return rows, nil
}

// ListResults returns one page of the user's result history, newest first.
func (s *UserService) ListResults(ctx context.Context, userID uint, page, pageSize int) (*dto.PaginatedResultsResponse, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 10
	} else if pageSize > maxResultsPageSize {
		pageSize = maxResultsPageSize
	}
	offset := (page - 1) * pageSize

	results, total, err := s.resultRepo.ListByUser(ctx, userID, pageSize, offset)
	if err != nil {
		log.Error().Err(err).Msgf("[UserService] failed to list results for user #%d", userID)
		return nil, err
	}
	summaries, err := dto.NewResultSummaries(results)
	if err != nil {
		return nil, err
	}
	return &dto.PaginatedResultsResponse{
		Results: summaries,
		Total:   total,
		Page:    page,
		PerPage: pageSize,
	}, nil
}

// ListUsers returns one page of every account for the admin console.
func (s *UserService) ListUsers(ctx context.Context, page, pageSize int) (*dto.PaginatedUsersResponse, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 10
	} else if pageSize > maxResultsPageSize {
		pageSize = maxResultsPageSize
	}

	users, total, err := s.userRepo.List(ctx, pageSize, (page-1)*pageSize)
	if err != nil {
		log.Error().Err(err).Msg("[UserService] failed to list users")
		return nil, err
	}
	rows, err := dto.NewUserResponses(users)
	if err != nil {
		return nil, err
	}
	return &dto.PaginatedUsersResponse{
		Users:      rows,
		Page:       page,
		TotalPages: int((total + int64(pageSize) - 1) / int64(pageSize)),
		TotalUsers: total,
	}, nil
}

// GetResult returns a result owned by userID. Someone else's result is reported as not found.
func (s *UserService) GetResult(ctx context.Context, userID, resultID uint) (*entity.TestResult, error) {
	result, err := s.resultRepo.GetByID(ctx, resultID)
	if err != nil {
		return nil, err
	}
	if result.UserID != userID {
		return nil, apperrors.ErrNotFound
	}
	return result, nil
}

func (s *UserService) invalidateLeaderboard() {
	if s.cacheRepo == nil {
		return
	}
	if err := s.cacheRepo.Delete(leaderboardCacheKey); err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		log.Warn().Err(err).Msg("[UserService] failed to invalidate leaderboard cache")
	}
}
