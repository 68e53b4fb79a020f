package dto

import (
	"fmt"
	"time"

	"github.com/jinzhu/copier"
	"github.com/yourusername/testprep-api/internal/domain/entity"
)

// UserResponse is the public view of a user. The password hash never leaves the server.
type UserResponse struct {
	ID            uint                 `json:"id"`
	FullName      string               `json:"fullName"`
	Username      string               `json:"username"`
	Email         string               `json:"email"`
	AvatarID      int                  `json:"avatarId"`
	IsAdmin       bool                 `json:"isAdmin"`
	XP            int64                `json:"xp"`
	Level         int                  `json:"level"`
	TestsTaken    int                  `json:"testsTaken"`
	AverageScore  int                  `json:"averageScore"`
	LastTestTaken *time.Time           `json:"lastTestTaken,omitempty"`
	LoginStreak   int                  `json:"loginStreak"`
	LastLogin     *time.Time           `json:"lastLogin,omitempty"`
	Badges        []entity.Badge       `json:"badges"`
	Goal          *entity.ExamGoal     `json:"goal,omitempty"`
	Plan          *entity.LearningPlan `json:"plan,omitempty"`
	PlanProgress  int                  `json:"planProgress"`
	CreatedAt     time.Time            `json:"createdAt"`
}

func NewUserResponse(user *entity.User) (*UserResponse, error) {
	if user == nil {
		return nil, nil
	}
	resp := &UserResponse{}
	if err := copier.Copy(resp, user); err != nil {
		return nil, fmt.Errorf("failed to map user #%d: %w", user.ID, err)
	}
	if resp.Badges == nil {
		resp.Badges = []entity.Badge{}
	}
	return resp, nil
}

// PaginatedUsersResponse is one page of the admin user listing.
type PaginatedUsersResponse struct {
	Users      []UserResponse `json:"users"`
	Page       int            `json:"page"`
	TotalPages int            `json:"totalPages"`
	TotalUsers int64          `json:"totalUsers"`
}

func NewUserResponses(users []entity.User) ([]UserResponse, error) {
	out := make([]UserResponse, 0, len(users))
	for i := range users {
		resp, err := NewUserResponse(&users[i])
		if err != nil {
			return nil, err
		}
		out = append(out, *resp)
	}
	return out, nil
}

// LeaderboardUserDTO is one row of the leaderboard.
type LeaderboardUserDTO struct {
	Rank     int    `json:"rank"`
	UserID   uint   `json:"userId"`
	FullName string `json:"fullName"`
	Username string `json:"username"`
	AvatarID int    `json:"avatarId"`
	Level    int    `json:"level"`
	XP       int64  `json:"xp"`
}

type SignupRequest struct {
	FullName string `json:"fullName" binding:"required,min=1,max=100"`
	Username string `json:"username" binding:"required,min=3,max=50"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6,max=72"`
}

// LoginRequest accepts an email or a username as the identifier.
type LoginRequest struct {
	Identifier string `json:"identifier" binding:"required"`
	Password   string `json:"password" binding:"required"`
}

type AuthResponse struct {
	Token          string           `json:"token"`
	User           *UserResponse    `json:"user"`
	UnlockedBadges []entity.BadgeID `json:"unlockedBadges,omitempty"`
}

type UpdateProfileRequest struct {
	FullName        *string          `json:"fullName" binding:"omitempty,min=1,max=100"`
	AvatarID        *int             `json:"avatarId" binding:"omitempty,min=0,max=100"`
	Goal            *entity.ExamGoal `json:"goal"`
	CurrentPassword string           `json:"currentPassword"`
	NewPassword     string           `json:"newPassword" binding:"omitempty,min=6,max=72"`
}
