package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/testprep-api/internal/domain/entity"
	apperrors "github.com/yourusername/testprep-api/internal/pkg/errors"
)

// MockTokenIssuerForAuth implements TokenIssuer.
type MockTokenIssuerForAuth struct {
	mock.Mock
}

func (m *MockTokenIssuerForAuth) GenerateToken(user *entity.User) (string, error) {
	args := m.Called(user)
	return args.String(0), args.Error(1)
}

func newTestAuthService(t *testing.T, store *memStore, tokens TokenIssuer) *AuthService {
	t.Helper()
	svc, err := NewAuthService(memUserRepo{store}, store, tokens)
	require.NoError(t, err)
	svc.avatar = func() int { return 7 }
	return svc
}

func TestAuthService_Signup_Success(t *testing.T) {
	// Arrange
	store := newMemStore()
	tokens := new(MockTokenIssuerForAuth)
	tokens.On("GenerateToken", mock.AnythingOfType("*entity.User")).Return("signed-token", nil).Once()
	svc := newTestAuthService(t, store, tokens)

	// Act
	res, err := svc.Signup(context.Background(), SignupInput{
		FullName: " Ana Lima ",
		Username: "AnaL",
		Email:    "Ana@Example.com",
		Password: "secret123",
	})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "signed-token", res.Token)
	assert.Equal(t, "anal", res.User.Username)
	assert.Equal(t, "ana@example.com", res.User.Email)
	assert.Equal(t, "Ana Lima", res.User.FullName)
	assert.Equal(t, 7, res.User.AvatarID)
	assert.Equal(t, 1, res.User.Level)
	assert.NotEqual(t, "secret123", store.user(res.User.ID).Password, "password is stored hashed")
	tokens.AssertExpectations(t)
}

func TestAuthService_Signup_Duplicate(t *testing.T) {
	store := newMemStore()
	store.addUser(entity.User{Username: "ana", Email: "ana@example.com"})
	tokens := new(MockTokenIssuerForAuth)
	svc := newTestAuthService(t, store, tokens)

	_, err := svc.Signup(context.Background(), SignupInput{
		FullName: "Other", Username: "ANA", Email: "other@example.com", Password: "secret123",
	})

	assert.ErrorIs(t, err, apperrors.ErrConflict)
	tokens.AssertNotCalled(t, "GenerateToken", mock.Anything)
}

func TestAuthService_Signup_Validation(t *testing.T) {
	svc := newTestAuthService(t, newMemStore(), new(MockTokenIssuerForAuth))

	_, err := svc.Signup(context.Background(), SignupInput{FullName: "A", Username: "a", Email: "a@b.c", Password: "123"})
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = svc.Signup(context.Background(), SignupInput{Username: "a", Email: "a@b.c", Password: "123456"})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestAuthService_Login_TracksStreak(t *testing.T) {
	// Arrange
	store := newMemStore()
	yesterday := time.Date(2026, 4, 9, 18, 0, 0, 0, time.UTC)
	seed := entity.User{
		Username:    "ben",
		Email:       "ben@example.com",
		Password:    "secret123",
		LoginStreak: 2,
		LastLogin:   &yesterday,
	}
	require.NoError(t, seed.BeforeSave(nil))
	user := store.addUser(seed)

	tokens := new(MockTokenIssuerForAuth)
	tokens.On("GenerateToken", mock.AnythingOfType("*entity.User")).Return("tok", nil)
	svc := newTestAuthService(t, store, tokens)
	svc.now = func() time.Time { return time.Date(2026, 4, 10, 8, 0, 0, 0, time.UTC) }

	// Act
	res, err := svc.Login(context.Background(), "  BEN ", "secret123")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "tok", res.Token)
	assert.Equal(t, 3, res.User.LoginStreak)
	assert.ElementsMatch(t, []entity.BadgeID{entity.BadgeDailyLogin, entity.BadgeStreak3}, res.UnlockedBadges)
	stored := store.user(user.ID)
	assert.Equal(t, 3, stored.LoginStreak)
	assert.True(t, stored.Badges.Has(entity.BadgeStreak3))

	// A second login the same day changes nothing.
	res, err = svc.Login(context.Background(), "ben@example.com", "secret123")
	require.NoError(t, err)
	assert.Empty(t, res.UnlockedBadges)
	assert.Equal(t, 3, store.user(user.ID).LoginStreak)
}

func TestAuthService_Login_InvalidCredentials(t *testing.T) {
	store := newMemStore()
	hashed := entity.User{Username: "cleo", Email: "cleo@example.com", Password: "secret123"}
	require.NoError(t, hashed.BeforeSave(nil))
	store.addUser(hashed)
	tokens := new(MockTokenIssuerForAuth)
	svc := newTestAuthService(t, store, tokens)

	_, err := svc.Login(context.Background(), "cleo", "wrong")
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)

	_, err = svc.Login(context.Background(), "nobody", "secret123")
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized, "an unknown user looks like a wrong password")

	tokens.AssertNotCalled(t, "GenerateToken", mock.Anything)
}

func TestAuthService_Me(t *testing.T) {
	store := newMemStore()
	user := store.addUser(entity.User{Username: "dan", Email: "dan@example.com"})
	svc := newTestAuthService(t, store, new(MockTokenIssuerForAuth))

	got, err := svc.Me(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, "dan", got.Username)

	_, err = svc.Me(context.Background(), 999)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
