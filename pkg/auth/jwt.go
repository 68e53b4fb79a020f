package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/rs/zerolog/log"
	"github.com/yourusername/testprep-api/internal/domain/entity"
	"github.com/yourusername/testprep-api/internal/domain/repository"
)

var (
	ErrTokenMalformed   = errors.New("token is malformed")
	ErrTokenExpired     = errors.New("token is expired")
	ErrTokenInvalid     = errors.New("token validation failed")
	ErrTokenInvalidated = errors.New("token has been invalidated")
)

const issuer = "testprep-api"

// JWTCustomClaims carries the user identity inside the token.
type JWTCustomClaims struct {
	UserID  uint `json:"user_id"`
	IsAdmin bool `json:"is_admin"`
	jwt.RegisteredClaims
}

// JWTService issues and verifies HS256 access tokens.
type JWTService struct {
	secret     []byte
	expiration time.Duration
	// cacheRepo keeps per-user invalidation marks; nil disables the check.
	cacheRepo repository.CacheRepository
	now       func() time.Time
}

func NewJWTService(secret string, expirationHrs int, cacheRepo repository.CacheRepository) (*JWTService, error) {
	if secret == "" {
		return nil, errors.New("JWT secret cannot be empty")
	}
	if expirationHrs <= 0 {
		expirationHrs = 24 * 30
	}
	return &JWTService{
		secret:     []byte(secret),
		expiration: time.Duration(expirationHrs) * time.Hour,
		cacheRepo:  cacheRepo,
		now:        time.Now,
	}, nil
}

func (s *JWTService) GenerateToken(user *entity.User) (string, error) {
	now := s.now()
	claims := &JWTCustomClaims{
		UserID:  user.ID,
		IsAdmin: user.IsAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.expiration)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
			Subject:   strconv.FormatUint(uint64(user.ID), 10),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.secret)
	if err != nil {
		log.Error().Err(err).Msgf("[JWT] failed to sign token for user ID=%d", user.ID)
		return "", err
	}
	return tokenString, nil
}

// ParseToken verifies the signature, expiry and invalidation status of a token.
func (s *JWTService) ParseToken(tokenString string) (*JWTCustomClaims, error) {
	claims := &JWTCustomClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		var ve *jwt.ValidationError
		if errors.As(err, &ve) {
			switch {
			case ve.Errors&jwt.ValidationErrorMalformed != 0:
				return nil, ErrTokenMalformed
			case ve.Errors&jwt.ValidationErrorExpired != 0:
				return nil, ErrTokenExpired
			}
		}
		log.Debug().Err(err).Msg("[JWT] token rejected")
		return nil, ErrTokenInvalid
	}
	if !token.Valid || claims.UserID == 0 {
		return nil, ErrTokenInvalid
	}

	if s.isInvalidated(claims) {
		log.Info().Msgf("[JWT] token for user ID=%d was issued before invalidation", claims.UserID)
		return nil, ErrTokenInvalidated
	}
	return claims, nil
}

// InvalidateTokensForUser rejects every token issued to the user before the current second.
func (s *JWTService) InvalidateTokensForUser(userID uint) error {
	if s.cacheRepo == nil {
		return nil
	}
	return s.cacheRepo.Set(invalidationKey(userID), strconv.FormatInt(s.now().Unix(), 10), s.expiration)
}

func (s *JWTService) isInvalidated(claims *JWTCustomClaims) bool {
	if s.cacheRepo == nil || claims.IssuedAt == nil {
		return false
	}
	raw, err := s.cacheRepo.Get(invalidationKey(claims.UserID))
	if err != nil {
		// Missing key or a cache outage: accept the token.
		return false
	}
	invalidatedAt, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return false
	}
	return claims.IssuedAt.Time.Unix() < invalidatedAt
}

func invalidationKey(userID uint) string {
	return fmt.Sprintf("auth:invalidated:%d", userID)
}
