package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yourusername/testprep-api/internal/domain/entity"
	"github.com/yourusername/testprep-api/internal/handler/dto"
	"github.com/yourusername/testprep-api/internal/service"
)

// Authenticator is implemented by service.AuthService.
type Authenticator interface {
	Signup(ctx context.Context, input service.SignupInput) (*service.AuthResult, error)
	Login(ctx context.Context, identifier, password string) (*service.AuthResult, error)
	Me(ctx context.Context, userID uint) (*entity.User, error)
}

type AuthHandler struct {
	authService Authenticator
}

func NewAuthHandler(authService Authenticator) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// Signup handles POST /api/auth/signup.
func (h *AuthHandler) Signup(c *gin.Context) {
	var req dto.SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	res, err := h.authService.Signup(c.Request.Context(), service.SignupInput{
		FullName: req.FullName,
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		handleError(c, "AuthHandler", err)
		return
	}
	respondAuth(c, http.StatusCreated, res)
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	res, err := h.authService.Login(c.Request.Context(), req.Identifier, req.Password)
	if err != nil {
		handleError(c, "AuthHandler", err)
		return
	}
	respondAuth(c, http.StatusOK, res)
}

// Me handles GET /api/auth/me.
func (h *AuthHandler) Me(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	user, err := h.authService.Me(c.Request.Context(), userID)
	if err != nil {
		handleError(c, "AuthHandler", err)
		return
	}
	respondUser(c, http.StatusOK, "AuthHandler", user)
}

func respondAuth(c *gin.Context, status int, res *service.AuthResult) {
	user, err := dto.NewUserResponse(res.User)
	if err != nil {
		handleError(c, "AuthHandler", err)
		return
	}
	respond(c, status, &dto.AuthResponse{
		Token:          res.Token,
		User:           user,
		UnlockedBadges: res.UnlockedBadges,
	})
}
