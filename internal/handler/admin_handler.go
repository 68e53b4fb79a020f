package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/yourusername/testprep-api/internal/handler/dto"
	"github.com/yourusername/testprep-api/internal/handler/helper"
	"github.com/yourusername/testprep-api/internal/middleware"
)

// SessionSweeper removes abandoned sessions.
type SessionSweeper interface {
	Sweep(ctx context.Context) (int64, error)
}

// UserLister pages through every account.
type UserLister interface {
	ListUsers(ctx context.Context, page, pageSize int) (*dto.PaginatedUsersResponse, error)
}

type AdminHandler struct {
	sweeper SessionSweeper
	users   UserLister
}

func NewAdminHandler(sweeper SessionSweeper, users UserLister) *AdminHandler {
	return &AdminHandler{sweeper: sweeper, users: users}
}

// ListUsers handles GET /api/admin/users?page=&page_size=.
func (h *AdminHandler) ListUsers(c *gin.Context) {
	page, pageSize := helper.Pagination(c)
	users, err := h.users.ListUsers(c.Request.Context(), page, pageSize)
	if err != nil {
		handleError(c, "AdminHandler", err)
		return
	}
	respond(c, http.StatusOK, users)
}

// SweepSessions handles POST /api/admin/sessions/sweep.
func (h *AdminHandler) SweepSessions(c *gin.Context) {
	deleted, err := h.sweeper.Sweep(c.Request.Context())
	if err != nil {
		handleError(c, "AdminHandler", err)
		return
	}
	userID, _ := middleware.UserID(c)
	log.Info().Msgf("[AdminHandler] admin %d swept %d stale sessions", userID, deleted)
	respond(c, http.StatusOK, gin.H{"deleted": deleted})
}
