package handler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yourusername/testprep-api/internal/domain/entity"
	"github.com/yourusername/testprep-api/internal/handler/dto"
	"github.com/yourusername/testprep-api/internal/handler/helper"
	"github.com/yourusername/testprep-api/internal/service"
)

// ContextKeyResultID is set by middleware.ExtractUintParam on result routes.
const ContextKeyResultID = "resultID"

// UserManager is implemented by service.UserService.
type UserManager interface {
	UpdateProfile(ctx context.Context, userID uint, input service.UpdateProfileInput) (*entity.User, error)
	GetLeaderboard(ctx context.Context) ([]*dto.LeaderboardUserDTO, error)
	ListResults(ctx context.Context, userID uint, page, pageSize int) (*dto.PaginatedResultsResponse, error)
	GetResult(ctx context.Context, userID, resultID uint) (*entity.TestResult, error)
}

// PlanManager is implemented by service.PlanService.
type PlanManager interface {
	GeneratePlan(ctx context.Context, userID, resultID uint) (*entity.User, error)
	UpdatePlanStep(ctx context.Context, userID uint, stepID string, completed bool) (*entity.User, error)
}

// ResultExporter is implemented by service.ExportService.
type ResultExporter interface {
	WriteResultsXLSX(ctx context.Context, userID uint, w io.Writer) error
}

type UserHandler struct {
	users    UserManager
	plans    PlanManager
	exporter ResultExporter
}

func NewUserHandler(users UserManager, plans PlanManager, exporter ResultExporter) *UserHandler {
	return &UserHandler{users: users, plans: plans, exporter: exporter}
}

// UpdateProfile handles PUT /api/users/me.
func (h *UserHandler) UpdateProfile(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req dto.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	user, err := h.users.UpdateProfile(c.Request.Context(), userID, service.UpdateProfileInput{
		FullName:        req.FullName,
		AvatarID:        req.AvatarID,
		Goal:            req.Goal,
		CurrentPassword: req.CurrentPassword,
		NewPassword:     req.NewPassword,
	})
	if err != nil {
		handleError(c, "UserHandler", err)
		return
	}
	respondUser(c, http.StatusOK, "UserHandler", user)
}

// GetLeaderboard handles GET /api/users/leaderboard.
func (h *UserHandler) GetLeaderboard(c *gin.Context) {
	rows, err := h.users.GetLeaderboard(c.Request.Context())
	if err != nil {
		handleError(c, "UserHandler", err)
		return
	}
	respond(c, http.StatusOK, rows)
}

// ListResults handles GET /api/users/me/results.
func (h *UserHandler) ListResults(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	page, pageSize := helper.Pagination(c)

	results, err := h.users.ListResults(c.Request.Context(), userID, page, pageSize)
	if err != nil {
		handleError(c, "UserHandler", err)
		return
	}
	respond(c, http.StatusOK, results)
}

// GetResult handles GET /api/users/me/results/:resultId.
func (h *UserHandler) GetResult(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	result, err := h.users.GetResult(c.Request.Context(), userID, c.GetUint(ContextKeyResultID))
	if err != nil {
		handleError(c, "UserHandler", err)
		return
	}
	respond(c, http.StatusOK, result)
}

// ExportResults handles GET /api/users/me/results/export and streams an XLSX workbook.
func (h *UserHandler) ExportResults(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	filename := helper.ExportFilename("results", userID, time.Now().UTC().Format("20060102"), "xlsx")
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", filename))

	if err := h.exporter.WriteResultsXLSX(c.Request.Context(), userID, c.Writer); err != nil {
		c.Header("Content-Disposition", "")
		c.Header("Content-Type", "")
		handleError(c, "UserHandler", err)
	}
}

// GeneratePlan handles POST /api/users/me/plan.
func (h *UserHandler) GeneratePlan(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req dto.GeneratePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	user, err := h.plans.GeneratePlan(c.Request.Context(), userID, req.TestResultID)
	if err != nil {
		handleError(c, "UserHandler", err)
		return
	}
	respondUser(c, http.StatusCreated, "UserHandler", user)
}

// UpdatePlanStep handles PUT /api/users/me/plan.
func (h *UserHandler) UpdatePlanStep(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req dto.UpdatePlanStepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	user, err := h.plans.UpdatePlanStep(c.Request.Context(), userID, req.StepID, req.Completed)
	if err != nil {
		handleError(c, "UserHandler", err)
		return
	}
	respondUser(c, http.StatusOK, "UserHandler", user)
}
