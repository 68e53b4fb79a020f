package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yourusername/testprep-api/internal/domain/entity"
	"github.com/yourusername/testprep-api/internal/handler/dto"
	"github.com/yourusername/testprep-api/internal/service"
	"github.com/yourusername/testprep-api/internal/service/catalog"
)

// ContextKeySessionID is set by middleware.ExtractUUIDParam on session routes.
const ContextKeySessionID = "sessionID"

// SessionManager is implemented by service.SessionService.
type SessionManager interface {
	StartSession(ctx context.Context, ownerID uint, input service.StartSessionInput) (*entity.TestSession, error)
	GetSession(ctx context.Context, sessionID string, ownerID uint) (*entity.TestSession, error)
	Finalize(ctx context.Context, sessionID string, ownerID uint, answers []entity.UserAnswer) (*service.FinalizeOutcome, error)
}

type SessionHandler struct {
	sessions SessionManager
	catalog  *catalog.Catalog
}

func NewSessionHandler(sessions SessionManager, cat *catalog.Catalog) *SessionHandler {
	return &SessionHandler{sessions: sessions, catalog: cat}
}

// ListTests handles GET /api/tests. An optional ?category= narrows the catalogue.
func (h *SessionHandler) ListTests(c *gin.Context) {
	respond(c, http.StatusOK, h.catalog.ByCategory(c.Query("category")))
}

// Start handles POST /api/tests/start.
func (h *SessionHandler) Start(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req dto.StartSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	session, err := h.sessions.StartSession(c.Request.Context(), userID, service.StartSessionInput{
		TestKind:     req.TestType,
		IsDiagnostic: req.IsDiagnostic,
		IsAdaptive:   req.IsAdaptive,
		Topic:        req.Topic,
	})
	if err != nil {
		handleError(c, "SessionHandler", err)
		return
	}
	h.respondSession(c, http.StatusCreated, session)
}

// Get handles GET /api/tests/session/:id and lets the owner resume an open session.
func (h *SessionHandler) Get(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	session, err := h.sessions.GetSession(c.Request.Context(), c.GetString(ContextKeySessionID), userID)
	if err != nil {
		handleError(c, "SessionHandler", err)
		return
	}
	h.respondSession(c, http.StatusOK, session)
}

func (h *SessionHandler) respondSession(c *gin.Context, status int, session *entity.TestSession) {
	resp, err := dto.NewSessionResponse(session)
	if err != nil {
		handleError(c, "SessionHandler", err)
		return
	}
	respond(c, status, resp)
}

// Finalize handles POST /api/tests/session/:id/submit-and-finalize.
func (h *SessionHandler) Finalize(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req dto.FinalizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	if req.Answers == nil {
		req.Answers = []entity.UserAnswer{}
	}

	outcome, err := h.sessions.Finalize(c.Request.Context(), c.GetString(ContextKeySessionID), userID, req.Answers)
	if err != nil {
		handleError(c, "SessionHandler", err)
		return
	}

	badges := outcome.UnlockedBadges
	if badges == nil {
		badges = []entity.BadgeID{}
	}
	user, err := dto.NewUserResponse(outcome.User)
	if err != nil {
		handleError(c, "SessionHandler", err)
		return
	}
	respond(c, http.StatusOK, &dto.FinalizeResponse{
		Result:         outcome.Result,
		UpdatedUser:    user,
		UnlockedBadges: badges,
	})
}
