package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/yourusername/testprep-api/internal/domain/entity"
	"github.com/yourusername/testprep-api/internal/handler/dto"
	"github.com/yourusername/testprep-api/internal/middleware"
	apperrors "github.com/yourusername/testprep-api/internal/pkg/errors"
)

func respond(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{"success": true, "data": data})
}

func respondError(c *gin.Context, status int, message, errorType string) {
	c.JSON(status, gin.H{"success": false, "message": message, "error_type": errorType})
}

// handleError maps service errors to HTTP statuses. Unknown errors are logged and hidden.
func handleError(c *gin.Context, component string, err error) {
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		respondError(c, http.StatusNotFound, "Not found", "not_found")
	case errors.Is(err, apperrors.ErrAlreadyCompleted):
		respondError(c, http.StatusBadRequest, "Test session already completed", "already_completed")
	case errors.Is(err, apperrors.ErrFinalizeInProgress):
		respondError(c, http.StatusConflict, "Test session is being finalized", "finalize_in_progress")
	case errors.Is(err, apperrors.ErrValidation):
		respondError(c, http.StatusBadRequest, err.Error(), "validation_error")
	case errors.Is(err, apperrors.ErrUnauthorized):
		respondError(c, http.StatusUnauthorized, err.Error(), "unauthorized")
	case errors.Is(err, apperrors.ErrForbidden):
		respondError(c, http.StatusForbidden, "Forbidden", "forbidden")
	case errors.Is(err, apperrors.ErrConflict):
		respondError(c, http.StatusConflict, err.Error(), "conflict")
	default:
		log.Error().Err(err).Str("path", c.FullPath()).Msgf("[%s] internal error", component)
		respondError(c, http.StatusInternalServerError, "Internal server error", "internal_error")
	}
}

// respondUser maps a user to its public shape and writes it.
func respondUser(c *gin.Context, status int, component string, user *entity.User) {
	resp, err := dto.NewUserResponse(user)
	if err != nil {
		handleError(c, component, err)
		return
	}
	respond(c, status, resp)
}

func bindError(c *gin.Context, err error) {
	respondError(c, http.StatusBadRequest, "Invalid request data: "+err.Error(), "validation_error")
}

// currentUserID reads the id set by the auth middleware. Routes are always behind it, so a
// missing id is answered with 401.
func currentUserID(c *gin.Context) (uint, bool) {
	userID, ok := middleware.UserID(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "Not authorized", "unauthorized")
	}
	return userID, ok
}
