package middleware

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ExtractUintParam validates a numeric URL parameter and stores it in the context as uint.
func ExtractUintParam(paramName, contextKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseUint(c.Param(paramName), 10, 32)
		if err != nil || id == 0 {
			abortBadParam(c, paramName)
			return
		}
		c.Set(contextKey, uint(id))
		c.Next()
	}
}

// ExtractUUIDParam validates a UUID URL parameter and stores its canonical string form.
func ExtractUUIDParam(paramName, contextKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := uuid.Parse(c.Param(paramName))
		if err != nil {
			abortBadParam(c, paramName)
			return
		}
		c.Set(contextKey, id.String())
		c.Next()
	}
}

func abortBadParam(c *gin.Context, paramName string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
		"success":    false,
		"message":    fmt.Sprintf("Invalid %s", paramName),
		"error_type": "validation_error",
	})
}
