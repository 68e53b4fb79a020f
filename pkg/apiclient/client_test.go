package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/testprep-api/internal/domain/entity"
	"github.com/yourusername/testprep-api/internal/handler/dto"
)

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func TestClient_LoginStartFinalize(t *testing.T) {
	// Arrange
	var finalizeAuth string
	var finalizeBody dto.FinalizeRequest
	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var req dto.LoginRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "ana", req.Identifier)
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"data":    map[string]interface{}{"token": "tok-1", "user": map[string]interface{}{"id": 1, "username": "ana"}},
		})
	})
	mux.HandleFunc("/api/tests/start", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusCreated, map[string]interface{}{
			"success": true,
			"data": map[string]interface{}{
				"sessionId":      "s-1",
				"totalQuestions": 1,
				"questions":      []map[string]interface{}{{"id": "q1", "questionText": "?", "options": []string{"a", "b"}}},
			},
		})
	})
	mux.HandleFunc("/api/tests/session/s-1/submit-and-finalize", func(w http.ResponseWriter, r *http.Request) {
		finalizeAuth = r.Header.Get("Authorization")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&finalizeBody))
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"data": map[string]interface{}{
				"result":      map[string]interface{}{"id": 9, "overallScore": 100, "xpGained": 100},
				"updatedUser": map[string]interface{}{"id": 1, "xp": 100},
			},
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	client := New(srv.URL+"/", time.Second)
	ctx := context.Background()

	// Act
	auth, err := client.Login(ctx, "ana", "secret123")
	require.NoError(t, err)
	session, err := client.StartSession(ctx, dto.StartSessionRequest{TestType: entity.TestKindSATMath})
	require.NoError(t, err)
	res, err := client.Finalize(ctx, session.SessionID, []entity.UserAnswer{{QuestionID: "q1", AnswerIndex: 0}})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "tok-1", auth.Token)
	assert.Equal(t, "q1", session.Questions[0].ID)
	assert.Equal(t, "Bearer tok-1", finalizeAuth)
	assert.Equal(t, []entity.UserAnswer{{QuestionID: "q1", AnswerIndex: 0}}, finalizeBody.Answers)
	assert.Equal(t, 100, res.Result.OverallScore)
	assert.Equal(t, int64(100), res.UpdatedUser.XP)
}

func TestClient_ErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"success":    false,
			"message":    "Test session already completed",
			"error_type": "already_completed",
		})
	}))
	defer srv.Close()

	_, err := New(srv.URL, time.Second).Finalize(context.Background(), "s-1", nil)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.True(t, apiErr.AlreadyCompleted())
}

func TestClient_UndecodableResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("<html>bad gateway</html>"))
	}))
	defer srv.Close()

	_, err := New(srv.URL, time.Second).ListTests(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 502")
}
