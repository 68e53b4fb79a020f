package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/testprep-api/internal/config"
	"github.com/yourusername/testprep-api/pkg/auth"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// MockTokenParserForMiddleware implements TokenParser.
type MockTokenParserForMiddleware struct {
	mock.Mock
}

func (m *MockTokenParserForMiddleware) ParseToken(tokenString string) (*auth.JWTCustomClaims, error) {
	args := m.Called(tokenString)
	claims, _ := args.Get(0).(*auth.JWTCustomClaims)
	return claims, args.Error(1)
}

// fakeCounter is an in-memory counterStore.
type fakeCounter struct {
	mu          sync.Mutex
	counts      map[string]int64
	ttls        map[string]time.Duration
	err         error
	failExpires int
	expireCalls int
}

func newFakeCounter() *fakeCounter {
	return &fakeCounter{counts: map[string]int64{}, ttls: map[string]time.Duration{}}
}

func (f *fakeCounter) Incr(_ context.Context, key string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return redis.NewIntResult(0, f.err)
	}
	f.counts[key]++
	return redis.NewIntResult(f.counts[key], nil)
}

func (f *fakeCounter) Expire(_ context.Context, key string, expiration time.Duration) *redis.BoolCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.expireCalls++
	if f.failExpires > 0 {
		f.failExpires--
		return redis.NewBoolResult(false, errors.New("expire timed out"))
	}
	f.ttls[key] = expiration
	return redis.NewBoolResult(true, nil)
}

func (f *fakeCounter) TTL(_ context.Context, key string) *redis.DurationCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	ttl, ok := f.ttls[key]
	if !ok {
		return redis.NewDurationResult(noExpiry, nil)
	}
	return redis.NewDurationResult(ttl, nil)
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func protectedRouter(tokens TokenParser) *gin.Engine {
	m := NewAuthMiddleware(tokens)
	r := gin.New()
	r.GET("/me", m.RequireAuth(), func(c *gin.Context) {
		id, _ := UserID(c)
		c.JSON(http.StatusOK, gin.H{"user_id": id, "is_admin": c.GetBool(ContextKeyIsAdmin)})
	})
	r.GET("/admin", m.RequireAuth(), m.AdminOnly(), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func TestRequireAuth_ValidToken(t *testing.T) {
	// Arrange
	tokens := new(MockTokenParserForMiddleware)
	tokens.On("ParseToken", "good").Return(&auth.JWTCustomClaims{UserID: 7}, nil)
	r := protectedRouter(tokens)
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer good")
	w := httptest.NewRecorder()

	// Act
	r.ServeHTTP(w, req)

	// Assert
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, float64(7), body["user_id"])
	assert.Equal(t, false, body["is_admin"])
	tokens.AssertExpectations(t)
}

func TestRequireAuth_Rejections(t *testing.T) {
	tokens := new(MockTokenParserForMiddleware)
	tokens.On("ParseToken", "expired").Return(nil, auth.ErrTokenExpired)
	tokens.On("ParseToken", "revoked").Return(nil, auth.ErrTokenInvalidated)
	tokens.On("ParseToken", "junk").Return(nil, auth.ErrTokenMalformed)
	r := protectedRouter(tokens)

	cases := []struct {
		header    string
		errorType string
	}{
		{"", "token_missing"},
		{"Token abc", "token_format"},
		{"Bearer", "token_format"},
		{"Bearer expired", "token_expired"},
		{"Bearer revoked", "token_invalidated"},
		{"Bearer junk", "token_invalid"},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		w := httptest.NewRecorder()

		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code, tc.header)
		body := decodeBody(t, w)
		assert.Equal(t, false, body["success"])
		assert.Equal(t, tc.errorType, body["error_type"], tc.header)
	}
}

func TestAdminOnly(t *testing.T) {
	tokens := new(MockTokenParserForMiddleware)
	tokens.On("ParseToken", "user").Return(&auth.JWTCustomClaims{UserID: 1}, nil)
	tokens.On("ParseToken", "admin").Return(&auth.JWTCustomClaims{UserID: 2, IsAdmin: true}, nil)
	r := protectedRouter(tokens)

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer user")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer admin")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestExtractParams(t *testing.T) {
	r := gin.New()
	r.GET("/results/:id", ExtractUintParam("id", "resultID"), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"id": c.GetUint("resultID")})
	})
	r.GET("/sessions/:id", ExtractUUIDParam("id", "sessionID"), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"id": c.GetString("sessionID")})
	})

	cases := []struct {
		path   string
		status int
	}{
		{"/results/12", http.StatusOK},
		{"/results/0", http.StatusBadRequest},
		{"/results/abc", http.StatusBadRequest},
		{"/sessions/0b7e4f3c-9a51-4c5e-8d2a-6f1b3c9e7a10", http.StatusOK},
		{"/sessions/not-a-uuid", http.StatusBadRequest},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tc.path, nil))
		assert.Equal(t, tc.status, w.Code, tc.path)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/sessions/0B7E4F3C-9A51-4C5E-8D2A-6F1B3C9E7A10", nil))
	assert.Equal(t, "0b7e4f3c-9a51-4c5e-8d2a-6f1b3c9e7a10", decodeBody(t, w)["id"])
}

func TestRateLimiter_BlocksAfterLimit(t *testing.T) {
	// Arrange
	counter := newFakeCounter()
	rl := &RateLimiter{redisClient: counter}
	r := gin.New()
	r.POST("/login", rl.Limit(RateLimitConfig{MaxRequests: 2, Window: time.Minute, KeyPrefix: "rl:test"}), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	// Act
	codes := make([]int, 0, 3)
	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		last = httptest.NewRecorder()
		r.ServeHTTP(last, httptest.NewRequest(http.MethodPost, "/login", nil))
		codes = append(codes, last.Code)
	}

	// Assert
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
	assert.Equal(t, "60", last.Header().Get("Retry-After"))
	assert.Equal(t, "0", last.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, "rate_limited", decodeBody(t, last)["error_type"])
}

func TestRateLimiter_ReArmsLostExpiry(t *testing.T) {
	// Arrange
	counter := newFakeCounter()
	counter.failExpires = 1
	rl := &RateLimiter{redisClient: counter}
	r := gin.New()
	r.POST("/login", rl.Limit(RateLimitConfig{MaxRequests: 5, Window: 45 * time.Second, KeyPrefix: "rl:test"}), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	// Act
	first := httptest.NewRecorder()
	r.ServeHTTP(first, httptest.NewRequest(http.MethodPost, "/login", nil))
	second := httptest.NewRecorder()
	r.ServeHTTP(second, httptest.NewRequest(http.MethodPost, "/login", nil))

	// Assert
	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, 2, counter.expireCalls, "the failed expire is retried once, then the key keeps its TTL")
	require.Len(t, counter.ttls, 1)
	for _, ttl := range counter.ttls {
		assert.Equal(t, 45*time.Second, ttl)
	}
	assert.Equal(t, "45", first.Header().Get("X-RateLimit-Reset"))
}

func TestRateLimiter_FailsOpen(t *testing.T) {
	counter := newFakeCounter()
	counter.err = errors.New("redis down")
	rl := &RateLimiter{redisClient: counter}
	r := gin.New()
	r.GET("/x", rl.LimitByIP(RateLimitConfig{MaxRequests: 1, Window: time.Minute, KeyPrefix: "rl:ip"}), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	}
}

func TestRateLimiter_LimitByUserSeparatesUsers(t *testing.T) {
	counter := newFakeCounter()
	rl := &RateLimiter{redisClient: counter}
	r := gin.New()
	r.POST("/finalize", func(c *gin.Context) {
		if c.GetHeader("X-User") == "b" {
			c.Set(ContextKeyUserID, uint(2))
		} else {
			c.Set(ContextKeyUserID, uint(1))
		}
	}, rl.LimitByUser(RateLimitConfig{MaxRequests: 1, Window: time.Minute, KeyPrefix: "rl:fin"}), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	send := func(user string) int {
		req := httptest.NewRequest(http.MethodPost, "/finalize", nil)
		req.Header.Set("X-User", user)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, send("a"))
	assert.Equal(t, http.StatusTooManyRequests, send("a"))
	assert.Equal(t, http.StatusOK, send("b"))
	assert.Equal(t, int64(2), counter.counts["rl:fin:u1"])
}

func TestRateLimitConfigs_FromSettings(t *testing.T) {
	cfg := config.RateLimitConfig{AuthLimit: 0, LoginLimit: 3, WindowSec: 10, FinalizeLimit: 0}

	assert.Equal(t, 20, AuthRateLimitConfig(cfg).MaxRequests)
	assert.Equal(t, 60, AuthIPRateLimitConfig(cfg).MaxRequests)
	assert.Equal(t, "rl:auth:ip", AuthIPRateLimitConfig(cfg).KeyPrefix)
	assert.Equal(t, 3, LoginRateLimitConfig(cfg).MaxRequests)
	assert.Equal(t, 10*time.Second, LoginRateLimitConfig(cfg).Window)
	assert.Equal(t, 30, FinalizeRateLimitConfig(cfg).MaxRequests)
	assert.Equal(t, time.Minute, FinalizeRateLimitConfig(config.RateLimitConfig{}).Window)
}
