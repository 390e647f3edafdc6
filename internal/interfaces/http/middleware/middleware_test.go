package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"z-story-flow-api/internal/config"
	"z-story-flow-api/internal/infrastructure/persistence/memory"
	"z-story-flow-api/internal/interfaces/http/dto"
	"z-story-flow-api/pkg/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(engine *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestRequestIDPropagatesHeader(t *testing.T) {
	engine := gin.New()
	engine.Use(RequestID())

	var seen any
	engine.GET("/ping", func(c *gin.Context) {
		seen = c.Request.Context().Value(logger.RequestIDKey)
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	w := serve(engine, req)

	assert.Equal(t, "req-123", w.Header().Get(RequestIDHeader))
	assert.Equal(t, "req-123", seen)

	req = httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(RequestIDHeader, strings.Repeat("x", maxRequestIDLen+1))
	w = serve(engine, req)
	assert.Len(t, w.Header().Get(RequestIDHeader), 36)
}

func TestRecoveryReturnsEnvelope(t *testing.T) {
	engine := gin.New()
	engine.Use(Recovery())
	engine.GET("/boom", func(*gin.Context) { panic("boom") })

	w := serve(engine, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var resp dto.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "internal server error", resp.Message)
}

func TestRateLimitRejectsAfterBurst(t *testing.T) {
	engine := gin.New()
	cfg := config.RateLimitConfig{Enabled: true, RequestsPerSecond: 1, Burst: 2}
	engine.Use(RateLimit(cfg, memory.NewRateLimiter(cfg.Burst)))
	engine.POST("/v1/story-sessions", func(c *gin.Context) { c.Status(http.StatusCreated) })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := serve(engine, httptest.NewRequest(http.MethodPost, "/v1/story-sessions", nil))
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusCreated, http.StatusCreated, http.StatusTooManyRequests}, codes)
}

type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string, int, time.Duration) (bool, error) {
	return false, assert.AnError
}

func (failingLimiter) Key(clientID, endpoint string) string { return clientID + endpoint }

func TestRateLimitFailsOpen(t *testing.T) {
	engine := gin.New()
	engine.Use(RateLimit(config.RateLimitConfig{Enabled: true, RequestsPerSecond: 1}, failingLimiter{}))
	engine.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := serve(engine, httptest.NewRequest(http.MethodGet, "/ok", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimitDisabled(t *testing.T) {
	engine := gin.New()
	engine.Use(RateLimit(config.RateLimitConfig{Enabled: false}, failingLimiter{}))
	engine.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := serve(engine, httptest.NewRequest(http.MethodGet, "/ok", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
