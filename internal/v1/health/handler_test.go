package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLiveness(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name           string
		expectedStatus int
		expectedBody   string
	}{
		{
			name:           "liveness always returns 200",
			expectedStatus: http.StatusOK,
			expectedBody:   "alive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewHandler(nil, "")

			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest("GET", "/health/live", nil)

			handler.Liveness(c)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.expectedBody)
			assert.Contains(t, w.Body.String(), "timestamp")
		})
	}
}

func TestReadiness_NilRedis(t *testing.T) {
	gin.SetMode(gin.TestMode)

	// Create handler with nil Redis (single-instance mode) and no generator configured
	handler := &Handler{
		redisService:     nil,
		generatorEnabled: false,
	}

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest("GET", "/health/ready", nil)

	handler.Readiness(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ready")
	assert.Contains(t, w.Body.String(), "healthy")
}

type MockGeneratorChecker struct {
	status string
}

func (m *MockGeneratorChecker) Check(ctx context.Context, endpoint string) string {
	return m.status
}

func TestReadiness_ResponseFormat(t *testing.T) {
	gin.SetMode(gin.TestMode)

	// Use mock checker that returns healthy
	handler := &Handler{
		redisService:      nil,
		generatorEnabled:  true,
		generatorEndpoint: "http://generator.internal/generate",
		generatorChecker:  &MockGeneratorChecker{status: "healthy"},
	}

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest("GET", "/health/ready", nil)

	handler.Readiness(c)

	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	assert.Contains(t, body, "status")
	assert.Contains(t, body, "checks")
	assert.Contains(t, body, "timestamp")
	assert.Contains(t, body, "redis")
	assert.Contains(t, body, "generator")
}

func TestReadiness_GeneratorUnhealthy(t *testing.T) {
	gin.SetMode(gin.TestMode)

	handler := &Handler{
		redisService:      nil,
		generatorEnabled:  true,
		generatorEndpoint: "http://generator.internal/generate",
		generatorChecker:  &MockGeneratorChecker{status: "unhealthy"},
	}

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest("GET", "/health/ready", nil)

	handler.Readiness(c)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "unavailable")
}

func TestReadiness_GeneratorDisabled(t *testing.T) {
	gin.SetMode(gin.TestMode)

	// Create handler with generator checks disabled
	handler := &Handler{
		redisService:     nil,
		generatorEnabled: false,
	}

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest("GET", "/health/ready", nil)

	handler.Readiness(c)

	assert.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	assert.Contains(t, body, "ready")
	assert.Contains(t, body, "redis")
	// Generator check should not be present when disabled
	assert.NotContains(t, body, "generator")
}

func TestLivenessEndpoint_AlwaysSucceeds(t *testing.T) {
	gin.SetMode(gin.TestMode)

	// Even with unhealthy dependencies, liveness should return 200
	handler := &Handler{
		redisService:      nil,
		generatorEnabled:  true,
		generatorEndpoint: "http://unreachable.invalid/generate",
	}

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest("GET", "/health/live", nil)

	handler.Liveness(c)

	// Liveness should always succeed
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "alive")
}

func TestNewHandler_DefaultValues(t *testing.T) {
	handler := NewHandler(nil, "http://generator.internal/generate")

	assert.NotNil(t, handler)
	assert.NotEmpty(t, handler.generatorEndpoint)
	assert.True(t, handler.generatorEnabled)
}

func TestNewHandler_NoGenerator(t *testing.T) {
	handler := NewHandler(nil, "")

	assert.NotNil(t, handler)
	assert.False(t, handler.generatorEnabled)
}
