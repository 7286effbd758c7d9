package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jeopardy-coordinator/roomserver/internal/v1/bus"
	"github.com/jeopardy-coordinator/roomserver/internal/v1/logging"
	"go.uber.org/zap"
)

// GeneratorChecker checks reachability of the AI content generator endpoint.
type GeneratorChecker interface {
	Check(ctx context.Context, endpoint string) string
}

// DefaultGeneratorChecker issues a lightweight HTTP request to verify the
// generator endpoint is reachable.
type DefaultGeneratorChecker struct {
	client *http.Client
}

// Check verifies HTTP connectivity to the generator endpoint.
func (c *DefaultGeneratorChecker) Check(ctx context.Context, endpoint string) string {
	if endpoint == "" {
		return "healthy" // Generator not configured: nothing to check.
	}

	client := c.client
	if client == nil {
		client = &http.Client{Timeout: 2 * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, endpoint, nil)
	if err != nil {
		logging.Error(ctx, "Failed to build generator health check request", zap.Error(err), zap.String("endpoint", endpoint))
		return "unhealthy"
	}

	resp, err := client.Do(req)
	if err != nil {
		logging.Error(ctx, "Generator health check request failed", zap.Error(err), zap.String("endpoint", endpoint))
		return "unhealthy"
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 500 {
		logging.Warn(ctx, "Generator endpoint returned server error", zap.Int("status", resp.StatusCode))
		return "unhealthy"
	}

	return "healthy"
}

// Handler manages health check endpoints
type Handler struct {
	redisService      *bus.Service
	generatorEndpoint string
	generatorEnabled  bool
	generatorChecker  GeneratorChecker
}

// NewHandler creates a new health check handler
func NewHandler(redisService *bus.Service, generatorEndpoint string) *Handler {
	return &Handler{
		redisService:      redisService,
		generatorEndpoint: generatorEndpoint,
		generatorEnabled:  generatorEndpoint != "",
		generatorChecker:  &DefaultGeneratorChecker{},
	}
}

// LivenessResponse represents the liveness probe response
type LivenessResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// ReadinessResponse represents the readiness probe response
type ReadinessResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks"`
	Timestamp string            `json:"timestamp"`
}

// Liveness handles the liveness probe endpoint
// GET /health/live
// Returns 200 if the process is alive (no dependency checks)
func (h *Handler) Liveness(c *gin.Context) {
	response := LivenessResponse{
		Status:    "alive",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	c.JSON(http.StatusOK, response)
}

// Readiness handles the readiness probe endpoint
// GET /health/ready
// Returns 200 only if all critical dependencies are healthy
// Returns 503 if any dependency is unhealthy
func (h *Handler) Readiness(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	checks := make(map[string]string)
	allHealthy := true

	// Check Redis connectivity
	redisStatus := h.checkRedis(ctx)
	checks["redis"] = redisStatus
	if redisStatus != "healthy" {
		allHealthy = false
	}

	// Check generator endpoint connectivity (if configured)
	if h.generatorEnabled {
		generatorStatus := h.checkGenerator(ctx)
		checks["generator"] = generatorStatus
		if generatorStatus != "healthy" {
			allHealthy = false
		}
	}

	status := "ready"
	statusCode := http.StatusOK
	if !allHealthy {
		status = "unavailable"
		statusCode = http.StatusServiceUnavailable
	}

	response := ReadinessResponse{
		Status:    status,
		Checks:    checks,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	c.JSON(statusCode, response)
}

// checkRedis verifies Redis connectivity using PING command
func (h *Handler) checkRedis(ctx context.Context) string {
	// If Redis is not enabled (single-instance mode), consider it healthy
	if h.redisService == nil {
		return "healthy"
	}

	if err := h.redisService.Ping(ctx); err != nil {
		logging.Error(ctx, "Redis health check failed", zap.Error(err))
		return "unhealthy"
	}

	return "healthy"
}

// checkGenerator verifies connectivity to the configured generator endpoint.
func (h *Handler) checkGenerator(ctx context.Context) string {
	if h.generatorChecker == nil {
		return "unhealthy"
	}
	return h.generatorChecker.Check(ctx, h.generatorEndpoint)
}

// HealthCheckResponse is a generic health check response for backward compatibility
type HealthCheckResponse struct {
	Status string         `json:"status"`
	Data   map[string]any `json:"data,omitempty"`
}

// MarshalJSON implements custom JSON marshaling for better formatting
func (r ReadinessResponse) MarshalJSON() ([]byte, error) {
	type Alias ReadinessResponse
	return json.Marshal(&struct {
		*Alias
	}{
		Alias: (*Alias)(&r),
	})
}
