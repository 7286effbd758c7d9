package ratelimit

import (
	"testing"

	"github.com/jeopardy-coordinator/roomserver/internal/v1/config"
	"github.com/stretchr/testify/assert"
)

func TestStandardMiddleware(t *testing.T) {
	// Create config with string rate limit values
	cfg := &config.Config{
		RateLimitApiGlobal:       "100-M",
		RateLimitApiRooms:        "50-M",
		RateLimitWsIp:            "50-M",
		RateLimitBuzzParticipant: "20-S",
	}

	// Create rate limiter
	rl, err := NewRateLimiter(cfg, nil)
	assert.NoError(t, err)

	// Get standard middleware
	middleware := rl.StandardMiddleware()
	assert.NotNil(t, middleware)
}
