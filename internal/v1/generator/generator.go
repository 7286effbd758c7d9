// Package generator implements the Generator Adapter (spec §4.7): a thin
// client over an HTTP-reachable text generation service, used to produce
// clue/category content and judge free-text answers. Grounded on the
// teacher's bus.Service (internal/v1/bus/redis.go), whose
// sony/gobreaker-wrapped client this generalizes from a Redis command to an
// outbound HTTP call.
//
// The adapter is exposed only via a dedicated HTTP endpoint in cmd/v1/server
// (spec §4.7's "best-effort" framing keeps it out of the Room Actor's wire
// protocol entirely — a stalled generator call must never hold a room lock
// or block gameplay).
package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"github.com/jeopardy-coordinator/roomserver/internal/v1/metrics"
	"github.com/jeopardy-coordinator/roomserver/internal/v1/roomerr"
)

// OutputFormat constrains how the caller wants output_text interpreted.
type OutputFormat string

const (
	OutputFormatText OutputFormat = "text"
	OutputFormatJSON OutputFormat = "json"
)

// Request is the Generator Adapter's single operation input (spec §4.7).
type Request struct {
	ConversationID     string       `json:"conversation_id,omitempty"`
	SystemInstructions string       `json:"system_instructions"`
	UserPrompt         string       `json:"user_prompt"`
	OutputFormat       OutputFormat `json:"output_format"`
	OptionalTools      []string     `json:"optional_tools,omitempty"`
}

// Response is the Generator Adapter's single operation output (spec §4.7).
type Response struct {
	ConversationID string `json:"conversation_id"`
	OutputText     string `json:"output_text"`
}

// Client calls an external generator service over HTTP, circuit-broken the
// same way the teacher's bus.Service circuit-breaks Redis.
type Client struct {
	httpClient *http.Client
	endpoint   string
	apiKey     string
	cb         *gobreaker.CircuitBreaker
}

// NewClient builds a Client against endpoint, authenticating with apiKey as
// a bearer token (spec §6.4 generator_api_key).
func NewClient(endpoint, apiKey string) *Client {
	st := gobreaker.Settings{
		Name:        "generator",
		MaxRequests: 5,
		Interval:    time.Minute,
		Timeout:     15 * time.Second,
		OnStateChange: func(name string, from, to gobreaker.State) {
			var stateVal float64
			switch to {
			case gobreaker.StateClosed:
				stateVal = 0
			case gobreaker.StateOpen:
				stateVal = 1
			case gobreaker.StateHalfOpen:
				stateVal = 2
			}
			metrics.CircuitBreakerState.WithLabelValues("generator").Set(stateVal)
		},
	}
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		endpoint:   endpoint,
		apiKey:     apiKey,
		cb:         gobreaker.NewCircuitBreaker(st),
	}
}

// Generate performs the Generator Adapter's operation (spec §4.7). A
// transport/connectivity failure returns a roomerr.Dependency error; a
// response that fails to parse returns roomerr.Validation so the caller can
// retry the conversation rather than treat it as fatal (spec §7).
func (c *Client) Generate(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()

	body, err := json.Marshal(req)
	if err != nil {
		metrics.GeneratorRequestsTotal.WithLabelValues("error").Inc()
		return nil, roomerr.Dependency("failed to encode generator request", err)
	}

	result, err := c.cb.Execute(func() (any, error) {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		httpReq.Header.Set("Content-Type", "application/json")
		if c.apiKey != "" {
			httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
		}

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= 300 {
			return nil, fmt.Errorf("generator returned status %d: %s", resp.StatusCode, string(respBody))
		}
		return respBody, nil
	})

	if err != nil {
		metrics.GeneratorRequestDuration.WithLabelValues("error").Observe(time.Since(start).Seconds())
		metrics.GeneratorRequestsTotal.WithLabelValues("error").Inc()
		return nil, roomerr.Dependency("generator request failed", err)
	}

	var out Response
	if err := json.Unmarshal(result.([]byte), &out); err != nil {
		metrics.GeneratorRequestDuration.WithLabelValues("invalid_response").Observe(time.Since(start).Seconds())
		metrics.GeneratorRequestsTotal.WithLabelValues("invalid_response").Inc()
		return nil, roomerr.Validation("generator returned malformed JSON: %v", err)
	}

	metrics.GeneratorRequestDuration.WithLabelValues("ok").Observe(time.Since(start).Seconds())
	metrics.GeneratorRequestsTotal.WithLabelValues("ok").Inc()
	return &out, nil
}
