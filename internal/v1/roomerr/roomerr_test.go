package roomerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew_WireMessage(t *testing.T) {
	err := New(KindRole, "host only")
	assert.Equal(t, "host only", WireMessage(err))
}

func TestWrap_HidesCauseFromWire(t *testing.T) {
	cause := errors.New("connection refused")
	err := Dependency("generator unavailable", cause)

	assert.Equal(t, "generator unavailable", WireMessage(err))
	assert.Contains(t, err.Error(), "connection refused")
	assert.ErrorIs(t, err, ErrDependency)
}

func TestErrorsIs_MatchesKindSentinel(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
	}{
		{"protocol", Protocol("bad frame"), ErrProtocol},
		{"role", Role("not host"), ErrRole},
		{"state", State("wrong status"), ErrState},
		{"not found", NotFound("no such room"), ErrNotFound},
		{"validation", Validation("wager too high"), ErrValidation},
		{"dependency", Dependency("save failed", errors.New("disk full")), ErrDependency},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.err, tt.sentinel)
		})
	}
}

func TestAs_ExtractsTypedError(t *testing.T) {
	wrapped := fmt.Errorf("handling buzz: %w", State("buzzer locked"))

	e, ok := As(wrapped)
	assert.True(t, ok)
	assert.Equal(t, KindState, e.Kind)
	assert.Equal(t, "buzzer locked", e.Message)
}

func TestWireMessage_NonTypedError(t *testing.T) {
	assert.Equal(t, "internal error", WireMessage(errors.New("boom")))
}

func TestKindString(t *testing.T) {
	tests := map[Kind]string{
		KindProtocol:   "protocol",
		KindRole:       "role",
		KindState:      "state",
		KindNotFound:   "not_found",
		KindValidation: "validation",
		KindDependency: "dependency",
	}
	for k, want := range tests {
		assert.Equal(t, want, k.String())
	}
}
