package registry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeopardy-coordinator/roomserver/internal/v1/roomactor"
)

type mockSender struct{}

func (mockSender) SendTo(participantID string, msg any) {}
func (mockSender) Broadcast(roomCode string, msg any)   {}
func (mockSender) NotifyRoomFinished(roomCode string)   {}

func newTestRegistry() *Registry {
	return New(Deps{
		Sender: mockSender{},
		Timings: roomactor.Timings{
			TieWindow:          250 * time.Millisecond,
			TieBuffer:          50 * time.Millisecond,
			FinalAnswerTimeout: 30 * time.Second,
		},
		GraceWindow:    30 * time.Millisecond,
		FinishedRetain: 30 * time.Millisecond,
	})
}

func TestCreateOrJoinHost_GeneratesCode(t *testing.T) {
	reg := newTestRegistry()

	r, err := reg.CreateOrJoinHost("host-1", "")
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.Len(t, r.Code, codeLength)
	assert.Equal(t, 1, reg.Count())
}

func TestCreateOrJoinHost_ExistingCodeReturnsSameRoom(t *testing.T) {
	reg := newTestRegistry()

	first, err := reg.CreateOrJoinHost("host-1", "ABCD")
	require.NoError(t, err)

	second, err := reg.CreateOrJoinHost("host-1", "ABCD")
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, 1, reg.Count())
}

func TestLookup_UnknownCodeNotFound(t *testing.T) {
	reg := newTestRegistry()
	_, ok := reg.Lookup("ZZZZ")
	assert.False(t, ok)
}

func TestScheduleReap_EvictsEmptyRoomAfterGraceWindow(t *testing.T) {
	reg := newTestRegistry()
	r, err := reg.CreateOrJoinHost("host-1", "ABCD")
	require.NoError(t, err)

	reg.ScheduleReap(r.Code)
	assert.Eventually(t, func() bool {
		return reg.Count() == 0
	}, time.Second, 5*time.Millisecond)
}

func TestCancelReap_StopsEviction(t *testing.T) {
	reg := newTestRegistry()
	r, err := reg.CreateOrJoinHost("host-1", "ABCD")
	require.NoError(t, err)

	reg.ScheduleReap(r.Code)
	reg.CancelReap(r.Code)

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, 1, reg.Count())
}

func TestShutdown_StopsTimersAndClosesRoomsWithoutPanicking(t *testing.T) {
	reg := newTestRegistry()
	_, err := reg.CreateOrJoinHost("host-1", "ABCD")
	require.NoError(t, err)
	_, err = reg.CreateOrJoinHost("host-2", "EFGH")
	require.NoError(t, err)

	reg.ScheduleReap("ABCD")
	reg.Shutdown()
	assert.Equal(t, 2, reg.Count())
}
