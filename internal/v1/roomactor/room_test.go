package roomactor

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/jeopardy-coordinator/roomserver/internal/v1/game"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeSender records every message handed to it, keyed by participant id for
// SendTo and by room code for Broadcast, so tests can assert on the exact
// frames a handler produced without standing up a real transport.Hub.
type fakeSender struct {
	mu        sync.Mutex
	toParty   map[string][]any
	broadcast []any
	finished  []string
}

func newFakeSender() *fakeSender {
	return &fakeSender{toParty: make(map[string][]any)}
}

func (s *fakeSender) SendTo(participantID string, msg any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.toParty[participantID] = append(s.toParty[participantID], msg)
}

func (s *fakeSender) Broadcast(roomCode string, msg any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.broadcast = append(s.broadcast, msg)
}

func (s *fakeSender) NotifyRoomFinished(roomCode string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finished = append(s.finished, roomCode)
}

func (s *fakeSender) last(participantID string) any {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := s.toParty[participantID]
	if len(msgs) == 0 {
		return nil
	}
	return msgs[len(msgs)-1]
}

func (s *fakeSender) lastBroadcast() any {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.broadcast) == 0 {
		return nil
	}
	return s.broadcast[len(s.broadcast)-1]
}

func (s *fakeSender) broadcastCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.broadcast)
}

// fakePersistence lets handleSaveGame tests control and observe the I/O side
// of save_game independently of a real Backend implementation.
type fakePersistence struct {
	mu      sync.Mutex
	saved   []game.GameConfig
	saveErr error
}

func (p *fakePersistence) Save(ctx context.Context, cfg game.GameConfig) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.saveErr != nil {
		return p.saveErr
	}
	p.saved = append(p.saved, cfg)
	return nil
}

func testTimings() Timings {
	return Timings{
		TieWindow:          30 * time.Millisecond,
		TieBuffer:          10 * time.Millisecond,
		FinalAnswerTimeout: 30 * time.Second,
	}
}

// twoClueConfig builds a minimal but well-formed GameConfig: one category per
// round with two clues, a short prompt (so SpeakingTime clamps to its
// 2000ms floor), and a Final round clue.
func twoClueConfig() game.GameConfig {
	mkClue := func(id string, value int) game.Clue {
		return game.Clue{
			ID:               id,
			CategoryRef:      "cat-1",
			Value:            value,
			PromptText:       "Go",
			ExpectedResponse: "What is Go?",
		}
	}
	round := func(kind game.RoundKind) game.Round {
		return game.Round{
			Kind: kind,
			Categories: []game.Category{
				{ID: "cat-1", Name: "Languages", Clues: []game.Clue{mkClue("clue-1", 200), mkClue("clue-2", 400)}},
			},
		}
	}
	return game.GameConfig{
		ID:          "game-1",
		FirstRound:  round(game.RoundFirst),
		DoubleRound: round(game.RoundDouble),
		FinalRound: game.FinalRound{
			CategoryName:     "History",
			PromptText:       "Go",
			ExpectedResponse: "What is Go?",
		},
	}
}

func newTestRoom(sender Sender, persistence Persistence) *Room {
	return NewRoom("ABCD", "host-1", sender, nil, persistence, testTimings())
}

func loadAndStart(t *testing.T, r *Room, sender *fakeSender) {
	t.Helper()
	_, err := r.Join(context.Background(), "", "Host", game.RoleHost)
	require.NoError(t, err)

	cfg := twoClueConfig()
	r.handleLoadGame("host-1", cfg)
	require.Equal(t, game.StatusReady, r.Status)
	r.handleStartGame("host-1")
	require.Equal(t, game.StatusSelecting, r.Status)
	sender.mu.Lock()
	sender.broadcast = nil
	sender.mu.Unlock()
}

// TestJoin_S1_HostJoinThenSelectClue_SpeakingTimeUnlocksBuzzer exercises
// scenario S1: host joins, loads and starts a game, selects a clue, and the
// reveal timer auto-unlocks the buzzer after its speaking-time delay.
func TestJoin_S1_HostJoinThenSelectClue_SpeakingTimeUnlocksBuzzer(t *testing.T) {
	sender := newFakeSender()
	r := newTestRoom(sender, nil)

	hostID, err := r.Join(context.Background(), "", "Alex", game.RoleHost)
	require.NoError(t, err)
	assert.Equal(t, "host-1", hostID)

	joined, ok := sender.last("host-1").(RoomJoinedMsg)
	require.True(t, ok)
	assert.Equal(t, "ABCD", joined.RoomID)
	assert.Equal(t, "host-1", joined.PlayerID)

	loadAndStart(t, r, sender)

	r.handleSelectClue("host-1", "cat-1", "clue-1")
	assert.Equal(t, game.StatusClueRevealed, r.Status)
	assert.True(t, r.BuzzerLocked)

	assert.Eventually(t, func() bool {
		r.mu.Lock()
		defer r.mu.Unlock()
		return r.Status == game.StatusBuzzing && !r.BuzzerLocked
	}, 3*time.Second, 10*time.Millisecond, "reveal timer should auto-unlock the buzzer")

	r.Shutdown()
}

// TestHandleSelectClue_RejectsAlreadyRevealedClue covers the clue selection
// policy's reject path (spec §4.4): a clue already revealed cannot be
// selected again.
func TestHandleSelectClue_RejectsAlreadyRevealedClue(t *testing.T) {
	sender := newFakeSender()
	r := newTestRoom(sender, nil)
	loadAndStart(t, r, sender)

	r.handleSelectClue("host-1", "cat-1", "clue-1")
	r.mu.Lock()
	r.cancelTimersLocked()
	// Back on the board with the clue still marked revealed, so the
	// rejection comes from the revealed check, not the status check.
	r.Status = game.StatusSelecting
	r.mu.Unlock()

	before := sender.broadcastCount()
	r.handleSelectClue("host-1", "cat-1", "clue-1")
	// Rejected: no additional snapshot broadcast, only an error to the host.
	assert.Equal(t, before, sender.broadcastCount())
	errMsg, ok := sender.last("host-1").(ErrorMsg)
	require.True(t, ok)
	assert.NotEmpty(t, errMsg.Message)
}

// TestHandleJudgeAnswer_S4_IncorrectCascade exercises scenario S4: an
// incorrect answer returns the buzzer to the next judgeable player in
// display order instead of back to the board.
func TestHandleJudgeAnswer_S4_IncorrectCascade(t *testing.T) {
	sender := newFakeSender()
	r := newTestRoom(sender, nil)
	loadAndStart(t, r, sender)

	for _, p := range []string{"p1", "p2", "p3"} {
		_, err := r.Join(context.Background(), p, p, game.RolePlayer)
		require.NoError(t, err)
	}

	r.handleSelectClue("host-1", "cat-1", "clue-1")
	r.mu.Lock()
	r.cancelTimersLocked()
	r.Status = game.StatusBuzzing
	r.BuzzerLocked = false
	r.mu.Unlock()

	r.handleBuzz("p1", 0)
	r.handleBuzz("p2", 1)
	r.handleBuzz("p3", 2)

	// Force-resolve the tie window deterministically instead of racing the
	// real timer.
	r.mu.Lock()
	res, ok := r.arbiter.Resolve()
	require.True(t, ok)
	r.CurrentPlayer = res.Winner
	r.buzzerOrderRaw = res.BuzzerOrderRaw
	r.displayBuzzerOrder = res.DisplayBuzzOrder
	r.Status = game.StatusAnswering
	order := append([]string(nil), r.displayBuzzerOrder...)
	r.mu.Unlock()

	require.Len(t, order, 3)
	winner := order[0]

	r.handleJudgeAnswer("host-1", winner, false)
	r.mu.Lock()
	next := r.CurrentPlayer
	status := r.Status
	r.mu.Unlock()

	assert.Equal(t, order[1], next)
	assert.Equal(t, game.StatusAnswering, status)

	// Judge every remaining player incorrect; once the queue is exhausted the
	// room falls back to judging with the buzzer re-locked.
	r.handleJudgeAnswer("host-1", order[1], false)
	r.handleJudgeAnswer("host-1", order[2], false)

	r.mu.Lock()
	finalStatus := r.Status
	locked := r.BuzzerLocked
	current := r.CurrentPlayer
	r.mu.Unlock()
	assert.Equal(t, game.StatusJudging, finalStatus)
	assert.True(t, locked)
	assert.Empty(t, current)

	r.Shutdown()
}

// TestHandleJudgeAnswer_CorrectEndsTurnWithoutCascade checks the correct
// path never advances to the next judgeable player.
func TestHandleJudgeAnswer_CorrectEndsTurnWithoutCascade(t *testing.T) {
	sender := newFakeSender()
	r := newTestRoom(sender, nil)
	loadAndStart(t, r, sender)

	_, err := r.Join(context.Background(), "p1", "P1", game.RolePlayer)
	require.NoError(t, err)

	r.handleSelectClue("host-1", "cat-1", "clue-1")
	r.mu.Lock()
	r.cancelTimersLocked()
	r.Status = game.StatusAnswering
	r.CurrentPlayer = "p1"
	r.mu.Unlock()

	r.handleJudgeAnswer("host-1", "p1", true)

	r.mu.Lock()
	status := r.Status
	current := r.CurrentPlayer
	lastCorrect := r.LastCorrectPlayer
	score := r.participants["p1"].Score
	r.mu.Unlock()

	assert.Equal(t, game.StatusJudging, status)
	assert.Empty(t, current)
	assert.Equal(t, "p1", lastCorrect)
	assert.Equal(t, 200, score)
}

// TestJoin_ReconnectRebindsExistingParticipant covers the reconnect path
// (spec §4.1): presenting the same existing_participant_id re-binds rather
// than creating a second seat, and updates the display name if given.
func TestJoin_ReconnectRebindsExistingParticipant(t *testing.T) {
	sender := newFakeSender()
	r := newTestRoom(sender, nil)

	id1, err := r.Join(context.Background(), "", "Pat", game.RolePlayer)
	require.NoError(t, err)

	id2, err := r.Join(context.Background(), id1, "Pat Renamed", game.RolePlayer)
	require.NoError(t, err)

	assert.Equal(t, id1, id2)
	r.mu.Lock()
	count := len(r.participants)
	name := r.participants[id1].DisplayName
	r.mu.Unlock()
	assert.Equal(t, 1, count)
	assert.Equal(t, "Pat Renamed", name)
}

// TestJoin_RoleCollisionRejected covers spec §9 Open Question 2 generalised
// to the host: no identity other than the configured host id may join with
// role host, and the host id may not join under any other role.
func TestJoin_RoleCollisionRejected(t *testing.T) {
	sender := newFakeSender()
	r := newTestRoom(sender, nil)

	_, err := r.Join(context.Background(), "someone-else", "Imposter", game.RoleHost)
	require.Error(t, err)

	_, err = r.Join(context.Background(), "host-1", "Host as player", game.RolePlayer)
	require.Error(t, err)
}

// TestJoin_SameParticipantDifferentRoleRejected covers the role-pinning
// invariant for a non-host participant: once bound to a role, rejoining
// under a different role is a conflict rather than a silent role change.
func TestJoin_SameParticipantDifferentRoleRejected(t *testing.T) {
	sender := newFakeSender()
	r := newTestRoom(sender, nil)

	id, err := r.Join(context.Background(), "", "Pat", game.RolePlayer)
	require.NoError(t, err)

	_, err = r.Join(context.Background(), id, "Pat", game.RoleViewer)
	require.Error(t, err)
}

// TestHandleSaveGame_UnlockBeforeIO verifies spec §5's suspension-point
// rule: handleSaveGame releases the room lock before calling into
// persistence, so other handlers are never blocked behind slow I/O.
func TestHandleSaveGame_UnlockBeforeIO(t *testing.T) {
	sender := newFakeSender()
	blocking := make(chan struct{})
	persistence := &blockingPersistence{release: blocking}
	r := newTestRoom(sender, persistence)
	_, err := r.Join(context.Background(), "", "Host", game.RoleHost)
	require.NoError(t, err)

	cfg := twoClueConfig()
	r.handleLoadGame("host-1", cfg)

	done := make(chan struct{})
	go func() {
		r.handleSaveGame(context.Background(), "host-1", game.GameConfig{})
		close(done)
	}()

	// While save_game's I/O is still blocked, the room's lock must be free:
	// a concurrent update_score should proceed immediately.
	assert.Eventually(t, func() bool {
		return persistence.started()
	}, time.Second, 5*time.Millisecond)

	scoreDone := make(chan struct{})
	go func() {
		r.handleUpdateScore("host-1", "host-1", 0)
		close(scoreDone)
	}()
	select {
	case <-scoreDone:
	case <-time.After(time.Second):
		t.Fatal("handleUpdateScore blocked behind handleSaveGame's I/O; lock not released before save")
	}

	close(blocking)
	<-done

	msg, ok := sender.last("host-1").(GameSavedMsg)
	require.True(t, ok)
	assert.Equal(t, "game-1", msg.GameID)
}

type blockingPersistence struct {
	release <-chan struct{}
	mu      sync.Mutex
	begun   bool
}

func (p *blockingPersistence) Save(ctx context.Context, cfg game.GameConfig) error {
	p.mu.Lock()
	p.begun = true
	p.mu.Unlock()
	<-p.release
	return nil
}

func (p *blockingPersistence) started() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.begun
}

// TestHandleSaveGame_PrefersSubmittedConfig covers a host saving a config
// generated out-of-band that was never loaded into the live room: the
// saveGame frame's own gameConfig payload must be what gets persisted, not
// whatever (possibly nil) config the room currently has loaded.
func TestHandleSaveGame_PrefersSubmittedConfig(t *testing.T) {
	sender := newFakeSender()
	persistence := &fakePersistence{}
	r := newTestRoom(sender, persistence)
	_, err := r.Join(context.Background(), "", "Host", game.RoleHost)
	require.NoError(t, err)

	submitted := twoClueConfig()
	submitted.ID = "generated-game"
	r.handleSaveGame(context.Background(), "host-1", submitted)

	require.Len(t, persistence.saved, 1)
	assert.Equal(t, "generated-game", persistence.saved[0].ID)

	msg, ok := sender.last("host-1").(GameSavedMsg)
	require.True(t, ok)
	assert.Equal(t, "generated-game", msg.GameID)
}

// TestHandleSaveGame_DependencyErrorIsWireSafe checks a persistence failure
// is translated through roomerr.Dependency rather than leaked verbatim.
func TestHandleSaveGame_DependencyErrorIsWireSafe(t *testing.T) {
	sender := newFakeSender()
	persistence := &fakePersistence{saveErr: assertableErr{}}
	r := newTestRoom(sender, persistence)
	_, err := r.Join(context.Background(), "", "Host", game.RoleHost)
	require.NoError(t, err)
	r.handleLoadGame("host-1", twoClueConfig())

	r.handleSaveGame(context.Background(), "host-1", game.GameConfig{})

	errMsg, ok := sender.last("host-1").(ErrorMsg)
	require.True(t, ok)
	assert.Contains(t, errMsg.Message, "failed to save game")
}

type assertableErr struct{}

func (assertableErr) Error() string { return "disk full" }

// TestShutdown_CancelsAllPendingTimers exercises the goleak-verified
// cleanup path: every scheduled timer (reveal, tie, final clue) must be
// stopped by Shutdown so no goroutine outlives the room.
func TestShutdown_CancelsAllPendingTimers(t *testing.T) {
	sender := newFakeSender()
	r := newTestRoom(sender, nil)
	loadAndStart(t, r, sender)

	r.handleSelectClue("host-1", "cat-1", "clue-1")
	r.mu.Lock()
	require.NotNil(t, r.revealTimer)
	r.mu.Unlock()

	r.Shutdown()

	r.mu.Lock()
	defer r.mu.Unlock()
	assert.Nil(t, r.revealTimer)
	assert.Nil(t, r.tieTimer)
	assert.Nil(t, r.finalClueTimer)
}

// TestDispatch_MalformedFrameNeverDisconnects checks Dispatch's contract
// (spec §4.1/§7): an unmarshal failure produces a protocol error, not a
// disconnect or panic.
func TestDispatch_MalformedFrameNeverDisconnects(t *testing.T) {
	sender := newFakeSender()
	r := newTestRoom(sender, nil)

	assert.NotPanics(t, func() {
		r.Dispatch(context.Background(), "host-1", "selectClue", json.RawMessage(`not json`))
	})
	errMsg, ok := sender.last("host-1").(ErrorMsg)
	require.True(t, ok)
	assert.NotEmpty(t, errMsg.Message)
}

// TestDispatch_UnknownTypeProducesProtocolError checks the default case in
// Dispatch's switch.
func TestDispatch_UnknownTypeProducesProtocolError(t *testing.T) {
	sender := newFakeSender()
	r := newTestRoom(sender, nil)

	r.Dispatch(context.Background(), "host-1", "doesNotExist", json.RawMessage(`{}`))
	errMsg, ok := sender.last("host-1").(ErrorMsg)
	require.True(t, ok)
	assert.Contains(t, errMsg.Message, "unknown message type")
}

// TestHandleBuzz_SetsBuzzedAtAndResetClearsIt covers spec §3's data model
// (Participant.buzzed_at) and §6.1's players[].buzzedAt wire field: a buzz
// must stamp the participant, and selecting the next clue (which resets
// board selection) must clear it for the next race.
func TestHandleBuzz_SetsBuzzedAtAndResetClearsIt(t *testing.T) {
	sender := newFakeSender()
	r := newTestRoom(sender, nil)
	loadAndStart(t, r, sender)
	_, err := r.Join(context.Background(), "p1", "P1", game.RolePlayer)
	require.NoError(t, err)

	r.handleSelectClue("host-1", "cat-1", "clue-1")
	r.mu.Lock()
	r.cancelTimersLocked()
	r.Status = game.StatusBuzzing
	r.BuzzerLocked = false
	r.mu.Unlock()

	r.handleBuzz("p1", 123)

	r.mu.Lock()
	buzzedAt := r.participants["p1"].BuzzedAt
	r.mu.Unlock()
	require.NotNil(t, buzzedAt, "handleBuzz must stamp the participant's buzzed_at")
	assert.Greater(t, *buzzedAt, int64(0))

	r.mu.Lock()
	r.cancelTimersLocked()
	r.Status = game.StatusJudging
	r.mu.Unlock()
	r.handleReturnToBoard("host-1")
	r.handleSelectClue("host-1", "cat-1", "clue-2")

	r.mu.Lock()
	clearedAt := r.participants["p1"].BuzzedAt
	r.mu.Unlock()
	assert.Nil(t, clearedAt, "selecting the next clue must clear the previous buzzed_at")
}

// TestDisconnect_RemovesParticipantAndBroadcasts covers Disconnect's
// bookkeeping: the participant is removed and the room re-snapshots.
func TestDisconnect_RemovesParticipantAndBroadcasts(t *testing.T) {
	sender := newFakeSender()
	r := newTestRoom(sender, nil)
	_, err := r.Join(context.Background(), "p1", "P1", game.RolePlayer)
	require.NoError(t, err)

	before := sender.broadcastCount()
	r.Disconnect("p1", "connection closed")

	assert.Greater(t, sender.broadcastCount(), before)
	assert.False(t, r.HasHost())
	assert.True(t, r.IsEmpty())
}
