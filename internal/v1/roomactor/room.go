// Package roomactor implements the Room Actor (spec §4.3): the single
// serialising owner of one room's state, tying together the Round/Board
// Engine, Buzzer Arbiter, and Final-Jeopardy sub-machine. Grounded on the
// teacher's Room/Hub shape (internal/v1/room/room.go, handlers.go,
// methods.go): one sync.Mutex, locked/unlocked method pairs, and handlers
// that mutate then broadcast a fresh snapshot.
package roomactor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jeopardy-coordinator/roomserver/internal/v1/bus"
	"github.com/jeopardy-coordinator/roomserver/internal/v1/buzzer"
	"github.com/jeopardy-coordinator/roomserver/internal/v1/finaljeopardy"
	"github.com/jeopardy-coordinator/roomserver/internal/v1/game"
	"github.com/jeopardy-coordinator/roomserver/internal/v1/metrics"
)

// Sender delivers outbound messages to live connections. The room actor
// holds only participant ids, never connections — the transport gateway
// owns the connection registry and dereferences participant ids to sockets
// (spec §9's design note on cyclic references).
//
// NotifyRoomFinished is the "buzzer selection committed"-style reframing
// (spec §9) of a finished-game callback: the room actor has no reference to
// the Room Registry (dependency order keeps it a leaf), so it publishes
// this event through the same outbound channel used for snapshots/events
// rather than holding a function pointer into the registry's state. The
// transport gateway, which already depends on both sides, forwards it to
// the registry's finished-room retention timer (spec §3/§4.2).
type Sender interface {
	SendTo(participantID string, msg any)
	Broadcast(roomCode string, msg any)
	NotifyRoomFinished(roomCode string)
}

// Persistence is the slice of the Persistence Adapter (spec §4.7) the room
// actor needs for save_game. Issued outside the room's critical section
// (spec §5 suspension points) — results are posted back as the ack/error
// sent to the caller, never awaited with the lock held.
type Persistence interface {
	Save(ctx context.Context, cfg game.GameConfig) error
}

// Timings bundles the tunable durations from spec §6.4 that the room actor
// schedules timers against.
type Timings struct {
	TieWindow          time.Duration
	TieBuffer          time.Duration
	FinalAnswerTimeout time.Duration
}

// Room owns one room's complete state. Every mutation holds mu; handlers
// follow the teacher's exported/Locked method-pair convention.
type Room struct {
	mu sync.Mutex

	Code   string
	HostID string

	Config       *game.GameConfig
	Status       game.Status
	CurrentRound game.RoundKind
	finalActive  bool

	SelectedCategoryID string
	SelectedClueID     string
	BuzzerLocked       bool

	participants     map[string]*game.Participant
	participantOrder []string

	judgedSet map[string]bool

	buzzerOrderRaw     []string
	displayBuzzerOrder []string

	LastCorrectPlayer string
	CurrentPlayer     string

	arbiter *buzzer.Arbiter
	final   *finaljeopardy.State

	revealTimer    *time.Timer
	tieTimer       *time.Timer
	finalClueTimer *time.Timer

	createdAt int64

	sender      Sender
	bus         *bus.Service
	persistence Persistence
	timings     Timings
}

// NewRoom constructs an empty room owned by hostID, ready to accept joins.
func NewRoom(code, hostID string, sender Sender, busService *bus.Service, persistence Persistence, timings Timings) *Room {
	return &Room{
		Code:         code,
		HostID:       hostID,
		Status:       game.StatusWaiting,
		participants: make(map[string]*game.Participant),
		judgedSet:    make(map[string]bool),
		arbiter:      buzzer.NewArbiter(timings.TieWindow, timings.TieBuffer),
		sender:       sender,
		bus:          busService,
		persistence:  persistence,
		timings:      timings,
		createdAt:    time.Now().UnixMilli(),
	}
}

// Shutdown cancels any pending timers. Called when the registry reaps the
// room (spec §4.2).
func (r *Room) Shutdown() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancelTimersLocked()
}

func (r *Room) cancelTimersLocked() {
	if r.revealTimer != nil {
		r.revealTimer.Stop()
		r.revealTimer = nil
	}
	if r.tieTimer != nil {
		r.tieTimer.Stop()
		r.tieTimer = nil
	}
	if r.finalClueTimer != nil {
		r.finalClueTimer.Stop()
		r.finalClueTimer = nil
	}
}

// HasHost reports whether the configured host id currently holds a seat.
func (r *Room) HasHost() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.participants[r.HostID]
	return ok
}

// IsEmpty reports whether the room has zero bound participants.
func (r *Room) IsEmpty() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.participants) == 0
}

// StatusIs reports whether the room currently has the given status. Used by
// the registry's reaping policy (spec §3), which never touches room
// internals directly.
func (r *Room) StatusIs(status game.Status) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Status == status
}

// --- participant bookkeeping (locked/unlocked pairs, teacher convention) ---

func (r *Room) addParticipantLocked(p *game.Participant) {
	if _, exists := r.participants[p.ID]; !exists {
		r.participantOrder = append(r.participantOrder, p.ID)
	}
	r.participants[p.ID] = p
}

func (r *Room) deleteParticipantLocked(participantID string) {
	delete(r.participants, participantID)
	for i, id := range r.participantOrder {
		if id == participantID {
			r.participantOrder = append(r.participantOrder[:i], r.participantOrder[i+1:]...)
			break
		}
	}
}

func (r *Room) Disconnect(participantID string, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.participants[participantID]; !ok {
		return
	}
	slog.Info("participant disconnected", "room_code", r.Code, "participant_id", participantID, "reason", reason)
	metrics.RoomParticipants.WithLabelValues(r.Code).Dec()
	r.deleteParticipantLocked(participantID)
	r.broadcastSnapshotLocked()
}

// --- snapshot construction ---

func (r *Room) snapshotLocked() GameState {
	players := make([]PlayerView, 0, len(r.participantOrder))
	viewerCount := 0
	for _, id := range r.participantOrder {
		p := r.participants[id]
		if p.Role == game.RoleViewer {
			viewerCount++
			continue
		}
		players = append(players, PlayerView{
			ID:          p.ID,
			Name:        p.DisplayName,
			Score:       p.Score,
			BuzzedAt:    p.BuzzedAt,
			FinalWager:  p.FinalWager,
			FinalAnswer: p.FinalAnswer,
		})
	}

	judged := make([]string, 0, len(r.judgedSet))
	for id := range r.judgedSet {
		judged = append(judged, id)
	}

	round := string(r.CurrentRound)
	if r.finalActive {
		round = "final_round"
	}

	gs := GameState{
		RoomID:             r.Code,
		Status:             r.Status,
		CurrentRound:       round,
		Config:             r.Config,
		Players:            players,
		BuzzerOrder:        r.buzzerOrderRaw,
		DisplayBuzzerOrder: r.displayBuzzerOrder,
		JudgedPlayers:      judged,
		NotPickedInTies:    r.arbiter.NotPickedInTies(),
		HostID:             r.HostID,
		ViewerCount:        viewerCount,
	}

	if r.SelectedClueID != "" && r.Config != nil {
		if cat, clue, ok := r.findSelectedClueLocked(); ok {
			gs.SelectedClue = &SelectedClueView{
				CategoryID:       cat.ID,
				ClueID:           clue.ID,
				Value:            clue.Value,
				PromptText:       clue.PromptText,
				ExpectedResponse: clue.ExpectedResponse,
			}
		}
	}
	if r.CurrentPlayer != "" {
		cp := r.CurrentPlayer
		gs.CurrentPlayer = &cp
	}
	if r.LastCorrectPlayer != "" {
		lc := r.LastCorrectPlayer
		gs.LastCorrectPlayer = &lc
	}
	if r.final != nil {
		gs.FinalCountdownEnd = &r.final.CountdownEnd
		idx := r.final.JudgeIndex
		gs.FinalJudgingPlayerIndex = &idx
		gs.FinalRevealedWager = r.final.RevealedWager
		gs.FinalRevealedAnswer = r.final.RevealedAnswer
	}

	return gs
}

func (r *Room) findSelectedClueLocked() (*game.Category, *game.Clue, bool) {
	round := r.currentGameRoundLocked()
	if round == nil {
		return nil, nil, false
	}
	for ci := range round.Categories {
		cat := &round.Categories[ci]
		if cat.ID != r.SelectedCategoryID {
			continue
		}
		for qi := range cat.Clues {
			clue := &cat.Clues[qi]
			if clue.ID == r.SelectedClueID {
				return cat, clue, true
			}
		}
	}
	return nil, nil, false
}

func (r *Room) currentGameRoundLocked() *game.Round {
	if r.Config == nil {
		return nil
	}
	switch r.CurrentRound {
	case game.RoundFirst:
		return &r.Config.FirstRound
	case game.RoundDouble:
		return &r.Config.DoubleRound
	default:
		return nil
	}
}

func (r *Room) broadcastSnapshotLocked() {
	snapshot := r.snapshotLocked()
	r.sender.Broadcast(r.Code, GameStateUpdateMsg{Type: "gameStateUpdate", GameState: snapshot})
	if r.bus != nil {
		r.bus.Publish(context.Background(), r.Code, "gameStateUpdate", snapshot, "", nil)
	}
}

func (r *Room) sendErrorLocked(participantID, message string) {
	r.sender.SendTo(participantID, newError(message))
}
