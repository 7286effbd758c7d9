package roomactor

import "github.com/jeopardy-coordinator/roomserver/internal/v1/game"

// typeEnvelope peeks at the discriminated union's tag (spec §6.1, SPEC_FULL
// §B.2) before the payload is unmarshalled into its concrete type.
type typeEnvelope struct {
	Type string `json:"type"`
}

// --- Inbound payloads (client -> server) ---

// joinRoomPayload's PlayerID, when set, is the existing_participant_id a
// reconnecting client presents to silently re-bind (spec §4.1).
type joinRoomPayload struct {
	RoomID     string `json:"roomId"`
	PlayerName string `json:"playerName,omitempty"`
	Role       string `json:"role"`
	PlayerID   string `json:"playerId,omitempty"`
}

type buzzPayload struct {
	Timestamp int64 `json:"timestamp"`
}

type selectCluePayload struct {
	CategoryID string `json:"categoryId"`
	ClueID     string `json:"clueId"`
}

type judgeAnswerPayload struct {
	PlayerID string `json:"playerId"`
	Correct  bool   `json:"correct"`
}

type updateScorePayload struct {
	PlayerID string `json:"playerId"`
	Delta    int    `json:"delta"`
}

type judgeFinalJeopardyAnswerPayload struct {
	PlayerID string `json:"playerId"`
	Correct  bool   `json:"correct"`
}

type submitWagerPayload struct {
	Wager int `json:"wager"`
}

type submitFinalAnswerPayload struct {
	Answer string `json:"answer"`
}

type saveGamePayload struct {
	GameConfig game.GameConfig `json:"gameConfig"`
}

type loadGamePayload struct {
	GameConfig game.GameConfig `json:"gameConfig"`
}

// --- Outbound messages (server -> clients) ---

// PlayerView is one entry in a GameState snapshot's players array (spec
// §6.1). Only host/player roles appear; viewers are summarised separately
// by ViewerCount (SPEC_FULL §C.1).
type PlayerView struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Score       int     `json:"score"`
	BuzzedAt    *int64  `json:"buzzedAt,omitempty"`
	FinalWager  *int    `json:"finalWager,omitempty"`
	FinalAnswer *string `json:"finalAnswer,omitempty"`
}

// SelectedClueView describes the clue currently on the board.
type SelectedClueView struct {
	CategoryID       string `json:"categoryId"`
	ClueID           string `json:"clueId"`
	Value            int    `json:"value"`
	PromptText       string `json:"promptText"`
	ExpectedResponse string `json:"expectedResponse"`
}

// GameState is the full snapshot schema from spec §6.1.
type GameState struct {
	RoomID                  string            `json:"roomId"`
	Status                  game.Status       `json:"status"`
	CurrentRound            string            `json:"currentRound"`
	Config                  *game.GameConfig  `json:"config,omitempty"`
	SelectedClue            *SelectedClueView `json:"selectedClue,omitempty"`
	Players                 []PlayerView      `json:"players"`
	BuzzerOrder             []string          `json:"buzzerOrder"`
	DisplayBuzzerOrder      []string          `json:"displayBuzzerOrder"`
	CurrentPlayer           *string           `json:"currentPlayer,omitempty"`
	JudgedPlayers           []string          `json:"judgedPlayers"`
	NotPickedInTies         []string          `json:"notPickedInTies"`
	LastCorrectPlayer       *string           `json:"lastCorrectPlayer,omitempty"`
	HostID                  string            `json:"hostId"`
	FinalCountdownEnd       *int64            `json:"finalCountdownEnd,omitempty"`
	FinalJudgingPlayerIndex *int              `json:"finalJudgingPlayerIndex,omitempty"`
	FinalRevealedWager      bool              `json:"finalRevealedWager"`
	FinalRevealedAnswer     bool              `json:"finalRevealedAnswer"`
	ViewerCount             int               `json:"viewerCount"`
}

// RoomJoinedMsg is sent to the joiner only (spec §6.1).
type RoomJoinedMsg struct {
	Type      string    `json:"type"`
	RoomID    string    `json:"roomId"`
	GameState GameState `json:"gameState"`
	PlayerID  string    `json:"playerId"`
}

// GameStateUpdateMsg is broadcast to the whole room after any mutation.
type GameStateUpdateMsg struct {
	Type      string    `json:"type"`
	GameState GameState `json:"gameState"`
}

// BuzzerLockedMsg is a narrow event reflecting the buzzer_locked flag.
type BuzzerLockedMsg struct {
	Type   string `json:"type"`
	Locked bool   `json:"locked"`
}

// BuzzReceivedMsg is a narrow optimistic-UI event for an individual buzz.
type BuzzReceivedMsg struct {
	Type      string `json:"type"`
	PlayerID  string `json:"playerId"`
	Timestamp int64  `json:"timestamp"`
}

// GameCreatedMsg announces a freshly loaded game to the room.
type GameCreatedMsg struct {
	Type      string    `json:"type"`
	GameState GameState `json:"gameState"`
}

// GameSavedMsg acknowledges a successful save_game.
type GameSavedMsg struct {
	Type   string `json:"type"`
	GameID string `json:"gameId"`
}

// ErrorMsg never mutates state; delivered only to the caller.
type ErrorMsg struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// PongMsg answers a client heartbeat ping (sent by Dispatch's "ping" case).
// The transport's writePump reuses the same shape, with Type "ping", for
// the server's own heartbeat.
type PongMsg struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
}

func newError(message string) ErrorMsg {
	return ErrorMsg{Type: "error", Message: message}
}
