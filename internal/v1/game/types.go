// Package game holds the data model shared by every room (spec §3) plus the
// Round/Board Engine's pure logic: clue selection policy, the speaking-time
// estimator, and scoring (spec §4.4). It owns no mutable room state of its
// own — the room actor in internal/v1/roomactor holds the authoritative
// copy and calls into this package for the rules.
package game

import "time"

// Role is a participant's permission level within a room.
type Role string

const (
	RoleHost   Role = "host"
	RolePlayer Role = "player"
	RoleViewer Role = "viewer"
)

// Status is the room's state-machine position (spec §3/§4.3).
type Status string

const (
	StatusWaiting          Status = "waiting"
	StatusReady            Status = "ready"
	StatusSelecting        Status = "selecting"
	StatusClueRevealed     Status = "clue_revealed"
	StatusBuzzing          Status = "buzzing"
	StatusAnswering        Status = "answering"
	StatusJudging          Status = "judging"
	StatusFinalWagering    Status = "final_wagering"
	StatusFinalClueReading Status = "final_clue_reading"
	StatusFinalAnswering   Status = "final_answering"
	StatusFinalJudging     Status = "final_judging"
	StatusFinished         Status = "finished"
)

// RoundKind distinguishes the two regular rounds from Final Jeopardy.
type RoundKind string

const (
	RoundFirst  RoundKind = "first_round"
	RoundDouble RoundKind = "double_round"
)

// CategoriesPerRound and CluesPerCategory are fixed by the Jeopardy format
// (spec §3: "6 Categories", "5 Clues").
const (
	CategoriesPerRound = 6
	CluesPerCategory   = 5
)

// Clue is the atomic question/answer unit. Mutated only by the Round
// Engine; destroyed with the game.
type Clue struct {
	ID               string `json:"id"`
	CategoryRef      string `json:"categoryRef"`
	Value            int    `json:"value"`
	PromptText       string `json:"promptText"`
	ExpectedResponse string `json:"expectedResponse"`
	Revealed         bool   `json:"revealed"`
	Answered         bool   `json:"answered"`
}

// Category groups its clues, ordered by value ascending.
type Category struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Clues []Clue `json:"clues"`
}

// Round is one of the two regular rounds, each six categories deep.
type Round struct {
	Kind       RoundKind  `json:"kind"`
	Categories []Category `json:"categories"`
}

// FinalRound is the degenerate single-clue Final Jeopardy round.
type FinalRound struct {
	CategoryName     string `json:"categoryName"`
	PromptText       string `json:"promptText"`
	ExpectedResponse string `json:"expectedResponse"`
}

// GameMetadata carries free-form descriptive fields persisted alongside a
// GameConfig (spec §6.3).
type GameMetadata struct {
	Topics     []string `json:"topics,omitempty"`
	Difficulty string   `json:"difficulty,omitempty"`
}

// GameConfig is the immutable (aside from clue revealed/answered flags)
// content pack loaded into a room.
type GameConfig struct {
	ID          string       `json:"id"`
	FirstRound  Round        `json:"firstRound"`
	DoubleRound Round        `json:"doubleRound"`
	FinalRound  FinalRound   `json:"finalRound"`
	CreatedAt   int64        `json:"createdAt"`
	Metadata    GameMetadata `json:"metadata"`
}

// Participant is one member of a room: host, player, or viewer.
type Participant struct {
	ID          string  `json:"id"`
	DisplayName string  `json:"displayName"`
	Role        Role    `json:"role"`
	Score       int     `json:"score"`
	BuzzedAt    *int64  `json:"buzzedAt,omitempty"`
	FinalWager  *int    `json:"finalWager,omitempty"`
	FinalAnswer *string `json:"finalAnswer,omitempty"`
}

// NowMillis returns the current time as milliseconds since epoch, the wire
// protocol's absolute timestamp unit (spec §6.1).
func NowMillis(t time.Time) int64 {
	return t.UnixMilli()
}
