// Package finaljeopardy implements the Final-Jeopardy sub-machine (spec
// §4.6): wagering, display-only clue reading, timed answering, and
// sequential judging. Modelled as explicit state rather than promise
// chaining, per spec §9's design note on reframing async chaining.
package finaljeopardy

import (
	"sort"

	"github.com/jeopardy-coordinator/roomserver/internal/v1/roomerr"
)

// AnswerTimeoutMillis is the default countdown duration for final answering
// (spec §6.4 final_answer_timeout_ms).
const AnswerTimeoutMillis = 30000

// State is the Final-Jeopardy sub-machine's data, held on the room for the
// duration of the final round.
type State struct {
	InitialScores  map[string]int    `json:"finalInitialScores"`
	JudgingOrder   []string          `json:"finalJudgingOrder"`
	Wagers         map[string]int    `json:"-"`
	Answers        map[string]string `json:"-"`
	CountdownEnd   int64             `json:"finalCountdownEnd"`
	JudgeIndex     int               `json:"finalJudgingPlayerIndex"`
	RevealedWager  bool              `json:"finalRevealedWager"`
	RevealedAnswer bool              `json:"finalRevealedAnswer"`
}

// New builds Final-Jeopardy state from a snapshot of scores at the moment
// Double completes (spec §4.6): final_judging_order is every player with a
// strictly positive score, ascending by score; others are excluded from
// wagering and judging entirely.
func New(scores map[string]int) *State {
	initial := make(map[string]int, len(scores))
	eligible := make([]string, 0, len(scores))
	for id, s := range scores {
		initial[id] = s
		if s > 0 {
			eligible = append(eligible, id)
		}
	}
	sort.SliceStable(eligible, func(i, j int) bool {
		return initial[eligible[i]] < initial[eligible[j]]
	})

	return &State{
		InitialScores: initial,
		JudgingOrder:  eligible,
		Wagers:        make(map[string]int),
		Answers:       make(map[string]string),
	}
}

// IsEligible reports whether playerID may wager/answer/be judged in Final.
func (s *State) IsEligible(playerID string) bool {
	_, ok := s.InitialScores[playerID]
	return ok && s.InitialScores[playerID] > 0
}

// SubmitWager records a wager for an eligible player (spec §4.6 step 1).
// 0 <= wager <= score_at_final_start; a wager is final once recorded.
func (s *State) SubmitWager(playerID string, wager int) error {
	if !s.IsEligible(playerID) {
		return roomerr.Role("player is not eligible for final jeopardy")
	}
	if _, already := s.Wagers[playerID]; already {
		return roomerr.State("wager already recorded")
	}
	scoreAtFinal := s.InitialScores[playerID]
	if wager < 0 || wager > scoreAtFinal {
		return roomerr.Validation("wager must be between 0 and %d", scoreAtFinal)
	}
	s.Wagers[playerID] = wager
	return nil
}

// AllWagered reports whether every eligible player has a recorded wager —
// the gate for moving out of final_wagering (spec §4.6 step 1).
func (s *State) AllWagered() bool {
	for _, id := range s.JudgingOrder {
		if _, ok := s.Wagers[id]; !ok {
			return false
		}
	}
	return true
}

// SubmitAnswer records a final answer if the countdown has not expired
// (spec §4.6 step 3 / §8 scenario S6).
func (s *State) SubmitAnswer(playerID, answer string, nowMillis int64) error {
	if !s.IsEligible(playerID) {
		return roomerr.Role("player is not eligible for final jeopardy")
	}
	if nowMillis > s.CountdownEnd {
		return roomerr.Validation("final answer submitted after countdown expired")
	}
	if _, already := s.Answers[playerID]; already {
		return roomerr.State("answer already recorded")
	}
	s.Answers[playerID] = answer
	return nil
}

// CurrentJudgingPlayer returns the player up next in judging order, if any
// remain.
func (s *State) CurrentJudgingPlayer() (string, bool) {
	if s.JudgeIndex < 0 || s.JudgeIndex >= len(s.JudgingOrder) {
		return "", false
	}
	return s.JudgingOrder[s.JudgeIndex], true
}

// RevealWager moves the current judging player's wager into view (spec
// §4.6 step 4, first sub-step).
func (s *State) RevealWager() error {
	if _, ok := s.CurrentJudgingPlayer(); !ok {
		return roomerr.State("no players left to judge")
	}
	if s.RevealedWager {
		return roomerr.State("wager already revealed")
	}
	s.RevealedWager = true
	return nil
}

// RevealAnswer moves the current judging player's answer into view. Must
// follow RevealWager (spec §4.6: "reveal wager, then reveal answer").
func (s *State) RevealAnswer() error {
	if _, ok := s.CurrentJudgingPlayer(); !ok {
		return roomerr.State("no players left to judge")
	}
	if !s.RevealedWager {
		return roomerr.State("wager must be revealed before the answer")
	}
	if s.RevealedAnswer {
		return roomerr.State("answer already revealed")
	}
	s.RevealedAnswer = true
	return nil
}

// Judge applies the host's correct/incorrect call to the current judging
// player, returns their wager for the caller to apply to score, and
// advances to the next player (spec §4.6 step 4). finished reports whether
// that was the last judgement.
func (s *State) Judge(playerID string, correct bool) (wager int, finished bool, err error) {
	current, ok := s.CurrentJudgingPlayer()
	if !ok {
		return 0, false, roomerr.State("no players left to judge")
	}
	if playerID != current {
		return 0, false, roomerr.State("players must be judged in final judging order")
	}
	if !s.RevealedWager || !s.RevealedAnswer {
		return 0, false, roomerr.State("wager and answer must be revealed before judging")
	}

	wager = s.Wagers[playerID]
	s.JudgeIndex++
	s.RevealedWager = false
	s.RevealedAnswer = false

	finished = s.JudgeIndex >= len(s.JudgingOrder)
	return wager, finished, nil
}

// ApplyJudgement adjusts a participant's score by the revealed wager:
// correct adds it, incorrect subtracts it (spec §4.6 step 4).
func ApplyJudgement(score *int, wager int, correct bool) {
	if correct {
		*score += wager
	} else {
		*score -= wager
	}
}
