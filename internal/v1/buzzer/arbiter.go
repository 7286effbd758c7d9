// Package buzzer implements the Buzzer Arbiter (spec §4.5): tie-window
// fairness over the buzz race, judging-queue progression through the
// display buzzer order, and the not_picked_in_ties fairness memory.
//
// The arbiter itself holds no timer and takes no lock — the room actor owns
// the per-clue pending timer (time.AfterFunc, mirroring the teacher's
// Hub.removeRoom pattern) and calls Resolve once it fires, under the room's
// own mutex. This keeps the arbiter a plain, fully unit-testable value type.
package buzzer

import "time"

// Entry is one recorded buzz: the player, their self-reported client
// timestamp (diagnostics only per spec §5), and the arbiter's own receipt
// time, which is authoritative for adjudication.
type Entry struct {
	PlayerID string
	ClientTS int64
	ServerTS time.Time
}

// Arbiter collects buzzes for the currently selected clue and resolves the
// winner once the tie window closes. not_picked_in_ties persists across
// clues for the lifetime of the room (spec §9 Open Question 1), so an
// Arbiter is constructed once per room, not once per clue.
type Arbiter struct {
	TieWindow time.Duration
	TieBuffer time.Duration

	buzzLog         []Entry
	notPickedInTies map[string]bool
}

// NewArbiter constructs an arbiter with empty fairness memory.
func NewArbiter(tieWindow, tieBuffer time.Duration) *Arbiter {
	return &Arbiter{
		TieWindow:       tieWindow,
		TieBuffer:       tieBuffer,
		notPickedInTies: make(map[string]bool),
	}
}

// ResetForClue clears the buzz log for a newly selected clue. Fairness
// memory (not_picked_in_ties) is deliberately untouched.
func (a *Arbiter) ResetForClue() {
	a.buzzLog = nil
}

// HasBuzzed reports whether a player already has a recorded buzz for the
// current clue (spec §4.5 step 1 / §8 property 3, buzz uniqueness).
func (a *Arbiter) HasBuzzed(playerID string) bool {
	for _, e := range a.buzzLog {
		if e.PlayerID == playerID {
			return true
		}
	}
	return false
}

// Record appends a new buzz to the log. The caller is responsible for the
// eligibility and duplicate checks (spec §4.5 step 1) before calling this.
func (a *Arbiter) Record(playerID string, clientTS int64, serverTS time.Time) {
	a.buzzLog = append(a.buzzLog, Entry{PlayerID: playerID, ClientTS: clientTS, ServerTS: serverTS})
}

// Len reports how many buzzes are currently recorded for this clue.
func (a *Arbiter) Len() int {
	return len(a.buzzLog)
}

// TieDeadline returns when the tie window (plus buffer) closes, relative to
// the first recorded buzz for this clue.
func (a *Arbiter) TieDeadline() (time.Time, bool) {
	if len(a.buzzLog) == 0 {
		return time.Time{}, false
	}
	return a.buzzLog[0].ServerTS.Add(a.TieWindow + a.TieBuffer), true
}

// NotPickedInTies returns a snapshot copy of the current fairness memory.
func (a *Arbiter) NotPickedInTies() []string {
	out := make([]string, 0, len(a.notPickedInTies))
	for p := range a.notPickedInTies {
		out = append(out, p)
	}
	return out
}

// Resolution is the outcome of closing the tie window: the winner, the raw
// buzz order (every recorded buzz, in arrival order), and the frozen
// display order (winner first, remaining entries in arrival order) per
// spec §4.5 "Commit".
type Resolution struct {
	Winner           string
	BuzzerOrderRaw   []string
	DisplayBuzzOrder []string
}

// Resolve applies the tie-resolution rule (spec §4.5) once the tie window
// has closed: tied players are those within TieWindow of the first buzz;
// the winner is the earliest tied player already in not_picked_in_ties, or
// else the earliest tied player outright. not_picked_in_ties is updated:
// the winner is removed, every other tied player is added.
func (a *Arbiter) Resolve() (Resolution, bool) {
	if len(a.buzzLog) == 0 {
		return Resolution{}, false
	}

	first := a.buzzLog[0].ServerTS
	var tied []string
	for _, e := range a.buzzLog {
		if e.ServerTS.Sub(first) <= a.TieWindow {
			tied = append(tied, e.PlayerID)
		}
	}

	winner := ""
	for _, p := range tied {
		if a.notPickedInTies[p] {
			winner = p
			break
		}
	}
	if winner == "" {
		winner = tied[0]
	}

	delete(a.notPickedInTies, winner)
	for _, p := range tied {
		if p != winner {
			a.notPickedInTies[p] = true
		}
	}

	raw := make([]string, len(a.buzzLog))
	for i, e := range a.buzzLog {
		raw[i] = e.PlayerID
	}

	display := make([]string, 0, len(raw))
	display = append(display, winner)
	for _, p := range raw {
		if p != winner {
			display = append(display, p)
		}
	}

	return Resolution{Winner: winner, BuzzerOrderRaw: raw, DisplayBuzzOrder: display}, true
}

// AppendLateBuzzer appends playerID to order if it is not already present,
// implementing spec §4.5 step 4: late buzzes extend the visible queue
// without disturbing its existing relative order.
func AppendLateBuzzer(order []string, playerID string) []string {
	for _, p := range order {
		if p == playerID {
			return order
		}
	}
	return append(order, playerID)
}

// NextJudgeable scans displayOrder, in order, for the first entry after
// incorrectPlayer that is not already in judgedSet — the judging-queue
// progression on an incorrect answer (spec §4.5 "Judging progression").
func NextJudgeable(displayOrder []string, incorrectPlayer string, judgedSet map[string]bool) (string, bool) {
	idx := -1
	for i, p := range displayOrder {
		if p == incorrectPlayer {
			idx = i
			break
		}
	}
	if idx == -1 {
		return "", false
	}
	for i := idx + 1; i < len(displayOrder); i++ {
		if !judgedSet[displayOrder[i]] {
			return displayOrder[i], true
		}
	}
	return "", false
}
