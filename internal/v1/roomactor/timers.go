package roomactor

import (
	"time"

	"github.com/jeopardy-coordinator/roomserver/internal/v1/game"
)

// scheduleRevealTimerLocked arranges the clue_revealed -> buzzing
// auto-unlock (spec §4.4 "Reading delay -> unlock"). Single-shot per
// selected clue; suppressed if the clue changes before it fires.
func (r *Room) scheduleRevealTimerLocked(clueID string, delay time.Duration) {
	if r.revealTimer != nil {
		r.revealTimer.Stop()
	}
	r.revealTimer = time.AfterFunc(delay, func() { r.onRevealTimerFired(clueID) })
}

func (r *Room) onRevealTimerFired(clueID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.Status != game.StatusClueRevealed || r.SelectedClueID != clueID {
		return // host moved on before the delay elapsed; suppressed (spec §4.4)
	}
	r.Status = game.StatusBuzzing
	r.setBuzzerLockedLocked(false)
	r.broadcastSnapshotLocked()
}

// scheduleTieTimerLocked arranges the buzzer tie-window close (spec §4.5).
// Single-shot per current clue; cancelled when the clue is deselected.
func (r *Room) scheduleTieTimerLocked(clueID string, delay time.Duration) {
	if r.tieTimer != nil {
		r.tieTimer.Stop()
	}
	r.tieTimer = time.AfterFunc(delay, func() { r.onTieTimerFired(clueID) })
}

func (r *Room) onTieTimerFired(clueID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.SelectedClueID != clueID || r.CurrentPlayer != "" {
		return
	}
	res, ok := r.arbiter.Resolve()
	if !ok {
		return
	}
	r.CurrentPlayer = res.Winner
	r.buzzerOrderRaw = res.BuzzerOrderRaw
	r.displayBuzzerOrder = res.DisplayBuzzOrder
	r.Status = game.StatusAnswering
	r.broadcastSnapshotLocked()
}

// scheduleFinalClueTimerLocked arranges the final_clue_reading ->
// final_answering auto-unlock, the Final-round analogue of the reveal
// timer above (same speaking-time mechanism applied to the Final prompt).
func (r *Room) scheduleFinalClueTimerLocked(delay time.Duration) {
	if r.finalClueTimer != nil {
		r.finalClueTimer.Stop()
	}
	r.finalClueTimer = time.AfterFunc(delay, r.onFinalClueTimerFired)
}

func (r *Room) onFinalClueTimerFired() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.Status != game.StatusFinalClueReading || r.final == nil {
		return
	}
	r.Status = game.StatusFinalAnswering
	r.final.CountdownEnd = time.Now().UnixMilli() + r.timings.FinalAnswerTimeout.Milliseconds()
	r.broadcastSnapshotLocked()
}
