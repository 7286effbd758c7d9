package roomactor

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jeopardy-coordinator/roomserver/internal/v1/buzzer"
	"github.com/jeopardy-coordinator/roomserver/internal/v1/finaljeopardy"
	"github.com/jeopardy-coordinator/roomserver/internal/v1/game"
	"github.com/jeopardy-coordinator/roomserver/internal/v1/metrics"
	"github.com/jeopardy-coordinator/roomserver/internal/v1/roomerr"
)

// Dispatch routes one inbound frame to its handler (spec §4.3's operations
// table). Unmarshal failures and unknown types become a protocol error{}
// frame, never a disconnect (spec §4.1/§7).
func (r *Room) Dispatch(ctx context.Context, participantID, msgType string, raw json.RawMessage) {
	switch msgType {
	case "joinRoom":
		var p joinRoomPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			r.sender.SendTo(participantID, newError(roomerr.WireMessage(roomerr.Protocol("malformed joinRoom frame"))))
			return
		}
		role, err := parseRole(p.Role)
		if err != nil {
			r.sender.SendTo(participantID, newError(roomerr.WireMessage(err)))
			return
		}
		if _, err := r.Join(ctx, p.PlayerID, p.PlayerName, role); err != nil {
			r.sender.SendTo(participantID, newError(roomerr.WireMessage(err)))
		}
	case "loadGame":
		var p loadGamePayload
		if err := json.Unmarshal(raw, &p); err != nil {
			r.sender.SendTo(participantID, newError(roomerr.WireMessage(roomerr.Protocol("malformed loadGame frame"))))
			return
		}
		r.handleLoadGame(participantID, p.GameConfig)
	case "startGame":
		r.handleStartGame(participantID)
	case "selectClue":
		var p selectCluePayload
		if err := json.Unmarshal(raw, &p); err != nil {
			r.sender.SendTo(participantID, newError(roomerr.WireMessage(roomerr.Protocol("malformed selectClue frame"))))
			return
		}
		r.handleSelectClue(participantID, p.CategoryID, p.ClueID)
	case "buzz":
		var p buzzPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			r.sender.SendTo(participantID, newError(roomerr.WireMessage(roomerr.Protocol("malformed buzz frame"))))
			return
		}
		r.handleBuzz(participantID, p.Timestamp)
	case "revealAnswer":
		r.handleRevealAnswer(participantID)
	case "judgeAnswer":
		var p judgeAnswerPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			r.sender.SendTo(participantID, newError(roomerr.WireMessage(roomerr.Protocol("malformed judgeAnswer frame"))))
			return
		}
		r.handleJudgeAnswer(participantID, p.PlayerID, p.Correct)
	case "returnToBoard":
		r.handleReturnToBoard(participantID)
	case "updateScore":
		var p updateScorePayload
		if err := json.Unmarshal(raw, &p); err != nil {
			r.sender.SendTo(participantID, newError(roomerr.WireMessage(roomerr.Protocol("malformed updateScore frame"))))
			return
		}
		r.handleUpdateScore(participantID, p.PlayerID, p.Delta)
	case "nextRound":
		r.handleNextRound(participantID)
	case "startFinalJeopardy":
		r.handleStartFinalJeopardy(participantID)
	case "showFinalJeopardyClue":
		r.handleShowFinalJeopardyClue(participantID)
	case "startFinalJeopardyJudging":
		r.handleStartFinalJeopardyJudging(participantID)
	case "revealFinalJeopardyWager":
		r.handleRevealFinalJeopardyWager(participantID)
	case "revealFinalJeopardyAnswer":
		r.handleRevealFinalJeopardyAnswer(participantID)
	case "judgeFinalJeopardyAnswer":
		var p judgeFinalJeopardyAnswerPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			r.sender.SendTo(participantID, newError(roomerr.WireMessage(roomerr.Protocol("malformed judgeFinalJeopardyAnswer frame"))))
			return
		}
		r.handleJudgeFinalJeopardyAnswer(participantID, p.PlayerID, p.Correct)
	case "submitWager":
		var p submitWagerPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			r.sender.SendTo(participantID, newError(roomerr.WireMessage(roomerr.Protocol("malformed submitWager frame"))))
			return
		}
		r.handleSubmitWager(participantID, p.Wager)
	case "submitFinalAnswer":
		var p submitFinalAnswerPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			r.sender.SendTo(participantID, newError(roomerr.WireMessage(roomerr.Protocol("malformed submitFinalAnswer frame"))))
			return
		}
		r.handleSubmitFinalAnswer(participantID, p.Answer)
	case "saveGame":
		var p saveGamePayload
		if err := json.Unmarshal(raw, &p); err != nil {
			r.sender.SendTo(participantID, newError(roomerr.WireMessage(roomerr.Protocol("malformed saveGame frame"))))
			return
		}
		r.handleSaveGame(ctx, participantID, p.GameConfig)
	case "ping":
		var p struct {
			Timestamp int64 `json:"timestamp"`
		}
		_ = json.Unmarshal(raw, &p)
		r.sender.SendTo(participantID, PongMsg{Type: "pong", Timestamp: p.Timestamp})
	default:
		r.sender.SendTo(participantID, newError(roomerr.WireMessage(roomerr.Protocol("unknown message type %q", msgType))))
	}
}

func parseRole(s string) (game.Role, error) {
	switch game.Role(s) {
	case game.RoleHost, game.RolePlayer, game.RoleViewer:
		return game.Role(s), nil
	default:
		return "", roomerr.Validation("unknown role %q", s)
	}
}

// Join adds or re-binds a participant (spec §4.3 join_room, §4.1 reconnect
// binding). The configured host identity is the only id allowed to join as
// host; no other identity may claim that role (spec §9 Open Question 2,
// generalised to host).
func (r *Room) Join(ctx context.Context, existingParticipantID, playerName string, role game.Role) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var participantID string
	if role == game.RoleHost {
		if existingParticipantID != "" && existingParticipantID != r.HostID {
			return "", roomerr.Role("only the room's configured host identity may join as host")
		}
		participantID = r.HostID
	} else {
		if existingParticipantID == r.HostID {
			return "", roomerr.Role("this identity is reserved for the host")
		}
		participantID = existingParticipantID
		if participantID == "" {
			participantID = uuid.NewString()
		}
	}

	if p, ok := r.participants[participantID]; ok {
		if p.Role != role {
			return "", roomerr.Role("participant %s already joined with role %s", participantID, p.Role)
		}
		if playerName != "" {
			p.DisplayName = playerName
		}
	} else {
		r.addParticipantLocked(&game.Participant{ID: participantID, DisplayName: playerName, Role: role})
		metrics.RoomParticipants.WithLabelValues(r.Code).Inc()
	}

	snapshot := r.snapshotLocked()
	r.sender.SendTo(participantID, RoomJoinedMsg{Type: "roomJoined", RoomID: r.Code, GameState: snapshot, PlayerID: participantID})
	r.broadcastSnapshotLocked()
	return participantID, nil
}

func (r *Room) requireRoleLocked(participantID string, allowed ...game.Role) error {
	p, ok := r.participants[participantID]
	if !ok {
		return roomerr.NotFound("participant %s is not in this room", participantID)
	}
	for _, a := range allowed {
		if p.Role == a {
			return nil
		}
	}
	return roomerr.Role("role %s may not perform this operation", p.Role)
}

func (r *Room) requireStatusLocked(allowed ...game.Status) error {
	for _, s := range allowed {
		if r.Status == s {
			return nil
		}
	}
	return roomerr.State("operation not allowed in status %s", r.Status)
}

// setBuzzerLockedLocked updates buzzer_locked and emits the narrow event
// (spec §3 invariant 4, §6.1 buzzerLocked).
func (r *Room) setBuzzerLockedLocked(locked bool) {
	r.BuzzerLocked = locked
	r.sender.Broadcast(r.Code, BuzzerLockedMsg{Type: "buzzerLocked", Locked: locked})
}

func (r *Room) resetBoardSelectionLocked() {
	r.SelectedCategoryID = ""
	r.SelectedClueID = ""
	r.CurrentPlayer = ""
	r.judgedSet = make(map[string]bool)
	r.arbiter.ResetForClue()
	r.buzzerOrderRaw = nil
	r.displayBuzzerOrder = nil
	for _, p := range r.participants {
		p.BuzzedAt = nil
	}
}

// handleLoadGame installs a config (spec §4.3 load_game). Rejected once play
// has moved past clue selection.
func (r *Room) handleLoadGame(participantID string, cfg game.GameConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.requireRoleLocked(participantID, game.RoleHost); err != nil {
		r.sendErrorLocked(participantID, roomerr.WireMessage(err))
		return
	}
	if err := r.requireStatusLocked(game.StatusWaiting, game.StatusReady, game.StatusSelecting); err != nil {
		r.sendErrorLocked(participantID, "a game cannot be (re)loaded once play has moved past clue selection")
		return
	}

	r.Config = &cfg
	r.Status = game.StatusReady
	r.CurrentRound = game.RoundFirst
	r.finalActive = false
	r.final = nil
	r.LastCorrectPlayer = ""
	r.resetBoardSelectionLocked()
	r.cancelTimersLocked()

	snapshot := r.snapshotLocked()
	r.sender.SendTo(participantID, GameCreatedMsg{Type: "gameCreated", GameState: snapshot})
	r.broadcastSnapshotLocked()
}

// handleStartGame moves ready -> selecting (spec §4.3 start_game).
func (r *Room) handleStartGame(participantID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.requireRoleLocked(participantID, game.RoleHost); err != nil {
		r.sendErrorLocked(participantID, roomerr.WireMessage(err))
		return
	}
	if err := r.requireStatusLocked(game.StatusReady); err != nil {
		r.sendErrorLocked(participantID, roomerr.WireMessage(err))
		return
	}
	r.Status = game.StatusSelecting
	r.broadcastSnapshotLocked()
}

// handleSelectClue implements the clue selection policy and schedules the
// reveal-delay unlock (spec §4.4).
func (r *Room) handleSelectClue(participantID, categoryID, clueID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.requireRoleLocked(participantID, game.RoleHost); err != nil {
		r.sendErrorLocked(participantID, roomerr.WireMessage(err))
		return
	}
	if err := r.requireStatusLocked(game.StatusSelecting); err != nil {
		r.sendErrorLocked(participantID, roomerr.WireMessage(err))
		return
	}
	round := r.currentGameRoundLocked()
	if round == nil {
		r.sendErrorLocked(participantID, roomerr.WireMessage(roomerr.State("no active round")))
		return
	}
	_, clue, err := game.SelectableClue(round, categoryID, clueID)
	if err != nil {
		r.sendErrorLocked(participantID, roomerr.WireMessage(err))
		return
	}

	clue.Revealed = true
	r.resetBoardSelectionLocked()
	r.SelectedCategoryID = categoryID
	r.SelectedClueID = clueID
	r.Status = game.StatusClueRevealed
	r.setBuzzerLockedLocked(true)
	r.broadcastSnapshotLocked()

	r.scheduleRevealTimerLocked(clue.ID, game.SpeakingTime(clue.PromptText))
}

// handleBuzz ingests a buzz per the Buzzer Arbiter's procedure (spec §4.5).
func (r *Room) handleBuzz(participantID string, clientTS int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.requireRoleLocked(participantID, game.RolePlayer); err != nil {
		r.sendErrorLocked(participantID, roomerr.WireMessage(err))
		return
	}
	if err := r.requireStatusLocked(game.StatusBuzzing, game.StatusAnswering); err != nil {
		r.sendErrorLocked(participantID, roomerr.WireMessage(err))
		return
	}

	if r.arbiter.HasBuzzed(participantID) {
		r.sender.Broadcast(r.Code, BuzzReceivedMsg{Type: "buzzReceived", PlayerID: participantID, Timestamp: clientTS})
		return
	}

	now := time.Now()
	r.arbiter.Record(participantID, clientTS, now)
	if p := r.participants[participantID]; p != nil {
		buzzedAt := game.NowMillis(now)
		p.BuzzedAt = &buzzedAt
	}
	r.sender.Broadcast(r.Code, BuzzReceivedMsg{Type: "buzzReceived", PlayerID: participantID, Timestamp: clientTS})

	if r.CurrentPlayer != "" {
		r.displayBuzzerOrder = buzzer.AppendLateBuzzer(r.displayBuzzerOrder, participantID)
		r.broadcastSnapshotLocked()
		return
	}

	if r.arbiter.Len() == 1 {
		deadline, _ := r.arbiter.TieDeadline()
		r.scheduleTieTimerLocked(r.SelectedClueID, time.Until(deadline))
	}
}

// handleRevealAnswer shows the expected response (spec §4.3 reveal_answer).
func (r *Room) handleRevealAnswer(participantID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.requireRoleLocked(participantID, game.RoleHost); err != nil {
		r.sendErrorLocked(participantID, roomerr.WireMessage(err))
		return
	}
	if err := r.requireStatusLocked(game.StatusAnswering, game.StatusBuzzing, game.StatusClueRevealed, game.StatusJudging); err != nil {
		r.sendErrorLocked(participantID, roomerr.WireMessage(err))
		return
	}
	r.cancelTimersLocked()
	r.Status = game.StatusJudging
	r.setBuzzerLockedLocked(true)
	r.broadcastSnapshotLocked()
}

// handleJudgeAnswer applies a judgement to the current player and advances
// the judging queue on incorrect (spec §4.4 scoring / §4.5 judging progression).
func (r *Room) handleJudgeAnswer(participantID, targetPlayerID string, correct bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.requireRoleLocked(participantID, game.RoleHost); err != nil {
		r.sendErrorLocked(participantID, roomerr.WireMessage(err))
		return
	}
	if err := r.requireStatusLocked(game.StatusAnswering); err != nil {
		r.sendErrorLocked(participantID, roomerr.WireMessage(err))
		return
	}
	if r.CurrentPlayer != targetPlayerID {
		r.sendErrorLocked(participantID, roomerr.WireMessage(roomerr.State("player %s is not the current answerer", targetPlayerID)))
		return
	}
	_, clue, ok := r.findSelectedClueLocked()
	if !ok {
		r.sendErrorLocked(participantID, roomerr.WireMessage(roomerr.State("no clue is currently selected")))
		return
	}
	target, ok := r.participants[targetPlayerID]
	if !ok {
		r.sendErrorLocked(participantID, roomerr.WireMessage(roomerr.NotFound("player %s not found", targetPlayerID)))
		return
	}

	game.ApplyJudgement(target, clue.Value, correct)

	if correct {
		clue.Answered = true
		r.LastCorrectPlayer = targetPlayerID
		r.CurrentPlayer = ""
		r.Status = game.StatusJudging
		r.setBuzzerLockedLocked(true)
		r.broadcastSnapshotLocked()
		return
	}

	r.judgedSet[targetPlayerID] = true
	if next, ok := buzzer.NextJudgeable(r.displayBuzzerOrder, targetPlayerID, r.judgedSet); ok {
		r.CurrentPlayer = next
		r.Status = game.StatusAnswering
	} else {
		r.CurrentPlayer = ""
		r.Status = game.StatusJudging
		r.setBuzzerLockedLocked(true)
	}
	r.broadcastSnapshotLocked()
}

// handleReturnToBoard clears the current selection and returns to the board
// (spec §4.3 return_to_board).
func (r *Room) handleReturnToBoard(participantID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.requireRoleLocked(participantID, game.RoleHost); err != nil {
		r.sendErrorLocked(participantID, roomerr.WireMessage(err))
		return
	}
	r.cancelTimersLocked()
	r.resetBoardSelectionLocked()
	r.Status = game.StatusSelecting
	r.setBuzzerLockedLocked(true)
	r.broadcastSnapshotLocked()
}

// handleUpdateScore applies a host-issued delta without touching status
// (spec §4.3 update_score).
func (r *Room) handleUpdateScore(participantID, targetPlayerID string, delta int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.requireRoleLocked(participantID, game.RoleHost); err != nil {
		r.sendErrorLocked(participantID, roomerr.WireMessage(err))
		return
	}
	target, ok := r.participants[targetPlayerID]
	if !ok {
		r.sendErrorLocked(participantID, roomerr.WireMessage(roomerr.NotFound("player %s not found", targetPlayerID)))
		return
	}
	target.Score += delta
	r.broadcastSnapshotLocked()
}

// handleNextRound advances First -> Double, or Double -> Final (spec §4.3
// next_round).
func (r *Room) handleNextRound(participantID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.requireRoleLocked(participantID, game.RoleHost); err != nil {
		r.sendErrorLocked(participantID, roomerr.WireMessage(err))
		return
	}

	switch r.CurrentRound {
	case game.RoundFirst:
		next, _ := game.NextRoundKind(game.RoundFirst)
		r.CurrentRound = next
		r.cancelTimersLocked()
		r.resetBoardSelectionLocked()
		r.Status = game.StatusSelecting
		r.broadcastSnapshotLocked()
	case game.RoundDouble:
		if r.finalActive {
			r.sendErrorLocked(participantID, roomerr.WireMessage(roomerr.State("final jeopardy already started")))
			return
		}
		r.startFinalJeopardyLocked()
		r.broadcastSnapshotLocked()
	default:
		r.sendErrorLocked(participantID, roomerr.WireMessage(roomerr.State("no further round follows %s", r.CurrentRound)))
	}
}

// handleStartFinalJeopardy forces Final's initialisation from Double (spec
// §4.3 start_final_jeopardy).
func (r *Room) handleStartFinalJeopardy(participantID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.requireRoleLocked(participantID, game.RoleHost); err != nil {
		r.sendErrorLocked(participantID, roomerr.WireMessage(err))
		return
	}
	if r.CurrentRound != game.RoundDouble {
		r.sendErrorLocked(participantID, roomerr.WireMessage(roomerr.State("final jeopardy may only be started from the double round")))
		return
	}
	if r.finalActive {
		r.sendErrorLocked(participantID, roomerr.WireMessage(roomerr.State("final jeopardy already started")))
		return
	}
	r.startFinalJeopardyLocked()
	r.broadcastSnapshotLocked()
}

func (r *Room) startFinalJeopardyLocked() {
	scores := make(map[string]int, len(r.participants))
	for id, p := range r.participants {
		if p.Role == game.RolePlayer {
			scores[id] = p.Score
		}
	}
	r.cancelTimersLocked()
	r.resetBoardSelectionLocked()
	r.final = finaljeopardy.New(scores)
	r.finalActive = true
	r.Status = game.StatusFinalWagering
	r.setBuzzerLockedLocked(true)
}

// handleShowFinalJeopardyClue moves final_wagering -> final_clue_reading
// once every eligible player has wagered (spec §4.6 step 1/2), then
// schedules the auto-unlock into final_answering mirroring the regular
// round's reveal-delay mechanism (there is no explicit wire op for that
// transition).
func (r *Room) handleShowFinalJeopardyClue(participantID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.requireRoleLocked(participantID, game.RoleHost); err != nil {
		r.sendErrorLocked(participantID, roomerr.WireMessage(err))
		return
	}
	if r.final == nil || r.Status != game.StatusFinalWagering {
		r.sendErrorLocked(participantID, roomerr.WireMessage(roomerr.State("final jeopardy is not in its wagering phase")))
		return
	}
	if !r.final.AllWagered() {
		r.sendErrorLocked(participantID, roomerr.WireMessage(roomerr.State("not every eligible player has wagered")))
		return
	}

	r.Status = game.StatusFinalClueReading
	r.broadcastSnapshotLocked()

	delay := game.SpeakingTime(r.Config.FinalRound.PromptText)
	r.scheduleFinalClueTimerLocked(delay)
}

// handleStartFinalJeopardyJudging moves final_answering -> final_judging
// (spec §4.6 step 3/4), typically called after the countdown but may be
// forced early by the host.
func (r *Room) handleStartFinalJeopardyJudging(participantID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.requireRoleLocked(participantID, game.RoleHost); err != nil {
		r.sendErrorLocked(participantID, roomerr.WireMessage(err))
		return
	}
	if r.final == nil || r.Status != game.StatusFinalAnswering {
		r.sendErrorLocked(participantID, roomerr.WireMessage(roomerr.State("final jeopardy is not in its answering phase")))
		return
	}
	r.cancelTimersLocked()
	r.Status = game.StatusFinalJudging
	r.broadcastSnapshotLocked()
}

// handleRevealFinalJeopardyWager reveals the current judging player's wager
// (spec §4.6 step 4).
func (r *Room) handleRevealFinalJeopardyWager(participantID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.requireRoleLocked(participantID, game.RoleHost); err != nil {
		r.sendErrorLocked(participantID, roomerr.WireMessage(err))
		return
	}
	if r.final == nil || r.Status != game.StatusFinalJudging {
		r.sendErrorLocked(participantID, roomerr.WireMessage(roomerr.State("final jeopardy is not in its judging phase")))
		return
	}
	if err := r.final.RevealWager(); err != nil {
		r.sendErrorLocked(participantID, roomerr.WireMessage(err))
		return
	}
	r.broadcastSnapshotLocked()
}

// handleRevealFinalJeopardyAnswer reveals the current judging player's
// answer; must follow the wager reveal (spec §4.6 step 4).
func (r *Room) handleRevealFinalJeopardyAnswer(participantID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.requireRoleLocked(participantID, game.RoleHost); err != nil {
		r.sendErrorLocked(participantID, roomerr.WireMessage(err))
		return
	}
	if r.final == nil || r.Status != game.StatusFinalJudging {
		r.sendErrorLocked(participantID, roomerr.WireMessage(roomerr.State("final jeopardy is not in its judging phase")))
		return
	}
	if err := r.final.RevealAnswer(); err != nil {
		r.sendErrorLocked(participantID, roomerr.WireMessage(err))
		return
	}
	r.broadcastSnapshotLocked()
}

// handleJudgeFinalJeopardyAnswer applies the host's call to the current
// judging player and advances to the next, finishing the game after the
// last (spec §4.6 step 4).
func (r *Room) handleJudgeFinalJeopardyAnswer(participantID, targetPlayerID string, correct bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.requireRoleLocked(participantID, game.RoleHost); err != nil {
		r.sendErrorLocked(participantID, roomerr.WireMessage(err))
		return
	}
	if r.final == nil || r.Status != game.StatusFinalJudging {
		r.sendErrorLocked(participantID, roomerr.WireMessage(roomerr.State("final jeopardy is not in its judging phase")))
		return
	}
	wager, finished, err := r.final.Judge(targetPlayerID, correct)
	if err != nil {
		r.sendErrorLocked(participantID, roomerr.WireMessage(err))
		return
	}
	target, ok := r.participants[targetPlayerID]
	if !ok {
		r.sendErrorLocked(participantID, roomerr.WireMessage(roomerr.NotFound("player %s not found", targetPlayerID)))
		return
	}
	finaljeopardy.ApplyJudgement(&target.Score, wager, correct)

	if finished {
		r.Status = game.StatusFinished
	}
	r.broadcastSnapshotLocked()
	if finished {
		r.sender.NotifyRoomFinished(r.Code)
	}
}

// handleSubmitWager records an eligible player's Final wager (spec §4.6 step 1).
func (r *Room) handleSubmitWager(participantID string, wager int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.requireRoleLocked(participantID, game.RolePlayer); err != nil {
		r.sendErrorLocked(participantID, roomerr.WireMessage(err))
		return
	}
	if r.final == nil || r.Status != game.StatusFinalWagering {
		r.sendErrorLocked(participantID, roomerr.WireMessage(roomerr.State("final jeopardy is not in its wagering phase")))
		return
	}
	if err := r.final.SubmitWager(participantID, wager); err != nil {
		r.sendErrorLocked(participantID, roomerr.WireMessage(err))
		return
	}
	w := wager
	r.participants[participantID].FinalWager = &w
	r.broadcastSnapshotLocked()
}

// handleSubmitFinalAnswer records an eligible player's Final answer if the
// countdown has not expired (spec §4.6 step 3 / §8 scenario S6).
func (r *Room) handleSubmitFinalAnswer(participantID, answer string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.requireRoleLocked(participantID, game.RolePlayer); err != nil {
		r.sendErrorLocked(participantID, roomerr.WireMessage(err))
		return
	}
	if r.final == nil || r.Status != game.StatusFinalAnswering {
		r.sendErrorLocked(participantID, roomerr.WireMessage(roomerr.State("final jeopardy is not in its answering phase")))
		return
	}
	if err := r.final.SubmitAnswer(participantID, answer, time.Now().UnixMilli()); err != nil {
		r.sendErrorLocked(participantID, roomerr.WireMessage(err))
		return
	}
	a := answer
	r.participants[participantID].FinalAnswer = &a
	r.broadcastSnapshotLocked()
}

// handleSaveGame sends a config to persistence (spec §4.3 save_game). The
// client-supplied gameConfig payload takes precedence when present (e.g. a
// host saving a freshly generated config before ever loading it into the
// live room); otherwise the room's currently loaded config is used. Per
// §5's suspension-point rule, the lock is held only to read role/state and
// copy the config; the actual I/O runs outside the critical section.
func (r *Room) handleSaveGame(ctx context.Context, participantID string, submitted game.GameConfig) {
	r.mu.Lock()
	if err := r.requireRoleLocked(participantID, game.RoleHost); err != nil {
		r.sendErrorLocked(participantID, roomerr.WireMessage(err))
		r.mu.Unlock()
		return
	}
	var cfg game.GameConfig
	switch {
	case submitted.ID != "":
		cfg = submitted
	case r.Config != nil:
		cfg = *r.Config
	default:
		r.sendErrorLocked(participantID, roomerr.WireMessage(roomerr.State("no game is loaded to save")))
		r.mu.Unlock()
		return
	}
	r.mu.Unlock()

	if err := r.persistence.Save(ctx, cfg); err != nil {
		r.sender.SendTo(participantID, newError(roomerr.WireMessage(roomerr.Dependency(fmt.Sprintf("failed to save game %s", cfg.ID), err))))
		return
	}
	r.sender.SendTo(participantID, GameSavedMsg{Type: "gameSaved", GameID: cfg.ID})
}
