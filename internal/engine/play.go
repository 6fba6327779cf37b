package engine

import (
	"context"
	"fmt"
	"time"

	"reflexduel/internal/domain"
	"reflexduel/internal/game"
	"reflexduel/internal/metrics"
)

// SubmitStatus describes what happened to a submitted answer.
type SubmitStatus string

const (
	// StatusWaiting: answer recorded, the opponent has until Deadline.
	StatusWaiting SubmitStatus = "waiting"
	// StatusResolved: both answers are in and the round was resolved.
	StatusResolved SubmitStatus = "resolved"
	// StatusAlreadyRecorded: the player had answered this round already.
	StatusAlreadyRecorded SubmitStatus = "already_recorded"
	// StatusLate: the round's deadline had passed; it was resolved without
	// this answer.
	StatusLate SubmitStatus = "late"
)

type SubmitResult struct {
	Status   SubmitStatus `json:"status"`
	Message  string       `json:"message"`
	Deadline *time.Time   `json:"deadline,omitempty"`
	Finished bool         `json:"finished"`
}

// PollResult reports what a due/forfeit check changed.
type PollResult struct {
	Resolved  bool `json:"resolved"`
	Forfeited bool `json:"forfeited"`
	Finished  bool `json:"finished"`
}

// SubmitAnswer records player's answer for the current round of the match.
func (e *Engine) SubmitAnswer(ctx context.Context, matchID, player string, choice domain.Symbol) (SubmitResult, error) {
	lm, err := e.lookup(matchID)
	if err != nil {
		if e.archived(matchID) {
			return SubmitResult{}, domain.ErrMatchFinished
		}
		return SubmitResult{}, err
	}

	res, changed, err := e.submitLocked(lm, player, choice)
	if err != nil || !changed {
		return res, err
	}
	return res, e.persist(ctx)
}

func (e *Engine) submitLocked(lm *liveMatch, player string, choice domain.Symbol) (SubmitResult, bool, error) {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	m := &lm.m
	if lm.closed || m.Finished() {
		return SubmitResult{}, false, domain.ErrMatchFinished
	}
	if !m.HasPlayer(player) {
		return SubmitResult{}, false, domain.ErrNotAParticipant
	}

	now := e.clock.Now()
	if game.Due(&m.Current, now) {
		e.resolveLocked(lm, now, "deadline")
		return SubmitResult{
			Status:   StatusLate,
			Message:  "Round already resolved.",
			Finished: m.Finished(),
		}, true, nil
	}

	if !game.ValidResponse(m.Current.Target, choice) {
		return SubmitResult{}, false, domain.ErrInvalidChoice
	}
	if _, ok := m.Current.Answers[player]; ok {
		return SubmitResult{
			Status:   StatusAlreadyRecorded,
			Message:  "Answer already recorded.",
			Deadline: m.Current.Deadline,
		}, false, nil
	}

	game.Record(&m.Current, player, choice, now, e.opts.AnswerWindow)
	e.log.Debug("answer recorded", "match_id", m.ID, "player_id", player, "round", m.Round, "choice", choice)

	if len(m.Current.Answers) == len(m.Players) {
		e.resolveLocked(lm, now, "both_answered")
		return SubmitResult{
			Status:   StatusResolved,
			Message:  "Answer saved. Round resolved.",
			Finished: m.Finished(),
		}, true, nil
	}

	deadline := *m.Current.Deadline
	return SubmitResult{
		Status:   StatusWaiting,
		Message:  fmt.Sprintf("Answer saved. Opponent has %s.", e.opts.AnswerWindow),
		Deadline: &deadline,
	}, true, nil
}

// ResolveIfDue resolves the current round once its deadline has passed. It
// reports whether a round was resolved. Finished matches are left alone.
func (e *Engine) ResolveIfDue(ctx context.Context, matchID string) (bool, error) {
	lm, err := e.lookup(matchID)
	if err != nil {
		if e.archived(matchID) {
			return false, nil
		}
		return false, err
	}

	lm.mu.Lock()
	resolved := false
	if !lm.closed && !lm.m.Finished() {
		now := e.clock.Now()
		if game.Due(&lm.m.Current, now) {
			resolved = e.resolveLocked(lm, now, "deadline")
		}
	}
	lm.mu.Unlock()

	if !resolved {
		return false, nil
	}
	return true, e.persist(ctx)
}

// ResolveDueOrForfeit runs the deadline check and then the forfeit check:
// when exactly one player is actively watching the match, the other forfeits.
// Polling a match that was already archived reports it as finished.
func (e *Engine) ResolveDueOrForfeit(ctx context.Context, matchID string) (PollResult, error) {
	lm, err := e.lookup(matchID)
	if err != nil {
		if e.archived(matchID) {
			return PollResult{Finished: true}, nil
		}
		return PollResult{}, err
	}

	var res PollResult
	lm.mu.Lock()
	if !lm.closed && !lm.m.Finished() {
		now := e.clock.Now()
		if game.Due(&lm.m.Current, now) {
			res.Resolved = e.resolveLocked(lm, now, "deadline")
		}
		if !lm.m.Finished() {
			res.Forfeited = e.forfeitLocked(lm, now)
		}
		res.Finished = lm.m.Finished()
	}
	lm.mu.Unlock()

	if !res.Resolved && !res.Forfeited {
		return res, nil
	}
	return res, e.persist(ctx)
}

// GiveUp concedes the match: the opponent wins regardless of score.
func (e *Engine) GiveUp(ctx context.Context, matchID, player string) error {
	lm, err := e.lookup(matchID)
	if err != nil {
		if e.archived(matchID) {
			return domain.ErrMatchFinished
		}
		return err
	}

	lm.mu.Lock()
	m := &lm.m
	switch {
	case lm.closed || m.Finished():
		lm.mu.Unlock()
		return domain.ErrMatchFinished
	case !m.HasPlayer(player):
		lm.mu.Unlock()
		return domain.ErrNotAParticipant
	}
	m.Winner = m.Opponent(player)
	m.FinishReason = domain.FinishGiveUp
	e.log.Info("player gave up", "match_id", m.ID, "player_id", player)
	e.archiveLocked(lm, e.clock.Now())
	lm.mu.Unlock()

	return e.persist(ctx)
}

// Heartbeat records that player is alive and what it is looking at.
func (e *Engine) Heartbeat(player, view, matchID string) domain.PresenceRecord {
	return e.presence.Heartbeat(player, view, matchID)
}

// ArchiveAndClose archives a finished match and removes it from the live set.
// Unknown (already archived) matches are a no-op.
func (e *Engine) ArchiveAndClose(ctx context.Context, matchID string) error {
	lm, err := e.lookup(matchID)
	if err != nil {
		return nil
	}

	lm.mu.Lock()
	if lm.closed {
		lm.mu.Unlock()
		return nil
	}
	if !lm.m.Finished() {
		lm.mu.Unlock()
		return fmt.Errorf("archive match %s: no winner yet", matchID)
	}
	e.archiveLocked(lm, e.clock.Now())
	lm.mu.Unlock()

	return e.persist(ctx)
}

// resolveLocked resolves the current round; the caller holds lm.mu.
func (e *Engine) resolveLocked(lm *liveMatch, now time.Time, trigger string) bool {
	m := &lm.m
	res, ok := game.Resolve(m, e.opts.AnswerWindow)
	if !ok {
		return false
	}

	entries := game.LogEntries(m.ID, res, now)
	finished := game.Apply(m, res, e.opts.WinMargin, game.NewRound(e.opts.Draw(), now))

	e.histMu.Lock()
	for p, entry := range entries {
		e.logs[p] = append(e.logs[p], entry)
	}
	e.histMu.Unlock()

	metrics.RoundsResolved.WithLabelValues(trigger).Inc()
	metrics.ReactionTime.Observe(float64(res.Results[0].ReactionMs) / 1000)
	e.mirror("rounds", func(ctx context.Context, sink HistorySink) error {
		return sink.RecordRounds(ctx, entries)
	})
	e.log.Info("round resolved",
		"match_id", m.ID,
		"round", res.Round,
		"target", res.Target,
		"fast_player", res.Fast(),
		"fast_choice", res.FastChoice,
		"fast_wins", res.FastWins,
		"score", m.Score,
		"trigger", trigger,
	)

	if finished {
		e.archiveLocked(lm, now)
	}
	return true
}

// forfeitLocked ends the match when exactly one player is active in the
// match view. Players get one presence window after the match starts before
// silence counts against them.
func (e *Engine) forfeitLocked(lm *liveMatch, now time.Time) bool {
	m := &lm.m
	window := e.opts.PresenceWindow
	if now.Sub(m.CreatedAt) < window {
		return false
	}

	activeA := e.presence.IsActive(m.Players[0], window, domain.ViewMatch, m.ID)
	activeB := e.presence.IsActive(m.Players[1], window, domain.ViewMatch, m.ID)
	if activeA == activeB {
		return false
	}

	if activeA {
		m.Winner = m.Players[0]
	} else {
		m.Winner = m.Players[1]
	}
	m.FinishReason = domain.FinishForfeit
	e.log.Info("player forfeited", "match_id", m.ID, "winner", m.Winner, "forfeiter", m.Opponent(m.Winner))
	e.archiveLocked(lm, now)
	return true
}

// archiveLocked is the only way a match leaves the live set. The caller holds
// lm.mu; a second call for the same match does nothing.
func (e *Engine) archiveLocked(lm *liveMatch, now time.Time) {
	if lm.closed {
		return
	}
	lm.closed = true
	m := &lm.m

	summary := domain.ArchiveSummary{
		MatchID:     m.ID,
		Players:     m.Players,
		CreatedAt:   m.CreatedAt,
		FinishedAt:  now,
		FinalScore:  m.Score,
		Winner:      m.Winner,
		TotalRounds: playedRounds(m),
		Reason:      m.FinishReason,
	}

	e.histMu.Lock()
	for _, p := range m.Players {
		e.archives[p] = append(e.archives[p], summary)
	}
	e.histMu.Unlock()

	e.mu.Lock()
	delete(e.matches, m.ID)
	for _, p := range m.Players {
		if e.byPlayer[p] == m.ID {
			delete(e.byPlayer, p)
		}
	}
	live := len(e.matches)
	e.mu.Unlock()

	metrics.MatchesFinished.WithLabelValues(string(m.FinishReason)).Inc()
	metrics.LiveMatches.Set(float64(live))
	e.mirror("archive", func(ctx context.Context, sink HistorySink) error {
		return sink.RecordArchive(ctx, summary)
	})
	e.log.Info("match archived",
		"match_id", m.ID,
		"winner", m.Winner,
		"reason", m.FinishReason,
		"score", m.Score,
		"rounds", summary.TotalRounds,
	)
}

// playedRounds counts resolved rounds. A lead ends on the round that was just
// resolved; a forfeit or give-up ends while m.Round is still open.
func playedRounds(m *domain.Match) int {
	if m.FinishReason == domain.FinishLead {
		return m.Round
	}
	return max(m.Round-1, 0)
}

// archived reports whether matchID is in some player's archive.
func (e *Engine) archived(matchID string) bool {
	e.histMu.RLock()
	defer e.histMu.RUnlock()
	for _, list := range e.archives {
		for _, a := range list {
			if a.MatchID == matchID {
				return true
			}
		}
	}
	return false
}
