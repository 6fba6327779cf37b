package engine

import (
	"context"
	"errors"
	"slices"

	"reflexduel/internal/domain"
	"reflexduel/internal/game"
)

// DefaultLogLimit is how many recent log entries Logs returns by default.
const DefaultLogLimit = 500

// Match returns a copy of a live match.
func (e *Engine) Match(matchID string) (domain.Match, error) {
	lm, err := e.lookup(matchID)
	if err != nil {
		return domain.Match{}, err
	}
	lm.mu.Lock()
	defer lm.mu.Unlock()
	return lm.m.Clone(), nil
}

// MatchFor returns the id of the live match player is in.
func (e *Engine) MatchFor(player string) (string, bool) {
	return e.busy(player)
}

// CurrentScoreFor returns the score of a live match from player's side.
func (e *Engine) CurrentScoreFor(matchID, player string) (mine, theirs int, err error) {
	lm, err := e.lookup(matchID)
	if err != nil {
		return 0, 0, err
	}
	lm.mu.Lock()
	defer lm.mu.Unlock()
	if !lm.m.HasPlayer(player) {
		return 0, 0, domain.ErrNotAParticipant
	}
	mine, theirs = lm.m.ScoreFor(player)
	return mine, theirs, nil
}

// View renders the match for one of its players. A match that already left
// the live set is rendered from the player's archive.
func (e *Engine) View(matchID, player string) (domain.MatchView, error) {
	lm, err := e.lookup(matchID)
	if errors.Is(err, domain.ErrMatchNotFound) {
		return e.archivedView(matchID, player)
	}
	if err != nil {
		return domain.MatchView{}, err
	}

	lm.mu.Lock()
	m := lm.m.Clone()
	lm.mu.Unlock()

	if !m.HasPlayer(player) {
		return domain.MatchView{}, domain.ErrNotAParticipant
	}

	mine, theirs := m.ScoreFor(player)
	opp := m.Opponent(player)
	v := domain.MatchView{
		MatchID:    m.ID,
		You:        player,
		Opponent:   opp,
		Round:      m.Round,
		MyScore:    mine,
		TheirScore: theirs,
		WinMargin:  e.opts.WinMargin,
		Finished:   m.Finished(),
		Winner:     m.Winner,
		Reason:     m.FinishReason,
		LastRound:  m.LastRound,
	}
	if acc, ok := e.Account(opp); ok {
		v.OpponentName = acc.Name
	}
	if !v.Finished {
		v.Target = m.Current.Target
		v.Options = game.OtherTwo(m.Current.Target)
		_, v.Answered = m.Current.Answers[player]
		_, v.OpponentAnswered = m.Current.Answers[opp]
		if m.Current.Deadline != nil {
			left := max(m.Current.Deadline.Sub(e.clock.Now()).Milliseconds(), 0)
			v.DeadlineInMs = &left
		}
	}
	return v, nil
}

func (e *Engine) archivedView(matchID, player string) (domain.MatchView, error) {
	e.histMu.RLock()
	list := e.archives[player]
	i := slices.IndexFunc(list, func(a domain.ArchiveSummary) bool { return a.MatchID == matchID })
	var a domain.ArchiveSummary
	if i >= 0 {
		a = list[i]
	}
	e.histMu.RUnlock()
	if i < 0 {
		return domain.MatchView{}, domain.ErrMatchNotFound
	}

	m := domain.Match{ID: a.MatchID, Players: a.Players, Score: a.FinalScore}
	mine, theirs := m.ScoreFor(player)
	v := domain.MatchView{
		MatchID:    a.MatchID,
		You:        player,
		Opponent:   m.Opponent(player),
		Round:      a.TotalRounds,
		MyScore:    mine,
		TheirScore: theirs,
		WinMargin:  e.opts.WinMargin,
		Finished:   true,
		Winner:     a.Winner,
		Reason:     a.Reason,
	}
	if acc, ok := e.Account(v.Opponent); ok {
		v.OpponentName = acc.Name
	}
	return v, nil
}

// Logs returns the most recent limit log entries of player, oldest first.
// A limit <= 0 means DefaultLogLimit.
func (e *Engine) Logs(player string, limit int) []domain.LogEntry {
	if limit <= 0 {
		limit = DefaultLogLimit
	}
	e.histMu.RLock()
	defer e.histMu.RUnlock()
	l := e.logs[player]
	if len(l) > limit {
		l = l[len(l)-limit:]
	}
	return slices.Clone(l)
}

// Archives returns every finished match of player, oldest first.
func (e *Engine) Archives(player string) []domain.ArchiveSummary {
	e.histMu.RLock()
	defer e.histMu.RUnlock()
	return slices.Clone(e.archives[player])
}

func (e *Engine) LiveCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.matches)
}

func (e *Engine) QueueLen() int {
	return e.queue.Len()
}

// Sweep runs the due/forfeit check over every live match. It returns how
// many matches changed.
func (e *Engine) Sweep(ctx context.Context) (int, error) {
	e.mu.RLock()
	ids := make([]string, 0, len(e.matches))
	for id := range e.matches {
		ids = append(ids, id)
	}
	e.mu.RUnlock()

	changed := 0
	var errs []error
	for _, id := range ids {
		res, err := e.ResolveDueOrForfeit(ctx, id)
		if errors.Is(err, domain.ErrMatchNotFound) {
			continue
		}
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if res.Resolved || res.Forfeited {
			changed++
		}
	}
	return changed, errors.Join(errs...)
}
