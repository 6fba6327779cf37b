package game

import (
	"time"

	"reflexduel/internal/domain"
)

const (
	// AnswerWindow is how long the opponent has after the first answer.
	AnswerWindow = 3 * time.Second
	// WinMargin is the absolute score lead that ends a match.
	WinMargin = 5
)

// Phase of a round.
type Phase string

const (
	PhaseOpen     Phase = "open"
	PhaseArmed    Phase = "armed"
	PhaseResolved Phase = "resolved"
)

// NewRound starts a round with the given target and no answers.
func NewRound(target domain.Symbol, now time.Time) domain.RoundState {
	return domain.RoundState{
		Target:    target,
		StartedAt: now,
		Answers:   make(map[string]domain.Answer, 2),
	}
}

func PhaseOf(rs *domain.RoundState) Phase {
	switch len(rs.Answers) {
	case 0:
		return PhaseOpen
	case 1:
		return PhaseArmed
	}
	return PhaseResolved
}

// Record stores the player's answer. It returns false without touching the
// round when the player already answered. The first answer arms the deadline.
func Record(rs *domain.RoundState, playerID string, choice domain.Symbol, now time.Time, window time.Duration) bool {
	if _, ok := rs.Answers[playerID]; ok {
		return false
	}
	if rs.Answers == nil {
		rs.Answers = make(map[string]domain.Answer, 2)
	}
	rs.Answers[playerID] = domain.Answer{Choice: choice, At: now}
	if rs.FirstAnswerAt == nil {
		first := now
		deadline := now.Add(window)
		rs.FirstAnswerAt = &first
		rs.Deadline = &deadline
	}
	return true
}

// Due reports whether the round has an armed deadline that has been reached.
func Due(rs *domain.RoundState, now time.Time) bool {
	return rs.Deadline != nil && !now.Before(*rs.Deadline)
}

// PlayerResult is one side of a resolved round.
type PlayerResult struct {
	PlayerID   string
	Choice     domain.Symbol
	ReactionMs int64
	Outcome    domain.Outcome
}

// Resolution is the outcome of a round. Results holds the fast player first.
type Resolution struct {
	Round      int
	Target     domain.Symbol
	FastIndex  int
	FastChoice domain.Symbol
	FastWins   bool
	Delta      int
	Results    [2]PlayerResult
}

func (r Resolution) Fast() string { return r.Results[0].PlayerID }
func (r Resolution) Slow() string { return r.Results[1].PlayerID }

// Resolve decides the current round of m without mutating it. The earliest
// answer is the fast one; equal timestamps go to player A. A player who never
// answered is logged with no choice and a reaction time of the full window.
// It returns false when nobody has answered yet.
func Resolve(m *domain.Match, window time.Duration) (Resolution, bool) {
	rs := &m.Current
	fast := -1
	var fastAt time.Time
	for i, p := range m.Players {
		a, ok := rs.Answers[p]
		if !ok {
			continue
		}
		if fast < 0 || a.At.Before(fastAt) {
			fast, fastAt = i, a.At
		}
	}
	if fast < 0 {
		return Resolution{}, false
	}
	slow := 1 - fast

	fastAnswer := rs.Answers[m.Players[fast]]
	fastWins := Beats(fastAnswer.Choice, rs.Target)

	delta := -1
	if (fast == 0) == fastWins {
		delta = 1
	}

	fastOutcome, slowOutcome := domain.OutcomeLose, domain.OutcomeWin
	if fastWins {
		fastOutcome, slowOutcome = domain.OutcomeWin, domain.OutcomeLose
	}

	res := Resolution{
		Round:      m.Round,
		Target:     rs.Target,
		FastIndex:  fast,
		FastChoice: fastAnswer.Choice,
		FastWins:   fastWins,
		Delta:      delta,
	}
	res.Results[0] = PlayerResult{
		PlayerID:   m.Players[fast],
		Choice:     fastAnswer.Choice,
		ReactionMs: reactionMs(rs.StartedAt, fastAnswer.At),
		Outcome:    fastOutcome,
	}
	res.Results[1] = PlayerResult{
		PlayerID:   m.Players[slow],
		ReactionMs: window.Milliseconds(),
		Outcome:    slowOutcome,
	}
	if a, ok := rs.Answers[m.Players[slow]]; ok {
		res.Results[1].Choice = a.Choice
		res.Results[1].ReactionMs = reactionMs(rs.StartedAt, a.At)
	}
	return res, true
}

func reactionMs(start, at time.Time) int64 {
	ms := at.Sub(start).Milliseconds()
	if ms < 0 {
		return 0
	}
	return ms
}

// Apply folds a resolution into the match. When the lead reaches margin the
// winner is set and the match becomes terminal; otherwise the round counter
// advances and next becomes the current round. It reports whether the match
// is now finished.
func Apply(m *domain.Match, res Resolution, margin int, next domain.RoundState) bool {
	m.Score += res.Delta
	m.LastRound = &domain.RoundSummary{
		Round:      res.Round,
		Target:     res.Target,
		FastPlayer: res.Fast(),
		FastChoice: res.FastChoice,
		FastWins:   res.FastWins,
	}
	if abs(m.Score) >= margin {
		if m.Score > 0 {
			m.Winner = m.Players[0]
		} else {
			m.Winner = m.Players[1]
		}
		m.FinishReason = domain.FinishLead
		return true
	}
	m.Round++
	m.Current = next
	return false
}

// LogEntries converts a resolution into one log entry per player.
func LogEntries(matchID string, res Resolution, ts time.Time) map[string]domain.LogEntry {
	out := make(map[string]domain.LogEntry, 2)
	for _, r := range res.Results {
		out[r.PlayerID] = domain.LogEntry{
			MatchID:    matchID,
			Round:      res.Round,
			Target:     res.Target,
			Choice:     r.Choice,
			ReactionMs: r.ReactionMs,
			Outcome:    r.Outcome,
			Timestamp:  ts,
		}
	}
	return out
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
