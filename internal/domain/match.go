package domain

import "time"

// Answer is a player's response within a round.
type Answer struct {
	Choice Symbol    `json:"choice"`
	At     time.Time `json:"at"`
}

// RoundState is the state of the round currently being played in a match.
// Deadline is set if and only if FirstAnswerAt is set.
type RoundState struct {
	Target        Symbol            `json:"target"`
	StartedAt     time.Time         `json:"started_at"`
	FirstAnswerAt *time.Time        `json:"first_answer_at,omitempty"`
	Deadline      *time.Time        `json:"deadline,omitempty"`
	Answers       map[string]Answer `json:"answers"`
}

// RoundSummary describes how the previous round was decided.
type RoundSummary struct {
	Round      int    `json:"round"`
	Target     Symbol `json:"target"`
	FastPlayer string `json:"fast_player"`
	FastChoice Symbol `json:"fast_choice"`
	FastWins   bool   `json:"fast_wins"`
}

// FinishReason tells which route ended a match.
type FinishReason string

const (
	FinishLead    FinishReason = "lead"
	FinishForfeit FinishReason = "forfeit"
	FinishGiveUp  FinishReason = "give_up"
)

// Match is a live two-player match. Score is expressed relative to
// Players[0] (player A): positive favors A.
type Match struct {
	ID           string        `json:"id"`
	Players      [2]string     `json:"players"`
	Round        int           `json:"round"`
	Score        int           `json:"score"`
	Current      RoundState    `json:"current"`
	Winner       string        `json:"winner,omitempty"`
	FinishReason FinishReason  `json:"finish_reason,omitempty"`
	LastRound    *RoundSummary `json:"last_round,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
}

// Index returns 0 for player A, 1 for player B and -1 for anyone else.
func (m *Match) Index(playerID string) int {
	switch playerID {
	case m.Players[0]:
		return 0
	case m.Players[1]:
		return 1
	}
	return -1
}

func (m *Match) HasPlayer(playerID string) bool {
	return m.Index(playerID) >= 0
}

// Opponent returns the other participant, or "" for a non-participant.
func (m *Match) Opponent(playerID string) string {
	switch m.Index(playerID) {
	case 0:
		return m.Players[1]
	case 1:
		return m.Players[0]
	}
	return ""
}

func (m *Match) Finished() bool {
	return m.Winner != ""
}

// Clone returns a deep copy that shares no mutable state with m.
func (m *Match) Clone() Match {
	c := *m
	c.Current = m.Current.Clone()
	if m.LastRound != nil {
		lr := *m.LastRound
		c.LastRound = &lr
	}
	return c
}

func (r RoundState) Clone() RoundState {
	c := r
	if r.FirstAnswerAt != nil {
		t := *r.FirstAnswerAt
		c.FirstAnswerAt = &t
	}
	if r.Deadline != nil {
		t := *r.Deadline
		c.Deadline = &t
	}
	c.Answers = make(map[string]Answer, len(r.Answers))
	for k, v := range r.Answers {
		c.Answers[k] = v
	}
	return c
}

// ScoreFor converts the differential score into (mine, theirs) from the
// perspective of playerID. Anyone other than player B sees player A's side.
func (m *Match) ScoreFor(playerID string) (mine, theirs int) {
	mine, theirs = max(m.Score, 0), max(-m.Score, 0)
	if m.Index(playerID) == 1 {
		mine, theirs = theirs, mine
	}
	return mine, theirs
}

// Invite is a direct challenge from one player to another player's display name.
type Invite struct {
	ID        string    `json:"id"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	CreatedAt time.Time `json:"created_at"`
}
