package domain

import "time"

// Outcome of a round from one player's point of view.
type Outcome string

const (
	OutcomeWin  Outcome = "win"
	OutcomeLose Outcome = "lose"
)

// ArchiveSummary is the immutable record of a finished match. A copy is kept
// in the archive list of each participant.
type ArchiveSummary struct {
	MatchID     string       `json:"match_id"`
	Players     [2]string    `json:"players"`
	CreatedAt   time.Time    `json:"created_at"`
	FinishedAt  time.Time    `json:"finished_at"`
	FinalScore  int          `json:"final_score"`
	Winner      string       `json:"winner"`
	TotalRounds int          `json:"total_rounds"`
	Reason      FinishReason `json:"reason"`
}

// LogEntry is one player's view of one resolved round. Choice is empty when
// the player never answered before the deadline.
type LogEntry struct {
	MatchID    string    `json:"match_id"`
	Round      int       `json:"round"`
	Target     Symbol    `json:"target"`
	Choice     Symbol    `json:"choice,omitempty"`
	ReactionMs int64     `json:"reaction_ms"`
	Outcome    Outcome   `json:"outcome"`
	Timestamp  time.Time `json:"ts"`
}

// PresenceRecord is the last liveness signal received for a player. It only
// lives for the lifetime of the process.
type PresenceRecord struct {
	PlayerID string    `json:"player_id"`
	LastSeen time.Time `json:"last_seen"`
	View     string    `json:"view"`
	MatchID  string    `json:"match_id,omitempty"`
}

// Presence views reported by the UI layer.
const (
	ViewLobby = "lobby"
	ViewMatch = "match"
	ViewStats = "stats"
)
