package domain

// MatchView is a match as seen by one of its players.
type MatchView struct {
	MatchID          string        `json:"match_id"`
	You              string        `json:"you"`
	Opponent         string        `json:"opponent"`
	OpponentName     string        `json:"opponent_name,omitempty"`
	Round            int           `json:"round"`
	Target           Symbol        `json:"target,omitempty"`
	Options          []Symbol      `json:"options,omitempty"`
	MyScore          int           `json:"my_score"`
	TheirScore       int           `json:"their_score"`
	WinMargin        int           `json:"win_margin"`
	Answered         bool          `json:"answered"`
	OpponentAnswered bool          `json:"opponent_answered"`
	DeadlineInMs     *int64        `json:"deadline_in_ms,omitempty"`
	Finished         bool          `json:"finished"`
	Winner           string        `json:"winner,omitempty"`
	Reason           FinishReason  `json:"reason,omitempty"`
	LastRound        *RoundSummary `json:"last_round,omitempty"`
}
