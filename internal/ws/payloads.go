package ws

import "reflexduel/internal/domain"

// client → server
type Inbound struct {
	Type  string `json:"type"`
	Value string `json:"value,omitempty"` // answer symbol: R | P | S or rock | paper | scissors
	View  string `json:"view,omitempty"`  // heartbeat view: lobby | match | stats
}

// server → client
type ReadyPayload struct {
	PlayerID string `json:"player_id"`
	MatchID  string `json:"match_id,omitempty"`
}

type QueuedPayload struct {
	Queued bool `json:"queued"`
}

type StatePayload struct {
	domain.MatchView
	TargetLabel  string   `json:"target_label,omitempty"`
	OptionLabels []string `json:"option_labels,omitempty"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}
