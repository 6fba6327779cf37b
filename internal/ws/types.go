package ws

const (
	// client - server
	MsgPlay      = "play"
	MsgCancel    = "cancel"
	MsgAnswer    = "answer"
	MsgGiveUp    = "give_up"
	MsgHeartbeat = "heartbeat"

	// server - client
	MsgReady  = "ready"
	MsgQueued = "queued"
	MsgState  = "state"
	MsgError  = "error"
)

// Message is the envelope for everything sent to a client.
type Message struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}
