package types

// ClientMessage is the single inbound envelope; Type selects which of the
// optional fields matter.
type ClientMessage struct {
	Type       string `json:"type"`
	RoomCode   string `json:"roomCode,omitempty"`
	PlayerName string `json:"playerName,omitempty"`
	HostName   string `json:"hostName,omitempty"`
	Mode       string `json:"mode,omitempty"` // "player" | "spectator"
	Answer     string `json:"answer,omitempty"`
	VotedForID string `json:"votedForId,omitempty"`
}

type ServerMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}
