package types

// RoomSnapshot is the read-only summary served at GET /rooms/{code}.
type RoomSnapshot struct {
	Code        string       `json:"code"`
	Mode        string       `json:"mode"`
	Phase       string       `json:"phase"`
	Round       int          `json:"round"`
	TotalRounds int          `json:"totalRounds"`
	HostID      string       `json:"hostId"`
	Players     []PlayerView `json:"players"`
}
