package types

// Client -> Server
// createRoom:   hostName?: string, mode?: "player" | "spectator"
// joinRoom:     roomCode: string, playerName: string
// startGame:    roomCode: string
// submitAnswer: roomCode: string, answer: string
// submitVote:   roomCode: string, votedForId: string
const (
	EventCreateRoom   = "createRoom"
	EventJoinRoom     = "joinRoom"
	EventStartGame    = "startGame"
	EventSubmitAnswer = "submitAnswer"
	EventSubmitVote   = "submitVote"
)

// Server -> Client
const (
	EventRoomCreated  = "roomCreated"
	EventPlayerJoined = "playerJoined"
	EventPlayerLeft   = "playerLeft"
	EventGameStarted  = "gameStarted"
	EventStartVoting  = "startVoting"
	EventRoundEnd     = "roundEnd"
	EventRoundStarted = "roundStarted"
	EventGameOver     = "gameOver"
	EventError        = "error"
)

type PlayerView struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Score int    `json:"score"`
}

type AnswerView struct {
	PlayerID string `json:"playerId"`
	Answer   string `json:"answer"`
}

type RoomCreated struct {
	RoomCode string `json:"roomCode"`
	PlayerID string `json:"playerId"`
	Mode     string `json:"mode"`
}

// Roster is sent with playerJoined and playerLeft, players in join order.
type Roster struct {
	Players []PlayerView `json:"players"`
	HostID  string       `json:"hostId"`
}

type GameStarted struct {
	CurrentIdiom string       `json:"currentIdiom"`
	Players      []PlayerView `json:"players"`
	Round        int          `json:"round"`
	TotalRounds  int          `json:"totalRounds"`
	Deadline     string       `json:"deadline,omitempty"`
}

type StartVoting struct {
	Answers  []AnswerView `json:"answers"`
	Deadline string       `json:"deadline,omitempty"`
}

// RoundEnd scores are sorted by score, highest first. NextRound is empty
// after the final round.
type RoundEnd struct {
	Scores        []PlayerView   `json:"scores"`
	Deltas        map[string]int `json:"deltas"`
	CorrectAnswer string         `json:"correctAnswer"`
	NextRound     string         `json:"nextRound"`
	Round         int            `json:"round"`
}

type RoundStarted struct {
	CurrentIdiom string `json:"currentIdiom"`
	Round        int    `json:"round"`
	TotalRounds  int    `json:"totalRounds"`
	Deadline     string `json:"deadline,omitempty"`
}

type GameOver struct {
	Scores []PlayerView `json:"scores"`
}

type Error struct {
	Message string `json:"message"`
}
