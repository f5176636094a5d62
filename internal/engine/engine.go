package engine

import (
	"errors"
	"slices"
	"strings"
	"time"
)

var ErrWrongPhase = errors.New("action not allowed in current phase")
var ErrDuplicateAction = errors.New("already acted this round")
var ErrNotHost = errors.New("only the host can start the game")
var ErrNotEnoughPlayers = errors.New("not enough players")
var ErrNotMember = errors.New("not a member of this room")
var ErrSelfVote = errors.New("cannot vote for yourself")
var ErrUnknownTarget = errors.New("vote target made no submission")
var ErrEmptyAnswer = errors.New("empty answer")
var ErrNameRequired = errors.New("player name required")
var ErrGameInProgress = errors.New("game in progress")
var ErrAlreadyMember = errors.New("already in this room")
var ErrStaleTimer = errors.New("stale timer")
var ErrUnsupportedCommand = errors.New("unsupported command")
var ErrEmptyDeck = errors.New("deck is empty")

type Phase string

const (
	PhaseWaiting    Phase = "waiting"
	PhaseSubmitting Phase = "submitting"
	PhaseVoting     Phase = "voting"
	PhaseResults    Phase = "results"
	PhaseGameOver   Phase = "gameOver"
)

type Mode string

const (
	ModePlayerHosted    Mode = "player"
	ModeSpectatorHosted Mode = "spectator"
)

type Player struct {
	ID    string
	Name  string
	Score int
}

type Rules struct {
	MinPlayers      int
	SubmitTimeout   time.Duration
	VoteTimeout     time.Duration
	ResultsDelay    time.Duration
	MaxNameLength   int
	MaxAnswerLength int
}

func DefaultRules() Rules {
	return Rules{
		MinPlayers:      3,
		SubmitTimeout:   60 * time.Second,
		VoteTimeout:     30 * time.Second,
		ResultsDelay:    5 * time.Second,
		MaxNameLength:   24,
		MaxAnswerLength: 140,
	}
}

// TimerKey identifies the phase a scheduled timeout belongs to. A fired
// timer whose key no longer matches the room is dropped.
type TimerKey struct {
	Round int
	Phase Phase
}

type State struct {
	Code        string
	Mode        Mode
	HostID      string
	SpectatorID string
	Players     []Player
	Phase       Phase
	Round       int
	Deck        []string
	Submissions Submissions
	Votes       Votes
	Deadline    time.Time
	Rules       Rules
}

type CommandType string

const (
	CmdJoin           CommandType = "Join"
	CmdLeave          CommandType = "Leave"
	CmdStartGame      CommandType = "StartGame"
	CmdSubmitAnswer   CommandType = "SubmitAnswer"
	CmdSubmitVote     CommandType = "SubmitVote"
	CmdTimeoutAdvance CommandType = "TimeoutAdvance"
)

type Command struct {
	Type     CommandType
	ConnID   string
	Name     string
	Text     string
	TargetID string
	Timer    TimerKey
	At       time.Time
}

type EventType string

const (
	EvtPlayerJoined   EventType = "PlayerJoined"
	EvtObserverJoined EventType = "ObserverJoined"
	EvtPlayerLeft     EventType = "PlayerLeft"
	EvtGameStarted    EventType = "GameStarted"
	EvtAnswerAccepted EventType = "AnswerAccepted"
	EvtVotingStarted  EventType = "VotingStarted"
	EvtVoteAccepted   EventType = "VoteAccepted"
	EvtRoundScored    EventType = "RoundScored"
	EvtRoundStarted   EventType = "RoundStarted"
	EvtGameCompleted  EventType = "GameCompleted"
	EvtTimerStarted   EventType = "TimerStarted"
	EvtTimerExpired   EventType = "TimerExpired"
	EvtRoomEmptied    EventType = "RoomEmptied"
)

type Event struct {
	Type    EventType
	ConnID  string
	Answers []Answer
	Deltas  map[string]int
	Correct string
	Timer   TimerKey
	After   time.Duration

	// Deadline is set on TimerStarted: the wall-clock time the phase closes.
	Deadline time.Time
}

// NewState builds a room in Waiting. In player-hosted mode the host is the
// first player; in spectator-hosted mode the host connection only watches.
func NewState(code string, mode Mode, hostID, hostName string, deck []string, rules Rules) State {
	s := State{
		Code:        code,
		Mode:        mode,
		HostID:      hostID,
		Phase:       PhaseWaiting,
		Deck:        slices.Clone(deck),
		Submissions: NewSubmissions(),
		Votes:       NewVotes(),
		Rules:       rules,
	}
	if mode == ModeSpectatorHosted {
		s.SpectatorID = hostID
		return s
	}
	s.Players = []Player{{ID: hostID, Name: clip(strings.TrimSpace(hostName), rules.MaxNameLength)}}
	return s
}

func Apply(s State, cmd Command) ([]Event, State, error) {
	newState := s.clone()

	switch cmd.Type {
	case CmdJoin:
		return applyJoin(newState, s, cmd)
	case CmdLeave:
		return applyLeave(newState, s, cmd)
	case CmdStartGame:
		return applyStart(newState, s, cmd)
	case CmdSubmitAnswer:
		return applySubmit(newState, s, cmd)
	case CmdSubmitVote:
		return applyVote(newState, s, cmd)
	case CmdTimeoutAdvance:
		return applyTimeout(newState, s, cmd)
	default:
		return nil, s, ErrUnsupportedCommand
	}
}

func applyJoin(ns, s State, cmd Command) ([]Event, State, error) {
	switch s.Phase {
	case PhaseWaiting:
	case PhaseGameOver:
		// Late arrivals only get to see the final board.
		return []Event{{Type: EvtObserverJoined, ConnID: cmd.ConnID}}, s, nil
	default:
		return nil, s, ErrGameInProgress
	}

	if s.IsMember(cmd.ConnID) {
		return nil, s, ErrAlreadyMember
	}
	name := clip(strings.TrimSpace(cmd.Name), s.Rules.MaxNameLength)
	if name == "" {
		return nil, s, ErrNameRequired
	}

	ns.Players = append(ns.Players, Player{ID: cmd.ConnID, Name: name})
	return []Event{{Type: EvtPlayerJoined, ConnID: cmd.ConnID}}, ns, nil
}

func applyLeave(ns, s State, cmd Command) ([]Event, State, error) {
	switch {
	case cmd.ConnID != "" && cmd.ConnID == s.SpectatorID:
		ns.SpectatorID = ""
	case s.playerIndex(cmd.ConnID) >= 0:
		ns.Players = slices.DeleteFunc(ns.Players, func(p Player) bool { return p.ID == cmd.ConnID })
		ns.Submissions.Remove(cmd.ConnID)
		ns.Votes.Remove(cmd.ConnID)
		ns.Votes.RemoveTarget(cmd.ConnID)
	default:
		return nil, s, ErrNotMember
	}

	if ns.HostID == cmd.ConnID {
		ns.HostID = ""
		if len(ns.Players) > 0 {
			ns.HostID = ns.Players[0].ID
		}
	}

	events := []Event{{Type: EvtPlayerLeft, ConnID: cmd.ConnID}}
	if len(ns.Players) == 0 && ns.SpectatorID == "" {
		return append(events, Event{Type: EvtRoomEmptied}), ns, nil
	}

	// The departure may have been the last outstanding submission or vote.
	switch ns.Phase {
	case PhaseSubmitting:
		if ns.submissionsComplete() {
			events = append(events, openVoting(&ns, cmd.At)...)
		}
	case PhaseVoting:
		if ns.votesComplete() {
			events = append(events, scoreRound(&ns, cmd.At)...)
		}
	}
	return events, ns, nil
}

func applyStart(ns, s State, cmd Command) ([]Event, State, error) {
	if s.Phase != PhaseWaiting {
		return nil, s, ErrWrongPhase
	}
	if cmd.ConnID != s.HostID {
		return nil, s, ErrNotHost
	}
	if len(s.Players) < s.Rules.MinPlayers {
		return nil, s, ErrNotEnoughPlayers
	}
	if len(s.Deck) == 0 {
		return nil, s, ErrEmptyDeck
	}

	ns.Round = 0
	events := []Event{{Type: EvtGameStarted}}
	return append(events, openSubmissions(&ns, cmd.At)...), ns, nil
}

func applySubmit(ns, s State, cmd Command) ([]Event, State, error) {
	if s.Phase != PhaseSubmitting {
		return nil, s, ErrWrongPhase
	}
	if s.playerIndex(cmd.ConnID) < 0 {
		return nil, s, ErrNotMember
	}
	text := clip(strings.TrimSpace(cmd.Text), s.Rules.MaxAnswerLength)
	if text == "" {
		return nil, s, ErrEmptyAnswer
	}
	if err := ns.Submissions.Record(cmd.ConnID, text); err != nil {
		return nil, s, err
	}

	events := []Event{{Type: EvtAnswerAccepted, ConnID: cmd.ConnID}}
	if ns.submissionsComplete() {
		events = append(events, openVoting(&ns, cmd.At)...)
	}
	return events, ns, nil
}

func applyVote(ns, s State, cmd Command) ([]Event, State, error) {
	if s.Phase != PhaseVoting {
		return nil, s, ErrWrongPhase
	}
	if s.playerIndex(cmd.ConnID) < 0 {
		return nil, s, ErrNotMember
	}
	if cmd.ConnID == cmd.TargetID {
		return nil, s, ErrSelfVote
	}
	if !s.Submissions.Has(cmd.TargetID) {
		return nil, s, ErrUnknownTarget
	}
	if err := ns.Votes.Record(cmd.ConnID, cmd.TargetID); err != nil {
		return nil, s, err
	}

	events := []Event{{Type: EvtVoteAccepted, ConnID: cmd.ConnID}}
	if ns.votesComplete() {
		events = append(events, scoreRound(&ns, cmd.At)...)
	}
	return events, ns, nil
}

func applyTimeout(ns, s State, cmd Command) ([]Event, State, error) {
	if cmd.Timer.Phase != s.Phase || cmd.Timer.Round != s.Round {
		return nil, s, ErrStaleTimer
	}

	events := []Event{{Type: EvtTimerExpired, Timer: cmd.Timer}}
	switch s.Phase {
	case PhaseSubmitting:
		events = append(events, openVoting(&ns, cmd.At)...)
	case PhaseVoting:
		events = append(events, scoreRound(&ns, cmd.At)...)
	case PhaseResults:
		if ns.Round < len(ns.Deck) {
			events = append(events, Event{Type: EvtRoundStarted})
			events = append(events, openSubmissions(&ns, cmd.At)...)
		} else {
			ns.Phase = PhaseGameOver
			ns.Deadline = time.Time{}
			events = append(events, Event{Type: EvtGameCompleted})
		}
	default:
		return nil, s, ErrStaleTimer
	}
	return events, ns, nil
}

func openSubmissions(s *State, at time.Time) []Event {
	s.Phase = PhaseSubmitting
	s.Submissions = NewSubmissions()
	s.Votes = NewVotes()
	return []Event{s.startTimer(at, s.Rules.SubmitTimeout)}
}

func openVoting(s *State, at time.Time) []Event {
	s.Phase = PhaseVoting
	s.Votes = NewVotes()
	events := []Event{{Type: EvtVotingStarted, Answers: s.Submissions.Answers()}}

	// Nobody can cast a legal vote, so there is nothing to wait for.
	if s.votesComplete() {
		return append(events, scoreRound(s, at)...)
	}
	return append(events, s.startTimer(at, s.Rules.VoteTimeout))
}

func scoreRound(s *State, at time.Time) []Event {
	correct := s.CurrentIdiom()
	deltas := Score(s.Players, s.Submissions.Map(), s.Votes.Map(), correct)
	for i := range s.Players {
		s.Players[i].Score += deltas[s.Players[i].ID]
	}

	s.Submissions = NewSubmissions()
	s.Votes = NewVotes()
	s.Round++
	s.Phase = PhaseResults

	return []Event{
		{Type: EvtRoundScored, Deltas: deltas, Correct: correct},
		s.startTimer(at, s.Rules.ResultsDelay),
	}
}

func (s *State) startTimer(at time.Time, d time.Duration) Event {
	s.Deadline = at.Add(d)
	return Event{Type: EvtTimerStarted, Timer: TimerKey{Round: s.Round, Phase: s.Phase}, After: d, Deadline: s.Deadline}
}
