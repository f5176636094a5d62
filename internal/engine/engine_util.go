package engine

import (
	"slices"
	"unicode/utf8"
)

func (s State) clone() State {
	c := s
	c.Players = slices.Clone(s.Players)
	c.Deck = slices.Clone(s.Deck)
	c.Submissions = s.Submissions.clone()
	c.Votes = s.Votes.clone()
	return c
}

func (s State) playerIndex(id string) int {
	if id == "" {
		return -1
	}
	return slices.IndexFunc(s.Players, func(p Player) bool { return p.ID == id })
}

// IsMember reports whether id is a player or the spectator of the room.
func (s State) IsMember(id string) bool {
	return s.playerIndex(id) >= 0 || (id != "" && id == s.SpectatorID)
}

func (s State) Player(id string) (Player, bool) {
	i := s.playerIndex(id)
	if i < 0 {
		return Player{}, false
	}
	return s.Players[i], true
}

// CurrentIdiom is the deck entry for the round in play, or "" once the
// deck is exhausted.
func (s State) CurrentIdiom() string {
	if s.Round < 0 || s.Round >= len(s.Deck) {
		return ""
	}
	return s.Deck[s.Round]
}

func (s State) Empty() bool {
	return len(s.Players) == 0 && s.SpectatorID == ""
}

// submissionsComplete compares against the player list only; the spectator
// is never in it.
func (s State) submissionsComplete() bool {
	return len(s.Players) > 0 && s.Submissions.Len() >= len(s.Players)
}

// EligibleVoters returns the players that have at least one answer other
// than their own to vote for, in join order.
func (s State) EligibleVoters() []string {
	var ids []string
	for _, p := range s.Players {
		n := s.Submissions.Len()
		if s.Submissions.Has(p.ID) {
			n--
		}
		if n > 0 {
			ids = append(ids, p.ID)
		}
	}
	return ids
}

func (s State) votesComplete() bool {
	for _, id := range s.EligibleVoters() {
		if !s.Votes.Has(id) {
			return false
		}
	}
	return true
}

func ContainsEvent(events []Event, eventType EventType) bool {
	for _, event := range events {
		if event.Type == eventType {
			return true
		}
	}
	return false
}

func clip(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}
