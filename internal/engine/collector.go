package engine

import (
	"maps"
	"slices"
)

type Answer struct {
	PlayerID string
	Text     string
}

// Submissions holds at most one answer per player for the current round.
// The first answer received wins.
type Submissions struct {
	order []string
	text  map[string]string
}

func NewSubmissions() Submissions {
	return Submissions{text: map[string]string{}}
}

func (s *Submissions) Record(playerID, text string) error {
	if s.text == nil {
		s.text = map[string]string{}
	}
	if _, ok := s.text[playerID]; ok {
		return ErrDuplicateAction
	}
	s.text[playerID] = text
	s.order = append(s.order, playerID)
	return nil
}

func (s Submissions) Has(playerID string) bool {
	_, ok := s.text[playerID]
	return ok
}

func (s Submissions) Len() int { return len(s.text) }

func (s *Submissions) Remove(playerID string) {
	if _, ok := s.text[playerID]; !ok {
		return
	}
	delete(s.text, playerID)
	s.order = slices.DeleteFunc(s.order, func(id string) bool { return id == playerID })
}

// Answers lists submissions in arrival order.
func (s Submissions) Answers() []Answer {
	out := make([]Answer, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, Answer{PlayerID: id, Text: s.text[id]})
	}
	return out
}

func (s Submissions) Map() map[string]string { return maps.Clone(s.text) }

func (s Submissions) clone() Submissions {
	return Submissions{order: slices.Clone(s.order), text: maps.Clone(s.text)}
}

// Votes maps voter -> target, one vote per voter per round.
type Votes struct {
	target map[string]string
}

func NewVotes() Votes {
	return Votes{target: map[string]string{}}
}

func (v *Votes) Record(voterID, targetID string) error {
	if voterID == targetID {
		return ErrSelfVote
	}
	if v.target == nil {
		v.target = map[string]string{}
	}
	if _, ok := v.target[voterID]; ok {
		return ErrDuplicateAction
	}
	v.target[voterID] = targetID
	return nil
}

func (v Votes) Has(voterID string) bool {
	_, ok := v.target[voterID]
	return ok
}

func (v Votes) Len() int { return len(v.target) }

func (v *Votes) Remove(voterID string) { delete(v.target, voterID) }

// RemoveTarget drops every vote naming targetID.
func (v *Votes) RemoveTarget(targetID string) {
	maps.DeleteFunc(v.target, func(_, t string) bool { return t == targetID })
}

func (v Votes) Map() map[string]string { return maps.Clone(v.target) }

func (v Votes) clone() Votes {
	return Votes{target: maps.Clone(v.target)}
}
