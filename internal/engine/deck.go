package engine

import "slices"

var DefaultDeck = []string{
	"It's raining cats and dogs",
	"Break a leg",
	"Piece of cake",
	"Hit the nail on the head",
	"Spill the beans",
	"Cost an arm and a leg",
	"Under the weather",
	"Bite off more than you can chew",
	"Beat around the bush",
	"Pull someone's leg",
}

// NewDeck returns a copy of the default deck so rooms never share backing storage.
func NewDeck() []string {
	return slices.Clone(DefaultDeck)
}
