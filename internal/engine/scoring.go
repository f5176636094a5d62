package engine

import "strings"

const (
	PointsCorrect   = 1000
	PointsDeception = 500
)

// Score returns the points each player earns for a finished round. Every
// player gets an entry, zero included. It does not touch any room state.
func Score(players []Player, submissions map[string]string, votes map[string]string, correctText string) map[string]int {
	correct := strings.TrimSpace(correctText)
	deltas := make(map[string]int, len(players))

	for _, p := range players {
		deltas[p.ID] = 0

		text, ok := submissions[p.ID]
		if !ok {
			continue
		}
		if strings.TrimSpace(text) == correct {
			deltas[p.ID] += PointsCorrect
			continue
		}
		for voter, target := range votes {
			if target == p.ID && voter != p.ID {
				deltas[p.ID] += PointsDeception
			}
		}
	}
	return deltas
}
