package coordinator

import (
	"cmp"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/idiom-party-backend/internal/engine"
	ptypes "github.com/DoyleJ11/idiom-party-backend/pkg/types"
)

// Publish implements lobby.Sink. It runs on the room goroutine, so group
// membership changes and sends for one room happen in apply order.
func (c *Coordinator) Publish(code string, events []engine.Event, s engine.State) {
	for i, e := range events {
		switch e.Type {
		case engine.EvtPlayerJoined:
			c.out.JoinGroup(e.ConnID, code)
			c.out.SendToGroup(code, ptypes.EventPlayerJoined, ptypes.Roster{Players: roster(s), HostID: s.HostID})

		case engine.EvtObserverJoined:
			c.out.JoinGroup(e.ConnID, code)
			c.out.SendToConnection(e.ConnID, ptypes.EventGameOver, ptypes.GameOver{Scores: ranked(s)})

		case engine.EvtPlayerLeft:
			c.out.LeaveGroup(e.ConnID, code)
			c.out.SendToGroup(code, ptypes.EventPlayerLeft, ptypes.Roster{Players: roster(s), HostID: s.HostID})

		case engine.EvtGameStarted:
			c.out.SendToGroup(code, ptypes.EventGameStarted, ptypes.GameStarted{
				CurrentIdiom: s.CurrentIdiom(),
				Players:      roster(s),
				Round:        s.Round + 1,
				TotalRounds:  len(s.Deck),
				Deadline:     deadlineAfter(events, i, engine.PhaseSubmitting),
			})

		case engine.EvtVotingStarted:
			answers := make([]ptypes.AnswerView, 0, len(e.Answers))
			for _, a := range e.Answers {
				answers = append(answers, ptypes.AnswerView{PlayerID: a.PlayerID, Answer: a.Text})
			}
			c.shuffle(answers)
			c.out.SendToGroup(code, ptypes.EventStartVoting, ptypes.StartVoting{
				Answers:  answers,
				Deadline: deadlineAfter(events, i, engine.PhaseVoting),
			})

		case engine.EvtRoundScored:
			// Round has already advanced; CurrentIdiom is the next one, or "".
			c.out.SendToGroup(code, ptypes.EventRoundEnd, ptypes.RoundEnd{
				Scores:        ranked(s),
				Deltas:        e.Deltas,
				CorrectAnswer: e.Correct,
				NextRound:     s.CurrentIdiom(),
				Round:         s.Round,
			})

		case engine.EvtRoundStarted:
			c.out.SendToGroup(code, ptypes.EventRoundStarted, ptypes.RoundStarted{
				CurrentIdiom: s.CurrentIdiom(),
				Round:        s.Round + 1,
				TotalRounds:  len(s.Deck),
				Deadline:     deadlineAfter(events, i, engine.PhaseSubmitting),
			})

		case engine.EvtGameCompleted:
			c.out.SendToGroup(code, ptypes.EventGameOver, ptypes.GameOver{Scores: ranked(s)})

		case engine.EvtTimerExpired:
			c.log.Debug("phase timed out", zap.String("room", code),
				zap.Int("round", e.Timer.Round), zap.String("phase", string(e.Timer.Phase)))
		}
	}
}

func roster(s engine.State) []ptypes.PlayerView {
	out := make([]ptypes.PlayerView, 0, len(s.Players))
	for _, p := range s.Players {
		out = append(out, ptypes.PlayerView{ID: p.ID, Name: p.Name, Score: p.Score})
	}
	return out
}

// ranked is the roster ordered by score, highest first; ties keep join order.
func ranked(s engine.State) []ptypes.PlayerView {
	out := roster(s)
	slices.SortStableFunc(out, func(a, b ptypes.PlayerView) int { return cmp.Compare(b.Score, a.Score) })
	return out
}

// deadlineAfter finds the timer armed right after events[i]. A batch can
// open one phase and immediately close it, so the timer must belong to
// the phase being announced.
func deadlineAfter(events []engine.Event, i int, phase engine.Phase) string {
	for _, e := range events[i+1:] {
		if e.Type != engine.EvtTimerStarted {
			continue
		}
		if e.Timer.Phase != phase || e.Deadline.IsZero() {
			return ""
		}
		return e.Deadline.UTC().Format(time.RFC3339)
	}
	return ""
}
