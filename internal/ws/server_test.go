package ws

import (
	"encoding/json"
	"testing"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ptypes "github.com/DoyleJ11/idiom-party-backend/pkg/types"
)

func TestServer_GroupsFollowMembership(t *testing.T) {
	s := NewServer(Options{})
	a := s.register("a")
	b := s.register("b")

	s.JoinGroup("a", "ROOM01")
	s.JoinGroup("b", "ROOM01")
	s.JoinGroup("ghost", "ROOM01")
	assert.Equal(t, 2, s.GroupSize("ROOM01"))

	s.SendToGroup("ROOM01", ptypes.EventPlayerLeft, ptypes.Roster{HostID: "a"})
	for _, c := range []*client{a, b} {
		require.Len(t, c.out, 1)
		var env envelope
		require.NoError(t, json.Unmarshal(<-c.out, &env))
		assert.Equal(t, ptypes.EventPlayerLeft, env.Type)
	}

	s.LeaveGroup("b", "ROOM01")
	s.SendToGroup("ROOM01", ptypes.EventGameOver, ptypes.GameOver{})
	assert.Len(t, a.out, 1)
	assert.Empty(t, b.out)

	s.unregister("a")
	assert.Equal(t, 0, s.GroupSize("ROOM01"))
	assert.Equal(t, 1, s.Len())
}

func TestServer_SlowConsumerIsDropped(t *testing.T) {
	s := NewServer(Options{OutboxSize: 2})
	c := s.register("slow")

	for range 3 {
		s.SendToConnection("slow", ptypes.EventError, ptypes.Error{Message: "x"})
	}

	select {
	case <-c.gone:
	default:
		t.Fatalf("expected slow client to be dropped")
	}
	assert.Equal(t, websocket.StatusPolicyViolation, c.status)

	// Further sends to a dropped client neither block nor panic.
	s.SendToConnection("slow", ptypes.EventError, ptypes.Error{Message: "y"})
	assert.Len(t, c.out, 2)
}

func TestServer_CloseAll(t *testing.T) {
	s := NewServer(Options{})
	a := s.register("a")
	s.CloseAll()
	<-a.gone
	assert.Equal(t, websocket.StatusGoingAway, a.status)
}
