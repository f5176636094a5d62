package coordinator

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"

	"go.uber.org/zap"

	"github.com/DoyleJ11/idiom-party-backend/internal/engine"
	"github.com/DoyleJ11/idiom-party-backend/internal/hub"
	"github.com/DoyleJ11/idiom-party-backend/internal/lobby"
	"github.com/DoyleJ11/idiom-party-backend/internal/types"
	ptypes "github.com/DoyleJ11/idiom-party-backend/pkg/types"
)

var ErrUnknownMessage = errors.New("unknown message type")
var ErrInvalidMode = errors.New("invalid room mode")

// Broadcaster delivers named events to connections and room groups. Calls
// are made from room goroutines and must not block.
type Broadcaster interface {
	JoinGroup(connID, code string)
	LeaveGroup(connID, code string)
	SendToGroup(code, event string, payload any)
	SendToConnection(connID, event string, payload any)
}

type Options struct {
	Codes   hub.CodeGenerator
	Deck    func() []string
	Rules   engine.Rules
	Logger  *zap.Logger
	Shuffle func([]ptypes.AnswerView)
}

// Coordinator turns inbound client messages into room commands and room
// events into outbound messages.
type Coordinator struct {
	hub     *hub.Hub
	out     Broadcaster
	rules   engine.Rules
	shuffle func([]ptypes.AnswerView)
	log     *zap.Logger
}

func New(ctx context.Context, out Broadcaster, opts Options) *Coordinator {
	c := &Coordinator{
		out:     out,
		rules:   opts.Rules,
		shuffle: opts.Shuffle,
		log:     opts.Logger,
	}
	if c.log == nil {
		c.log = zap.NewNop()
	}
	if c.shuffle == nil {
		c.shuffle = func(a []ptypes.AnswerView) {
			rand.Shuffle(len(a), func(i, j int) { a[i], a[j] = a[j], a[i] })
		}
	}
	c.hub = hub.NewHub(ctx, hub.Options{
		Codes:  opts.Codes,
		Deck:   opts.Deck,
		Rules:  opts.Rules,
		Sink:   c,
		Logger: c.log.Named("hub"),
	})
	return c
}

// Handle processes one inbound message from connID. Rejections the sender
// should hear about are sent to it as error events; the returned error is
// for logging only.
func (c *Coordinator) Handle(ctx context.Context, connID string, msg types.ClientMessage) error {
	switch msg.Type {
	case ptypes.EventCreateRoom:
		return c.createRoom(ctx, connID, msg)
	case ptypes.EventJoinRoom:
		return c.joinRoom(ctx, connID, msg)
	case ptypes.EventStartGame:
		return c.roomCommand(ctx, msg.RoomCode, engine.Command{Type: engine.CmdStartGame, ConnID: connID})
	case ptypes.EventSubmitAnswer:
		return c.roomCommand(ctx, msg.RoomCode, engine.Command{Type: engine.CmdSubmitAnswer, ConnID: connID, Text: msg.Answer})
	case ptypes.EventSubmitVote:
		return c.roomCommand(ctx, msg.RoomCode, engine.Command{Type: engine.CmdSubmitVote, ConnID: connID, TargetID: msg.VotedForID})
	default:
		return fmt.Errorf("%w: %q", ErrUnknownMessage, msg.Type)
	}
}

// Disconnect removes connID from whatever room it is in. Calling it for an
// unbound connection is a no-op.
func (c *Coordinator) Disconnect(ctx context.Context, connID string) {
	lb, err := c.hub.RemoveConnection(ctx, connID)
	if err != nil {
		c.log.Warn("disconnect", zap.String("conn", connID), zap.Error(err))
	}
	if lb != nil {
		c.out.LeaveGroup(connID, lb.Code())
	}
}

func (c *Coordinator) Snapshot(ctx context.Context, code string) (ptypes.RoomSnapshot, error) {
	lb, err := c.hub.Get(normalizeCode(code))
	if err != nil {
		return ptypes.RoomSnapshot{}, err
	}
	v, err := lb.View(ctx)
	if err != nil {
		if errors.Is(err, lobby.ErrClosed) {
			return ptypes.RoomSnapshot{}, hub.ErrRoomNotFound
		}
		return ptypes.RoomSnapshot{}, err
	}
	s := v.State
	return ptypes.RoomSnapshot{
		Code:        s.Code,
		Mode:        string(s.Mode),
		Phase:       string(s.Phase),
		Round:       s.Round,
		TotalRounds: len(s.Deck),
		HostID:      s.HostID,
		Players:     roster(s),
	}, nil
}

func (c *Coordinator) Rooms() int { return c.hub.Len() }

// Shutdown stops every room.
func (c *Coordinator) Shutdown() { c.hub.Shutdown() }

func (c *Coordinator) createRoom(ctx context.Context, connID string, msg types.ClientMessage) error {
	mode, err := parseMode(msg.Mode, msg.HostName)
	if err != nil {
		return c.reject(connID, msg.Type, err)
	}
	if mode == engine.ModePlayerHosted && strings.TrimSpace(msg.HostName) == "" {
		return c.reject(connID, msg.Type, engine.ErrNameRequired)
	}

	prev, bound := c.hub.RoomOf(connID)
	lb, err := c.hub.CreateRoom(mode, connID, msg.HostName)
	if err != nil {
		return c.reject(connID, msg.Type, err)
	}
	if bound {
		c.leaveRoom(ctx, connID, prev)
	}
	c.out.JoinGroup(connID, lb.Code())
	c.out.SendToConnection(connID, ptypes.EventRoomCreated, ptypes.RoomCreated{
		RoomCode: lb.Code(),
		PlayerID: connID,
		Mode:     string(mode),
	})
	return nil
}

// joinRoom leaves the connection's previous room only once the new join
// has been accepted, so a rejected join never costs it its old seat.
func (c *Coordinator) joinRoom(ctx context.Context, connID string, msg types.ClientMessage) error {
	code := normalizeCode(msg.RoomCode)

	lb, err := c.hub.Get(code)
	if err != nil {
		return c.reject(connID, msg.Type, err)
	}
	if err := lb.Do(ctx, engine.Command{Type: engine.CmdJoin, ConnID: connID, Name: msg.PlayerName}); err != nil {
		return c.reject(connID, msg.Type, err)
	}

	prev, bound := c.hub.RoomOf(connID)
	c.hub.Bind(connID, code)
	if bound && prev != code {
		c.leaveRoom(ctx, connID, prev)
	}
	return nil
}

func (c *Coordinator) roomCommand(ctx context.Context, code string, cmd engine.Command) error {
	lb, err := c.hub.Get(normalizeCode(code))
	if err != nil {
		return c.reject(cmd.ConnID, string(cmd.Type), err)
	}
	if err := lb.Do(ctx, cmd); err != nil {
		return c.reject(cmd.ConnID, string(cmd.Type), err)
	}
	return nil
}

// leaveRoom takes connID out of room code after it has been bound to
// another room.
func (c *Coordinator) leaveRoom(ctx context.Context, connID, code string) {
	lb, err := c.hub.LeaveRoom(ctx, connID, code)
	if err != nil {
		c.log.Warn("leave previous room", zap.String("conn", connID), zap.String("room", code), zap.Error(err))
	}
	if lb != nil {
		c.out.LeaveGroup(connID, code)
	}
}

// reject surfaces err to the sender when it is one the player can act on.
// Everything else is expected under late or duplicate client traffic and
// only logged.
func (c *Coordinator) reject(connID, action string, err error) error {
	if errors.Is(err, lobby.ErrClosed) {
		err = hub.ErrRoomNotFound
	}
	if text, ok := c.errorText(err); ok {
		c.out.SendToConnection(connID, ptypes.EventError, ptypes.Error{Message: text})
		c.log.Info("action rejected", zap.String("conn", connID), zap.String("action", action), zap.Error(err))
	} else {
		c.log.Debug("action ignored", zap.String("conn", connID), zap.String("action", action), zap.Error(err))
	}
	return err
}

func (c *Coordinator) errorText(err error) (string, bool) {
	switch {
	case errors.Is(err, hub.ErrRoomNotFound), errors.Is(err, engine.ErrGameInProgress):
		return "Room not found or game in progress", true
	case errors.Is(err, engine.ErrNameRequired):
		return "Please enter a name", true
	case errors.Is(err, engine.ErrNotHost):
		return "Only the host can start the game", true
	case errors.Is(err, engine.ErrNotEnoughPlayers):
		return fmt.Sprintf("At least %d players are needed to start", c.rules.MinPlayers), true
	case errors.Is(err, ErrInvalidMode):
		return "Unknown room mode", true
	case errors.Is(err, hub.ErrCodeSpaceExhausted):
		return "Could not create a room, please try again", true
	default:
		return "", false
	}
}

// parseMode honours an explicit mode and otherwise infers spectator mode
// from an empty host name.
func parseMode(mode, hostName string) (engine.Mode, error) {
	switch engine.Mode(mode) {
	case engine.ModePlayerHosted, engine.ModeSpectatorHosted:
		return engine.Mode(mode), nil
	case "":
		if strings.TrimSpace(hostName) == "" {
			return engine.ModeSpectatorHosted, nil
		}
		return engine.ModePlayerHosted, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
