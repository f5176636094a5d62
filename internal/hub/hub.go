package hub

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/DoyleJ11/idiom-party-backend/internal/engine"
	"github.com/DoyleJ11/idiom-party-backend/internal/lobby"
)

var ErrRoomNotFound = errors.New("room not found")
var ErrCodeSpaceExhausted = errors.New("could not allocate a unique room code")

const defaultMaxAttempts = 32

type Options struct {
	Codes       CodeGenerator
	Deck        func() []string
	Rules       engine.Rules
	Sink        lobby.Sink
	Logger      *zap.Logger
	MaxAttempts int
}

// Hub owns every live room. Lookups take a read lock; creation, binding and
// removal take the write lock only for the map update itself.
type Hub struct {
	mu      sync.RWMutex
	lobbies map[string]*lobby.Lobby
	conns   map[string]string // connection id -> room code

	codes       CodeGenerator
	deck        func() []string
	rules       engine.Rules
	sink        lobby.Sink
	maxAttempts int
	log         *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

func NewHub(parent context.Context, opts Options) *Hub {
	ctx, cancel := context.WithCancel(parent)
	h := &Hub{
		lobbies:     make(map[string]*lobby.Lobby),
		conns:       make(map[string]string),
		codes:       opts.Codes,
		deck:        opts.Deck,
		rules:       opts.Rules,
		sink:        opts.Sink,
		maxAttempts: opts.MaxAttempts,
		log:         opts.Logger,
		ctx:         ctx,
		cancel:      cancel,
	}
	if h.codes == nil {
		h.codes = RandomCodes{}
	}
	if h.deck == nil {
		h.deck = engine.NewDeck
	}
	if h.maxAttempts <= 0 {
		h.maxAttempts = defaultMaxAttempts
	}
	if h.log == nil {
		h.log = zap.NewNop()
	}
	return h
}

// CreateRoom allocates a fresh code and starts the room's lobby. The host
// connection is bound to the new room.
func (h *Hub) CreateRoom(mode engine.Mode, hostID, hostName string) (*lobby.Lobby, error) {
	for attempt := 0; attempt < h.maxAttempts; attempt++ {
		// Drawn outside the lock so other creators are never held up.
		code, err := h.codes.NewCode()
		if err != nil {
			return nil, fmt.Errorf("generate room code: %w", err)
		}

		h.mu.Lock()
		if _, taken := h.lobbies[code]; taken {
			h.mu.Unlock()
			h.log.Debug("collision on code, regenerating", zap.String("room", code))
			continue
		}
		state := engine.NewState(code, mode, hostID, hostName, h.deck(), h.rules)
		lb := lobby.NewLobby(h.ctx, state, h.sink, h.log.Named("lobby"))
		h.lobbies[code] = lb
		h.conns[hostID] = code
		h.mu.Unlock()

		go h.reap(code, lb)
		h.log.Info("room created", zap.String("room", code), zap.String("mode", string(mode)), zap.String("conn", hostID))
		return lb, nil
	}
	return nil, ErrCodeSpaceExhausted
}

func (h *Hub) Get(code string) (*lobby.Lobby, error) {
	h.mu.RLock()
	lb, ok := h.lobbies[code]
	h.mu.RUnlock()
	if !ok || lb.Emptied() {
		return nil, ErrRoomNotFound
	}
	return lb, nil
}

// Bind records that connID now belongs to code.
func (h *Hub) Bind(connID, code string) {
	h.mu.Lock()
	h.conns[connID] = code
	h.mu.Unlock()
}

func (h *Hub) RoomOf(connID string) (string, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	code, ok := h.conns[connID]
	return code, ok
}

// RemoveConnection detaches connID from its room, if any. The binding is
// dropped under the lock first, so concurrent callers for the same
// connection see it exactly once. The room is deleted when the departure
// leaves it empty.
func (h *Hub) RemoveConnection(ctx context.Context, connID string) (*lobby.Lobby, error) {
	h.mu.Lock()
	code, ok := h.conns[connID]
	delete(h.conns, connID)
	lb := h.lobbies[code]
	h.mu.Unlock()

	if !ok || lb == nil {
		return nil, nil
	}
	return lb, h.leave(ctx, connID, code, lb)
}

// LeaveRoom takes connID out of room code without touching its binding,
// for a connection that has already been bound to another room.
func (h *Hub) LeaveRoom(ctx context.Context, connID, code string) (*lobby.Lobby, error) {
	h.mu.RLock()
	lb := h.lobbies[code]
	h.mu.RUnlock()

	if lb == nil {
		return nil, nil
	}
	return lb, h.leave(ctx, connID, code, lb)
}

func (h *Hub) leave(ctx context.Context, connID, code string, lb *lobby.Lobby) error {
	err := lb.Do(ctx, engine.Command{Type: engine.CmdLeave, ConnID: connID})
	if lb.Emptied() {
		h.remove(code, lb)
	}
	switch {
	case err == nil, errors.Is(err, lobby.ErrClosed), errors.Is(err, engine.ErrNotMember):
		h.log.Info("connection left room", zap.String("room", code), zap.String("conn", connID))
		return nil
	default:
		return fmt.Errorf("leave room %s: %w", code, err)
	}
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.lobbies)
}

// Shutdown stops every lobby and forgets all rooms.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	for _, lb := range h.lobbies {
		lb.Close()
	}
	clear(h.lobbies)
	clear(h.conns)
	h.mu.Unlock()
	h.cancel()
}

// reap removes the room once its lobby goroutine exits for any reason.
func (h *Hub) reap(code string, lb *lobby.Lobby) {
	<-lb.Done()
	h.remove(code, lb)
}

func (h *Hub) remove(code string, lb *lobby.Lobby) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.lobbies[code] != lb {
		return
	}
	delete(h.lobbies, code)
	for conn, c := range h.conns {
		if c == code {
			delete(h.conns, conn)
		}
	}
	h.log.Info("room deleted", zap.String("room", code))
}
