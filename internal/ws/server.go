package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/DoyleJ11/idiom-party-backend/internal/types"
)

type Options struct {
	OriginPatterns []string
	MessageRate    rate.Limit
	MessageBurst   int
	OutboxSize     int
	WriteTimeout   time.Duration
	PingInterval   time.Duration
	ReadLimit      int64
	Logger         *zap.Logger
}

func (o Options) withDefaults() Options {
	if o.MessageRate <= 0 {
		o.MessageRate = 10
	}
	if o.MessageBurst <= 0 {
		o.MessageBurst = 20
	}
	if o.OutboxSize <= 0 {
		o.OutboxSize = 32
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 3 * time.Second
	}
	if o.PingInterval <= 0 {
		o.PingInterval = 20 * time.Second
	}
	if o.ReadLimit <= 0 {
		o.ReadLimit = 4096
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

type client struct {
	id     string
	out    chan []byte
	rooms  map[string]struct{} // guarded by Server.mu
	gone   chan struct{}
	once   sync.Once
	status websocket.StatusCode
	reason string
}

// drop asks the connection's writer to close it. Only the first call counts.
func (c *client) drop(status websocket.StatusCode, reason string) {
	c.once.Do(func() {
		c.status = status
		c.reason = reason
		close(c.gone)
	})
}

// Server tracks live websocket connections and the room groups they belong
// to. It never blocks a sender: a connection whose outbox is full is
// dropped.
type Server struct {
	mu     sync.RWMutex
	conns  map[string]*client
	groups map[string]map[string]*client

	opts Options
	log  *zap.Logger
}

func NewServer(opts Options) *Server {
	opts = opts.withDefaults()
	return &Server{
		conns:  make(map[string]*client),
		groups: make(map[string]map[string]*client),
		opts:   opts,
		log:    opts.Logger,
	}
}

func (s *Server) register(id string) *client {
	c := &client{
		id:    id,
		out:   make(chan []byte, s.opts.OutboxSize),
		rooms: make(map[string]struct{}),
		gone:  make(chan struct{}),
	}
	s.mu.Lock()
	s.conns[id] = c
	s.mu.Unlock()
	return c
}

func (s *Server) unregister(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conns[id]
	if !ok {
		return
	}
	for code := range c.rooms {
		s.leaveLocked(c, code)
	}
	delete(s.conns, id)
}

func (s *Server) JoinGroup(connID, code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conns[connID]
	if !ok {
		return
	}
	g, ok := s.groups[code]
	if !ok {
		g = make(map[string]*client)
		s.groups[code] = g
	}
	g[connID] = c
	c.rooms[code] = struct{}{}
}

func (s *Server) LeaveGroup(connID, code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.conns[connID]; ok {
		s.leaveLocked(c, code)
	}
}

func (s *Server) leaveLocked(c *client, code string) {
	delete(c.rooms, code)
	if g, ok := s.groups[code]; ok {
		delete(g, c.id)
		if len(g) == 0 {
			delete(s.groups, code)
		}
	}
}

func (s *Server) SendToGroup(code, event string, payload any) {
	data, ok := s.encode(event, payload)
	if !ok {
		return
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.groups[code] {
		s.enqueue(c, data)
	}
}

func (s *Server) SendToConnection(connID, event string, payload any) {
	data, ok := s.encode(event, payload)
	if !ok {
		return
	}
	s.mu.RLock()
	c, found := s.conns[connID]
	s.mu.RUnlock()
	if found {
		s.enqueue(c, data)
	}
}

// Len is the number of open connections.
func (s *Server) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conns)
}

// GroupSize is the number of connections in the room group for code.
func (s *Server) GroupSize(code string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.groups[code])
}

// CloseAll drops every connection. Used on shutdown.
func (s *Server) CloseAll() {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.conns {
		c.drop(websocket.StatusGoingAway, "server shutting down")
	}
}

func (s *Server) enqueue(c *client, data []byte) {
	select {
	case c.out <- data:
	case <-c.gone:
	default:
		s.log.Warn("outbox full, dropping connection", zap.String("conn", c.id))
		c.drop(websocket.StatusPolicyViolation, "slow consumer")
	}
}

func (s *Server) encode(event string, payload any) ([]byte, bool) {
	data, err := json.Marshal(types.ServerMessage{Type: event, Payload: payload})
	if err != nil {
		s.log.Error("encode message", zap.String("event", event), zap.Error(err))
		return nil, false
	}
	return data, true
}
