package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/DoyleJ11/idiom-party-backend/internal/coordinator"
	"github.com/DoyleJ11/idiom-party-backend/internal/types"
	ptypes "github.com/DoyleJ11/idiom-party-backend/pkg/types"
)

// Dispatcher consumes inbound client messages. Handle is called from the
// connection's read loop, so messages from one connection never overlap,
// and Disconnect runs once after the last Handle returns.
type Dispatcher interface {
	Handle(ctx context.Context, connID string, msg types.ClientMessage) error
	Disconnect(ctx context.Context, connID string)
}

const disconnectTimeout = 5 * time.Second

func (s *Server) Handler(d Dispatcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: s.opts.OriginPatterns,
		})
		if err != nil {
			s.log.Debug("websocket accept", zap.Error(err))
			return
		}
		defer conn.CloseNow()
		conn.SetReadLimit(s.opts.ReadLimit)

		c := s.register(uuid.NewString())
		log := s.log.With(zap.String("conn", c.id))
		log.Debug("connection opened", zap.String("remote", r.RemoteAddr))

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		defer func() {
			dctx, dcancel := context.WithTimeout(context.WithoutCancel(ctx), disconnectTimeout)
			d.Disconnect(dctx, c.id)
			dcancel()
			s.unregister(c.id)
			log.Debug("connection closed")
		}()

		// Writer goroutine
		go s.writeLoop(ctx, cancel, conn, c, log)

		// Reader loop
		limiter := rate.NewLimiter(s.opts.MessageRate, s.opts.MessageBurst)
		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				default:
					if ctx.Err() == nil {
						log.Debug("read", zap.Error(err))
					}
				}
				return
			}

			if !limiter.Allow() {
				s.SendToConnection(c.id, ptypes.EventError, ptypes.Error{Message: "too many messages"})
				continue
			}

			var cm types.ClientMessage
			if err := json.Unmarshal(data, &cm); err != nil {
				s.SendToConnection(c.id, ptypes.EventError, ptypes.Error{Message: "bad json"})
				continue
			}

			if err := d.Handle(ctx, c.id, cm); errors.Is(err, coordinator.ErrUnknownMessage) {
				s.SendToConnection(c.id, ptypes.EventError, ptypes.Error{Message: "unknown type"})
			}
		}
	}
}

func (s *Server) writeLoop(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, c *client, log *zap.Logger) {
	defer cancel()
	ping := time.NewTicker(s.opts.PingInterval)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-c.gone:
			log.Info("closing connection", zap.String("reason", c.reason))
			_ = conn.Close(c.status, c.reason)
			return

		case msg := <-c.out:
			wctx, wcancel := context.WithTimeout(ctx, s.opts.WriteTimeout)
			err := conn.Write(wctx, websocket.MessageText, msg)
			wcancel()
			if err != nil {
				log.Debug("write", zap.Error(err))
				return
			}

		case <-ping.C:
			pctx, pcancel := context.WithTimeout(ctx, s.opts.WriteTimeout)
			err := conn.Ping(pctx)
			pcancel()
			if err != nil {
				log.Debug("ping", zap.Error(err))
				return
			}
		}
	}
}
