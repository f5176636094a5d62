package lobby

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/idiom-party-backend/internal/engine"
)

var ErrClosed = errors.New("lobby closed")

type Msg interface{ isLobbyMsg() }

type FromClient struct {
	Cmd   engine.Command
	Reply chan error // optional; must be buffered
}

func (FromClient) isLobbyMsg() {}

// TimerFired is posted by the phase timer. The key is checked against the
// current phase and round before anything happens.
type TimerFired struct{ Key engine.TimerKey }

func (TimerFired) isLobbyMsg() {}

type Shutdown struct{}

func (Shutdown) isLobbyMsg() {}

type GetState struct {
	Reply chan View
}

func (GetState) isLobbyMsg() {}

type View struct {
	Version int
	State   engine.State
	Armed   *engine.TimerKey
}

// Sink receives every accepted batch of events together with the state they
// produced, in the order they were applied. It is called from the lobby
// goroutine and must not block.
type Sink interface {
	Publish(code string, events []engine.Event, state engine.State)
}

type Lobby struct {
	code    string
	inbox   chan Msg
	state   engine.State
	version int
	sink    Sink
	timer   *time.Timer
	armed   *engine.TimerKey
	now     func() time.Time
	log     *zap.Logger
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	emptied atomic.Bool
}

func NewLobby(parent context.Context, initial engine.State, sink Sink, log *zap.Logger) *Lobby {
	ctx, cancel := context.WithCancel(parent)
	if log == nil {
		log = zap.NewNop()
	}

	l := &Lobby{
		code:   initial.Code,
		inbox:  make(chan Msg, 64), // Small buffer
		state:  initial,
		sink:   sink,
		now:    time.Now,
		log:    log.With(zap.String("room", initial.Code)),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go l.loop()
	return l
}

func (l *Lobby) Code() string { return l.code }

// Expose the inbox so tests or the coordinator can send messages.
func (l *Lobby) Inbox() chan<- Msg { return l.inbox }

// Done is closed once the lobby goroutine has exited.
func (l *Lobby) Done() <-chan struct{} { return l.done }

// Do submits cmd and waits for the lobby to apply or reject it.
func (l *Lobby) Do(ctx context.Context, cmd engine.Command) error {
	reply := make(chan error, 1)
	select {
	case l.inbox <- FromClient{Cmd: cmd, Reply: reply}:
	case <-l.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-reply:
		return err
	case <-l.done:
		// The command that emptied the room replies before the loop exits.
		select {
		case err := <-reply:
			return err
		default:
			return ErrClosed
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Lobby) View(ctx context.Context) (View, error) {
	reply := make(chan View, 1)
	select {
	case l.inbox <- GetState{Reply: reply}:
	case <-l.done:
		return View{}, ErrClosed
	case <-ctx.Done():
		return View{}, ctx.Err()
	}
	select {
	case v := <-reply:
		return v, nil
	case <-l.done:
		return View{}, ErrClosed
	case <-ctx.Done():
		return View{}, ctx.Err()
	}
}

// Emptied reports whether the last participant has left. It is set before
// the reply to the command that emptied the room is sent.
func (l *Lobby) Emptied() bool { return l.emptied.Load() }

// Close stops the lobby without waiting for it to exit.
func (l *Lobby) Close() { l.cancel() }

func (l *Lobby) loop() {
	defer close(l.done)
	defer l.cancel()
	defer l.stopTimer()

	for {
		select {
		case <-l.ctx.Done():
			return

		case m := <-l.inbox:
			switch msg := m.(type) {
			case FromClient:
				err := l.apply(msg.Cmd)
				if l.state.Empty() {
					l.emptied.Store(true)
				}
				if err != nil {
					l.log.Debug("command rejected",
						zap.String("cmd", string(msg.Cmd.Type)),
						zap.String("conn", msg.Cmd.ConnID),
						zap.Error(err))
				}
				if msg.Reply != nil {
					msg.Reply <- err
				}

			case TimerFired:
				// Cancellation can lose the race with the fire; the engine drops stale keys.
				if err := l.apply(engine.Command{Type: engine.CmdTimeoutAdvance, Timer: msg.Key}); err != nil {
					l.log.Debug("timer dropped", zap.Int("round", msg.Key.Round), zap.String("phase", string(msg.Key.Phase)), zap.Error(err))
				}

			case GetState:
				// Read-only view for room summaries; copied on the lobby goroutine.
				msg.Reply <- View{Version: l.version, State: l.state, Armed: l.armed}

			case Shutdown:
				return
			}

			if l.state.Empty() {
				l.log.Info("room emptied")
				return
			}
		}
	}
}

func (l *Lobby) apply(cmd engine.Command) error {
	cmd.At = l.now()
	prev := l.state.Phase

	events, newState, err := engine.Apply(l.state, cmd)
	if err != nil {
		return err
	}
	l.state = newState
	l.version++

	for _, e := range events {
		switch e.Type {
		case engine.EvtTimerStarted:
			l.arm(e.Timer, e.After)
		case engine.EvtGameCompleted, engine.EvtRoomEmptied:
			l.stopTimer()
		}
	}

	if prev != l.state.Phase {
		l.log.Info("phase changed",
			zap.String("from", string(prev)),
			zap.String("to", string(l.state.Phase)),
			zap.Int("round", l.state.Round))
	}

	if l.sink != nil {
		l.sink.Publish(l.code, events, l.state)
	}
	return nil
}

func (l *Lobby) arm(key engine.TimerKey, after time.Duration) {
	l.stopTimer()
	k := key
	l.armed = &k
	l.timer = time.AfterFunc(after, func() {
		select {
		case l.inbox <- TimerFired{Key: key}:
		case <-l.ctx.Done():
		}
	})
}

func (l *Lobby) stopTimer() {
	if l.timer != nil {
		l.timer.Stop()
		l.timer = nil
	}
	l.armed = nil
}
