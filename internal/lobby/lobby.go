package lobby

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/VissentvNoord/lobby-system/internal/engine"
	"github.com/VissentvNoord/lobby-system/internal/lobbyerr"
	"github.com/VissentvNoord/lobby-system/pkg/types"
)

var ErrClosed = lobbyerr.New(lobbyerr.KindNotFound, "lobby", "lobby is closed")

type Msg interface{ isLobbyMsg() }

type Apply struct {
	Cmd   engine.Command
	Reply chan Result
}

func (Apply) isLobbyMsg() {}

type GetState struct {
	Reply chan View
}

func (GetState) isLobbyMsg() {}

type Shutdown struct {
	Reason CloseReason
}

func (Shutdown) isLobbyMsg() {}

type Result struct {
	Snapshot types.Lobby
	Events   []engine.Event
	Err      error
}

type View struct {
	Version int
	State   types.Lobby
}

type CloseReason string

const (
	ReasonDeleted  CloseReason = "deleted"
	ReasonExpired  CloseReason = "expired"
	ReasonEmptied  CloseReason = "emptied"
	ReasonShutdown CloseReason = "shutdown"
)

// Store persists records. Implementations must be safe to call from the actor goroutine.
type Store interface {
	Save(ctx context.Context, l types.Lobby) error
	Delete(ctx context.Context, id string) error
}

type Options struct {
	// TTL is how long the lobby survives without a heartbeat. Zero disables expiry.
	TTL     time.Duration
	Clock   clock.Clock
	Store   Store
	Logger  *zap.Logger
	OnClose func(id string, reason CloseReason)
}

type Lobby struct {
	inbox   chan Msg
	state   types.Lobby
	version int

	ttl     time.Duration
	clock   clock.Clock
	expiry  *clock.Timer
	store   Store
	logger  *zap.Logger
	onClose func(string, CloseReason)

	ctx    context.Context
	cancel context.CancelFunc
}

func NewLobby(parent context.Context, initial types.Lobby, opts Options) *Lobby {
	ctx, cancel := context.WithCancel(parent)
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	l := &Lobby{
		inbox:   make(chan Msg, 64),
		state:   *initial.Clone(),
		ttl:     opts.TTL,
		clock:   opts.Clock,
		store:   opts.Store,
		logger:  opts.Logger.With(zap.String("lobby_id", initial.ID)),
		onClose: opts.OnClose,
		ctx:     ctx,
		cancel:  cancel,
	}
	if l.ttl > 0 {
		l.expiry = l.clock.Timer(l.remainingTTL())
	}

	go l.loop()
	return l
}

// remainingTTL accounts for heartbeats recorded before a restore.
func (l *Lobby) remainingTTL() time.Duration {
	if l.state.LastHeartbeat.IsZero() {
		return l.ttl
	}
	left := l.ttl - l.clock.Since(l.state.LastHeartbeat)
	if left < 0 {
		return 0
	}
	return left
}

func (l *Lobby) loop() {
	var expired <-chan time.Time
	if l.expiry != nil {
		expired = l.expiry.C
	}

	for {
		select {
		case <-l.ctx.Done():
			l.close(ReasonShutdown)
			return

		case <-expired:
			l.logger.Info("lobby expired without heartbeat", zap.Duration("ttl", l.ttl))
			l.close(ReasonExpired)
			return

		case m := <-l.inbox:
			switch msg := m.(type) {
			case Apply:
				if msg.Cmd.At.IsZero() {
					msg.Cmd.At = l.clock.Now()
				}
				events, newState, err := engine.Apply(l.state, msg.Cmd)
				if err != nil {
					msg.Reply <- Result{Snapshot: *l.state.Clone(), Err: err}
					break
				}
				l.state = newState
				l.version++
				l.persist()

				if engine.ContainsEvent(events, engine.EvtHeartbeat) && l.expiry != nil {
					l.expiry.Reset(l.ttl)
				}
				msg.Reply <- Result{Snapshot: *l.state.Clone(), Events: events}

				if engine.ContainsEvent(events, engine.EvtLobbyEmptied) {
					l.close(ReasonEmptied)
					return
				}

			case GetState:
				msg.Reply <- View{Version: l.version, State: *l.state.Clone()}

			case Shutdown:
				l.close(msg.Reason)
				return
			}
		}
	}
}

func (l *Lobby) persist() {
	if l.store == nil {
		return
	}
	if err := l.store.Save(l.ctx, l.state); err != nil {
		l.logger.Warn("persist lobby failed", zap.Error(err))
	}
}

func (l *Lobby) close(reason CloseReason) {
	if l.expiry != nil {
		l.expiry.Stop()
	}
	// Records survive a process shutdown so they can be restored.
	if l.store != nil && reason != ReasonShutdown {
		if err := l.store.Delete(context.Background(), l.state.ID); err != nil {
			l.logger.Warn("delete persisted lobby failed", zap.Error(err))
		}
	}
	if l.onClose != nil {
		l.onClose(l.state.ID, reason)
	}
	l.cancel()
}

// Expose the inbox so the hub and tests can send messages.
func (l *Lobby) Inbox() chan<- Msg { return l.inbox }

func (l *Lobby) Done() <-chan struct{} { return l.ctx.Done() }

// Do applies cmd and waits for the resulting snapshot.
func (l *Lobby) Do(ctx context.Context, cmd engine.Command) (types.Lobby, []engine.Event, error) {
	reply := make(chan Result, 1)
	if err := l.send(ctx, Apply{Cmd: cmd, Reply: reply}); err != nil {
		return types.Lobby{}, nil, err
	}
	select {
	case res := <-reply:
		return res.Snapshot, res.Events, res.Err
	case <-l.ctx.Done():
		// The actor may have replied right before closing.
		select {
		case res := <-reply:
			return res.Snapshot, res.Events, res.Err
		default:
			return types.Lobby{}, nil, ErrClosed
		}
	case <-ctx.Done():
		return types.Lobby{}, nil, ctx.Err()
	}
}

func (l *Lobby) Snapshot(ctx context.Context) (View, error) {
	reply := make(chan View, 1)
	if err := l.send(ctx, GetState{Reply: reply}); err != nil {
		return View{}, err
	}
	select {
	case v := <-reply:
		return v, nil
	case <-l.ctx.Done():
		return View{}, ErrClosed
	case <-ctx.Done():
		return View{}, ctx.Err()
	}
}

// Close asks the actor to shut down for reason; it returns once the actor has stopped.
func (l *Lobby) Close(ctx context.Context, reason CloseReason) error {
	if err := l.send(ctx, Shutdown{Reason: reason}); err != nil {
		if err == ErrClosed {
			return nil
		}
		return err
	}
	select {
	case <-l.ctx.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Lobby) send(ctx context.Context, m Msg) error {
	select {
	case <-l.ctx.Done():
		return ErrClosed
	default:
	}
	select {
	case l.inbox <- m:
		return nil
	case <-l.ctx.Done():
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}
