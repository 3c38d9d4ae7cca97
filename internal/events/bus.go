// Package events is the typed lifecycle notification channel between the
// coordinator and its listeners (presenters, game-start triggers).
package events

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/VissentvNoord/lobby-system/pkg/types"
)

type Kind string

const (
	Authenticated      Kind = "authenticated"
	AuthenticationFail Kind = "authenticationFail"

	LobbyCreated    Kind = "lobbyCreated"
	LobbyCreateFail Kind = "lobbyCreateFail"
	LobbyJoined     Kind = "lobbyJoined"
	LobbyJoinFail   Kind = "lobbyJoinFail"
	LobbyLeave      Kind = "lobbyLeave"
	LobbyLeaveFail  Kind = "lobbyLeaveFail"
	LobbyDeleted    Kind = "lobbyDeleted"
	LobbyDeleteFail Kind = "lobbyDeleteFail"
	// LobbyUpdated fires for every accepted snapshot: refreshes and host/player updates.
	LobbyUpdated    Kind = "lobbyUpdated"
	LobbyUpdateFail Kind = "lobbyUpdateFail"
	LobbiesListed   Kind = "lobbiesListed"
	LobbiesListFail Kind = "lobbiesListFail"
	HostChanged     Kind = "hostChanged"

	StartGame     Kind = "startGame"
	StartGameFail Kind = "startGameFail"
	JoinGame      Kind = "joinGame"
	JoinGameFail  Kind = "joinGameFail"
)

// Event is one lifecycle notification. Lobby is a private copy for the listener.
type Event struct {
	Kind      Kind
	Op        string
	Lobby     *types.Lobby
	Lobbies   []types.Lobby
	IsHost    bool
	PlayerID  string
	RelayCode string
	Err       error
	At        time.Time
}

func (e Event) Failed() bool { return e.Err != nil }

type Handler func(Event)

type subscription struct {
	id   uint64
	kind Kind // empty = every kind
	fn   Handler
}

// Bus delivers events synchronously, in publish order, to handlers keyed by kind.
type Bus struct {
	mu     sync.RWMutex
	subs   []*subscription
	nextID uint64
	logger *zap.Logger
	now    func() time.Time
}

func NewBus(logger *zap.Logger) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{logger: logger.Named("events"), now: time.Now}
}

// Subscribe registers h for kind and returns a function that removes it.
func (b *Bus) Subscribe(kind Kind, h Handler) (unsubscribe func()) {
	return b.add(kind, h)
}

// SubscribeAll registers h for every kind.
func (b *Bus) SubscribeAll(h Handler) (unsubscribe func()) {
	return b.add("", h)
}

func (b *Bus) add(kind Kind, h Handler) func() {
	b.mu.Lock()
	b.nextID++
	sub := &subscription{id: b.nextID, kind: kind, fn: h}
	b.subs = append(b.subs, sub)
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			for i, s := range b.subs {
				if s.id == sub.id {
					b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// Chan delivers matching events on a buffered channel. Events are dropped
// for a slow reader rather than blocking the publisher.
func (b *Bus) Chan(buffer int, kinds ...Kind) (<-chan Event, func()) {
	ch := make(chan Event, buffer)
	want := make(map[Kind]bool, len(kinds))
	for _, k := range kinds {
		want[k] = true
	}
	var mu sync.Mutex
	closed := false

	unsub := b.SubscribeAll(func(e Event) {
		if len(want) > 0 && !want[e.Kind] {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return
		}
		select {
		case ch <- e:
		default:
			b.logger.Warn("dropping event for slow subscriber", zap.String("kind", string(e.Kind)))
		}
	})
	return ch, func() {
		unsub()
		mu.Lock()
		defer mu.Unlock()
		if !closed {
			closed = true
			close(ch)
		}
	}
}

func (b *Bus) Publish(e Event) {
	if e.At.IsZero() {
		e.At = b.now()
	}

	b.mu.RLock()
	targets := make([]*subscription, 0, len(b.subs))
	for _, s := range b.subs {
		if s.kind == "" || s.kind == e.Kind {
			targets = append(targets, s)
		}
	}
	b.mu.RUnlock()

	for _, s := range targets {
		b.deliver(s, e)
	}
}

func (b *Bus) deliver(s *subscription, e Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked",
				zap.String("kind", string(e.Kind)),
				zap.String("panic", fmt.Sprint(r)),
			)
		}
	}()
	if e.Lobby != nil {
		e.Lobby = e.Lobby.Clone()
	}
	s.fn(e)
}
