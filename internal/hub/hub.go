package hub

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/VissentvNoord/lobby-system/internal/engine"
	"github.com/VissentvNoord/lobby-system/internal/joincode"
	"github.com/VissentvNoord/lobby-system/internal/lobby"
	"github.com/VissentvNoord/lobby-system/internal/lobbyerr"
	"github.com/VissentvNoord/lobby-system/pkg/types"
)

const maxCodeAttempts = 16

var ErrHubClosed = lobbyerr.New(lobbyerr.KindNetwork, "hub", "hub is shut down")

type HubMsg interface{ isHubMsg() }

type CreateLobby struct {
	Name       string
	MaxPlayers int
	Private    bool
	Host       types.Player
	Data       map[string]types.Attribute
	Reply      chan CreateResult
}

type CreateResult struct {
	Lobby    *lobby.Lobby
	Snapshot types.Lobby
	Err      error
}

// AdoptLobby registers a previously persisted record.
type AdoptLobby struct {
	State types.Lobby
	Reply chan *lobby.Lobby
}

type GetLobby struct {
	ID    string
	Reply chan *lobby.Lobby
}

type GetLobbyByCode struct {
	Code  string
	Reply chan *lobby.Lobby
}

type ListLobbies struct {
	Reply chan []*lobby.Lobby
}

type RemoveLobby struct {
	ID     string
	Reason lobby.CloseReason
}

type ShutdownHub struct{}

func (CreateLobby) isHubMsg()    {}
func (AdoptLobby) isHubMsg()     {}
func (GetLobby) isHubMsg()       {}
func (GetLobbyByCode) isHubMsg() {}
func (ListLobbies) isHubMsg()    {}
func (RemoveLobby) isHubMsg()    {}
func (ShutdownHub) isHubMsg()    {}

// Store is the persistence the hub restores from and lobbies write through to.
type Store interface {
	lobby.Store
	LoadAll(ctx context.Context) ([]types.Lobby, error)
}

type Options struct {
	TTL    time.Duration
	Clock  clock.Clock
	Store  Store
	Logger *zap.Logger
	// OnRemove is called from the hub goroutine whenever a lobby leaves the registry.
	OnRemove func(id string, reason lobby.CloseReason)
}

type Hub struct {
	inbox   chan HubMsg
	lobbies map[string]*lobby.Lobby
	codes   map[string]string // code -> id
	opts    Options
	logger  *zap.Logger
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewHub(parent context.Context, opts Options) *Hub {
	ctx, cancel := context.WithCancel(parent)
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	h := &Hub{
		inbox:   make(chan HubMsg, 64),
		lobbies: make(map[string]*lobby.Lobby),
		codes:   make(map[string]string),
		opts:    opts,
		logger:  opts.Logger,
		ctx:     ctx,
		cancel:  cancel,
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case CreateLobby:
				msg.Reply <- h.create(msg)

			case AdoptLobby:
				if lb := h.lobbies[msg.State.ID]; lb != nil {
					msg.Reply <- lb
					break
				}
				msg.Reply <- h.spawn(msg.State)

			case GetLobby:
				msg.Reply <- h.lobbies[msg.ID] // May be nil

			case GetLobbyByCode:
				msg.Reply <- h.lobbies[h.codes[strings.ToUpper(msg.Code)]]

			case ListLobbies:
				out := make([]*lobby.Lobby, 0, len(h.lobbies))
				for _, lb := range h.lobbies {
					out = append(out, lb)
				}
				msg.Reply <- out

			case RemoveLobby:
				if _, ok := h.lobbies[msg.ID]; !ok {
					break
				}
				delete(h.lobbies, msg.ID)
				for code, id := range h.codes {
					if id == msg.ID {
						delete(h.codes, code)
					}
				}
				h.logger.Debug("lobby removed", zap.String("lobby_id", msg.ID), zap.String("reason", string(msg.Reason)))
				if h.opts.OnRemove != nil {
					h.opts.OnRemove(msg.ID, msg.Reason)
				}

			case ShutdownHub:
				for _, lb := range h.lobbies {
					select {
					case lb.Inbox() <- lobby.Shutdown{Reason: lobby.ReasonShutdown}:
					default: // cancel below reaches it anyway
					}
				}
				clear(h.lobbies)
				clear(h.codes)
				h.cancel()
				return
			}
		}
	}
}

func (h *Hub) create(msg CreateLobby) CreateResult {
	var code string
	for attempt := 0; ; attempt++ {
		if attempt == maxCodeAttempts {
			return CreateResult{Err: lobbyerr.New(lobbyerr.KindConflict, "hub.create", "could not allocate a unique join code")}
		}
		c, err := joincode.Generate()
		if err != nil {
			return CreateResult{Err: fmt.Errorf("generate code: %w", err)}
		}
		if _, taken := h.codes[c]; !taken {
			code = c
			break
		}
		h.logger.Debug("collision on code, regenerating")
	}

	state, err := engine.NewLobby(engine.NewLobbyParams{
		ID:         uuid.NewString(),
		Code:       code,
		Name:       msg.Name,
		MaxPlayers: msg.MaxPlayers,
		Private:    msg.Private,
		Host:       msg.Host,
		Data:       msg.Data,
		At:         h.opts.Clock.Now(),
	})
	if err != nil {
		return CreateResult{Err: err}
	}
	if h.opts.Store != nil {
		if err := h.opts.Store.Save(h.ctx, state); err != nil {
			h.logger.Warn("persist new lobby failed", zap.String("lobby_id", state.ID), zap.Error(err))
		}
	}

	lb := h.spawn(state)
	h.logger.Info("lobby created",
		zap.String("lobby_id", state.ID),
		zap.String("code", state.Code),
		zap.String("host_id", state.HostID),
		zap.Int("max_players", state.MaxPlayers),
	)
	return CreateResult{Lobby: lb, Snapshot: *state.Clone()}
}

func (h *Hub) spawn(state types.Lobby) *lobby.Lobby {
	lb := lobby.NewLobby(h.ctx, state, lobby.Options{
		TTL:     h.opts.TTL,
		Clock:   h.opts.Clock,
		Store:   h.opts.Store,
		Logger:  h.logger,
		OnClose: h.onLobbyClose,
	})
	h.lobbies[state.ID] = lb
	h.codes[strings.ToUpper(state.Code)] = state.ID
	return lb
}

// onLobbyClose runs on the lobby goroutine; it must not block once the hub is gone.
func (h *Hub) onLobbyClose(id string, reason lobby.CloseReason) {
	if reason == lobby.ReasonShutdown {
		return
	}
	select {
	case h.inbox <- RemoveLobby{ID: id, Reason: reason}:
	case <-h.ctx.Done():
	}
}

// Restore adopts every record in store. Records already past their TTL expire immediately.
func (h *Hub) Restore(ctx context.Context) (int, error) {
	if h.opts.Store == nil {
		return 0, nil
	}
	records, err := h.opts.Store.LoadAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("load lobbies: %w", err)
	}
	for _, rec := range records {
		reply := make(chan *lobby.Lobby, 1)
		if err := h.send(ctx, AdoptLobby{State: rec, Reply: reply}); err != nil {
			return 0, err
		}
		if _, err := recv(ctx, h.ctx, reply); err != nil {
			return 0, err
		}
	}
	return len(records), nil
}

func (h *Hub) Create(ctx context.Context, msg CreateLobby) (*lobby.Lobby, types.Lobby, error) {
	msg.Reply = make(chan CreateResult, 1)
	if err := h.send(ctx, msg); err != nil {
		return nil, types.Lobby{}, err
	}
	res, err := recv(ctx, h.ctx, msg.Reply)
	if err != nil {
		return nil, types.Lobby{}, err
	}
	return res.Lobby, res.Snapshot, res.Err
}

func (h *Hub) Get(ctx context.Context, id string) (*lobby.Lobby, error) {
	reply := make(chan *lobby.Lobby, 1)
	if err := h.send(ctx, GetLobby{ID: id, Reply: reply}); err != nil {
		return nil, err
	}
	return recv(ctx, h.ctx, reply)
}

func (h *Hub) GetByCode(ctx context.Context, code string) (*lobby.Lobby, error) {
	reply := make(chan *lobby.Lobby, 1)
	if err := h.send(ctx, GetLobbyByCode{Code: code, Reply: reply}); err != nil {
		return nil, err
	}
	return recv(ctx, h.ctx, reply)
}

func (h *Hub) List(ctx context.Context) ([]*lobby.Lobby, error) {
	reply := make(chan []*lobby.Lobby, 1)
	if err := h.send(ctx, ListLobbies{Reply: reply}); err != nil {
		return nil, err
	}
	return recv(ctx, h.ctx, reply)
}

func (h *Hub) Shutdown(ctx context.Context) error {
	return h.send(ctx, ShutdownHub{})
}

func (h *Hub) send(ctx context.Context, m HubMsg) error {
	select {
	case h.inbox <- m:
		return nil
	case <-h.ctx.Done():
		return ErrHubClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func recv[T any](ctx, hubCtx context.Context, ch <-chan T) (T, error) {
	var zero T
	select {
	case v := <-ch:
		return v, nil
	case <-hubCtx.Done():
		return zero, ErrHubClosed
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
