package coordinator

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/VissentvNoord/lobby-system/internal/directory"
	"github.com/VissentvNoord/lobby-system/internal/events"
	"github.com/VissentvNoord/lobby-system/internal/lobbyerr"
	"github.com/VissentvNoord/lobby-system/pkg/types"
)

type createConfig struct {
	private  bool
	gameMode string
}

type CreateOption func(*createConfig)

// Private hides the lobby from listings; it is joinable by code only.
func Private() CreateOption {
	return func(c *createConfig) { c.private = true }
}

func WithGameMode(mode string) CreateOption {
	return func(c *createConfig) { c.gameMode = mode }
}

// CreateLobby registers a new lobby hosted by the local participant.
func (c *Coordinator) CreateLobby(ctx context.Context, name string, maxPlayers int, opts ...CreateOption) (types.Lobby, error) {
	const op = "create_lobby"
	end, err := c.begin(op)
	if err != nil {
		return types.Lobby{}, c.fail(events.LobbyCreateFail, op, err)
	}
	defer end()

	pid, err := c.playerID(op)
	if err != nil {
		return types.Lobby{}, c.fail(events.LobbyCreateFail, op, err)
	}
	if role := c.Role(); role != RoleNone {
		return types.Lobby{}, c.fail(events.LobbyCreateFail, op,
			lobbyerr.New(lobbyerr.KindConflict, op, "already in a lobby as "+role.String()))
	}

	cfg := createConfig{}
	for _, o := range opts {
		o(&cfg)
	}
	if maxPlayers <= 0 {
		maxPlayers = DefaultMaxPlayers
	}
	data := map[string]types.Attribute{types.KeyRelayCode: types.Member(types.NoRelay)}
	if cfg.gameMode != "" {
		data[types.KeyGameMode] = types.Public(cfg.gameMode)
	}

	l, err := c.dir.Create(ctx, name, maxPlayers, directory.CreateOptions{
		Private: cfg.private,
		Player:  c.localPlayer(pid),
		Data:    data,
	})
	if err != nil {
		return types.Lobby{}, c.fail(events.LobbyCreateFail, op, err)
	}

	c.mu.Lock()
	c.commitLocked(RoleHost, l.Clone())
	c.session.lastRelayCode = types.NoRelay
	c.mu.Unlock()

	c.logger.Info("lobby created", zap.String("lobby_id", l.ID), zap.String("code", l.Code))
	c.publish(events.Event{Kind: events.LobbyCreated, Op: op, Lobby: &l, IsHost: true})
	return l, nil
}

func (c *Coordinator) JoinByCode(ctx context.Context, code string) (types.Lobby, error) {
	return c.join(ctx, "join_by_code", func(ctx context.Context, o directory.JoinOptions) (types.Lobby, error) {
		return c.dir.JoinByCode(ctx, code, o)
	})
}

func (c *Coordinator) JoinByID(ctx context.Context, id string) (types.Lobby, error) {
	return c.join(ctx, "join_by_id", func(ctx context.Context, o directory.JoinOptions) (types.Lobby, error) {
		return c.dir.JoinByID(ctx, id, o)
	})
}

func (c *Coordinator) QuickJoin(ctx context.Context) (types.Lobby, error) {
	return c.join(ctx, "quick_join", c.dir.QuickJoin)
}

func (c *Coordinator) join(ctx context.Context, op string, do func(context.Context, directory.JoinOptions) (types.Lobby, error)) (types.Lobby, error) {
	end, err := c.begin(op)
	if err != nil {
		return types.Lobby{}, c.fail(events.LobbyJoinFail, op, err)
	}
	defer end()

	pid, err := c.playerID(op)
	if err != nil {
		return types.Lobby{}, c.fail(events.LobbyJoinFail, op, err)
	}
	// A host joining elsewhere would orphan its hosted lobby.
	if role := c.Role(); role != RoleNone {
		return types.Lobby{}, c.fail(events.LobbyJoinFail, op,
			lobbyerr.New(lobbyerr.KindConflict, op, "already in a lobby as "+role.String()))
	}

	l, err := do(ctx, directory.JoinOptions{Player: c.localPlayer(pid)})
	if err != nil {
		return types.Lobby{}, c.fail(events.LobbyJoinFail, op, err)
	}

	c.mu.Lock()
	c.commitLocked(RoleMember, l.Clone())
	c.session.lastRelayCode = types.NoRelay
	c.mu.Unlock()

	c.logger.Info("lobby joined", zap.String("lobby_id", l.ID), zap.String("op", op))
	c.publish(events.Event{Kind: events.LobbyJoined, Op: op, Lobby: &l})
	return l, nil
}

// Leave removes the local player from the joined lobby. A lobby that is
// already gone counts as left.
func (c *Coordinator) Leave(ctx context.Context) error {
	const op = "leave"
	end, err := c.begin(op)
	if err != nil {
		return c.fail(events.LobbyLeaveFail, op, err)
	}
	defer end()

	pid, err := c.playerID(op)
	if err != nil {
		return c.fail(events.LobbyLeaveFail, op, err)
	}
	c.mu.Lock()
	joined := c.session.joined
	c.mu.Unlock()
	if joined == nil {
		return c.fail(events.LobbyLeaveFail, op, lobbyerr.New(lobbyerr.KindValidation, op, "not in a lobby"))
	}

	err = c.dir.RemovePlayer(ctx, joined.ID, pid)
	if err != nil && !errors.Is(err, lobbyerr.ErrNotFound) {
		return c.fail(events.LobbyLeaveFail, op, err)
	}

	c.mu.Lock()
	c.clearLocked()
	c.mu.Unlock()

	c.logger.Info("lobby left", zap.String("lobby_id", joined.ID))
	c.publish(events.Event{Kind: events.LobbyLeave, Op: op, Lobby: joined})
	return nil
}

// Delete removes the hosted lobby from the directory. Local state is kept
// until Leave.
func (c *Coordinator) Delete(ctx context.Context) error {
	const op = "delete"
	end, err := c.begin(op)
	if err != nil {
		return c.fail(events.LobbyDeleteFail, op, err)
	}
	defer end()

	hosted, err := c.requireHost(op)
	if err != nil {
		return c.fail(events.LobbyDeleteFail, op, err)
	}
	if err := c.dir.Delete(ctx, hosted.ID); err != nil {
		return c.fail(events.LobbyDeleteFail, op, err)
	}

	c.mu.Lock()
	c.session.deleted = true
	c.mu.Unlock()

	c.logger.Info("lobby deleted", zap.String("lobby_id", hosted.ID))
	c.publish(events.Event{Kind: events.LobbyDeleted, Op: op, Lobby: hosted, IsHost: true})
	return nil
}

// ListLobbies queries the directory for joinable public lobbies.
func (c *Coordinator) ListLobbies(ctx context.Context) ([]types.Lobby, error) {
	const op = "list_lobbies"
	if _, err := c.playerID(op); err != nil {
		return nil, c.fail(events.LobbiesListFail, op, err)
	}
	lobbies, err := c.dir.Query(ctx, directory.Query{})
	if err != nil {
		return nil, c.fail(events.LobbiesListFail, op, err)
	}
	c.publish(events.Event{Kind: events.LobbiesListed, Op: op, Lobbies: lobbies})
	return lobbies, nil
}

func (c *Coordinator) requireHost(op string) (*types.Lobby, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session.role != RoleHost || c.session.hosted == nil {
		return nil, lobbyerr.New(lobbyerr.KindForbidden, op, "only the host may do this")
	}
	return c.session.hosted, nil
}
