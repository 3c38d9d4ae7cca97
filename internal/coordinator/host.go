package coordinator

import (
	"context"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/VissentvNoord/lobby-system/internal/directory"
	"github.com/VissentvNoord/lobby-system/internal/engine"
	"github.com/VissentvNoord/lobby-system/internal/events"
	"github.com/VissentvNoord/lobby-system/internal/lobbyerr"
	"github.com/VissentvNoord/lobby-system/pkg/types"
)

func (c *Coordinator) UpdateGameMode(ctx context.Context, mode string) (types.Lobby, error) {
	const op = "update_game_mode"
	end, err := c.begin(op)
	if err != nil {
		return types.Lobby{}, c.fail(events.LobbyUpdateFail, op, err)
	}
	defer end()

	hosted, err := c.requireHost(op)
	if err != nil {
		return types.Lobby{}, c.fail(events.LobbyUpdateFail, op, err)
	}
	l, err := c.dir.Update(ctx, hosted.ID, directory.UpdateOptions{
		Data: map[string]types.Attribute{types.KeyGameMode: types.Public(mode)},
	})
	if err != nil {
		return types.Lobby{}, c.fail(events.LobbyUpdateFail, op, err)
	}
	return c.fold(op, l), nil
}

// UpdatePlayerName saves the display name locally and, when in a lobby,
// publishes it on the local player's record.
func (c *Coordinator) UpdatePlayerName(ctx context.Context, name string) (types.Lobby, error) {
	const op = "update_player_name"
	end, err := c.begin(op)
	if err != nil {
		return types.Lobby{}, c.fail(events.LobbyUpdateFail, op, err)
	}
	defer end()

	pid, err := c.playerID(op)
	if err != nil {
		return types.Lobby{}, c.fail(events.LobbyUpdateFail, op, err)
	}
	if err := engine.ValidatePlayerName(name); err != nil {
		return types.Lobby{}, c.fail(events.LobbyUpdateFail, op, err)
	}
	if c.names != nil {
		if err := c.names.Save(name); err != nil {
			c.logger.Warn("could not save display name", zap.Error(err))
		}
	}

	c.mu.Lock()
	c.name = name
	joined := c.session.joined
	c.mu.Unlock()

	if joined == nil {
		c.publish(events.Event{Kind: events.LobbyUpdated, Op: op, PlayerID: pid})
		return types.Lobby{}, nil
	}
	l, err := c.dir.UpdatePlayer(ctx, joined.ID, pid, directory.UpdatePlayerOptions{
		Data: map[string]string{types.KeyDisplayName: name},
	})
	if err != nil {
		return types.Lobby{}, c.fail(events.LobbyUpdateFail, op, err)
	}
	return c.fold(op, l), nil
}

// KickPlayer removes another player from the hosted lobby.
func (c *Coordinator) KickPlayer(ctx context.Context, playerID string) (types.Lobby, error) {
	const op = "kick_player"
	end, err := c.begin(op)
	if err != nil {
		return types.Lobby{}, c.fail(events.LobbyUpdateFail, op, err)
	}
	defer end()

	hosted, err := c.requireHost(op)
	if err != nil {
		return types.Lobby{}, c.fail(events.LobbyUpdateFail, op, err)
	}
	// Membership is checked by the directory; the local copy may predate a join.
	if err := c.requireOther(op, playerID); err != nil {
		return types.Lobby{}, c.fail(events.LobbyUpdateFail, op, err)
	}
	if err := c.dir.RemovePlayer(ctx, hosted.ID, playerID); err != nil {
		return types.Lobby{}, c.fail(events.LobbyUpdateFail, op, err)
	}
	c.logger.Info("player kicked", zap.String("lobby_id", hosted.ID), zap.String("player_id", playerID))

	// Removal returns no record.
	l, err := c.dir.Get(ctx, hosted.ID)
	if err != nil {
		return types.Lobby{}, c.fail(events.LobbyUpdateFail, op, err)
	}
	return c.fold(op, l), nil
}

// MigrateHost hands the host role to newHostID; the local participant stays as a member.
func (c *Coordinator) MigrateHost(ctx context.Context, newHostID string) (types.Lobby, error) {
	const op = "migrate_host"
	end, err := c.begin(op)
	if err != nil {
		return types.Lobby{}, c.fail(events.LobbyUpdateFail, op, err)
	}
	defer end()

	hosted, err := c.requireHost(op)
	if err != nil {
		return types.Lobby{}, c.fail(events.LobbyUpdateFail, op, err)
	}
	if err := c.requireOther(op, newHostID); err != nil {
		return types.Lobby{}, c.fail(events.LobbyUpdateFail, op, err)
	}
	l, err := c.dir.Update(ctx, hosted.ID, directory.UpdateOptions{HostID: newHostID})
	if err != nil {
		return types.Lobby{}, c.fail(events.LobbyUpdateFail, op, err)
	}

	c.mu.Lock()
	c.commitLocked(RoleMember, l.Clone())
	// The relay code, if any, is ours; do not hand off to it.
	c.session.lastRelayCode = l.RelayCode()
	c.mu.Unlock()

	c.logger.Info("host migrated", zap.String("lobby_id", l.ID), zap.String("new_host_id", newHostID))
	c.publish(events.Event{Kind: events.HostChanged, Op: op, Lobby: &l, PlayerID: newHostID})
	c.publish(events.Event{Kind: events.LobbyUpdated, Op: op, Lobby: &l})
	return l, nil
}

// StartSession allocates a relay session and publishes its join code on the
// hosted lobby. On failure the session state is unchanged.
func (c *Coordinator) StartSession(ctx context.Context) (types.Lobby, error) {
	const op = "start_session"
	end, err := c.begin(op)
	if err != nil {
		return types.Lobby{}, c.fail(events.StartGameFail, op, err)
	}
	defer end()

	hosted, err := c.requireHost(op)
	if err != nil {
		return types.Lobby{}, c.fail(events.StartGameFail, op, err)
	}
	if c.relay == nil {
		return types.Lobby{}, c.fail(events.StartGameFail, op,
			lobbyerr.New(lobbyerr.KindRelayAllocation, op, "no relay configured"))
	}
	if hosted.RelayCode() != types.NoRelay {
		return types.Lobby{}, c.fail(events.StartGameFail, op,
			lobbyerr.New(lobbyerr.KindConflict, op, "session already started"))
	}

	code, err := c.relay.StartHost(ctx, hosted.MaxPlayers)
	if err != nil {
		return types.Lobby{}, c.fail(events.StartGameFail, op, err)
	}
	l, err := c.dir.Update(ctx, hosted.ID, directory.UpdateOptions{
		Data: map[string]types.Attribute{types.KeyRelayCode: types.Member(code)},
	})
	if err != nil {
		// Members can never learn the code; tear the relay down again.
		return types.Lobby{}, c.fail(events.StartGameFail, op, multierr.Append(err, c.relay.Close()))
	}

	c.mu.Lock()
	c.session.lastRelayCode = code
	c.mu.Unlock()
	l = c.fold(op, l)

	c.logger.Info("session started", zap.String("lobby_id", l.ID), zap.String("relay_code", code))
	c.publish(events.Event{Kind: events.StartGame, Op: op, Lobby: &l, IsHost: true, RelayCode: code})
	return l, nil
}

// fold installs l as the current snapshot for the lobby the caller is in.
func (c *Coordinator) fold(op string, l types.Lobby) types.Lobby {
	c.mu.Lock()
	role := c.session.role
	if c.session.joined != nil && c.session.joined.ID == l.ID {
		c.commitLocked(role, l.Clone())
	}
	c.mu.Unlock()

	c.publish(events.Event{Kind: events.LobbyUpdated, Op: op, Lobby: &l, IsHost: role == RoleHost})
	return l
}

func (c *Coordinator) requireOther(op string, playerID string) error {
	if playerID == "" || playerID == c.id.PlayerID() {
		return lobbyerr.New(lobbyerr.KindValidation, op, "a different player id is required")
	}
	return nil
}
