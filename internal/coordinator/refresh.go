package coordinator

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/VissentvNoord/lobby-system/internal/events"
	"github.com/VissentvNoord/lobby-system/internal/lobbyerr"
	"github.com/VissentvNoord/lobby-system/pkg/types"
)

// Heartbeat keeps the hosted lobby alive. It is a no-op unless the local
// participant hosts a lobby that has not been deleted.
func (c *Coordinator) Heartbeat(ctx context.Context) error {
	c.mu.Lock()
	if c.session.role != RoleHost || c.session.hosted == nil || c.session.deleted {
		c.mu.Unlock()
		return nil
	}
	id := c.session.hosted.ID
	c.mu.Unlock()

	if err := c.dir.Heartbeat(ctx, id); err != nil {
		c.logger.Warn("heartbeat failed", zap.String("lobby_id", id), zap.Error(err))
		return err
	}
	c.logger.Debug("heartbeat sent", zap.String("lobby_id", id))
	return nil
}

// Poll fetches the joined lobby and folds it in. It is a no-op when no lobby
// is joined or a lifecycle operation is in flight.
func (c *Coordinator) Poll(ctx context.Context) error {
	if c.inflight.Load() {
		return nil
	}
	c.mu.Lock()
	if c.session.joined == nil {
		c.mu.Unlock()
		return nil
	}
	id, epoch := c.session.joined.ID, c.session.epoch
	c.mu.Unlock()

	l, err := c.dir.Get(ctx, id)
	if errors.Is(err, lobbyerr.ErrNotFound) {
		c.lobbyGone(id, epoch)
		return nil
	}
	if err != nil {
		c.logger.Warn("poll failed", zap.String("lobby_id", id), zap.Error(err))
		return err
	}
	c.refresh(ctx, l, &epoch)
	return nil
}

// RefreshFromSnapshot replaces the joined lobby with l and runs the handoff check.
func (c *Coordinator) RefreshFromSnapshot(ctx context.Context, l types.Lobby) {
	c.refresh(ctx, l, nil)
}

// lobbyGone clears the session when the polled lobby was deleted or expired.
func (c *Coordinator) lobbyGone(id string, epoch uint64) {
	c.mu.Lock()
	if c.session.epoch != epoch || c.session.joined == nil || c.session.joined.ID != id {
		c.mu.Unlock()
		return
	}
	// Delete already reported it; Leave clears the session.
	if c.session.deleted {
		c.mu.Unlock()
		return
	}
	gone := c.session.joined
	wasHost := c.session.role == RoleHost
	c.clearLocked()
	c.mu.Unlock()

	c.logger.Info("joined lobby no longer exists", zap.String("lobby_id", id))
	c.publish(events.Event{Kind: events.LobbyDeleted, Op: "poll", Lobby: gone, IsHost: wasHost})
}

// refresh folds a fetched snapshot in. A non-nil epoch that no longer matches
// means a lifecycle operation won the race and the snapshot is dropped.
func (c *Coordinator) refresh(ctx context.Context, l types.Lobby, epoch *uint64) {
	const op = "refresh"
	pid := c.id.PlayerID()

	c.mu.Lock()
	s := &c.session
	if s.joined == nil || s.joined.ID != l.ID || (epoch != nil && *epoch != s.epoch) {
		c.mu.Unlock()
		c.logger.Debug("dropping stale snapshot", zap.String("lobby_id", l.ID))
		return
	}

	if !l.HasPlayer(pid) {
		c.clearLocked()
		c.mu.Unlock()
		c.logger.Info("removed from lobby", zap.String("lobby_id", l.ID))
		c.publish(events.Event{Kind: events.LobbyLeave, Op: op, Lobby: &l})
		return
	}

	prev := s.role
	role := prev
	code := l.RelayCode()
	var joinCode string
	if prev == RoleMember && code != types.NoRelay && code != s.lastRelayCode {
		// A member that has not seen this session joins it, even when the
		// same snapshot also promotes it. Lobby tracking ends first so the
		// poll stops and the code can never trigger a second join.
		s.lastRelayCode = code
		joinCode = code
		c.clearLocked()
	} else {
		switch {
		case prev == RoleHost && l.HostID != pid:
			role = RoleMember
		case prev == RoleMember && l.HostID == pid:
			role = RoleHost
		}
		c.commitLocked(role, l.Clone())
		if role == RoleHost {
			s.lastRelayCode = code
		}
	}
	c.mu.Unlock()

	if role != prev {
		c.logger.Info("host changed", zap.String("lobby_id", l.ID), zap.String("host_id", l.HostID))
		c.publish(events.Event{Kind: events.HostChanged, Op: op, Lobby: &l, PlayerID: l.HostID, IsHost: role == RoleHost})
	}
	c.publish(events.Event{Kind: events.LobbyUpdated, Op: op, Lobby: &l, IsHost: role == RoleHost})

	if joinCode != "" {
		c.handoff(ctx, l, joinCode)
	}
}

// handoff runs the member relay join exactly once for a newly seen code.
func (c *Coordinator) handoff(ctx context.Context, l types.Lobby, code string) {
	const op = "join_game"
	if c.relay == nil {
		c.fail(events.JoinGameFail, op, lobbyerr.New(lobbyerr.KindRelayAllocation, op, "no relay configured"))
		return
	}
	if err := c.relay.JoinAsClient(ctx, code); err != nil {
		c.fail(events.JoinGameFail, op, err)
		return
	}
	c.logger.Info("joined game session", zap.String("lobby_id", l.ID), zap.String("relay_code", code))
	c.publish(events.Event{Kind: events.JoinGame, Op: op, Lobby: &l, RelayCode: code})
}
