package directory

import (
	"context"
	"errors"
	"sort"

	"go.uber.org/zap"

	"github.com/VissentvNoord/lobby-system/internal/engine"
	"github.com/VissentvNoord/lobby-system/internal/hub"
	"github.com/VissentvNoord/lobby-system/internal/lobby"
	"github.com/VissentvNoord/lobby-system/internal/lobbyerr"
	"github.com/VissentvNoord/lobby-system/pkg/types"
)

// Service executes directory operations on behalf of an explicit actor.
type Service struct {
	hub    *hub.Hub
	logger *zap.Logger
}

func NewService(h *hub.Hub, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{hub: h, logger: logger.Named("directory")}
}

func (s *Service) Create(ctx context.Context, actor, name string, maxPlayers int, opts CreateOptions) (types.Lobby, error) {
	if actor == "" {
		return types.Lobby{}, lobbyerr.ErrUnauthenticated
	}
	host := opts.Player.Clone()
	host.ID = actor

	_, snap, err := s.hub.Create(ctx, hub.CreateLobby{
		Name:       name,
		MaxPlayers: maxPlayers,
		Private:    opts.Private,
		Host:       host,
		Data:       opts.Data,
	})
	if err != nil {
		return types.Lobby{}, err
	}
	return snap, nil
}

func (s *Service) Query(ctx context.Context, q Query) ([]types.Lobby, error) {
	limit := q.Limit
	if limit <= 0 || limit > engine.QueryLimit {
		limit = engine.QueryLimit
	}
	open, err := s.openLobbies(ctx)
	if err != nil {
		return nil, err
	}
	if len(open) > limit {
		open = open[:limit]
	}
	for i := range open {
		open[i] = publicView(open[i])
	}
	return open, nil
}

// openLobbies returns public lobbies with free slots, newest first.
func (s *Service) openLobbies(ctx context.Context) ([]types.Lobby, error) {
	all, err := s.hub.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]types.Lobby, 0, len(all))
	for _, lb := range all {
		v, err := lb.Snapshot(ctx)
		if errors.Is(err, lobby.ErrClosed) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if v.State.Private || v.State.AvailableSlots() <= 0 {
			continue
		}
		out = append(out, v.State)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Service) JoinByCode(ctx context.Context, actor, code string, opts JoinOptions) (types.Lobby, error) {
	if err := engine.ValidateCode(code); err != nil {
		return types.Lobby{}, err
	}
	lb, err := s.hub.GetByCode(ctx, code)
	if err != nil {
		return types.Lobby{}, err
	}
	if lb == nil {
		return types.Lobby{}, lobbyerr.New(lobbyerr.KindNotFound, "directory.join_by_code", "no lobby with code "+code)
	}
	return s.join(ctx, lb, actor, opts)
}

func (s *Service) JoinByID(ctx context.Context, actor, id string, opts JoinOptions) (types.Lobby, error) {
	lb, err := s.lookup(ctx, id)
	if err != nil {
		return types.Lobby{}, err
	}
	v, err := lb.Snapshot(ctx)
	if err != nil {
		return types.Lobby{}, err
	}
	if v.State.Private {
		return types.Lobby{}, lobbyerr.New(lobbyerr.KindForbidden, "directory.join_by_id", "private lobbies are joined by code")
	}
	return s.join(ctx, lb, actor, opts)
}

func (s *Service) QuickJoin(ctx context.Context, actor string, opts JoinOptions) (types.Lobby, error) {
	open, err := s.openLobbies(ctx)
	if err != nil {
		return types.Lobby{}, err
	}
	for _, candidate := range open {
		if candidate.HasPlayer(actor) {
			continue
		}
		lb, err := s.hub.Get(ctx, candidate.ID)
		if err != nil {
			return types.Lobby{}, err
		}
		if lb == nil {
			continue
		}
		snap, err := s.join(ctx, lb, actor, opts)
		// Lost a race for the last slot or the lobby vanished: try the next one.
		if errors.Is(err, lobbyerr.ErrFull) || errors.Is(err, lobbyerr.ErrNotFound) {
			continue
		}
		return snap, err
	}
	return types.Lobby{}, lobbyerr.New(lobbyerr.KindNotFound, "directory.quick_join", "no open lobby available")
}

func (s *Service) join(ctx context.Context, lb *lobby.Lobby, actor string, opts JoinOptions) (types.Lobby, error) {
	if actor == "" {
		return types.Lobby{}, lobbyerr.ErrUnauthenticated
	}
	p := opts.Player.Clone()
	p.ID = actor
	snap, _, err := lb.Do(ctx, engine.Command{Type: engine.CmdJoin, Actor: actor, Player: p})
	if err != nil {
		return types.Lobby{}, err
	}
	s.logger.Debug("player joined", zap.String("lobby_id", snap.ID), zap.String("player_id", actor))
	return snap, nil
}

func (s *Service) Update(ctx context.Context, actor, id string, opts UpdateOptions) (types.Lobby, error) {
	return s.do(ctx, id, engine.Command{Type: engine.CmdUpdateLobby, Actor: actor, Data: opts.Data, HostID: opts.HostID})
}

func (s *Service) UpdatePlayer(ctx context.Context, actor, lobbyID, playerID string, opts UpdatePlayerOptions) (types.Lobby, error) {
	return s.do(ctx, lobbyID, engine.Command{Type: engine.CmdUpdatePlayer, Actor: actor, PlayerID: playerID, PlayerData: opts.Data})
}

func (s *Service) RemovePlayer(ctx context.Context, actor, lobbyID, playerID string) error {
	_, err := s.do(ctx, lobbyID, engine.Command{Type: engine.CmdRemovePlayer, Actor: actor, PlayerID: playerID})
	return err
}

func (s *Service) Heartbeat(ctx context.Context, actor, lobbyID string) error {
	_, err := s.do(ctx, lobbyID, engine.Command{Type: engine.CmdHeartbeat, Actor: actor})
	return err
}

func (s *Service) Delete(ctx context.Context, actor, lobbyID string) error {
	lb, err := s.lookup(ctx, lobbyID)
	if err != nil {
		return err
	}
	v, err := lb.Snapshot(ctx)
	if err != nil {
		return err
	}
	if v.State.HostID != actor {
		return engine.ErrNotHost
	}
	if err := lb.Close(ctx, lobby.ReasonDeleted); err != nil {
		return err
	}
	s.logger.Info("lobby deleted", zap.String("lobby_id", lobbyID), zap.String("host_id", actor))
	return nil
}

// Get returns the full snapshot to members and the public view to everyone else.
func (s *Service) Get(ctx context.Context, actor, lobbyID string) (types.Lobby, error) {
	lb, err := s.lookup(ctx, lobbyID)
	if err != nil {
		return types.Lobby{}, err
	}
	v, err := lb.Snapshot(ctx)
	if err != nil {
		return types.Lobby{}, err
	}
	if !v.State.HasPlayer(actor) {
		return publicView(v.State), nil
	}
	return v.State, nil
}

func (s *Service) do(ctx context.Context, lobbyID string, cmd engine.Command) (types.Lobby, error) {
	if cmd.Actor == "" {
		return types.Lobby{}, lobbyerr.ErrUnauthenticated
	}
	lb, err := s.lookup(ctx, lobbyID)
	if err != nil {
		return types.Lobby{}, err
	}
	snap, _, err := lb.Do(ctx, cmd)
	return snap, err
}

func (s *Service) lookup(ctx context.Context, id string) (*lobby.Lobby, error) {
	if id == "" {
		return nil, lobbyerr.New(lobbyerr.KindValidation, "directory", "lobby id is required")
	}
	lb, err := s.hub.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if lb == nil {
		return nil, lobbyerr.New(lobbyerr.KindNotFound, "directory", "no lobby with id "+id)
	}
	return lb, nil
}

// publicView strips member-only attributes.
func publicView(l types.Lobby) types.Lobby {
	out := *l.Clone()
	for k, v := range out.Data {
		if v.Visibility != types.VisibilityPublic {
			delete(out.Data, k)
		}
	}
	return out
}
