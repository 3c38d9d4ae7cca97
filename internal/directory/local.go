package directory

import (
	"context"

	"github.com/VissentvNoord/lobby-system/pkg/types"
)

// Local binds an identity to an in-process Service.
type Local struct {
	svc *Service
	id  Identity
}

var _ Directory = (*Local)(nil)

func NewLocal(svc *Service, id Identity) *Local {
	return &Local{svc: svc, id: id}
}

func (l *Local) Create(ctx context.Context, name string, maxPlayers int, opts CreateOptions) (types.Lobby, error) {
	return l.svc.Create(ctx, l.id.PlayerID(), name, maxPlayers, opts)
}

func (l *Local) Query(ctx context.Context, q Query) ([]types.Lobby, error) {
	return l.svc.Query(ctx, q)
}

func (l *Local) JoinByCode(ctx context.Context, code string, opts JoinOptions) (types.Lobby, error) {
	return l.svc.JoinByCode(ctx, l.id.PlayerID(), code, opts)
}

func (l *Local) JoinByID(ctx context.Context, id string, opts JoinOptions) (types.Lobby, error) {
	return l.svc.JoinByID(ctx, l.id.PlayerID(), id, opts)
}

func (l *Local) QuickJoin(ctx context.Context, opts JoinOptions) (types.Lobby, error) {
	return l.svc.QuickJoin(ctx, l.id.PlayerID(), opts)
}

func (l *Local) Update(ctx context.Context, id string, opts UpdateOptions) (types.Lobby, error) {
	return l.svc.Update(ctx, l.id.PlayerID(), id, opts)
}

func (l *Local) UpdatePlayer(ctx context.Context, lobbyID, playerID string, opts UpdatePlayerOptions) (types.Lobby, error) {
	return l.svc.UpdatePlayer(ctx, l.id.PlayerID(), lobbyID, playerID, opts)
}

func (l *Local) RemovePlayer(ctx context.Context, lobbyID, playerID string) error {
	return l.svc.RemovePlayer(ctx, l.id.PlayerID(), lobbyID, playerID)
}

func (l *Local) Delete(ctx context.Context, lobbyID string) error {
	return l.svc.Delete(ctx, l.id.PlayerID(), lobbyID)
}

func (l *Local) Heartbeat(ctx context.Context, lobbyID string) error {
	return l.svc.Heartbeat(ctx, l.id.PlayerID(), lobbyID)
}

func (l *Local) Get(ctx context.Context, lobbyID string) (types.Lobby, error) {
	return l.svc.Get(ctx, l.id.PlayerID(), lobbyID)
}
