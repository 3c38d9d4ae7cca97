// Package directory is the lobby directory: the Directory interface participants call,
// the in-process Service that backs it, and the HTTP client for a remote directory.
package directory

import (
	"context"

	"github.com/VissentvNoord/lobby-system/pkg/types"
)

type CreateOptions struct {
	Private bool
	Player  types.Player
	Data    map[string]types.Attribute
}

type JoinOptions struct {
	Player types.Player
}

// UpdateOptions changes lobby attributes and/or hands the host role to HostID.
type UpdateOptions struct {
	Data   map[string]types.Attribute
	HostID string
}

type UpdatePlayerOptions struct {
	Data map[string]string
}

// Query lists joinable public lobbies (available slots > 0), newest first.
type Query struct {
	Limit int
}

// Directory is the lobby directory as seen by one signed-in participant.
type Directory interface {
	Create(ctx context.Context, name string, maxPlayers int, opts CreateOptions) (types.Lobby, error)
	Query(ctx context.Context, q Query) ([]types.Lobby, error)
	JoinByCode(ctx context.Context, code string, opts JoinOptions) (types.Lobby, error)
	JoinByID(ctx context.Context, id string, opts JoinOptions) (types.Lobby, error)
	QuickJoin(ctx context.Context, opts JoinOptions) (types.Lobby, error)
	Update(ctx context.Context, id string, opts UpdateOptions) (types.Lobby, error)
	UpdatePlayer(ctx context.Context, lobbyID, playerID string, opts UpdatePlayerOptions) (types.Lobby, error)
	RemovePlayer(ctx context.Context, lobbyID, playerID string) error
	Delete(ctx context.Context, lobbyID string) error
	Heartbeat(ctx context.Context, lobbyID string) error
	Get(ctx context.Context, lobbyID string) (types.Lobby, error)
}

// Identity supplies the signed-in participant id; empty means not signed in.
type Identity interface {
	PlayerID() string
}
