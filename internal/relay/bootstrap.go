package relay

import (
	"context"
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/VissentvNoord/lobby-system/internal/lobbyerr"
)

// Bootstrap runs the two narrow handoff paths. Neither path retries.
type Bootstrap struct {
	client    Client
	transport Transport
	logger    *zap.Logger
}

func NewBootstrap(client Client, transport Transport, logger *zap.Logger) *Bootstrap {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bootstrap{client: client, transport: transport, logger: logger.Named("relay")}
}

// MaxConnections is the relay client capacity for a lobby; the host is not a client.
func MaxConnections(maxPlayers int) int {
	if maxPlayers-1 < 1 {
		return 1
	}
	return maxPlayers - 1
}

// StartHost allocates a session sized for maxPlayers, starts the local transport
// as host and returns the join code members use to connect.
func (b *Bootstrap) StartHost(ctx context.Context, maxPlayers int) (string, error) {
	const op = "relay.start_host"

	alloc, err := b.client.CreateAllocation(ctx, MaxConnections(maxPlayers))
	if err != nil {
		return "", lobbyerr.Wrap(lobbyerr.KindRelayAllocation, op, err)
	}
	code, err := b.client.GetJoinCode(ctx, alloc.ID)
	if err != nil {
		return "", lobbyerr.Wrap(lobbyerr.KindRelayAllocation, op, err)
	}
	if err := b.transport.ConfigureAsHost(alloc); err != nil {
		return "", lobbyerr.Wrap(lobbyerr.KindRelayAllocation, op, fmt.Errorf("configure host: %w", err))
	}
	if err := b.transport.Start(ctx); err != nil {
		return "", lobbyerr.Wrap(lobbyerr.KindRelayAllocation, op, multierr.Append(
			fmt.Errorf("start host: %w", err), b.transport.Close()))
	}

	b.logger.Info("relay host started",
		zap.String("allocation_id", alloc.ID),
		zap.String("join_code", code),
		zap.Int("max_connections", alloc.MaxConnections),
	)
	return code, nil
}

// JoinAsClient joins the allocation behind joinCode and connects the local transport.
func (b *Bootstrap) JoinAsClient(ctx context.Context, joinCode string) error {
	const op = "relay.join_client"

	ja, err := b.client.JoinAllocation(ctx, joinCode)
	if err != nil {
		return lobbyerr.Wrap(lobbyerr.KindRelayAllocation, op, err)
	}
	if err := b.transport.ConfigureAsClient(ja); err != nil {
		return lobbyerr.Wrap(lobbyerr.KindRelayAllocation, op, fmt.Errorf("configure client: %w", err))
	}
	if err := b.transport.Start(ctx); err != nil {
		return lobbyerr.Wrap(lobbyerr.KindRelayAllocation, op, multierr.Append(
			fmt.Errorf("start client: %w", err), b.transport.Close()))
	}

	b.logger.Info("relay client connected", zap.String("allocation_id", ja.AllocationID))
	return nil
}

func (b *Bootstrap) Close() error {
	return b.transport.Close()
}
