// Package relay provisions the low-latency transport session a lobby hands off to
// when gameplay starts: allocation and join-code exchange on the client side, and
// the allocation registry on the server side.
package relay

import (
	"context"
)

// Allocation is a provisioned relay session owned by the host.
type Allocation struct {
	ID             string
	Endpoint       string
	MaxConnections int
}

// JoinAllocation describes an existing allocation as seen by a joining client.
type JoinAllocation struct {
	AllocationID string
	Endpoint     string
	JoinCode     string
}

// Client is the relay allocation service.
type Client interface {
	CreateAllocation(ctx context.Context, maxConnections int) (Allocation, error)
	GetJoinCode(ctx context.Context, allocationID string) (string, error)
	JoinAllocation(ctx context.Context, joinCode string) (JoinAllocation, error)
}

// Transport is the local end of the relay session.
type Transport interface {
	ConfigureAsHost(a Allocation) error
	ConfigureAsClient(j JoinAllocation) error
	Start(ctx context.Context) error
	Close() error
}
