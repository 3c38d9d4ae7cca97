package heartbeat_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VissentvNoord/lobby-system/internal/coordinator"
	"github.com/VissentvNoord/lobby-system/internal/directory"
	"github.com/VissentvNoord/lobby-system/internal/events"
	"github.com/VissentvNoord/lobby-system/internal/heartbeat"
	"github.com/VissentvNoord/lobby-system/internal/hub"
	"github.com/VissentvNoord/lobby-system/internal/identity"
	"github.com/VissentvNoord/lobby-system/internal/relay"
	"github.com/VissentvNoord/lobby-system/pkg/types"
)

type countingTransport struct {
	mu      sync.Mutex
	clients int
}

func (c *countingTransport) ConfigureAsHost(relay.Allocation) error { return nil }

func (c *countingTransport) ConfigureAsClient(relay.JoinAllocation) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clients++
	return nil
}

func (c *countingTransport) Start(context.Context) error { return nil }
func (c *countingTransport) Close() error                { return nil }

func (c *countingTransport) joins() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clients
}

func newCoordinator(t *testing.T, svc *directory.Service, reg *relay.Registry, id string, tr relay.Transport) *coordinator.Coordinator {
	t.Helper()
	ident := identity.Fixed(id)
	c := coordinator.New(coordinator.Deps{
		Directory: directory.NewLocal(svc, ident),
		Relay:     relay.NewBootstrap(relay.NewLocalClient(reg), tr, nil),
		Identity:  ident,
	})
	require.NoError(t, c.Start(context.Background()))
	return c
}

func TestPoller_MemberJoinsRelayWithinTwoPollCycles(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc := directory.NewService(hub.NewHub(ctx, hub.Options{}), nil)
	reg := relay.NewRegistry(relay.RegistryOptions{})
	memberTransport := &countingTransport{}
	host := newCoordinator(t, svc, reg, "x", &countingTransport{})
	member := newCoordinator(t, svc, reg, "y", memberTransport)

	var joinGames int
	var mu sync.Mutex
	member.Bus().Subscribe(events.JoinGame, func(events.Event) {
		mu.Lock()
		joinGames++
		mu.Unlock()
	})

	created, err := host.CreateLobby(ctx, "Foo", 4)
	require.NoError(t, err)
	_, err = member.JoinByCode(ctx, created.Code)
	require.NoError(t, err)

	started, err := host.StartSession(ctx)
	require.NoError(t, err)
	require.NotEqual(t, types.NoRelay, started.RelayCode())

	const tick = 500 * time.Millisecond
	poller := heartbeat.New(member, heartbeat.Options{})
	hostPoller := heartbeat.New(host, heartbeat.Options{})

	// Two poll cycles at 1.1s each fit in five half-second ticks.
	for i := 0; i < 5 && memberTransport.joins() == 0; i++ {
		poller.Tick(ctx, tick)
		hostPoller.Tick(ctx, tick)
		poller.Wait()
		hostPoller.Wait()
	}
	assert.Equal(t, 1, memberTransport.joins())

	// Further ticks never join again.
	for i := 0; i < 10; i++ {
		poller.Tick(ctx, tick)
		poller.Wait()
	}
	assert.Equal(t, 1, memberTransport.joins())
	mu.Lock()
	assert.Equal(t, 1, joinGames)
	mu.Unlock()

	assert.False(t, member.Tracking())
	assert.True(t, host.Hosting())
}
