package coordinator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VissentvNoord/lobby-system/internal/directory"
	"github.com/VissentvNoord/lobby-system/internal/events"
	"github.com/VissentvNoord/lobby-system/internal/hub"
	"github.com/VissentvNoord/lobby-system/internal/identity"
	"github.com/VissentvNoord/lobby-system/internal/lobbyerr"
	"github.com/VissentvNoord/lobby-system/internal/relay"
	"github.com/VissentvNoord/lobby-system/pkg/types"
)

// hookedDir wraps a real directory so tests can inject failures and stalls.
type hookedDir struct {
	directory.Directory
	onCreate   func() error
	onGet      func()
	heartbeats atomic.Int32
}

func (d *hookedDir) Create(ctx context.Context, name string, maxPlayers int, opts directory.CreateOptions) (types.Lobby, error) {
	if d.onCreate != nil {
		if err := d.onCreate(); err != nil {
			return types.Lobby{}, err
		}
	}
	return d.Directory.Create(ctx, name, maxPlayers, opts)
}

func (d *hookedDir) Get(ctx context.Context, id string) (types.Lobby, error) {
	if d.onGet != nil {
		d.onGet()
	}
	return d.Directory.Get(ctx, id)
}

func (d *hookedDir) Heartbeat(ctx context.Context, id string) error {
	d.heartbeats.Add(1)
	return d.Directory.Heartbeat(ctx, id)
}

type fakeTransport struct {
	mu      sync.Mutex
	hosts   int
	clients []relay.JoinAllocation
	closed  int
}

func (f *fakeTransport) ConfigureAsHost(relay.Allocation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hosts++
	return nil
}

func (f *fakeTransport) ConfigureAsClient(j relay.JoinAllocation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clients = append(f.clients, j)
	return nil
}

func (f *fakeTransport) Start(context.Context) error { return nil }

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

func (f *fakeTransport) clientJoins() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.clients)
}

type memNames struct{ name string }

func (m *memNames) LoadOrCreate() (string, error) {
	if m.name == "" {
		m.name = "Player42"
	}
	return m.name, nil
}

func (m *memNames) Save(name string) error {
	m.name = name
	return nil
}

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) record(e events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) kinds() []events.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.Kind, len(r.events))
	for i, e := range r.events {
		out[i] = e.Kind
	}
	return out
}

func (r *recorder) count(k events.Kind) int {
	n := 0
	for _, got := range r.kinds() {
		if got == k {
			n++
		}
	}
	return n
}

func (r *recorder) last(k events.Kind) (events.Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].Kind == k {
			return r.events[i], true
		}
	}
	return events.Event{}, false
}

type world struct {
	svc *directory.Service
	reg *relay.Registry
}

func newWorld(t *testing.T) *world {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return &world{
		svc: directory.NewService(hub.NewHub(ctx, hub.Options{}), nil),
		reg: relay.NewRegistry(relay.RegistryOptions{}),
	}
}

type participant struct {
	*Coordinator
	dir       *hookedDir
	transport *fakeTransport
	rec       *recorder
	names     *memNames
}

func (w *world) join(t *testing.T, id string) *participant {
	t.Helper()
	p := &participant{transport: &fakeTransport{}, rec: &recorder{}, names: &memNames{}}
	ident := identity.Fixed(id)
	p.dir = &hookedDir{Directory: directory.NewLocal(w.svc, ident)}
	p.Coordinator = New(Deps{
		Directory: p.dir,
		Relay:     relay.NewBootstrap(relay.NewLocalClient(w.reg), p.transport, nil),
		Identity:  ident,
		Names:     p.names,
	})
	p.Bus().SubscribeAll(p.rec.record)
	require.NoError(t, p.Start(context.Background()))
	return p
}

func assertInvariants(t *testing.T, c *Coordinator) {
	t.Helper()
	s := c.Session()
	if s.Hosted != nil {
		require.NotNil(t, s.Joined, "hosted lobby without joined lobby")
		assert.Equal(t, *s.Hosted, *s.Joined)
	}
	assert.Equal(t, s.Role == RoleHost, s.Hosted != nil)
	if s.Role == RoleNone {
		assert.Nil(t, s.Joined)
	}
}

func TestStart_AuthenticatesAndLoadsName(t *testing.T) {
	w := newWorld(t)
	x := w.join(t, "x")

	assert.Equal(t, []events.Kind{events.Authenticated}, x.rec.kinds())
	s := x.Session()
	assert.Equal(t, "x", s.PlayerID)
	assert.Equal(t, "Player42", s.PlayerName)
	assert.Equal(t, RoleNone, s.Role)
}

func TestCreateLobby_HostIsSolePlayer(t *testing.T) {
	ctx := context.Background()
	x := newWorld(t).join(t, "x")

	l, err := x.CreateLobby(ctx, "Foo", 4)
	require.NoError(t, err)

	assert.NotEmpty(t, l.Code)
	require.Len(t, l.Players, 1)
	assert.Equal(t, "Player42", l.Players[0].DisplayName())
	assert.Equal(t, types.NoRelay, l.RelayCode())

	s := x.Session()
	assert.Equal(t, RoleHost, s.Role)
	require.NotNil(t, s.Hosted)
	assert.Equal(t, l.ID, s.Hosted.ID)
	assertInvariants(t, x.Coordinator)

	e, ok := x.rec.last(events.LobbyCreated)
	require.True(t, ok)
	assert.True(t, e.IsHost)
	assert.Equal(t, l.ID, e.Lobby.ID)
}

func TestCreateLobby_DefaultsAndOptions(t *testing.T) {
	ctx := context.Background()
	w := newWorld(t)
	x := w.join(t, "x")

	l, err := x.CreateLobby(ctx, "Secret", 0, Private(), WithGameMode("Party"))
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxPlayers, l.MaxPlayers)
	assert.True(t, l.Private)
	assert.Equal(t, "Party", l.GameMode())

	listed, err := w.join(t, "y").ListLobbies(ctx)
	require.NoError(t, err)
	assert.Empty(t, listed)
}

func TestCreateLobby_RateLimitedLeavesStateUnchanged(t *testing.T) {
	ctx := context.Background()
	x := newWorld(t).join(t, "x")
	limited := true
	x.dir.onCreate = func() error {
		if limited {
			return lobbyerr.New(lobbyerr.KindRateLimited, "directory.create", "slow down")
		}
		return nil
	}

	_, err := x.CreateLobby(ctx, "Foo", 4)
	assert.True(t, errors.Is(err, lobbyerr.ErrRateLimited))
	s := x.Session()
	assert.Equal(t, RoleNone, s.Role)
	assert.Nil(t, s.Joined)
	assert.Zero(t, x.rec.count(events.LobbyCreated))
	fail, ok := x.rec.last(events.LobbyCreateFail)
	require.True(t, ok)
	assert.True(t, errors.Is(fail.Err, lobbyerr.ErrRateLimited))

	limited = false
	_, err = x.CreateLobby(ctx, "Foo", 4)
	require.NoError(t, err)
	assert.Equal(t, 1, x.rec.count(events.LobbyCreated))
}

func TestJoinByCode_AddsSecondPlayer(t *testing.T) {
	ctx := context.Background()
	w := newWorld(t)
	x, y := w.join(t, "x"), w.join(t, "y")

	created, err := x.CreateLobby(ctx, "Foo", 4)
	require.NoError(t, err)

	joined, err := y.JoinByCode(ctx, created.Code)
	require.NoError(t, err)
	require.Len(t, joined.Players, 2)
	assert.NotEqual(t, joined.Players[0].ID, joined.Players[1].ID)

	s := y.Session()
	assert.Equal(t, RoleMember, s.Role)
	assert.Nil(t, s.Hosted)
	require.NotNil(t, s.Joined)
	assertInvariants(t, y.Coordinator)
	assert.Equal(t, 1, y.rec.count(events.LobbyJoined))
}

func TestJoin_HostCannotOverwriteHostedLobby(t *testing.T) {
	ctx := context.Background()
	w := newWorld(t)
	x, y := w.join(t, "x"), w.join(t, "y")

	mine, err := x.CreateLobby(ctx, "Mine", 4)
	require.NoError(t, err)
	other, err := y.CreateLobby(ctx, "Other", 4)
	require.NoError(t, err)

	_, err = x.JoinByCode(ctx, other.Code)
	assert.True(t, errors.Is(err, lobbyerr.ErrConflict))
	_, err = x.QuickJoin(ctx)
	assert.True(t, errors.Is(err, lobbyerr.ErrConflict))

	s := x.Session()
	assert.Equal(t, RoleHost, s.Role)
	assert.Equal(t, mine.ID, s.Hosted.ID)
	assert.Equal(t, 2, x.rec.count(events.LobbyJoinFail))
}

func TestJoinByID_AndQuickJoin(t *testing.T) {
	ctx := context.Background()
	w := newWorld(t)
	x, y, z := w.join(t, "x"), w.join(t, "y"), w.join(t, "z")

	created, err := x.CreateLobby(ctx, "Foo", 4)
	require.NoError(t, err)

	byID, err := y.JoinByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, byID.ID)

	quick, err := z.QuickJoin(ctx)
	require.NoError(t, err)
	assert.Equal(t, created.ID, quick.ID)
	assert.Len(t, quick.Players, 3)
}

func TestLeave_ClearsSession(t *testing.T) {
	ctx := context.Background()
	w := newWorld(t)
	x, y := w.join(t, "x"), w.join(t, "y")

	created, err := x.CreateLobby(ctx, "Foo", 4)
	require.NoError(t, err)
	_, err = y.JoinByCode(ctx, created.Code)
	require.NoError(t, err)

	require.NoError(t, y.Leave(ctx))
	s := y.Session()
	assert.Equal(t, RoleNone, s.Role)
	assert.Nil(t, s.Hosted)
	assert.Nil(t, s.Joined)
	assert.Equal(t, 1, y.rec.count(events.LobbyLeave))

	err = y.Leave(ctx)
	assert.True(t, errors.Is(err, lobbyerr.ErrValidation))
	assert.Equal(t, 1, y.rec.count(events.LobbyLeaveFail))

	require.NoError(t, x.Poll(ctx))
	assert.Len(t, x.Session().Hosted.Players, 1)

	require.NoError(t, x.Leave(ctx))
	assertInvariants(t, x.Coordinator)
	assert.Equal(t, RoleNone, x.Role())
}

func TestDeleteThenLeave(t *testing.T) {
	ctx := context.Background()
	w := newWorld(t)
	x, y := w.join(t, "x"), w.join(t, "y")

	created, err := x.CreateLobby(ctx, "Foo", 4)
	require.NoError(t, err)
	_, err = y.JoinByCode(ctx, created.Code)
	require.NoError(t, err)

	assert.True(t, errors.Is(y.Delete(ctx), lobbyerr.ErrForbidden))

	require.NoError(t, x.Delete(ctx))
	assert.Equal(t, 1, x.rec.count(events.LobbyDeleted))
	assert.Equal(t, RoleHost, x.Role(), "delete keeps local state until leave")

	require.NoError(t, x.Leave(ctx))
	assert.Equal(t, RoleNone, x.Role())

	// The member notices on its next poll.
	require.NoError(t, y.Poll(ctx))
	assert.Equal(t, RoleNone, y.Role())
	assert.Equal(t, 1, y.rec.count(events.LobbyDeleted))
	assertInvariants(t, y.Coordinator)
}

func TestStartSession_MemberHandsOffOnce(t *testing.T) {
	ctx := context.Background()
	w := newWorld(t)
	x, y := w.join(t, "x"), w.join(t, "y")

	created, err := x.CreateLobby(ctx, "Foo", 4)
	require.NoError(t, err)
	_, err = y.JoinByCode(ctx, created.Code)
	require.NoError(t, err)

	// Polls before the game starts do not hand off.
	require.NoError(t, y.Poll(ctx))
	assert.Zero(t, y.transport.clientJoins())

	started, err := x.StartSession(ctx)
	require.NoError(t, err)
	code := started.RelayCode()
	assert.NotEqual(t, types.NoRelay, code)
	assert.Equal(t, code, x.Session().Hosted.RelayCode())
	assert.Equal(t, 1, x.transport.hosts)
	e, ok := x.rec.last(events.StartGame)
	require.True(t, ok)
	assert.Equal(t, code, e.RelayCode)

	require.NoError(t, y.Poll(ctx))
	assert.Equal(t, 1, y.transport.clientJoins())
	assert.Equal(t, 1, y.rec.count(events.JoinGame))
	s := y.Session()
	assert.Nil(t, s.Joined, "member stops tracking the lobby after handoff")
	assert.Equal(t, code, s.LastRelayCode)

	// Repeated polls and refreshes with the same code never rejoin.
	require.NoError(t, y.Poll(ctx))
	y.RefreshFromSnapshot(ctx, started)
	assert.Equal(t, 1, y.transport.clientJoins())
	assert.Equal(t, 1, y.rec.count(events.JoinGame))

	// The host never hands off to its own code.
	require.NoError(t, x.Poll(ctx))
	assert.Empty(t, x.transport.clients)
	assertInvariants(t, x.Coordinator)
}

func TestStartSession_Failures(t *testing.T) {
	ctx := context.Background()
	w := newWorld(t)
	x, y := w.join(t, "x"), w.join(t, "y")

	_, err := y.StartSession(ctx)
	assert.True(t, errors.Is(err, lobbyerr.ErrForbidden))

	created, err := x.CreateLobby(ctx, "Solo", 1)
	require.NoError(t, err)

	x.relay = relay.NewBootstrap(failingRelay{}, x.transport, nil)
	_, err = x.StartSession(ctx)
	assert.True(t, errors.Is(err, lobbyerr.ErrRelayAllocation))
	assert.Equal(t, 1, x.rec.count(events.StartGameFail))
	assert.Zero(t, x.rec.count(events.StartGame))
	s := x.Session()
	assert.Equal(t, types.NoRelay, s.Hosted.RelayCode())
	assert.Equal(t, created.ID, s.Hosted.ID)
}

type failingRelay struct{ relay.Client }

func (failingRelay) CreateAllocation(context.Context, int) (relay.Allocation, error) {
	return relay.Allocation{}, lobbyerr.New(lobbyerr.KindNetwork, "relay", "unreachable")
}

func TestHandoff_FailureStillStopsTracking(t *testing.T) {
	ctx := context.Background()
	w := newWorld(t)
	y := w.join(t, "y")
	x := w.join(t, "x")

	created, err := x.CreateLobby(ctx, "Foo", 4)
	require.NoError(t, err)
	_, err = y.JoinByCode(ctx, created.Code)
	require.NoError(t, err)

	// A relay code the registry never issued.
	bogus, err := x.dir.Update(ctx, created.ID, directory.UpdateOptions{
		Data: map[string]types.Attribute{types.KeyRelayCode: types.Member("BOGUS1")},
	})
	require.NoError(t, err)

	y.RefreshFromSnapshot(ctx, bogus)
	assert.Equal(t, 1, y.rec.count(events.JoinGameFail))
	assert.Zero(t, y.rec.count(events.JoinGame))
	assert.Nil(t, y.Session().Joined)
}

func TestMigrateHost_AndPromotionOnRefresh(t *testing.T) {
	ctx := context.Background()
	w := newWorld(t)
	x, y := w.join(t, "x"), w.join(t, "y")

	created, err := x.CreateLobby(ctx, "Foo", 4)
	require.NoError(t, err)
	_, err = y.JoinByCode(ctx, created.Code)
	require.NoError(t, err)

	_, err = x.MigrateHost(ctx, "x")
	assert.True(t, errors.Is(err, lobbyerr.ErrValidation))
	_, err = x.MigrateHost(ctx, "nobody")
	assert.True(t, errors.Is(err, lobbyerr.ErrNotFound))

	migrated, err := x.MigrateHost(ctx, "y")
	require.NoError(t, err)
	assert.Equal(t, "y", migrated.HostID)
	assert.Equal(t, RoleMember, x.Role())
	assertInvariants(t, x.Coordinator)

	require.NoError(t, y.Poll(ctx))
	assert.Equal(t, RoleHost, y.Role())
	assert.Equal(t, 1, y.rec.count(events.HostChanged))
	assertInvariants(t, y.Coordinator)

	require.NoError(t, y.Heartbeat(ctx))
	require.NoError(t, x.Heartbeat(ctx))
	assert.Equal(t, int32(1), y.dir.heartbeats.Load())
	assert.Zero(t, x.dir.heartbeats.Load(), "members never heartbeat")
}

func TestKickPlayer_KickedMemberIsCleared(t *testing.T) {
	ctx := context.Background()
	w := newWorld(t)
	x, y := w.join(t, "x"), w.join(t, "y")

	created, err := x.CreateLobby(ctx, "Foo", 4)
	require.NoError(t, err)
	_, err = y.JoinByCode(ctx, created.Code)
	require.NoError(t, err)

	_, err = y.KickPlayer(ctx, "x")
	assert.True(t, errors.Is(err, lobbyerr.ErrForbidden))

	after, err := x.KickPlayer(ctx, "y")
	require.NoError(t, err)
	assert.False(t, after.HasPlayer("y"))
	assert.False(t, x.Session().Hosted.HasPlayer("y"))

	require.NoError(t, y.Poll(ctx))
	assert.Equal(t, RoleNone, y.Role())
	assert.Equal(t, 1, y.rec.count(events.LobbyLeave))
}

func TestKickAndMigrate_WithoutHostPoll(t *testing.T) {
	ctx := context.Background()
	w := newWorld(t)
	x, y, z := w.join(t, "x"), w.join(t, "y"), w.join(t, "z")

	created, err := x.CreateLobby(ctx, "Foo", 4)
	require.NoError(t, err)
	_, err = y.JoinByCode(ctx, created.Code)
	require.NoError(t, err)
	_, err = z.JoinByCode(ctx, created.Code)
	require.NoError(t, err)
	assert.Len(t, x.Session().Hosted.Players, 1, "host has not polled")

	_, err = x.KickPlayer(ctx, "nobody")
	assert.True(t, errors.Is(err, lobbyerr.ErrNotFound))

	after, err := x.KickPlayer(ctx, "y")
	require.NoError(t, err)
	assert.False(t, after.HasPlayer("y"))
	assert.True(t, after.HasPlayer("z"), "kick folds in the directory record")
	assert.True(t, x.Session().Hosted.HasPlayer("z"))

	migrated, err := x.MigrateHost(ctx, "z")
	require.NoError(t, err)
	assert.Equal(t, "z", migrated.HostID)
	assert.Equal(t, RoleMember, x.Role())
	assertInvariants(t, x.Coordinator)
}

func TestMigrateHost_AfterStartHandsOffNewHost(t *testing.T) {
	ctx := context.Background()
	w := newWorld(t)
	x, y := w.join(t, "x"), w.join(t, "y")

	created, err := x.CreateLobby(ctx, "Foo", 4)
	require.NoError(t, err)
	_, err = y.JoinByCode(ctx, created.Code)
	require.NoError(t, err)

	started, err := x.StartSession(ctx)
	require.NoError(t, err)
	_, err = x.MigrateHost(ctx, "y")
	require.NoError(t, err)

	// y sees the relay code and its promotion in the same snapshot.
	require.NoError(t, y.Poll(ctx))
	assert.Equal(t, 1, y.transport.clientJoins())
	assert.Equal(t, 1, y.rec.count(events.JoinGame))
	assert.Zero(t, y.rec.count(events.JoinGameFail))
	s := y.Session()
	assert.Nil(t, s.Joined)
	assert.Equal(t, started.RelayCode(), s.LastRelayCode)
	assertInvariants(t, y.Coordinator)

	// The old host already owns the session and never joins it.
	require.NoError(t, x.Poll(ctx))
	assert.Empty(t, x.transport.clients)
	assert.Equal(t, RoleMember, x.Role())
}

func TestDelete_PollThenLeave(t *testing.T) {
	ctx := context.Background()
	w := newWorld(t)
	x := w.join(t, "x")

	_, err := x.CreateLobby(ctx, "Foo", 4)
	require.NoError(t, err)
	require.NoError(t, x.Delete(ctx))

	require.NoError(t, x.Poll(ctx))
	require.NoError(t, x.Heartbeat(ctx))
	assert.Zero(t, x.dir.heartbeats.Load())
	assert.Equal(t, RoleHost, x.Role(), "local state is kept until leave")

	require.NoError(t, x.Leave(ctx))
	assert.Equal(t, RoleNone, x.Role())
	assert.Equal(t, 1, x.rec.count(events.LobbyDeleted))
	assert.Equal(t, 1, x.rec.count(events.LobbyLeave))
	assert.Zero(t, x.rec.count(events.LobbyLeaveFail))
	assertInvariants(t, x.Coordinator)
}

func TestUpdates(t *testing.T) {
	ctx := context.Background()
	w := newWorld(t)
	x, y := w.join(t, "x"), w.join(t, "y")

	created, err := x.CreateLobby(ctx, "Foo", 4)
	require.NoError(t, err)
	_, err = y.JoinByCode(ctx, created.Code)
	require.NoError(t, err)

	moded, err := x.UpdateGameMode(ctx, "Ranked")
	require.NoError(t, err)
	assert.Equal(t, "Ranked", moded.GameMode())
	assert.Equal(t, "Ranked", x.Session().Hosted.GameMode())

	_, err = y.UpdateGameMode(ctx, "Party")
	assert.True(t, errors.Is(err, lobbyerr.ErrForbidden))
	assert.Equal(t, 1, y.rec.count(events.LobbyUpdateFail))

	renamed, err := y.UpdatePlayerName(ctx, "Yan")
	require.NoError(t, err)
	p, ok := renamed.Player("y")
	require.True(t, ok)
	assert.Equal(t, "Yan", p.DisplayName())
	assert.Equal(t, "Yan", y.names.name)
	assert.Equal(t, "Yan", y.Session().PlayerName)

	_, err = y.UpdatePlayerName(ctx, "")
	assert.True(t, errors.Is(err, lobbyerr.ErrValidation))
	assert.Contains(t, err.Error(), "display name")
	assert.NotContains(t, err.Error(), "lobby name")
}

func TestBusyGuard(t *testing.T) {
	ctx := context.Background()
	w := newWorld(t)
	x := w.join(t, "x")

	entered := make(chan struct{})
	release := make(chan struct{})
	x.dir.onCreate = func() error {
		close(entered)
		<-release
		return nil
	}

	done := make(chan error, 1)
	go func() {
		_, err := x.CreateLobby(ctx, "Foo", 4)
		done <- err
	}()
	<-entered

	_, err := x.JoinByCode(ctx, "ABCDEF")
	assert.True(t, errors.Is(err, lobbyerr.ErrBusy))
	assert.True(t, errors.Is(x.Leave(ctx), lobbyerr.ErrBusy))

	close(release)
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("create did not finish")
	}
	assert.Equal(t, RoleHost, x.Role())
}

func TestPoll_StaleSnapshotIsDropped(t *testing.T) {
	ctx := context.Background()
	w := newWorld(t)
	x, y := w.join(t, "x"), w.join(t, "y")

	created, err := x.CreateLobby(ctx, "Foo", 4)
	require.NoError(t, err)
	_, err = y.JoinByCode(ctx, created.Code)
	require.NoError(t, err)

	fetching := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	y.dir.onGet = func() {
		once.Do(func() {
			close(fetching)
			<-release
		})
	}

	done := make(chan error, 1)
	go func() { done <- y.Poll(ctx) }()
	<-fetching

	require.NoError(t, y.Leave(ctx))
	close(release)
	require.NoError(t, <-done)

	assert.Equal(t, RoleNone, y.Role())
	assert.Nil(t, y.Session().Joined)
	kinds := y.rec.kinds()
	assert.Equal(t, events.LobbyLeave, kinds[len(kinds)-1], "no update after leave")
}

func TestNotSignedIn(t *testing.T) {
	w := newWorld(t)
	ident := identity.NewAnonymous()
	c := New(Deps{Directory: directory.NewLocal(w.svc, ident), Identity: ident})

	_, err := c.CreateLobby(context.Background(), "Foo", 4)
	assert.True(t, errors.Is(err, lobbyerr.ErrUnauthenticated))
	_, err = c.ListLobbies(context.Background())
	assert.True(t, errors.Is(err, lobbyerr.ErrUnauthenticated))
}

func TestListLobbies(t *testing.T) {
	ctx := context.Background()
	w := newWorld(t)
	x, y := w.join(t, "x"), w.join(t, "y")

	created, err := x.CreateLobby(ctx, "Foo", 4)
	require.NoError(t, err)

	listed, err := y.ListLobbies(ctx)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, created.ID, listed[0].ID)
	e, ok := y.rec.last(events.LobbiesListed)
	require.True(t, ok)
	assert.Len(t, e.Lobbies, 1)
}

func TestShutdown_BestEffortLeave(t *testing.T) {
	ctx := context.Background()
	w := newWorld(t)
	x, y := w.join(t, "x"), w.join(t, "y")

	created, err := x.CreateLobby(ctx, "Foo", 4)
	require.NoError(t, err)
	_, err = y.JoinByCode(ctx, created.Code)
	require.NoError(t, err)

	require.NoError(t, y.Shutdown(ctx))
	assert.Equal(t, RoleNone, y.Role())
	assert.Equal(t, 1, y.transport.closed)

	require.NoError(t, x.Poll(ctx))
	assert.Len(t, x.Session().Hosted.Players, 1)
}
