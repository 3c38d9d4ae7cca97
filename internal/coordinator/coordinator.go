// Package coordinator owns the local participant's lobby session: which lobby it
// hosts or has joined, the lifecycle operations that change that, and the relay
// handoff members detect by polling.
package coordinator

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/VissentvNoord/lobby-system/internal/directory"
	"github.com/VissentvNoord/lobby-system/internal/events"
	"github.com/VissentvNoord/lobby-system/internal/identity"
	"github.com/VissentvNoord/lobby-system/internal/lobbyerr"
	"github.com/VissentvNoord/lobby-system/pkg/types"
)

// DefaultMaxPlayers is used when CreateLobby is given a non-positive size.
const DefaultMaxPlayers = 4

type Role int

const (
	RoleNone Role = iota
	RoleHost
	RoleMember
)

func (r Role) String() string {
	switch r {
	case RoleHost:
		return "host"
	case RoleMember:
		return "member"
	default:
		return "none"
	}
}

// Relay is the handoff bootstrap as the coordinator uses it.
type Relay interface {
	StartHost(ctx context.Context, maxPlayers int) (string, error)
	JoinAsClient(ctx context.Context, joinCode string) error
	Close() error
}

// Names persists the display name between runs.
type Names interface {
	LoadOrCreate() (string, error)
	Save(name string) error
}

// Deps is everything the coordinator talks to. Names and Logger are optional.
type Deps struct {
	Directory directory.Directory
	Relay     Relay
	Identity  identity.Provider
	Bus       *events.Bus
	Names     Names
	Logger    *zap.Logger
}

// Session is a copy of the local session state.
type Session struct {
	Role          Role
	PlayerID      string
	PlayerName    string
	Hosted        *types.Lobby
	Joined        *types.Lobby
	LastRelayCode string
}

// localSession is guarded by Coordinator.mu. hosted is either nil or the same
// pointer as joined.
type localSession struct {
	role          Role
	hosted        *types.Lobby
	joined        *types.Lobby
	lastRelayCode string
	// deleted is set once Delete removed the joined lobby; polls stay quiet
	// until Leave.
	deleted bool
	// epoch advances on every lifecycle change; polls fetched under an older
	// epoch are discarded.
	epoch uint64
}

type Coordinator struct {
	dir    directory.Directory
	relay  Relay
	id     identity.Provider
	bus    *events.Bus
	names  Names
	logger *zap.Logger

	inflight atomic.Bool

	mu      sync.Mutex
	name    string
	session localSession
}

func New(d Deps) *Coordinator {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Bus == nil {
		d.Bus = events.NewBus(d.Logger)
	}
	return &Coordinator{
		dir:     d.Directory,
		relay:   d.Relay,
		id:      d.Identity,
		bus:     d.Bus,
		names:   d.Names,
		logger:  d.Logger.Named("coordinator"),
		session: localSession{lastRelayCode: types.NoRelay},
	}
}

func (c *Coordinator) Bus() *events.Bus { return c.bus }

// Start signs in and loads (or generates) the display name.
func (c *Coordinator) Start(ctx context.Context) error {
	if _, err := identity.Authenticate(ctx, c.id, c.bus, c.logger); err != nil {
		return err
	}
	if c.names == nil {
		return nil
	}
	name, err := c.names.LoadOrCreate()
	if err != nil {
		// A missing name file is not fatal; the directory still gets an id.
		c.logger.Warn("could not load display name", zap.Error(err))
		return nil
	}
	c.mu.Lock()
	c.name = name
	c.mu.Unlock()
	return nil
}

func (c *Coordinator) Session() Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := Session{
		Role:          c.session.role,
		PlayerID:      c.id.PlayerID(),
		PlayerName:    c.name,
		LastRelayCode: c.session.lastRelayCode,
	}
	if c.session.joined != nil {
		s.Joined = c.session.joined.Clone()
	}
	if c.session.hosted != nil {
		s.Hosted = c.session.hosted.Clone()
	}
	return s
}

func (c *Coordinator) Role() Role {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.role
}

// Hosting reports whether the hosted lobby needs keep-alives.
func (c *Coordinator) Hosting() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.role == RoleHost && c.session.hosted != nil
}

// Tracking reports whether a joined lobby is being polled.
func (c *Coordinator) Tracking() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.joined != nil
}

// Shutdown makes a best-effort leave and releases the relay transport.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	var errs error

	c.mu.Lock()
	joined := c.session.joined
	c.clearLocked()
	c.mu.Unlock()

	if joined != nil {
		if err := c.dir.RemovePlayer(ctx, joined.ID, c.id.PlayerID()); err != nil {
			c.logger.Warn("best-effort leave failed", zap.String("lobby_id", joined.ID), zap.Error(err))
			errs = multierr.Append(errs, err)
		}
	}
	if c.relay != nil {
		errs = multierr.Append(errs, c.relay.Close())
	}
	return errs
}

// begin claims the single in-flight slot for a lifecycle operation.
func (c *Coordinator) begin(op string) (end func(), err error) {
	if !c.inflight.CompareAndSwap(false, true) {
		return nil, lobbyerr.New(lobbyerr.KindBusy, op, "another lobby operation is in progress")
	}
	return func() { c.inflight.Store(false) }, nil
}

func (c *Coordinator) playerID(op string) (string, error) {
	pid := c.id.PlayerID()
	if pid == "" {
		return "", lobbyerr.New(lobbyerr.KindUnauthenticated, op, "not signed in")
	}
	return pid, nil
}

func (c *Coordinator) localPlayer(pid string) types.Player {
	c.mu.Lock()
	defer c.mu.Unlock()
	p := types.Player{ID: pid, Data: map[string]string{}}
	if c.name != "" {
		p.Data[types.KeyDisplayName] = c.name
	}
	return p
}

// commitLocked replaces the session lobby wholesale and advances the epoch.
func (c *Coordinator) commitLocked(role Role, l *types.Lobby) {
	c.session.role = role
	c.session.joined = l
	c.session.hosted = nil
	if role == RoleHost {
		c.session.hosted = l
	}
	c.session.deleted = false
	c.session.epoch++
}

func (c *Coordinator) clearLocked() {
	c.session.role = RoleNone
	c.session.hosted = nil
	c.session.joined = nil
	c.session.deleted = false
	c.session.epoch++
}

func (c *Coordinator) publish(e events.Event) {
	c.bus.Publish(e)
}

func (c *Coordinator) fail(kind events.Kind, op string, err error) error {
	c.logger.Warn("lobby operation failed",
		zap.String("op", op),
		zap.String("kind", string(lobbyerr.KindOf(err))),
		zap.Error(err),
	)
	c.publish(events.Event{Kind: kind, Op: op, Err: err})
	return err
}
