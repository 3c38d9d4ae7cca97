package relay

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/VissentvNoord/lobby-system/internal/joincode"
	"github.com/VissentvNoord/lobby-system/internal/lobbyerr"
)

// MaxAllocationSize caps the client connections of one allocation.
const MaxAllocationSize = 100

// EndpointPath is the websocket path for an allocation, relative to the relay base URL.
func EndpointPath(allocationID string) string {
	return "/relay/ws/" + allocationID
}

type allocation struct {
	id        string
	joinCode  string
	max       int
	clients   int
	host      bool
	createdAt time.Time
}

// Registry is the server-side book of relay allocations.
type Registry struct {
	mu     sync.Mutex
	allocs map[string]*allocation
	codes  map[string]string // join code -> allocation id

	clock  clock.Clock
	ttl    time.Duration
	logger *zap.Logger
}

type RegistryOptions struct {
	// TTL removes allocations whose host never connected.
	TTL    time.Duration
	Clock  clock.Clock
	Logger *zap.Logger
}

func NewRegistry(opts RegistryOptions) *Registry {
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.TTL <= 0 {
		opts.TTL = time.Minute
	}
	return &Registry{
		allocs: make(map[string]*allocation),
		codes:  make(map[string]string),
		clock:  opts.Clock,
		ttl:    opts.TTL,
		logger: opts.Logger.Named("relay_registry"),
	}
}

func (r *Registry) Allocate(maxConnections int) (Allocation, error) {
	if maxConnections < 1 || maxConnections > MaxAllocationSize {
		return Allocation{}, lobbyerr.New(lobbyerr.KindValidation, "relay.allocate", "max connections out of range")
	}
	a := &allocation{id: uuid.NewString(), max: maxConnections, createdAt: r.clock.Now()}

	r.mu.Lock()
	r.pruneLocked()
	r.allocs[a.id] = a
	r.mu.Unlock()

	r.logger.Debug("allocation created", zap.String("allocation_id", a.id), zap.Int("max_connections", maxConnections))
	return Allocation{ID: a.id, Endpoint: EndpointPath(a.id), MaxConnections: maxConnections}, nil
}

// JoinCode returns the allocation's join code, issuing it on first call.
func (r *Registry) JoinCode(allocationID string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.allocs[allocationID]
	if !ok {
		return "", lobbyerr.New(lobbyerr.KindNotFound, "relay.join_code", "no allocation "+allocationID)
	}
	if a.joinCode != "" {
		return a.joinCode, nil
	}
	for range 16 {
		code, err := joincode.Generate()
		if err != nil {
			return "", lobbyerr.Wrap(lobbyerr.KindRelayAllocation, "relay.join_code", err)
		}
		if _, taken := r.codes[code]; !taken {
			a.joinCode = code
			r.codes[code] = a.id
			return code, nil
		}
	}
	return "", lobbyerr.New(lobbyerr.KindRelayAllocation, "relay.join_code", "could not issue a unique join code")
}

func (r *Registry) Join(joinCode string) (JoinAllocation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.codes[joincode.Normalize(joinCode)]
	if !ok {
		return JoinAllocation{}, lobbyerr.New(lobbyerr.KindNotFound, "relay.join", "unknown join code")
	}
	a := r.allocs[id]
	if a.clients >= a.max {
		return JoinAllocation{}, lobbyerr.New(lobbyerr.KindFull, "relay.join", "allocation is full")
	}
	return JoinAllocation{AllocationID: a.id, Endpoint: EndpointPath(a.id), JoinCode: a.joinCode}, nil
}

// AttachHost claims the host seat. release frees the whole allocation.
func (r *Registry) AttachHost(allocationID string) (release func(), err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.allocs[allocationID]
	if !ok {
		return nil, lobbyerr.New(lobbyerr.KindNotFound, "relay.attach_host", "no allocation "+allocationID)
	}
	if a.host {
		return nil, lobbyerr.New(lobbyerr.KindConflict, "relay.attach_host", "host already connected")
	}
	a.host = true
	var once sync.Once
	return func() { once.Do(func() { r.Remove(allocationID) }) }, nil
}

// AttachClient claims one client slot. release frees the slot.
func (r *Registry) AttachClient(allocationID string) (release func(), err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.allocs[allocationID]
	if !ok {
		return nil, lobbyerr.New(lobbyerr.KindNotFound, "relay.attach_client", "no allocation "+allocationID)
	}
	if a.clients >= a.max {
		return nil, lobbyerr.New(lobbyerr.KindFull, "relay.attach_client", "allocation is full")
	}
	a.clients++
	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			if a, ok := r.allocs[allocationID]; ok && a.clients > 0 {
				a.clients--
			}
		})
	}, nil
}

func (r *Registry) Remove(allocationID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(allocationID)
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.allocs)
}

func (r *Registry) removeLocked(id string) {
	a, ok := r.allocs[id]
	if !ok {
		return
	}
	delete(r.allocs, id)
	if a.joinCode != "" {
		delete(r.codes, a.joinCode)
	}
	r.logger.Debug("allocation removed", zap.String("allocation_id", id))
}

func (r *Registry) pruneLocked() {
	now := r.clock.Now()
	for id, a := range r.allocs {
		if !a.host && now.Sub(a.createdAt) > r.ttl {
			r.removeLocked(id)
		}
	}
}
