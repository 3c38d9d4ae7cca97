package lobby

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VissentvNoord/lobby-system/internal/engine"
	"github.com/VissentvNoord/lobby-system/internal/lobbyerr"
	"github.com/VissentvNoord/lobby-system/pkg/types"
)

type closeRecorder struct {
	ch chan CloseReason
}

func newCloseRecorder() *closeRecorder {
	return &closeRecorder{ch: make(chan CloseReason, 4)}
}

func (r *closeRecorder) onClose(_ string, reason CloseReason) { r.ch <- reason }

// helper: receive one close reason with a timeout so tests never hang
func (r *closeRecorder) recv(t *testing.T, within time.Duration) CloseReason {
	t.Helper()
	select {
	case reason := <-r.ch:
		return reason
	case <-time.After(within):
		t.Fatalf("timed out waiting for lobby close")
		return "" // unreachable
	}
}

type memStore struct {
	mu      sync.Mutex
	saved   map[string]types.Lobby
	deleted []string
}

func newMemStore() *memStore { return &memStore{saved: map[string]types.Lobby{}} }

func (s *memStore) Save(_ context.Context, l types.Lobby) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved[l.ID] = l
	return nil
}

func (s *memStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.saved, id)
	s.deleted = append(s.deleted, id)
	return nil
}

func initial(t *testing.T, at time.Time) types.Lobby {
	t.Helper()
	l, err := engine.NewLobby(engine.NewLobbyParams{
		ID: "L1", Code: "ABC123", Name: "Foo", MaxPlayers: 4,
		Host: types.Player{ID: "host"}, At: at,
	})
	require.NoError(t, err)
	return l
}

func TestLobby_Join_VersionIncrementsAndPersists(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mock := clock.NewMock()
	store := newMemStore()
	l := NewLobby(ctx, initial(t, mock.Now()), Options{Clock: mock, Store: store})

	snap, events, err := l.Do(ctx, engine.Command{Type: engine.CmdJoin, Actor: "p2", Player: types.Player{ID: "p2"}})
	require.NoError(t, err)
	assert.True(t, engine.ContainsEvent(events, engine.EvtPlayerJoined))
	assert.Len(t, snap.Players, 2)

	v, err := l.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, v.Version)
	assert.Len(t, v.State.Players, 2)

	store.mu.Lock()
	assert.Len(t, store.saved["L1"].Players, 2)
	store.mu.Unlock()
}

func TestLobby_RejectedCommandLeavesStateUntouched(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := NewLobby(ctx, initial(t, time.Now()), Options{})

	_, _, err := l.Do(ctx, engine.Command{Type: engine.CmdUpdateLobby, Actor: "intruder"})
	require.True(t, errors.Is(err, lobbyerr.ErrForbidden))

	v, err := l.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, v.Version)
}

func TestLobby_ExpiresWithoutHeartbeat(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mock := clock.NewMock()
	rec := newCloseRecorder()
	store := newMemStore()
	l := NewLobby(ctx, initial(t, mock.Now()), Options{TTL: 30 * time.Second, Clock: mock, Store: store, OnClose: rec.onClose})

	// A heartbeat at 20s pushes expiry out to 50s.
	mock.Add(20 * time.Second)
	_, _, err := l.Do(ctx, engine.Command{Type: engine.CmdHeartbeat, Actor: "host"})
	require.NoError(t, err)

	mock.Add(20 * time.Second)
	select {
	case <-l.Done():
		t.Fatalf("lobby expired despite heartbeat")
	case <-time.After(20 * time.Millisecond):
	}

	mock.Add(11 * time.Second)
	assert.Equal(t, ReasonExpired, rec.recv(t, time.Second))

	_, _, err = l.Do(ctx, engine.Command{Type: engine.CmdHeartbeat, Actor: "host"})
	assert.True(t, errors.Is(err, lobbyerr.ErrNotFound))

	store.mu.Lock()
	assert.Equal(t, []string{"L1"}, store.deleted)
	store.mu.Unlock()
}

func TestLobby_LastPlayerLeavingClosesLobby(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rec := newCloseRecorder()
	l := NewLobby(ctx, initial(t, time.Now()), Options{OnClose: rec.onClose})

	snap, _, err := l.Do(ctx, engine.Command{Type: engine.CmdRemovePlayer, Actor: "host", PlayerID: "host"})
	require.NoError(t, err)
	assert.Empty(t, snap.Players)
	assert.Equal(t, ReasonEmptied, rec.recv(t, time.Second))
}

func TestLobby_CloseKeepsRecordOnShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	rec := newCloseRecorder()
	store := newMemStore()
	NewLobby(ctx, initial(t, time.Now()), Options{Store: store, OnClose: rec.onClose})

	cancel()
	assert.Equal(t, ReasonShutdown, rec.recv(t, time.Second))

	store.mu.Lock()
	assert.Empty(t, store.deleted)
	store.mu.Unlock()
}

func TestLobby_CloseDeleted(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rec := newCloseRecorder()
	l := NewLobby(ctx, initial(t, time.Now()), Options{OnClose: rec.onClose})

	require.NoError(t, l.Close(ctx, ReasonDeleted))
	assert.Equal(t, ReasonDeleted, rec.recv(t, time.Second))
	// Closing twice is a no-op.
	require.NoError(t, l.Close(ctx, ReasonDeleted))
}
