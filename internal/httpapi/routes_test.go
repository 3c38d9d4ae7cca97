package httpapi

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VissentvNoord/lobby-system/internal/directory"
	"github.com/VissentvNoord/lobby-system/internal/hub"
	"github.com/VissentvNoord/lobby-system/internal/lobbyerr"
	"github.com/VissentvNoord/lobby-system/internal/relay"
	"github.com/VissentvNoord/lobby-system/internal/ws"
	"github.com/VissentvNoord/lobby-system/pkg/types"
)

type staticID string

func (s staticID) PlayerID() string { return string(s) }

func newServer(t *testing.T, limiter *RateLimiter) *httptest.Server {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	reg := relay.NewRegistry(relay.RegistryOptions{})
	srv := httptest.NewServer(SetupRoutes(Deps{
		Directory: directory.NewService(hub.NewHub(ctx, hub.Options{}), nil),
		Relay:     reg,
		Bridge:    ws.NewBridge(ctx, reg, nil),
		Limiter:   limiter,
	}))
	t.Cleanup(srv.Close)
	return srv
}

func player(name string) types.Player {
	return types.Player{Data: map[string]string{types.KeyDisplayName: name}}
}

func TestHealthz(t *testing.T) {
	srv := newServer(t, nil)
	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestDirectoryClient_EndToEnd(t *testing.T) {
	ctx := context.Background()
	srv := newServer(t, nil)
	x := directory.NewClient(srv.URL, staticID("x"), nil)
	y := directory.NewClient(srv.URL, staticID("y"), nil)

	created, err := x.Create(ctx, "Foo", 4, directory.CreateOptions{Player: player("X")})
	require.NoError(t, err)
	assert.Len(t, created.Code, 6)
	assert.Equal(t, types.NoRelay, created.RelayCode())

	joined, err := y.JoinByCode(ctx, created.Code, directory.JoinOptions{Player: player("Y")})
	require.NoError(t, err)
	assert.Len(t, joined.Players, 2)

	_, err = y.JoinByCode(ctx, created.Code, directory.JoinOptions{})
	assert.True(t, errors.Is(err, lobbyerr.ErrConflict), "got %v", err)

	listed, err := y.Query(ctx, directory.Query{Limit: 5})
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, created.ID, listed[0].ID)

	updated, err := x.Update(ctx, created.ID, directory.UpdateOptions{Data: map[string]types.Attribute{
		types.KeyRelayCode: types.Member("ABC123"),
		types.KeyGameMode:  types.Public("Party"),
	}})
	require.NoError(t, err)
	assert.Equal(t, "ABC123", updated.RelayCode())

	seen, err := y.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "ABC123", seen.RelayCode())
	assert.Equal(t, "Party", seen.GameMode())

	renamed, err := y.UpdatePlayer(ctx, created.ID, "y", directory.UpdatePlayerOptions{Data: map[string]string{types.KeyDisplayName: "Yan"}})
	require.NoError(t, err)
	p, ok := renamed.Player("y")
	require.True(t, ok)
	assert.Equal(t, "Yan", p.DisplayName())

	require.NoError(t, x.Heartbeat(ctx, created.ID))
	assert.True(t, errors.Is(y.Heartbeat(ctx, created.ID), lobbyerr.ErrForbidden))

	migrated, err := x.Update(ctx, created.ID, directory.UpdateOptions{HostID: "y"})
	require.NoError(t, err)
	assert.Equal(t, "y", migrated.HostID)

	require.NoError(t, y.RemovePlayer(ctx, created.ID, "x"))
	require.NoError(t, y.Delete(ctx, created.ID))
	_, err = y.Get(ctx, created.ID)
	assert.True(t, errors.Is(err, lobbyerr.ErrNotFound))
}

func TestDirectoryClient_QuickJoinAndAuth(t *testing.T) {
	ctx := context.Background()
	srv := newServer(t, nil)

	_, err := directory.NewClient(srv.URL, staticID(""), nil).Create(ctx, "Foo", 4, directory.CreateOptions{})
	assert.True(t, errors.Is(err, lobbyerr.ErrUnauthenticated))

	created, err := directory.NewClient(srv.URL, staticID("x"), nil).Create(ctx, "Foo", 4, directory.CreateOptions{})
	require.NoError(t, err)

	joined, err := directory.NewClient(srv.URL, staticID("y"), nil).QuickJoin(ctx, directory.JoinOptions{})
	require.NoError(t, err)
	assert.Equal(t, created.ID, joined.ID)
}

func TestDirectoryClient_NetworkError(t *testing.T) {
	srv := newServer(t, nil)
	url := srv.URL
	srv.Close()

	_, err := directory.NewClient(url, staticID("x"), nil).Get(context.Background(), "id")
	assert.True(t, errors.Is(err, lobbyerr.ErrNetwork), "got %v", err)
}

func TestRateLimit(t *testing.T) {
	ctx := context.Background()
	srv := newServer(t, NewRateLimiter(0.001, 2))
	x := directory.NewClient(srv.URL, staticID("x"), nil)

	_, err := x.Query(ctx, directory.Query{})
	require.NoError(t, err)
	_, err = x.Query(ctx, directory.Query{})
	require.NoError(t, err)
	_, err = x.Query(ctx, directory.Query{})
	assert.True(t, errors.Is(err, lobbyerr.ErrRateLimited), "got %v", err)

	// Buckets are per caller.
	_, err = directory.NewClient(srv.URL, staticID("y"), nil).Query(ctx, directory.Query{})
	assert.NoError(t, err)
}

func TestBadRequests(t *testing.T) {
	srv := newServer(t, nil)

	resp, err := http.Get(srv.URL + "/lobbies?limit=abc")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/lobbies", strings.NewReader("{not json"))
	require.NoError(t, err)
	req.Header.Set(types.HeaderPlayerID, "x")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, string(body), string(lobbyerr.KindValidation))
}

func TestRelayHTTPClient_EndToEnd(t *testing.T) {
	ctx := context.Background()
	srv := newServer(t, nil)
	client := relay.NewHTTPClient(srv.URL, func() string { return "host" }, nil)

	hostT := ws.NewTransport(nil, nil)
	code, err := relay.NewBootstrap(client, hostT, nil).StartHost(ctx, 3)
	require.NoError(t, err)
	defer hostT.Close()

	memberT := ws.NewTransport(nil, nil)
	require.NoError(t, relay.NewBootstrap(client, memberT, nil).JoinAsClient(ctx, code))
	defer memberT.Close()

	_, err = client.JoinAllocation(ctx, "NOPE00")
	assert.True(t, errors.Is(err, lobbyerr.ErrNotFound))
	_, err = client.CreateAllocation(ctx, 0)
	assert.True(t, errors.Is(err, lobbyerr.ErrValidation))
}

func TestMetricsExposed(t *testing.T) {
	srv := newServer(t, nil)
	_, err := directory.NewClient(srv.URL, staticID("x"), nil).Query(context.Background(), directory.Query{})
	require.NoError(t, err)

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "lobby_http_requests_total")
	assert.Contains(t, string(body), `route="/lobbies`)
}
