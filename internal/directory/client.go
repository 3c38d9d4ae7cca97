package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/VissentvNoord/lobby-system/internal/lobbyerr"
	"github.com/VissentvNoord/lobby-system/pkg/types"
)

// Client talks to a remote directory over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
	id      Identity
}

var _ Directory = (*Client)(nil)

func NewClient(baseURL string, id Identity, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient, id: id}
}

func (c *Client) Create(ctx context.Context, name string, maxPlayers int, opts CreateOptions) (types.Lobby, error) {
	var out types.Lobby
	err := c.do(ctx, "directory.create", http.MethodPost, "/lobbies", types.CreateLobbyRequest{
		Name:       name,
		MaxPlayers: maxPlayers,
		Private:    opts.Private,
		Player:     opts.Player,
		Data:       opts.Data,
	}, &out)
	return out, err
}

func (c *Client) Query(ctx context.Context, q Query) ([]types.Lobby, error) {
	path := "/lobbies"
	if q.Limit > 0 {
		path += "?limit=" + strconv.Itoa(q.Limit)
	}
	var out types.QueryResponse
	if err := c.do(ctx, "directory.query", http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Results, nil
}

func (c *Client) JoinByCode(ctx context.Context, code string, opts JoinOptions) (types.Lobby, error) {
	var out types.Lobby
	err := c.do(ctx, "directory.join_by_code", http.MethodPost, "/lobbies/join/code", types.JoinByCodeRequest{Code: code, Player: opts.Player}, &out)
	return out, err
}

func (c *Client) JoinByID(ctx context.Context, id string, opts JoinOptions) (types.Lobby, error) {
	var out types.Lobby
	err := c.do(ctx, "directory.join_by_id", http.MethodPost, "/lobbies/"+url.PathEscape(id)+"/players", types.JoinRequest{Player: opts.Player}, &out)
	return out, err
}

func (c *Client) QuickJoin(ctx context.Context, opts JoinOptions) (types.Lobby, error) {
	var out types.Lobby
	err := c.do(ctx, "directory.quick_join", http.MethodPost, "/lobbies/join/quick", types.JoinRequest{Player: opts.Player}, &out)
	return out, err
}

func (c *Client) Update(ctx context.Context, id string, opts UpdateOptions) (types.Lobby, error) {
	var out types.Lobby
	err := c.do(ctx, "directory.update", http.MethodPatch, "/lobbies/"+url.PathEscape(id), types.UpdateLobbyRequest{Data: opts.Data, HostID: opts.HostID}, &out)
	return out, err
}

func (c *Client) UpdatePlayer(ctx context.Context, lobbyID, playerID string, opts UpdatePlayerOptions) (types.Lobby, error) {
	var out types.Lobby
	path := "/lobbies/" + url.PathEscape(lobbyID) + "/players/" + url.PathEscape(playerID)
	err := c.do(ctx, "directory.update_player", http.MethodPatch, path, types.UpdatePlayerRequest{Data: opts.Data}, &out)
	return out, err
}

func (c *Client) RemovePlayer(ctx context.Context, lobbyID, playerID string) error {
	path := "/lobbies/" + url.PathEscape(lobbyID) + "/players/" + url.PathEscape(playerID)
	return c.do(ctx, "directory.remove_player", http.MethodDelete, path, nil, nil)
}

func (c *Client) Delete(ctx context.Context, lobbyID string) error {
	return c.do(ctx, "directory.delete", http.MethodDelete, "/lobbies/"+url.PathEscape(lobbyID), nil, nil)
}

func (c *Client) Heartbeat(ctx context.Context, lobbyID string) error {
	return c.do(ctx, "directory.heartbeat", http.MethodPost, "/lobbies/"+url.PathEscape(lobbyID)+"/heartbeat", nil, nil)
}

func (c *Client) Get(ctx context.Context, lobbyID string) (types.Lobby, error) {
	var out types.Lobby
	err := c.do(ctx, "directory.get", http.MethodGet, "/lobbies/"+url.PathEscape(lobbyID), nil, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, op, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return lobbyerr.Wrap(lobbyerr.KindValidation, op, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return lobbyerr.Wrap(lobbyerr.KindValidation, op, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.id != nil {
		if pid := c.id.PlayerID(); pid != "" {
			req.Header.Set(types.HeaderPlayerID, pid)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return lobbyerr.Wrap(lobbyerr.KindNetwork, op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return lobbyerr.FromResponse(op, resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return lobbyerr.Wrap(lobbyerr.KindNetwork, op, fmt.Errorf("decode response: %w", err))
	}
	return nil
}
