package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/VissentvNoord/lobby-system/internal/lobbyerr"
	"github.com/VissentvNoord/lobby-system/pkg/types"
)

// HTTPClient is a Client for the relay API served next to the directory.
// Endpoints it returns are absolute websocket URLs.
type HTTPClient struct {
	baseURL  string
	http     *http.Client
	playerID func() string
}

var _ Client = (*HTTPClient)(nil)

func NewHTTPClient(baseURL string, playerID func() string, httpClient *http.Client) *HTTPClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPClient{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient, playerID: playerID}
}

func (c *HTTPClient) CreateAllocation(ctx context.Context, maxConnections int) (Allocation, error) {
	var out types.AllocateResponse
	if err := c.post(ctx, "relay.create_allocation", "/relay/allocations", types.AllocateRequest{MaxConnections: maxConnections}, &out); err != nil {
		return Allocation{}, err
	}
	endpoint, err := c.wsURL(out.Endpoint)
	if err != nil {
		return Allocation{}, lobbyerr.Wrap(lobbyerr.KindRelayAllocation, "relay.create_allocation", err)
	}
	return Allocation{ID: out.AllocationID, Endpoint: endpoint, MaxConnections: maxConnections}, nil
}

func (c *HTTPClient) GetJoinCode(ctx context.Context, allocationID string) (string, error) {
	var out types.JoinCodeResponse
	path := "/relay/allocations/" + url.PathEscape(allocationID) + "/joincode"
	if err := c.post(ctx, "relay.get_join_code", path, nil, &out); err != nil {
		return "", err
	}
	return out.JoinCode, nil
}

func (c *HTTPClient) JoinAllocation(ctx context.Context, joinCode string) (JoinAllocation, error) {
	var out types.RelayJoinResponse
	if err := c.post(ctx, "relay.join_allocation", "/relay/join", types.RelayJoinRequest{JoinCode: joinCode}, &out); err != nil {
		return JoinAllocation{}, err
	}
	endpoint, err := c.wsURL(out.Endpoint)
	if err != nil {
		return JoinAllocation{}, lobbyerr.Wrap(lobbyerr.KindRelayAllocation, "relay.join_allocation", err)
	}
	return JoinAllocation{AllocationID: out.AllocationID, Endpoint: endpoint, JoinCode: joinCode}, nil
}

// wsURL resolves an endpoint path against the base URL and switches the scheme.
func (c *HTTPClient) wsURL(endpoint string) (string, error) {
	base, err := url.Parse(c.baseURL)
	if err != nil {
		return "", err
	}
	ref, err := url.Parse(endpoint)
	if err != nil {
		return "", err
	}
	u := base.ResolveReference(ref)
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	return u.String(), nil
}

func (c *HTTPClient) post(ctx context.Context, op, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return lobbyerr.Wrap(lobbyerr.KindValidation, op, err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, reader)
	if err != nil {
		return lobbyerr.Wrap(lobbyerr.KindValidation, op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.playerID != nil {
		if pid := c.playerID(); pid != "" {
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
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return lobbyerr.Wrap(lobbyerr.KindNetwork, op, fmt.Errorf("decode response: %w", err))
	}
	return nil
}
