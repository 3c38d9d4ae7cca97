package types

// Directory API (JSON over HTTP). The caller identifies itself with the X-Player-ID header.
//
// POST   /lobbies                          CreateLobbyRequest  -> Lobby
// GET    /lobbies?limit=25                                     -> QueryResponse
// GET    /lobbies/{id}                                         -> Lobby
// PATCH  /lobbies/{id}                     UpdateLobbyRequest  -> Lobby
// DELETE /lobbies/{id}
// POST   /lobbies/{id}/heartbeat
// POST   /lobbies/{id}/players             JoinRequest         -> Lobby
// PATCH  /lobbies/{id}/players/{playerID}  UpdatePlayerRequest -> Lobby
// DELETE /lobbies/{id}/players/{playerID}
// POST   /lobbies/join/code                JoinByCodeRequest   -> Lobby
// POST   /lobbies/join/quick               JoinRequest         -> Lobby
//
// Relay API.
//
// POST   /relay/allocations                AllocateRequest     -> AllocateResponse
// POST   /relay/allocations/{id}/joincode                      -> JoinCodeResponse
// POST   /relay/join                       RelayJoinRequest    -> RelayJoinResponse
// GET    /relay/ws/{id}?role=host|client   websocket upgrade

const HeaderPlayerID = "X-Player-ID"

type CreateLobbyRequest struct {
	Name       string               `json:"name"`
	MaxPlayers int                  `json:"max_players"`
	Private    bool                 `json:"private"`
	Player     Player               `json:"player"`
	Data       map[string]Attribute `json:"data,omitempty"`
}

type JoinRequest struct {
	Player Player `json:"player"`
}

type JoinByCodeRequest struct {
	Code   string `json:"code"`
	Player Player `json:"player"`
}

type UpdateLobbyRequest struct {
	Data   map[string]Attribute `json:"data,omitempty"`
	HostID string               `json:"host_id,omitempty"`
}

type UpdatePlayerRequest struct {
	Data map[string]string `json:"data"`
}

type QueryResponse struct {
	Results []Lobby `json:"results"`
}

type AllocateRequest struct {
	MaxConnections int `json:"max_connections"`
}

type AllocateResponse struct {
	AllocationID string `json:"allocation_id"`
	Endpoint     string `json:"endpoint"`
}

type JoinCodeResponse struct {
	JoinCode string `json:"join_code"`
}

type RelayJoinRequest struct {
	JoinCode string `json:"join_code"`
}

type RelayJoinResponse struct {
	AllocationID string `json:"allocation_id"`
	Endpoint     string `json:"endpoint"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}
