package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/VissentvNoord/lobby-system/internal/directory"
	"github.com/VissentvNoord/lobby-system/internal/lobbyerr"
	"github.com/VissentvNoord/lobby-system/internal/relay"
	"github.com/VissentvNoord/lobby-system/pkg/types"
)

const maxBodyBytes = 64 << 10

type API struct {
	dir    *directory.Service
	relay  *relay.Registry
	logger *zap.Logger
}

func actor(r *http.Request) string {
	return r.Header.Get(types.HeaderPlayerID)
}

func (a *API) CreateLobby(w http.ResponseWriter, r *http.Request) {
	var req types.CreateLobbyRequest
	if !a.decode(w, r, &req) {
		return
	}
	l, err := a.dir.Create(r.Context(), actor(r), req.Name, req.MaxPlayers, directory.CreateOptions{
		Private: req.Private,
		Player:  req.Player,
		Data:    req.Data,
	})
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, l)
}

func (a *API) QueryLobbies(w http.ResponseWriter, r *http.Request) {
	var q directory.Query
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			a.writeError(w, lobbyerr.New(lobbyerr.KindValidation, "httpapi.query", "limit must be a non-negative integer"))
			return
		}
		q.Limit = n
	}
	results, err := a.dir.Query(r.Context(), q)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, types.QueryResponse{Results: results})
}

func (a *API) GetLobby(w http.ResponseWriter, r *http.Request) {
	l, err := a.dir.Get(r.Context(), actor(r), chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

func (a *API) UpdateLobby(w http.ResponseWriter, r *http.Request) {
	var req types.UpdateLobbyRequest
	if !a.decode(w, r, &req) {
		return
	}
	l, err := a.dir.Update(r.Context(), actor(r), chi.URLParam(r, "id"), directory.UpdateOptions{Data: req.Data, HostID: req.HostID})
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

func (a *API) DeleteLobby(w http.ResponseWriter, r *http.Request) {
	if err := a.dir.Delete(r.Context(), actor(r), chi.URLParam(r, "id")); err != nil {
		a.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) Heartbeat(w http.ResponseWriter, r *http.Request) {
	if err := a.dir.Heartbeat(r.Context(), actor(r), chi.URLParam(r, "id")); err != nil {
		a.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) JoinLobby(w http.ResponseWriter, r *http.Request) {
	var req types.JoinRequest
	if !a.decode(w, r, &req) {
		return
	}
	l, err := a.dir.JoinByID(r.Context(), actor(r), chi.URLParam(r, "id"), directory.JoinOptions{Player: req.Player})
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

func (a *API) JoinByCode(w http.ResponseWriter, r *http.Request) {
	var req types.JoinByCodeRequest
	if !a.decode(w, r, &req) {
		return
	}
	l, err := a.dir.JoinByCode(r.Context(), actor(r), req.Code, directory.JoinOptions{Player: req.Player})
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

func (a *API) QuickJoin(w http.ResponseWriter, r *http.Request) {
	var req types.JoinRequest
	if !a.decode(w, r, &req) {
		return
	}
	l, err := a.dir.QuickJoin(r.Context(), actor(r), directory.JoinOptions{Player: req.Player})
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

func (a *API) UpdatePlayer(w http.ResponseWriter, r *http.Request) {
	var req types.UpdatePlayerRequest
	if !a.decode(w, r, &req) {
		return
	}
	l, err := a.dir.UpdatePlayer(r.Context(), actor(r), chi.URLParam(r, "id"), chi.URLParam(r, "playerID"), directory.UpdatePlayerOptions{Data: req.Data})
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

func (a *API) RemovePlayer(w http.ResponseWriter, r *http.Request) {
	if err := a.dir.RemovePlayer(r.Context(), actor(r), chi.URLParam(r, "id"), chi.URLParam(r, "playerID")); err != nil {
		a.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) Allocate(w http.ResponseWriter, r *http.Request) {
	var req types.AllocateRequest
	if !a.decode(w, r, &req) {
		return
	}
	alloc, err := a.relay.Allocate(req.MaxConnections)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, types.AllocateResponse{AllocationID: alloc.ID, Endpoint: alloc.Endpoint})
}

func (a *API) JoinCode(w http.ResponseWriter, r *http.Request) {
	code, err := a.relay.JoinCode(chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, types.JoinCodeResponse{JoinCode: code})
}

func (a *API) RelayJoin(w http.ResponseWriter, r *http.Request) {
	var req types.RelayJoinRequest
	if !a.decode(w, r, &req) {
		return
	}
	ja, err := a.relay.Join(req.JoinCode)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, types.RelayJoinResponse{AllocationID: ja.AllocationID, Endpoint: ja.Endpoint})
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// decode reads a JSON body; an empty body leaves v untouched.
func (a *API) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	a.writeError(w, lobbyerr.Wrap(lobbyerr.KindValidation, "httpapi.decode", err))
	return false
}

func (a *API) writeError(w http.ResponseWriter, err error) {
	kind := lobbyerr.KindOf(err)
	status := kind.HTTPStatus()
	if status >= http.StatusInternalServerError {
		a.logger.Error("request failed", zap.String("kind", string(kind)), zap.Error(err))
	}
	writeJSON(w, status, types.ErrorResponse{Kind: string(kind), Message: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
