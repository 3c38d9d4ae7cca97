package engine

import (
	"time"

	"github.com/VissentvNoord/lobby-system/internal/lobbyerr"
	"github.com/VissentvNoord/lobby-system/pkg/types"
)

var (
	ErrNotHost            = lobbyerr.New(lobbyerr.KindForbidden, "engine", "caller is not the lobby host")
	ErrLobbyFull          = lobbyerr.New(lobbyerr.KindFull, "engine", "lobby has no available slots")
	ErrAlreadyMember      = lobbyerr.New(lobbyerr.KindConflict, "engine", "player already in lobby")
	ErrPlayerNotFound     = lobbyerr.New(lobbyerr.KindNotFound, "engine", "player not in lobby")
	ErrUnsupportedCommand = lobbyerr.New(lobbyerr.KindValidation, "engine", "unsupported command")
	ErrNotAllowed         = lobbyerr.New(lobbyerr.KindForbidden, "engine", "caller may not modify this player")
)

type CommandType string

const (
	CmdJoin         CommandType = "Join"
	CmdRemovePlayer CommandType = "RemovePlayer"
	CmdUpdateLobby  CommandType = "UpdateLobby"
	CmdUpdatePlayer CommandType = "UpdatePlayer"
	CmdHeartbeat    CommandType = "Heartbeat"
)

/*
	CmdJoin         -> EvtPlayerJoined
	CmdRemovePlayer -> EvtPlayerLeft | EvtPlayerKicked -> EvtHostMigrated? -> EvtLobbyEmptied?
	CmdUpdateLobby  -> EvtDataUpdated? -> EvtHostMigrated?
	CmdUpdatePlayer -> EvtPlayerUpdated
	CmdHeartbeat    -> EvtHeartbeat
*/

type Command struct {
	Type CommandType
	// Actor is the player issuing the command.
	Actor      string
	PlayerID   string
	Player     types.Player
	Data       map[string]types.Attribute
	PlayerData map[string]string
	HostID     string
	At         time.Time
}

type EventType string

const (
	EvtPlayerJoined  EventType = "PlayerJoined"
	EvtPlayerLeft    EventType = "PlayerLeft"
	EvtPlayerKicked  EventType = "PlayerKicked"
	EvtPlayerUpdated EventType = "PlayerUpdated"
	EvtDataUpdated   EventType = "DataUpdated"
	EvtHostMigrated  EventType = "HostMigrated"
	EvtHeartbeat     EventType = "Heartbeat"
	EvtLobbyEmptied  EventType = "LobbyEmptied"
)

type Event struct {
	Type     EventType
	PlayerID string
}

// Apply validates cmd against s and returns the resulting events and record.
// s is never modified; on error the original record is returned.
func Apply(s types.Lobby, cmd Command) ([]Event, types.Lobby, error) {
	switch cmd.Type {
	case CmdJoin:
		if cmd.Player.ID == "" {
			return nil, s, lobbyerr.New(lobbyerr.KindValidation, "engine.join", "player id is required")
		}
		if s.HasPlayer(cmd.Player.ID) {
			return nil, s, ErrAlreadyMember
		}
		if s.AvailableSlots() <= 0 {
			return nil, s, ErrLobbyFull
		}
		newState := *s.Clone()
		p := cmd.Player.Clone()
		p.JoinedAt = cmd.At
		newState.Players = append(newState.Players, p)
		return []Event{{Type: EvtPlayerJoined, PlayerID: p.ID}}, newState, nil

	case CmdRemovePlayer:
		if !s.HasPlayer(cmd.PlayerID) {
			return nil, s, ErrPlayerNotFound
		}
		kicked := cmd.Actor != cmd.PlayerID
		if kicked && cmd.Actor != s.HostID {
			return nil, s, ErrNotHost
		}

		newState := *s.Clone()
		newState.Players = removePlayer(newState.Players, cmd.PlayerID)

		evt := Event{Type: EvtPlayerLeft, PlayerID: cmd.PlayerID}
		if kicked {
			evt.Type = EvtPlayerKicked
		}
		events := []Event{evt}

		if len(newState.Players) == 0 {
			return append(events, Event{Type: EvtLobbyEmptied}), newState, nil
		}
		// The host left: hand the lobby to the longest-standing member.
		if cmd.PlayerID == s.HostID {
			newState.HostID = newState.Players[0].ID
			events = append(events, Event{Type: EvtHostMigrated, PlayerID: newState.HostID})
		}
		return events, newState, nil

	case CmdUpdateLobby:
		if cmd.Actor != s.HostID {
			return nil, s, ErrNotHost
		}
		if err := ValidateData(cmd.Data); err != nil {
			return nil, s, err
		}
		if cmd.HostID != "" && !s.HasPlayer(cmd.HostID) {
			return nil, s, ErrPlayerNotFound
		}

		newState := *s.Clone()
		var events []Event
		if len(cmd.Data) > 0 {
			if newState.Data == nil {
				newState.Data = make(map[string]types.Attribute, len(cmd.Data))
			}
			for k, v := range cmd.Data {
				newState.Data[k] = v
			}
			events = append(events, Event{Type: EvtDataUpdated})
		}
		if cmd.HostID != "" && cmd.HostID != s.HostID {
			newState.HostID = cmd.HostID
			events = append(events, Event{Type: EvtHostMigrated, PlayerID: cmd.HostID})
		}
		return events, newState, nil

	case CmdUpdatePlayer:
		if cmd.Actor != cmd.PlayerID {
			return nil, s, ErrNotAllowed
		}
		if !s.HasPlayer(cmd.PlayerID) {
			return nil, s, ErrPlayerNotFound
		}

		newState := *s.Clone()
		for i := range newState.Players {
			if newState.Players[i].ID != cmd.PlayerID {
				continue
			}
			if newState.Players[i].Data == nil {
				newState.Players[i].Data = make(map[string]string, len(cmd.PlayerData))
			}
			for k, v := range cmd.PlayerData {
				newState.Players[i].Data[k] = v
			}
		}
		return []Event{{Type: EvtPlayerUpdated, PlayerID: cmd.PlayerID}}, newState, nil

	case CmdHeartbeat:
		if cmd.Actor != s.HostID {
			return nil, s, ErrNotHost
		}
		newState := *s.Clone()
		newState.LastHeartbeat = cmd.At
		return []Event{{Type: EvtHeartbeat}}, newState, nil

	default:
		return nil, s, ErrUnsupportedCommand
	}
}

func removePlayer(players []types.Player, id string) []types.Player {
	out := players[:0]
	for _, p := range players {
		if p.ID != id {
			out = append(out, p)
		}
	}
	return out
}
