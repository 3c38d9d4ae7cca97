package types

import "time"

// Well-known attribute keys.
const (
	KeyRelayCode   = "relay-code"
	KeyGameMode    = "game-mode"
	KeyDisplayName = "display-name"
)

// NoRelay is the relay-code value meaning no relay session has been started yet.
const NoRelay = "0"

type Visibility string

const (
	VisibilityPublic Visibility = "public"
	VisibilityMember Visibility = "member"
)

type Attribute struct {
	Value      string     `json:"value"`
	Visibility Visibility `json:"visibility"`
}

func Public(v string) Attribute { return Attribute{Value: v, Visibility: VisibilityPublic} }
func Member(v string) Attribute { return Attribute{Value: v, Visibility: VisibilityMember} }

type Player struct {
	ID       string            `json:"id"`
	Data     map[string]string `json:"data,omitempty"`
	JoinedAt time.Time         `json:"joined_at"`
}

// DisplayName returns the player's display-name attribute, or its id when unset.
func (p Player) DisplayName() string {
	if name := p.Data[KeyDisplayName]; name != "" {
		return name
	}
	return p.ID
}

// Lobby is an immutable snapshot of a directory record. Refreshes replace it wholesale.
type Lobby struct {
	ID            string               `json:"id"`
	Code          string               `json:"code"`
	Name          string               `json:"name"`
	MaxPlayers    int                  `json:"max_players"`
	Private       bool                 `json:"private"`
	HostID        string               `json:"host_id"`
	Players       []Player             `json:"players"`
	Data          map[string]Attribute `json:"data,omitempty"`
	CreatedAt     time.Time            `json:"created_at"`
	LastHeartbeat time.Time            `json:"last_heartbeat"`
}

func (l *Lobby) AvailableSlots() int {
	if l == nil {
		return 0
	}
	return l.MaxPlayers - len(l.Players)
}

// Player looks a participant up by id.
func (l *Lobby) Player(id string) (Player, bool) {
	if l == nil {
		return Player{}, false
	}
	for _, p := range l.Players {
		if p.ID == id {
			return p, true
		}
	}
	return Player{}, false
}

func (l *Lobby) HasPlayer(id string) bool {
	_, ok := l.Player(id)
	return ok
}

// RelayCode returns the published relay join code, NoRelay when none is set.
func (l *Lobby) RelayCode() string {
	if l == nil {
		return NoRelay
	}
	attr, ok := l.Data[KeyRelayCode]
	if !ok || attr.Value == "" {
		return NoRelay
	}
	return attr.Value
}

func (l *Lobby) GameMode() string {
	if l == nil {
		return ""
	}
	return l.Data[KeyGameMode].Value
}

// Clone returns a deep copy so snapshots handed out never share maps or slices.
func (l *Lobby) Clone() *Lobby {
	if l == nil {
		return nil
	}
	out := *l
	out.Players = make([]Player, len(l.Players))
	for i, p := range l.Players {
		out.Players[i] = p.Clone()
	}
	if l.Data != nil {
		out.Data = make(map[string]Attribute, len(l.Data))
		for k, v := range l.Data {
			out.Data[k] = v
		}
	}
	return &out
}

func (p Player) Clone() Player {
	out := p
	if p.Data != nil {
		out.Data = make(map[string]string, len(p.Data))
		for k, v := range p.Data {
			out.Data[k] = v
		}
	}
	return out
}
