package engine

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/VissentvNoord/lobby-system/internal/lobbyerr"
	"github.com/VissentvNoord/lobby-system/pkg/types"
)

type NewLobbyParams struct {
	ID         string
	Code       string
	Name       string
	MaxPlayers int
	Private    bool
	Host       types.Player
	Data       map[string]types.Attribute
	At         time.Time
}

// NewLobby builds the initial record: the host is the sole player and relay-code starts at NoRelay.
func NewLobby(p NewLobbyParams) (types.Lobby, error) {
	if err := ValidateName(p.Name); err != nil {
		return types.Lobby{}, err
	}
	if err := ValidateMaxPlayers(p.MaxPlayers); err != nil {
		return types.Lobby{}, err
	}
	if p.Host.ID == "" {
		return types.Lobby{}, lobbyerr.New(lobbyerr.KindValidation, "engine.create", "host player id is required")
	}
	if err := ValidateData(p.Data); err != nil {
		return types.Lobby{}, err
	}

	data := make(map[string]types.Attribute, len(p.Data)+1)
	for k, v := range p.Data {
		data[k] = v
	}
	if _, ok := data[types.KeyRelayCode]; !ok {
		data[types.KeyRelayCode] = types.Member(types.NoRelay)
	}

	host := p.Host.Clone()
	host.JoinedAt = p.At

	return types.Lobby{
		ID:            p.ID,
		Code:          p.Code,
		Name:          strings.TrimSpace(p.Name),
		MaxPlayers:    p.MaxPlayers,
		Private:       p.Private,
		HostID:        host.ID,
		Players:       []types.Player{host},
		Data:          data,
		CreatedAt:     p.At,
		LastHeartbeat: p.At,
	}, nil
}

func ValidateName(name string) error {
	return validateLabel("lobby name", name)
}

// ValidatePlayerName checks a player's display name.
func ValidatePlayerName(name string) error {
	return validateLabel("display name", name)
}

func validateLabel(subject, s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return lobbyerr.New(lobbyerr.KindValidation, "engine", subject+" is required")
	}
	if utf8.RuneCountInString(s) > MaxNameLength {
		return lobbyerr.New(lobbyerr.KindValidation, "engine", fmt.Sprintf("%s exceeds %d characters", subject, MaxNameLength))
	}
	return nil
}

func ValidateMaxPlayers(n int) error {
	if n < MinPlayers || n > MaxPlayers {
		return lobbyerr.New(lobbyerr.KindValidation, "engine", fmt.Sprintf("max players must be between %d and %d, got %d", MinPlayers, MaxPlayers, n))
	}
	return nil
}

func ValidateCode(code string) error {
	if len(code) != CodeLength {
		return lobbyerr.New(lobbyerr.KindValidation, "engine", fmt.Sprintf("join code must be %d characters", CodeLength))
	}
	return nil
}

func ValidateData(data map[string]types.Attribute) error {
	if len(data) > maxDataEntries {
		return lobbyerr.New(lobbyerr.KindValidation, "engine", "too many lobby attributes")
	}
	for k, v := range data {
		if k == "" {
			return lobbyerr.New(lobbyerr.KindValidation, "engine", "attribute key is required")
		}
		switch v.Visibility {
		case types.VisibilityPublic, types.VisibilityMember:
		default:
			return lobbyerr.New(lobbyerr.KindValidation, "engine", fmt.Sprintf("attribute %q has invalid visibility %q", k, v.Visibility))
		}
	}
	return nil
}

func ContainsEvent(events []Event, eventType EventType) bool {
	for _, event := range events {
		if event.Type == eventType {
			return true
		}
	}
	return false
}
