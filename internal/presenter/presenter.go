// Package presenter renders lobby snapshots. Variants are chosen at
// construction; the coordinator only ever sees events.
package presenter

import (
	"fmt"

	"github.com/VissentvNoord/lobby-system/internal/events"
	"github.com/VissentvNoord/lobby-system/pkg/types"
)

type Presenter interface {
	DisplayLobby(l types.Lobby, isHost bool)
	ListLobbies(lobbies []types.Lobby)
}

// Style names a presenter variant.
type Style string

const (
	StyleText Style = "text"
	StyleLog  Style = "log"
)

func ParseStyle(s string) (Style, error) {
	switch Style(s) {
	case StyleText, StyleLog:
		return Style(s), nil
	}
	return "", fmt.Errorf("unknown presenter style %q", s)
}

// Subscribe routes snapshot events on bus to p and returns the unsubscribe func.
func Subscribe(bus *events.Bus, p Presenter) func() {
	display := func(e events.Event) {
		if e.Lobby == nil {
			return
		}
		p.DisplayLobby(*e.Lobby, e.IsHost)
	}
	unsubs := []func(){
		bus.Subscribe(events.LobbyCreated, display),
		bus.Subscribe(events.LobbyJoined, display),
		bus.Subscribe(events.LobbyUpdated, display),
		bus.Subscribe(events.LobbiesListed, func(e events.Event) {
			p.ListLobbies(e.Lobbies)
		}),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}
