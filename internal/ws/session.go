package ws

import (
	"context"

	"github.com/VissentvNoord/lobby-system/internal/types"
)

type Msg interface{ isSessionMsg() }

// Attach registers a connected peer and the outbox its writer drains.
type Attach struct {
	PeerID string
	Host   bool
	Outbox chan types.Frame
}

func (Attach) isSessionMsg() {}

type Detach struct{ PeerID string }

func (Detach) isSessionMsg() {}

// FromPeer is a frame read off a peer's socket.
type FromPeer struct {
	PeerID string
	Frame  types.Frame
}

func (FromPeer) isSessionMsg() {}

type GetPeers struct {
	Reply chan PeersView
}

func (GetPeers) isSessionMsg() {}

type PeersView struct {
	HostID  string
	Clients int
}

// session relays frames between one host and its clients for a single allocation.
type session struct {
	id      string
	inbox   chan Msg
	hostID  string
	peers   map[string]chan types.Frame
	ctx     context.Context
	cancel  context.CancelFunc
	// onEmpty reports whether the owner released the session.
	onEmpty func(*session) bool
}

func newSession(parent context.Context, id string, onEmpty func(*session) bool) *session {
	ctx, cancel := context.WithCancel(parent)
	s := &session{
		id:      id,
		inbox:   make(chan Msg, 64),
		peers:   make(map[string]chan types.Frame),
		ctx:     ctx,
		cancel:  cancel,
		onEmpty: onEmpty,
	}
	go s.loop()
	return s
}

func (s *session) loop() {
	for {
		select {
		case <-s.ctx.Done():
			s.shutdown()
			return

		case m := <-s.inbox:
			switch msg := m.(type) {
			case Attach:
				s.peers[msg.PeerID] = msg.Outbox
				if msg.Host {
					s.hostID = msg.PeerID
				} else if s.hostID != "" {
					s.send(s.hostID, types.Frame{Type: types.FramePeerJoined, From: msg.PeerID})
				}

			case Detach:
				_, known := s.peers[msg.PeerID]
				wasHost := msg.PeerID == s.hostID
				s.drop(msg.PeerID)
				switch {
				case wasHost:
					// Clients cannot reach anyone once the host is gone.
					s.hostID = ""
					for id, ch := range s.peers {
						select {
						case ch <- types.ErrorFrame("host disconnected"):
						default:
						}
						s.drop(id)
					}
				case known && s.hostID != "":
					s.send(s.hostID, types.Frame{Type: types.FramePeerLeft, From: msg.PeerID})
				}
				if len(s.peers) == 0 && s.onEmpty(s) {
					s.cancel()
					return
				}

			case FromPeer:
				s.route(msg.PeerID, msg.Frame)

			case GetPeers:
				msg.Reply <- PeersView{HostID: s.hostID, Clients: s.clientCount()}
			}
		}
	}
}

func (s *session) route(from string, f types.Frame) {
	if f.Type != types.FrameData {
		return
	}
	f.From = from
	if from != s.hostID {
		if s.hostID != "" {
			f.To = ""
			s.send(s.hostID, f)
		}
		return
	}
	if f.To != "" {
		s.send(f.To, f)
		return
	}
	for id := range s.peers {
		if id != s.hostID {
			s.send(id, f)
		}
	}
}

// send drops a peer whose outbox is full.
func (s *session) send(id string, f types.Frame) {
	ch, ok := s.peers[id]
	if !ok {
		return
	}
	select {
	case ch <- f:
	default:
		s.drop(id)
	}
}

func (s *session) drop(id string) {
	if ch, ok := s.peers[id]; ok {
		close(ch)
		delete(s.peers, id)
	}
}

func (s *session) clientCount() int {
	n := len(s.peers)
	if s.hostID != "" {
		n--
	}
	return n
}

func (s *session) shutdown() {
	for id := range s.peers {
		s.drop(id)
	}
}
