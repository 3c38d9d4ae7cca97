// Package ws carries relay traffic over websockets: the server-side bridge that
// pairs a host with its clients, and the participant Transport that dials it.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/VissentvNoord/lobby-system/internal/lobbyerr"
	"github.com/VissentvNoord/lobby-system/internal/relay"
	"github.com/VissentvNoord/lobby-system/internal/types"
)

const (
	readIdleTimeout = 2 * time.Minute
	writeTimeout    = 3 * time.Second
	outboxSize      = 32
)

var errSessionBusy = errors.New("relay session busy")

// Bridge relays frames between the host and clients of each allocation.
type Bridge struct {
	mu       sync.Mutex
	sessions map[string]*session
	reg      *relay.Registry
	ctx      context.Context
	logger   *zap.Logger
}

func NewBridge(ctx context.Context, reg *relay.Registry, logger *zap.Logger) *Bridge {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bridge{
		sessions: make(map[string]*session),
		reg:      reg,
		ctx:      ctx,
		logger:   logger.Named("relay_bridge"),
	}
}

// Handler serves GET /relay/ws/{id}?role=host|client.
func (b *Bridge) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		allocID := chi.URLParam(r, "id")
		host := r.URL.Query().Get("role") == "host"

		var (
			release func()
			err     error
		)
		if host {
			release, err = b.reg.AttachHost(allocID)
		} else {
			release, err = b.reg.AttachClient(allocID)
		}
		if err != nil {
			http.Error(w, err.Error(), lobbyerr.KindOf(err).HTTPStatus())
			return
		}
		defer release()

		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		peerID := uuid.NewString()
		out := make(chan types.Frame, outboxSize)
		s, err := b.attach(allocID, Attach{PeerID: peerID, Host: host, Outbox: out})
		if err != nil {
			conn.Close(websocket.StatusTryAgainLater, err.Error())
			return
		}
		defer b.detach(s, peerID)

		log := b.logger.With(zap.String("allocation_id", allocID), zap.String("peer_id", peerID), zap.Bool("host", host))
		log.Debug("peer connected")

		// Writer goroutine
		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go func() {
			for f := range out {
				payload, _ := json.Marshal(f)
				ctx, cancel := context.WithTimeout(writeCtx, writeTimeout)
				_ = conn.Write(ctx, websocket.MessageText, payload)
				cancel()
			}
			// The session dropped us.
			conn.Close(websocket.StatusGoingAway, "session closed")
		}()

		// Reader loop
		for {
			ctx, cancel := context.WithTimeout(r.Context(), readIdleTimeout)
			_, data, err := conn.Read(ctx)
			cancel()
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				default:
					log.Debug("peer read ended", zap.Error(err))
				}
				return
			}

			var f types.Frame
			if err := json.Unmarshal(data, &f); err != nil {
				writeFrame(r.Context(), conn, types.ErrorFrame("bad json"))
				continue
			}
			if f.Type != types.FrameData {
				writeFrame(r.Context(), conn, types.ErrorFrame("unknown type"))
				continue
			}

			select {
			case s.inbox <- FromPeer{PeerID: peerID, Frame: f}:
			case <-s.ctx.Done():
				return
			}
		}
	}
}

// Peers reports the host and client count of an allocation's session.
func (b *Bridge) Peers(ctx context.Context, allocID string) (PeersView, bool) {
	b.mu.Lock()
	s, ok := b.sessions[allocID]
	b.mu.Unlock()
	if !ok {
		return PeersView{}, false
	}
	reply := make(chan PeersView, 1)
	select {
	case s.inbox <- GetPeers{Reply: reply}:
	case <-s.ctx.Done():
		return PeersView{}, false
	case <-ctx.Done():
		return PeersView{}, false
	}
	select {
	case v := <-reply:
		return v, true
	case <-s.ctx.Done():
		return PeersView{}, false
	case <-ctx.Done():
		return PeersView{}, false
	}
}

func (b *Bridge) attach(allocID string, m Attach) (*session, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.sessions[allocID]
	if !ok {
		s = newSession(b.ctx, allocID, b.release)
		b.sessions[allocID] = s
	}
	select {
	case s.inbox <- m:
		return s, nil
	default:
		return nil, errSessionBusy
	}
}

func (b *Bridge) detach(s *session, peerID string) {
	select {
	case s.inbox <- Detach{PeerID: peerID}:
	case <-s.ctx.Done():
	}
}

// release is called by an empty session; it refuses while attaches are queued.
func (b *Bridge) release(s *session) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(s.inbox) > 0 {
		return false
	}
	if b.sessions[s.id] == s {
		delete(b.sessions, s.id)
	}
	return true
}

func writeFrame(ctx context.Context, conn *websocket.Conn, f types.Frame) {
	payload, _ := json.Marshal(f)
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	_ = conn.Write(ctx, websocket.MessageText, payload)
}
