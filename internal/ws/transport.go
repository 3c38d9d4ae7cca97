package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/VissentvNoord/lobby-system/internal/relay"
	"github.com/VissentvNoord/lobby-system/internal/types"
	pkgtypes "github.com/VissentvNoord/lobby-system/pkg/types"
)

var (
	ErrNotConfigured  = errors.New("transport not configured")
	ErrAlreadyStarted = errors.New("transport already started")
	ErrNotStarted     = errors.New("transport not started")
)

// Transport is the participant end of a relay session.
type Transport struct {
	mu       sync.Mutex
	url      string
	playerID func() string
	conn     *websocket.Conn
	frames   chan types.Frame
	cancel   context.CancelFunc
	done     chan struct{}
	logger   *zap.Logger
}

var _ relay.Transport = (*Transport)(nil)

func NewTransport(playerID func() string, logger *zap.Logger) *Transport {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Transport{playerID: playerID, logger: logger.Named("transport")}
}

func (t *Transport) ConfigureAsHost(a relay.Allocation) error {
	return t.configure(a.Endpoint, "host")
}

func (t *Transport) ConfigureAsClient(j relay.JoinAllocation) error {
	return t.configure(j.Endpoint, "client")
}

func (t *Transport) configure(endpoint, role string) error {
	if endpoint == "" {
		return fmt.Errorf("configure %s: empty endpoint", role)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn != nil {
		return ErrAlreadyStarted
	}
	t.url = endpoint + "?role=" + role
	return nil
}

// Start dials the relay. ctx bounds the dial only.
func (t *Transport) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.url == "" {
		return ErrNotConfigured
	}
	if t.conn != nil {
		return ErrAlreadyStarted
	}

	header := http.Header{}
	if t.playerID != nil {
		header.Set(pkgtypes.HeaderPlayerID, t.playerID())
	}
	conn, _, err := websocket.Dial(ctx, t.url, &websocket.DialOptions{HTTPHeader: header})
	if err != nil {
		return fmt.Errorf("dial relay: %w", err)
	}

	readCtx, cancel := context.WithCancel(context.Background())
	t.conn = conn
	t.cancel = cancel
	t.frames = make(chan types.Frame, outboxSize)
	t.done = make(chan struct{})
	go t.readLoop(readCtx, conn, t.frames, t.done)

	t.logger.Info("relay transport connected", zap.String("url", t.url))
	return nil
}

func (t *Transport) readLoop(ctx context.Context, conn *websocket.Conn, frames chan<- types.Frame, done chan<- struct{}) {
	defer close(done)
	defer close(frames)
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		var f types.Frame
		if err := json.Unmarshal(data, &f); err != nil {
			t.logger.Warn("dropping malformed relay frame", zap.Error(err))
			continue
		}
		select {
		case frames <- f:
		default:
			t.logger.Warn("dropping relay frame for slow reader", zap.String("from", f.From))
		}
	}
}

// Frames yields frames read from the relay; it is closed when the connection ends.
func (t *Transport) Frames() <-chan types.Frame {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.frames
}

// Send writes one data frame. to is a client peer id for the host, empty otherwise.
func (t *Transport) Send(ctx context.Context, to string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	raw, err := json.Marshal(types.Frame{Type: types.FrameData, To: to, Payload: payload})
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}

	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return ErrNotStarted
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, raw)
}

// Close ends the connection and resets the transport for reuse. Safe to call repeatedly.
func (t *Transport) Close() error {
	t.mu.Lock()
	conn, cancel, done := t.conn, t.cancel, t.done
	t.conn, t.cancel, t.done, t.url = nil, nil, nil, ""
	t.mu.Unlock()

	if conn == nil {
		return nil
	}
	if err := conn.Close(websocket.StatusNormalClosure, "bye"); err != nil {
		// The relay may already have closed the socket.
		t.logger.Debug("relay close handshake", zap.Error(err))
	}
	cancel()
	<-done
	return nil
}
