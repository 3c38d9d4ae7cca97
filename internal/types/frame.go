package types

import "encoding/json"

// Frame types on a relay websocket.
const (
	FrameData       = "data"
	FramePeerJoined = "peer_joined"
	FramePeerLeft   = "peer_left"
	FrameError      = "error"
)

// Frame is the envelope every relay websocket message travels in. Clients
// leave To empty; the host addresses one client with To or all with "".
type Frame struct {
	Type    string          `json:"type"`
	From    string          `json:"from,omitempty"`
	To      string          `json:"to,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   string          `json:"error,omitempty"`
}

func ErrorFrame(msg string) Frame {
	return Frame{Type: FrameError, Error: msg}
}
