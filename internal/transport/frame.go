package transport

import (
	"bytes"
	"encoding/json"
)

// frameKind classifies an inbound frame. Unrecognized or malformed frames
// fall into frameOpaque and are forwarded as-is; parsing never fails hard.
type frameKind int

const (
	frameOpaque frameKind = iota
	framePong
	frameAuthError
	frameChannel
)

// frame is the parsed view of an inbound payload.
type frame struct {
	kind    frameKind
	channel string
}

// envelope covers the fields the dispatcher cares about; everything else
// in the payload is opaque to the transport.
type envelope struct {
	Type    string `json:"type"`
	Code    int    `json:"code"`
	Channel string `json:"channel"`
	Topic   string `json:"topic"`
}

// controlFrame is an outbound subscribe/unsubscribe/ping frame.
type controlFrame struct {
	Type    string `json:"type"`
	Channel string `json:"channel,omitempty"`
	Ts      int64  `json:"ts,omitempty"`
}

// parseFrame classifies a raw payload.
func parseFrame(data []byte) frame {
	trimmed := bytes.TrimSpace(data)

	// Servers may send the keepalive ack as a bare text frame.
	if bytes.Equal(trimmed, []byte("pong")) || bytes.Equal(trimmed, []byte(`"pong"`)) {
		return frame{kind: framePong}
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return frame{kind: frameOpaque}
	}

	switch {
	case env.Type == "pong":
		return frame{kind: framePong}
	case env.Type == "auth_error" || env.Code == 401:
		return frame{kind: frameAuthError}
	}

	key := env.Channel
	if key == "" {
		key = env.Topic
	}
	if key == "" {
		return frame{kind: frameOpaque}
	}
	return frame{kind: frameChannel, channel: key}
}
