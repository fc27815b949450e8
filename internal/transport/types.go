package transport

import (
	"errors"
	"time"

	"github.com/nuniesmith/fks-realtime/internal/backoff"
)

// Errors
var (
	ErrNotConnected = errors.New("not connected")
	ErrNoURL        = errors.New("transport: url is required")
)

// Status is the connection state observable by consumers. Exactly one
// value holds at a time; consumers observe transitions via OnStatusChange,
// never by polling internal fields.
type Status int

const (
	StatusIdle Status = iota
	StatusConnecting
	StatusOpen
	StatusClosed
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusConnecting:
		return "connecting"
	case StatusOpen:
		return "open"
	case StatusClosed:
		return "closed"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// Config configures the transport client.
type Config struct {
	// URL is the WebSocket endpoint (e.g. wss://stream.example.com/ws).
	// The current access token is appended as a token query parameter at
	// connect time.
	URL string

	// HeartbeatInterval is the keepalive ping period while open.
	HeartbeatInterval time.Duration

	// RotateInterval is the token rotation check period.
	RotateInterval time.Duration

	// Backoff governs reconnect scheduling.
	Backoff backoff.Policy

	// MaxAttempts caps consecutive reconnect attempts. 0 retries forever.
	MaxAttempts int

	// HandshakeTimeout bounds the WebSocket dial.
	HandshakeTimeout time.Duration

	// WriteTimeout is the write deadline for outbound frames.
	WriteTimeout time.Duration

	// Dialer opens sockets. Nil uses the gorilla/websocket dialer.
	Dialer Dialer

	// Scheduler defers reconnect attempts. Nil uses real timers.
	Scheduler Scheduler
}

// DefaultConfig returns sensible defaults (URL must still be set).
func DefaultConfig() Config {
	return Config{
		HeartbeatInterval: 25 * time.Second,
		RotateInterval:    4 * time.Minute,
		Backoff:           backoff.DefaultPolicy(),
		HandshakeTimeout:  10 * time.Second,
		WriteTimeout:      5 * time.Second,
	}
}
