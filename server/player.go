package server

import (
	"cellarena/game"
	"cellarena/protocol"
)

// SessionID identifies one attached connection within a room. A session
// outlives the players it controls: after an elimination the same session
// may join again.
type SessionID uint64

// Conn is the send side of a client connection. Send must not block.
type Conn interface {
	Send([]byte) error
	Close() error
}

// session is the room-side record of a connection. Only the room goroutine
// touches it.
type session struct {
	id     SessionID
	conn   Conn
	codec  protocol.Codec
	player game.PlayerID // empty until join, and again after elimination
}

func (s *session) joined() bool { return s.player != "" }
