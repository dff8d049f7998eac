package server

import "cellarena/protocol"

// command is what the gateway feeds into a room inbox. The room goroutine
// applies commands in arrival order before each tick.
type command interface {
	command()
}

// attach registers a freshly upgraded connection.
type attach struct {
	id    SessionID
	conn  Conn
	codec protocol.Codec
}

// deliver carries one decoded intent from a session.
type deliver struct {
	id     SessionID
	intent protocol.Intent
}

// detach is issued once when the read side of a connection ends.
type detach struct {
	id SessionID
}

func (attach) command() {}
func (deliver) command() {}
func (detach) command() {}
