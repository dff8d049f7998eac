// Package protocol defines the wire messages exchanged with arena clients.
//
// Every frame is an envelope carrying a "type" discriminator. Inbound frames
// are decoded once into an Intent; outbound frames are built from a Message.
// Neither is inspected by string comparison past this package.
package protocol

import "errors"

// Inbound message types.
const (
	TypeJoin  = "join"
	TypeMove  = "playerMove"
	TypeSplit = "split"
	TypeScore = "score"
)

// Outbound message types.
const (
	TypeGameParams   = "gameParams"
	TypeLeaderboard  = "leaderboard"
	TypePlayerUpdate = "playerUpdate"
	TypeFoodUpdate   = "foodUpdate"
	TypePlayerDeath  = "playerDeath"
)

var (
	// ErrMalformed marks a frame that could not be parsed or lacks required fields.
	ErrMalformed = errors.New("malformed message")
	// ErrUnknownType marks a well-formed frame with an unrecognised type.
	ErrUnknownType = errors.New("unknown message type")
)

// envelope is the outbound frame layout: {"type": ..., "data": ...}.
type envelope struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}
