// Copyright 2024-2026 Aiku AI

package relay

import "fmt"

// Origin identifies which side of the relay produced a message.
type Origin int

const (
	// OriginChannel means the message came from the IRC channel.
	OriginChannel Origin = iota
	// OriginGroup means the message came from the Matrix room.
	OriginGroup
)

// String returns the origin name for logging.
func (o Origin) String() string {
	switch o {
	case OriginChannel:
		return "channel"
	case OriginGroup:
		return "group"
	default:
		return fmt.Sprintf("origin(%d)", int(o))
	}
}

// ChatMessage is one chat event pulled off either protocol. It is
// immutable once constructed and consumed exactly once by the queue
// toward the opposite side.
type ChatMessage struct {
	Sender string
	Text   string
	Origin Origin
}

// Format renders the message the way the destination expects it:
// the sender in brackets followed by the text.
func (m ChatMessage) Format() string {
	return fmt.Sprintf("[%s] %s", m.Sender, m.Text)
}
