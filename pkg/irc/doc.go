// Copyright 2024-2026 Aiku AI

// Package irc implements the hand-rolled IRC client engine of the relay.
//
// The engine is built from small pieces: pure framing functions (line
// splitting, decoding with a legacy-charset fallback, chat-line parsing),
// a resettable silence watchdog, a transport wrapper with serialized
// writes, and a connection supervisor that runs the registration
// handshake and receive loop, reconnecting with capped backoff on any
// failure. Inbound channel messages are formatted and pushed toward the
// Matrix side; text popped from the opposite queue is chunked to the
// protocol's line limit and sent once the connection is ready.
package irc
