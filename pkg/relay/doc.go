// Copyright 2024-2026 Aiku AI

// Package relay holds the pieces shared by both protocol engines: the
// relay queues that carry formatted text between them, the chat message
// model, and the process configuration.
//
// Each engine is the sole reader of one queue and the sole writer of the
// other. Strings on a queue are already fully formatted for their
// destination, so an engine only has to frame and send what it pops.
package relay
