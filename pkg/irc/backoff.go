// Copyright 2024-2026 Aiku AI

package irc

import (
	"math"
	"math/rand/v2"
	"time"
)

// Reconnect backoff. The original behavior for this kind of relay is an
// immediate retry with no delay, which turns a permanently unreachable
// server into a tight connect loop. This engine deliberately deviates:
// capped exponential backoff with jitter, reset after a session that
// reached readiness.
const (
	backoffInitial    = time.Second
	backoffMultiplier = 2.0
	backoffMax        = 30 * time.Second
)

// nextBackoffDelay returns the reconnect delay for attempt N (1-based),
// jittered to between 50% and 150% of the nominal value.
func nextBackoffDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := float64(backoffInitial) * math.Pow(backoffMultiplier, float64(attempt-1))
	if delay > float64(backoffMax) {
		delay = float64(backoffMax)
	}
	delay *= 0.5 + rand.Float64()
	return time.Duration(delay)
}
