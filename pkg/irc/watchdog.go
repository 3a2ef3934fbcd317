// Copyright 2024-2026 Aiku AI

package irc

import (
	"sync"
	"time"
)

// Watchdog is a resettable deadline that abandons a stalled connection.
// Arm replaces any previously armed deadline atomically: once Arm or
// Cancel returns, an older deadline can no longer fire. At most one
// deadline is live at a time, and an expiry callback runs at most once
// per Arm.
type Watchdog struct {
	mu    sync.Mutex
	gen   uint64
	timer *time.Timer
}

// Arm starts (or restarts) the deadline. After d elapses without another
// Arm or Cancel, onExpire is called once.
func (w *Watchdog) Arm(d time.Duration, onExpire func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.gen++
	gen := w.gen
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(d, func() {
		w.mu.Lock()
		live := gen == w.gen
		w.mu.Unlock()
		if live {
			onExpire()
		}
	})
}

// Cancel disarms the deadline without firing it.
func (w *Watchdog) Cancel() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.gen++
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
}
