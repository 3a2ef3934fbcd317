// Copyright 2024-2026 Aiku AI

package irc

import (
	"context"
	"sync"
)

// Readiness is the "handshake complete, sends permitted" signal. Only
// the connection supervisor sets or clears it; everyone else gets a
// read-only view through Ready and Wait.
type Readiness struct {
	mu    sync.Mutex
	ready bool
	wait  chan struct{}
}

// NewReadiness creates a cleared signal.
func NewReadiness() *Readiness {
	return &Readiness{wait: make(chan struct{})}
}

// Set marks the signal ready, waking all waiters.
func (r *Readiness) Set() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.ready {
		r.ready = true
		close(r.wait)
	}
}

// Clear marks the signal not ready.
func (r *Readiness) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ready {
		r.ready = false
		r.wait = make(chan struct{})
	}
}

// Ready reports the current state without blocking.
func (r *Readiness) Ready() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ready
}

// Wait blocks until the signal is ready or ctx is done.
func (r *Readiness) Wait(ctx context.Context) error {
	for {
		r.mu.Lock()
		ready, wait := r.ready, r.wait
		r.mu.Unlock()
		if ready {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-wait:
		}
	}
}
