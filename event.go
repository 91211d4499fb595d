// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: the scheduling model described by spec.md §5 — a single
// asyncio.Event per signal (opened, closed, trafficEvent) in the source.
// Go has no cooperative single-threaded loop, so each signal is backed by
// a small channel-based latch safe for concurrent Set/Clear/Wait.

package flowfleet

import (
	"context"
	"sync"
)

// Event is a level-triggered signal modeled on Python's asyncio.Event:
// it is either set or clear, and any number of callers may wait for it
// to become set. It is safe for concurrent use.
//
// The zero value is a clear Event ready to use.
type Event struct {
	mu sync.Mutex
	ch chan struct{}
}

// NewEvent returns a clear [*Event].
func NewEvent() *Event {
	return &Event{ch: make(chan struct{})}
}

func (e *Event) channel() chan struct{} {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ch == nil {
		e.ch = make(chan struct{})
	}
	return e.ch
}

// Set marks the event as set, waking all current and future waiters
// until the next Clear. Set is idempotent.
func (e *Event) Set() {
	ch := e.channel()
	select {
	case <-ch:
		// already set
	default:
		close(ch)
	}
}

// Clear marks the event as clear. Waiters already woken by a prior Set
// are unaffected; Wait calls starting after Clear block again until the
// next Set.
func (e *Event) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()
	select {
	case <-e.ch:
		e.ch = make(chan struct{})
	default:
		// already clear
	}
}

// IsSet reports whether the event is currently set.
func (e *Event) IsSet() bool {
	ch := e.channel()
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

// Wait blocks until the event is set or ctx is done, whichever happens
// first.
func (e *Event) Wait(ctx context.Context) error {
	ch := e.channel()
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
