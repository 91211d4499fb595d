// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from cancelwatch.go's net.Conn cancellation watcher: the same
// context.AfterFunc pattern, rebound to a [Process] instead of a net.Conn.

package flowfleet

import "context"

// NewCancelWatchFunc returns a new [*CancelWatchFunc].
func NewCancelWatchFunc() *CancelWatchFunc {
	return &CancelWatchFunc{}
}

// CancelWatchFunc arranges for a subprocess to be killed when the context
// is done (cancelled or deadline exceeded), so a caller's one-shot
// pipeline around a [Process] stops when its deadline fires.
// [EndpointController] does not use it.
//
// The returned [Process] wraps the input. Waiting on the returned value
// unregisters the context watcher before delegating to the underlying
// process's Wait.
type CancelWatchFunc struct{}

var _ Func[Process, Process] = &CancelWatchFunc{}

// Call registers a context watcher using [context.AfterFunc] that kills
// the process when the context is done.
func (op *CancelWatchFunc) Call(ctx context.Context, proc Process) (Process, error) {
	stop := context.AfterFunc(ctx, func() {
		proc.Kill()
	})
	return &cancelWatchedProcess{Process: proc, stop: stop}, nil
}

// cancelWatchedProcess wraps a [Process] with a context cancellation watcher.
type cancelWatchedProcess struct {
	Process
	stop func() bool
}

// Wait unregisters the context watcher and waits on the underlying process.
func (c *cancelWatchedProcess) Wait() error {
	c.stop()
	return c.Process.Wait()
}
