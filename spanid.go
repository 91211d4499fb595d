// SPDX-License-Identifier: GPL-3.0-or-later

package flowfleet

import "github.com/google/uuid"

// NewSpanID returns a UUIDv7 representing a span.
//
// A span is a sequence of operations that can fail in a single, specific
// way — one coordinator operation (Run, Stop, Preclean, Plot) across the
// fleet, or one endpoint controller's start/stop cycle. Attach the span ID to a
// logger with [*slog.Logger.With] so every line from that operation can
// be correlated.
//
// The span terminology is borrowed from OTel.
//
// This function panics if the system random number generator fails,
// which should only happen under extraordinary circumstances.
func NewSpanID() string {
	id, err := uuid.NewV7()
	if err != nil {
		panic(err)
	}
	return id.String()
}
