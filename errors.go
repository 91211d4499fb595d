// SPDX-License-Identifier: GPL-3.0-or-later

package flowfleet

import "errors"

// Sentinel errors for the error kinds spec.md §7 distinguishes as the
// externally visible failure modes of the coordinator. Parse misses and
// per-sample anomalies are logged and tolerated instead of returned.
var (
	// ErrPhaseTimeout is returned when a coordinated phase (preclean,
	// receivers start, senders start, traffic confirmation, senders stop,
	// receivers stop) does not complete within its budget.
	ErrPhaseTimeout = errors.New("flowfleet: phase timed out")

	// ErrSpawnFailed is returned when the remote-shell transport or the
	// plotter could not be launched as a subprocess.
	ErrSpawnFailed = errors.New("flowfleet: failed to spawn subprocess")

	// ErrUnknownTOS is returned by [ParseTOS] for a spelling it does not
	// recognize. [TxtToTOSHex] reports the same case as ("", false), and
	// [SenderArgv] then passes an empty -S value to the remote command.
	ErrUnknownTOS = errors.New("flowfleet: unknown differentiated-services label")

	// ErrNoHandle is returned by the [Registry] when asked to operate on
	// a [FlowID] that is not currently registered.
	ErrNoHandle = errors.New("flowfleet: no such flow handle")

	// ErrDegenerateHistogram is returned by [WriteControlFile] and
	// [WriteThumbnailControlFile] when called on a histogram whose
	// 98th-percentile threshold was never crossed (spec.md §7).
	ErrDegenerateHistogram = errors.New("flowfleet: histogram has no plottable max")

	// ErrHistogramParseMiss is wrapped by [ParseHistogram] when a PDF
	// line's bin list does not match the "index:count" grammar. Logged
	// and swallowed by the endpoint controller (spec.md §7's policy for
	// per-sample anomalies), never returned to the coordinator.
	ErrHistogramParseMiss = errors.New("flowfleet: histogram bin parse miss")
)
