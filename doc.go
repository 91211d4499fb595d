// SPDX-License-Identifier: GPL-3.0-or-later

// Package flowfleet orchestrates distributed network-throughput experiments.
//
// # Core Abstraction
//
// The package is built around a single interface:
//
//	type Func[A, B any] interface {
//		Call(ctx context.Context, input A) (B, error)
//	}
//
// Each Func represents an atomic operation with exactly one success mode
// and one failure mode. This design enables type-safe composition via
// [Compose2], [Compose3], etc., where the compiler verifies that outputs
// match inputs across pipeline stages.
//
// # Available Primitives
//
// Fleet orchestration:
//   - [Registry]: dense-handle bookkeeping of live [*Flow] values
//   - [Coordinator]: staged, timeout-bounded start/stop/plot across a fleet
//   - [Flow]: a sender/receiver traffic pair and its [*FlowStats]
//   - [EndpointController]: owns one remote measurement subprocess
//   - [CancelWatchFunc]: kills a subprocess on context cancellation
//
// Protocol parsing:
//   - [LineParser]: buffers subprocess pipe bytes, emits classified lines
//   - [PipeObserverFunc]: wraps a pipe for logging I/O at debug level
//
// Histograms and comparison:
//   - [Histogram]: parses a PDF bin-list, computes entropy, renders plots
//   - [Comparator]: pairwise KS distances and Ward-linkage clustering
//
// Composition utilities:
//   - [Compose2] and [Compose3]: chain Funcs into pipelines
//   - [FuncAdapter]: wrap a function as a Func for ad-hoc custom behavior
//   - [Apply]: bind a fixed input to a Func
//   - [ConstFunc]: lift a pure value into a Func
//
// These compose freely for callers who want to splice custom stages into
// a fleet operation; flowfleet's own staged run does not depend on them.
//
// # Observability
//
// All primitives support structured logging via [SLogger] (compatible
// with [log/slog]).
//
// By default, logging is disabled. Set [Config.Logger] to a custom
// [*slog.Logger] to enable logging. Error classification is configurable
// via [ErrClassifier]; [DefaultErrClassifier] labels timeouts, spawn
// failures, histogram parse misses, and subprocess exit errors, falling
// back to "generic" for everything else.
//
// Primitives emit two kinds of structured log events:
//
//   - Span events: Record operation lifecycle including timing and
//     success/failure — subprocess spawns (endpointStart/endpointDone),
//     signal delivery (endpointSignal), run outcomes and phase failures
//     (coordinatorRunDone, coordinatorPhaseFailed), preclean commands
//     (coordinatorPrecleanHost), and plotter invocations (plotDone).
//
//   - Line observations (endpointOpened, endpointHistogramObserved,
//     endpointUnclassifiedLine, endpointStderr, pipeRead): Capture the
//     remote-process output for debugging the parser.
//
// The [SLogger] interface accepts any slog-compatible handler, enabling
// flexible post-processing.
//
// The endpoint span events carry flow, host, and t (timestamp);
// endpointDone and endpointSignal additionally include t0 (start time),
// err, and errClass. The coordinator and plot events carry err and
// errClass alongside their own identifying fields (span, phase, host,
// controlFile) instead of flow.
//
// [Coordinator] generates a [NewSpanID] (a unique, time-ordered UUIDv7)
// once per Run, Stop, Preclean, or Plot call, shared by every phase of
// that call, and [EndpointController] generates one per Start call. The
// ID is attached as an explicit "span" field to the coordinator's run and
// phase-failure events and to the endpoint's start, done, signal, and
// opened events, enabling correlation across pipeline stages. [SLogger] has
// no [*slog.Logger.With] method; callers who do hold a concrete
// [*slog.Logger] may call With themselves to bind a span once instead of
// repeating it.
//
// # Timeout and Context Philosophy
//
// Every coordinated phase is bounded by a deadline applied via
// [context.WithTimeout] before fanning out across flows (see the phase
// table in spec.md §4.4). Individual primitives are context-transparent:
// they never extend the deadline they are given. Callers composing their
// own one-shot pipeline around a [Process] can wrap it with
// [*CancelWatchFunc] to have it killed the instant its context is done;
// [EndpointController] does not use this, since its exit reaper calls
// Wait immediately after spawn and would disarm the watcher before a
// later cancellation could matter.
//
// IMPORTANT: a phase timeout is fatal and surfaces to the caller. Unlike
// [Coordinator.Stop], which signals a graceful remote shutdown,
// [Coordinator.Run] reacts to a failed phase by calling [Flow.Abort] on
// every flow passed to it, killing any subprocess already spawned by
// that run before returning the error (see spec.md §5, §9).
//
// # Design Boundaries
//
// This package implements the concurrent orchestration and parsing core.
// It intentionally does not implement: the measurement tool itself, the
// remote-shell transport, the plotting backend, or the filesystem used to
// stage data files — these are external collaborators, invoked as
// subprocesses.
package flowfleet
