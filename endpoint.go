// SPDX-License-Identifier: GPL-3.0-or-later
//
// Grounded on flows.py's iperf_server/iperf_client and their nested
// IperfServerProtocol/IperfClientProtocol (C2, spec.md §3, §4.2). The
// lifecycle state machine and three-flag termination gate are
// preserved; dynamic attribute forwarding ("flow_scope") is replaced
// by the explicit *FlowStats reference per spec.md §9.

package flowfleet

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"
)

// EndpointState is a position in the lifecycle state machine described
// in spec.md §4.2.
type EndpointState int

const (
	StateIdle EndpointState = iota
	StateLaunching
	StateRunning
	StateStopping
)

func (s EndpointState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLaunching:
		return "launching"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// EndpointController owns one remote subprocess and drives its
// lifecycle (spec.md §3's EndpointController data model). The two
// variants (receiver, sender) share this type; role-specific behavior
// (open/traffic regex selection, which signal stops it) is carried by
// the embedded [*LineParser] and a stop signal string.
type EndpointController struct {
	cfg   *Config
	name  string
	role  Role
	fc    *FlowConfig
	stats *FlowStats

	stopSignal string

	opened       *Event
	closed       *Event
	trafficEvent *Event

	// mu guards every field below, since pump, awaitExit, and the
	// Start/SignalStop callers run on different goroutines (spec.md §5
	// directs protecting shared mutable state with a mutex in a
	// parallel-threaded implementation, unlike the source's
	// single-threaded event loop).
	mu sync.Mutex

	proc      Process
	remotePid string
	span      string

	closedStdout bool
	closedStderr bool
	exited       bool

	state EndpointState
}

func newEndpointController(cfg *Config, name string, role Role, stopSignal string, fc *FlowConfig, stats *FlowStats) *EndpointController {
	e := &EndpointController{
		cfg:          cfg,
		name:         name,
		role:         role,
		fc:           fc,
		stats:        stats,
		stopSignal:   stopSignal,
		opened:       NewEvent(),
		closed:       NewEvent(),
		trafficEvent: NewEvent(),
		state:        StateIdle,
	}
	e.closed.Set()
	return e
}

// NewReceiverController returns an [*EndpointController] for the
// receiver side of fc, sharing stats.
func NewReceiverController(cfg *Config, name string, fc *FlowConfig, stats *FlowStats) *EndpointController {
	return newEndpointController(cfg, name, RoleReceiver, SigReceiverStop, fc, stats)
}

// NewSenderController returns an [*EndpointController] for the sender
// side of fc, sharing stats.
func NewSenderController(cfg *Config, name string, fc *FlowConfig, stats *FlowStats) *EndpointController {
	return newEndpointController(cfg, name, RoleSender, SigSenderStop, fc, stats)
}

// State returns the controller's current lifecycle state.
func (e *EndpointController) State() EndpointState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// RemotePid returns the currently known remote process id, or "" if
// unknown (not opened, or closed).
func (e *EndpointController) RemotePid() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.remotePid
}

// currentSpan returns the span ID of the controller's most recent
// Start, correlating every log line emitted during that lifecycle.
func (e *EndpointController) currentSpan() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.span
}

// host returns the remote host this controller's subprocess talks to:
// the server for a receiver, the client for a sender.
func (e *EndpointController) host() string {
	if e.role == RoleReceiver {
		return e.fc.Server
	}
	return e.fc.Client
}

// Start launches the remote subprocess if currently closed (idempotent
// per spec.md §4.2: if not closed, returns immediately). Blocks until
// the open banner is observed or ctx is done.
func (e *EndpointController) Start(ctx context.Context) error {
	if !e.closed.IsSet() {
		return nil
	}

	span := NewSpanID()
	e.mu.Lock()
	e.span = span
	e.mu.Unlock()

	e.opened.Clear()
	e.mu.Lock()
	e.remotePid = ""
	e.closedStdout = false
	e.closedStderr = false
	e.exited = false
	e.state = StateLaunching
	e.mu.Unlock()

	iperftime := e.fc.Duration + 30
	var argv []string
	if e.role == RoleReceiver {
		argv = ReceiverArgv(e.cfg, e.fc, iperftime)
	} else {
		argv = SenderArgv(e.cfg, e.fc, iperftime)
	}

	t0 := e.cfg.TimeNow()
	e.cfg.Logger.Info("endpointStart",
		"flow", e.name, "host", e.host(), "span", span, "t", t0, "argv", argv)

	proc, err := e.cfg.Runner.Start(ctx, argv)
	if err != nil {
		err = fmt.Errorf("%w: %v", ErrSpawnFailed, err)
		e.cfg.Logger.Info("endpointDone",
			"flow", e.name, "host", e.host(), "span", span,
			"err", err, "errClass", e.cfg.ErrClassifier.Classify(err),
			"t0", t0, "t", e.cfg.TimeNow())
		return err
	}
	e.mu.Lock()
	e.proc = proc
	e.mu.Unlock()
	e.closed.Clear()

	stdout, _ := NewPipeObserverFunc(e.cfg, e.cfg.Logger, e.name, e.host(), "stdout").Call(ctx, proc.Stdout())
	stderr, _ := NewPipeObserverFunc(e.cfg, e.cfg.Logger, e.name, e.host(), "stderr").Call(ctx, proc.Stderr())

	parser := NewLineParser(e.role, e.fc.Proto, e.fc.Port)
	go e.pump(stdout, parser, true)
	go e.pump(stderr, nil, false)
	go e.awaitExit()

	err = e.opened.Wait(ctx)
	e.cfg.Logger.Info("endpointDone",
		"flow", e.name, "host", e.host(), "span", span,
		"err", err, "errClass", e.cfg.ErrClassifier.Classify(err),
		"t0", t0, "t", e.cfg.TimeNow())
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.state = StateRunning
	e.mu.Unlock()
	return nil
}

// pump reads chunk-by-chunk from r (stdout when parser != nil, stderr
// otherwise), feeding complete lines to parser and/or logging them.
func (e *EndpointController) pump(r io.Reader, parser *LineParser, isStdout bool) {
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			if parser != nil {
				for _, line := range parser.Feed(buf[:n]) {
					e.handleLine(line)
				}
			} else {
				e.cfg.Logger.Info("endpointStderr", "flow", e.name, "host", e.host(), "line", string(buf[:n]))
			}
		}
		if err != nil {
			e.mu.Lock()
			if isStdout {
				e.closedStdout = true
			} else {
				e.closedStderr = true
			}
			e.mu.Unlock()
			e.maybeSignalExit()
			return
		}
	}
}

func (e *EndpointController) awaitExit() {
	var proc Process
	e.mu.Lock()
	proc = e.proc
	e.mu.Unlock()
	if proc != nil {
		proc.Wait()
	}
	e.mu.Lock()
	e.exited = true
	e.mu.Unlock()
	e.maybeSignalExit()
}

// maybeSignalExit transitions to closed once all three termination
// flags (stdout, stderr, process-exit) are observed (spec.md §3's
// invariant: "closed implies remotePid is cleared and all three
// termination flags are set").
func (e *EndpointController) maybeSignalExit() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.exited && e.closedStdout && e.closedStderr {
		e.remotePid = ""
		e.closed.Set()
		e.opened.Clear()
		e.state = StateIdle
	}
}

// Abort kills the subprocess immediately, regardless of lifecycle
// state. This is the cleanup path spec.md §5 says callers are expected
// to invoke after a coordinator phase times out and leaves a
// subprocess spawned but unreaped.
func (e *EndpointController) Abort() {
	e.mu.Lock()
	proc := e.proc
	e.mu.Unlock()
	if proc != nil {
		proc.Kill()
	}
}

func (e *EndpointController) handleLine(line ClassifiedLine) {
	switch line.Kind {
	case LineOpen:
		e.mu.Lock()
		e.remotePid = line.Pid
		e.mu.Unlock()
		if e.role == RoleSender {
			e.stats.SetStartTime(time.Now())
		}
		e.opened.Set()
		e.cfg.Logger.Info("endpointOpened", "flow", e.name, "host", e.host(), "span", e.currentSpan(), "pid", line.Pid)
	case LineTraffic:
		e.handleTraffic(line)
	case LinePDF:
		e.handlePDF(line)
	default:
		e.cfg.Logger.Debug("endpointUnclassifiedLine", "flow", e.name, "host", e.host(), "text", line.Text)
	}
}

func (e *EndpointController) handleTraffic(line ClassifiedLine) {
	e.trafficEvent.Set()

	bytesVal, err := strconv.ParseFloat(line.Bytes, 64)
	if err != nil {
		return
	}
	throughput, _ := strconv.ParseFloat(line.Throughput, 64)
	now := time.Now()

	if e.role == RoleReceiver {
		reads, _ := strconv.Atoi(line.Reads)
		e.stats.ObserveReceiverSample(now, bytesVal, throughput, reads)
		return
	}

	writes, _ := strconv.Atoi(line.Writes)
	errWrites, _ := strconv.Atoi(line.ErrWrites)
	retry, _ := strconv.Atoi(line.Retry)
	cwnd, _ := strconv.Atoi(line.CWnd)
	rtt, _ := strconv.Atoi(line.RTT)
	e.stats.ObserveSenderSample(now, bytesVal, throughput, writes, errWrites, retry, cwnd, rtt)
}

func (e *EndpointController) handlePDF(line ClassifiedLine) {
	population, err := strconv.Atoi(line.Population)
	if err != nil {
		return
	}
	binWidth, err := strconv.Atoi(line.BinWidth)
	if err != nil {
		return
	}
	h, err := ParseHistogram(line.PDFName, population, binWidth, line.PDF, e.stats.StartTime(), time.Now())
	if err != nil {
		e.cfg.Logger.Info("endpointHistogramParseFailed",
			"flow", e.name, "host", e.host(), "err", err, "errClass", e.cfg.ErrClassifier.Classify(err))
		return
	}
	e.stats.AppendHistogram(h)
	e.cfg.Logger.Info("endpointHistogramObserved",
		"flow", e.name, "host", e.host(), "pdfname", line.PDFName, "binwidth", binWidth)
}

// SignalStop sends this controller's stop signal (HUP for receivers,
// INT for senders) to the remote pid and awaits closed. No-op if the
// remote pid is unknown.
func (e *EndpointController) SignalStop(ctx context.Context) error {
	if e.RemotePid() == "" {
		return nil
	}
	e.mu.Lock()
	e.state = StateStopping
	e.mu.Unlock()
	if err := e.signal(ctx, e.stopSignal); err != nil {
		return err
	}
	return e.closed.Wait(ctx)
}

// SignalPause sends STOP to the remote pid without awaiting state
// change (spec.md §4.2).
func (e *EndpointController) SignalPause(ctx context.Context) error {
	return e.signal(ctx, SigPause)
}

// SignalResume sends CONT to the remote pid without awaiting state
// change.
func (e *EndpointController) SignalResume(ctx context.Context) error {
	return e.signal(ctx, SigResume)
}

func (e *EndpointController) signal(ctx context.Context, sig string) error {
	pid := e.RemotePid()
	if pid == "" {
		return nil
	}
	argv := SignalArgv(e.cfg, e.fc.User, e.host(), sig, pid)
	t0 := e.cfg.TimeNow()
	out, err := e.cfg.Runner.Run(ctx, argv)
	e.cfg.Logger.Info("endpointSignal",
		"flow", e.name, "host", e.host(), "span", e.currentSpan(), "sig", sig, "pid", pid,
		"output", string(out), "err", err, "errClass", e.cfg.ErrClassifier.Classify(err),
		"t0", t0, "t", e.cfg.TimeNow())
	return err
}
