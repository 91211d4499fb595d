// SPDX-License-Identifier: GPL-3.0-or-later

package flowfleet

import (
	"bytes"
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEndpointProcess is a [Process] test double backed by in-memory
// pipes, so tests never shell out.
type fakeEndpointProcess struct {
	stdout *bytes.Buffer
	stderr *bytes.Buffer
	waitCh chan struct{}
	killed bool
}

func newFakeEndpointProcess(stdout string) *fakeEndpointProcess {
	return &fakeEndpointProcess{
		stdout: bytes.NewBufferString(stdout),
		stderr: bytes.NewBufferString(""),
		waitCh: make(chan struct{}),
	}
}

func (p *fakeEndpointProcess) Stdout() io.Reader { return p.stdout }
func (p *fakeEndpointProcess) Stderr() io.Reader { return p.stderr }
func (p *fakeEndpointProcess) Pid() int          { return 4242 }
func (p *fakeEndpointProcess) Wait() error {
	<-p.waitCh
	return nil
}
func (p *fakeEndpointProcess) Kill() error {
	p.killed = true
	close(p.waitCh)
	return nil
}

// fakeRunner is a [Runner] test double that returns a preconfigured
// process and records Run invocations (used to assert signal delivery
// without shelling out).
type fakeRunner struct {
	mu       sync.Mutex
	proc     *fakeEndpointProcess
	runCalls [][]string
}

func (r *fakeRunner) Start(ctx context.Context, argv []string) (Process, error) {
	return r.proc, nil
}

func (r *fakeRunner) Run(ctx context.Context, argv []string) ([]byte, error) {
	r.mu.Lock()
	r.runCalls = append(r.runCalls, argv)
	r.mu.Unlock()
	return []byte("ok"), nil
}

func (r *fakeRunner) calls() [][]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]string{}, r.runCalls...)
}

func testFlowConfig() *FlowConfig {
	return &FlowConfig{
		Name:     "A",
		Server:   "rx.example",
		Client:   "tx.example",
		User:     "op",
		Proto:    ProtoTCP,
		Dst:      "127.0.0.1",
		TOS:      TOSBestEffort,
		Port:     61003,
		Interval: 0.5,
		Duration: 2,
		Window:   "150K",
	}
}

func TestEndpointControllerStartAwaitsOpenBanner(t *testing.T) {
	fc := testFlowConfig()
	proc := newFakeEndpointProcess("Server listening on TCP port 61003 with pid 2565\n")
	defer proc.Kill()

	cfg := NewConfig()
	cfg.Runner = &fakeRunner{proc: proc}
	cfg.Logger = DefaultSLogger()

	stats := NewFlowStats()
	ec := NewReceiverController(cfg, "A->RX", fc, stats)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, ec.Start(ctx))
	assert.Equal(t, "2565", ec.RemotePid())
	assert.Equal(t, StateRunning, ec.State())
}

func TestEndpointControllerStartIsIdempotentWhileRunning(t *testing.T) {
	fc := testFlowConfig()
	proc := newFakeEndpointProcess("Server listening on TCP port 61003 with pid 2565\n")
	t.Cleanup(func() { proc.Kill() })

	cfg := NewConfig()
	cfg.Runner = &fakeRunner{proc: proc}

	stats := NewFlowStats()
	ec := NewReceiverController(cfg, "A->RX", fc, stats)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, ec.Start(ctx))
	require.NoError(t, ec.Start(ctx)) // still closed==false, so idempotent no-op
}

// Start emits a span-correlated endpointStart/endpointDone pair carrying
// the documented flow/host/span/err/errClass field set, and every debug
// pipe-read logged in between (via the wired PipeObserverFunc) shares the
// same flow/host identity.
func TestEndpointControllerStartEmitsSpanCorrelatedLog(t *testing.T) {
	fc := testFlowConfig()
	proc := newFakeEndpointProcess("Server listening on TCP port 61003 with pid 2565\n")
	defer proc.Kill()

	logger, records := newCapturingLogger()

	cfg := NewConfig()
	cfg.Runner = &fakeRunner{proc: proc}
	cfg.Logger = logger

	stats := NewFlowStats()
	ec := NewReceiverController(cfg, "A->RX", fc, stats)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, ec.Start(ctx))

	require.Eventually(t, func() bool {
		for _, r := range *records {
			if r.Message == "endpointDone" {
				return true
			}
		}
		return false
	}, time.Second, time.Millisecond)

	var startSpan, doneSpan string
	for _, r := range *records {
		switch r.Message {
		case "endpointStart":
			startSpan = recordAttr(r, "span")
			assert.Equal(t, "A->RX", recordAttr(r, "flow"))
			assert.Equal(t, "rx.example", recordAttr(r, "host"))
		case "endpointDone":
			doneSpan = recordAttr(r, "span")
		case "pipeRead":
			assert.Equal(t, "A->RX", recordAttr(r, "flow"))
		}
	}
	require.NotEmpty(t, startSpan)
	assert.Equal(t, startSpan, doneSpan)
}

func TestEndpointControllerHandlesReceiverTrafficSample(t *testing.T) {
	fc := testFlowConfig()
	banner := "Server listening on TCP port 61003 with pid 2565\n"
	traffic := "[  4] 0.00-0.50 sec  657090 Bytes  10513440 bits/sec  449\n"
	proc := newFakeEndpointProcess(banner + traffic)
	defer proc.Kill()

	cfg := NewConfig()
	cfg.Runner = &fakeRunner{proc: proc}

	stats := NewFlowStats()
	ec := NewReceiverController(cfg, "A->RX", fc, stats)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, ec.Start(ctx))

	require.Eventually(t, func() bool {
		return stats.RxLen() == 1
	}, time.Second, 5*time.Millisecond)
}

func TestEndpointControllerHandlesPDFLine(t *testing.T) {
	fc := testFlowConfig()
	fc.Proto = ProtoUDP
	banner := "Server listening on UDP port 61003 with pid 2565\n"
	pdf := "[  3] 0.00-21.79 sec T8(f)-PDF: bin(w=10us):cnt(3)=223:1,240:1,241:1 (5/95%=117/144,obl/obu=0/0)\n"
	proc := newFakeEndpointProcess(banner + pdf)
	defer proc.Kill()

	cfg := NewConfig()
	cfg.Runner = &fakeRunner{proc: proc}

	stats := NewFlowStats()
	ec := NewReceiverController(cfg, "A->RX", fc, stats)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, ec.Start(ctx))

	require.Eventually(t, func() bool {
		return len(stats.Histograms()) == 1
	}, time.Second, 5*time.Millisecond)

	names := stats.HistogramNames()
	require.Len(t, names, 1)
	assert.Equal(t, "T8", names[0])
}

func TestEndpointControllerSignalStopIsNoopWithoutRemotePid(t *testing.T) {
	fc := testFlowConfig()
	cfg := NewConfig()
	runner := &fakeRunner{}
	cfg.Runner = runner

	stats := NewFlowStats()
	ec := NewReceiverController(cfg, "A->RX", fc, stats)

	require.NoError(t, ec.SignalStop(context.Background()))
	assert.Empty(t, runner.calls())
}

func TestEndpointControllerSignalStopSendsHUPForReceiver(t *testing.T) {
	fc := testFlowConfig()
	proc := newFakeEndpointProcess("Server listening on TCP port 61003 with pid 2565\n")

	cfg := NewConfig()
	runner := &fakeRunner{proc: proc}
	cfg.Runner = runner

	stats := NewFlowStats()
	ec := NewReceiverController(cfg, "A->RX", fc, stats)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, ec.Start(ctx))

	stopDone := make(chan error, 1)
	go func() { stopDone <- ec.SignalStop(context.Background()) }()

	require.Eventually(t, func() bool { return len(runner.calls()) > 0 }, time.Second, 5*time.Millisecond)
	proc.Kill() // simulate the remote process exiting, closing all three flags

	select {
	case err := <-stopDone:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("SignalStop did not return")
	}

	calls := runner.calls()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0][2], "-HUP")
}

func TestEndpointControllerSignalStopSendsINTForSender(t *testing.T) {
	fc := testFlowConfig()
	proc := newFakeEndpointProcess("Client connecting to 127.0.0.1, TCP port 61003 with pid 1903\n")

	cfg := NewConfig()
	runner := &fakeRunner{proc: proc}
	cfg.Runner = runner

	stats := NewFlowStats()
	ec := NewSenderController(cfg, "A->TX", fc, stats)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, ec.Start(ctx))

	stopDone := make(chan error, 1)
	go func() { stopDone <- ec.SignalStop(context.Background()) }()

	require.Eventually(t, func() bool { return len(runner.calls()) > 0 }, time.Second, 5*time.Millisecond)
	proc.Kill()

	select {
	case err := <-stopDone:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("SignalStop did not return")
	}

	calls := runner.calls()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0][2], "-INT")
}

func TestEndpointControllerAbortKillsRunningProcess(t *testing.T) {
	fc := testFlowConfig()
	proc := newFakeEndpointProcess("Server listening on TCP port 61003 with pid 7\n")

	cfg := NewConfig()
	cfg.Runner = &fakeRunner{proc: proc}

	stats := NewFlowStats()
	ec := NewReceiverController(cfg, "A->RX", fc, stats)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, ec.Start(ctx))

	ec.Abort()
	assert.True(t, proc.killed)
}

func TestEndpointControllerAbortBeforeStartIsNoop(t *testing.T) {
	fc := testFlowConfig()
	cfg := NewConfig()
	cfg.Runner = &fakeRunner{}

	ec := NewReceiverController(cfg, "A->RX", fc, NewFlowStats())
	ec.Abort() // must not panic when no subprocess has been spawned
}
