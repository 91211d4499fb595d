// SPDX-License-Identifier: GPL-3.0-or-later
//
// Grounded on flows.py's iperf_flow.__init__/start/stop/is_traffic
// (C3, spec.md §4.3). Port auto-allocation replaces the source's
// class-level `iperf_flow.port` counter with an explicit, injectable
// counter so tests don't share global mutable state.

package flowfleet

import (
	"context"
	"fmt"
)

// FlowConfig declares a flow's identity, network parameters, and
// tuning knobs (spec.md §3's Flow data model, minus its two endpoint
// controllers and stats record, which [*Flow] owns directly).
type FlowConfig struct {
	Name string

	Server, Client string // hosts
	User            string
	Proto           Proto
	Dst             string // sender's destination address
	TOS             TOS
	Port            int // auto-allocated by NewFlow

	Interval    float64 // seconds
	Duration    int     // seconds
	OfferedLoad string
	Window      string
}

// basePort is the first port handed out by [*PortAllocator], matching
// spec.md §3's "monotonic fleet-wide counter starting at 61001"
// (the source's class-level counter starts at 61000 and is
// pre-incremented before first use, landing on 61001 for the first
// flow).
const basePort = 61001

// PortAllocator hands out strictly monotonic ports across flow
// constructions within one process (spec.md §8, property 7).
//
// PortAllocator is safe for concurrent use.
type PortAllocator struct {
	next int
}

// NewPortAllocator returns a [*PortAllocator] starting at basePort.
func NewPortAllocator() *PortAllocator {
	return &PortAllocator{next: basePort}
}

// Next returns the next port and advances the counter.
func (a *PortAllocator) Next() int {
	port := a.next
	a.next++
	return port
}

// Flow pairs a receiver and sender [*EndpointController] sharing one
// [*FlowStats] record (spec.md §3, §4.3).
type Flow struct {
	id FlowID

	cfg   *FlowConfig
	stats *FlowStats

	Receiver *EndpointController
	Sender   *EndpointController
}

// NewFlow constructs a flow from cfg, allocating its port from
// ports and building its paired endpoint controllers. It does not
// register the flow; callers add it to a [*Registry] explicitly.
func NewFlow(cfg *Config, ports *PortAllocator, fc *FlowConfig) *Flow {
	fc.Port = ports.Next()
	stats := NewFlowStats()

	f := &Flow{
		cfg:   fc,
		stats: stats,
	}
	f.Receiver = NewReceiverController(cfg, fmt.Sprintf("%s->RX(%s)", fc.Name, fc.Server), fc, stats)
	f.Sender = NewSenderController(cfg, fmt.Sprintf("%s->TX(%s)", fc.Name, fc.Client), fc, stats)
	return f
}

// ID returns the flow's registry handle, or 0 if it has not been
// added to a [*Registry].
func (f *Flow) ID() FlowID { return f.id }

// Name returns the flow's configured name.
func (f *Flow) Name() string { return f.cfg.Name }

// Stats returns the flow's shared stats record.
func (f *Flow) Stats() *FlowStats { return f.stats }

// HistogramNames returns the flow's accumulated histogram names.
func (f *Flow) HistogramNames() []string { return f.stats.HistogramNames() }

// Histograms returns the flow's accumulated histograms.
func (f *Flow) Histograms() []*Histogram { return f.stats.Histograms() }

// Start launches the receiver, then the sender (order matters: the
// receiver must be listening before the sender connects, per spec.md
// §4.3 and §5's ordering guarantees).
func (f *Flow) Start(ctx context.Context) error {
	if err := f.Receiver.Start(ctx); err != nil {
		return fmt.Errorf("flowfleet: starting receiver for flow %q: %w", f.Name(), err)
	}
	if err := f.Sender.Start(ctx); err != nil {
		return fmt.Errorf("flowfleet: starting sender for flow %q: %w", f.Name(), err)
	}
	return nil
}

// Abort kills both endpoint controllers' subprocesses immediately,
// without the graceful remote-signal handshake SignalStop performs.
// Intended for the cleanup path spec.md §5 calls for after a
// coordinator phase times out (see [Coordinator.Run]).
func (f *Flow) Abort() {
	f.Receiver.Abort()
	f.Sender.Abort()
}

// Stop signals both endpoint controllers to stop.
func (f *Flow) Stop(ctx context.Context) error {
	if err := f.Sender.SignalStop(ctx); err != nil {
		return err
	}
	return f.Receiver.SignalStop(ctx)
}

// IsTraffic clears both endpoints' traffic events and waits for both
// to be set again, confirming the remote processes are emitting
// samples. If the configured sampling interval is below 5ms the check
// is skipped (sub-interval sampling makes the wait meaningless).
func (f *Flow) IsTraffic(ctx context.Context) error {
	if f.cfg.Interval < 0.005 {
		return nil
	}
	f.Receiver.trafficEvent.Clear()
	f.Sender.trafficEvent.Clear()
	if err := f.Receiver.trafficEvent.Wait(ctx); err != nil {
		return err
	}
	return f.Sender.trafficEvent.Wait(ctx)
}

// Hosts returns the flow's distinct participating hosts (server and
// client, deduplicated if equal). Used by the coordinator's preclean
// phase.
func (f *Flow) Hosts() []string {
	if f.cfg.Server == f.cfg.Client {
		return []string{f.cfg.Server}
	}
	return []string{f.cfg.Server, f.cfg.Client}
}
