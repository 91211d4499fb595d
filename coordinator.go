// SPDX-License-Identifier: GPL-3.0-or-later
//
// Grounded on flows.py's iperf_flow.run/stop/plot classmethods (C4,
// spec.md §4.4). Python's `asyncio.wait(tasks, timeout=...)` fan-out is
// replaced by golang.org/x/sync/errgroup plus context.WithTimeout per
// phase, the same fan-out idiom the antler project uses for concurrent
// host operations (see DESIGN.md).

package flowfleet

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
)

// Phase timeouts from spec.md §4.4's table.
const (
	precleanTimeout        = 10 * time.Second
	receiversStartTimeout  = 10 * time.Second
	sendersStartTimeout    = 10 * time.Second
	rampUpDuration         = 300 * time.Millisecond
	trafficConfirmTimeout  = 10 * time.Second
	sendersStopTimeout     = 3 * time.Second
	receiversStopTimeout   = 3 * time.Second
	plotTimeout            = 600 * time.Second
	ksRowPlotTimeout       = 300 * time.Second
)

// Coordinator drives a registry of flows through the staged run
// lifecycle and bulk post-processing (spec.md §2, C4).
type Coordinator struct {
	cfg      *Config
	registry *Registry
}

// NewCoordinator returns a [*Coordinator] operating over registry.
func NewCoordinator(cfg *Config, registry *Registry) *Coordinator {
	return &Coordinator{cfg: cfg, registry: registry}
}

// RunOptions configures one staged-run invocation (spec.md §4.4).
type RunOptions struct {
	// Duration is the run body's sleep time in seconds. It is not passed
	// to the endpoints: each endpoint's iperftime is its own
	// FlowConfig.Duration plus 30.
	Duration int

	// Flows restricts the run to a subset; nil means "all" (the
	// registry-backed equivalent of the source's flows='all').
	Flows []*Flow

	Preclean        bool
	SampleDelay     bool
	ConfirmTraffic  bool
}

func (c *Coordinator) resolveFlows(opts RunOptions) []*Flow {
	if opts.Flows != nil {
		return opts.Flows
	}
	return c.registry.Instances()
}

// Run executes the staged-run operation: optional preclean, receivers
// start, senders start, optional ramp-up sleep, optional traffic
// confirmation, the run body sleep, senders stop, receivers stop. Any
// phase timeout is fatal and returned (spec.md §4.4).
func (c *Coordinator) Run(ctx context.Context, opts RunOptions) error {
	flows := c.resolveFlows(opts)
	span := NewSpanID()
	if len(flows) == 0 {
		c.cfg.Logger.Info("coordinatorRunEmpty", "span", span)
		return nil
	}

	t0 := c.cfg.TimeNow()
	err := c.run(ctx, span, opts, flows)
	c.cfg.Logger.Info("coordinatorRunDone",
		"span", span, "flows", len(flows),
		"err", err, "errClass", c.cfg.ErrClassifier.Classify(err),
		"t0", t0, "t", c.cfg.TimeNow())
	if err != nil {
		// spec.md §5: a timed-out phase leaves already-spawned
		// subprocesses unreaped; Abort is the expected cleanup path.
		for _, f := range flows {
			f.Abort()
		}
		return err
	}
	return nil
}

func (c *Coordinator) run(ctx context.Context, span string, opts RunOptions, flows []*Flow) error {
	if opts.Preclean {
		if err := runPhase(ctx, precleanTimeout, "preclean", hosts(flows), c.precleanHost); err != nil {
			return c.logPhaseErr(span, "preclean", err)
		}
	}

	if err := c.runPhase(ctx, receiversStartTimeout, "receivers start", flows, func(ctx context.Context, f *Flow) error {
		return f.Receiver.Start(ctx)
	}); err != nil {
		return c.logPhaseErr(span, "receivers start", err)
	}

	if err := c.runPhase(ctx, sendersStartTimeout, "senders start", flows, func(ctx context.Context, f *Flow) error {
		return f.Sender.Start(ctx)
	}); err != nil {
		return c.logPhaseErr(span, "senders start", err)
	}

	if opts.SampleDelay {
		c.cfg.Logger.Info("coordinatorRampUpSleep", "span", span)
		select {
		case <-time.After(rampUpDuration):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if opts.ConfirmTraffic {
		if err := c.runPhase(ctx, trafficConfirmTimeout, "traffic confirmation", flows, func(ctx context.Context, f *Flow) error {
			return f.IsTraffic(ctx)
		}); err != nil {
			return c.logPhaseErr(span, "traffic confirmation", err)
		}
	}

	c.cfg.Logger.Info("coordinatorRunBodySleep", "span", span, "duration", opts.Duration)
	select {
	case <-time.After(time.Duration(opts.Duration) * time.Second):
	case <-ctx.Done():
		return ctx.Err()
	}

	if err := c.runPhase(ctx, sendersStopTimeout, "senders stop", flows, func(ctx context.Context, f *Flow) error {
		return f.Sender.SignalStop(ctx)
	}); err != nil {
		return c.logPhaseErr(span, "senders stop", err)
	}

	if err := c.runPhase(ctx, receiversStopTimeout, "receivers stop", flows, func(ctx context.Context, f *Flow) error {
		return f.Receiver.SignalStop(ctx)
	}); err != nil {
		return c.logPhaseErr(span, "receivers stop", err)
	}

	return nil
}

// logPhaseErr logs a failed phase at Info level with its classified
// error before propagating it, attaching the run's span so every
// phase-failure line can be correlated back to the Run call that
// triggered it.
func (c *Coordinator) logPhaseErr(span, name string, err error) error {
	c.cfg.Logger.Info("coordinatorPhaseFailed",
		"span", span, "phase", name, "err", err, "errClass", c.cfg.ErrClassifier.Classify(err))
	return err
}

// Stop signals both endpoints of every flow to stop, without the
// preceding phases.
func (c *Coordinator) Stop(ctx context.Context, opts RunOptions) error {
	flows := c.resolveFlows(opts)
	span := NewSpanID()
	if err := c.runPhase(ctx, sendersStopTimeout, "stop senders", flows, func(ctx context.Context, f *Flow) error {
		return f.Sender.SignalStop(ctx)
	}); err != nil {
		return c.logPhaseErr(span, "stop senders", err)
	}
	if err := c.runPhase(ctx, receiversStopTimeout, "stop receivers", flows, func(ctx context.Context, f *Flow) error {
		return f.Receiver.SignalStop(ctx)
	}); err != nil {
		return c.logPhaseErr(span, "stop receivers", err)
	}
	return nil
}

// Preclean dispatches a remote "kill any stale measurement process"
// command to the union of every flow's hosts, in parallel, bounded by
// precleanTimeout (spec.md §4.4, end-to-end scenario 4).
func (c *Coordinator) Preclean(ctx context.Context, opts RunOptions) error {
	flows := c.resolveFlows(opts)
	span := NewSpanID()
	if err := runPhase(ctx, precleanTimeout, "preclean", hosts(flows), c.precleanHost); err != nil {
		return c.logPhaseErr(span, "preclean", err)
	}
	return nil
}

// Plot renders every histogram accumulated by opts' flows (spec.md
// §4.6's bulk post-processing step, flows.py's iperf_flow.plot). Within
// one flow, histograms sharing a logical name are numbered name_0,
// name_1, ... before their data files are written, matching
// flows.py's duplicate-name handling; directory/output are forwarded to
// [PlotHistograms], bounded by the same overall plotTimeout.
func (c *Coordinator) Plot(ctx context.Context, opts RunOptions, directory string, output OutputType) error {
	flows := c.resolveFlows(opts)
	span := NewSpanID()

	var hs []*Histogram
	for _, f := range flows {
		counts := make(map[string]int)
		for _, h := range f.Histograms() {
			idx := counts[h.Name]
			counts[h.Name] = idx + 1
			if err := h.Write(directory, fmt.Sprintf("%s_%d", h.Name, idx)); err != nil {
				err = fmt.Errorf("flowfleet: writing histogram %q for flow %q: %w", h.Name, f.Name(), err)
				return c.logPhaseErr(span, "plot write", err)
			}
			hs = append(hs, h)
		}
	}

	if err := PlotHistograms(ctx, c.cfg, hs, directory, output); err != nil {
		return c.logPhaseErr(span, "plot render", err)
	}
	return nil
}

func (c *Coordinator) precleanHost(ctx context.Context, host string) error {
	argv := PrecleanArgv(c.cfg, host)
	t0 := c.cfg.TimeNow()
	out, err := c.cfg.Runner.Run(ctx, argv)
	c.cfg.Logger.Info("coordinatorPrecleanHost",
		"host", host, "output", string(out), "err", err, "errClass", c.cfg.ErrClassifier.Classify(err),
		"t0", t0, "t", c.cfg.TimeNow())
	return err
}

// runPhase fans out action over items concurrently, bounded by
// timeout. The phase completes when every item completes or any
// exceeds the deadline, matching spec.md §4.4's "fan-out/fan-in per
// phase" concurrency model.
func runPhase[T any](ctx context.Context, timeout time.Duration, name string, items []T, action func(context.Context, T) error) error {
	phaseCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	g, gctx := errgroup.WithContext(phaseCtx)
	for _, item := range items {
		item := item
		g.Go(func() error {
			return action(gctx, item)
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("flowfleet: phase %q failed: %w", name, classifyPhaseErr(err))
	}
	return nil
}

func (c *Coordinator) runPhase(ctx context.Context, timeout time.Duration, name string, items []*Flow, action func(context.Context, *Flow) error) error {
	return runPhase(ctx, timeout, name, items, action)
}

func classifyPhaseErr(err error) error {
	if err == context.DeadlineExceeded {
		return ErrPhaseTimeout
	}
	return err
}

// hosts returns the deduplicated union of every flow's participating
// hosts (spec.md §4.4's preclean phase).
func hosts(flows []*Flow) []string {
	seen := make(map[string]bool)
	var out []string
	for _, f := range flows {
		for _, h := range f.Hosts() {
			if !seen[h] {
				seen[h] = true
				out = append(out, h)
			}
		}
	}
	return out
}
