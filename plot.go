// SPDX-License-Identifier: GPL-3.0-or-later
//
// Grounded on flows.py's flow_histogram.async_plot: builds a gnuplot
// control file next to the histogram's data file, then shells out to
// the gnuplot backend via the same [Runner.Run] one-shot path used for
// signal delivery and preclean (remotecmd.go, coordinator.go).

package flowfleet

import (
	"context"
	"fmt"
	"os"
)

// OutputType selects the gnuplot terminal used for a rendered plot
// (spec.md §6).
type OutputType int

const (
	OutputPNG OutputType = iota
	OutputCanvas
	OutputSVG
)

func (o OutputType) terminal() string {
	switch o {
	case OutputCanvas:
		return "canvas"
	case OutputSVG:
		return "svg"
	default:
		return "png"
	}
}

func (o OutputType) extension() string {
	switch o {
	case OutputCanvas, OutputSVG:
		return "html"
	default:
		return "png"
	}
}

// thumbnailSize is the fixed transparent-PNG thumbnail geometry
// spec.md §6 requires alongside a PNG render.
const (
	thumbnailWidth  = 64
	thumbnailHeight = 32
)

// WriteControlFile renders h's gnuplot control file (the ".gpc" named
// in spec.md §6's persisted-state layout) at controlPath, using the
// x-range/x-tic step table resolved from h.Max and a fixed CDF y-range
// of [0,1.01].
func WriteControlFile(h *Histogram, controlPath string, output OutputType) error {
	if h.BaseFilename == "" {
		return ErrDegenerateHistogram
	}

	max := 0.0
	if h.Max != nil {
		max = *h.Max
	}
	xrange, tic := xrangeFor(max)

	f, err := os.Create(controlPath)
	if err != nil {
		return fmt.Errorf("flowfleet: creating gnuplot control file: %w", err)
	}
	defer f.Close()

	fmt.Fprintf(f, "set terminal %s\n", output.terminal())
	fmt.Fprintf(f, "set output %q\n", h.BaseFilename+"."+output.extension())
	fmt.Fprintf(f, "set xrange [%d:%d]\n", xrange[0], xrange[1])
	fmt.Fprintf(f, "set yrange [0:1.01]\n")
	if tic == 0 {
		fmt.Fprintln(f, "set xtics auto")
	} else {
		fmt.Fprintf(f, "set xtics add %d\n", tic)
	}
	fmt.Fprintf(f, "set title %q\n", h.Name)
	fmt.Fprintf(f, "plot %q using 1:3 with lines notitle\n", h.DataFilename)

	return nil
}

// WriteThumbnailControlFile renders a second, minimal control file
// producing the fixed-size transparent PNG thumbnail that accompanies
// a PNG render (spec.md §6).
func WriteThumbnailControlFile(h *Histogram, controlPath string) error {
	if h.BaseFilename == "" {
		return ErrDegenerateHistogram
	}

	f, err := os.Create(controlPath)
	if err != nil {
		return fmt.Errorf("flowfleet: creating gnuplot thumbnail control file: %w", err)
	}
	defer f.Close()

	fmt.Fprintf(f, "set terminal png transparent size %d,%d\n", thumbnailWidth, thumbnailHeight)
	fmt.Fprintf(f, "set output %q\n", h.BaseFilename+"_thumb.png")
	fmt.Fprintln(f, "unset border")
	fmt.Fprintln(f, "unset xtics")
	fmt.Fprintln(f, "unset ytics")
	fmt.Fprintf(f, "plot %q using 1:3 with lines notitle\n", h.DataFilename)

	return nil
}

// Plot invokes the configured gnuplot backend over controlPath and
// blocks until it exits, using [Config.Runner]'s one-shot [Runner.Run]
// path (spec.md §5: "the plotter is a one-shot child per plot").
func Plot(ctx context.Context, cfg *Config, controlPath string) error {
	argv := []string{cfg.GnuplotPath, controlPath}
	t0 := cfg.TimeNow()
	out, err := cfg.Runner.Run(ctx, argv)
	if err != nil {
		err = fmt.Errorf("flowfleet: plot invocation failed: %w", err)
	}
	cfg.Logger.Info("plotDone",
		"controlFile", controlPath, "output", string(out),
		"err", err, "errClass", cfg.ErrClassifier.Classify(err),
		"t0", t0, "t", cfg.TimeNow())
	return err
}

// PlotHistogram is the full async_plot equivalent: write the control
// file(s) for h and invoke the plotter, skipping entirely when h is
// degenerate (BaseFilename unset, spec.md §7).
func PlotHistogram(ctx context.Context, cfg *Config, h *Histogram, directory string, output OutputType) error {
	if h.BaseFilename == "" {
		cfg.Logger.Info("plotSkippedDegenerate", "name", h.Name)
		return nil
	}

	controlPath := h.BaseFilename + ".gpc"
	if err := WriteControlFile(h, controlPath, output); err != nil {
		return err
	}
	if err := Plot(ctx, cfg, controlPath); err != nil {
		return err
	}

	if output == OutputPNG {
		thumbPath := h.BaseFilename + "_thumb.gpc"
		if err := WriteThumbnailControlFile(h, thumbPath); err != nil {
			return err
		}
		if err := Plot(ctx, cfg, thumbPath); err != nil {
			return err
		}
	}

	return nil
}

// PlotHistograms renders every histogram in hs concurrently, fanning
// out through [runPhase] bounded by the general plotting timeout
// (spec.md §4.6: "600 s overall timeout").
func PlotHistograms(ctx context.Context, cfg *Config, hs []*Histogram, directory string, output OutputType) error {
	return runPhase(ctx, plotTimeout, "plot histograms", hs, func(ctx context.Context, h *Histogram) error {
		return PlotHistogram(ctx, cfg, h, directory, output)
	})
}
