// SPDX-License-Identifier: GPL-3.0-or-later
//
// flowfleetctl drives a flowfleet fleet from a YAML definition file.
// Command structure grounded on the cobra root/subcommand convention
// (see DESIGN.md).

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/flowfleet/flowfleet"
)

var (
	fleetPath string
	verbose   bool
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "flowfleetctl",
		Short: "Drive a fleet of flowfleet network-throughput measurements",
	}
	root.PersistentFlags().StringVar(&fleetPath, "fleet", "", "path to the fleet definition YAML file")
	root.PersistentFlags().BoolVar(&verbose, "verbose", false, "emit debug-level logs")
	root.MarkPersistentFlagRequired("fleet")

	root.AddCommand(newRunCmd(), newPrecleanCmd(), newStopCmd(), newPlotCmd())
	return root
}

func loadFleet() (*flowfleet.Config, *flowfleet.Registry, error) {
	def, err := flowfleet.LoadFleetDefinition(fleetPath)
	if err != nil {
		return nil, nil, err
	}

	cfg := flowfleet.NewConfig()
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	cfg.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	def.ApplyTo(cfg)

	flowConfigs, err := def.FlowConfigs()
	if err != nil {
		return nil, nil, err
	}

	registry := flowfleet.NewRegistry()
	ports := flowfleet.NewPortAllocator()
	for _, fc := range flowConfigs {
		registry.Add(flowfleet.NewFlow(cfg, ports, fc))
	}

	return cfg, registry, nil
}

func newRunCmd() *cobra.Command {
	var (
		duration       int
		preclean       bool
		sampleDelay    bool
		confirmTraffic bool
		timeout        time.Duration
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run every flow in the fleet for the given duration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, registry, err := loadFleet()
			if err != nil {
				return err
			}
			coordinator := flowfleet.NewCoordinator(cfg, registry)

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			return coordinator.Run(ctx, flowfleet.RunOptions{
				Duration:       duration,
				Preclean:       preclean,
				SampleDelay:    sampleDelay,
				ConfirmTraffic: confirmTraffic,
			})
		},
	}

	cmd.Flags().IntVar(&duration, "duration", 10, "run body duration in seconds")
	cmd.Flags().BoolVar(&preclean, "preclean", true, "preclean every host before starting")
	cmd.Flags().BoolVar(&sampleDelay, "sample-delay", true, "ramp-up sleep before confirming traffic")
	cmd.Flags().BoolVar(&confirmTraffic, "confirm-traffic", true, "wait for both endpoints to report traffic")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "overall command timeout")
	return cmd
}

func newPrecleanCmd() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "preclean",
		Short: "Kill any stale measurement process on every fleet host",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, registry, err := loadFleet()
			if err != nil {
				return err
			}
			coordinator := flowfleet.NewCoordinator(cfg, registry)

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			return coordinator.Preclean(ctx, flowfleet.RunOptions{})
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "overall command timeout")
	return cmd
}

func newPlotCmd() *cobra.Command {
	var (
		directory string
		output    string
		timeout   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "plot",
		Short: "Render every histogram accumulated by the fleet's flows",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, registry, err := loadFleet()
			if err != nil {
				return err
			}
			coordinator := flowfleet.NewCoordinator(cfg, registry)

			outputType, err := parseOutputType(output)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			return coordinator.Plot(ctx, flowfleet.RunOptions{}, directory, outputType)
		},
	}
	cmd.Flags().StringVar(&directory, "dir", ".", "directory to write histogram data and plots into")
	cmd.Flags().StringVar(&output, "output", "png", "plot output format: png, canvas, or svg")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Minute, "overall command timeout")
	return cmd
}

func parseOutputType(s string) (flowfleet.OutputType, error) {
	switch s {
	case "png":
		return flowfleet.OutputPNG, nil
	case "canvas":
		return flowfleet.OutputCanvas, nil
	case "svg":
		return flowfleet.OutputSVG, nil
	default:
		return 0, fmt.Errorf("flowfleetctl: unknown output format %q", s)
	}
}

func newStopCmd() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Signal every fleet flow's sender and receiver to stop",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, registry, err := loadFleet()
			if err != nil {
				return err
			}
			coordinator := flowfleet.NewCoordinator(cfg, registry)

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			return coordinator.Stop(ctx, flowfleet.RunOptions{})
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "overall command timeout")
	return cmd
}
