// SPDX-License-Identifier: GPL-3.0-or-later

package flowfleet

import "time"

// Config holds common configuration for flowfleet operations.
//
// Pass this to constructor functions to pre-wire dependencies. All fields
// have sensible defaults set by [NewConfig].
type Config struct {
	// Runner spawns the subprocesses backing endpoint controllers,
	// signal delivery, preclean, and plotting.
	//
	// Set by [NewConfig] to [*ExecRunner].
	Runner Runner

	// ErrClassifier classifies errors for structured logging.
	//
	// Set by [NewConfig] to [DefaultErrClassifier].
	ErrClassifier ErrClassifier

	// Logger is the [SLogger] used across the fleet.
	//
	// Set by [NewConfig] to [DefaultSLogger].
	Logger SLogger

	// TimeNow returns the current time.
	//
	// Set by [NewConfig] to [time.Now].
	TimeNow func() time.Time

	// SSHPath is the path to the remote-shell binary used to reach
	// endpoint hosts.
	//
	// Set by [NewConfig] to "/usr/bin/ssh".
	SSHPath string

	// MeasurementToolPath is the path to the measurement tool binary on
	// the remote host.
	//
	// Set by [NewConfig] to "/usr/local/bin/iperf".
	MeasurementToolPath string

	// GnuplotPath is the path to the local plotting backend binary.
	//
	// Set by [NewConfig] to "/usr/bin/gnuplot".
	GnuplotPath string

	// PrecleanUser is the remote user used to run the preclean command.
	//
	// Set by [NewConfig] to "root".
	PrecleanUser string
}

// NewConfig creates a [*Config] with sensible defaults.
func NewConfig() *Config {
	return &Config{
		Runner:              &ExecRunner{},
		ErrClassifier:       DefaultErrClassifier,
		Logger:              DefaultSLogger(),
		TimeNow:             time.Now,
		SSHPath:             "/usr/bin/ssh",
		MeasurementToolPath: "/usr/local/bin/iperf",
		GnuplotPath:         "/usr/bin/gnuplot",
		PrecleanUser:        "root",
	}
}
