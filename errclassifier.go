// SPDX-License-Identifier: GPL-3.0-or-later

package flowfleet

import (
	"context"
	"errors"
	"os/exec"
)

// ErrClassifier classifies errors into categorical strings for analysis.
//
// Implementations map errors to short, descriptive labels (e.g.
// "timeout", "spawn") that facilitate systematic analysis of fleet runs.
type ErrClassifier interface {
	Classify(err error) string
}

// ErrClassifierFunc adapts a function to the [ErrClassifier] interface.
//
// This allows using simple functions as classifiers:
//
//	cfg.ErrClassifier = ErrClassifierFunc(myClassify)
type ErrClassifierFunc func(error) string

var _ ErrClassifier = ErrClassifierFunc(nil)

// Classify implements [ErrClassifier].
func (f ErrClassifierFunc) Classify(err error) string {
	return f(err)
}

// DefaultErrClassifier labels the error kinds spec.md §7 distinguishes:
// phase timeouts, subprocess spawn/exit failures, and everything else.
// It returns "" for a nil error.
var DefaultErrClassifier = ErrClassifierFunc(func(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, ErrPhaseTimeout):
		return "timeout"
	case errors.Is(err, ErrSpawnFailed):
		return "spawn"
	case errors.Is(err, ErrHistogramParseMiss):
		return "parse-miss"
	case isExitError(err):
		return "exit"
	default:
		return "generic"
	}
})

func isExitError(err error) bool {
	var exitErr *exec.ExitError
	return errors.As(err, &exitErr)
}
