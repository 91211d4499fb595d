//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from observeconn.go's net.Conn read-observation wrapper,
// rebound to an io.Reader over a subprocess's stdout or stderr pipe
// instead of a network connection; each Read emits one debug-level
// pipeRead event.
//

package flowfleet

import (
	"context"
	"log/slog"
	"time"
)

// NewPipeObserverFunc returns a new [*PipeObserverFunc] with default logging.
func NewPipeObserverFunc(cfg *Config, logger SLogger, flow, host, fd string) *PipeObserverFunc {
	return &PipeObserverFunc{
		ErrClassifier: cfg.ErrClassifier,
		Logger:        logger,
		TimeNow:       cfg.TimeNow,
		Flow:          flow,
		Host:          host,
		FD:            fd,
	}
}

// PipeObserverFunc wraps a [io.Reader] to log I/O at debug level.
//
// All fields are safe to modify after construction but before first use.
type PipeObserverFunc struct {
	ErrClassifier ErrClassifier
	Logger        SLogger
	TimeNow       func() time.Time

	// Flow, Host, and FD ("stdout" or "stderr") identify the pipe being
	// observed in log output.
	Flow, Host, FD string
}

var _ Func[pipeReader, pipeReader] = &PipeObserverFunc{}

// pipeReader is the minimal interface PipeObserverFunc wraps: either a
// Process's Stdout()/Stderr() io.Reader.
type pipeReader interface {
	Read(p []byte) (int, error)
}

// Call wraps r so every Read is logged at debug level.
func (op *PipeObserverFunc) Call(ctx context.Context, r pipeReader) (pipeReader, error) {
	return &observedPipe{op: op, r: r}, nil
}

type observedPipe struct {
	op *PipeObserverFunc
	r  pipeReader
}

func (p *observedPipe) Read(buf []byte) (int, error) {
	t0 := p.op.TimeNow()
	count, err := p.r.Read(buf)
	p.op.Logger.Debug(
		"pipeRead",
		slog.String("flow", p.op.Flow),
		slog.String("host", p.op.Host),
		slog.String("fd", p.op.FD),
		slog.Int("bytesCount", count),
		slog.Any("err", err),
		slog.String("errClass", p.op.ErrClassifier.Classify(err)),
		slog.Time("t0", t0),
		slog.Time("t", p.op.TimeNow()),
	)
	return count, err
}
