// SPDX-License-Identifier: GPL-3.0-or-later

package flowfleet

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// NewPipeObserverFunc returns a non-nil value wired from the config.
func TestNewPipeObserverFunc(t *testing.T) {
	cfg := NewConfig()
	op := NewPipeObserverFunc(cfg, DefaultSLogger(), "flow0", "host0", "stdout")
	require.NotNil(t, op)
	assert.Equal(t, "flow0", op.Flow)
	assert.Equal(t, "host0", op.Host)
	assert.Equal(t, "stdout", op.FD)
}

// Call wraps the reader such that Read delegates to the underlying reader.
func TestPipeObserverFuncCall(t *testing.T) {
	op := &PipeObserverFunc{
		ErrClassifier: DefaultErrClassifier,
		Logger:        DefaultSLogger(),
		TimeNow:       time.Now,
		Flow:          "flow0",
		Host:          "host0",
		FD:            "stdout",
	}

	wrapped, err := op.Call(context.Background(), strings.NewReader("hello"))
	require.NoError(t, err)

	out, err := io.ReadAll(ioReaderAdapter{wrapped})
	require.NoError(t, err)
	assert.Equal(t, "hello", string(out))
}

// ioReaderAdapter adapts pipeReader to io.Reader for io.ReadAll.
type ioReaderAdapter struct {
	r pipeReader
}

func (a ioReaderAdapter) Read(p []byte) (int, error) { return a.r.Read(p) }

// Each Read emits a debug-level log entry naming the flow, host, and fd.
func TestPipeObserverFuncLogsEachRead(t *testing.T) {
	var entries []string
	logger := &fakeSLogger{
		debug: func(msg string, args ...any) {
			entries = append(entries, msg)
		},
	}

	op := &PipeObserverFunc{
		ErrClassifier: DefaultErrClassifier,
		Logger:        logger,
		TimeNow:       time.Now,
		Flow:          "flow0",
		Host:          "host0",
		FD:            "stderr",
	}

	wrapped, err := op.Call(context.Background(), strings.NewReader("abc"))
	require.NoError(t, err)

	buf := make([]byte, 1)
	for {
		_, err := wrapped.Read(buf)
		if err != nil {
			break
		}
	}

	assert.NotEmpty(t, entries)
	for _, e := range entries {
		assert.Equal(t, "pipeRead", e)
	}
}

// fakeSLogger is a minimal [SLogger] test double.
type fakeSLogger struct {
	debug func(msg string, args ...any)
	info  func(msg string, args ...any)
}

func (l *fakeSLogger) Debug(msg string, args ...any) {
	if l.debug != nil {
		l.debug(msg, args...)
	}
}

func (l *fakeSLogger) Info(msg string, args ...any) {
	if l.info != nil {
		l.info(msg, args...)
	}
}
