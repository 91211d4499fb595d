// SPDX-License-Identifier: GPL-3.0-or-later
//
// Grounded on the teacher's own helpers_test.go: a slogstub.FuncHandler
// wrapped in a *slog.Logger so tests can assert on emitted log records
// without depending on a concrete handler implementation.

package flowfleet

import (
	"context"
	"log/slog"

	"github.com/bassosimone/slogstub"
)

// newCapturingLogger returns a logger that captures all log records into
// the returned slice. The caller can inspect the slice after exercising
// the code under test to verify which events were emitted.
func newCapturingLogger() (*slog.Logger, *[]slog.Record) {
	var records []slog.Record
	handler := &slogstub.FuncHandler{
		EnabledFunc: func(ctx context.Context, level slog.Level) bool {
			return true
		},
		HandleFunc: func(ctx context.Context, record slog.Record) error {
			records = append(records, record)
			return nil
		},
	}
	return slog.New(handler), &records
}

// recordAttr returns the string value of attr in record, or "" if absent.
func recordAttr(record slog.Record, attr string) string {
	var val string
	record.Attrs(func(a slog.Attr) bool {
		if a.Key == attr {
			val = a.Value.String()
			return false
		}
		return true
	})
	return val
}
