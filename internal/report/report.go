// Package report persists the output of a computation to one or more sinks.
//
// Computations stay pure: Compute runs them, then hands the result to a Sink.
// A sink failure never discards the computed value.
package report

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrSinkWrite wraps every error returned by Compute for a failed write.
var ErrSinkWrite = errors.New("report sink write failed")

// FileTimeLayout is the timestamp format embedded in generated report names.
const FileTimeLayout = "20060102_150405"

// Report is one computed result ready to be persisted.
type Report struct {
	Operation string
	Name      string
	CreatedAt time.Time
	Payload   any
}

// Sink persists reports.
type Sink interface {
	Write(ctx context.Context, r Report) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, r Report) error

func (f SinkFunc) Write(ctx context.Context, r Report) error { return f(ctx, r) }

// Discard accepts and drops every report.
var Discard Sink = SinkFunc(func(context.Context, Report) error { return nil })

// FileName returns the default report name: report_<op>_<YYYYMMDD_HHMMSS>.json.
func FileName(operation string, t time.Time) string {
	return fmt.Sprintf("report_%s_%s.json", operation, t.Format(FileTimeLayout))
}

// ResolvedName returns r.Name, or FileName when it is blank.
func (r Report) ResolvedName() string {
	if r.Name != "" {
		return r.Name
	}
	return FileName(r.Operation, r.CreatedAt)
}

// Encode renders a payload as UTF-8 JSON indented by two spaces, without
// HTML escaping and without a trailing newline.
func Encode(payload any) ([]byte, error) {
	buf := &bytes.Buffer{}
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(payload); err != nil {
		return nil, fmt.Errorf("encode report: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

type multi []Sink

// Multi fans a report out to every sink. All sinks are attempted; their
// errors are joined.
func Multi(sinks ...Sink) Sink {
	flat := make(multi, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			flat = append(flat, s)
		}
	}
	if len(flat) == 0 {
		return Discard
	}
	if len(flat) == 1 {
		return flat[0]
	}
	return flat
}

func (m multi) Write(ctx context.Context, r Report) error {
	var errs []error
	for _, s := range m {
		if err := s.Write(ctx, r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Compute runs fn and writes its result to sink as operation op. When fn
// fails nothing is written. When the write fails the result is still
// returned, together with an error wrapping ErrSinkWrite.
func Compute[T any](ctx context.Context, sink Sink, op, name string, now time.Time, fn func() (T, error)) (T, error) {
	result, err := fn()
	if err != nil {
		return result, err
	}
	if sink == nil {
		return result, nil
	}
	r := Report{Operation: op, Name: name, CreatedAt: now, Payload: result}
	if err := sink.Write(ctx, r); err != nil {
		return result, fmt.Errorf("%w: %s: %w", ErrSinkWrite, r.ResolvedName(), err)
	}
	return result, nil
}
