// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthCore Contributors

package auth

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/authcore/authcore/pkg/errutil"
)

const tracerName = "github.com/authcore/authcore/internal/auth"

// Outcomes reported to a Recorder.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeError   = "error"
)

// Recorder receives one event per completed lifecycle operation.
type Recorder interface {
	RecordAuthEvent(operation, outcome string)
}

type nopRecorder struct{}

func (nopRecorder) RecordAuthEvent(string, string) {}

// Option configures the services in this package.
type Option func(*options)

type options struct {
	logger   *slog.Logger
	now      func() time.Time
	recorder Recorder
	tracer   trace.Tracer
}

func newOptions(opts []Option) options {
	o := options{
		logger:   slog.Default(),
		now:      time.Now,
		recorder: nopRecorder{},
		tracer:   otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithClock sets the time source used for expiry decisions.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(o *options) {
		if r != nil {
			o.recorder = r
		}
	}
}

// WithTracer sets the tracer used for operation spans.
func WithTracer(t trace.Tracer) Option {
	return func(o *options) {
		if t != nil {
			o.tracer = t
		}
	}
}

// outcomeOf classifies err for a Recorder.
func outcomeOf(err error) string {
	switch {
	case err == nil:
		return OutcomeSuccess
	case KindOf(err) == KindInternal:
		return OutcomeError
	default:
		return OutcomeFailure
	}
}

// start opens a span for operation. The returned func records the outcome,
// logs internal failures, and ends the span.
func (o options) start(ctx context.Context, operation string) (context.Context, func(error)) {
	ctx, span := o.tracer.Start(ctx, "auth."+operation)
	return ctx, func(err error) {
		if err != nil {
			kind := KindOf(err)
			span.RecordError(err)
			span.SetStatus(codes.Error, kind.String())
			if kind == KindInternal {
				errutil.LogError(o.logger, "auth operation failed", err, "operation", operation)
			} else {
				o.logger.DebugContext(ctx, "auth operation rejected",
					"operation", operation,
					"kind", kind.String(),
				)
			}
		}
		o.recorder.RecordAuthEvent(operation, outcomeOf(err))
		span.End()
	}
}
