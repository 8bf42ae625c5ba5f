// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthCore Contributors

package notify

import "log/slog"

// Delivery outcomes reported to a Recorder.
const (
	OutcomeEnqueued  = "enqueued"
	OutcomeDropped   = "dropped"
	OutcomeDelivered = "delivered"
	OutcomeFailed    = "failed"
	OutcomeMalformed = "malformed"
)

// Recorder counts delivery outcomes.
type Recorder interface {
	RecordNotification(outcome string)
}

type nopRecorder struct{}

func (nopRecorder) RecordNotification(string) {}

type options struct {
	logger   *slog.Logger
	recorder Recorder
	retry    RetryPolicy
}

func defaultOptions() options {
	return options{
		logger:   slog.Default(),
		recorder: nopRecorder{},
		retry:    DefaultRetryPolicy(),
	}
}

func buildOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Option configures a Queue, Publisher or Consumer.
type Option func(*options)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithRecorder sets the outcome recorder.
func WithRecorder(r Recorder) Option {
	return func(o *options) {
		if r != nil {
			o.recorder = r
		}
	}
}

// WithRetryPolicy overrides DefaultRetryPolicy.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(o *options) { o.retry = p }
}
