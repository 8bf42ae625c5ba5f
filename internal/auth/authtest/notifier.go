// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthCore Contributors

package authtest

import (
	"context"
	"sync"

	"github.com/authcore/authcore/internal/auth"
)

// Notifier records reset notifications instead of delivering them.
type Notifier struct {
	mu   sync.Mutex
	sent []auth.ResetNotification
	err  error
}

var _ auth.ResetNotifier = (*Notifier)(nil)

// SetError makes later notifications fail with err.
func (n *Notifier) SetError(err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.err = err
}

// NotifyPasswordReset records msg, or returns the configured error.
func (n *Notifier) NotifyPasswordReset(_ context.Context, msg auth.ResetNotification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, msg)
	return nil
}

// Sent returns every recorded notification.
func (n *Notifier) Sent() []auth.ResetNotification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]auth.ResetNotification(nil), n.sent...)
}

// Last returns the most recent notification.
func (n *Notifier) Last() (auth.ResetNotification, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.sent) == 0 {
		return auth.ResetNotification{}, false
	}
	return n.sent[len(n.sent)-1], true
}

// Recorder counts auth events by operation and outcome.
type Recorder struct {
	mu     sync.Mutex
	events map[string]int
	swept  map[string]int64
}

// RecordAuthEvent implements auth.Recorder.
func (r *Recorder) RecordAuthEvent(operation, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.events == nil {
		r.events = make(map[string]int)
	}
	r.events[operation+"/"+outcome]++
}

// RecordSweep implements auth.SweepRecorder.
func (r *Recorder) RecordSweep(kind string, deleted int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.swept == nil {
		r.swept = make(map[string]int64)
	}
	r.swept[kind] += deleted
}

// Count returns how many events were recorded for operation and outcome.
func (r *Recorder) Count(operation, outcome string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[operation+"/"+outcome]
}

// Swept returns the total recorded for kind.
func (r *Recorder) Swept(kind string) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.swept[kind]
}
