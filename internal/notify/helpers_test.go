// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthCore Contributors

package notify

import (
	"context"
	"sync"
	"time"
)

type countingRecorder struct {
	mu     sync.Mutex
	counts map[string]int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{counts: make(map[string]int)}
}

func (r *countingRecorder) RecordNotification(outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counts[outcome]++
}

func (r *countingRecorder) count(outcome string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[outcome]
}

// recordingSender remembers every request and fails the first failures calls.
type recordingSender struct {
	mu       sync.Mutex
	sent     []ResetRequest
	calls    int
	failures int
	err      error
}

func (s *recordingSender) Send(_ context.Context, req ResetRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.calls <= s.failures {
		return s.err
	}
	s.sent = append(s.sent, req)
	return nil
}

func (s *recordingSender) delivered() []ResetRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ResetRequest(nil), s.sent...)
}

func (s *recordingSender) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func fastRetry(n uint64) Option {
	return WithRetryPolicy(RetryPolicy{MaxRetries: n, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond})
}
