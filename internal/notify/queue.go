// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthCore Contributors

package notify

import (
	"context"
	"sync"

	"github.com/samber/oops"

	"github.com/authcore/authcore/internal/auth"
	"github.com/authcore/authcore/pkg/errutil"
)

// Queue is an in-process auth.ResetNotifier. NotifyPasswordReset never
// blocks: when the buffer is full the request is dropped with an error.
type Queue struct {
	sender  Sender
	workers int
	opts    options

	mu     sync.RWMutex
	jobs   chan ResetRequest
	closed bool

	startOnce sync.Once
	wg        sync.WaitGroup
}

// NewQueue creates a queue holding up to size pending requests, delivered
// by the given number of workers once Start is called.
func NewQueue(sender Sender, size, workers int, opts ...Option) (*Queue, error) {
	if sender == nil {
		return nil, oops.Code("NOTIFY_INVALID_CONFIG").Errorf("sender is required")
	}
	if size <= 0 || workers <= 0 {
		return nil, oops.Code("NOTIFY_INVALID_CONFIG").
			With("size", size).
			With("workers", workers).
			Errorf("queue size and workers must be positive")
	}
	return &Queue{
		sender:  sender,
		workers: workers,
		opts:    buildOptions(opts),
		jobs:    make(chan ResetRequest, size),
	}, nil
}

// Start launches the workers. Workers stop when ctx is cancelled or when
// Close has drained the queue. Calls after the first are no-ops.
func (q *Queue) Start(ctx context.Context) {
	q.startOnce.Do(func() {
		for range q.workers {
			q.wg.Add(1)
			go q.work(ctx)
		}
	})
}

// NotifyPasswordReset enqueues n.
func (q *Queue) NotifyPasswordReset(_ context.Context, n auth.ResetNotification) error {
	req := fromNotification(n)
	if err := req.Validate(); err != nil {
		return err
	}

	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		q.opts.recorder.RecordNotification(OutcomeDropped)
		return oops.Code("NOTIFY_QUEUE_CLOSED").Errorf("notification queue is closed")
	}
	select {
	case q.jobs <- req:
		q.opts.recorder.RecordNotification(OutcomeEnqueued)
		return nil
	default:
		q.opts.recorder.RecordNotification(OutcomeDropped)
		return oops.Code("NOTIFY_QUEUE_FULL").With("capacity", cap(q.jobs)).Errorf("notification queue is full")
	}
}

// Len reports the number of pending requests.
func (q *Queue) Len() int {
	return len(q.jobs)
}

// Close stops accepting requests and waits for the workers to drain what
// was already queued.
func (q *Queue) Close() {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.jobs)
	}
	q.mu.Unlock()
	q.wg.Wait()
}

func (q *Queue) work(ctx context.Context) {
	defer q.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case req, ok := <-q.jobs:
			if !ok {
				return
			}
			q.deliver(ctx, req)
		}
	}
}

func (q *Queue) deliver(ctx context.Context, req ResetRequest) {
	if err := deliver(ctx, q.sender, req, q.opts.retry); err != nil {
		q.opts.recorder.RecordNotification(OutcomeFailed)
		errutil.LogError(q.opts.logger, "reset notification delivery failed", err)
		return
	}
	q.opts.recorder.RecordNotification(OutcomeDelivered)
}

var _ auth.ResetNotifier = (*Queue)(nil)
