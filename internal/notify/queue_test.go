// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthCore Contributors

package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/authcore/authcore/internal/auth"
	"github.com/authcore/authcore/pkg/errutil"
)

func TestNewQueue_Validation(t *testing.T) {
	_, err := NewQueue(nil, 1, 1)
	errutil.AssertErrorCode(t, err, "NOTIFY_INVALID_CONFIG")

	_, err = NewQueue(&recordingSender{}, 0, 1)
	errutil.AssertErrorCode(t, err, "NOTIFY_INVALID_CONFIG")

	_, err = NewQueue(&recordingSender{}, 1, 0)
	errutil.AssertErrorCode(t, err, "NOTIFY_INVALID_CONFIG")
}

func TestQueue_DeliversAndDrainsOnClose(t *testing.T) {
	defer goleak.VerifyNone(t)

	sender := &recordingSender{}
	rec := newCountingRecorder()
	q, err := NewQueue(sender, 16, 3, WithRecorder(rec), fastRetry(1))
	require.NoError(t, err)
	q.Start(context.Background())

	for i := range 10 {
		err := q.NotifyPasswordReset(context.Background(), auth.ResetNotification{
			Email: "user@example.com",
			Token: string(rune('a' + i)),
		})
		require.NoError(t, err)
	}
	q.Close()

	assert.Len(t, sender.delivered(), 10)
	assert.Equal(t, 10, rec.count(OutcomeEnqueued))
	assert.Equal(t, 10, rec.count(OutcomeDelivered))
}

func TestQueue_FullQueueDropsWithoutBlocking(t *testing.T) {
	defer goleak.VerifyNone(t)

	q, err := NewQueue(&recordingSender{}, 1, 1, fastRetry(0))
	require.NoError(t, err)

	n := auth.ResetNotification{Email: "a@example.com", Token: "t"}
	require.NoError(t, q.NotifyPasswordReset(context.Background(), n))

	done := make(chan error, 1)
	go func() { done <- q.NotifyPasswordReset(context.Background(), n) }()

	select {
	case err := <-done:
		errutil.AssertErrorCode(t, err, "NOTIFY_QUEUE_FULL")
	case <-time.After(time.Second):
		t.Fatal("enqueue blocked on a full queue")
	}
	assert.Equal(t, 1, q.Len())

	q.Start(context.Background())
	q.Close()
}

func TestQueue_RejectsAfterClose(t *testing.T) {
	defer goleak.VerifyNone(t)

	rec := newCountingRecorder()
	q, err := NewQueue(&recordingSender{}, 4, 1, WithRecorder(rec))
	require.NoError(t, err)
	q.Start(context.Background())
	q.Close()
	q.Close()

	err = q.NotifyPasswordReset(context.Background(), auth.ResetNotification{Email: "a@example.com", Token: "t"})
	errutil.AssertErrorCode(t, err, "NOTIFY_QUEUE_CLOSED")
	assert.Equal(t, 1, rec.count(OutcomeDropped))
}

func TestQueue_RejectsIncompleteNotification(t *testing.T) {
	q, err := NewQueue(&recordingSender{}, 4, 1)
	require.NoError(t, err)

	err = q.NotifyPasswordReset(context.Background(), auth.ResetNotification{Email: "a@example.com"})
	errutil.AssertErrorCode(t, err, "NOTIFY_INVALID_MESSAGE")
	assert.Zero(t, q.Len())
}

func TestQueue_FailedDeliveryIsRecorded(t *testing.T) {
	defer goleak.VerifyNone(t)

	rec := newCountingRecorder()
	sender := &recordingSender{failures: 100, err: errors.New("smtp down")}
	q, err := NewQueue(sender, 4, 1, WithRecorder(rec), fastRetry(2))
	require.NoError(t, err)
	q.Start(context.Background())

	require.NoError(t, q.NotifyPasswordReset(context.Background(), auth.ResetNotification{Email: "a@example.com", Token: "t"}))
	q.Close()

	assert.Equal(t, 3, sender.callCount())
	assert.Equal(t, 1, rec.count(OutcomeFailed))
}

func TestQueue_WorkersStopOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx, cancel := context.WithCancel(context.Background())
	q, err := NewQueue(&recordingSender{}, 4, 2)
	require.NoError(t, err)
	q.Start(ctx)
	cancel()
	q.Close()
}
