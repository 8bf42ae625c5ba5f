// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthCore Contributors

package notify

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// Sender delivers one reset request to its recipient.
type Sender interface {
	Send(ctx context.Context, req ResetRequest) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, req ResetRequest) error

// Send calls f.
func (f SenderFunc) Send(ctx context.Context, req ResetRequest) error {
	return f(ctx, req)
}

// LogSender writes each request to a logger instead of a mailbox. It is a
// development fallback: the logging handler redacts the token attribute, so
// the raw token is only visible when RevealToken is set, which logs it under
// DevTokenKey.
type LogSender struct {
	Logger      *slog.Logger
	RevealToken bool
}

// DevTokenKey carries the raw token when LogSender.RevealToken is set.
const DevTokenKey = "dev_reset_token"

// Send logs the request.
func (s LogSender) Send(ctx context.Context, req ResetRequest) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	args := []any{"email", req.Email, "token", req.Token}
	if s.RevealToken {
		args = append(args, DevTokenKey, req.Token)
	}
	logger.InfoContext(ctx, "password reset notification", args...)
	return nil
}

// ErrUndeliverable marks a send failure that retrying cannot fix.
var ErrUndeliverable = errors.New("notification undeliverable")

// RetryPolicy bounds delivery attempts.
type RetryPolicy struct {
	MaxRetries uint64
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// DefaultRetryPolicy retries five times starting at 100ms, capped at 5s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 5, BaseDelay: 100 * time.Millisecond, MaxDelay: 5 * time.Second}
}

func (p RetryPolicy) backoff() retry.Backoff {
	base := p.BaseDelay
	if base <= 0 {
		base = time.Millisecond
	}
	b := retry.NewExponential(base)
	if p.MaxDelay > 0 {
		b = retry.WithCappedDuration(p.MaxDelay, b)
	}
	return retry.WithMaxRetries(p.MaxRetries, b)
}

// deliver sends req, retrying failures not marked ErrUndeliverable.
func deliver(ctx context.Context, sender Sender, req ResetRequest, policy RetryPolicy) error {
	attempts := 0
	err := retry.Do(ctx, policy.backoff(), func(ctx context.Context) error {
		attempts++
		if err := sender.Send(ctx, req); err != nil {
			if errors.Is(err, ErrUndeliverable) {
				return err
			}
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return oops.Code("NOTIFY_DELIVERY_FAILED").With("attempts", attempts).Wrap(err)
	}
	return nil
}
