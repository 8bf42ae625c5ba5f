// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthCore Contributors

package main

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/authcore/authcore/internal/auth"
	"github.com/authcore/authcore/internal/config"
	"github.com/authcore/authcore/internal/notify"
	"github.com/authcore/authcore/pkg/errutil"
)

func TestNewSender(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))

	t.Run("log sender by default", func(t *testing.T) {
		sender, err := newSender(config.Default(), logger)
		require.NoError(t, err)
		assert.Equal(t, notify.LogSender{Logger: logger}, sender)
	})

	t.Run("log tokens reveals them", func(t *testing.T) {
		cfg := config.Default()
		cfg.Notify.LogTokens = true
		sender, err := newSender(cfg, logger)
		require.NoError(t, err)
		assert.Equal(t, notify.LogSender{Logger: logger, RevealToken: true}, sender)
	})

	t.Run("smtp sender", func(t *testing.T) {
		cfg := config.Default()
		cfg.Notify.Sender = config.SenderSMTP
		cfg.Notify.SMTP.Host = "mail.example.com"
		cfg.Notify.SMTP.From = "noreply@example.com"
		sender, err := newSender(cfg, logger)
		require.NoError(t, err)
		assert.IsType(t, &notify.SMTPSender{}, sender)
	})

	t.Run("smtp sender without relay", func(t *testing.T) {
		cfg := config.Default()
		cfg.Notify.Sender = config.SenderSMTP
		_, err := newSender(cfg, logger)
		errutil.AssertErrorCode(t, err, "NOTIFY_INVALID_CONFIG")
	})
}

func TestStackNotifier_QueueDeliversThroughSender(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	cfg := config.Default()
	cfg.Notify.Backend = config.NotifyQueue
	cfg.Notify.LogTokens = true

	s := &stack{}
	n, err := s.notifier(context.Background(), cfg, nil, logger)
	require.NoError(t, err)
	require.IsType(t, &notify.Queue{}, n)

	require.NoError(t, n.NotifyPasswordReset(context.Background(), auth.ResetNotification{Email: "a@example.com", Token: "RAWTOKEN123"}))
	s.Close()
	assert.Contains(t, buf.String(), `"`+notify.DevTokenKey+`":"RAWTOKEN123"`)
}
