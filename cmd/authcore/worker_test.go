// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthCore Contributors

package main

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/authcore/authcore/internal/config"
	"github.com/authcore/authcore/internal/notify"
	"github.com/authcore/authcore/internal/observability"
	"github.com/authcore/authcore/pkg/errutil"
)

type fakeConsumer struct {
	runErr error
	ran    bool
	closed bool
}

func (c *fakeConsumer) Run(context.Context) error {
	c.ran = true
	return c.runErr
}

func (c *fakeConsumer) Close() error {
	c.closed = true
	return nil
}

func workerDeps(c *fakeConsumer, got *notify.ConsumerConfig) *WorkerDeps {
	return &WorkerDeps{
		ConsumerFactory: func(cfg notify.ConsumerConfig, sender notify.Sender, _ ...notify.Option) (NotificationConsumer, error) {
			if sender == nil {
				return nil, errors.New("sender must be wired")
			}
			*got = cfg
			return c, nil
		},
		ObservabilityServerFactory: func(string, observability.ReadinessChecker, *slog.Logger) ObservabilityServer {
			return newFakeObsServer()
		},
	}
}

func TestWorker_RunsConsumer(t *testing.T) {
	isolateEnv(t)
	t.Setenv("AUTHCORE_KAFKA_BROKERS", "kafka-1:9092,kafka-2:9092")
	c := &fakeConsumer{}
	var got notify.ConsumerConfig

	out, err := execute(t, newWorkerCmd(workerDeps(c, &got)), "", "worker")
	require.NoError(t, err)

	assert.True(t, c.ran)
	assert.True(t, c.closed)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, got.Brokers)
	assert.Equal(t, "password-reset-request", got.Topic)
	assert.Equal(t, "authcore-mailer", got.GroupID)
	assert.Contains(t, out, "Notification worker started")
}

func TestWorker_FlagsOverrideTopicAndBrokers(t *testing.T) {
	isolateEnv(t)
	c := &fakeConsumer{}
	var got notify.ConsumerConfig

	_, err := execute(t, newWorkerCmd(workerDeps(c, &got)), "", "worker",
		"--kafka-brokers", "local:9092", "--kafka-topic", "resets")
	require.NoError(t, err)

	assert.Equal(t, []string{"local:9092"}, got.Brokers)
	assert.Equal(t, "resets", got.Topic)
}

func TestWorker_RequiresBrokers(t *testing.T) {
	isolateEnv(t)
	c := &fakeConsumer{}
	var got notify.ConsumerConfig

	_, err := execute(t, newWorkerCmd(workerDeps(c, &got)), "", "worker")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
	assert.False(t, c.ran)
}

func TestWorker_ConsumerErrorIsReturned(t *testing.T) {
	isolateEnv(t)
	t.Setenv("AUTHCORE_KAFKA_BROKERS", "kafka:9092")
	c := &fakeConsumer{runErr: errors.New("broker gone")}
	var got notify.ConsumerConfig

	_, err := execute(t, newWorkerCmd(workerDeps(c, &got)), "", "worker")
	require.Error(t, err)
	assert.True(t, c.closed)
}

func TestWorker_SMTPSenderNeedsRelay(t *testing.T) {
	isolateEnv(t)
	t.Setenv("AUTHCORE_KAFKA_BROKERS", "kafka:9092")
	c := &fakeConsumer{}
	var got notify.ConsumerConfig

	_, err := execute(t, newWorkerCmd(workerDeps(c, &got)), "", "worker", "--sender", "smtp")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "NOTIFY_INVALID_CONFIG")
	assert.False(t, c.ran)
}

func TestWorker_PassesConfiguredSender(t *testing.T) {
	isolateEnv(t)
	t.Setenv("AUTHCORE_KAFKA_BROKERS", "kafka:9092")
	t.Setenv("AUTHCORE_SMTP_HOST", "mail.example.com")
	t.Setenv("AUTHCORE_SMTP_FROM", "noreply@example.com")
	c := &fakeConsumer{}
	var got notify.ConsumerConfig
	deps := workerDeps(c, &got)
	var sawSender string
	deps.SenderFactory = func(cfg config.Config, logger *slog.Logger) (notify.Sender, error) {
		sawSender = cfg.Notify.Sender
		return newSender(cfg, logger)
	}

	_, err := execute(t, newWorkerCmd(deps), "", "worker", "--sender", "smtp")
	require.NoError(t, err)
	assert.Equal(t, config.SenderSMTP, sawSender)
	assert.True(t, c.ran)
}

func TestValidateWorker(t *testing.T) {
	cfg := config.Default()
	require.Error(t, validateWorker(cfg))

	cfg.Notify.Kafka.Brokers = []string{"kafka:9092"}
	require.NoError(t, validateWorker(cfg))

	cfg.Notify.Kafka.GroupID = ""
	require.Error(t, validateWorker(cfg))
}
