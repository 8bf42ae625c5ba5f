// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthCore Contributors

package notify

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/samber/oops"
	"github.com/segmentio/kafka-go"

	"github.com/authcore/authcore/internal/auth"
	"github.com/authcore/authcore/pkg/errutil"
)

// messageWriter is the subset of *kafka.Writer Publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// messageReader is the subset of *kafka.Reader Consumer uses.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher is an auth.ResetNotifier that writes requests to Kafka. The
// writer is asynchronous, so NotifyPasswordReset returns once the message is
// buffered; broker failures are logged from the completion callback.
type Publisher struct {
	w    messageWriter
	opts options
}

// NewPublisher creates a Publisher writing to topic on brokers.
func NewPublisher(brokers []string, topic string, opts ...Option) (*Publisher, error) {
	if len(brokers) == 0 {
		return nil, oops.Code("NOTIFY_INVALID_CONFIG").Errorf("at least one kafka broker is required")
	}
	if topic == "" {
		topic = Topic
	}
	p := &Publisher{opts: buildOptions(opts)}
	p.w = &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		Async:        true,
		BatchTimeout: 50 * time.Millisecond,
		Completion:   p.completed,
	}
	return p, nil
}

func newPublisher(w messageWriter, opts ...Option) *Publisher {
	return &Publisher{w: w, opts: buildOptions(opts)}
}

// NotifyPasswordReset publishes n keyed by the lowercased email, so requests
// for one address stay ordered on one partition.
func (p *Publisher) NotifyPasswordReset(ctx context.Context, n auth.ResetNotification) error {
	req := fromNotification(n)
	value, err := Encode(req)
	if err != nil {
		return err
	}
	msg := kafka.Message{
		Key:   []byte(strings.ToLower(req.Email)),
		Value: value,
	}
	if err := p.w.WriteMessages(ctx, msg); err != nil {
		p.opts.recorder.RecordNotification(OutcomeDropped)
		return oops.Code("NOTIFY_PUBLISH_FAILED").Wrap(err)
	}
	p.opts.recorder.RecordNotification(OutcomeEnqueued)
	return nil
}

func (p *Publisher) completed(msgs []kafka.Message, err error) {
	if err != nil {
		errutil.LogError(p.opts.logger, "reset notification publish failed", err, "messages", len(msgs))
	}
}

// Close flushes buffered messages.
func (p *Publisher) Close() error {
	if err := p.w.Close(); err != nil {
		return oops.Code("NOTIFY_CLOSE_FAILED").Wrap(err)
	}
	return nil
}

// ConsumerConfig locates the topic a Consumer reads.
type ConsumerConfig struct {
	Brokers []string
	GroupID string
	Topic   string
}

// Consumer reads reset requests from Kafka and hands them to a Sender.
type Consumer struct {
	r      messageReader
	sender Sender
	opts   options
}

// NewConsumer creates a Consumer in the given consumer group.
func NewConsumer(cfg ConsumerConfig, sender Sender, opts ...Option) (*Consumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, oops.Code("NOTIFY_INVALID_CONFIG").Errorf("at least one kafka broker is required")
	}
	if cfg.GroupID == "" {
		return nil, oops.Code("NOTIFY_INVALID_CONFIG").Errorf("consumer group is required")
	}
	if sender == nil {
		return nil, oops.Code("NOTIFY_INVALID_CONFIG").Errorf("sender is required")
	}
	if cfg.Topic == "" {
		cfg.Topic = Topic
	}
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		GroupID:  cfg.GroupID,
		Topic:    cfg.Topic,
		MinBytes: 1,
		MaxBytes: 1 << 20,
	})
	return newConsumer(r, sender, opts...), nil
}

func newConsumer(r messageReader, sender Sender, opts ...Option) *Consumer {
	return &Consumer{r: r, sender: sender, opts: buildOptions(opts)}
}

// Run processes messages until ctx is cancelled. Each message is committed
// after handling, including malformed messages and deliveries that exhausted
// their retries, so one bad message cannot stall the partition.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		msg, err := c.r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			return oops.Code("NOTIFY_FETCH_FAILED").Wrap(err)
		}

		c.handle(ctx, msg)

		if err := c.r.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return oops.Code("NOTIFY_COMMIT_FAILED").
				With("partition", msg.Partition).
				With("offset", msg.Offset).
				Wrap(err)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, msg kafka.Message) {
	req, err := Decode(msg.Value)
	if err != nil {
		c.opts.recorder.RecordNotification(OutcomeMalformed)
		errutil.LogWarn(c.opts.logger, "skipping malformed reset notification", err,
			"partition", msg.Partition, "offset", msg.Offset)
		return
	}
	if err := deliver(ctx, c.sender, req, c.opts.retry); err != nil {
		c.opts.recorder.RecordNotification(OutcomeFailed)
		errutil.LogError(c.opts.logger, "reset notification delivery failed", err,
			"partition", msg.Partition, "offset", msg.Offset)
		return
	}
	c.opts.recorder.RecordNotification(OutcomeDelivered)
}

// Close closes the reader.
func (c *Consumer) Close() error {
	if err := c.r.Close(); err != nil {
		return oops.Code("NOTIFY_CLOSE_FAILED").Wrap(err)
	}
	return nil
}

var _ auth.ResetNotifier = (*Publisher)(nil)
