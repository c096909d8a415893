package kafka

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/edu008/HeatQuest/internal/config"
	"github.com/edu008/HeatQuest/internal/infrastructure/monitoring/logging"
	"github.com/edu008/HeatQuest/pkg/errors"
)

// Handler processes one decoded event envelope.  A non-nil error leaves the
// offset uncommitted so the message is redelivered.
type Handler func(ctx context.Context, envelope EventEnvelope) error

// ReaderInterface abstracts kafka.Reader for testing.
type ReaderInterface interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer reads event envelopes from one topic and dispatches them to a
// handler, committing offsets only after successful handling.
type Consumer struct {
	reader  ReaderInterface
	handler Handler
	logger  logging.Logger
	closed  atomic.Bool

	processed atomic.Int64
	failed    atomic.Int64
}

// NewConsumer builds a consumer group reader for one topic.
func NewConsumer(cfg config.KafkaConfig, groupID, topic string, handler Handler, log logging.Logger) (*Consumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New(errors.ErrCodeValidation, "kafka brokers required")
	}
	if groupID == "" || topic == "" {
		return nil, errors.New(errors.ErrCodeValidation, "group id and topic required")
	}
	if handler == nil {
		return nil, errors.New(errors.ErrCodeValidation, "handler required")
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		GroupID:        groupID,
		Topic:          topic,
		MinBytes:       1,
		MaxBytes:       10 * 1024 * 1024,
		MaxWait:        time.Second,
		CommitInterval: 0, // explicit commits only
	})

	return &Consumer{
		reader:  reader,
		handler: handler,
		logger:  log.Named("kafka_consumer").With(logging.String("topic", topic)),
	}, nil
}

// newConsumerWithReader is the test seam.
func newConsumerWithReader(r ReaderInterface, handler Handler, log logging.Logger) *Consumer {
	return &Consumer{reader: r, handler: handler, logger: log}
}

// Run consumes until ctx is cancelled or the consumer is closed.  Messages
// whose envelope cannot be decoded are committed and dropped; handler errors
// leave the offset uncommitted for redelivery.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if stderrors.Is(err, context.Canceled) || stderrors.Is(err, io.EOF) || c.closed.Load() {
				return nil
			}
			return errors.Wrap(err, errors.ErrCodeInternal, "fetch failed")
		}

		var envelope EventEnvelope
		if err := json.Unmarshal(msg.Value, &envelope); err != nil {
			c.logger.Warn("Dropping undecodable event",
				logging.Int64("offset", msg.Offset), logging.Err(err))
			c.failed.Add(1)
			_ = c.reader.CommitMessages(ctx, msg)
			continue
		}

		if err := c.handler(ctx, envelope); err != nil {
			c.failed.Add(1)
			c.logger.Error("Event handling failed, offset not committed",
				logging.String("event_id", envelope.EventID), logging.Err(err))
			continue
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.logger.Warn("Offset commit failed", logging.Err(err))
			continue
		}
		c.processed.Add(1)
	}
}

// Processed returns the count of handled and committed messages.
func (c *Consumer) Processed() int64 { return c.processed.Load() }

// Failed returns the count of dropped or failed messages.
func (c *Consumer) Failed() int64 { return c.failed.Load() }

func (c *Consumer) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	err := c.reader.Close()
	c.logger.Info("Kafka consumer closed",
		logging.Int64("processed", c.processed.Load()),
		logging.Int64("failed", c.failed.Load()))
	return err
}
