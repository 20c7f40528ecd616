package kafka

import (
	"context"
	"log/slog"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
)

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Consumer struct {
	r messageReader

	// a failing message is retried up to retryAttempts times in total,
	// waiting retryBackoff, 2*retryBackoff, ... in between
	retryAttempts int
	retryBackoff  time.Duration
}

func NewConsumer(brokers []string, topic, groupID string) *Consumer {
	cfg := kafka.ReaderConfig{
		Brokers:           brokers,
		GroupID:           groupID,
		HeartbeatInterval: 3 * time.Second,
		SessionTimeout:    30 * time.Second,
	}
	if groupID != "" {
		cfg.GroupTopics = []string{topic}
	} else {
		cfg.Topic = topic
	}
	return &Consumer{
		r:             kafka.NewReader(cfg),
		retryAttempts: 1,
	}
}

func newConsumerWithReader(r messageReader) *Consumer {
	return &Consumer{r: r, retryAttempts: 1}
}

// WithRetry makes Consume retry a failing handler before giving up.
func (c *Consumer) WithRetry(attempts int, backoff time.Duration) *Consumer {
	if attempts > 0 {
		c.retryAttempts = attempts
	}
	if backoff > 0 {
		c.retryBackoff = backoff
	}
	return c
}

func (c *Consumer) Close() error {
	return c.r.Close()
}

// Consume feeds messages to handler until ctx is done or a message keeps
// failing after all retries. Offsets are committed only after the handler
// succeeded.
func (c *Consumer) Consume(ctx context.Context, handler func(key, value []byte) error) error {
	for {
		msg, err := c.r.FetchMessage(ctx)
		if err != nil {
			return errors.Wrap(err, "fetch message")
		}
		if err := c.handle(ctx, msg, handler); err != nil {
			return err
		}
		if err := c.r.CommitMessages(ctx, msg); err != nil {
			return errors.Wrap(err, "commit message")
		}
	}
}

func (c *Consumer) handle(ctx context.Context, msg kafka.Message, handler func(key, value []byte) error) error {
	var err error
	for i := 0; i < c.retryAttempts; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return errors.Wrap(ctx.Err(), "retry message")
			case <-time.After(c.retryBackoff << (i - 1)):
			}
		}
		if err = handler(msg.Key, msg.Value); err == nil {
			return nil
		}
		slog.Warn("kafka handler failed",
			"topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset,
			"attempt", i+1, "error", err.Error())
	}
	return errors.Wrapf(err, "handle message at offset %d", msg.Offset)
}
