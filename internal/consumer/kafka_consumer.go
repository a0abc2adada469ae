package consumer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"

	"github.com/mercaline/chat-service/internal/batch"
	"github.com/mercaline/chat-service/internal/config"
	"github.com/mercaline/chat-service/internal/domain"
	"github.com/mercaline/chat-service/pkg/log"
)

// Consumer is the single long-lived subscriber draining the durable
// message log into the batch writer. Partitioning by conversation id
// means records for one conversation arrive in publish order.
type Consumer struct {
	consumer *kafka.Consumer
	topic    string
	groupID  string
	writer   *batch.Writer
}

// NewConsumer creates a consumer-group member for the chat topic.
func NewConsumer(cfg config.KafkaConfig, w *batch.Writer) (*Consumer, error) {
	c, err := kafka.NewConsumer(&kafka.ConfigMap{
		"bootstrap.servers":       cfg.Brokers,
		"group.id":                cfg.GroupID,
		"auto.offset.reset":       cfg.AutoOffsetReset,
		"enable.auto.commit":      true,
		"auto.commit.interval.ms": 5000,
		"max.poll.interval.ms":    cfg.MaxPollIntervalMs,
		"session.timeout.ms":      cfg.SessionTimeoutMs,
		"heartbeat.interval.ms":   cfg.HeartbeatIntervalMs,
		"fetch.min.bytes":         cfg.FetchMinBytes,
		"fetch.wait.max.ms":       cfg.FetchMaxWaitMs,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka consumer: %w", err)
	}

	return &Consumer{
		consumer: c,
		topic:    cfg.Topic,
		groupID:  cfg.GroupID,
		writer:   w,
	}, nil
}

// Run polls until the context is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	if err := c.consumer.Subscribe(c.topic, nil); err != nil {
		return fmt.Errorf("failed to subscribe to topic %s: %w", c.topic, err)
	}

	l := log.L()
	l.Info().Str("topic", c.topic).Str("group", c.groupID).Msg("kafka consumer started")

	for {
		select {
		case <-ctx.Done():
			l.Info().Msg("kafka consumer stopping")
			return nil
		default:
		}

		ev := c.consumer.Poll(500)
		if ev == nil {
			continue
		}

		switch e := ev.(type) {
		case *kafka.Message:
			if err := c.handleRecord(e.Value); err != nil {
				l.Warn().
					Int32("partition", e.TopicPartition.Partition).
					Str("offset", e.TopicPartition.Offset.String()).
					Err(err).
					Msg("skipping bad record")
			}
		case kafka.Error:
			l.Error().Err(e).Int("code", int(e.Code())).Bool("fatal", e.IsFatal()).Msg("kafka error")
			if e.IsFatal() {
				return fmt.Errorf("fatal kafka error: %w", e)
			}
		case kafka.OffsetsCommitted:
			// Normal auto-commit acknowledgement
		default:
			// Ignore other events (rebalance, etc.)
		}
	}
}

// handleRecord decodes one log record and buffers it for the next flush.
func (c *Consumer) handleRecord(value []byte) error {
	var msg domain.ChatMessage
	if err := json.Unmarshal(value, &msg); err != nil {
		return fmt.Errorf("failed to unmarshal log record: %w", err)
	}
	if err := msg.Validate(); err != nil {
		return fmt.Errorf("invalid log record: %w", err)
	}

	c.writer.Append(&msg)
	return nil
}

// Close closes the Kafka consumer.
func (c *Consumer) Close() error {
	return c.consumer.Close()
}
