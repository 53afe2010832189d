package consumers

import (
	"context"
	"log/slog"
	"time"

	"github.com/carebridge-wallet-ledger/internal/config"
	"github.com/segmentio/kafka-go"
)

type MessageHandler func(ctx context.Context, key []byte, value []byte) error

// Consumer defines the message queue consumer interface
type Consumer interface {
	Subscribe(ctx context.Context, handler MessageHandler) error
	Close() error
}

// KafkaReader wraps kafka.Reader methods for testing
type KafkaReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaConsumer implements Consumer using Kafka
type KafkaConsumer struct {
	reader       KafkaReader
	topic        string
	groupID      string
	fetchBackoff time.Duration
	logger       *slog.Logger
}

// NewKafkaConsumer reads the gateway events topic as part of the configured consumer group
func NewKafkaConsumer(_ context.Context, logger *slog.Logger, cfg *config.KafkaConfig) *KafkaConsumer {
	startOffset := cfg.StartOffset
	if startOffset == 0 {
		startOffset = kafka.FirstOffset
	}
	return &KafkaConsumer{
		logger:       logger,
		topic:        cfg.GatewayEventsTopic,
		groupID:      cfg.ConsumerGroup,
		fetchBackoff: time.Second,
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:     []string{cfg.Brokers},
			Topic:       cfg.GatewayEventsTopic,
			GroupID:     cfg.ConsumerGroup,
			MinBytes:    cfg.MinBytes,
			MaxBytes:    cfg.MaxBytes,
			MaxWait:     cfg.MaxWait,
			StartOffset: startOffset,
		}),
	}
}

// Subscribe starts a fetch/handle/commit loop in the background. A message whose
// handler fails is not committed and is fetched again after a rebalance or restart.
func (c *KafkaConsumer) Subscribe(ctx context.Context, handler MessageHandler) error {
	c.logger.Info("Subscribed to Kafka topic",
		"topic", c.topic,
		"group_id", c.groupID,
	)

	go c.run(ctx, handler)
	return nil
}

func (c *KafkaConsumer) run(ctx context.Context, handler MessageHandler) {
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Context canceled, stopping consumer",
				"topic", c.topic,
				"group_id", c.groupID,
			)
			return
		default:
		}

		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			// If the context was canceled, return
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("Failed to fetch message from Kafka",
				"topic", c.topic,
				"group_id", c.groupID,
				"error", err,
			)
			// Otherwise, wait a bit and try again
			select {
			case <-ctx.Done():
				return
			case <-time.After(c.fetchBackoff):
			}
			continue
		}

		c.logger.Debug("Received message from Kafka",
			"topic", msg.Topic,
			"partition", msg.Partition,
			"offset", msg.Offset,
			"key", string(msg.Key),
		)

		if processingErr := handler(ctx, msg.Key, msg.Value); processingErr != nil {
			c.logger.Error("Failed to process message, will not commit offset",
				"topic", msg.Topic,
				"partition", msg.Partition,
				"offset", msg.Offset,
				"key", string(msg.Key),
				"error", processingErr,
			)
			continue
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.logger.Error("Failed to commit message after successful processing",
				"topic", msg.Topic,
				"partition", msg.Partition,
				"offset", msg.Offset,
				"key", string(msg.Key),
				"error", err,
			)
		} else {
			c.logger.Debug("Message committed successfully",
				"topic", msg.Topic,
				"offset", msg.Offset,
				"key", string(msg.Key),
			)
		}
	}
}

func (c *KafkaConsumer) Close() error {
	if c.reader != nil {
		return c.reader.Close()
	}
	return nil
}
