package producers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/carebridge-wallet-ledger/internal/config"
	"github.com/carebridge-wallet-ledger/internal/domain/shared"
	"github.com/segmentio/kafka-go"
)

// Notification is the envelope written to the notification topic
type Notification struct {
	OwnerID   string           `json:"owner_id"`
	Event     shared.EventType `json:"event"`
	Payload   json.RawMessage  `json:"payload"`
	Timestamp time.Time        `json:"timestamp"`
}

type NotificationProducer struct {
	logger *slog.Logger
	writer KafkaWriter // Interface for testability
	topic  string
}

// NewNotificationProducer ensures the notification topic exists and returns a synchronous producer.
// Writes are synchronous so the outbox only marks a row processed after the broker acknowledged it.
func NewNotificationProducer(ctx context.Context, logger *slog.Logger, cfg *config.KafkaConfig) (*NotificationProducer, error) {
	if cfg.NotificationTopic == "" {
		return nil, fmt.Errorf("kafka notification topic is not configured")
	}

	conn, err := kafka.DialContext(ctx, "tcp", cfg.Brokers)
	if err != nil {
		return nil, fmt.Errorf("failed to dial kafka for notification producer: %w", err)
	}
	defer conn.Close()

	err = ensureTopic(conn, cfg.NotificationTopic, cfg.NumPartitions, cfg.ReplicationFactor, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure notification topic %s exists: %w", cfg.NotificationTopic, err)
	}

	// Hash on the owner key keeps one owner's events ordered on a partition
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers),
		Topic:        cfg.NotificationTopic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		WriteTimeout: cfg.MaxWait,
	}

	return &NotificationProducer{
		logger: logger,
		writer: writer,
		topic:  cfg.NotificationTopic,
	}, nil
}

// Notify publishes one event for ownerID
func (p *NotificationProducer) Notify(ctx context.Context, ownerID string, event shared.EventType, payload []byte) error {
	if len(payload) == 0 {
		payload = []byte("{}")
	}
	value, err := json.Marshal(Notification{
		OwnerID:   ownerID,
		Event:     event,
		Payload:   json.RawMessage(payload),
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal notification %s: %w", event, err)
	}

	msg := kafka.Message{
		Key:   []byte(ownerID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(event)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("Failed to publish notification",
			"topic", p.topic,
			"owner_id", ownerID,
			"event", event,
			"error", err,
		)
		return fmt.Errorf("failed to publish notification to %s: %w", p.topic, err)
	}

	p.logger.Debug("Published notification",
		"topic", p.topic,
		"owner_id", ownerID,
		"event", event,
	)
	return nil
}

func (p *NotificationProducer) Close() error {
	p.logger.Info("Closing notification producer", "topic", p.topic)
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close notification writer for topic %s: %w", p.topic, err)
	}
	return nil
}
