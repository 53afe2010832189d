package producers

import (
	"context"

	"github.com/carebridge-wallet-ledger/internal/domain/shared"
	"github.com/segmentio/kafka-go"
)

// Notifier delivers owner-facing wallet events to the notification topic
type Notifier interface {
	Notify(ctx context.Context, ownerID string, event shared.EventType, payload []byte) error
	Close() error
}

// DeadLetterParker takes gateway callbacks the processor gave up on
type DeadLetterParker interface {
	Park(ctx context.Context, dl DeadLetter) error
	Close() error
}

// KafkaWriter is the part of *kafka.Writer the producers use
type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}
