package outbox

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/carebridge-wallet-ledger/internal/domain/shared"
	"github.com/google/uuid"
)

// Message is a notification event written in the same transaction as the state change it describes
type Message struct {
	ID            int64               `json:"id"`
	EventType     shared.EventType    `json:"event_type"`
	AggregateID   uuid.UUID           `json:"aggregate_id"`
	OwnerID       uuid.UUID           `json:"owner_id"`
	Payload       json.RawMessage     `json:"payload"`
	Status        shared.OutboxStatus `json:"status"`
	Attempts      int                 `json:"attempts"`
	CreatedAt     time.Time           `json:"created_at"`
	LastAttemptAt *time.Time          `json:"last_attempt_at,omitempty"`
}

// NewMessage marshals payload and returns a pending message
func NewMessage(eventType shared.EventType, ownerID, aggregateID uuid.UUID, payload any) (*Message, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
	}

	return &Message{
		EventType:   eventType,
		AggregateID: aggregateID,
		OwnerID:     ownerID,
		Payload:     raw,
		Status:      shared.OutboxStatusPending,
		Attempts:    0,
		CreatedAt:   time.Now(),
	}, nil
}

func (m *Message) IncrementAttempts() {
	m.Attempts++
	now := time.Now()
	m.LastAttemptAt = &now
}

func (m *Message) MarkAsProcessed() {
	m.Status = shared.OutboxStatusProcessed
	now := time.Now()
	m.LastAttemptAt = &now
}

func (m *Message) MarkAsFailed() {
	m.Status = shared.OutboxStatusFailedToPublish
	now := time.Now()
	m.LastAttemptAt = &now
}

// DecodePayload unmarshals the payload into v
func (m *Message) DecodePayload(v any) error {
	return json.Unmarshal(m.Payload, v)
}
