// Package activity is the owner-facing feed of wallet events, projected from the outbox.
package activity

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/carebridge-wallet-ledger/internal/domain/outbox"
	"github.com/carebridge-wallet-ledger/internal/domain/shared"
)

// Activity is one feed item. EventID is the outbox id, which makes projection idempotent.
type Activity struct {
	EventID     int64                  `bson:"event_id" json:"event_id"`
	OwnerID     string                 `bson:"owner_id" json:"owner_id"`
	EventType   shared.EventType       `bson:"event_type" json:"event_type"`
	AggregateID string                 `bson:"aggregate_id" json:"aggregate_id"`
	Payload     map[string]interface{} `bson:"payload" json:"payload"`
	OccurredAt  time.Time              `bson:"occurred_at" json:"occurred_at"`
	ProjectedAt time.Time              `bson:"projected_at" json:"projected_at"`
}

// FromMessage projects an outbox message into a feed item
func FromMessage(msg *outbox.Message, now time.Time) (*Activity, error) {
	payload := map[string]interface{}{}
	if len(msg.Payload) > 0 {
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			return nil, fmt.Errorf("failed to decode payload of outbox message %d: %w", msg.ID, err)
		}
	}

	return &Activity{
		EventID:     msg.ID,
		OwnerID:     msg.OwnerID.String(),
		EventType:   msg.EventType,
		AggregateID: msg.AggregateID.String(),
		Payload:     payload,
		OccurredAt:  msg.CreatedAt,
		ProjectedAt: now,
	}, nil
}

// Repository stores the feed
type Repository interface {
	// Append inserts a, or does nothing if the event was projected before
	Append(ctx context.Context, a *Activity) error
	ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]*Activity, error)
	CountByOwner(ctx context.Context, ownerID string) (int64, error)
}
