package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Event is an asynchronous gateway callback published on the gateway events topic
type Event struct {
	Reference     string `json:"reference"`
	ExternalID    string `json:"external_id"`
	Status        Status `json:"status"`
	Reason        string `json:"reason,omitempty"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

// DecodeEvent parses and validates a callback. Pending is not a callback outcome.
func DecodeEvent(value []byte) (*Event, error) {
	var ev Event
	if err := json.Unmarshal(value, &ev); err != nil {
		return nil, fmt.Errorf("failed to unmarshal gateway event: %w", err)
	}
	if ev.Reference == "" {
		return nil, errors.New("gateway event has no reference")
	}
	if ev.Status != StatusSuccess && ev.Status != StatusFailed {
		return nil, fmt.Errorf("gateway event %s has unsupported status %q", ev.Reference, ev.Status)
	}
	return &ev, nil
}

// Success reports whether the money moved
func (e *Event) Success() bool {
	return e.Status == StatusSuccess
}
