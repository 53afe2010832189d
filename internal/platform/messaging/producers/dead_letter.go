package producers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/carebridge-wallet-ledger/internal/config"
	"github.com/segmentio/kafka-go"
)

// ErrDLQDisabled is returned by a producer built without a DLQ topic
var ErrDLQDisabled = errors.New("dead letter topic is not configured")

// Stage says where a gateway callback was given up on
type Stage string

const (
	StageDecode Stage = "decode"
	StageApply  Stage = "apply"
)

// DeadLetter is a gateway callback that can never be applied to a payment intent
type DeadLetter struct {
	Key       string
	Value     []byte
	Stage     Stage
	Reference string // PAY reference when the callback decoded far enough to carry one
	Reason    string
}

type deadLetterRecord struct {
	SourceTopic string    `json:"source_topic"`
	Stage       Stage     `json:"stage"`
	Reference   string    `json:"reference,omitempty"`
	Reason      string    `json:"reason"`
	Callback    string    `json:"callback"`
	ParkedAt    time.Time `json:"parked_at"`
}

// DLQProducer parks undeliverable gateway callbacks on the dead letter topic
type DLQProducer struct {
	logger      *slog.Logger
	writer      KafkaWriter
	dlqTopic    string
	sourceTopic string
}

// NewDLQProducer returns nil, nil when cfg.DLQTopic is empty
func NewDLQProducer(ctx context.Context, logger *slog.Logger, cfg *config.KafkaConfig) (*DLQProducer, error) {
	if cfg.DLQTopic == "" {
		logger.Info("No DLQ topic configured, unprocessable gateway callbacks will be redelivered")
		return nil, nil
	}

	conn, err := kafka.DialContext(ctx, "tcp", cfg.Brokers)
	if err != nil {
		return nil, fmt.Errorf("failed to dial kafka for dlq producer: %w", err)
	}
	defer conn.Close()

	if err := ensureTopic(conn, cfg.DLQTopic, cfg.NumPartitions, cfg.ReplicationFactor, logger); err != nil {
		return nil, fmt.Errorf("failed to ensure DLQ topic %s: %w", cfg.DLQTopic, err)
	}

	return &DLQProducer{
		logger: logger,
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers),
			Topic:        cfg.DLQTopic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			WriteTimeout: cfg.MaxWait,
		},
		dlqTopic:    cfg.DLQTopic,
		sourceTopic: cfg.GatewayEventsTopic,
	}, nil
}

// Park writes dl to the DLQ and waits for the broker to acknowledge it
func (p *DLQProducer) Park(ctx context.Context, dl DeadLetter) error {
	if p == nil || p.writer == nil {
		return ErrDLQDisabled
	}

	value, err := json.Marshal(deadLetterRecord{
		SourceTopic: p.sourceTopic,
		Stage:       dl.Stage,
		Reference:   dl.Reference,
		Reason:      dl.Reason,
		Callback:    string(dl.Value),
		ParkedAt:    time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal dead letter %q: %w", dl.Key, err)
	}

	headers := []kafka.Header{
		{Key: "dlq-stage", Value: []byte(dl.Stage)},
		{Key: "source-topic", Value: []byte(p.sourceTopic)},
	}
	if dl.Reference != "" {
		headers = append(headers, kafka.Header{Key: "payment-reference", Value: []byte(dl.Reference)})
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:     []byte(dl.Key),
		Value:   value,
		Headers: headers,
	})
	if err != nil {
		p.logger.Error("Failed to park gateway callback",
			"topic", p.dlqTopic,
			"key", dl.Key,
			"stage", string(dl.Stage),
			"error", err,
		)
		return fmt.Errorf("failed to publish to DLQ %s: %w", p.dlqTopic, err)
	}

	p.logger.Info("Parked gateway callback",
		"topic", p.dlqTopic,
		"key", dl.Key,
		"stage", string(dl.Stage),
		"reference", dl.Reference,
	)
	return nil
}

func (p *DLQProducer) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	p.logger.Info("Closing DLQ producer", "topic", p.dlqTopic)
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close DLQ writer for topic %s: %w", p.dlqTopic, err)
	}
	return nil
}
