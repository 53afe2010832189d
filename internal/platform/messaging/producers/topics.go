package producers

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

// topicAdmin is the part of *kafka.Conn used to provision topics
type topicAdmin interface {
	ReadPartitions(topics ...string) ([]kafka.Partition, error)
	CreateTopics(topics ...kafka.TopicConfig) error
}

const topicReadAttempts = 5

var topicReadBackoff = 2 * time.Second

// ensureTopic creates topic when none of its partitions can be read.
// Brokers that are still electing leaders fail reads for a while, hence the retries.
func ensureTopic(admin topicAdmin, topic string, numPartitions, replicationFactor int, log *slog.Logger) error {
	var (
		partitions []kafka.Partition
		err        error
	)
	for attempt := 1; attempt <= topicReadAttempts; attempt++ {
		partitions, err = admin.ReadPartitions(topic)
		if err == nil {
			break
		}
		log.Warn("Failed to read topic partitions", "topic", topic, "attempt", attempt, "error", err)
		if attempt < topicReadAttempts {
			time.Sleep(topicReadBackoff)
		}
	}

	if len(partitions) > 0 {
		log.Info("Kafka topic already exists", "topic", topic, "partitions", len(partitions))
		return nil
	}

	topicCfg := kafka.TopicConfig{
		Topic:             topic,
		NumPartitions:     max(numPartitions, 1),
		ReplicationFactor: max(replicationFactor, 1),
	}
	if err := admin.CreateTopics(topicCfg); err != nil {
		return fmt.Errorf("failed to create kafka topic %s: %w", topic, err)
	}
	log.Info("Created Kafka topic", "topic", topic,
		"partitions", topicCfg.NumPartitions,
		"replication_factor", topicCfg.ReplicationFactor,
	)
	return nil
}
