package repository

import (
	"context"
	"time"

	"github.com/pcashcroft/backtest/internal/domain/models"
	"github.com/pcashcroft/backtest/internal/domain/repository"
	pkgkafka "github.com/pcashcroft/backtest/pkg/kafka"
)

// KafkaNotifier announces published partitions on a Kafka topic. Downstream
// chart and feature services key on dataset id, so partition ordering per
// dataset is preserved with a hash balancer.
type KafkaNotifier struct {
	producer *pkgkafka.Producer
	topic    string
}

// NewKafkaNotifier creates a partition-built notifier.
func NewKafkaNotifier(producer *pkgkafka.Producer, topic string) repository.Notifier {
	return &KafkaNotifier{producer: producer, topic: topic}
}

func (n *KafkaNotifier) PartitionBuilt(ctx context.Context, datasetID string, session models.Session, date models.Date, rows int64) error {
	return n.producer.Publish(ctx, n.topic, []byte(datasetID), map[string]interface{}{
		"dataset_id": datasetID,
		"session":    string(session),
		"date":       string(date),
		"rows":       rows,
		"built_at":   time.Now().UTC().Format(time.RFC3339Nano),
	})
}

func (n *KafkaNotifier) Close() error {
	if n.producer != nil {
		return n.producer.Close()
	}
	return nil
}
