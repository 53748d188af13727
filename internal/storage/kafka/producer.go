package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/confluentinc/confluent-kafka-go/kafka"
	"go.uber.org/zap"

	"metadataWatch/internal/model"
)

const flushTimeoutMs = 5000

// Producer publishes refresh tasks to a Kafka topic. Tasks are keyed by
// contract id so refreshes for one contract stay on one partition.
type Producer struct {
	producer *kafka.Producer
	topic    string
	logger   *zap.Logger
}

func NewProducer(broker, topic string, logger *zap.Logger) (*Producer, error) {
	if broker == "" {
		return nil, fmt.Errorf("kafka broker is required")
	}
	if topic == "" {
		return nil, fmt.Errorf("kafka topic is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	producer, err := kafka.NewProducer(&kafka.ConfigMap{"bootstrap.servers": broker})
	if err != nil {
		return nil, fmt.Errorf("connect kafka: %w", err)
	}

	return &Producer{producer: producer, topic: topic, logger: logger}, nil
}

// PutTaskBatch publishes the batch and waits for delivery.
func (p *Producer) PutTaskBatch(ctx context.Context, tasks []model.RefreshTask) error {
	if len(tasks) == 0 {
		return nil
	}

	deliveries := make(chan kafka.Event, len(tasks))
	for _, task := range tasks {
		data, err := json.Marshal(task)
		if err != nil {
			return fmt.Errorf("marshal task: %w", err)
		}
		msg := &kafka.Message{
			TopicPartition: kafka.TopicPartition{Topic: &p.topic, Partition: kafka.PartitionAny},
			Key:            []byte(task.ContractID),
			Value:          data,
		}
		if err := p.producer.Produce(msg, deliveries); err != nil {
			return fmt.Errorf("produce task: %w", err)
		}
	}

	for range tasks {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-deliveries:
			msg, ok := ev.(*kafka.Message)
			if !ok {
				continue
			}
			if msg.TopicPartition.Error != nil {
				return fmt.Errorf("deliver task: %w", msg.TopicPartition.Error)
			}
		}
	}

	return nil
}

// Close flushes outstanding messages and releases the producer.
func (p *Producer) Close() {
	remaining := p.producer.Flush(flushTimeoutMs)
	if remaining > 0 {
		p.logger.Warn("kafka flush incomplete", zap.Int("remaining", remaining))
	}
	p.producer.Close()
}
