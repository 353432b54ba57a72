package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/IBM/sarama"
	"github.com/sirupsen/logrus"
)

var ErrReplayLimit = errors.New("exceeded maximum replay attempts")

// DLQMonitor logs dead-lettered order events and, when a replay producer is
// configured, republishes them to order.created.
type DLQMonitor struct {
	producer   sarama.SyncProducer
	maxReplays int
	logger     *logrus.Logger
}

// NewDLQMonitor builds a monitor. A nil producer disables replay.
func NewDLQMonitor(replayProducer sarama.SyncProducer, maxReplays int, logger *logrus.Logger) *DLQMonitor {
	return &DLQMonitor{
		producer:   replayProducer,
		maxReplays: maxReplays,
		logger:     logger,
	}
}

func dlqMetadata(message *sarama.ConsumerMessage) (MessageMetadata, bool) {
	var metadata MessageMetadata
	for _, header := range message.Headers {
		if header != nil && string(header.Key) == "metadata" {
			return metadata, json.Unmarshal(header.Value, &metadata) == nil
		}
	}
	return metadata, false
}

func (m *DLQMonitor) Handle(ctx context.Context, message *sarama.ConsumerMessage) error {
	metadata, ok := dlqMetadata(message)
	if !ok {
		m.logger.WithField("key", string(message.Key)).Warn("DLQ message without metadata")
	}

	fields := logrus.Fields{
		"partition":      message.Partition,
		"offset":         message.Offset,
		"key":            string(message.Key),
		"original_topic": metadata.OriginalTopic,
		"retry_count":    metadata.RetryCount,
		"error_message":  metadata.ErrorMessage,
	}

	var event OrderCreatedEvent
	if err := json.Unmarshal(message.Value, &event); err == nil {
		fields["order_id"] = event.OrderID
		fields["restaurant_id"] = event.RestaurantID
		fields["total_price"] = event.TotalPrice
	}

	m.logger.WithFields(fields).Warn("DLQ message detected")

	if m.producer == nil {
		return nil
	}
	return m.Replay(message, metadata)
}

// Replay republishes a dead letter with its replay count incremented.
func (m *DLQMonitor) Replay(message *sarama.ConsumerMessage, metadata MessageMetadata) error {
	if metadata.RetryCount >= m.maxReplays {
		m.logger.WithFields(logrus.Fields{
			"key":         string(message.Key),
			"retry_count": metadata.RetryCount,
		}).Error("Message exceeded maximum replay attempts")
		return ErrReplayLimit
	}

	topic := metadata.OriginalTopic
	if topic == "" {
		topic = OrderCreatedTopic
	}

	replay := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.ByteEncoder(message.Key),
		Value: sarama.ByteEncoder(message.Value),
		Headers: []sarama.RecordHeader{
			{Key: []byte(retryCountHeader), Value: []byte(strconv.Itoa(metadata.RetryCount + 1))},
			{Key: []byte("replayed_from_dlq"), Value: []byte("true")},
			{Key: []byte("replay_time"), Value: []byte(time.Now().UTC().Format(time.RFC3339))},
		},
	}

	partition, offset, err := m.producer.SendMessage(replay)
	if err != nil {
		return fmt.Errorf("failed to replay message: %w", err)
	}

	m.logger.WithFields(logrus.Fields{
		"replay_topic":     topic,
		"replay_partition": partition,
		"replay_offset":    offset,
		"key":              string(message.Key),
		"retry_count":      metadata.RetryCount + 1,
	}).Info("Message replayed from DLQ")

	return nil
}

// DLQConsumer runs a DLQMonitor over the dead letter topic.
type DLQConsumer struct {
	group    sarama.ConsumerGroup
	producer sarama.SyncProducer
	monitor  *DLQMonitor
	logger   *logrus.Logger
}

func NewDLQConsumer(brokers []string, groupID string, replay bool, maxReplays int, logger *logrus.Logger) (*DLQConsumer, error) {
	group, err := sarama.NewConsumerGroup(brokers, groupID, consumerConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create DLQ consumer: %w", err)
	}

	var producer sarama.SyncProducer
	if replay {
		producer, err = sarama.NewSyncProducer(brokers, producerConfig())
		if err != nil {
			group.Close()
			return nil, fmt.Errorf("failed to create replay producer: %w", err)
		}
	}

	return &DLQConsumer{
		group:    group,
		producer: producer,
		monitor:  NewDLQMonitor(producer, maxReplays, logger),
		logger:   logger,
	}, nil
}

func (c *DLQConsumer) Start(ctx context.Context) error {
	handler := &groupHandler{name: "dlq-monitor", fn: c.monitor.Handle, logger: c.logger}
	return runGroup(ctx, c.group, []string{OrderCreatedDLQTopic}, handler, c.logger)
}

func (c *DLQConsumer) Close() error {
	if c.producer != nil {
		if err := c.producer.Close(); err != nil {
			c.logger.WithError(err).Error("Failed to close replay producer")
		}
	}
	return c.group.Close()
}
