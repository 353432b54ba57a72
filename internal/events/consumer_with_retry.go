package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/IBM/sarama"
	"github.com/sirupsen/logrus"
)

const retryCountHeader = "retry_count"

// OrderCreatedHandler processes order.created events. IsRetryable tells the
// consumer whether a failed attempt is worth repeating.
type OrderCreatedHandler interface {
	HandleOrderCreated(ctx context.Context, event OrderCreatedEvent) error
	IsRetryable(err error) bool
}

type RetryPolicy struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

var DefaultRetryPolicy = RetryPolicy{
	MaxRetries:   3,
	InitialDelay: 1 * time.Second,
	MaxDelay:     30 * time.Second,
}

type ConsumerMetrics struct {
	ProcessedCount int64
	RetryCount     int64
	DLQCount       int64
	SuccessCount   int64
	FailureCount   int64
}

// MessageMetadata travels with a dead letter in its "metadata" header.
type MessageMetadata struct {
	RetryCount    int       `json:"retry_count"`
	FirstFailure  time.Time `json:"first_failure"`
	LastFailure   time.Time `json:"last_failure"`
	OriginalTopic string    `json:"original_topic"`
	ErrorMessage  string    `json:"error_message"`
}

// RetryProcessor handles order.created messages with exponential backoff and
// dead-letters those that cannot be processed.
type RetryProcessor struct {
	handler  OrderCreatedHandler
	producer sarama.SyncProducer
	policy   RetryPolicy
	logger   *logrus.Logger

	processed atomic.Int64
	retries   atomic.Int64
	dlq       atomic.Int64
	succeeded atomic.Int64
	failed    atomic.Int64
}

func NewRetryProcessor(handler OrderCreatedHandler, dlqProducer sarama.SyncProducer, policy RetryPolicy, logger *logrus.Logger) *RetryProcessor {
	return &RetryProcessor{
		handler:  handler,
		producer: dlqProducer,
		policy:   policy,
		logger:   logger,
	}
}

// Process never returns the handler's error: a failed message ends up on
// the dead letter topic and only a failure to write it there is reported.
func (p *RetryProcessor) Process(ctx context.Context, message *sarama.ConsumerMessage) error {
	p.processed.Add(1)

	if err := p.handleWithRetry(ctx, message); err != nil {
		p.failed.Add(1)
		if ctx.Err() != nil {
			return err
		}
		if dlqErr := p.sendToDLQ(message, err); dlqErr != nil {
			return dlqErr
		}
		p.dlq.Add(1)
		return nil
	}

	p.succeeded.Add(1)
	return nil
}

func (p *RetryProcessor) Metrics() ConsumerMetrics {
	return ConsumerMetrics{
		ProcessedCount: p.processed.Load(),
		RetryCount:     p.retries.Load(),
		DLQCount:       p.dlq.Load(),
		SuccessCount:   p.succeeded.Load(),
		FailureCount:   p.failed.Load(),
	}
}

func (p *RetryProcessor) handleWithRetry(ctx context.Context, message *sarama.ConsumerMessage) error {
	var event OrderCreatedEvent
	if err := json.Unmarshal(message.Value, &event); err != nil {
		p.logger.WithError(err).WithField("key", string(message.Key)).Error("Failed to unmarshal order created event")
		return fmt.Errorf("malformed order created event: %w", err)
	}

	delay := p.policy.InitialDelay
	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			p.logger.WithFields(logrus.Fields{
				"order_id": event.OrderID,
				"attempt":  attempt,
				"delay":    delay,
			}).Info("Retrying order event")

			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
			p.retries.Add(1)

			delay *= 2
			if delay > p.policy.MaxDelay {
				delay = p.policy.MaxDelay
			}
		}

		err := p.handler.HandleOrderCreated(ctx, event)
		if err == nil {
			return nil
		}

		if !p.handler.IsRetryable(err) {
			p.logger.WithError(err).WithField("order_id", event.OrderID).Error("Non-retryable error processing order event")
			return err
		}
		if attempt >= p.policy.MaxRetries {
			return fmt.Errorf("exhausted %d retries for order %s: %w", p.policy.MaxRetries, event.OrderID, err)
		}

		p.logger.WithError(err).WithFields(logrus.Fields{
			"order_id": event.OrderID,
			"attempt":  attempt + 1,
		}).Warn("Retryable error processing order event")
	}
}

// retryCount reads how many times a message has been replayed from the dead
// letter topic.
func retryCount(headers []*sarama.RecordHeader) int {
	for _, header := range headers {
		if header != nil && string(header.Key) == retryCountHeader {
			if n, err := strconv.Atoi(string(header.Value)); err == nil {
				return n
			}
		}
	}
	return 0
}

func (p *RetryProcessor) sendToDLQ(message *sarama.ConsumerMessage, processingError error) error {
	now := time.Now().UTC()
	metadata := MessageMetadata{
		RetryCount:    retryCount(message.Headers),
		FirstFailure:  now,
		LastFailure:   now,
		OriginalTopic: message.Topic,
		ErrorMessage:  processingError.Error(),
	}

	metadataBytes, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	dlqMessage := &sarama.ProducerMessage{
		Topic: OrderCreatedDLQTopic,
		Key:   sarama.ByteEncoder(message.Key),
		Value: sarama.ByteEncoder(message.Value),
		Headers: []sarama.RecordHeader{
			{Key: []byte("metadata"), Value: metadataBytes},
			{Key: []byte("original_topic"), Value: []byte(message.Topic)},
			{Key: []byte("original_partition"), Value: []byte(strconv.Itoa(int(message.Partition)))},
			{Key: []byte("original_offset"), Value: []byte(strconv.FormatInt(message.Offset, 10))},
			{Key: []byte("failure_time"), Value: []byte(now.Format(time.RFC3339))},
		},
	}

	partition, offset, err := p.producer.SendMessage(dlqMessage)
	if err != nil {
		return fmt.Errorf("failed to send to DLQ: %w", err)
	}

	p.logger.WithFields(logrus.Fields{
		"dlq_topic":     OrderCreatedDLQTopic,
		"dlq_partition": partition,
		"dlq_offset":    offset,
		"original_key":  string(message.Key),
		"error":         processingError.Error(),
	}).Warn("Message sent to dead letter queue")

	return nil
}

// RetryConsumer runs a RetryProcessor over the order.created topic of a
// consumer group.
type RetryConsumer struct {
	group     sarama.ConsumerGroup
	producer  sarama.SyncProducer
	processor *RetryProcessor
	logger    *logrus.Logger
}

func NewRetryConsumer(brokers []string, groupID string, handler OrderCreatedHandler, policy RetryPolicy, logger *logrus.Logger) (*RetryConsumer, error) {
	group, err := sarama.NewConsumerGroup(brokers, groupID, consumerConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer group: %w", err)
	}

	producer, err := sarama.NewSyncProducer(brokers, producerConfig())
	if err != nil {
		group.Close()
		return nil, fmt.Errorf("failed to create producer for DLQ: %w", err)
	}

	return &RetryConsumer{
		group:     group,
		producer:  producer,
		processor: NewRetryProcessor(handler, producer, policy, logger),
		logger:    logger,
	}, nil
}

func (c *RetryConsumer) Start(ctx context.Context) error {
	handler := &groupHandler{name: "order-created", fn: c.processor.Process, logger: c.logger}
	return runGroup(ctx, c.group, []string{OrderCreatedTopic}, handler, c.logger)
}

func (c *RetryConsumer) Metrics() ConsumerMetrics {
	return c.processor.Metrics()
}

func (c *RetryConsumer) Close() error {
	if err := c.producer.Close(); err != nil {
		c.logger.WithError(err).Error("Failed to close producer")
	}
	return c.group.Close()
}
