package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/IBM/sarama"
	"github.com/sirupsen/logrus"
)

const (
	OrderCreatedTopic    = "order.created"
	OrderCreatedDLQTopic = "order.created.dlq"
)

// OrderCreatedEvent is published once an order has been committed. Origin is
// the restaurant address and Destination the delivery address, both in the
// "street, city post_code" form the distance matrix expects.
type OrderCreatedEvent struct {
	OrderID      string    `json:"order_id"`
	UserID       int64     `json:"user_id"`
	RestaurantID int64     `json:"restaurant_id"`
	TotalPrice   string    `json:"total_price"`
	Origin       string    `json:"origin"`
	Destination  string    `json:"destination"`
	CreatedAt    time.Time `json:"created_at"`
	EventTime    time.Time `json:"event_time"`
}

func producerConfig() *sarama.Config {
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5
	config.Producer.Return.Successes = true
	config.Version = sarama.V2_6_0_0
	return config
}

func consumerConfig() *sarama.Config {
	config := sarama.NewConfig()
	config.Consumer.Group.Rebalance.Strategy = sarama.BalanceStrategyRoundRobin
	config.Consumer.Offsets.Initial = sarama.OffsetOldest
	config.Version = sarama.V2_6_0_0
	return config
}

type KafkaProducer struct {
	producer sarama.SyncProducer
	logger   *logrus.Logger
	now      func() time.Time
}

func NewKafkaProducer(brokers []string, logger *logrus.Logger) (*KafkaProducer, error) {
	producer, err := sarama.NewSyncProducer(brokers, producerConfig())
	if err != nil {
		return nil, err
	}
	return NewProducer(producer, logger), nil
}

// NewProducer wraps an existing sync producer.
func NewProducer(producer sarama.SyncProducer, logger *logrus.Logger) *KafkaProducer {
	return &KafkaProducer{
		producer: producer,
		logger:   logger,
		now:      time.Now,
	}
}

func (p *KafkaProducer) PublishOrderCreated(ctx context.Context, event OrderCreatedEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	event.EventTime = p.now().UTC()

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := &sarama.ProducerMessage{
		Topic: OrderCreatedTopic,
		Key:   sarama.StringEncoder(event.OrderID),
		Value: sarama.ByteEncoder(data),
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		p.logger.WithError(err).WithField("order_id", event.OrderID).Error("Failed to send message to Kafka")
		return err
	}

	p.logger.WithFields(logrus.Fields{
		"topic":     OrderCreatedTopic,
		"partition": partition,
		"offset":    offset,
		"order_id":  event.OrderID,
	}).Info("Event published to Kafka")

	return nil
}

func (p *KafkaProducer) Close() error {
	return p.producer.Close()
}
