package mail

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// channel is the part of *amqp.Channel the queue uses.
type channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	Qos(prefetchCount, prefetchSize int, global bool) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	Close() error
}

// Queue is a durable RabbitMQ work queue of emails.
type Queue struct {
	conn   *amqp.Connection
	ch     channel
	name   string
	logger *logrus.Logger
}

// Dial connects to RabbitMQ, retrying with a linear backoff, and declares
// the queue.
func Dial(ctx context.Context, url, name string, logger *logrus.Logger) (*Queue, error) {
	const maxAttempts = 5

	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		var conn *amqp.Connection
		conn, err = amqp.Dial(url)
		if err == nil {
			var ch *amqp.Channel
			ch, err = conn.Channel()
			if err == nil {
				q, declareErr := newQueue(ch, name, logger)
				if declareErr == nil {
					q.conn = conn
					return q, nil
				}
				err = declareErr
			}
			conn.Close()
		}

		if attempt == maxAttempts {
			break
		}
		wait := time.Duration(attempt) * 2 * time.Second
		logger.WithError(err).WithField("retry_in", wait.String()).Warn("Failed to connect to RabbitMQ, retrying")
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, fmt.Errorf("failed to connect to RabbitMQ after %d attempts: %w", maxAttempts, err)
}

func newQueue(ch channel, name string, logger *logrus.Logger) (*Queue, error) {
	if _, err := ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("failed to declare queue %s: %w", name, err)
	}
	return &Queue{ch: ch, name: name, logger: logger}, nil
}

// Publish enqueues a persistent email job.
func (q *Queue) Publish(ctx context.Context, email Email) error {
	body, err := json.Marshal(email)
	if err != nil {
		return fmt.Errorf("failed to marshal email: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	err = q.ch.PublishWithContext(ctx, "", q.name, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("failed to publish email: %w", err)
	}

	q.logger.WithFields(logrus.Fields{
		"queue":   q.name,
		"subject": email.Subject,
	}).Info("Email queued")
	return nil
}

// Handler delivers one email. A returned error puts the job back on the
// queue.
type Handler func(ctx context.Context, email Email) error

var errDeliveriesClosed = errors.New("delivery channel closed")

// Consume processes jobs one at a time with manual acknowledgement until ctx
// is cancelled or the broker closes the channel.
func (q *Queue) Consume(ctx context.Context, consumerTag string, handle Handler) error {
	if err := q.ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	deliveries, err := q.ch.Consume(q.name, consumerTag, false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	q.logger.WithFields(logrus.Fields{
		"queue":    q.name,
		"consumer": consumerTag,
	}).Info("Consuming email jobs")

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return errDeliveriesClosed
			}
			q.process(ctx, d, handle)
		}
	}
}

func (q *Queue) process(ctx context.Context, d amqp.Delivery, handle Handler) {
	var email Email
	if err := json.Unmarshal(d.Body, &email); err != nil {
		q.logger.WithError(err).WithField("delivery_tag", d.DeliveryTag).Error("Dropping malformed email job")
		if err := d.Nack(false, false); err != nil {
			q.logger.WithError(err).Error("Failed to nack message")
		}
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := handle(ctx, email); err != nil {
		q.logger.WithError(err).WithFields(logrus.Fields{
			"delivery_tag": d.DeliveryTag,
			"subject":      email.Subject,
		}).Error("Failed to deliver email, requeueing")
		if err := d.Nack(false, true); err != nil {
			q.logger.WithError(err).Error("Failed to nack message")
		}
		return
	}

	if err := d.Ack(false); err != nil {
		q.logger.WithError(err).Error("Failed to ack message")
	}
}

func (q *Queue) Close() error {
	if err := q.ch.Close(); err != nil {
		q.logger.WithError(err).Warn("Failed to close channel")
	}
	if q.conn != nil {
		return q.conn.Close()
	}
	return nil
}
