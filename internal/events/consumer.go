package events

import (
	"context"
	"errors"

	"github.com/IBM/sarama"
	"github.com/sirupsen/logrus"
)

// MessageFunc processes one consumed message. Messages are marked as
// consumed regardless of the returned error; callers that want a message
// kept around route it to a dead letter topic first.
type MessageFunc func(ctx context.Context, message *sarama.ConsumerMessage) error

type groupHandler struct {
	name   string
	fn     MessageFunc
	logger *logrus.Logger
}

func (h *groupHandler) Setup(sarama.ConsumerGroupSession) error {
	h.logger.WithField("consumer", h.name).Info("Kafka consumer group session setup")
	return nil
}

func (h *groupHandler) Cleanup(sarama.ConsumerGroupSession) error {
	h.logger.WithField("consumer", h.name).Info("Kafka consumer group session cleanup")
	return nil
}

func (h *groupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case message, ok := <-claim.Messages():
			if !ok || message == nil {
				return nil
			}

			if err := h.fn(session.Context(), message); err != nil {
				h.logger.WithError(err).WithFields(logrus.Fields{
					"consumer":  h.name,
					"topic":     message.Topic,
					"partition": message.Partition,
					"offset":    message.Offset,
				}).Error("Failed to process message")
			}

			session.MarkMessage(message, "")

		case <-session.Context().Done():
			return nil
		}
	}
}

// runGroup consumes topics until ctx is cancelled. Consume returns on every
// rebalance, so it is called in a loop.
func runGroup(ctx context.Context, group sarama.ConsumerGroup, topics []string, handler sarama.ConsumerGroupHandler, logger *logrus.Logger) error {
	for {
		select {
		case <-ctx.Done():
			logger.Info("Kafka consumer context cancelled")
			return nil
		default:
			if err := group.Consume(ctx, topics, handler); err != nil {
				if errors.Is(err, sarama.ErrClosedConsumerGroup) {
					return nil
				}
				logger.WithError(err).Error("Error consuming from Kafka")
				return err
			}
		}
	}
}
