package delivery

import (
	"context"
	"errors"
	"net"

	"github.com/jogardn/food-orders/internal/circuitbreaker"
	"github.com/jogardn/food-orders/internal/events"
	"github.com/jogardn/food-orders/internal/store"
	"github.com/sirupsen/logrus"
)

// DurationSource answers travel times between two addresses.
type DurationSource interface {
	DeliveryTime(ctx context.Context, origin, destination string) (string, error)
}

// EstimateWriter stores the estimate on the order.
type EstimateWriter interface {
	SetDeliveryEstimate(ctx context.Context, orderID, estimate string) error
}

// Estimator fills in the average delivery time of newly created orders.
type Estimator struct {
	source DurationSource
	orders EstimateWriter
	logger *logrus.Logger
}

func NewEstimator(source DurationSource, orders EstimateWriter, logger *logrus.Logger) *Estimator {
	return &Estimator{
		source: source,
		orders: orders,
		logger: logger,
	}
}

func (e *Estimator) HandleOrderCreated(ctx context.Context, event events.OrderCreatedEvent) error {
	estimate, err := e.source.DeliveryTime(ctx, event.Origin, event.Destination)
	if errors.Is(err, ErrNoRoute) {
		estimate, err = NoEstimate, nil
	}
	if err != nil {
		return err
	}

	if err := e.orders.SetDeliveryEstimate(ctx, event.OrderID, estimate); err != nil {
		return err
	}

	e.logger.WithFields(logrus.Fields{
		"order_id":      event.OrderID,
		"restaurant_id": event.RestaurantID,
		"estimate":      estimate,
	}).Info("Delivery time estimated")

	return nil
}

// IsRetryable treats network failures, 5xx/429 answers, an open breaker and
// database errors as transient. A missing order and a malformed answer are
// not.
func (e *Estimator) IsRetryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, store.ErrNotFound), errors.Is(err, ErrMalformedResponse):
		return false
	case errors.Is(err, circuitbreaker.ErrOpen):
		return true
	}

	var upstream *UpstreamError
	if errors.As(err, &upstream) {
		return upstream.Temporary()
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	// Anything else comes from the database.
	return !errors.Is(err, context.Canceled)
}
