package ordering

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Catalog is the read side of the restaurant data an order is composed from.
type Catalog interface {
	MenuMembership
	PriceLookup
	DeliveryFee(ctx context.Context, restaurantID int64) (decimal.Decimal, error)
}

// Header holds the order fields that are not line items.
type Header struct {
	ID               string
	UserID           int64
	RestaurantID     int64
	DeliveryAddress  string
	DeliveryCity     string
	DeliveryPostCode string
	DeliveryPhone    string
	CreatedAt        time.Time
	TotalPrice       decimal.Decimal
}

// UnitOfWork is a catalog view and an order writer bound to one transaction.
type UnitOfWork interface {
	Catalog
	CreateOrder(ctx context.Context, header Header, meals, drinks []PricedLine) error
}

// Store runs fn inside a transaction, committing only when fn returns nil.
type Store interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, uow UnitOfWork) error) error
}

// Submission is a create-order request after decoding.
type Submission struct {
	UserID           int64
	RestaurantID     int64
	DeliveryAddress  string
	DeliveryCity     string
	DeliveryPostCode string
	DeliveryPhone    string
	Meals            []LineItem
	Drinks           []LineItem
}

// Receipt is a created order.
type Receipt struct {
	Header
	Meals       []PricedLine
	Drinks      []PricedLine
	DeliveryFee decimal.Decimal
}

type Composer struct {
	store  Store
	area   ServiceArea
	logger *logrus.Logger
	now    func() time.Time
	newID  func() string
}

func NewComposer(store Store, area ServiceArea, logger *logrus.Logger) *Composer {
	return &Composer{
		store:  store,
		area:   area,
		logger: logger,
		now:    time.Now,
		newID:  func() string { return uuid.New().String() },
	}
}

// Submit validates, aggregates, prices and persists an order. Everything
// after validation runs in one transaction, so a rejected or failed
// submission never leaves a partial order behind.
func (c *Composer) Submit(ctx context.Context, sub Submission) (*Receipt, error) {
	if err := c.area.Validate(sub.DeliveryCity, sub.DeliveryPostCode, sub.Meals, sub.Drinks); err != nil {
		c.logger.WithError(err).WithField("user_id", sub.UserID).Info("Order rejected by delivery rules")
		return nil, err
	}

	receipt := &Receipt{
		Header: Header{
			ID:               c.newID(),
			UserID:           sub.UserID,
			RestaurantID:     sub.RestaurantID,
			DeliveryAddress:  sub.DeliveryAddress,
			DeliveryCity:     sub.DeliveryCity,
			DeliveryPostCode: sub.DeliveryPostCode,
			DeliveryPhone:    sub.DeliveryPhone,
			CreatedAt:        c.now().UTC(),
		},
	}

	err := c.store.WithinTx(ctx, func(ctx context.Context, uow UnitOfWork) error {
		meals, err := Aggregate(ctx, uow, sub.RestaurantID, KindMeal, sub.Meals)
		if err != nil {
			return err
		}
		drinks, err := Aggregate(ctx, uow, sub.RestaurantID, KindDrink, sub.Drinks)
		if err != nil {
			return err
		}

		fee, err := uow.DeliveryFee(ctx, sub.RestaurantID)
		if err != nil {
			return fmt.Errorf("failed to read delivery fee: %w", err)
		}

		quote, err := Price(ctx, uow, meals, drinks, fee)
		if err != nil {
			return err
		}

		receipt.TotalPrice = quote.Total
		receipt.Meals = quote.Meals
		receipt.Drinks = quote.Drinks
		receipt.DeliveryFee = quote.DeliveryFee

		return uow.CreateOrder(ctx, receipt.Header, quote.Meals, quote.Drinks)
	})
	if err != nil {
		if IsRejection(err) {
			c.logger.WithError(err).WithFields(logrus.Fields{
				"user_id":       sub.UserID,
				"restaurant_id": sub.RestaurantID,
			}).Info("Order rejected by menu rules")
		}
		return nil, err
	}

	c.logger.WithFields(logrus.Fields{
		"order_id":      receipt.ID,
		"user_id":       receipt.UserID,
		"restaurant_id": receipt.RestaurantID,
		"total_price":   receipt.TotalPrice.StringFixed(2),
		"meal_lines":    len(receipt.Meals),
		"drink_lines":   len(receipt.Drinks),
	}).Info("Order composed")

	return receipt, nil
}

