package ordering

import (
	"context"
	"errors"
	"io"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type fakeCatalog struct {
	menus  map[int64]map[MenuItemRef]bool
	prices map[MenuItemRef]decimal.Decimal
	fees   map[int64]decimal.Decimal

	belongsCalls int
	failBelongs  error
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		menus:  make(map[int64]map[MenuItemRef]bool),
		prices: make(map[MenuItemRef]decimal.Decimal),
		fees:   make(map[int64]decimal.Decimal),
	}
}

func (c *fakeCatalog) addItem(restaurantID int64, item MenuItemRef, price string) {
	if c.menus[restaurantID] == nil {
		c.menus[restaurantID] = make(map[MenuItemRef]bool)
	}
	c.menus[restaurantID][item] = true
	c.prices[item] = decimal.RequireFromString(price)
}

func (c *fakeCatalog) Belongs(ctx context.Context, restaurantID int64, item MenuItemRef) (bool, error) {
	c.belongsCalls++
	if c.failBelongs != nil {
		return false, c.failBelongs
	}
	return c.menus[restaurantID][item], nil
}

func (c *fakeCatalog) UnitPrice(ctx context.Context, item MenuItemRef) (decimal.Decimal, error) {
	price, ok := c.prices[item]
	if !ok {
		return decimal.Zero, errors.New("no price")
	}
	return price, nil
}

func (c *fakeCatalog) DeliveryFee(ctx context.Context, restaurantID int64) (decimal.Decimal, error) {
	fee, ok := c.fees[restaurantID]
	if !ok {
		return decimal.Zero, errors.New("no restaurant")
	}
	return fee, nil
}

type storedOrder struct {
	header Header
	meals  []PricedLine
	drinks []PricedLine
}

// fakeStore keeps orders written inside a transaction only when it commits.
type fakeStore struct {
	*fakeCatalog
	orders    []storedOrder
	pending   []storedOrder
	createErr error
	txCount   int
}

func (s *fakeStore) CreateOrder(ctx context.Context, header Header, meals, drinks []PricedLine) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.pending = append(s.pending, storedOrder{header: header, meals: meals, drinks: drinks})
	return nil
}

func (s *fakeStore) WithinTx(ctx context.Context, fn func(ctx context.Context, uow UnitOfWork) error) error {
	s.txCount++
	s.pending = nil
	if err := fn(ctx, s); err != nil {
		s.pending = nil
		return err
	}
	s.orders = append(s.orders, s.pending...)
	s.pending = nil
	return nil
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}
