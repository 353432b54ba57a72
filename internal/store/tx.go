package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jogardn/food-orders/internal/ordering"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// WithinTx runs fn in a transaction. Menu rows read through the unit of work
// are locked FOR SHARE until commit, so a menu edit cannot slip in between
// the membership check and the order insert.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, uow ordering.UnitOfWork) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(ctx, &unitOfWork{tx: tx, logger: s.logger}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

type unitOfWork struct {
	tx     *sql.Tx
	logger *logrus.Logger
}

var membershipQueries = map[ordering.Kind]string{
	ordering.KindMeal: `
		SELECT 1 FROM menu_meals mi
		JOIN menus m ON m.id = mi.menu_id
		WHERE m.restaurant_id = $1 AND mi.meal_id = $2
		FOR SHARE OF mi`,
	ordering.KindDrink: `
		SELECT 1 FROM menu_drinks mi
		JOIN menus m ON m.id = mi.menu_id
		WHERE m.restaurant_id = $1 AND mi.drink_id = $2
		FOR SHARE OF mi`,
}

var priceQueries = map[ordering.Kind]string{
	ordering.KindMeal:  `SELECT price FROM meals WHERE id = $1`,
	ordering.KindDrink: `SELECT price FROM drinks WHERE id = $1`,
}

var lineInserts = map[ordering.Kind]string{
	ordering.KindMeal: `
		INSERT INTO order_meals (order_id, meal_id, position, quantity, unit_price)
		VALUES ($1, $2, $3, $4, $5)`,
	ordering.KindDrink: `
		INSERT INTO order_drinks (order_id, drink_id, position, quantity, unit_price)
		VALUES ($1, $2, $3, $4, $5)`,
}

func (u *unitOfWork) Belongs(ctx context.Context, restaurantID int64, item ordering.MenuItemRef) (bool, error) {
	query, ok := membershipQueries[item.Kind]
	if !ok {
		return false, nil
	}

	var one int
	err := u.tx.QueryRowContext(ctx, query, restaurantID, item.ID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (u *unitOfWork) UnitPrice(ctx context.Context, item ordering.MenuItemRef) (decimal.Decimal, error) {
	query, ok := priceQueries[item.Kind]
	if !ok {
		return decimal.Zero, fmt.Errorf("unknown item kind %q", item.Kind)
	}

	var price decimal.Decimal
	err := u.tx.QueryRowContext(ctx, query, item.ID).Scan(&price)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, fmt.Errorf("%s: %w", item, ErrNotFound)
	}
	return price, err
}

func (u *unitOfWork) DeliveryFee(ctx context.Context, restaurantID int64) (decimal.Decimal, error) {
	var fee decimal.Decimal
	err := u.tx.QueryRowContext(ctx, `SELECT delivery_price FROM restaurants WHERE id = $1`, restaurantID).Scan(&fee)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, fmt.Errorf("restaurant %d: %w", restaurantID, ErrNotFound)
	}
	return fee, err
}

func (u *unitOfWork) CreateOrder(ctx context.Context, header ordering.Header, meals, drinks []ordering.PricedLine) error {
	_, err := u.tx.ExecContext(ctx, `
		INSERT INTO orders (id, user_id, restaurant_id, delivery_address, delivery_city,
			delivery_post_code, delivery_phone, order_time, total_price)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		header.ID, header.UserID, header.RestaurantID, header.DeliveryAddress, header.DeliveryCity,
		header.DeliveryPostCode, header.DeliveryPhone, header.CreatedAt, header.TotalPrice)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}

	for _, lines := range [][]ordering.PricedLine{meals, drinks} {
		for i, line := range lines {
			query, ok := lineInserts[line.Item.Kind]
			if !ok {
				return fmt.Errorf("unknown item kind %q", line.Item.Kind)
			}
			if _, err := u.tx.ExecContext(ctx, query, header.ID, line.Item.ID, i, line.Quantity, line.UnitPrice); err != nil {
				return fmt.Errorf("failed to insert %s line: %w", line.Item.Kind, err)
			}
		}
	}

	u.logger.WithFields(logrus.Fields{
		"order_id":    header.ID,
		"meal_lines":  len(meals),
		"drink_lines": len(drinks),
	}).Debug("Order rows written")

	return nil
}
