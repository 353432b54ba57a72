package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jogardn/food-orders/pkg/models"
)

const orderColumns = `
	o.id, o.user_id, o.restaurant_id, r.name, o.delivery_address, o.delivery_city,
	o.delivery_post_code, o.delivery_phone, o.order_time, o.total_price, o.average_delivery_time`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*models.Order, error) {
	order := &models.Order{}
	err := row.Scan(
		&order.ID, &order.UserID, &order.RestaurantID, &order.Restaurant, &order.DeliveryAddress,
		&order.DeliveryCity, &order.DeliveryPostCode, &order.DeliveryPhone, &order.OrderTime,
		&order.TotalPrice, &order.AverageDeliveryTime,
	)
	if err != nil {
		return nil, err
	}
	return order, nil
}

// ListOrders returns the headers of a user's orders, newest first.
func (s *Store) ListOrders(ctx context.Context, userID int64) ([]*models.Order, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT`+orderColumns+`
		FROM orders o JOIN restaurants r ON r.id = o.restaurant_id
		WHERE o.user_id = $1
		ORDER BY o.order_time DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := []*models.Order{}
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, rows.Err()
}

// GetOrder returns one of the user's orders with its priced lines.
func (s *Store) GetOrder(ctx context.Context, userID int64, orderID string) (*models.Order, error) {
	order, err := scanOrder(s.db.QueryRowContext(ctx, `
		SELECT`+orderColumns+`
		FROM orders o JOIN restaurants r ON r.id = o.restaurant_id
		WHERE o.id = $1 AND o.user_id = $2`, orderID, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if order.Meals, err = s.orderLines(ctx, `
		SELECT ol.meal_id, m.name, ol.quantity, ol.unit_price
		FROM order_meals ol JOIN meals m ON m.id = ol.meal_id
		WHERE ol.order_id = $1 ORDER BY ol.position`, orderID); err != nil {
		return nil, err
	}
	if order.Drinks, err = s.orderLines(ctx, `
		SELECT ol.drink_id, d.name, ol.quantity, ol.unit_price
		FROM order_drinks ol JOIN drinks d ON d.id = ol.drink_id
		WHERE ol.order_id = $1 ORDER BY ol.position`, orderID); err != nil {
		return nil, err
	}

	return order, nil
}

func (s *Store) orderLines(ctx context.Context, query, orderID string) ([]models.OrderLine, error) {
	rows, err := s.db.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	lines := []models.OrderLine{}
	for rows.Next() {
		var line models.OrderLine
		if err := rows.Scan(&line.ItemID, &line.Name, &line.Quantity, &line.Price); err != nil {
			return nil, err
		}
		line.TotalPrice = models.NewMoney(line.Price.Mul(decimalFromInt(line.Quantity)))
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

// SetDeliveryEstimate records the average delivery time of an order.
func (s *Store) SetDeliveryEstimate(ctx context.Context, orderID, estimate string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE orders SET average_delivery_time = $1 WHERE id = $2`, estimate, orderID)
	if err != nil {
		return fmt.Errorf("failed to update order %s: %w", orderID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("order %s: %w", orderID, ErrNotFound)
	}
	return nil
}
