package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jogardn/food-orders/pkg/models"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

const restaurantColumns = `
	r.id, r.name, r.slug, r.city, r.address, r.post_code, r.phone, c.name, r.delivery_price`

func scanRestaurant(row rowScanner) (*models.Restaurant, error) {
	r := &models.Restaurant{}
	if err := row.Scan(&r.ID, &r.Name, &r.Slug, &r.City, &r.Address, &r.PostCode, &r.Phone, &r.Cuisine, &r.DeliveryPrice); err != nil {
		return nil, err
	}
	return r, nil
}

// ListRestaurants returns restaurants matching the filter ordered by name.
func (s *Store) ListRestaurants(ctx context.Context, filter models.RestaurantFilter) ([]*models.Restaurant, error) {
	var conditions []string
	var args []any
	if filter.City != "" {
		args = append(args, filter.City)
		conditions = append(conditions, fmt.Sprintf("r.city = $%d", len(args)))
	}
	if filter.Cuisine != "" {
		args = append(args, filter.Cuisine)
		conditions = append(conditions, fmt.Sprintf("LOWER(c.name) = $%d", len(args)))
	}

	query := `SELECT` + restaurantColumns + `
		FROM restaurants r JOIN cuisines c ON c.id = r.cuisine_id`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY r.name"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	restaurants := []*models.Restaurant{}
	for rows.Next() {
		r, err := scanRestaurant(rows)
		if err != nil {
			return nil, err
		}
		restaurants = append(restaurants, r)
	}
	return restaurants, rows.Err()
}

func (s *Store) RestaurantByID(ctx context.Context, id int64) (*models.Restaurant, error) {
	r, err := scanRestaurant(s.db.QueryRowContext(ctx, `SELECT`+restaurantColumns+`
		FROM restaurants r JOIN cuisines c ON c.id = r.cuisine_id
		WHERE r.id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return r, err
}

// RestaurantBySlug returns a restaurant and its menu.
func (s *Store) RestaurantBySlug(ctx context.Context, slug string) (*models.RestaurantDetail, error) {
	r, err := scanRestaurant(s.db.QueryRowContext(ctx, `SELECT`+restaurantColumns+`
		FROM restaurants r JOIN cuisines c ON c.id = r.cuisine_id
		WHERE r.slug = $1`, slug))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	detail := &models.RestaurantDetail{
		Restaurant: *r,
		Menu:       models.Menu{Meals: []models.Meal{}, Drinks: []models.Drink{}},
	}

	meals, err := s.db.QueryContext(ctx, `
		SELECT ml.id, ml.name, ml.price, ml.description, t.name,
			COALESCE(ARRAY_AGG(i.name ORDER BY i.name) FILTER (WHERE i.name IS NOT NULL), '{}')
		FROM menus m
		JOIN menu_meals mm ON mm.menu_id = m.id
		JOIN meals ml ON ml.id = mm.meal_id
		JOIN tags t ON t.id = ml.tag_id
		LEFT JOIN meal_ingredients mi ON mi.meal_id = ml.id
		LEFT JOIN ingredients i ON i.id = mi.ingredient_id
		WHERE m.restaurant_id = $1
		GROUP BY ml.id, t.name
		ORDER BY ml.id`, r.ID)
	if err != nil {
		return nil, err
	}
	defer meals.Close()

	for meals.Next() {
		var meal models.Meal
		if err := meals.Scan(&meal.ID, &meal.Name, &meal.Price, &meal.Description, &meal.Tag, pq.Array(&meal.Ingredients)); err != nil {
			return nil, err
		}
		detail.Menu.Meals = append(detail.Menu.Meals, meal)
	}
	if err := meals.Err(); err != nil {
		return nil, err
	}

	drinks, err := s.db.QueryContext(ctx, `
		SELECT d.id, d.name, d.price, t.name
		FROM menus m
		JOIN menu_drinks md ON md.menu_id = m.id
		JOIN drinks d ON d.id = md.drink_id
		JOIN tags t ON t.id = d.tag_id
		WHERE m.restaurant_id = $1
		ORDER BY d.id`, r.ID)
	if err != nil {
		return nil, err
	}
	defer drinks.Close()

	for drinks.Next() {
		var drink models.Drink
		if err := drinks.Scan(&drink.ID, &drink.Name, &drink.Price, &drink.Tag); err != nil {
			return nil, err
		}
		detail.Menu.Drinks = append(detail.Menu.Drinks, drink)
	}
	return detail, drinks.Err()
}

func decimalFromInt(n int) decimal.Decimal {
	return decimal.NewFromInt(int64(n))
}
