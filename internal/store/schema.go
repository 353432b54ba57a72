package store

import (
	"context"
	"fmt"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS cuisines (
		id SERIAL PRIMARY KEY,
		name VARCHAR(255) NOT NULL UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS tags (
		id SERIAL PRIMARY KEY,
		name VARCHAR(255) NOT NULL UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS ingredients (
		id SERIAL PRIMARY KEY,
		name VARCHAR(255) NOT NULL UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS restaurants (
		id SERIAL PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		slug VARCHAR(255) NOT NULL UNIQUE,
		city VARCHAR(255) NOT NULL,
		address VARCHAR(255) NOT NULL,
		post_code VARCHAR(7) NOT NULL,
		phone VARCHAR(17) NOT NULL,
		cuisine_id INTEGER NOT NULL REFERENCES cuisines(id) ON DELETE CASCADE,
		delivery_price DECIMAL(5,2) NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS meals (
		id SERIAL PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		price DECIMAL(5,2) NOT NULL,
		description VARCHAR(255) NOT NULL DEFAULT '',
		tag_id INTEGER NOT NULL REFERENCES tags(id) ON DELETE CASCADE
	)`,
	`CREATE TABLE IF NOT EXISTS meal_ingredients (
		meal_id INTEGER NOT NULL REFERENCES meals(id) ON DELETE CASCADE,
		ingredient_id INTEGER NOT NULL REFERENCES ingredients(id) ON DELETE CASCADE,
		PRIMARY KEY (meal_id, ingredient_id)
	)`,
	`CREATE TABLE IF NOT EXISTS drinks (
		id SERIAL PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		price DECIMAL(5,2) NOT NULL,
		tag_id INTEGER NOT NULL REFERENCES tags(id) ON DELETE CASCADE
	)`,
	`CREATE TABLE IF NOT EXISTS menus (
		id SERIAL PRIMARY KEY,
		restaurant_id INTEGER NOT NULL UNIQUE REFERENCES restaurants(id) ON DELETE CASCADE
	)`,
	`CREATE TABLE IF NOT EXISTS menu_meals (
		menu_id INTEGER NOT NULL REFERENCES menus(id) ON DELETE CASCADE,
		meal_id INTEGER NOT NULL REFERENCES meals(id) ON DELETE CASCADE,
		PRIMARY KEY (menu_id, meal_id)
	)`,
	`CREATE TABLE IF NOT EXISTS menu_drinks (
		menu_id INTEGER NOT NULL REFERENCES menus(id) ON DELETE CASCADE,
		drink_id INTEGER NOT NULL REFERENCES drinks(id) ON DELETE CASCADE,
		PRIMARY KEY (menu_id, drink_id)
	)`,
	`CREATE TABLE IF NOT EXISTS users (
		id SERIAL PRIMARY KEY,
		email VARCHAR(255) NOT NULL UNIQUE,
		name VARCHAR(20) NOT NULL UNIQUE,
		password_hash VARCHAR(255) NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		is_staff BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id VARCHAR(36) PRIMARY KEY,
		user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		restaurant_id INTEGER NOT NULL REFERENCES restaurants(id) ON DELETE CASCADE,
		delivery_address VARCHAR(255) NOT NULL,
		delivery_city VARCHAR(255) NOT NULL,
		delivery_post_code VARCHAR(7) NOT NULL,
		delivery_phone VARCHAR(255) NOT NULL,
		order_time TIMESTAMPTZ NOT NULL,
		total_price DECIMAL(10,2) NOT NULL,
		average_delivery_time VARCHAR(255) NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS order_meals (
		id SERIAL PRIMARY KEY,
		order_id VARCHAR(36) NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
		meal_id INTEGER NOT NULL REFERENCES meals(id),
		position INTEGER NOT NULL,
		quantity INTEGER NOT NULL CHECK (quantity > 0),
		unit_price DECIMAL(10,2) NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS order_drinks (
		id SERIAL PRIMARY KEY,
		order_id VARCHAR(36) NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
		drink_id INTEGER NOT NULL REFERENCES drinks(id),
		position INTEGER NOT NULL,
		quantity INTEGER NOT NULL CHECK (quantity > 0),
		unit_price DECIMAL(10,2) NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_restaurants_city ON restaurants(city)`,
	`CREATE INDEX IF NOT EXISTS idx_orders_user_id ON orders(user_id)`,
	`CREATE INDEX IF NOT EXISTS idx_order_meals_order_id ON order_meals(order_id)`,
	`CREATE INDEX IF NOT EXISTS idx_order_drinks_order_id ON order_drinks(order_id)`,
}

// CreateTables creates the schema when it does not exist yet.
func (s *Store) CreateTables(ctx context.Context) error {
	for _, query := range schema {
		if _, err := s.db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}
