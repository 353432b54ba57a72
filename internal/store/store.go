// Package store persists restaurants, users and orders in PostgreSQL.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jogardn/food-orders/internal/config"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("already exists")
)

const uniqueViolation = "23505"

type Store struct {
	db     *sql.DB
	logger *logrus.Logger
}

func New(db *sql.DB, logger *logrus.Logger) *Store {
	return &Store{db: db, logger: logger}
}

// Open connects to PostgreSQL and waits for the database to accept
// connections.
func Open(ctx context.Context, cfg config.DBConfig, logger *logrus.Logger) (*Store, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	for i := 0; i < 30; i++ {
		if err = db.PingContext(ctx); err == nil {
			logger.Info("Database connection established")
			return New(db, logger), nil
		}
		logger.WithField("attempt", i+1).Info("Waiting for database...")

		select {
		case <-ctx.Done():
			db.Close()
			return nil, ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}

	db.Close()
	return nil, fmt.Errorf("database not reachable: %w", err)
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
