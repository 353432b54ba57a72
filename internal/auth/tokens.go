package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var ErrInvalidToken = errors.New("invalid or expired token")

type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

type TokenTTLs struct {
	Access  time.Duration
	Refresh time.Duration
	Reset   time.Duration
}

// TokenStore keeps opaque bearer, refresh and password-reset tokens in Redis.
// Each token key maps to the user id it was issued for and expires with the
// token.
type TokenStore struct {
	client    *redis.Client
	keyPrefix string
	ttls      TokenTTLs
	logger    *logrus.Logger
}

func NewTokenStore(client *redis.Client, ttls TokenTTLs, logger *logrus.Logger) *TokenStore {
	return &TokenStore{
		client:    client,
		keyPrefix: "food-orders:token",
		ttls:      ttls,
		logger:    logger,
	}
}

// NewRedisClient parses a redis:// URL and checks the connection.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

func (s *TokenStore) key(kind, token string) string {
	return fmt.Sprintf("%s:%s:%s", s.keyPrefix, kind, token)
}

// Issue creates a new access/refresh token pair for the user.
func (s *TokenStore) Issue(ctx context.Context, userID int64) (*TokenPair, error) {
	pair := &TokenPair{
		AccessToken:  uuid.New().String(),
		RefreshToken: uuid.New().String(),
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.ttls.Access.Seconds()),
	}

	id := strconv.FormatInt(userID, 10)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key("access", pair.AccessToken), id, s.ttls.Access)
		pipe.Set(ctx, s.key("refresh", pair.RefreshToken), id, s.ttls.Refresh)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store tokens: %w", err)
	}

	s.logger.WithField("user_id", userID).Debug("Token pair issued")
	return pair, nil
}

// Authenticate resolves an access token to its user id.
func (s *TokenStore) Authenticate(ctx context.Context, accessToken string) (int64, error) {
	return s.lookup(ctx, "access", accessToken)
}

// Refresh consumes a refresh token and issues a new pair.
func (s *TokenStore) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	userID, err := s.consume(ctx, "refresh", refreshToken)
	if err != nil {
		return nil, err
	}
	return s.Issue(ctx, userID)
}

func (s *TokenStore) Revoke(ctx context.Context, accessToken string) error {
	return s.client.Del(ctx, s.key("access", accessToken)).Err()
}

// IssueResetToken creates a one-time password reset token.
func (s *TokenStore) IssueResetToken(ctx context.Context, userID int64) (string, error) {
	token := uuid.New().String()
	if err := s.client.Set(ctx, s.key("reset", token), userID, s.ttls.Reset).Err(); err != nil {
		return "", fmt.Errorf("failed to store reset token: %w", err)
	}
	return token, nil
}

// ConsumeResetToken returns the user of a reset token and invalidates it.
func (s *TokenStore) ConsumeResetToken(ctx context.Context, token string) (int64, error) {
	return s.consume(ctx, "reset", token)
}

func (s *TokenStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *TokenStore) lookup(ctx context.Context, kind, token string) (int64, error) {
	if token == "" {
		return 0, ErrInvalidToken
	}
	value, err := s.client.Get(ctx, s.key(kind, token)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, ErrInvalidToken
	}
	if err != nil {
		return 0, err
	}
	return parseUserID(value)
}

func (s *TokenStore) consume(ctx context.Context, kind, token string) (int64, error) {
	if token == "" {
		return 0, ErrInvalidToken
	}
	value, err := s.client.GetDel(ctx, s.key(kind, token)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, ErrInvalidToken
	}
	if err != nil {
		return 0, err
	}
	return parseUserID(value)
}

func parseUserID(value string) (int64, error) {
	id, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, ErrInvalidToken
	}
	return id, nil
}
