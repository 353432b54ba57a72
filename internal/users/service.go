// Package users manages accounts: registration, bearer tokens and password
// changes.
package users

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/jogardn/food-orders/internal/auth"
	mailqueue "github.com/jogardn/food-orders/internal/mail"
	"github.com/jogardn/food-orders/internal/store"
	"github.com/jogardn/food-orders/pkg/models"
	"github.com/sirupsen/logrus"
)

var (
	ErrInvalidEmail       = errors.New("enter a valid email address")
	ErrNameRequired       = errors.New("name is required")
	ErrEmailTaken         = errors.New("user with this email or name already exists")
	ErrInvalidCredentials = errors.New("wrong credentials")
	ErrWrongOldPassword   = errors.New("old password is incorrect or similar to new one")
)

type Repository interface {
	CreateUser(ctx context.Context, email, name, passwordHash string) (*models.User, error)
	UserByEmail(ctx context.Context, email string) (*models.User, error)
	UserByID(ctx context.Context, id int64) (*models.User, error)
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error
}

type Tokens interface {
	Issue(ctx context.Context, userID int64) (*auth.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*auth.TokenPair, error)
	Revoke(ctx context.Context, accessToken string) error
	IssueResetToken(ctx context.Context, userID int64) (string, error)
	ConsumeResetToken(ctx context.Context, token string) (int64, error)
}

type MailQueue interface {
	Publish(ctx context.Context, email mailqueue.Email) error
}

type Service struct {
	users    Repository
	tokens   Tokens
	mail     MailQueue
	resetURL string
	logger   *logrus.Logger
}

func NewService(users Repository, tokens Tokens, mail MailQueue, resetURL string, logger *logrus.Logger) *Service {
	return &Service{
		users:    users,
		tokens:   tokens,
		mail:     mail,
		resetURL: resetURL,
		logger:   logger,
	}
}

// NormalizeEmail lower-cases the domain part of an address.
func NormalizeEmail(email string) (string, error) {
	email = strings.TrimSpace(email)
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", ErrInvalidEmail
	}
	local, domain, ok := strings.Cut(email, "@")
	if !ok || local == "" || domain == "" {
		return "", ErrInvalidEmail
	}
	return local + "@" + strings.ToLower(domain), nil
}

func (s *Service) Register(ctx context.Context, email, name, password string) (*models.User, error) {
	email, err := NormalizeEmail(email)
	if err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrNameRequired
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}

	user, err := s.users.CreateUser(ctx, email, name, hash)
	if errors.Is(err, store.ErrDuplicate) {
		return nil, ErrEmailTaken
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.WithField("user_id", user.ID).Info("User registered")
	return user, nil
}

// Login checks credentials and issues a token pair.
func (s *Service) Login(ctx context.Context, email, password string) (*auth.TokenPair, error) {
	email, err := NormalizeEmail(email)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	user, err := s.users.UserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !user.IsActive || !auth.CheckPassword(user.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}

	return s.tokens.Issue(ctx, user.ID)
}

func (s *Service) Refresh(ctx context.Context, refreshToken string) (*auth.TokenPair, error) {
	return s.tokens.Refresh(ctx, refreshToken)
}

func (s *Service) Logout(ctx context.Context, accessToken string) error {
	return s.tokens.Revoke(ctx, accessToken)
}

func (s *Service) Profile(ctx context.Context, userID int64) (*models.User, error) {
	return s.users.UserByID(ctx, userID)
}

// ChangePassword requires the current password and a different new one.
func (s *Service) ChangePassword(ctx context.Context, userID int64, oldPassword, newPassword string) error {
	user, err := s.users.UserByID(ctx, userID)
	if err != nil {
		return err
	}
	if oldPassword == newPassword || !auth.CheckPassword(user.PasswordHash, oldPassword) {
		return ErrWrongOldPassword
	}

	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return err
	}
	return s.users.UpdatePassword(ctx, userID, hash)
}

// RequestPasswordReset queues a reset email when the address belongs to an
// account. Unknown addresses are not reported to the caller.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	email, err := NormalizeEmail(email)
	if err != nil {
		return err
	}

	user, err := s.users.UserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		s.logger.Info("Password reset requested for unknown email")
		return nil
	}
	if err != nil {
		return err
	}

	token, err := s.tokens.IssueResetToken(ctx, user.ID)
	if err != nil {
		return err
	}

	if err := s.mail.Publish(ctx, mailqueue.PasswordReset(user.Email, user.Name, s.resetURL, token)); err != nil {
		return fmt.Errorf("failed to queue reset email: %w", err)
	}

	s.logger.WithField("user_id", user.ID).Info("Password reset email queued")
	return nil
}

func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	if len(newPassword) < auth.MinPasswordLength {
		return auth.ErrPasswordTooShort
	}

	userID, err := s.tokens.ConsumeResetToken(ctx, token)
	if err != nil {
		return err
	}

	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, userID, hash); err != nil {
		return err
	}

	s.logger.WithField("user_id", userID).Info("Password reset")
	return nil
}
