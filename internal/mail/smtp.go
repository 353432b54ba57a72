package mail

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/jogardn/food-orders/internal/circuitbreaker"
	"github.com/jogardn/food-orders/internal/config"
	"github.com/sirupsen/logrus"
)

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPSender delivers emails through an SMTP relay.
type SMTPSender struct {
	addr string
	auth smtp.Auth
	from string
	send sendFunc
	now  func() time.Time
}

func NewSMTPSender(cfg config.SMTPConfig) *SMTPSender {
	var auth smtp.Auth
	if cfg.User != "" {
		auth = smtp.PlainAuth("", cfg.User, cfg.Password, cfg.Host)
	}
	return &SMTPSender{
		addr: net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		auth: auth,
		from: cfg.From,
		send: smtp.SendMail,
		now:  time.Now,
	}
}

func (s *SMTPSender) Send(ctx context.Context, email Email) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.send(s.addr, s.auth, s.from, []string{email.To}, s.message(email)); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

func (s *SMTPSender) message(email Email) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "From: %s\r\n", s.from)
	fmt.Fprintf(&b, "To: %s\r\n", email.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", email.Subject))
	fmt.Fprintf(&b, "Date: %s\r\n", s.now().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(email.Body, "\n", "\r\n"))
	return b.Bytes()
}

// Sender is anything that can deliver an email.
type Sender interface {
	Send(ctx context.Context, email Email) error
}

// Worker sends queued emails through a circuit breaker so an unreachable
// relay is not hammered by redeliveries.
type Worker struct {
	sender  Sender
	breaker *circuitbreaker.CircuitBreaker
	logger  *logrus.Logger
	// backoff delays the requeue of a job rejected by an open breaker.
	backoff time.Duration
}

func NewWorker(sender Sender, breaker *circuitbreaker.CircuitBreaker, logger *logrus.Logger) *Worker {
	return &Worker{sender: sender, breaker: breaker, logger: logger, backoff: 5 * time.Second}
}

// Handle matches Handler.
func (w *Worker) Handle(ctx context.Context, email Email) error {
	err := w.breaker.Execute(ctx, func(ctx context.Context) error {
		return w.sender.Send(ctx, email)
	})
	if errors.Is(err, circuitbreaker.ErrOpen) {
		select {
		case <-time.After(w.backoff):
		case <-ctx.Done():
		}
		return err
	}
	if err != nil {
		return err
	}

	w.logger.WithField("subject", email.Subject).Info("Email sent")
	return nil
}
