package mail

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/smtp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jogardn/food-orders/internal/circuitbreaker"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

type fakeChannel struct {
	declared   []string
	published  []amqp.Publishing
	routing    []string
	deliveries chan amqp.Delivery
}

func (c *fakeChannel) QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error) {
	if !durable {
		return amqp.Queue{}, errors.New("queue must be durable")
	}
	c.declared = append(c.declared, name)
	return amqp.Queue{Name: name}, nil
}

func (c *fakeChannel) Qos(prefetchCount, prefetchSize int, global bool) error { return nil }

func (c *fakeChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	c.routing = append(c.routing, key)
	c.published = append(c.published, msg)
	return nil
}

func (c *fakeChannel) Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error) {
	if autoAck {
		return nil, errors.New("expected manual acks")
	}
	return c.deliveries, nil
}

func (c *fakeChannel) Close() error { return nil }

type ackRecord struct {
	tag     uint64
	acked   bool
	requeue bool
}

type fakeAcknowledger struct {
	mu      sync.Mutex
	records []ackRecord
}

func (a *fakeAcknowledger) Ack(tag uint64, multiple bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.records = append(a.records, ackRecord{tag: tag, acked: true})
	return nil
}

func (a *fakeAcknowledger) Nack(tag uint64, multiple, requeue bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.records = append(a.records, ackRecord{tag: tag, requeue: requeue})
	return nil
}

func (a *fakeAcknowledger) Reject(tag uint64, requeue bool) error {
	return a.Nack(tag, false, requeue)
}

func (a *fakeAcknowledger) snapshot() []ackRecord {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]ackRecord(nil), a.records...)
}

func TestPublishEnqueuesPersistentJSON(t *testing.T) {
	ch := &fakeChannel{}
	q, err := newQueue(ch, "mail.password_reset", testLogger())
	if err != nil {
		t.Fatalf("newQueue() error = %v", err)
	}

	email := PasswordReset("test@example.com", "Test", "https://food.example.com/reset", "abc-123")
	if err := q.Publish(context.Background(), email); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	if len(ch.published) != 1 || ch.routing[0] != "mail.password_reset" {
		t.Fatalf("published %d messages to %v", len(ch.published), ch.routing)
	}
	msg := ch.published[0]
	if msg.DeliveryMode != amqp.Persistent || msg.ContentType != "application/json" {
		t.Errorf("unexpected publishing %+v", msg)
	}

	var got Email
	if err := json.Unmarshal(msg.Body, &got); err != nil {
		t.Fatalf("invalid body: %v", err)
	}
	if got != email {
		t.Errorf("body = %+v, want %+v", got, email)
	}
	if !strings.Contains(got.Body, "https://food.example.com/reset?token=abc-123") {
		t.Errorf("reset link missing from body: %q", got.Body)
	}
}

func TestConsumeAcksAndRequeues(t *testing.T) {
	ch := &fakeChannel{deliveries: make(chan amqp.Delivery, 3)}
	q, _ := newQueue(ch, "mail", testLogger())
	acks := &fakeAcknowledger{}

	good, _ := json.Marshal(Email{To: "ok@example.com", Subject: "hi"})
	bad, _ := json.Marshal(Email{To: "fail@example.com", Subject: "hi"})
	ch.deliveries <- amqp.Delivery{Acknowledger: acks, DeliveryTag: 1, Body: good}
	ch.deliveries <- amqp.Delivery{Acknowledger: acks, DeliveryTag: 2, Body: bad}
	ch.deliveries <- amqp.Delivery{Acknowledger: acks, DeliveryTag: 3, Body: []byte("{")}
	close(ch.deliveries)

	err := q.Consume(context.Background(), "mailer", func(ctx context.Context, email Email) error {
		if email.To == "fail@example.com" {
			return errors.New("relay down")
		}
		return nil
	})
	if !errors.Is(err, errDeliveriesClosed) {
		t.Fatalf("Consume() error = %v, want errDeliveriesClosed", err)
	}

	want := []ackRecord{
		{tag: 1, acked: true},
		{tag: 2, requeue: true},
		{tag: 3, requeue: false},
	}
	got := acks.snapshot()
	if len(got) != len(want) {
		t.Fatalf("acks = %+v, want %+v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("ack %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestSMTPSenderMessage(t *testing.T) {
	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte

	sender := &SMTPSender{
		addr: "smtp.example.com:587",
		from: "noreply@food.example.com",
		now:  func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) },
		send: func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
			gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, msg
			return nil
		},
	}

	err := sender.Send(context.Background(), Email{To: "test@example.com", Subject: "Reset your password", Body: "line one\nline two"})
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	if gotAddr != "smtp.example.com:587" || gotFrom != "noreply@food.example.com" || len(gotTo) != 1 || gotTo[0] != "test@example.com" {
		t.Errorf("unexpected envelope: %s %s %v", gotAddr, gotFrom, gotTo)
	}

	msg := string(gotMsg)
	for _, want := range []string{
		"To: test@example.com\r\n",
		"Subject: Reset your password\r\n",
		"\r\n\r\nline one\r\nline two",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("message missing %q:\n%s", want, msg)
		}
	}
}

type failingSender struct{ calls int }

func (s *failingSender) Send(ctx context.Context, email Email) error {
	s.calls++
	return errors.New("connection refused")
}

func TestWorkerStopsCallingBrokenRelay(t *testing.T) {
	logger := testLogger()
	sender := &failingSender{}
	breaker := circuitbreaker.New(circuitbreaker.Config{Name: "smtp", MaxFailures: 2, OpenTimeout: time.Minute}, logger)
	worker := NewWorker(sender, breaker, logger)
	worker.backoff = time.Millisecond

	for i := 0; i < 3; i++ {
		if err := worker.Handle(context.Background(), Email{To: "x@example.com"}); err == nil {
			t.Fatalf("call %d: expected an error", i)
		}
	}
	if sender.calls != 2 {
		t.Errorf("sender calls = %d, want 2", sender.calls)
	}
}
