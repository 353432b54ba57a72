package delivery

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jogardn/food-orders/internal/circuitbreaker"
	"github.com/jogardn/food-orders/internal/events"
	"github.com/jogardn/food-orders/internal/store"
	"github.com/sirupsen/logrus"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *MatrixClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	logger := testLogger()
	config := BreakerConfig()
	config.Name = "distance-matrix"
	config.MaxFailures = 2
	return NewMatrixClient(server.URL, "secret", circuitbreaker.New(config, logger), logger)
}

const okBody = `{"status":"OK","rows":[{"elements":[{"status":"OK","duration":{"text":"25 mins","value":1500}}]}]}`

func TestDeliveryTime(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("origins") != "Marszalkowska 1, Warsaw 00-001" || q.Get("destinations") != "Pulawska 10, Warsaw 02-512" || q.Get("key") != "secret" {
			t.Errorf("unexpected query: %s", r.URL.RawQuery)
		}
		fmt.Fprint(w, okBody)
	})

	got, err := client.DeliveryTime(context.Background(), "Marszalkowska 1, Warsaw 00-001", "Pulawska 10, Warsaw 02-512")
	if err != nil {
		t.Fatalf("DeliveryTime() error = %v", err)
	}
	if got != "25 mins" {
		t.Errorf("DeliveryTime() = %q, want %q", got, "25 mins")
	}
}

func TestDeliveryTimeErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{name: "zero results", status: http.StatusOK, body: `{"rows":[{"elements":[{"status":"ZERO_RESULTS"}]}]}`, wantErr: ErrNoRoute},
		{name: "no rows", status: http.StatusOK, body: `{"rows":[]}`, wantErr: ErrMalformedResponse},
		{name: "not json", status: http.StatusOK, body: `<html>`, wantErr: ErrMalformedResponse},
		{name: "element without duration", status: http.StatusOK, body: `{"rows":[{"elements":[{"status":"NOT_FOUND"}]}]}`, wantErr: ErrMalformedResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			})

			_, err := client.DeliveryTime(context.Background(), "a", "b")
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
			if client.breaker.State() != circuitbreaker.StateClosed {
				t.Errorf("breaker state = %s, want closed", client.breaker.State())
			}
		})
	}
}

func TestServerErrorsOpenBreaker(t *testing.T) {
	calls := 0
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	})

	for i := 0; i < 2; i++ {
		_, err := client.DeliveryTime(context.Background(), "a", "b")
		var upstream *UpstreamError
		if !errors.As(err, &upstream) || !upstream.Temporary() {
			t.Fatalf("call %d: error = %v, want temporary UpstreamError", i, err)
		}
	}

	if _, err := client.DeliveryTime(context.Background(), "a", "b"); !errors.Is(err, circuitbreaker.ErrOpen) {
		t.Errorf("error = %v, want ErrOpen", err)
	}
	if calls != 2 {
		t.Errorf("upstream calls = %d, want 2", calls)
	}
}

type fakeSource struct {
	estimate string
	err      error
}

func (s fakeSource) DeliveryTime(ctx context.Context, origin, destination string) (string, error) {
	return s.estimate, s.err
}

type recordingWriter struct {
	estimates map[string]string
	err       error
}

func (w *recordingWriter) SetDeliveryEstimate(ctx context.Context, orderID, estimate string) error {
	if w.err != nil {
		return w.err
	}
	w.estimates[orderID] = estimate
	return nil
}

func TestEstimatorHandleOrderCreated(t *testing.T) {
	tests := []struct {
		name    string
		source  fakeSource
		want    string
		wantErr bool
	}{
		{name: "estimate", source: fakeSource{estimate: "25 mins"}, want: "25 mins"},
		{name: "no route", source: fakeSource{err: ErrNoRoute}, want: NoEstimate},
		{name: "upstream failure", source: fakeSource{err: &UpstreamError{StatusCode: 502}}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			writer := &recordingWriter{estimates: map[string]string{}}
			estimator := NewEstimator(tt.source, writer, testLogger())

			err := estimator.HandleOrderCreated(context.Background(), events.OrderCreatedEvent{OrderID: "order-1"})
			if (err != nil) != tt.wantErr {
				t.Fatalf("HandleOrderCreated() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got := writer.estimates["order-1"]; got != tt.want {
				t.Errorf("stored estimate = %q, want %q", got, tt.want)
			}
		})
	}
}

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

func TestEstimatorIsRetryable(t *testing.T) {
	estimator := NewEstimator(fakeSource{}, &recordingWriter{}, testLogger())

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "server error", err: &UpstreamError{StatusCode: 503}, want: true},
		{name: "rate limited", err: &UpstreamError{StatusCode: 429}, want: true},
		{name: "bad request", err: &UpstreamError{StatusCode: 400}, want: false},
		{name: "network", err: fmt.Errorf("request failed: %w", timeoutError{}), want: true},
		{name: "breaker open", err: circuitbreaker.ErrOpen, want: true},
		{name: "malformed", err: fmt.Errorf("%w: eof", ErrMalformedResponse), want: false},
		{name: "order missing", err: store.ErrNotFound, want: false},
		{name: "database", err: errors.New("connection reset"), want: true},
		{name: "cancelled", err: context.Canceled, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := estimator.IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestDeliveryTimeHonoursContext(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
		fmt.Fprint(w, okBody)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := client.DeliveryTime(ctx, "a", "b"); err == nil {
		t.Fatal("expected an error for an expired context")
	}
	if client.breaker.State() != circuitbreaker.StateClosed {
		t.Errorf("breaker state = %s, want closed", client.breaker.State())
	}
}
