package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealth(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	up := pingFunc(func(ctx context.Context) error { return nil })
	down := pingFunc(func(ctx context.Context) error { return errors.New("connection refused") })

	tests := []struct {
		name   string
		checks map[string]Pinger
		want   int
		status string
	}{
		{name: "all up", checks: map[string]Pinger{"postgres": up, "redis": up}, want: http.StatusOK, status: "healthy"},
		{name: "redis down", checks: map[string]Pinger{"postgres": up, "redis": down}, want: http.StatusServiceUnavailable, status: "unhealthy"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			NewHandler("food-api", tt.checks, logger).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health/", nil))

			if rec.Code != tt.want {
				t.Errorf("status code = %d, want %d", rec.Code, tt.want)
			}
			var body response
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatal(err)
			}
			if body.Status != tt.status || len(body.Checks) != len(tt.checks) {
				t.Errorf("unexpected body %+v", body)
			}
		})
	}
}
