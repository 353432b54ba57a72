package auth

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
)

type staticAuthenticator map[string]int64

func (a staticAuthenticator) Authenticate(ctx context.Context, token string) (int64, error) {
	id, ok := a[token]
	if !ok {
		return 0, ErrInvalidToken
	}
	return id, nil
}

func TestMiddleware(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	var seen int64
	handler := Middleware(staticAuthenticator{"good": 12}, logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = UserIDFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{name: "valid", header: "Bearer good", want: http.StatusNoContent},
		{name: "lower case scheme", header: "bearer good", want: http.StatusNoContent},
		{name: "unknown token", header: "Bearer bad", want: http.StatusUnauthorized},
		{name: "missing header", header: "", want: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic good", want: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = 0
			req := httptest.NewRequest(http.MethodGet, "/api/orders/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
			if tt.want == http.StatusNoContent && seen != 12 {
				t.Errorf("user id in context = %d, want 12", seen)
			}
		})
	}
}

func TestHashPassword(t *testing.T) {
	if _, err := HashPassword("abc"); err != ErrPasswordTooShort {
		t.Errorf("HashPassword(short) error = %v, want ErrPasswordTooShort", err)
	}

	hash, err := HashPassword("testpass")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	if !CheckPassword(hash, "testpass") {
		t.Error("CheckPassword rejected the right password")
	}
	if CheckPassword(hash, "wrongpass") {
		t.Error("CheckPassword accepted a wrong password")
	}
}
