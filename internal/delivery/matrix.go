// Package delivery estimates how long an order takes to reach its customer
// using a distance-matrix service.
package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/jogardn/food-orders/internal/circuitbreaker"
	"github.com/sirupsen/logrus"
)

// NoEstimate is stored when the service finds no route between the
// restaurant and the delivery address.
const NoEstimate = "Average delivery time cannot be calculated"

var (
	ErrNoRoute           = errors.New("no route between origin and destination")
	ErrMalformedResponse = errors.New("malformed distance matrix response")
)

// UpstreamError is a non-2xx answer from the distance-matrix service.
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("distance matrix returned status %d: %s", e.StatusCode, e.Body)
}

// Temporary reports whether the request may succeed if repeated.
func (e *UpstreamError) Temporary() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

type matrixResponse struct {
	Status string `json:"status"`
	Rows   []struct {
		Elements []struct {
			Status   string `json:"status"`
			Duration struct {
				Text  string  `json:"text"`
				Value float64 `json:"value"`
			} `json:"duration"`
		} `json:"elements"`
	} `json:"rows"`
}

type MatrixClient struct {
	baseURL    string
	key        string
	httpClient *http.Client
	breaker    *circuitbreaker.CircuitBreaker
	logger     *logrus.Logger
}

// NewMatrixClient returns a client whose calls go through breaker. Routes
// that do not exist and malformed answers do not trip the breaker.
func NewMatrixClient(baseURL, key string, breaker *circuitbreaker.CircuitBreaker, logger *logrus.Logger) *MatrixClient {
	return &MatrixClient{
		baseURL: baseURL,
		key:     key,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		breaker: breaker,
		logger:  logger,
	}
}

// BreakerConfig is the breaker configuration the matrix client expects.
func BreakerConfig() circuitbreaker.Config {
	return circuitbreaker.Config{
		MaxFailures: 5,
		OpenTimeout: 30 * time.Second,
		MaxProbes:   1,
		IsFailure: func(err error) bool {
			return !errors.Is(err, ErrNoRoute) && !errors.Is(err, ErrMalformedResponse)
		},
	}
}

// DeliveryTime returns the human readable travel time, e.g. "25 mins".
func (c *MatrixClient) DeliveryTime(ctx context.Context, origin, destination string) (string, error) {
	var text string
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		text, err = c.fetch(ctx, origin, destination)
		return err
	})
	return text, err
}

func (c *MatrixClient) fetch(ctx context.Context, origin, destination string) (string, error) {
	params := url.Values{}
	params.Set("origins", origin)
	params.Set("destinations", destination)
	params.Set("key", c.key)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("distance matrix request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read distance matrix response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &UpstreamError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var parsed matrixResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if len(parsed.Rows) == 0 || len(parsed.Rows[0].Elements) == 0 {
		return "", fmt.Errorf("%w: no elements", ErrMalformedResponse)
	}

	element := parsed.Rows[0].Elements[0]
	if element.Status == "ZERO_RESULTS" {
		return "", ErrNoRoute
	}
	if element.Duration.Text == "" {
		return "", fmt.Errorf("%w: element status %q", ErrMalformedResponse, element.Status)
	}

	c.logger.WithFields(logrus.Fields{
		"origin":      origin,
		"destination": destination,
		"duration":    element.Duration.Text,
	}).Debug("Distance matrix answered")

	return element.Duration.Text, nil
}
