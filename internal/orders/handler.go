// Package orders serves the order endpoints of the food API.
package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/gorilla/mux"
	"github.com/jogardn/food-orders/internal/auth"
	"github.com/jogardn/food-orders/internal/events"
	"github.com/jogardn/food-orders/internal/ordering"
	"github.com/jogardn/food-orders/internal/store"
	"github.com/jogardn/food-orders/pkg/models"
	"github.com/sirupsen/logrus"
)

type Composer interface {
	Submit(ctx context.Context, sub ordering.Submission) (*ordering.Receipt, error)
}

type Repository interface {
	ListOrders(ctx context.Context, userID int64) ([]*models.Order, error)
	GetOrder(ctx context.Context, userID int64, orderID string) (*models.Order, error)
	RestaurantByID(ctx context.Context, id int64) (*models.Restaurant, error)
}

type EventPublisher interface {
	PublishOrderCreated(ctx context.Context, event events.OrderCreatedEvent) error
}

type WebSocketHub interface {
	Broadcast(restaurantID int64, messageType string, data interface{})
}

type Handler struct {
	composer  Composer
	orders    Repository
	publisher EventPublisher
	logger    *logrus.Logger
	wsHub     WebSocketHub
}

func NewHandler(composer Composer, orders Repository, publisher EventPublisher, logger *logrus.Logger) *Handler {
	return &Handler{
		composer:  composer,
		orders:    orders,
		publisher: publisher,
		logger:    logger,
	}
}

func (h *Handler) SetWebSocketHub(hub WebSocketHub) {
	h.wsHub = hub
}

// RegisterRoutes mounts the order endpoints on an authenticated router.
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/orders/create/", h.CreateOrder).Methods(http.MethodPost)
	r.HandleFunc("/orders/", h.ListOrders).Methods(http.MethodGet)
	r.HandleFunc("/orders/{id}/", h.GetOrder).Methods(http.MethodGet)
}

func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		h.respondWithError(w, http.StatusUnauthorized, "Authentication credentials were not provided", nil)
		return
	}

	var req models.CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WithError(err).Error("Failed to decode order request")
		h.respondWithError(w, http.StatusBadRequest, "Invalid request body", nil)
		return
	}

	if missing := requiredFields(req); len(missing) > 0 {
		h.respondWithError(w, http.StatusBadRequest, "Invalid order", missing)
		return
	}

	receipt, err := h.composer.Submit(r.Context(), submission(userID, req))
	if err != nil {
		h.respondWithOrderError(w, err)
		return
	}

	order := orderFromReceipt(receipt)
	restaurant, err := h.orders.RestaurantByID(r.Context(), receipt.RestaurantID)
	if err != nil {
		h.logger.WithError(err).WithField("order_id", receipt.ID).Warn("Failed to load restaurant of created order")
	} else {
		order.Restaurant = restaurant.Name
		h.publishCreated(r.Context(), order, restaurant)
	}

	if h.wsHub != nil {
		h.wsHub.Broadcast(order.RestaurantID, "order_created", order.Notification())
	}

	h.respondWithJSON(w, http.StatusCreated, models.OrderResponse{
		Success: true,
		Message: "Order created",
		Order:   order,
	})
}

// publishCreated hands the order to the delivery estimator. The order is
// already committed, so a failure here is only logged.
func (h *Handler) publishCreated(ctx context.Context, order *models.Order, restaurant *models.Restaurant) {
	if h.publisher == nil {
		return
	}

	event := events.OrderCreatedEvent{
		OrderID:      order.ID,
		UserID:       order.UserID,
		RestaurantID: order.RestaurantID,
		TotalPrice:   order.TotalPrice.String(),
		Origin:       formatAddress(restaurant.Address, restaurant.City, restaurant.PostCode),
		Destination:  formatAddress(order.DeliveryAddress, order.DeliveryCity, order.DeliveryPostCode),
		CreatedAt:    order.OrderTime,
	}
	if err := h.publisher.PublishOrderCreated(ctx, event); err != nil {
		h.logger.WithError(err).WithField("order_id", order.ID).Error("Failed to publish order created event")
	}
}

func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		h.respondWithError(w, http.StatusUnauthorized, "Authentication credentials were not provided", nil)
		return
	}

	orders, err := h.orders.ListOrders(r.Context(), userID)
	if err != nil {
		h.logger.WithError(err).WithField("user_id", userID).Error("Failed to list orders")
		h.respondWithError(w, http.StatusInternalServerError, "Failed to list orders", nil)
		return
	}
	if orders == nil {
		orders = []*models.Order{}
	}

	h.respondWithJSON(w, http.StatusOK, orders)
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		h.respondWithError(w, http.StatusUnauthorized, "Authentication credentials were not provided", nil)
		return
	}
	orderID := mux.Vars(r)["id"]

	order, err := h.orders.GetOrder(r.Context(), userID, orderID)
	if errors.Is(err, store.ErrNotFound) {
		h.respondWithError(w, http.StatusNotFound, "Order not found", nil)
		return
	}
	if err != nil {
		h.logger.WithError(err).WithField("order_id", orderID).Error("Failed to load order")
		h.respondWithError(w, http.StatusInternalServerError, "Failed to load order", nil)
		return
	}

	h.respondWithJSON(w, http.StatusOK, order)
}

func (h *Handler) respondWithOrderError(w http.ResponseWriter, err error) {
	var verr *ordering.ValidationError
	var uerr *ordering.UnknownMenuItemError

	switch {
	case errors.As(err, &verr):
		h.respondWithError(w, http.StatusBadRequest, "Invalid order", map[string]string{verr.Field: verr.Message})
	case errors.As(err, &uerr):
		field := "meals"
		if uerr.Item.Kind == ordering.KindDrink {
			field = "drinks"
		}
		h.respondWithError(w, http.StatusBadRequest, "Invalid order", map[string]string{
			field: fmt.Sprintf("Some %s doesn't come from restaurant menu", uerr.Item),
		})
	default:
		h.logger.WithError(err).Error("Failed to create order")
		h.respondWithError(w, http.StatusInternalServerError, "Failed to process order", nil)
	}
}

// deliveryFieldLimits mirrors the column widths of the orders table.
var deliveryFieldLimits = map[string]int{
	"delivery_address":   255,
	"delivery_city":      255,
	"delivery_post_code": 7,
	"delivery_phone":     255,
}

func requiredFields(req models.CreateOrderRequest) map[string]string {
	missing := map[string]string{}
	if req.RestaurantID <= 0 {
		missing["restaurant"] = "This field is required."
	}
	for field, value := range map[string]string{
		"delivery_address":   req.DeliveryAddress,
		"delivery_city":      req.DeliveryCity,
		"delivery_post_code": req.DeliveryPostCode,
		"delivery_phone":     req.DeliveryPhone,
	} {
		value = strings.TrimSpace(value)
		if value == "" {
			missing[field] = "This field may not be blank."
			continue
		}
		if limit := deliveryFieldLimits[field]; utf8.RuneCountInString(value) > limit {
			missing[field] = fmt.Sprintf("Ensure this field has no more than %d characters.", limit)
		}
	}
	return missing
}

func submission(userID int64, req models.CreateOrderRequest) ordering.Submission {
	sub := ordering.Submission{
		UserID:           userID,
		RestaurantID:     req.RestaurantID,
		DeliveryAddress:  strings.TrimSpace(req.DeliveryAddress),
		DeliveryCity:     strings.TrimSpace(req.DeliveryCity),
		DeliveryPostCode: strings.TrimSpace(req.DeliveryPostCode),
		DeliveryPhone:    strings.TrimSpace(req.DeliveryPhone),
	}
	for _, m := range req.Meals {
		sub.Meals = append(sub.Meals, ordering.LineItem{Item: ordering.MealRef(m.MealID), Quantity: m.Quantity})
	}
	for _, d := range req.Drinks {
		sub.Drinks = append(sub.Drinks, ordering.LineItem{Item: ordering.DrinkRef(d.DrinkID), Quantity: d.Quantity})
	}
	return sub
}

func orderFromReceipt(receipt *ordering.Receipt) *models.Order {
	return &models.Order{
		ID:               receipt.ID,
		UserID:           receipt.UserID,
		RestaurantID:     receipt.RestaurantID,
		DeliveryAddress:  receipt.DeliveryAddress,
		DeliveryCity:     receipt.DeliveryCity,
		DeliveryPostCode: receipt.DeliveryPostCode,
		DeliveryPhone:    receipt.DeliveryPhone,
		OrderTime:        receipt.CreatedAt,
		TotalPrice:       models.NewMoney(receipt.TotalPrice),
		Meals:            orderLines(receipt.Meals),
		Drinks:           orderLines(receipt.Drinks),
	}
}

func orderLines(lines []ordering.PricedLine) []models.OrderLine {
	out := make([]models.OrderLine, 0, len(lines))
	for _, l := range lines {
		out = append(out, models.OrderLine{
			ItemID:     l.Item.ID,
			Quantity:   l.Quantity,
			Price:      models.NewMoney(l.UnitPrice),
			TotalPrice: models.NewMoney(l.Subtotal),
		})
	}
	return out
}

// formatAddress renders "street, city post_code".
func formatAddress(street, city, postCode string) string {
	return fmt.Sprintf("%s, %s %s", street, city, postCode)
}

func (h *Handler) respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		h.logger.WithError(err).Error("Failed to marshal response")
		code, response = http.StatusInternalServerError, []byte(`{"success":false,"message":"Internal server error"}`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func (h *Handler) respondWithError(w http.ResponseWriter, code int, message string, fieldErrors map[string]string) {
	h.respondWithJSON(w, code, models.ErrorResponse{
		Success: false,
		Message: message,
		Errors:  fieldErrors,
	})
}
