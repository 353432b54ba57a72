package models

import (
	"time"
)

type Order struct {
	ID                  string      `json:"id"`
	UserID              int64       `json:"-"`
	RestaurantID        int64       `json:"restaurant_id"`
	Restaurant          string      `json:"restaurant"`
	DeliveryAddress     string      `json:"delivery_address"`
	DeliveryCity        string      `json:"delivery_city"`
	DeliveryPostCode    string      `json:"delivery_post_code"`
	DeliveryPhone       string      `json:"delivery_phone"`
	OrderTime           time.Time   `json:"order_time"`
	TotalPrice          Money       `json:"total_price"`
	AverageDeliveryTime string      `json:"average_delivery_time,omitempty"`
	Meals               []OrderLine `json:"meals,omitempty"`
	Drinks              []OrderLine `json:"drinks,omitempty"`
}

// OrderLine is one priced meal or drink of a persisted order.
type OrderLine struct {
	ItemID     int64  `json:"item_id"`
	Name       string `json:"name,omitempty"`
	Quantity   int    `json:"quantity"`
	Price      Money  `json:"price"`
	TotalPrice Money  `json:"total_price"`
}

// OrderNotification is what restaurant dashboards receive for a new order.
// It carries no customer details.
type OrderNotification struct {
	ID           string      `json:"id"`
	RestaurantID int64       `json:"restaurant_id"`
	Restaurant   string      `json:"restaurant,omitempty"`
	OrderTime    time.Time   `json:"order_time"`
	TotalPrice   Money       `json:"total_price"`
	Meals        []OrderLine `json:"meals,omitempty"`
	Drinks       []OrderLine `json:"drinks,omitempty"`
}

// Notification strips the customer fields from o.
func (o *Order) Notification() OrderNotification {
	return OrderNotification{
		ID:           o.ID,
		RestaurantID: o.RestaurantID,
		Restaurant:   o.Restaurant,
		OrderTime:    o.OrderTime,
		TotalPrice:   o.TotalPrice,
		Meals:        o.Meals,
		Drinks:       o.Drinks,
	}
}

type CreateOrderRequest struct {
	RestaurantID     int64              `json:"restaurant"`
	DeliveryAddress  string             `json:"delivery_address"`
	DeliveryCity     string             `json:"delivery_city"`
	DeliveryPostCode string             `json:"delivery_post_code"`
	DeliveryPhone    string             `json:"delivery_phone"`
	Meals            []MealLineRequest  `json:"meals"`
	Drinks           []DrinkLineRequest `json:"drinks"`
}

type MealLineRequest struct {
	MealID   int64 `json:"meal"`
	Quantity int   `json:"quantity"`
}

type DrinkLineRequest struct {
	DrinkID  int64 `json:"drink"`
	Quantity int   `json:"quantity"`
}

type OrderResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Order   *Order `json:"order,omitempty"`
}
