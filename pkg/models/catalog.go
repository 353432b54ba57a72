package models

type Restaurant struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	Slug          string `json:"slug"`
	City          string `json:"city"`
	Address       string `json:"address"`
	PostCode      string `json:"post_code"`
	Phone         string `json:"phone"`
	Cuisine       string `json:"cuisine"`
	DeliveryPrice Money  `json:"delivery_price"`
}

// RestaurantDetail is a restaurant together with its current menu.
type RestaurantDetail struct {
	Restaurant
	Menu Menu `json:"menu"`
}

type Meal struct {
	ID          int64    `json:"id"`
	Name        string   `json:"name"`
	Price       Money    `json:"price"`
	Description string   `json:"description"`
	Tag         string   `json:"tag"`
	Ingredients []string `json:"ingredients"`
}

type Drink struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Price Money  `json:"price"`
	Tag   string `json:"tag"`
}

type Menu struct {
	Meals  []Meal  `json:"meals"`
	Drinks []Drink `json:"drinks"`
}

// RestaurantFilter narrows a restaurant listing. Empty fields match everything.
type RestaurantFilter struct {
	City    string
	Cuisine string
}
