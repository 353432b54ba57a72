// Package ordering composes and prices food orders: it validates delivery
// constraints, merges repeated line items, checks them against the
// restaurant menu and computes the order total.
package ordering

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Kind tags which part of a menu an item belongs to.
type Kind string

const (
	KindMeal  Kind = "meal"
	KindDrink Kind = "drink"
)

// MenuItemRef identifies a meal or a drink.
type MenuItemRef struct {
	Kind Kind
	ID   int64
}

func MealRef(id int64) MenuItemRef {
	return MenuItemRef{Kind: KindMeal, ID: id}
}

func DrinkRef(id int64) MenuItemRef {
	return MenuItemRef{Kind: KindDrink, ID: id}
}

func (r MenuItemRef) String() string {
	return fmt.Sprintf("%s %d", r.Kind, r.ID)
}

// LineItem is one (item, quantity) pair as submitted by a client.
type LineItem struct {
	Item     MenuItemRef
	Quantity int
}

// AggregatedLine is the merged quantity of every submission line that
// references the same item.
type AggregatedLine struct {
	Item     MenuItemRef
	Quantity int
}

// PricedLine is an aggregated line priced from the catalog.
type PricedLine struct {
	Item      MenuItemRef
	Quantity  int
	UnitPrice decimal.Decimal
	Subtotal  decimal.Decimal
}
