package ordering

import (
	"context"
	"fmt"
	"math"
)

// MaxQuantity bounds the quantity of a single item, after merging.
const MaxQuantity = math.MaxInt32

// MenuMembership answers whether an item is on a restaurant's active menu.
type MenuMembership interface {
	Belongs(ctx context.Context, restaurantID int64, item MenuItemRef) (bool, error)
}

// Aggregate merges raw lines of one kind into one entry per item, summing
// quantities. Output keeps the order in which items first appear. Every
// distinct item is checked against the menu once; the first miss fails the
// whole aggregation.
func Aggregate(ctx context.Context, menu MenuMembership, restaurantID int64, kind Kind, raw []LineItem) ([]AggregatedLine, error) {
	lines := make([]AggregatedLine, 0, len(raw))
	index := make(map[int64]int, len(raw))

	for i, line := range raw {
		if line.Item.Kind != kind {
			return nil, &UnknownMenuItemError{RestaurantID: restaurantID, Item: line.Item}
		}
		if line.Quantity < 1 {
			return nil, quantityError(kind, i, ErrInvalidQuantity)
		}
		if line.Quantity > MaxQuantity {
			return nil, quantityError(kind, i, ErrQuantityTooLarge)
		}

		if pos, seen := index[line.Item.ID]; seen {
			if line.Quantity > MaxQuantity-lines[pos].Quantity {
				return nil, quantityError(kind, i, ErrQuantityTooLarge)
			}
			lines[pos].Quantity += line.Quantity
			continue
		}

		ok, err := menu.Belongs(ctx, restaurantID, line.Item)
		if err != nil {
			return nil, fmt.Errorf("failed to check menu for %s: %w", line.Item, err)
		}
		if !ok {
			return nil, &UnknownMenuItemError{RestaurantID: restaurantID, Item: line.Item}
		}

		index[line.Item.ID] = len(lines)
		lines = append(lines, AggregatedLine{Item: line.Item, Quantity: line.Quantity})
	}

	return lines, nil
}

func quantityError(kind Kind, i int, err error) *ValidationError {
	return &ValidationError{
		Field:   fmt.Sprintf("%ss[%d].quantity", kind, i),
		Message: err.Error(),
		Err:     err,
	}
}
