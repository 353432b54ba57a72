package ordering

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// PriceLookup reads authoritative unit prices from the catalog.
type PriceLookup interface {
	UnitPrice(ctx context.Context, item MenuItemRef) (decimal.Decimal, error)
}

// MaxTotal is the first order total that no longer fits the ten digit,
// two place price column.
var MaxTotal = decimal.New(1, 8)

// Quote is the priced form of an order.
type Quote struct {
	Meals       []PricedLine
	Drinks      []PricedLine
	DeliveryFee decimal.Decimal
	Total       decimal.Decimal
}

// Price resolves every line's unit price and sums the subtotals plus the
// restaurant's delivery fee. Amounts are kept to two decimal places.
func Price(ctx context.Context, prices PriceLookup, meals, drinks []AggregatedLine, deliveryFee decimal.Decimal) (*Quote, error) {
	quote := &Quote{DeliveryFee: deliveryFee.Round(2)}
	total := quote.DeliveryFee

	var err error
	if quote.Meals, err = priceLines(ctx, prices, meals, &total); err != nil {
		return nil, err
	}
	if quote.Drinks, err = priceLines(ctx, prices, drinks, &total); err != nil {
		return nil, err
	}

	quote.Total = total.Round(2)
	if quote.Total.GreaterThanOrEqual(MaxTotal) {
		return nil, &ValidationError{
			Field:   "total_price",
			Message: ErrTotalTooLarge.Error(),
			Err:     ErrTotalTooLarge,
		}
	}
	return quote, nil
}

func priceLines(ctx context.Context, prices PriceLookup, lines []AggregatedLine, total *decimal.Decimal) ([]PricedLine, error) {
	priced := make([]PricedLine, 0, len(lines))
	for _, line := range lines {
		unit, err := prices.UnitPrice(ctx, line.Item)
		if err != nil {
			return nil, fmt.Errorf("failed to read price of %s: %w", line.Item, err)
		}

		subtotal := unit.Mul(decimal.NewFromInt(int64(line.Quantity))).Round(2)
		*total = total.Add(subtotal)

		priced = append(priced, PricedLine{
			Item:      line.Item,
			Quantity:  line.Quantity,
			UnitPrice: unit,
			Subtotal:  subtotal,
		})
	}
	return priced, nil
}
