package ordering

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ServiceArea is the single city and postal district orders are delivered to.
type ServiceArea struct {
	City          string
	DistrictDigit byte
}

var DefaultServiceArea = ServiceArea{City: "Warsaw", DistrictDigit: '0'}

// Validate applies the delivery rules in order and stops at the first
// failure: the city must match the service area, the post code must start
// with the district digit, and the order must contain at least one meal.
// Drinks alone never make an order.
func (a ServiceArea) Validate(city, postCode string, meals, drinks []LineItem) error {
	if titleCase(city) != titleCase(a.City) {
		return &ValidationError{
			Field:   "delivery_city",
			Message: "Orders are only available within " + titleCase(a.City),
			Err:     ErrOutOfServiceArea,
		}
	}

	district, _, _ := strings.Cut(strings.TrimSpace(postCode), "-")
	if district == "" || district[0] != a.DistrictDigit {
		return &ValidationError{
			Field:   "delivery_post_code",
			Message: "Post code doesn't contain " + titleCase(a.City) + " district",
			Err:     ErrInvalidPostalDistrict,
		}
	}

	if len(meals) == 0 {
		return &ValidationError{
			Field:   "meals",
			Message: "Cannot order nothing",
			Err:     ErrEmptyOrder,
		}
	}

	return nil
}

func titleCase(s string) string {
	return cases.Title(language.Und).String(strings.TrimSpace(s))
}
