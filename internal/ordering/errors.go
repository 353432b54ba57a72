package ordering

import (
	"errors"
	"fmt"
)

var (
	ErrOutOfServiceArea      = errors.New("orders are only available within the service area")
	ErrInvalidPostalDistrict = errors.New("post code is outside the serviceable district")
	ErrEmptyOrder            = errors.New("cannot order nothing")
	ErrUnknownMenuItem       = errors.New("item doesn't come from restaurant menu")
	ErrInvalidQuantity       = errors.New("quantity must be at least 1")
	ErrQuantityTooLarge      = errors.New("quantity is too large")
	ErrTotalTooLarge         = errors.New("order total is too large")
)

// ValidationError reports a rejected submission field.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// UnknownMenuItemError is returned when an item is not on the restaurant's
// menu for its kind.
type UnknownMenuItemError struct {
	RestaurantID int64
	Item         MenuItemRef
}

func (e *UnknownMenuItemError) Error() string {
	return fmt.Sprintf("%s is not on the menu of restaurant %d", e.Item, e.RestaurantID)
}

func (e *UnknownMenuItemError) Unwrap() error {
	return ErrUnknownMenuItem
}

// IsRejection reports whether err is a business rule rejection rather than
// an infrastructure failure.
func IsRejection(err error) bool {
	var verr *ValidationError
	var uerr *UnknownMenuItemError
	return errors.As(err, &verr) || errors.As(err, &uerr)
}
