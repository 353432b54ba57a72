package ordering

import (
	"errors"
	"testing"
)

func TestServiceAreaValidate(t *testing.T) {
	meals := []LineItem{{Item: MealRef(1), Quantity: 1}}
	drinks := []LineItem{{Item: DrinkRef(1), Quantity: 1}}

	tests := []struct {
		name     string
		city     string
		postCode string
		meals    []LineItem
		drinks   []LineItem
		wantErr  error
	}{
		{name: "valid", city: "Warsaw", postCode: "01-223", meals: meals, drinks: drinks},
		{name: "city case insensitive", city: "wARSAW", postCode: "00-950", meals: meals},
		{name: "city surrounding spaces", city: "  warsaw ", postCode: "02-001", meals: meals},
		{name: "no hyphen", city: "Warsaw", postCode: "01223", meals: meals},
		{name: "other city", city: "Krakow", postCode: "01-223", meals: meals, wantErr: ErrOutOfServiceArea},
		{name: "wrong district", city: "Warsaw", postCode: "31-223", meals: meals, wantErr: ErrInvalidPostalDistrict},
		{name: "empty post code", city: "Warsaw", postCode: "", meals: meals, wantErr: ErrInvalidPostalDistrict},
		{name: "leading hyphen", city: "Warsaw", postCode: "-01", meals: meals, wantErr: ErrInvalidPostalDistrict},
		{name: "drinks only", city: "Warsaw", postCode: "01-223", drinks: drinks, wantErr: ErrEmptyOrder},
		{name: "city checked before emptiness", city: "some city", postCode: "01-223", wantErr: ErrOutOfServiceArea},
		{name: "district checked before emptiness", city: "Warsaw", postCode: "99-999", wantErr: ErrInvalidPostalDistrict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := DefaultServiceArea.Validate(tt.city, tt.postCode, tt.meals, tt.drinks)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestServiceAreaValidateReportsField(t *testing.T) {
	err := DefaultServiceArea.Validate("Gdansk", "80-001", nil, nil)

	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	if verr.Field != "delivery_city" {
		t.Errorf("Field = %q, want delivery_city", verr.Field)
	}
}

func TestServiceAreaCustomDistrict(t *testing.T) {
	area := ServiceArea{City: "kraków", DistrictDigit: '3'}

	if err := area.Validate("KRAKÓW", "31-000", []LineItem{{Item: MealRef(1), Quantity: 1}}, nil); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
	if err := area.Validate("Kraków", "01-000", []LineItem{{Item: MealRef(1), Quantity: 1}}, nil); !errors.Is(err, ErrInvalidPostalDistrict) {
		t.Errorf("Validate() error = %v, want ErrInvalidPostalDistrict", err)
	}
}
