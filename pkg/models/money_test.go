package models

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
)

func TestMoneyMarshalsTwoDecimalPlaces(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"262", `"262.00"`},
		{"2.5", `"2.50"`},
		{"10.005", `"10.01"`},
		{"0", `"0.00"`},
	}

	for _, tt := range tests {
		data, err := json.Marshal(NewMoney(decimal.RequireFromString(tt.in)))
		if err != nil {
			t.Fatalf("marshal %s: %v", tt.in, err)
		}
		if string(data) != tt.want {
			t.Errorf("marshal %s = %s, want %s", tt.in, data, tt.want)
		}
	}
}

func TestMoneyUnmarshal(t *testing.T) {
	var line OrderLine
	if err := json.Unmarshal([]byte(`{"item_id":1,"quantity":2,"price":"10.00","total_price":"20.00"}`), &line); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !line.TotalPrice.Equal(decimal.NewFromInt(20)) {
		t.Errorf("total_price = %s, want 20.00", line.TotalPrice)
	}
}
