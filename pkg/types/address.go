package types

import (
	"fmt"
	"strings"
)

// Coordinates is a WGS84 point captured at checkout.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// DeliveryAddress is stored as jsonb on the order row.
type DeliveryAddress struct {
	Street      string       `json:"street" validate:"required"`
	City        string       `json:"city" validate:"required"`
	State       string       `json:"state" validate:"required"`
	Pincode     string       `json:"pincode" validate:"required,numeric,len=6"`
	Coordinates *Coordinates `json:"coordinates,omitempty"`
}

// Validate performs the checks that do not depend on the validator tags, used
// when the address did not come through an HTTP body.
func (a DeliveryAddress) Validate() error {
	if strings.TrimSpace(a.Street) == "" {
		return fmt.Errorf("address: missing street")
	}
	if strings.TrimSpace(a.City) == "" {
		return fmt.Errorf("address: missing city")
	}
	if strings.TrimSpace(a.Pincode) == "" {
		return fmt.Errorf("address: missing pincode")
	}
	if c := a.Coordinates; c != nil {
		if c.Lat < -90 || c.Lat > 90 || c.Lng < -180 || c.Lng > 180 {
			return fmt.Errorf("address: coordinates out of range")
		}
	}
	return nil
}
