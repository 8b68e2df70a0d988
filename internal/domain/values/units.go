package values

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Units represents the unit of measurement a user reported quantities in.
// Stored quantities are always cubic metres; units only affect presentation
// and the conversion applied when a form is submitted.
type Units struct {
	units string
}

// Supported reporting units
const (
	UnitsCubicMetres = "m³"
	UnitsLitres      = "l"
	UnitsMegalitres  = "Ml"
	UnitsGallons     = "gal"
)

var (
	supportedUnits = map[string]bool{
		UnitsCubicMetres: true,
		UnitsLitres:      true,
		UnitsMegalitres:  true,
		UnitsGallons:     true,
	}

	// Multipliers to convert a reported quantity to cubic metres
	unitsToCubicMetres = map[string]decimal.Decimal{
		UnitsCubicMetres: decimal.NewFromInt(1),
		UnitsLitres:      decimal.RequireFromString("0.001"),
		UnitsMegalitres:  decimal.NewFromInt(1000),
		UnitsGallons:     decimal.RequireFromString("0.00454609"),
	}
)

// NewUnits creates a new Units value object with validation
func NewUnits(units string) (Units, error) {
	normalized := strings.TrimSpace(units)
	if !supportedUnits[normalized] {
		return Units{}, fmt.Errorf("units '%s' are not supported", units)
	}
	return Units{units: normalized}, nil
}

// MustNewUnits creates Units and panics on error (for constants/tests)
func MustNewUnits(units string) Units {
	u, err := NewUnits(units)
	if err != nil {
		panic(err)
	}
	return u
}

// String returns the unit symbol
func (u Units) String() string {
	return u.units
}

// IsEmpty checks if the units are the zero value
func (u Units) IsEmpty() bool {
	return u.units == ""
}

// Equal checks if two Units values are equal
func (u Units) Equal(other Units) bool {
	return u.units == other.units
}

// ToCubicMetres converts a quantity reported in these units to cubic metres.
// The zero value passes quantities through unchanged: a return with no units
// chosen yet is already reporting in cubic metres.
func (u Units) ToCubicMetres(quantity decimal.Decimal) decimal.Decimal {
	factor, ok := unitsToCubicMetres[u.units]
	if !ok {
		return quantity
	}
	return quantity.Mul(factor)
}

// MarshalJSON implements JSON marshaling
func (u Units) MarshalJSON() ([]byte, error) {
	return json.Marshal(u.units)
}

// UnmarshalJSON implements JSON unmarshaling
func (u *Units) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	units, err := NewUnits(raw)
	if err != nil {
		return err
	}

	*u = units
	return nil
}
