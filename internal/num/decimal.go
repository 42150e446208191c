package num

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"MgvIndexer/internal/store"
)

// Scale converts a raw integer-string amount into its human-scaled decimal
// value given the token's decimal count: raw * 10^-decimals.
func Scale(raw string, decimals int) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("amount %q: %w", raw, store.ErrArithmetic)
	}
	return d.Shift(int32(-decimals)), nil
}

// ScaleNumber is Scale collapsed to a float64 for the read-side mirror
// columns. Stored amount strings never go through this path.
func ScaleNumber(raw string, decimals int) (float64, error) {
	d, err := Scale(raw, decimals)
	if err != nil {
		return 0, err
	}
	return d.InexactFloat64(), nil
}

// AddDecimalStrings adds two amount strings exactly in decimal space, each
// scaled by the token's decimal count, and re-serializes the sum as a
// decimal string. Never passes through floating point.
func AddDecimalStrings(a, b string, decimals int) (string, error) {
	da, err := Scale(a, decimals)
	if err != nil {
		return "", err
	}
	db, err := Scale(b, decimals)
	if err != nil {
		return "", err
	}
	return da.Add(db).String(), nil
}

// SubDecimalStrings is AddDecimalStrings with the second operand negated.
func SubDecimalStrings(a, b string, decimals int) (string, error) {
	da, err := Scale(a, decimals)
	if err != nil {
		return "", err
	}
	db, err := Scale(b, decimals)
	if err != nil {
		return "", err
	}
	return da.Sub(db).String(), nil
}

// Number parses an already human-scaled decimal string into a float64 for
// the read-side mirror columns.
func Number(s string) (float64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("amount %q: %w", s, store.ErrArithmetic)
	}
	return d.InexactFloat64(), nil
}

// PriceStrings is Price over two human-scaled decimal strings. Unparsable
// operands yield the null sentinel.
func PriceStrings(over, under string) Float {
	do, errO := decimal.NewFromString(over)
	du, errU := decimal.NewFromString(under)
	if errO != nil || errU != nil {
		return Float{}
	}
	return Price(do, du)
}

// EqualStrings compares two decimal strings by value ("0.50" == "0.5").
func EqualStrings(a, b string) bool {
	da, errA := decimal.NewFromString(a)
	db, errB := decimal.NewFromString(b)
	if errA != nil || errB != nil {
		return a == b
	}
	return da.Equal(db)
}

// Price derives over/under. A non-positive denominator yields the null
// sentinel, never a division error.
func Price(over, under decimal.Decimal) Float {
	if !under.IsPositive() {
		return Float{}
	}
	return FloatFrom(over.Div(under).InexactFloat64())
}

// Float is a nullable float64 that marshals to JSON null when invalid.
// It is carried by value inside version rows so that cloning a version
// can never alias the previous one.
type Float struct {
	Float64 float64
	Valid   bool
}

func FloatFrom(f float64) Float {
	return Float{Float64: f, Valid: true}
}

var jsonNull = []byte("null")

func (f Float) MarshalJSON() ([]byte, error) {
	if !f.Valid {
		return jsonNull, nil
	}
	return json.Marshal(f.Float64)
}

func (f *Float) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, jsonNull) {
		*f = Float{}
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*f = FloatFrom(v)
	return nil
}
