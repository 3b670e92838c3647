package legacy

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	// ErrMissingAmount is returned when a transaction carries no amount.
	ErrMissingAmount = errors.New("amount is missing")

	// ErrInvalidAmount is returned when the amount cannot be read as a number.
	ErrInvalidAmount = errors.New("amount is not a number")
)

// RawAmount keeps the amount exactly as it was exported. The closures app
// stored numbers most of the time and strings some of the time.
type RawAmount struct {
	// Value is nil, json.Number, string, bool, or a composite JSON value.
	Value interface{}
}

// NewRawAmount wraps a value as if it had been decoded from the export.
func NewRawAmount(v interface{}) RawAmount {
	switch n := v.(type) {
	case int:
		return RawAmount{Value: json.Number(fmt.Sprint(n))}
	case int64:
		return RawAmount{Value: json.Number(fmt.Sprint(n))}
	case float64:
		return RawAmount{Value: json.Number(decimal.NewFromFloat(n).String())}
	}
	return RawAmount{Value: v}
}

// UnmarshalJSON implements json.Unmarshaler.
func (a *RawAmount) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		a.Value = nil
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return fmt.Errorf("RawAmount: %w", err)
	}
	a.Value = v
	return nil
}

// MarshalJSON implements json.Marshaler.
func (a RawAmount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.Value)
}

// IsMissing reports whether no amount was exported.
func (a RawAmount) IsMissing() bool {
	return a.Value == nil
}

// String renders the raw value for diagnostics.
func (a RawAmount) String() string {
	if a.Value == nil {
		return "<nil>"
	}
	return fmt.Sprint(a.Value)
}

// TypeName names the exported JSON type for diagnostics.
func (a RawAmount) TypeName() string {
	switch a.Value.(type) {
	case nil:
		return "null"
	case json.Number:
		return "number"
	case string:
		return "string"
	case bool:
		return "bool"
	case []interface{}:
		return "array"
	case map[string]interface{}:
		return "object"
	default:
		return fmt.Sprintf("%T", a.Value)
	}
}

// ParseAmount converts the raw value into a signed decimal. Numeric strings
// are accepted after trimming; booleans and composite values are not.
func ParseAmount(a RawAmount) (decimal.Decimal, error) {
	switch v := a.Value.(type) {
	case nil:
		return decimal.Zero, ErrMissingAmount
	case json.Number:
		d, err := decimal.NewFromString(v.String())
		if err != nil {
			return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, v.String())
		}
		return d, nil
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return decimal.Zero, fmt.Errorf("%w: empty string", ErrInvalidAmount)
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, v)
		}
		return d, nil
	default:
		return decimal.Zero, fmt.Errorf("%w: unsupported %s value", ErrInvalidAmount, a.TypeName())
	}
}
