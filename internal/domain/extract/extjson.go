package extract

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrNotNumeric is returned when a value cannot be read as a number
	ErrNotNumeric = errors.New("value is not numeric")

	// ErrNotInteger is returned when a numeric value has a fractional part
	ErrNotInteger = errors.New("value is not an integer")

	// ErrNegative is returned when a value must be non-negative
	ErrNegative = errors.New("value is negative")

	// ErrNotTimestamp is returned when a value cannot be read as a date
	ErrNotTimestamp = errors.New("value is not a timestamp")
)

// Extended JSON type markers produced by the ingestion collaborator
const (
	markerInt     = "$numberInt"
	markerLong    = "$numberLong"
	markerDouble  = "$numberDouble"
	markerDecimal = "$numberDecimal"
	markerDate    = "$date"
)

// Object returns v as a JSON object, or nil when it is not one
func Object(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

// Array returns v as a JSON array, or nil when it is not one
func Array(v any) []any {
	a, _ := v.([]any)
	return a
}

// Decimal unwraps a numeric value in any of its accepted shapes:
// {"$numberInt": "12"}, {"$numberLong": "12"}, {"$numberDouble": "12.0"},
// {"$numberDecimal": "12"}, a JSON number, or a numeric string.
func Decimal(v any) (decimal.Decimal, error) {
	switch t := v.(type) {
	case map[string]any:
		for _, marker := range []string{markerInt, markerLong, markerDouble, markerDecimal} {
			if inner, ok := t[marker]; ok {
				return Decimal(inner)
			}
		}
		return decimal.Zero, fmt.Errorf("%w: object without numeric marker", ErrNotNumeric)
	case json.Number:
		return parseDecimal(t.String())
	case string:
		return parseDecimal(t)
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return decimal.Zero, fmt.Errorf("%w: %v", ErrNotNumeric, t)
		}
		return decimal.NewFromFloat(t), nil
	case float32:
		return Decimal(float64(t))
	case int:
		return decimal.NewFromInt(int64(t)), nil
	case int32:
		return decimal.NewFromInt(int64(t)), nil
	case int64:
		return decimal.NewFromInt(t), nil
	case uint64:
		if t > math.MaxInt64 {
			return decimal.Zero, fmt.Errorf("%w: %d overflows", ErrNotNumeric, t)
		}
		return decimal.NewFromInt(int64(t)), nil
	case nil:
		return decimal.Zero, fmt.Errorf("%w: null", ErrNotNumeric)
	default:
		return decimal.Zero, fmt.Errorf("%w: %T", ErrNotNumeric, v)
	}
}

func parseDecimal(s string) (decimal.Decimal, error) {
	trimmed := strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	d, err := decimal.NewFromString(trimmed)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrNotNumeric, s)
	}
	return d, nil
}

// NonNegativeInteger unwraps v and requires a whole, non-negative amount
func NonNegativeInteger(v any) (int64, error) {
	d, err := Decimal(v)
	if err != nil {
		return 0, err
	}
	if !d.IsInteger() {
		return 0, fmt.Errorf("%w: %s", ErrNotInteger, d.String())
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("%w: %s", ErrNegative, d.String())
	}
	if d.GreaterThan(decimal.NewFromInt(math.MaxInt64)) {
		return 0, fmt.Errorf("%w: %s overflows", ErrNotNumeric, d.String())
	}
	return d.IntPart(), nil
}

// Timestamp unwraps a date in any of its accepted shapes:
// {"$date": {"$numberLong": "<epoch-ms>"}}, {"$date": <epoch-ms>},
// {"$date": "<RFC3339>"}, a bare epoch-ms number or string, or an RFC3339 string.
func Timestamp(v any) (time.Time, error) {
	if m, ok := v.(map[string]any); ok {
		inner, ok := m[markerDate]
		if !ok {
			return time.Time{}, fmt.Errorf("%w: object without %s", ErrNotTimestamp, markerDate)
		}
		v = inner
	}

	if s, ok := v.(string); ok {
		s = strings.TrimSpace(s)
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			return t.UTC(), nil
		}
		if t, err := time.Parse("2006-01-02", s); err == nil {
			return t, nil
		}
	}

	d, err := Decimal(v)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrNotTimestamp, err)
	}
	if !d.IsInteger() {
		return time.Time{}, fmt.Errorf("%w: fractional epoch %s", ErrNotTimestamp, d.String())
	}
	return time.UnixMilli(d.IntPart()).UTC(), nil
}

// Text renders a scalar as a trimmed string. Numeric markers are unwrapped;
// objects and arrays yield "".
func Text(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	case map[string]any:
		if d, err := Decimal(t); err == nil {
			return d.String()
		}
		return ""
	case []any:
		return ""
	default:
		if d, err := Decimal(t); err == nil {
			return d.String()
		}
		return strings.TrimSpace(fmt.Sprint(t))
	}
}
