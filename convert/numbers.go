package convert

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/angas/imbalance-go/types/maybe"
	"github.com/shopspring/decimal"
)

// ParseDecimal parses a dot separated decimal, anything unparsable is None.
func ParseDecimal(str string) maybe.Maybe[float64] {
	d, err := decimal.NewFromString(str)
	if err != nil {
		return maybe.None[float64]()
	}
	f, _ := d.Float64()
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return maybe.None[float64]()
	}
	return maybe.Some(f)
}

// ParseDecimalComma parses prices written with a comma as decimal separator, "-12,5".
func ParseDecimalComma(str string) maybe.Maybe[float64] {
	return ParseDecimal(strings.ReplaceAll(str, ",", "."))
}

// PriceFromScalar converts a decoded JSON scalar to a price.
func PriceFromScalar(v any) maybe.Maybe[float64] {
	switch n := v.(type) {
	case nil:
		return maybe.None[float64]()
	case json.Number:
		return ParseDecimal(n.String())
	case float64:
		if math.IsInf(n, 0) || math.IsNaN(n) {
			return maybe.None[float64]()
		}
		return maybe.Some(n)
	case float32:
		return PriceFromScalar(float64(n))
	case int:
		return maybe.Some(float64(n))
	case int64:
		return maybe.Some(float64(n))
	case string:
		return ParseDecimal(strings.TrimSpace(n))
	default:
		return maybe.None[float64]()
	}
}

// FormatFloat is the shortest representation that parses back to f.
func FormatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// FormatMaybeFloat renders None as an empty string.
func FormatMaybeFloat(m maybe.Maybe[float64]) string {
	if !m.IsValid() {
		return ""
	}
	return FormatFloat(m.Value())
}
