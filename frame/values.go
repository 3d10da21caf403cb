package frame

import (
	"math"
	"math/big"

	"github.com/marcboeker/go-duckdb/v2"
)

// IsMissing reports whether v is NULL or a float NaN.
func IsMissing(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case float64:
		return math.IsNaN(t)
	case float32:
		return math.IsNaN(float64(t))
	case *duckdb.Decimal:
		return t == nil || t.Value == nil
	case duckdb.Decimal:
		return t.Value == nil
	}
	return false
}

// Float converts a value scanned from DuckDB to float64. DECIMAL columns arrive as
// duckdb.Decimal. Non-numeric and missing values return false.
func Float(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, !math.IsNaN(t)
	case float32:
		return float64(t), !math.IsNaN(float64(t))
	case int:
		return float64(t), true
	case int8:
		return float64(t), true
	case int16:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case uint:
		return float64(t), true
	case uint8:
		return float64(t), true
	case uint16:
		return float64(t), true
	case uint32:
		return float64(t), true
	case uint64:
		return float64(t), true
	case *big.Int:
		if t == nil {
			return 0, false
		}
		x, _ := new(big.Float).SetInt(t).Float64()
		return x, true
	case duckdb.Decimal:
		if t.Value == nil {
			return 0, false
		}
		return t.Float64(), true
	case *duckdb.Decimal:
		if t == nil || t.Value == nil {
			return 0, false
		}
		return t.Float64(), true
	}
	return 0, false
}

// Int converts an integral value to int64. Fractional, non-numeric and missing
// values return false.
func Int(v any) (int64, bool) {
	switch t := v.(type) {
	case int64:
		return t, true
	case int32:
		return int64(t), true
	case int16:
		return int64(t), true
	case int8:
		return int64(t), true
	case int:
		return int64(t), true
	case uint8:
		return int64(t), true
	case uint16:
		return int64(t), true
	case uint32:
		return int64(t), true
	case *big.Int:
		if t == nil || !t.IsInt64() {
			return 0, false
		}
		return t.Int64(), true
	}
	x, ok := Float(v)
	if !ok || x != math.Trunc(x) {
		return 0, false
	}
	return int64(x), true
}
