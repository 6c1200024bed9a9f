package signaltree

import (
	"encoding/json"
	"math"

	"github.com/c360/vssbroker/errors"
)

type intRange struct{ min, max int64 }

var intRanges = map[Datatype]intRange{
	DatatypeUint8:  {0, math.MaxUint8},
	DatatypeUint16: {0, math.MaxUint16},
	DatatypeUint32: {0, math.MaxUint32},
	DatatypeUint64: {0, math.MaxInt64}, // uint64's true upper bound overflows int64; clamp at the representable ceiling
	DatatypeInt8:   {math.MinInt8, math.MaxInt8},
	DatatypeInt16:  {math.MinInt16, math.MaxInt16},
	DatatypeInt32:  {math.MinInt32, math.MaxInt32},
	DatatypeInt64:  {math.MinInt64, math.MaxInt64},
}

// coerce converts an incoming request value to the representation a leaf of
// the given datatype stores, per the VSS numeric/boolean/string coercion
// rules: integers out of range or non-finite floats fail as OutOfBounds,
// values of the wrong shape fail as TypeMismatch.
func coerce(datatype Datatype, path string, value any) (any, error) {
	switch datatype {
	case DatatypeUint8, DatatypeUint16, DatatypeUint32, DatatypeUint64,
		DatatypeInt8, DatatypeInt16, DatatypeInt32, DatatypeInt64:
		f, ok := toFloat(value)
		if !ok {
			return nil, errors.TypeMismatch("value for '" + path + "' must be a number")
		}
		if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
			return nil, errors.OutOfBounds("value for '" + path + "' must be a whole number")
		}
		r := intRanges[datatype]
		i := int64(f)
		if i < r.min || i > r.max {
			return nil, errors.OutOfBounds("value for '" + path + "' is out of range")
		}
		return i, nil

	case DatatypeFloat, DatatypeDouble:
		f, ok := toFloat(value)
		if !ok {
			return nil, errors.TypeMismatch("value for '" + path + "' must be a number")
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, errors.OutOfBounds("value for '" + path + "' must be finite")
		}
		return f, nil

	case DatatypeBoolean:
		switch v := value.(type) {
		case bool:
			return v, nil
		case float64:
			if v == 0 {
				return false, nil
			}
			if v == 1 {
				return true, nil
			}
			return nil, errors.TypeMismatch("value for '" + path + "' must be a boolean, 0, or 1")
		case json.Number:
			f, _ := v.Float64()
			if f == 0 {
				return false, nil
			}
			if f == 1 {
				return true, nil
			}
			return nil, errors.TypeMismatch("value for '" + path + "' must be a boolean, 0, or 1")
		default:
			return nil, errors.TypeMismatch("value for '" + path + "' must be a boolean, 0, or 1")
		}

	case DatatypeString:
		s, ok := value.(string)
		if !ok {
			return nil, errors.TypeMismatch("value for '" + path + "' must be a string")
		}
		return s, nil

	default:
		return value, nil
	}
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
