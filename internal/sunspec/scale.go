package sunspec

import "math"

// Per-type "absent" sentinels, per spec.md §4.2.
const (
	sentinelI16 = math.MinInt16
	sentinelU16 = math.MaxUint16
	sentinelI32 = math.MinInt32
	sentinelU32 = math.MaxUint32
)

// ApplyScale applies a SunSpec scale factor to a raw point value, returning
// (value, true) normally or (0, false) when raw equals its type's sentinel
// "absent" value.
func ApplyScale(raw PointValue, sf int16) (float64, bool) {
	var value float64

	switch raw.Kind {
	case KindI16:
		if raw.I16 == sentinelI16 {
			return 0, false
		}
		value = float64(raw.I16)
	case KindU16:
		if raw.U16 == sentinelU16 {
			return 0, false
		}
		value = float64(raw.U16)
	case KindI32:
		if raw.I32 == sentinelI32 {
			return 0, false
		}
		value = float64(raw.I32)
	case KindU32:
		if raw.U32 == sentinelU32 {
			return 0, false
		}
		value = float64(raw.U32)
	case KindF32:
		if math.IsNaN(float64(raw.F32)) {
			return 0, false
		}
		value = float64(raw.F32)
	default:
		return 0, false
	}

	return value * math.Pow(10, float64(sf)), true
}
