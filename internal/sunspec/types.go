// Package sunspec locates and parses SunSpec register-map model
// directories, either by walking a live register vector against its
// sentinel/terminator convention or by decoding an external JSON/XML model
// catalog.
package sunspec

import "strconv"

// ModelDefinition describes one model block located in a device's register
// directory. Start is the absolute register address of the model's header
// (id + length registers); Length is the total register count including
// that 2-register header. Immutable once constructed.
type ModelDefinition struct {
	ID     uint16
	Name   string
	Start  uint16
	Length uint16
}

// Kind tags the variant carried by a PointValue.
type Kind int

const (
	KindI16 Kind = iota
	KindU16
	KindI32
	KindU32
	KindF32
)

// PointValue is a tagged raw register value prior to scale-factor
// application. Only the field matching Kind is meaningful.
type PointValue struct {
	Kind Kind
	I16  int16
	U16  uint16
	I32  int32
	U32  uint32
	F32  float32
}

// Sentinel register pair marking the start of a SunSpec model directory
// ("SunS" packed into two 16-bit words).
const (
	SentinelHigh = 0x5375
	SentinelLow  = 0x6E53
	EndMarker    = 0xFFFF
)

// modelNames maps known SunSpec model ids to their canonical names.
var modelNames = map[uint16]string{
	1:   "common",
	101: "inverter",
	103: "three_phase_inverter",
	160: "mppt",
	201: "meter",
}

// ModelName returns the canonical name for a known model id, or
// "model_<id>" for anything unrecognized.
func ModelName(id uint16) string {
	if name, ok := modelNames[id]; ok {
		return name
	}
	return "model_" + strconv.Itoa(int(id))
}
