package sunspec

import "errors"

// Errors returned by Walk. Matching spec.md §4.2's parser error taxonomy:
// fatal for the device at startup, the caller skips the device.
var (
	ErrInvalidSentinel = errors.New("sunspec: register vector does not begin with the SunS sentinel")
	ErrUnexpectedEnd   = errors.New("sunspec: model block runs past the end of the register vector")
	ErrLengthOverflow  = errors.New("sunspec: model length overflows a register block")
)

// Walk locates the model directory in regs (assumed to start at
// baseAddress) and returns the models found. In strict mode, any block
// that would overrun the vector, or a directory that never reaches the
// 0xFFFF end marker, is an error. In lenient mode, an overrunning block
// simply ends the walk, returning whatever was collected so far.
func Walk(baseAddress uint16, regs []uint16, strict bool) ([]ModelDefinition, error) {
	if len(regs) < 2 || regs[0] != SentinelHigh || regs[1] != SentinelLow {
		return nil, ErrInvalidSentinel
	}

	var models []ModelDefinition
	index := 2
	n := len(regs)

	for index+1 < n {
		modelID := regs[index]
		modelLen := regs[index+1]
		if modelID == EndMarker {
			return models, nil
		}

		blockLen := uint32(modelLen) + 2
		if blockLen > 0xFFFF {
			return nil, ErrLengthOverflow
		}

		next := index + int(blockLen)
		if next > n {
			if strict {
				return nil, ErrUnexpectedEnd
			}
			return models, nil
		}

		models = append(models, ModelDefinition{
			ID:     modelID,
			Name:   ModelName(modelID),
			Start:  baseAddress + uint16(index),
			Length: uint16(blockLen),
		})
		index = next
	}

	if strict {
		return nil, ErrUnexpectedEnd
	}
	return models, nil
}
