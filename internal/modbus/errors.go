package modbus

import (
	"errors"
	"fmt"
)

// Error taxonomy per spec.md §4.1/§7. All are retryable except
// ErrInvalidAddress and ErrAddressOverflow.
var (
	ErrInvalidAddress  = errors.New("modbus: invalid address")
	ErrTransport       = errors.New("modbus: transport error")
	ErrAddressOverflow = errors.New("modbus: address arithmetic overflows a 16-bit register address")
)

// TimeoutError reports that a chunk request exceeded its deadline.
type TimeoutError struct {
	TimeoutMs int
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("modbus: read timed out after %dms", e.TimeoutMs)
}

// Retryable reports whether err should be retried per spec.md §4.1.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	var te *TimeoutError
	if errors.As(err, &te) {
		return true
	}
	if errors.Is(err, ErrTransport) {
		return true
	}
	return false
}
