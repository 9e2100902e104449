package dynconv

import (
	"fmt"

	"github.com/pkg/errors"
)

// ShapeError reports operands whose dimensions cannot be convolved: a
// channel mismatch, a wrong rank, or a kernel larger than the padded input.
type ShapeError struct {
	Op  string
	Msg string
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("dynconv: %s: %s", e.Op, e.Msg)
}

func shapeErrorf(op, format string, args ...interface{}) error {
	return errors.WithStack(&ShapeError{Op: op, Msg: fmt.Sprintf(format, args...)})
}

// ConfigurationError reports an unknown padding mode or an invalid stride.
type ConfigurationError struct {
	Field string
	Value string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("dynconv: invalid %s %q", e.Field, e.Value)
}

// ErrDeviceUnavailable is returned when the engine's device cannot run a
// convolution. The engine never falls back to another device.
var ErrDeviceUnavailable = errors.New("dynconv: compute device unavailable")

// IsShapeError reports whether err (or anything it wraps) is a *ShapeError.
func IsShapeError(err error) bool {
	var se *ShapeError
	return errors.As(err, &se)
}

// IsConfigurationError reports whether err wraps a *ConfigurationError.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}
