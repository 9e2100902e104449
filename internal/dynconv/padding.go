package dynconv

import (
	"strconv"

	"github.com/pkg/errors"
)

// Padding selects how the input is padded before patches are extracted.
type Padding int

const (
	// Valid applies no padding.
	Valid Padding = iota
	// Same pads floor((k-1)/2) zeros on every side of each spatial axis, which
	// preserves the spatial size for odd kernels at stride 1. Even kernels
	// shrink the output by one; that truncation is intentional.
	Same
)

// fixedBase offsets explicit per-side amounts so they never collide with
// the named modes.
const fixedBase Padding = 1 << 16

// Fixed pads n zeros on every side of each spatial axis regardless of the
// kernel size. A negative n yields an invalid Padding.
func Fixed(n int) Padding {
	if n < 0 {
		return Padding(-1)
	}
	return fixedBase + Padding(n)
}

// ParsePadding maps "valid", "same" or a non-negative integer (a Fixed
// amount) to a Padding.
func ParsePadding(s string) (Padding, error) {
	switch s {
	case "valid":
		return Valid, nil
	case "same":
		return Same, nil
	}
	if n, err := strconv.Atoi(s); err == nil && n >= 0 {
		return Fixed(n), nil
	}
	return Valid, errors.WithStack(&ConfigurationError{Field: "padding", Value: s})
}

func (p Padding) String() string {
	switch {
	case p == Valid:
		return "valid"
	case p == Same:
		return "same"
	case p >= fixedBase:
		return strconv.Itoa(int(p - fixedBase))
	}
	return "Padding(" + strconv.Itoa(int(p)) + ")"
}

// Amounts returns the per-side padding for a kh x kw kernel.
func (p Padding) Amounts(kh, kw int) (ph, pw int, err error) {
	switch p {
	case Valid:
		return 0, 0, nil
	case Same:
		return (kh - 1) / 2, (kw - 1) / 2, nil
	}
	if p >= fixedBase {
		n := int(p - fixedBase)
		return n, n, nil
	}
	return 0, 0, errors.WithStack(&ConfigurationError{Field: "padding", Value: p.String()})
}

// OutputSize returns the spatial output size of a convolution, or a
// ShapeError when the kernel does not fit. It never clamps to zero.
func OutputSize(h, w, kh, kw, stride int, p Padding) (int, int, error) {
	if stride < 1 {
		return 0, 0, errors.WithStack(&ConfigurationError{Field: "stride", Value: strconv.Itoa(stride)})
	}
	ph, pw, err := p.Amounts(kh, kw)
	if err != nil {
		return 0, 0, err
	}
	hp, wp := h+2*ph, w+2*pw
	if kh > hp || kw > wp {
		return 0, 0, shapeErrorf("output size", "kernel %dx%d larger than padded input %dx%d", kh, kw, hp, wp)
	}
	return (hp-kh)/stride + 1, (wp-kw)/stride + 1, nil
}
