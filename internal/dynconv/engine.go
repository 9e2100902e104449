// Package dynconv implements 2-D convolution against a kernel tensor supplied
// at call time rather than held as a layer parameter.
//
// The convolution is computed by extracting every receptive field into a
// column matrix (im2col) and multiplying it with the flattened kernels.
package dynconv

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/FlavioCFOliveira/GoACNN/internal/activations"
	"github.com/FlavioCFOliveira/GoACNN/internal/tensor"
)

// Options configures a single convolution.
type Options struct {
	// Stride between receptive fields. Must be positive.
	Stride int
	// Padding applied to height and width before patch extraction.
	Padding Padding
	// Activation is applied to every output element last. Nil means none.
	Activation activations.Activation
}

// Engine runs convolutions on one device.
type Engine struct {
	device Device
}

// NewEngine creates an engine bound to device.
func NewEngine(device Device) *Engine {
	if device == nil {
		device = GetDefaultDevice()
	}
	return &Engine{device: device}
}

// Device returns the engine's device.
func (e *Engine) Device() Device { return e.device }

var defaultEngine = NewEngine(nil)

// Convolve runs Engine.Convolve on the default CPU engine.
func Convolve(x, kernels *tensor.Tensor, opts Options) (*tensor.Tensor, error) {
	return defaultEngine.Convolve(x, kernels, opts)
}

// geometry is the shape bookkeeping shared by the forward and backward pass.
type geometry struct {
	c, h, w      int
	cOut, kh, kw int
	ph, pw       int
	hOut, wOut   int
}

func plan(op string, x, kernels *tensor.Tensor, opts Options) (geometry, error) {
	var g geometry
	if x.Rank() != 3 {
		return g, shapeErrorf(op, "input must be (C,H,W), got %v", x.Shape())
	}
	if kernels.Rank() != 4 {
		return g, shapeErrorf(op, "kernels must be (C_out,C_in,h,w), got %v", kernels.Shape())
	}
	g.c, g.h, g.w = x.Dim(0), x.Dim(1), x.Dim(2)
	g.cOut, g.kh, g.kw = kernels.Dim(0), kernels.Dim(2), kernels.Dim(3)
	if cIn := kernels.Dim(1); cIn != g.c {
		return g, shapeErrorf(op, "kernel input channels %d != feature map channels %d", cIn, g.c)
	}

	var err error
	if g.ph, g.pw, err = opts.Padding.Amounts(g.kh, g.kw); err != nil {
		return g, err
	}
	if g.hOut, g.wOut, err = OutputSize(g.h, g.w, g.kh, g.kw, opts.Stride, opts.Padding); err != nil {
		return g, err
	}
	return g, nil
}

// Convolve convolves x (C,H,W) with kernels (C_out,C,h,w) and returns a
// (C_out,h_out,w_out) tensor. Neither operand is modified.
func (e *Engine) Convolve(x, kernels *tensor.Tensor, opts Options) (*tensor.Tensor, error) {
	g, err := plan("convolve", x, kernels, opts)
	if err != nil {
		return nil, err
	}
	if !e.device.IsAvailable() {
		return nil, ErrDeviceUnavailable
	}

	xp, err := x.Pad2D(g.ph, g.ph, g.pw, g.pw)
	if err != nil {
		return nil, errors.Wrap(err, "dynconv: pad input")
	}
	col, hOut, wOut, err := Im2Col(xp, g.kh, g.kw, opts.Stride)
	if err != nil {
		return nil, err
	}

	rowLen := g.c * g.kh * g.kw
	colMat := mat.NewDense(hOut*wOut, rowLen, e.device.Transfer(col.Data()))
	kMat := mat.NewDense(g.cOut, rowLen, e.device.Transfer(kernels.Data()))

	outData := make([]float64, g.cOut*hOut*wOut)
	out := mat.NewDense(g.cOut, hOut*wOut, outData)
	out.Mul(kMat, colMat.T())

	y, err := tensor.FromSlice(outData, g.cOut, hOut, wOut)
	if err != nil {
		return nil, errors.Wrap(err, "dynconv: reshape output")
	}
	if opts.Activation != nil {
		y.Apply(opts.Activation.Activate)
	}
	return y, nil
}
