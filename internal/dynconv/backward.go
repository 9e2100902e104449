package dynconv

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/FlavioCFOliveira/GoACNN/internal/tensor"
)

// Backward returns the gradients of a loss with respect to x and kernels,
// given grad, the gradient with respect to the convolution output before any
// activation. x and kernels must be the operands of the forward call.
func (e *Engine) Backward(x, kernels, grad *tensor.Tensor, opts Options) (gradX, gradK *tensor.Tensor, err error) {
	g, err := plan("backward", x, kernels, opts)
	if err != nil {
		return nil, nil, err
	}
	if want := []int{g.cOut, g.hOut, g.wOut}; !tensor.SameShape(grad.Shape(), want) {
		return nil, nil, shapeErrorf("backward", "output gradient %v, want %v", grad.Shape(), want)
	}
	if !e.device.IsAvailable() {
		return nil, nil, ErrDeviceUnavailable
	}

	xp, err := x.Pad2D(g.ph, g.ph, g.pw, g.pw)
	if err != nil {
		return nil, nil, errors.Wrap(err, "dynconv: pad input")
	}
	col, _, _, err := Im2Col(xp, g.kh, g.kw, opts.Stride)
	if err != nil {
		return nil, nil, err
	}

	rowLen := g.c * g.kh * g.kw
	positions := g.hOut * g.wOut
	colMat := mat.NewDense(positions, rowLen, e.device.Transfer(col.Data()))
	kMat := mat.NewDense(g.cOut, rowLen, e.device.Transfer(kernels.Data()))
	gMat := mat.NewDense(g.cOut, positions, e.device.Transfer(grad.Data()))

	// dK = G * col
	gradKData := make([]float64, g.cOut*rowLen)
	mat.NewDense(g.cOut, rowLen, gradKData).Mul(gMat, colMat)

	// dcol = G^T * K, folded back onto the padded input
	dColData := make([]float64, positions*rowLen)
	mat.NewDense(positions, rowLen, dColData).Mul(gMat.T(), kMat)
	dCol, err := tensor.FromSlice(dColData, positions, rowLen)
	if err != nil {
		return nil, nil, errors.Wrap(err, "dynconv: column gradient")
	}
	dxp, err := Col2Im(dCol, g.c, g.h+2*g.ph, g.w+2*g.pw, g.kh, g.kw, opts.Stride)
	if err != nil {
		return nil, nil, err
	}
	if gradX, err = dxp.Crop2D(g.ph, g.ph, g.pw, g.pw); err != nil {
		return nil, nil, errors.Wrap(err, "dynconv: crop input gradient")
	}
	if gradK, err = tensor.FromSlice(gradKData, kernels.Shape()...); err != nil {
		return nil, nil, errors.Wrap(err, "dynconv: kernel gradient")
	}
	return gradX, gradK, nil
}

// Backward runs Engine.Backward on the default CPU engine.
func Backward(x, kernels, grad *tensor.Tensor, opts Options) (gradX, gradK *tensor.Tensor, err error) {
	return defaultEngine.Backward(x, kernels, grad, opts)
}
