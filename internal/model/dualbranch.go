package model

import (
	"github.com/pkg/errors"

	"github.com/FlavioCFOliveira/GoACNN/internal/dynconv"
	"github.com/FlavioCFOliveira/GoACNN/internal/tensor"
)

// sampleKernels views filters[n] (C_k,H_k,W_k) as (C_k/C_f, C_f, H_k, W_k).
func sampleKernels(filters *tensor.Tensor, n, cf int) (*tensor.Tensor, error) {
	ks, err := filters.Sample(n)
	if err != nil {
		return nil, errors.Wrap(err, "dynamic convolution")
	}
	if ck := ks.Dim(0); ck%cf != 0 {
		return nil, shapeErrorf("dynamic convolution", "filter channels %d not divisible by feature channels %d", ck, cf)
	}
	return ks.Reshape(-1, cf, ks.Dim(1), ks.Dim(2))
}

func checkPair(features, filters *tensor.Tensor) error {
	if features.Rank() != 4 || filters.Rank() != 4 {
		return shapeErrorf("dynamic convolution", "features %v and filters %v must be 4-D", features.Shape(), filters.Shape())
	}
	if features.Dim(0) != filters.Dim(0) {
		return shapeErrorf("dynamic convolution", "batch sizes differ: %d features, %d filters", features.Dim(0), filters.Dim(0))
	}
	return nil
}

// DynamicConvolve convolves every feature map features[n] (C_f,H,W) with
// the kernels produced for that same sample, filters[n] (C_k,H_k,W_k)
// viewed as (C_k/C_f) kernels of C_f channels. The result is
// (N, C_k/C_f, H_out, W_out). Samples never see each other's kernels.
func DynamicConvolve(e *dynconv.Engine, features, filters *tensor.Tensor, opts dynconv.Options) (*tensor.Tensor, error) {
	if err := checkPair(features, filters); err != nil {
		return nil, err
	}
	n, cf := features.Dim(0), features.Dim(1)
	outs := make([]*tensor.Tensor, n)
	for i := 0; i < n; i++ {
		fs, err := features.Sample(i)
		if err != nil {
			return nil, errors.Wrap(err, "dynamic convolution")
		}
		ks, err := sampleKernels(filters, i, cf)
		if err != nil {
			return nil, err
		}
		if outs[i], err = e.Convolve(fs, ks, opts); err != nil {
			return nil, errors.Wrapf(err, "sample %d", i)
		}
	}
	return tensor.Stack(outs)
}

// DynamicConvolveBackward returns the gradients of DynamicConvolve with
// respect to features and filters, shaped like them, given grad shaped
// like its output.
func DynamicConvolveBackward(e *dynconv.Engine, features, filters, grad *tensor.Tensor, opts dynconv.Options) (gradF, gradK *tensor.Tensor, err error) {
	if err := checkPair(features, filters); err != nil {
		return nil, nil, err
	}
	n, cf := features.Dim(0), features.Dim(1)
	if grad.Rank() != 4 || grad.Dim(0) != n {
		return nil, nil, shapeErrorf("dynamic convolution backward", "gradient %v does not match batch %d", grad.Shape(), n)
	}
	gfs := make([]*tensor.Tensor, n)
	gks := make([]*tensor.Tensor, n)
	for i := 0; i < n; i++ {
		fs, err := features.Sample(i)
		if err != nil {
			return nil, nil, errors.Wrap(err, "dynamic convolution backward")
		}
		ks, err := sampleKernels(filters, i, cf)
		if err != nil {
			return nil, nil, err
		}
		gs, err := grad.Sample(i)
		if err != nil {
			return nil, nil, errors.Wrap(err, "dynamic convolution backward")
		}
		gx, gk, err := e.Backward(fs, ks, gs, opts)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "sample %d", i)
		}
		gfs[i] = gx
		if gks[i], err = gk.Reshape(filters.Shape()[1:]...); err != nil {
			return nil, nil, errors.Wrap(err, "dynamic convolution backward")
		}
	}
	if gradF, err = tensor.Stack(gfs); err != nil {
		return nil, nil, err
	}
	if gradK, err = tensor.Stack(gks); err != nil {
		return nil, nil, err
	}
	return gradF, gradK, nil
}
