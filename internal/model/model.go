// Package model assembles the classifiers: the dual-branch dynamic
// convolution network, the parallel feature/filter extractor and the CIFAR
// residual networks.
package model

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/FlavioCFOliveira/GoACNN/internal/dynconv"
	"github.com/FlavioCFOliveira/GoACNN/internal/net"
	"github.com/FlavioCFOliveira/GoACNN/internal/tensor"
)

// Keys of the intermediate maps returned by Extract.
const (
	FeaturesKey = "features"
	FiltersKey  = "filters"
	JunctionKey = "junction"
)

// Model is a trainable classifier over (N,C,H,W) batches that produces
// (N,classes) log-probabilities.
type Model interface {
	net.Parametric
	Forward(x *tensor.Tensor) (*tensor.Tensor, error)
	// Backward takes dL/d(log-probabilities) for the last Forward batch and
	// accumulates parameter gradients.
	Backward(grad *tensor.Tensor) error
	SetTraining(training bool)
	// InputShape is the per-sample (C,H,W) the model accepts.
	InputShape() [3]int
	Classes() int
}

// MapExtractor exposes the intermediate maps of a forward pass.
type MapExtractor interface {
	Extract(x *tensor.Tensor) (map[string]*tensor.Tensor, error)
}

func shapeErrorf(op, format string, args ...interface{}) error {
	return errors.WithStack(&dynconv.ShapeError{Op: op, Msg: fmt.Sprintf(format, args...)})
}

func checkInput(op string, x *tensor.Tensor, want [3]int) (int, error) {
	if x.Rank() != 4 || x.Dim(1) != want[0] || x.Dim(2) != want[1] || x.Dim(3) != want[2] {
		return 0, shapeErrorf(op, "input must be (N,%d,%d,%d), got %v", want[0], want[1], want[2], x.Shape())
	}
	return x.Dim(0), nil
}

// snapshot copies a layer-owned buffer into a new tensor.
func snapshot(data []float64, shape ...int) (*tensor.Tensor, error) {
	return tensor.FromSlice(append([]float64(nil), data...), shape...)
}
