// Package data loads image classification datasets and iterates them in
// mini-batches.
package data

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"

	"github.com/FlavioCFOliveira/GoACNN/internal/tensor"
)

// Dataset holds N images flattened as C*H*W float64 values in [0,1] (before
// Normalize) together with their integer class labels.
type Dataset struct {
	Images []float64
	Labels []int
	Shape  [3]int
}

// NewDataset checks that images and labels agree with shape.
func NewDataset(images []float64, labels []int, shape [3]int) (*Dataset, error) {
	size := shape[0] * shape[1] * shape[2]
	if size <= 0 {
		return nil, errors.Errorf("dataset: invalid sample shape %v", shape)
	}
	if len(images) != len(labels)*size {
		return nil, errors.Errorf("dataset: %d values for %d labels of shape %v", len(images), len(labels), shape)
	}
	return &Dataset{Images: images, Labels: labels, Shape: shape}, nil
}

// Len returns the number of samples.
func (d *Dataset) Len() int { return len(d.Labels) }

// SampleSize returns C*H*W.
func (d *Dataset) SampleSize() int { return d.Shape[0] * d.Shape[1] * d.Shape[2] }

// Image returns the flattened sample i. The slice aliases the dataset.
func (d *Dataset) Image(i int) []float64 {
	size := d.SampleSize()
	return d.Images[i*size : (i+1)*size : (i+1)*size]
}

// Batch copies the samples at indices into an (N,C,H,W) tensor.
func (d *Dataset) Batch(indices []int) (*tensor.Tensor, []int, error) {
	size := d.SampleSize()
	x := make([]float64, 0, len(indices)*size)
	y := make([]int, len(indices))
	for i, idx := range indices {
		if idx < 0 || idx >= d.Len() {
			return nil, nil, errors.Errorf("dataset: index %d out of range [0,%d)", idx, d.Len())
		}
		x = append(x, d.Image(idx)...)
		y[i] = d.Labels[idx]
	}
	t, err := tensor.FromSlice(x, len(indices), d.Shape[0], d.Shape[1], d.Shape[2])
	if err != nil {
		return nil, nil, err
	}
	return t, y, nil
}

// Head returns a dataset sharing the first n samples.
func (d *Dataset) Head(n int) *Dataset {
	if n <= 0 || n >= d.Len() {
		return d
	}
	return &Dataset{Images: d.Images[:n*d.SampleSize()], Labels: d.Labels[:n], Shape: d.Shape}
}

// Split splits the dataset into two based on the given ratio (0.0 to 1.0).
// Both halves share storage with d.
func (d *Dataset) Split(ratio float64) (*Dataset, *Dataset) {
	idx := int(float64(d.Len()) * math.Max(0, math.Min(1, ratio)))
	size := d.SampleSize()
	first := &Dataset{Images: d.Images[:idx*size], Labels: d.Labels[:idx], Shape: d.Shape}
	second := &Dataset{Images: d.Images[idx*size:], Labels: d.Labels[idx:], Shape: d.Shape}
	return first, second
}

// Normalize applies (x-mean[c])/std[c] per channel in place.
func (d *Dataset) Normalize(mean, std []float64) error {
	if len(mean) != d.Shape[0] || len(std) != d.Shape[0] {
		return errors.Errorf("dataset: normalize needs %d channel statistics, got %d and %d", d.Shape[0], len(mean), len(std))
	}
	for c, s := range std {
		if s == 0 {
			return errors.Errorf("dataset: channel %d has zero std", c)
		}
	}
	plane := d.Shape[1] * d.Shape[2]
	for i := 0; i < d.Len(); i++ {
		img := d.Image(i)
		for c := 0; c < d.Shape[0]; c++ {
			p := img[c*plane : (c+1)*plane]
			floats.AddConst(-mean[c], p)
			floats.Scale(1/std[c], p)
		}
	}
	return nil
}

// ClassCounts returns how many samples carry each label in [0,classes).
func (d *Dataset) ClassCounts(classes int) []int {
	counts := make([]int, classes)
	for _, l := range d.Labels {
		if l >= 0 && l < classes {
			counts[l]++
		}
	}
	return counts
}
