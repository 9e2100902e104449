package data

import (
	"math/rand"

	"github.com/pkg/errors"
)

// Synthetic generates a learnable stand-in for an image dataset: every class
// has a fixed random prototype and each sample is its class prototype plus
// Gaussian noise, clamped to [0,1]. The same seed gives the same dataset.
func Synthetic(n, classes int, shape [3]int, noise float64, seed int64) (*Dataset, error) {
	if n < 1 || classes < 1 {
		return nil, errors.Errorf("synthetic: %d samples of %d classes", n, classes)
	}
	rng := rand.New(rand.NewSource(seed))
	size := shape[0] * shape[1] * shape[2]
	if size <= 0 {
		return nil, errors.Errorf("synthetic: invalid sample shape %v", shape)
	}

	prototypes := make([][]float64, classes)
	for c := range prototypes {
		p := make([]float64, size)
		for i := range p {
			if rng.Float64() < 0.3 {
				p[i] = 1
			}
		}
		prototypes[c] = p
	}

	images := make([]float64, 0, n*size)
	labels := make([]int, n)
	for i := range labels {
		c := i % classes
		labels[i] = c
		for _, v := range prototypes[c] {
			v += rng.NormFloat64() * noise
			if v < 0 {
				v = 0
			} else if v > 1 {
				v = 1
			}
			images = append(images, v)
		}
	}
	return NewDataset(images, labels, shape)
}
