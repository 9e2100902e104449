package data

import (
	"math/rand"

	"github.com/FlavioCFOliveira/GoACNN/internal/tensor"
)

// Loader iterates a dataset in mini-batches. With Shuffle set, every Reset
// draws a new permutation from the loader's own seeded source, so two
// loaders with the same seed visit samples in the same order.
type Loader struct {
	ds        *Dataset
	batchSize int
	shuffle   bool
	rng       *rand.Rand

	order []int
	pos   int
}

// NewLoader creates a loader and prepares the first pass.
func NewLoader(ds *Dataset, batchSize int, shuffle bool, seed int64) *Loader {
	if batchSize < 1 {
		batchSize = 1
	}
	l := &Loader{
		ds:        ds,
		batchSize: batchSize,
		shuffle:   shuffle,
		rng:       rand.New(rand.NewSource(seed)),
	}
	l.Reset()
	return l
}

// Reset starts a new pass over the dataset.
func (l *Loader) Reset() {
	if l.shuffle {
		l.order = l.rng.Perm(l.ds.Len())
	} else {
		l.order = make([]int, l.ds.Len())
		for i := range l.order {
			l.order[i] = i
		}
	}
	l.pos = 0
}

// Next returns the next batch. The last batch of a pass may be short.
// ok is false once the pass is exhausted.
func (l *Loader) Next() (x *tensor.Tensor, y []int, ok bool) {
	if l.pos >= len(l.order) {
		return nil, nil, false
	}
	end := l.pos + l.batchSize
	if end > len(l.order) {
		end = len(l.order)
	}
	x, y, err := l.ds.Batch(l.order[l.pos:end])
	if err != nil {
		// order only holds valid indices
		panic(err)
	}
	l.pos = end
	return x, y, true
}

// Len returns the number of batches per pass.
func (l *Loader) Len() int { return (l.ds.Len() + l.batchSize - 1) / l.batchSize }

// BatchSize returns the configured batch size.
func (l *Loader) BatchSize() int { return l.batchSize }

// Dataset returns the underlying dataset.
func (l *Loader) Dataset() *Dataset { return l.ds }
