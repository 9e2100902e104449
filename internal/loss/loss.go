// Package loss provides the classification loss used to train the models.
package loss

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"

	"github.com/FlavioCFOliveira/GoACNN/internal/tensor"
)

// Reduction selects how per-sample losses are combined.
type Reduction int

const (
	// Mean averages over the batch.
	Mean Reduction = iota
	// Sum adds over the batch.
	Sum
)

// NLLLoss (Negative Log Likelihood) loss for classification.
// Inputs are log-probabilities of shape (N, classes) and targets are class
// indices.
type NLLLoss struct {
	Reduction Reduction
}

func check(logProbs *tensor.Tensor, targets []int) (n, classes int, err error) {
	if logProbs.Rank() != 2 {
		return 0, 0, errors.Errorf("nll: log-probabilities must be (N,classes), got %v", logProbs.Shape())
	}
	n, classes = logProbs.Dim(0), logProbs.Dim(1)
	if len(targets) != n {
		return 0, 0, errors.Errorf("nll: %d targets for batch of %d", len(targets), n)
	}
	for i, t := range targets {
		if t < 0 || t >= classes {
			return 0, 0, errors.Errorf("nll: target %d of sample %d outside [0,%d)", t, i, classes)
		}
	}
	return n, classes, nil
}

func (l NLLLoss) scale(n int) float64 {
	if l.Reduction == Sum {
		return 1
	}
	return 1 / float64(n)
}

// Forward computes -sum(logProbs[i, targets[i]]), reduced.
func (l NLLLoss) Forward(logProbs *tensor.Tensor, targets []int) (float64, error) {
	n, classes, err := check(logProbs, targets)
	if err != nil {
		return 0, err
	}
	data := logProbs.Data()
	var sum float64
	for i, t := range targets {
		sum -= data[i*classes+t]
	}
	return sum * l.scale(n), nil
}

// Backward returns dL/dlogProbs: -scale at each target, zero elsewhere.
func (l NLLLoss) Backward(logProbs *tensor.Tensor, targets []int) (*tensor.Tensor, error) {
	n, classes, err := check(logProbs, targets)
	if err != nil {
		return nil, err
	}
	grad := tensor.New(n, classes)
	data := grad.Data()
	s := l.scale(n)
	for i, t := range targets {
		data[i*classes+t] = -s
	}
	return grad, nil
}

// Predictions returns the argmax class of every row.
func Predictions(logProbs *tensor.Tensor) []int {
	n, classes := logProbs.Dim(0), logProbs.Dim(1)
	data := logProbs.Data()
	preds := make([]int, n)
	for i := range preds {
		preds[i] = floats.MaxIdx(data[i*classes : (i+1)*classes])
	}
	return preds
}

// Correct counts rows whose argmax equals the target.
func Correct(logProbs *tensor.Tensor, targets []int) int {
	count := 0
	for i, p := range Predictions(logProbs) {
		if p == targets[i] {
			count++
		}
	}
	return count
}
