// Package opt provides optimization algorithms.
package opt

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Optimizer updates network parameters based on gradients.
type Optimizer interface {
	// Step computes updated parameters and returns them in a new slice.
	Step(params, gradients []float64) []float64

	// StepInPlace updates params in-place.
	// This avoids allocations for better performance
	StepInPlace(params, gradients []float64)

	LR() float64
	SetLR(lr float64)
}

// SGD (Stochastic Gradient Descent) optimizer with optional momentum and
// L2 weight decay. Momentum state is keyed by parameter position, so one SGD
// must always be stepped with the same parameter vector.
type SGD struct {
	LearningRate float64
	Momentum     float64
	WeightDecay  float64

	velocity []float64
}

// Step computes updated parameters without touching params.
func (s *SGD) Step(params, gradients []float64) []float64 {
	result := append([]float64(nil), params...)
	s.StepInPlace(result, gradients)
	return result
}

// StepInPlace updates params in-place:
// d = g + wd*p, v = mu*v + d, p = p - lr*v
func (s *SGD) StepInPlace(params, gradients []float64) {
	if s.Momentum == 0 && s.WeightDecay == 0 {
		floats.AddScaled(params, -s.LearningRate, gradients)
		return
	}

	first := len(s.velocity) != len(params)
	if first {
		s.velocity = make([]float64, len(params))
	}
	for i := range params {
		d := gradients[i] + s.WeightDecay*params[i]
		if s.Momentum != 0 {
			if first {
				s.velocity[i] = d
			} else {
				s.velocity[i] = s.Momentum*s.velocity[i] + d
			}
			d = s.velocity[i]
		}
		params[i] -= s.LearningRate * d
	}
}

func (s *SGD) LR() float64      { return s.LearningRate }
func (s *SGD) SetLR(lr float64) { s.LearningRate = lr }

// Adam optimizer for faster convergence.
type Adam struct {
	LearningRate float64
	Beta1        float64 // Exponential decay rate for first moment
	Beta2        float64 // Exponential decay rate for second moment
	Epsilon      float64 // Small constant for numerical stability

	m, v []float64
	t    int
}

// NewAdam creates a new Adam optimizer with default values.
func NewAdam(learningRate float64) *Adam {
	return &Adam{
		LearningRate: learningRate,
		Beta1:        0.9,
		Beta2:        0.999,
		Epsilon:      1e-8,
	}
}

// Step computes updated parameters using Adam.
func (a *Adam) Step(params, gradients []float64) []float64 {
	result := append([]float64(nil), params...)
	a.StepInPlace(result, gradients)
	return result
}

// StepInPlace updates params in-place using bias-corrected moment estimates.
func (a *Adam) StepInPlace(params, gradients []float64) {
	if len(a.m) != len(params) {
		a.m = make([]float64, len(params))
		a.v = make([]float64, len(params))
		a.t = 0
	}
	a.t++
	c1 := 1 - math.Pow(a.Beta1, float64(a.t))
	c2 := 1 - math.Pow(a.Beta2, float64(a.t))
	for i, g := range gradients {
		a.m[i] = a.Beta1*a.m[i] + (1-a.Beta1)*g
		a.v[i] = a.Beta2*a.v[i] + (1-a.Beta2)*g*g
		mHat := a.m[i] / c1
		vHat := a.v[i] / c2
		params[i] -= a.LearningRate * mHat / (math.Sqrt(vHat) + a.Epsilon)
	}
}

func (a *Adam) LR() float64      { return a.LearningRate }
func (a *Adam) SetLR(lr float64) { a.LearningRate = lr }
