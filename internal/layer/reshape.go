package layer

import (
	"math"

	"github.com/FlavioCFOliveira/GoACNN/internal/activations"
)

// Flatten passes a (C,H,W) sample through unchanged as a vector of size
// features. Storage is already row-major, so only the layout changes.
type Flatten struct {
	size      int
	outputBuf []float64
	gradInBuf []float64
}

// NewFlatten creates a flatten layer for samples of the given size.
func NewFlatten(size int) *Flatten {
	return &Flatten{size: size}
}

// Forward copies the input.
func (f *Flatten) Forward(x []float64) []float64 {
	batchSize("Flatten", len(x), f.size)
	f.outputBuf = grow(f.outputBuf, len(x))
	copy(f.outputBuf, x)
	return f.outputBuf
}

// Backward copies the gradient.
func (f *Flatten) Backward(grad []float64) []float64 {
	f.gradInBuf = grow(f.gradInBuf, len(grad))
	copy(f.gradInBuf, grad)
	return f.gradInBuf
}

func (f *Flatten) Params() []float64    { return nil }
func (f *Flatten) SetParams([]float64)  {}
func (f *Flatten) Gradients() []float64 { return nil }
func (f *Flatten) ClearGradients()      {}
func (f *Flatten) InSize() int          { return f.size }
func (f *Flatten) OutSize() int         { return f.size }

// Activation applies an activation function element-wise.
type Activation struct {
	size      int
	act       activations.Activation
	preAct    []float64
	outputBuf []float64
	gradInBuf []float64
}

// NewActivation creates a parameterless activation layer.
func NewActivation(size int, act activations.Activation) *Activation {
	return &Activation{size: size, act: act}
}

// Forward applies the activation.
func (a *Activation) Forward(x []float64) []float64 {
	batchSize("Activation", len(x), a.size)
	a.preAct = grow(a.preAct, len(x))
	copy(a.preAct, x)
	a.outputBuf = grow(a.outputBuf, len(x))
	for i, v := range x {
		a.outputBuf[i] = a.act.Activate(v)
	}
	return a.outputBuf
}

// Backward multiplies grad by the activation derivative.
func (a *Activation) Backward(grad []float64) []float64 {
	a.gradInBuf = grow(a.gradInBuf, len(a.preAct))
	for i, z := range a.preAct {
		a.gradInBuf[i] = grad[i] * a.act.Derivative(z)
	}
	return a.gradInBuf
}

func (a *Activation) Params() []float64    { return nil }
func (a *Activation) SetParams([]float64)  {}
func (a *Activation) Gradients() []float64 { return nil }
func (a *Activation) ClearGradients()      {}
func (a *Activation) InSize() int          { return a.size }
func (a *Activation) OutSize() int         { return a.size }

// LogSoftmax computes log(softmax(x)) over every row of the batch.
type LogSoftmax struct {
	size      int
	outputBuf []float64
	gradInBuf []float64
}

// NewLogSoftmax creates a log-softmax layer over size classes.
func NewLogSoftmax(size int) *LogSoftmax {
	return &LogSoftmax{size: size}
}

// Forward uses the max-shifted log-sum-exp for stability.
func (l *LogSoftmax) Forward(x []float64) []float64 {
	n := batchSize("LogSoftmax", len(x), l.size)
	l.outputBuf = grow(l.outputBuf, len(x))
	for r := 0; r < n; r++ {
		row := x[r*l.size : (r+1)*l.size]
		m := row[0]
		for _, v := range row[1:] {
			if v > m {
				m = v
			}
		}
		sum := 0.0
		for _, v := range row {
			sum += math.Exp(v - m)
		}
		lse := m + math.Log(sum)
		out := l.outputBuf[r*l.size : (r+1)*l.size]
		for i, v := range row {
			out[i] = v - lse
		}
	}
	return l.outputBuf
}

// Backward returns g - softmax(x) * sum(g) per row.
func (l *LogSoftmax) Backward(grad []float64) []float64 {
	l.gradInBuf = grow(l.gradInBuf, len(l.outputBuf))
	n := len(l.outputBuf) / l.size
	for r := 0; r < n; r++ {
		g := grad[r*l.size : (r+1)*l.size]
		sum := 0.0
		for _, v := range g {
			sum += v
		}
		out := l.outputBuf[r*l.size : (r+1)*l.size]
		dx := l.gradInBuf[r*l.size : (r+1)*l.size]
		for i := range dx {
			dx[i] = g[i] - math.Exp(out[i])*sum
		}
	}
	return l.gradInBuf
}

func (l *LogSoftmax) Params() []float64    { return nil }
func (l *LogSoftmax) SetParams([]float64)  {}
func (l *LogSoftmax) Gradients() []float64 { return nil }
func (l *LogSoftmax) ClearGradients()      {}
func (l *LogSoftmax) InSize() int          { return l.size }
func (l *LogSoftmax) OutSize() int         { return l.size }
