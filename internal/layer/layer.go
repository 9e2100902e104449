// Package layer provides neural network layer implementations.
//
// Layers consume and produce flattened, row-major batches. The batch size is
// inferred from len(x) / InSize(); a length that is not a multiple of InSize
// is a programming error and panics.
package layer

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/FlavioCFOliveira/GoACNN/internal/activations"
)

// Layer is a neural network layer.
type Layer interface {
	// Forward computes the output for a batch. The returned slice is owned by
	// the layer and is overwritten by the next call.
	Forward(x []float64) []float64
	// Backward takes dL/d(output) for the last Forward batch, accumulates
	// parameter gradients and returns dL/d(input).
	Backward(grad []float64) []float64
	Params() []float64
	SetParams([]float64)
	Gradients() []float64
	ClearGradients()
	// InSize and OutSize are per-sample sizes.
	InSize() int
	OutSize() int
}

// Trainable is implemented by layers whose forward pass depends on the
// training mode.
type Trainable interface {
	SetTraining(training bool)
}

// Stateful is implemented by layers that carry non-trainable values, such as
// running statistics, which must be saved alongside the parameters.
type Stateful interface {
	State() []float64
	SetState([]float64)
}

// CollectState concatenates the state of the stateful layers in order.
func CollectState(layers []Layer) []float64 {
	var state []float64
	for _, l := range layers {
		if s, ok := l.(Stateful); ok {
			state = append(state, s.State()...)
		}
	}
	return state
}

// RestoreState distributes state over the stateful layers in order, the
// inverse of CollectState.
func RestoreState(layers []Layer, state []float64) {
	off := 0
	for _, l := range layers {
		if s, ok := l.(Stateful); ok {
			n := len(s.State())
			s.SetState(state[off : off+n])
			off += n
		}
	}
}

var initRNG = rand.New(rand.NewSource(42))

// Seed resets the generator used for weight initialization.
func Seed(seed int64) {
	initRNG = rand.New(rand.NewSource(seed))
}

func batchSize(name string, n, inSize int) int {
	if inSize <= 0 || n == 0 || n%inSize != 0 {
		panic(fmt.Sprintf("%s: input length %d is not a multiple of %d", name, n, inSize))
	}
	return n / inSize
}

func grow(buf []float64, n int) []float64 {
	if cap(buf) < n {
		return make([]float64, n)
	}
	return buf[:n]
}

// Dense is a fully connected layer.
type Dense struct {
	// Shape: [out * in] where weight for output i, input j is at weights[i*in + j]
	params  []float64
	weights []float64 // view of params
	biases  []float64 // view of params
	act     activations.Activation
	outSize int
	inSize  int

	grads  []float64
	gradW  []float64 // view of grads
	gradB  []float64 // view of grads
	input  []float64
	preAct []float64
	output []float64
	dz     []float64
	gradIn []float64
	batch  int
}

// NewDense creates a new dense layer. A nil activation is the identity.
func NewDense(in, out int, act activations.Activation) *Dense {
	if act == nil {
		act = activations.Linear{}
	}
	params := make([]float64, out*in+out)
	grads := make([]float64, len(params))
	d := &Dense{
		params:  params,
		weights: params[:out*in],
		biases:  params[out*in:],
		act:     act,
		outSize: out,
		inSize:  in,
		grads:   grads,
		gradW:   grads[:out*in],
		gradB:   grads[out*in:],
	}

	// PyTorch Linear default: U(-1/sqrt(in), 1/sqrt(in))
	bound := 1 / math.Sqrt(float64(in))
	for i := range d.params {
		d.params[i] = initRNG.Float64()*2*bound - bound
	}
	return d
}

// Forward computes act(x W^T + b) for every row of the batch.
func (d *Dense) Forward(x []float64) []float64 {
	n := batchSize("Dense", len(x), d.inSize)
	d.batch = n
	d.input = grow(d.input, len(x))
	copy(d.input, x)
	d.preAct = grow(d.preAct, n*d.outSize)
	d.output = grow(d.output, n*d.outSize)

	X := mat.NewDense(n, d.inSize, d.input)
	W := mat.NewDense(d.outSize, d.inSize, d.weights)
	Z := mat.NewDense(n, d.outSize, d.preAct)
	Z.Mul(X, W.T())

	for r := 0; r < n; r++ {
		row := d.preAct[r*d.outSize : (r+1)*d.outSize]
		floats.Add(row, d.biases)
		out := d.output[r*d.outSize : (r+1)*d.outSize]
		for o, z := range row {
			out[o] = d.act.Activate(z)
		}
	}
	return d.output
}

// Backward accumulates dW += dz^T x and db += sum(dz), returns dz W.
func (d *Dense) Backward(grad []float64) []float64 {
	n := d.batch
	d.dz = grow(d.dz, n*d.outSize)
	for i, g := range grad[:n*d.outSize] {
		d.dz[i] = g * d.act.Derivative(d.preAct[i])
	}

	dZ := mat.NewDense(n, d.outSize, d.dz)
	X := mat.NewDense(n, d.inSize, d.input)
	var dW mat.Dense
	dW.Mul(dZ.T(), X)
	floats.Add(d.gradW, dW.RawMatrix().Data)
	for r := 0; r < n; r++ {
		floats.Add(d.gradB, d.dz[r*d.outSize:(r+1)*d.outSize])
	}

	d.gradIn = grow(d.gradIn, n*d.inSize)
	dX := mat.NewDense(n, d.inSize, d.gradIn)
	dX.Mul(dZ, mat.NewDense(d.outSize, d.inSize, d.weights))
	return d.gradIn
}

// Params returns the weights followed by the biases.
func (d *Dense) Params() []float64 { return d.params }

// SetParams updates weights and biases from a flattened slice (in-place).
func (d *Dense) SetParams(params []float64) { copy(d.params, params) }

// Gradients returns the accumulated gradients, laid out like Params.
func (d *Dense) Gradients() []float64 { return d.grads }

// ClearGradients zeroes out the accumulated gradients.
func (d *Dense) ClearGradients() {
	for i := range d.grads {
		d.grads[i] = 0
	}
}

// SetWeight sets a single weight at (row, col).
func (d *Dense) SetWeight(row, col int, val float64) {
	d.weights[row*d.inSize+col] = val
}

// SetBias sets a single bias.
func (d *Dense) SetBias(idx int, val float64) {
	d.biases[idx] = val
}

// InSize returns the input size of the layer.
func (d *Dense) InSize() int { return d.inSize }

// OutSize returns the output size of the layer.
func (d *Dense) OutSize() int { return d.outSize }

// Activation returns the activation function used by this layer.
func (d *Dense) Activation() activations.Activation { return d.act }
