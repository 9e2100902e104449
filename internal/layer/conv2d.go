package layer

import (
	"fmt"
	"math"

	"github.com/FlavioCFOliveira/GoACNN/internal/activations"
	"github.com/FlavioCFOliveira/GoACNN/internal/dynconv"
	"github.com/FlavioCFOliveira/GoACNN/internal/tensor"
)

// Conv2D implements a 2D convolutional layer whose kernels are held as
// parameters. The convolution itself runs through a dynconv.Engine.
type Conv2D struct {
	inChannels  int
	outChannels int
	kernelSize  int
	stride      int
	padding     dynconv.Padding
	useBias     bool

	inputHeight  int
	inputWidth   int
	outputHeight int
	outputWidth  int

	// Weights: [outChannels, inChannels, kernelSize, kernelSize] followed by
	// outChannels biases when useBias is set.
	params  []float64
	weights []float64 // view of params
	biases  []float64 // view of params, empty without bias

	activation activations.Activation

	grads       []float64
	gradWeights []float64 // view of grads
	gradBiases  []float64 // view of grads

	preActBuf  []float64
	outputBuf  []float64
	dzBuf      []float64
	gradInBuf  []float64
	savedInput []float64
	batch      int

	engine *dynconv.Engine
}

// NewConv2D creates a new 2D convolutional layer with a bias per output
// channel. SetInputDimensions must be called before the first Forward.
func NewConv2D(inChannels, outChannels, kernelSize, stride int, padding dynconv.Padding,
	activation activations.Activation) *Conv2D {
	if activation == nil {
		activation = activations.Linear{}
	}
	c := &Conv2D{
		inChannels:  inChannels,
		outChannels: outChannels,
		kernelSize:  kernelSize,
		stride:      stride,
		padding:     padding,
		useBias:     true,
		activation:  activation,
		engine:      dynconv.NewEngine(nil),
	}
	c.allocParams()

	// He initialization (better for ReLU)
	scale := math.Sqrt(2.0 / float64(inChannels*kernelSize*kernelSize))
	for i := range c.weights {
		c.weights[i] = initRNG.Float64()*2*scale - scale
	}
	return c
}

func (c *Conv2D) allocParams() {
	nw := c.outChannels * c.inChannels * c.kernelSize * c.kernelSize
	n := nw
	if c.useBias {
		n += c.outChannels
	}
	params := make([]float64, n)
	copy(params, c.weights)
	grads := make([]float64, n)
	c.params, c.weights, c.biases = params, params[:nw], params[nw:]
	c.grads, c.gradWeights, c.gradBiases = grads, grads[:nw], grads[nw:]
}

// WithoutBias removes the bias parameters and returns c.
func (c *Conv2D) WithoutBias() *Conv2D {
	c.useBias = false
	c.allocParams()
	return c
}

// SetDevice selects the device the convolutions run on.
func (c *Conv2D) SetDevice(device dynconv.Device) {
	c.engine = dynconv.NewEngine(device)
}

// SetInputDimensions fixes the spatial size of the input and derives the
// output size.
func (c *Conv2D) SetInputDimensions(height, width int) error {
	ho, wo, err := dynconv.OutputSize(height, width, c.kernelSize, c.kernelSize, c.stride, c.padding)
	if err != nil {
		return err
	}
	c.inputHeight, c.inputWidth = height, width
	c.outputHeight, c.outputWidth = ho, wo
	return nil
}

// OutputDimensions returns the spatial output size.
func (c *Conv2D) OutputDimensions() (int, int) {
	return c.outputHeight, c.outputWidth
}

// Kernels returns the weights as a (C_out, C_in, k, k) tensor sharing storage.
func (c *Conv2D) Kernels() *tensor.Tensor {
	t, err := tensor.FromSlice(c.weights, c.outChannels, c.inChannels, c.kernelSize, c.kernelSize)
	if err != nil {
		panic(err)
	}
	return t
}

func (c *Conv2D) options() dynconv.Options {
	return dynconv.Options{Stride: c.stride, Padding: c.padding}
}

// Forward convolves every sample of the batch.
func (c *Conv2D) Forward(x []float64) []float64 {
	if c.inputHeight == 0 {
		panic("Conv2D: input dimensions not set")
	}
	n := batchSize("Conv2D", len(x), c.InSize())
	c.batch = n
	c.savedInput = grow(c.savedInput, len(x))
	copy(c.savedInput, x)

	outSize := c.OutSize()
	plane := c.outputHeight * c.outputWidth
	c.preActBuf = grow(c.preActBuf, n*outSize)
	c.outputBuf = grow(c.outputBuf, n*outSize)
	kernels := c.Kernels()

	for s := 0; s < n; s++ {
		xs := c.sample(s)
		y, err := c.engine.Convolve(xs, kernels, c.options())
		if err != nil {
			panic(fmt.Sprintf("Conv2D: %v", err))
		}
		pre := c.preActBuf[s*outSize : (s+1)*outSize]
		copy(pre, y.Data())
		for o, b := range c.biases {
			for i := o * plane; i < (o+1)*plane; i++ {
				pre[i] += b
			}
		}
		out := c.outputBuf[s*outSize : (s+1)*outSize]
		for i, z := range pre {
			out[i] = c.activation.Activate(z)
		}
	}
	return c.outputBuf
}

func (c *Conv2D) sample(s int) *tensor.Tensor {
	inSize := c.InSize()
	xs, err := tensor.FromSlice(c.savedInput[s*inSize:(s+1)*inSize], c.inChannels, c.inputHeight, c.inputWidth)
	if err != nil {
		panic(err)
	}
	return xs
}

// Backward accumulates kernel and bias gradients and returns the input
// gradient.
func (c *Conv2D) Backward(grad []float64) []float64 {
	n := c.batch
	outSize := c.OutSize()
	inSize := c.InSize()
	plane := c.outputHeight * c.outputWidth

	c.dzBuf = grow(c.dzBuf, n*outSize)
	for i, g := range grad[:n*outSize] {
		c.dzBuf[i] = g * c.activation.Derivative(c.preActBuf[i])
	}
	c.gradInBuf = grow(c.gradInBuf, n*inSize)
	kernels := c.Kernels()

	for s := 0; s < n; s++ {
		dz := c.dzBuf[s*outSize : (s+1)*outSize]
		if c.useBias {
			for o := range c.gradBiases {
				for _, v := range dz[o*plane : (o+1)*plane] {
					c.gradBiases[o] += v
				}
			}
		}
		g, err := tensor.FromSlice(dz, c.outChannels, c.outputHeight, c.outputWidth)
		if err != nil {
			panic(err)
		}
		gx, gk, err := c.engine.Backward(c.sample(s), kernels, g, c.options())
		if err != nil {
			panic(fmt.Sprintf("Conv2D: %v", err))
		}
		for i, v := range gk.Data() {
			c.gradWeights[i] += v
		}
		copy(c.gradInBuf[s*inSize:(s+1)*inSize], gx.Data())
	}
	return c.gradInBuf
}

// Params returns the kernels followed by the biases.
func (c *Conv2D) Params() []float64 { return c.params }

// SetParams copies params into the layer.
func (c *Conv2D) SetParams(params []float64) { copy(c.params, params) }

// Gradients returns the accumulated gradients.
func (c *Conv2D) Gradients() []float64 { return c.grads }

// ClearGradients zeroes out the accumulated gradients.
func (c *Conv2D) ClearGradients() {
	for i := range c.grads {
		c.grads[i] = 0
	}
}

// InSize returns C_in * H * W.
func (c *Conv2D) InSize() int {
	return c.inChannels * c.inputHeight * c.inputWidth
}

// OutSize returns C_out * H_out * W_out.
func (c *Conv2D) OutSize() int {
	return c.outChannels * c.outputHeight * c.outputWidth
}

// OutChannels returns the number of output feature maps.
func (c *Conv2D) OutChannels() int { return c.outChannels }
