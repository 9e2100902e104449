// Package acnn is the public entry point: the dynamic convolution engine,
// its error kinds and the classifiers built on it.
package acnn

import (
	"github.com/FlavioCFOliveira/GoACNN/internal/activations"
	"github.com/FlavioCFOliveira/GoACNN/internal/data"
	"github.com/FlavioCFOliveira/GoACNN/internal/dynconv"
	"github.com/FlavioCFOliveira/GoACNN/internal/layer"
	"github.com/FlavioCFOliveira/GoACNN/internal/model"
	"github.com/FlavioCFOliveira/GoACNN/internal/net"
	"github.com/FlavioCFOliveira/GoACNN/internal/opt"
	"github.com/FlavioCFOliveira/GoACNN/internal/tensor"
	"github.com/FlavioCFOliveira/GoACNN/internal/train"
)

// Re-export common types for easier access
type (
	Tensor     = tensor.Tensor
	Options    = dynconv.Options
	Padding    = dynconv.Padding
	Device     = dynconv.Device
	Engine     = dynconv.Engine
	Activation = activations.Activation
	Model      = model.Model
	Optimizer  = opt.Optimizer
	Dataset    = data.Dataset
	Callback   = train.Callback

	ShapeError         = dynconv.ShapeError
	ConfigurationError = dynconv.ConfigurationError

	VanillaConfig      = model.VanillaConfig
	ParallelNetsConfig = model.ParallelNetsConfig
)

// Padding modes
const (
	Valid = dynconv.Valid
	Same  = dynconv.Same
)

// ErrDeviceUnavailable is returned when a convolution's device cannot run.
var ErrDeviceUnavailable = dynconv.ErrDeviceUnavailable

// Tensors
func NewTensor(shape ...int) *Tensor {
	return tensor.New(shape...)
}

func FromSlice(values []float64, shape ...int) (*Tensor, error) {
	return tensor.FromSlice(values, shape...)
}

// Convolve convolves x (C,H,W) with kernels (C_out,C,h,w) on the default
// device.
func Convolve(x, kernels *Tensor, opts Options) (*Tensor, error) {
	return dynconv.Convolve(x, kernels, opts)
}

// ConvolveBackward returns the gradients of Convolve for an output gradient.
func ConvolveBackward(x, kernels, grad *Tensor, opts Options) (gradX, gradK *Tensor, err error) {
	return dynconv.Backward(x, kernels, grad, opts)
}

// DynamicConvolve convolves each sample's features with that sample's own
// generated kernels.
func DynamicConvolve(features, filters *Tensor, opts Options) (*Tensor, error) {
	return model.DynamicConvolve(dynconv.NewEngine(nil), features, filters, opts)
}

func ParsePadding(s string) (Padding, error) { return dynconv.ParsePadding(s) }
func Fixed(n int) Padding                    { return dynconv.Fixed(n) }
func IsShapeError(err error) bool            { return dynconv.IsShapeError(err) }
func IsConfigurationError(err error) bool    { return dynconv.IsConfigurationError(err) }
func GetDefaultDevice() Device               { return dynconv.GetDefaultDevice() }

// Activations
var (
	ReLU    = activations.ReLU{}
	Sigmoid = activations.Sigmoid{}
	Tanh    = activations.Tanh{}
	Linear  = activations.Linear{}
)

func LeakyReLU(alpha float64) Activation {
	return activations.NewLeakyReLU(alpha)
}

// Models
func DefaultVanillaConfig() VanillaConfig {
	return model.DefaultVanillaConfig()
}

func NewVanillaACNN(cfg VanillaConfig) (*model.VanillaACNN, error) {
	return model.NewVanillaACNN(cfg)
}

func DefaultParallelNetsConfig() ParallelNetsConfig {
	return model.DefaultParallelNetsConfig()
}

func NewParallelNets(cfg ParallelNetsConfig) (*model.ParallelNets, error) {
	return model.NewParallelNets(cfg)
}

// NewCifarResNet builds ResNet-(6n+2) for n in 3, 5, 7, 9 or 11.
func NewCifarResNet(n int) (*model.CifarResNet, error) {
	return model.NewCifarResNet(n)
}

// Optimizers
func SGD(lr, momentum float64) Optimizer {
	return &opt.SGD{LearningRate: lr, Momentum: momentum}
}

func Adam(lr float64) Optimizer {
	return opt.NewAdam(lr)
}

// Training
func NewTrainer(m Model, o Optimizer, callbacks ...Callback) *train.Trainer {
	return train.New(m, o, nil, callbacks...)
}

func NewLoader(ds *Dataset, batchSize int, shuffle bool, seed int64) *data.Loader {
	return data.NewLoader(ds, batchSize, shuffle, seed)
}

// Seed resets the weight initialization source.
func Seed(seed int64) {
	layer.Seed(seed)
}

// Model Persistence
func SaveParams(filename string, p net.Parametric) error {
	return net.SaveParams(filename, p)
}

func LoadParams(filename string, p net.Parametric) error {
	return net.LoadParams(filename, p)
}
