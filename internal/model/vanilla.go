package model

import (
	"fmt"
	"io"

	"github.com/pkg/errors"

	"github.com/FlavioCFOliveira/GoACNN/internal/activations"
	"github.com/FlavioCFOliveira/GoACNN/internal/dynconv"
	"github.com/FlavioCFOliveira/GoACNN/internal/layer"
	"github.com/FlavioCFOliveira/GoACNN/internal/net"
	"github.com/FlavioCFOliveira/GoACNN/internal/tensor"
)

// VanillaConfig describes a dual-branch classifier. Channel lists start
// with the input channel count, so a branch has len(channels)-1 conv layers.
type VanillaConfig struct {
	InputHeight int `yaml:"input_height"`
	InputWidth  int `yaml:"input_width"`

	FeatureChannels []int `yaml:"feature_channels"`
	FeatureKernels  []int `yaml:"feature_kernels"`
	FeatureStrides  []int `yaml:"feature_strides"`

	FilterChannels []int `yaml:"filter_channels"`
	FilterKernels  []int `yaml:"filter_kernels"`
	FilterStrides  []int `yaml:"filter_strides"`

	// FCUnits starts with the flattened size of the dynamic convolution
	// output and ends with the number of classes.
	FCUnits []int `yaml:"fc_units"`

	// Activation names the activation of every branch convolution. Empty
	// means relu.
	Activation string `yaml:"activation,omitempty"`
}

// DefaultVanillaConfig returns the MNIST configuration: 28x28 inputs, a
// 1-16-32 features branch, a strided 1-16-64 filters branch yielding two
// 32-channel 4x4 kernels per sample, and a 578-128-10 classifier.
func DefaultVanillaConfig() VanillaConfig {
	return VanillaConfig{
		InputHeight:     28,
		InputWidth:      28,
		FeatureChannels: []int{1, 16, 32},
		FeatureKernels:  []int{5, 5},
		FeatureStrides:  []int{1, 1},
		FilterChannels:  []int{1, 16, 64},
		FilterKernels:   []int{5, 5},
		FilterStrides:   []int{2, 2},
		FCUnits:         []int{578, 128, 10},
		Activation:      "relu",
	}
}

// BranchActivation resolves Activation.
func (c VanillaConfig) BranchActivation() (activations.Activation, error) {
	if c.Activation == "" {
		return activations.ReLU{}, nil
	}
	return activations.ByName(c.Activation)
}

func validateBranch(name string, channels, kernels, strides []int) error {
	if len(channels) < 2 {
		return errors.Errorf("%s branch needs at least one layer", name)
	}
	if len(kernels) != len(channels)-1 || len(strides) != len(channels)-1 {
		return errors.Errorf("%s branch: %d channel transitions but %d kernels and %d strides",
			name, len(channels)-1, len(kernels), len(strides))
	}
	return nil
}

// Validate checks list lengths. Shape compatibility is checked by
// NewVanillaACNN.
func (c VanillaConfig) Validate() error {
	if c.InputHeight < 1 || c.InputWidth < 1 {
		return errors.Errorf("input size %dx%d", c.InputHeight, c.InputWidth)
	}
	if err := validateBranch("features", c.FeatureChannels, c.FeatureKernels, c.FeatureStrides); err != nil {
		return err
	}
	if err := validateBranch("filters", c.FilterChannels, c.FilterKernels, c.FilterStrides); err != nil {
		return err
	}
	if c.FeatureChannels[0] != c.FilterChannels[0] {
		return errors.Errorf("branches read %d and %d input channels", c.FeatureChannels[0], c.FilterChannels[0])
	}
	if len(c.FCUnits) < 2 {
		return errors.New("fc_units needs an input and an output size")
	}
	_, err := c.BranchActivation()
	return err
}

// buildBranch stacks valid Conv2D layers and returns the output shape.
func buildBranch(channels, kernels, strides []int, act activations.Activation, h, w int) (*net.Network, [3]int, error) {
	branch := net.New()
	for i := 0; i < len(channels)-1; i++ {
		conv := layer.NewConv2D(channels[i], channels[i+1], kernels[i], strides[i], dynconv.Valid, act)
		if err := conv.SetInputDimensions(h, w); err != nil {
			return nil, [3]int{}, errors.Wrapf(err, "layer %d", i)
		}
		h, w = conv.OutputDimensions()
		branch.Add(conv)
	}
	return branch, [3]int{channels[len(channels)-1], h, w}, nil
}

// VanillaACNN is the dual-branch classifier. The features branch produces
// feature maps, the filters branch produces per-sample kernels, and the
// dynamic convolution of the two feeds batch norm and a dense classifier.
type VanillaACNN struct {
	cfg    VanillaConfig
	act    activations.Activation
	engine *dynconv.Engine
	opts   dynconv.Options

	features *net.Network
	filters  *net.Network
	stage    *net.Network // BatchNorm2D + ReLU over the dynamic conv output
	head     *net.Network
	all      *net.Network

	featShape [3]int
	filtShape [3]int
	convShape [3]int

	lastF *tensor.Tensor
	lastK *tensor.Tensor
	batch int
}

// NewVanillaACNN builds the classifier, checking every shape up front so
// Forward can only fail on a badly shaped input.
func NewVanillaACNN(cfg VanillaConfig) (*VanillaACNN, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "vanilla acnn")
	}
	m := &VanillaACNN{
		cfg:    cfg,
		engine: dynconv.NewEngine(nil),
		opts:   dynconv.Options{Stride: 1, Padding: dynconv.Valid},
	}

	var err error
	if m.act, err = cfg.BranchActivation(); err != nil {
		return nil, errors.Wrap(err, "vanilla acnn")
	}
	m.features, m.featShape, err = buildBranch(cfg.FeatureChannels, cfg.FeatureKernels, cfg.FeatureStrides, m.act, cfg.InputHeight, cfg.InputWidth)
	if err != nil {
		return nil, errors.Wrap(err, "features branch")
	}
	m.filters, m.filtShape, err = buildBranch(cfg.FilterChannels, cfg.FilterKernels, cfg.FilterStrides, m.act, cfg.InputHeight, cfg.InputWidth)
	if err != nil {
		return nil, errors.Wrap(err, "filters branch")
	}

	cf, ck := m.featShape[0], m.filtShape[0]
	if ck%cf != 0 {
		return nil, shapeErrorf("vanilla acnn", "filter channels %d not divisible by feature channels %d", ck, cf)
	}
	ho, wo, err := dynconv.OutputSize(m.featShape[1], m.featShape[2], m.filtShape[1], m.filtShape[2], 1, dynconv.Valid)
	if err != nil {
		return nil, errors.Wrap(err, "dynamic convolution")
	}
	m.convShape = [3]int{ck / cf, ho, wo}
	flat := m.convShape[0] * ho * wo
	if cfg.FCUnits[0] != flat {
		return nil, shapeErrorf("vanilla acnn", "fc_units[0] is %d but the dynamic convolution yields %d values", cfg.FCUnits[0], flat)
	}

	m.stage = net.New(
		layer.NewBatchNorm2D(m.convShape[0], ho, wo),
		layer.NewActivation(flat, activations.ReLU{}),
	)

	m.head = net.New(layer.NewFlatten(flat))
	last := len(cfg.FCUnits) - 2
	for i := 0; i <= last; i++ {
		var act activations.Activation = activations.ReLU{}
		if i == last {
			act = nil
		}
		m.head.Add(layer.NewDense(cfg.FCUnits[i], cfg.FCUnits[i+1], act))
	}
	m.head.Add(layer.NewLogSoftmax(cfg.FCUnits[len(cfg.FCUnits)-1]))

	m.all = net.New(m.features, m.filters, m.stage, m.head)
	return m, nil
}

// Config returns the configuration the model was built from.
func (m *VanillaACNN) Config() VanillaConfig { return m.cfg }

// SetDevice selects the device for every convolution in the model.
func (m *VanillaACNN) SetDevice(device dynconv.Device) {
	m.engine = dynconv.NewEngine(device)
	for _, branch := range []*net.Network{m.features, m.filters} {
		for _, l := range branch.Layers() {
			l.(*layer.Conv2D).SetDevice(device)
		}
	}
}

// ForwardWithMaps returns the log-probabilities together with the features
// and filters branch outputs.
func (m *VanillaACNN) ForwardWithMaps(x *tensor.Tensor) (*tensor.Tensor, map[string]*tensor.Tensor, error) {
	n, err := checkInput("vanilla acnn", x, m.InputShape())
	if err != nil {
		return nil, nil, err
	}

	f, err := snapshot(m.features.Forward(x.Data()), n, m.featShape[0], m.featShape[1], m.featShape[2])
	if err != nil {
		return nil, nil, errors.Wrap(err, "features branch")
	}
	k, err := snapshot(m.filters.Forward(x.Data()), n, m.filtShape[0], m.filtShape[1], m.filtShape[2])
	if err != nil {
		return nil, nil, errors.Wrap(err, "filters branch")
	}
	conv, err := DynamicConvolve(m.engine, f, k, m.opts)
	if err != nil {
		return nil, nil, err
	}

	out := m.head.Forward(m.stage.Forward(conv.Data()))
	logProbs, err := snapshot(out, n, m.Classes())
	if err != nil {
		return nil, nil, errors.Wrap(err, "classifier")
	}
	m.lastF, m.lastK, m.batch = f, k, n
	return logProbs, map[string]*tensor.Tensor{FeaturesKey: f, FiltersKey: k}, nil
}

// Forward returns (N,classes) log-probabilities.
func (m *VanillaACNN) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	out, _, err := m.ForwardWithMaps(x)
	return out, err
}

// Extract returns the features and filters branch outputs for x.
func (m *VanillaACNN) Extract(x *tensor.Tensor) (map[string]*tensor.Tensor, error) {
	_, maps, err := m.ForwardWithMaps(x)
	return maps, err
}

// Backward propagates grad through the classifier, the dynamic convolution
// and both branches.
func (m *VanillaACNN) Backward(grad *tensor.Tensor) error {
	if m.lastF == nil {
		return errors.New("vanilla acnn: backward before forward")
	}
	if want := []int{m.batch, m.Classes()}; !tensor.SameShape(grad.Shape(), want) {
		return shapeErrorf("vanilla acnn backward", "gradient %v, want %v", grad.Shape(), want)
	}

	g := m.stage.Backward(m.head.Backward(grad.Data()))
	gConv, err := tensor.FromSlice(g, m.batch, m.convShape[0], m.convShape[1], m.convShape[2])
	if err != nil {
		return errors.Wrap(err, "vanilla acnn backward")
	}
	gF, gK, err := DynamicConvolveBackward(m.engine, m.lastF, m.lastK, gConv, m.opts)
	if err != nil {
		return err
	}
	m.features.Backward(gF.Data())
	m.filters.Backward(gK.Data())
	return nil
}

// InputShape returns the per-sample (C,H,W).
func (m *VanillaACNN) InputShape() [3]int {
	return [3]int{m.cfg.FeatureChannels[0], m.cfg.InputHeight, m.cfg.InputWidth}
}

// Classes returns the number of output classes.
func (m *VanillaACNN) Classes() int { return m.cfg.FCUnits[len(m.cfg.FCUnits)-1] }

// ConvOutputShape returns the per-sample shape of the dynamic convolution.
func (m *VanillaACNN) ConvOutputShape() [3]int { return m.convShape }

func (m *VanillaACNN) Params() []float64          { return m.all.Params() }
func (m *VanillaACNN) SetParams(params []float64) { m.all.SetParams(params) }
func (m *VanillaACNN) Gradients() []float64       { return m.all.Gradients() }
func (m *VanillaACNN) ClearGradients()            { m.all.ClearGradients() }
func (m *VanillaACNN) SetTraining(training bool)  { m.all.SetTraining(training) }
func (m *VanillaACNN) State() []float64           { return m.all.State() }
func (m *VanillaACNN) SetState(state []float64)   { m.all.SetState(state) }

// Summary writes a per-part layer table.
func (m *VanillaACNN) Summary(w io.Writer) {
	fmt.Fprintf(w, "Branch activation: %s\n", activations.Name(m.act))
	m.features.Summary(w, "features branch")
	m.filters.Summary(w, "filters branch")
	m.stage.Summary(w, "batch norm")
	m.head.Summary(w, "classifier")
}
