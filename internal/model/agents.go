package model

import (
	"github.com/pkg/errors"

	"github.com/FlavioCFOliveira/GoACNN/internal/activations"
	"github.com/FlavioCFOliveira/GoACNN/internal/dynconv"
	"github.com/FlavioCFOliveira/GoACNN/internal/layer"
	"github.com/FlavioCFOliveira/GoACNN/internal/net"
	"github.com/FlavioCFOliveira/GoACNN/internal/tensor"
)

// ParallelNetsConfig describes two "same"-padded conv branches over one
// input and a bias-free junction convolution over the features branch.
// JunctionPadding is the number of zeros added on every side of the
// features maps before the junction.
type ParallelNetsConfig struct {
	InputHeight      int
	InputWidth       int
	FeatureChannels  []int
	FilterChannels   []int
	KernelSize       int
	JunctionChannels int
	JunctionPadding  int
}

// DefaultParallelNetsConfig returns the MNIST layout: 5x5 kernels, a
// 1-10-20 features branch, a 1-10-20-30 filters branch and 30 junction maps
// of 5x5.
func DefaultParallelNetsConfig() ParallelNetsConfig {
	return ParallelNetsConfig{
		InputHeight:      28,
		InputWidth:       28,
		FeatureChannels:  []int{1, 10, 20},
		FilterChannels:   []int{1, 10, 20, 30},
		KernelSize:       5,
		JunctionChannels: 30,
		JunctionPadding:  2,
	}
}

// ParallelNets runs both branches over the same batch. It is a feature
// extractor, not a classifier: Extract is its only forward entry point.
type ParallelNets struct {
	cfg      ParallelNetsConfig
	features *net.Network
	filters  *net.Network
	junction *layer.Conv2D
	all      *net.Network

	featShape [3]int
	filtShape [3]int
	juncShape [3]int
}

func sameBranch(channels []int, k, h, w int) (*net.Network, [3]int, error) {
	branch := net.New()
	for i := 0; i < len(channels)-1; i++ {
		conv := layer.NewConv2D(channels[i], channels[i+1], k, 1, dynconv.Same, activations.ReLU{})
		if err := conv.SetInputDimensions(h, w); err != nil {
			return nil, [3]int{}, errors.Wrapf(err, "layer %d", i)
		}
		h, w = conv.OutputDimensions()
		branch.Add(conv)
	}
	return branch, [3]int{channels[len(channels)-1], h, w}, nil
}

// NewParallelNets builds the extractor. The junction kernel spans the whole
// feature map, so each junction map is (2*JunctionPadding+1) square.
func NewParallelNets(cfg ParallelNetsConfig) (*ParallelNets, error) {
	if len(cfg.FeatureChannels) < 2 || len(cfg.FilterChannels) < 2 {
		return nil, errors.New("parallel nets: each branch needs at least one layer")
	}
	if cfg.FeatureChannels[0] != cfg.FilterChannels[0] {
		return nil, errors.Errorf("parallel nets: branches read %d and %d input channels", cfg.FeatureChannels[0], cfg.FilterChannels[0])
	}
	if cfg.KernelSize < 1 || cfg.JunctionChannels < 1 || cfg.JunctionPadding < 0 {
		return nil, errors.Errorf("parallel nets: kernel size %d, junction channels %d, junction padding %d",
			cfg.KernelSize, cfg.JunctionChannels, cfg.JunctionPadding)
	}
	p := &ParallelNets{cfg: cfg}

	var err error
	if p.features, p.featShape, err = sameBranch(cfg.FeatureChannels, cfg.KernelSize, cfg.InputHeight, cfg.InputWidth); err != nil {
		return nil, errors.Wrap(err, "features branch")
	}
	if p.filters, p.filtShape, err = sameBranch(cfg.FilterChannels, cfg.KernelSize, cfg.InputHeight, cfg.InputWidth); err != nil {
		return nil, errors.Wrap(err, "filters branch")
	}
	if p.featShape[1] != p.featShape[2] {
		return nil, shapeErrorf("parallel nets", "junction needs square feature maps, got %dx%d", p.featShape[1], p.featShape[2])
	}

	p.junction = layer.NewConv2D(p.featShape[0], cfg.JunctionChannels, p.featShape[1], 1, dynconv.Fixed(cfg.JunctionPadding), nil).WithoutBias()
	if err := p.junction.SetInputDimensions(p.featShape[1], p.featShape[2]); err != nil {
		return nil, errors.Wrap(err, "junction")
	}
	jh, jw := p.junction.OutputDimensions()
	p.juncShape = [3]int{cfg.JunctionChannels, jh, jw}
	p.all = net.New(p.features, p.filters, p.junction)
	return p, nil
}

// Extract returns the features branch output, the filters branch output and
// the junction maps for x.
func (p *ParallelNets) Extract(x *tensor.Tensor) (map[string]*tensor.Tensor, error) {
	in := [3]int{p.cfg.FeatureChannels[0], p.cfg.InputHeight, p.cfg.InputWidth}
	n, err := checkInput("parallel nets", x, in)
	if err != nil {
		return nil, err
	}
	f, err := snapshot(p.features.Forward(x.Data()), n, p.featShape[0], p.featShape[1], p.featShape[2])
	if err != nil {
		return nil, errors.Wrap(err, "features branch")
	}
	k, err := snapshot(p.filters.Forward(x.Data()), n, p.filtShape[0], p.filtShape[1], p.filtShape[2])
	if err != nil {
		return nil, errors.Wrap(err, "filters branch")
	}
	j, err := snapshot(p.junction.Forward(f.Data()), n, p.juncShape[0], p.juncShape[1], p.juncShape[2])
	if err != nil {
		return nil, errors.Wrap(err, "junction")
	}
	return map[string]*tensor.Tensor{FeaturesKey: f, FiltersKey: k, JunctionKey: j}, nil
}

func (p *ParallelNets) Params() []float64          { return p.all.Params() }
func (p *ParallelNets) SetParams(params []float64) { p.all.SetParams(params) }
func (p *ParallelNets) Gradients() []float64       { return p.all.Gradients() }
func (p *ParallelNets) ClearGradients()            { p.all.ClearGradients() }
func (p *ParallelNets) SetTraining(training bool)  { p.all.SetTraining(training) }
func (p *ParallelNets) State() []float64           { return p.all.State() }
func (p *ParallelNets) SetState(state []float64)   { p.all.SetState(state) }
