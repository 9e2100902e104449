package model

import (
	"github.com/pkg/errors"

	"github.com/FlavioCFOliveira/GoACNN/internal/activations"
	"github.com/FlavioCFOliveira/GoACNN/internal/dynconv"
	"github.com/FlavioCFOliveira/GoACNN/internal/layer"
	"github.com/FlavioCFOliveira/GoACNN/internal/net"
	"github.com/FlavioCFOliveira/GoACNN/internal/tensor"
)

// ShortcutKind is how a residual block carries its input to the sum.
type ShortcutKind int

const (
	// Identity adds the input unchanged.
	Identity ShortcutKind = iota
	// Projection passes the input through a strided 1x1 conv and batch norm.
	Projection
)

func (k ShortcutKind) String() string {
	if k == Projection {
		return "projection"
	}
	return "identity"
}

// BlockSpec declares one basic residual block.
type BlockSpec struct {
	InChannels  int
	OutChannels int
	Stride      int
	Shortcut    ShortcutKind
}

// SupportedDepths lists the n accepted by ResNetPlan and the resulting
// network depth 6n+2.
var SupportedDepths = map[int]int{3: 20, 5: 32, 7: 44, 9: 56, 11: 110}

// ResNetPlan returns the 3n blocks of a CIFAR ResNet-(6n+2): three stages of
// n blocks at 16, 32 and 64 channels. The first block of the second and
// third stage halves the spatial size and projects its shortcut.
func ResNetPlan(n int) ([]BlockSpec, error) {
	if _, ok := SupportedDepths[n]; !ok {
		return nil, errors.Errorf("resnet: n=%d not supported, only ResNet-20/32/44/56/110 (n in 3,5,7,9,11)", n)
	}
	var plan []BlockSpec
	in := 16
	for stage, out := range []int{16, 32, 64} {
		for b := 0; b < n; b++ {
			spec := BlockSpec{InChannels: in, OutChannels: out, Stride: 1, Shortcut: Identity}
			if stage > 0 && b == 0 {
				spec.Stride = 2
				spec.Shortcut = Projection
			}
			plan = append(plan, spec)
			in = out
		}
	}
	return plan, nil
}

// CifarResNet is the CIFAR-10 residual classifier over 3x32x32 images.
type CifarResNet struct {
	n       int
	plan    []BlockSpec
	network *net.Network
	input   [3]int
	classes int
	batch   int
}

// NewCifarResNet builds ResNet-(6n+2) for 32x32 RGB inputs.
func NewCifarResNet(n int) (*CifarResNet, error) {
	plan, err := ResNetPlan(n)
	if err != nil {
		return nil, err
	}
	return buildResNet(n, plan, 32, 32, 10)
}

func convBN(in, out, k, stride int, padding dynconv.Padding, h, w int) (*layer.Conv2D, *layer.BatchNorm2D, error) {
	conv := layer.NewConv2D(in, out, k, stride, padding, nil).WithoutBias()
	if err := conv.SetInputDimensions(h, w); err != nil {
		return nil, nil, err
	}
	ho, wo := conv.OutputDimensions()
	return conv, layer.NewBatchNorm2D(out, ho, wo), nil
}

func buildResNet(n int, plan []BlockSpec, h, w, classes int) (*CifarResNet, error) {
	input := [3]int{3, h, w}
	conv, bn, err := convBN(3, 16, 3, 1, dynconv.Same, h, w)
	if err != nil {
		return nil, errors.Wrap(err, "resnet stem")
	}
	network := net.New(conv, bn, layer.NewActivation(bn.OutSize(), activations.ReLU{}))

	c := 16
	for i, spec := range plan {
		if spec.InChannels != c {
			return nil, errors.Errorf("resnet block %d reads %d channels, previous block wrote %d", i, spec.InChannels, c)
		}
		conv1, bn1, err := convBN(spec.InChannels, spec.OutChannels, 3, spec.Stride, dynconv.Same, h, w)
		if err != nil {
			return nil, errors.Wrapf(err, "resnet block %d", i)
		}
		ho, wo := conv1.OutputDimensions()
		conv2, bn2, err := convBN(spec.OutChannels, spec.OutChannels, 3, 1, dynconv.Same, ho, wo)
		if err != nil {
			return nil, errors.Wrapf(err, "resnet block %d", i)
		}
		main := []layer.Layer{conv1, bn1, layer.NewActivation(bn1.OutSize(), activations.ReLU{}), conv2, bn2}

		var shortcut []layer.Layer
		switch spec.Shortcut {
		case Projection:
			proj, projBN, err := convBN(spec.InChannels, spec.OutChannels, 1, spec.Stride, dynconv.Valid, h, w)
			if err != nil {
				return nil, errors.Wrapf(err, "resnet block %d shortcut", i)
			}
			if ph, pw := proj.OutputDimensions(); ph != ho || pw != wo {
				return nil, shapeErrorf("resnet", "block %d shortcut yields %dx%d, main path %dx%d", i, ph, pw, ho, wo)
			}
			shortcut = []layer.Layer{proj, projBN}
		case Identity:
			if spec.Stride != 1 || spec.InChannels != spec.OutChannels {
				return nil, errors.Errorf("resnet block %d: identity shortcut cannot change shape", i)
			}
		}
		network.Add(layer.NewResidual(main, shortcut, activations.ReLU{}))
		c, h, w = spec.OutChannels, ho, wo
	}

	network.Add(
		layer.NewGlobalAvgPool2D(c, h, w),
		layer.NewDense(c, classes, nil),
		layer.NewLogSoftmax(classes),
	)
	return &CifarResNet{
		n:       n,
		plan:    plan,
		network: network,
		input:   input,
		classes: classes,
	}, nil
}

// Depth returns the number of weighted layers, 6n+2.
func (r *CifarResNet) Depth() int { return 6*r.n + 2 }

// Plan returns the block plan the network was built from.
func (r *CifarResNet) Plan() []BlockSpec { return r.plan }

// Forward returns (N,classes) log-probabilities.
func (r *CifarResNet) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	n, err := checkInput("resnet", x, r.input)
	if err != nil {
		return nil, err
	}
	out, err := snapshot(r.network.Forward(x.Data()), n, r.classes)
	if err != nil {
		return nil, errors.Wrap(err, "resnet")
	}
	r.batch = n
	return out, nil
}

// Backward propagates grad through the whole network.
func (r *CifarResNet) Backward(grad *tensor.Tensor) error {
	if want := []int{r.batch, r.classes}; r.batch == 0 || !tensor.SameShape(grad.Shape(), want) {
		return shapeErrorf("resnet backward", "gradient %v, want %v", grad.Shape(), want)
	}
	r.network.Backward(grad.Data())
	return nil
}

func (r *CifarResNet) InputShape() [3]int         { return r.input }
func (r *CifarResNet) Classes() int               { return r.classes }
func (r *CifarResNet) Params() []float64          { return r.network.Params() }
func (r *CifarResNet) SetParams(params []float64) { r.network.SetParams(params) }
func (r *CifarResNet) Gradients() []float64       { return r.network.Gradients() }
func (r *CifarResNet) ClearGradients()            { r.network.ClearGradients() }
func (r *CifarResNet) SetTraining(training bool)  { r.network.SetTraining(training) }
func (r *CifarResNet) State() []float64           { return r.network.State() }
func (r *CifarResNet) SetState(state []float64)   { r.network.SetState(state) }

// Network returns the underlying layer stack.
func (r *CifarResNet) Network() *net.Network { return r.network }
