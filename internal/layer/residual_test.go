package layer

import (
	"math/rand"
	"testing"

	"github.com/FlavioCFOliveira/GoACNN/internal/activations"
	"github.com/FlavioCFOliveira/GoACNN/internal/dynconv"
)

func TestResidualIdentityShortcut(t *testing.T) {
	d := NewDense(2, 2, nil)
	d.SetParams([]float64{0, 0, 0, 0, 1, -1})
	r := NewResidual([]Layer{d}, nil, nil)

	out := r.Forward([]float64{3, 4})
	if out[0] != 4 || out[1] != 3 {
		t.Errorf("Output = %v, expected [4 3]", out)
	}
	grad := r.Backward([]float64{1, 1})
	// dense weights are zero, so only the shortcut contributes
	if grad[0] != 1 || grad[1] != 1 {
		t.Errorf("Input gradient = %v, expected [1 1]", grad)
	}
}

func TestResidualParamsRoundTrip(t *testing.T) {
	main := []Layer{NewDense(3, 3, nil), NewDense(3, 3, nil)}
	r := NewResidual(main, []Layer{NewDense(3, 3, nil)}, activations.ReLU{})
	if len(r.Params()) != 3*12 {
		t.Fatalf("Params length = %d, expected 36", len(r.Params()))
	}
	p := make([]float64, 36)
	for i := range p {
		p[i] = float64(i)
	}
	r.SetParams(p)
	if got := main[1].Params()[0]; got != 12 {
		t.Errorf("Second layer first param = %f, expected 12", got)
	}
}

func TestResidualGradientCheck(t *testing.T) {
	rng := rand.New(rand.NewSource(10))
	conv1 := NewConv2D(2, 3, 3, 1, dynconv.Same, activations.Tanh{})
	conv2 := NewConv2D(3, 3, 3, 1, dynconv.Same, nil)
	proj := NewConv2D(2, 3, 1, 1, dynconv.Valid, nil)
	for _, c := range []*Conv2D{conv1, conv2, proj} {
		if err := c.SetInputDimensions(4, 4); err != nil {
			t.Fatal(err)
		}
	}
	r := NewResidual([]Layer{conv1, conv2}, []Layer{proj}, activations.Tanh{})
	checkGradients(t, r, randSlice(rng, 2*r.InSize()), 1e-5)
}

func TestResidualPropagatesTraining(t *testing.T) {
	bn := NewBatchNorm2D(1, 1, 1)
	r := NewResidual([]Layer{bn}, nil, nil)
	r.SetTraining(false)
	r.Forward([]float64{5})
	mean, _ := bn.RunningStats()
	if mean[0] != 0 {
		t.Error("BatchNorm2D still in training mode")
	}
}

func TestResidualState(t *testing.T) {
	bn1, bn2 := NewBatchNorm2D(1, 1, 2), NewBatchNorm2D(1, 1, 2)
	r := NewResidual([]Layer{NewDense(2, 2, nil), bn1}, []Layer{bn2}, nil)
	if len(r.State()) != 4 {
		t.Fatalf("State length = %d, expected 4", len(r.State()))
	}
	r.SetState([]float64{1, 2, 3, 4})
	if m, v := bn1.RunningStats(); m[0] != 1 || v[0] != 2 {
		t.Errorf("Main stats = (%v, %v), expected (1, 2)", m[0], v[0])
	}
	if m, v := bn2.RunningStats(); m[0] != 3 || v[0] != 4 {
		t.Errorf("Shortcut stats = (%v, %v), expected (3, 4)", m[0], v[0])
	}
}
