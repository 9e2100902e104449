package net

import (
	"bytes"
	"encoding/gob"
	"path/filepath"
	"strings"
	"testing"

	"github.com/FlavioCFOliveira/GoACNN/internal/activations"
	"github.com/FlavioCFOliveira/GoACNN/internal/layer"
	"github.com/FlavioCFOliveira/GoACNN/internal/loss"
	"github.com/FlavioCFOliveira/GoACNN/internal/opt"
	"github.com/FlavioCFOliveira/GoACNN/internal/tensor"
)

func newXORNet() *Network {
	return New(
		layer.NewDense(2, 8, activations.Tanh{}),
		layer.NewDense(8, 2, nil),
		layer.NewLogSoftmax(2),
	)
}

// TestNetworkForward tests forward pass through network.
func TestNetworkForward(t *testing.T) {
	network := newXORNet()
	output := network.Forward([]float64{0, 1, 1, 0, 1, 1})
	if len(output) != 3*2 {
		t.Errorf("Output length = %d, want 6", len(output))
	}
	if network.InSize() != 2 || network.OutSize() != 2 {
		t.Errorf("Sizes = (%d, %d), want (2, 2)", network.InSize(), network.OutSize())
	}
}

// TestNetworkBackward tests backward pass through network.
func TestNetworkBackward(t *testing.T) {
	network := newXORNet()
	network.Forward([]float64{1, 2})
	grad := network.Backward([]float64{0, -1})
	if len(grad) != 2 {
		t.Errorf("Input gradient length = %d, want 2", len(grad))
	}
}

func TestNetworkParamsSetParamsRoundtrip(t *testing.T) {
	network := newXORNet()
	params := network.Params()
	if len(params) != 2*8+8+8*2+2 {
		t.Fatalf("Params length = %d, want 42", len(params))
	}
	if len(network.Gradients()) != len(params) {
		t.Fatalf("Gradients length = %d, want %d", len(network.Gradients()), len(params))
	}
	for i := range params {
		params[i] = float64(i)
	}
	network.SetParams(params)
	if got := network.Layers()[1].Params()[0]; got != 24 {
		t.Errorf("Second layer first param = %v, want 24", got)
	}
}

func TestNetworkXOR(t *testing.T) {
	layer.Seed(1)
	network := newXORNet()
	optimizer := opt.NewAdam(0.05)
	nll := loss.NLLLoss{}

	x, _ := tensor.FromSlice([]float64{0, 0, 0, 1, 1, 0, 1, 1}, 4, 2)
	targets := []int{0, 1, 1, 0}

	var l float64
	for i := 0; i < 1000; i++ {
		network.ClearGradients()
		out, _ := tensor.FromSlice(network.Forward(x.Data()), 4, 2)
		l, _ = nll.Forward(out, targets)
		grad, _ := nll.Backward(out, targets)
		network.Backward(grad.Data())
		Step(network, optimizer)
	}
	if l > 0.1 {
		t.Errorf("XOR loss after training = %v, want < 0.1", l)
	}

	out, _ := tensor.FromSlice(network.Forward(x.Data()), 4, 2)
	if c := loss.Correct(out, targets); c != 4 {
		t.Errorf("XOR correct = %d, want 4", c)
	}
}

func TestNetworkSetTraining(t *testing.T) {
	bn := layer.NewBatchNorm2D(1, 1, 1)
	network := New(bn)
	network.SetTraining(false)
	network.Forward([]float64{10})
	mean, _ := bn.RunningStats()
	if mean[0] != 0 {
		t.Errorf("Running mean = %v, want 0 in eval mode", mean[0])
	}
}

func TestNetworkSummary(t *testing.T) {
	var buf bytes.Buffer
	newXORNet().Summary(&buf, "xor")
	out := buf.String()
	for _, want := range []string{"Model: xor", "Dense_0", "LogSoftmax_2", "Total params: 42"} {
		if !strings.Contains(out, want) {
			t.Errorf("Summary missing %q:\n%s", want, out)
		}
	}
}

func TestSaveLoadParams(t *testing.T) {
	src := newXORNet()
	path := filepath.Join(t.TempDir(), "xor.gob")
	if err := SaveParams(path, src); err != nil {
		t.Fatal(err)
	}

	dst := newXORNet()
	dst.SetParams(make([]float64, len(dst.Params())))
	if err := LoadParams(path, dst); err != nil {
		t.Fatal(err)
	}
	want, got := src.Params(), dst.Params()
	for i := range want {
		if want[i] != got[i] {
			t.Fatalf("param %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestLoadParamsCountMismatch(t *testing.T) {
	var buf bytes.Buffer
	if err := EncodeParams(&buf, newXORNet()); err != nil {
		t.Fatal(err)
	}
	other := New(layer.NewDense(2, 3, nil))
	if err := DecodeParams(&buf, other); err == nil {
		t.Error("expected an error for a parameter count mismatch")
	}
	if err := LoadParams(filepath.Join(t.TempDir(), "missing.gob"), other); err == nil {
		t.Error("expected an error for a missing file")
	}
}

func newNormNet() *Network {
	return New(
		layer.NewBatchNorm2D(2, 1, 2),
		layer.NewFlatten(4),
		layer.NewDense(4, 2, nil),
	)
}

func TestSaveLoadKeepsState(t *testing.T) {
	src := newNormNet()
	for i := 0; i < 5; i++ {
		src.Forward([]float64{1, 3, 5, 7, float64(i), 2, 4, 8})
	}
	path := filepath.Join(t.TempDir(), "norm.gob")
	if err := SaveParams(path, src); err != nil {
		t.Fatal(err)
	}

	dst := newNormNet()
	if err := LoadParams(path, dst); err != nil {
		t.Fatal(err)
	}
	want, got := src.State(), dst.State()
	if len(want) != 4 || len(got) != 4 {
		t.Fatalf("State lengths = (%d, %d), want 4", len(want), len(got))
	}
	for i := range want {
		if want[i] != got[i] {
			t.Errorf("state %d = %v, want %v", i, got[i], want[i])
		}
	}

	src.SetTraining(false)
	dst.SetTraining(false)
	x := []float64{0.5, -1, 2, 3}
	a := append([]float64(nil), src.Forward(x)...)
	b := dst.Forward(x)
	for i := range a {
		if a[i] != b[i] {
			t.Errorf("eval output %d = %v, want %v", i, b[i], a[i])
		}
	}
}

func TestDecodeVersion1(t *testing.T) {
	src := newNormNet()
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	if err := enc.Encode(paramsHeader{Magic: paramsMagic, Version: 1, Count: len(src.Params())}); err != nil {
		t.Fatal(err)
	}
	if err := enc.Encode(src.Params()); err != nil {
		t.Fatal(err)
	}

	dst := newNormNet()
	dst.SetState([]float64{9, 9, 9, 9})
	if err := DecodeParams(&buf, dst); err != nil {
		t.Fatal(err)
	}
	if got := dst.State(); got[0] != 9 {
		t.Errorf("Version 1 file changed state: %v", got)
	}
}

func TestDecodeStateMismatch(t *testing.T) {
	var buf bytes.Buffer
	if err := EncodeParams(&buf, newNormNet()); err != nil {
		t.Fatal(err)
	}
	// 14 parameters like newNormNet, but no state
	other := New(layer.NewDense(1, 2, nil), layer.NewDense(4, 2, nil))
	if len(other.Params()) != 14 {
		t.Fatalf("Params length = %d, want 14", len(other.Params()))
	}
	if err := DecodeParams(&buf, other); err == nil {
		t.Error("expected an error for a state count mismatch")
	}
}
