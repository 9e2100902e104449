package layer

import (
	"math"
	"math/rand"
	"testing"

	"github.com/FlavioCFOliveira/GoACNN/internal/activations"
)

func TestFlattenForward(t *testing.T) {
	flatten := NewFlatten(3)

	input := []float64{1, 2, 3, 4, 5, 6}
	output := flatten.Forward(input)

	if len(output) != 6 {
		t.Errorf("Output length = %d, expected 6", len(output))
	}
	for i := 0; i < 6; i++ {
		if output[i] != float64(i+1) {
			t.Errorf("Output[%d] = %f, expected %f", i, output[i], float64(i+1))
		}
	}

	// The output must not alias the input.
	input[0] = 42
	if output[0] != 1 {
		t.Error("Flatten output aliases its input")
	}
}

func TestFlattenBackward(t *testing.T) {
	flatten := NewFlatten(6)
	flatten.Forward([]float64{1, 2, 3, 4, 5, 6})

	grad := []float64{1, 1, 1, 1, 1, 1}
	outputGrad := flatten.Backward(grad)
	for i := 0; i < 6; i++ {
		if outputGrad[i] != grad[i] {
			t.Errorf("Grad[%d] = %f, expected %f", i, outputGrad[i], grad[i])
		}
	}
}

func TestActivationLayer(t *testing.T) {
	a := NewActivation(2, activations.ReLU{})
	out := a.Forward([]float64{-1, 2, 3, -4})
	expected := []float64{0, 2, 3, 0}
	for i := range expected {
		if out[i] != expected[i] {
			t.Errorf("Output[%d] = %f, expected %f", i, out[i], expected[i])
		}
	}
	grad := a.Backward([]float64{1, 1, 1, 1})
	expected = []float64{0, 1, 1, 0}
	for i := range expected {
		if grad[i] != expected[i] {
			t.Errorf("Grad[%d] = %f, expected %f", i, grad[i], expected[i])
		}
	}
}

func TestLogSoftmaxRowsAreLogProbabilities(t *testing.T) {
	l := NewLogSoftmax(3)
	out := l.Forward([]float64{1, 2, 3, 1000, 1000, 1000})
	for r := 0; r < 2; r++ {
		sum := 0.0
		for _, v := range out[r*3 : (r+1)*3] {
			if math.IsNaN(v) || v > 0 {
				t.Fatalf("Row %d has invalid log-probability %f", r, v)
			}
			sum += math.Exp(v)
		}
		if math.Abs(sum-1) > 1e-12 {
			t.Errorf("Row %d probabilities sum to %f", r, sum)
		}
	}
	if math.Abs(out[3]-math.Log(1.0/3)) > 1e-12 {
		t.Errorf("Uniform row = %f, expected %f", out[3], math.Log(1.0/3))
	}
}

func TestLogSoftmaxGradientCheck(t *testing.T) {
	rng := rand.New(rand.NewSource(8))
	checkGradients(t, NewLogSoftmax(5), randSlice(rng, 3*5), 1e-6)
}
