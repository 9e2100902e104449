package opt

import (
	"math"
	"testing"
)

// TestSGDStep tests SGD step computation.
func TestSGDStep(t *testing.T) {
	sgd := &SGD{LearningRate: 0.1}

	params := []float64{1.0, 2.0, 3.0}
	gradients := []float64{0.1, 0.2, 0.3}

	updated := sgd.Step(params, gradients)

	// Expected: params - lr * gradients
	expected := []float64{0.99, 1.98, 2.97}
	for i := range updated {
		if math.Abs(updated[i]-expected[i]) > 1e-10 {
			t.Errorf("updated[%d] = %v, want %v", i, updated[i], expected[i])
		}
	}
	if params[0] != 1.0 {
		t.Errorf("Step modified its input: params[0] = %v", params[0])
	}
}

// TestSGDStepInPlace tests in-place SGD update.
func TestSGDStepInPlace(t *testing.T) {
	sgd := &SGD{LearningRate: 0.1}

	params := []float64{1.0, 2.0, 3.0}
	gradients := []float64{0.1, 0.2, 0.3}

	sgd.StepInPlace(params, gradients)

	expected := []float64{0.99, 1.98, 2.97}
	for i := range params {
		if math.Abs(params[i]-expected[i]) > 1e-10 {
			t.Errorf("params[%d] = %v, want %v", i, params[i], expected[i])
		}
	}
}

func TestSGDMomentum(t *testing.T) {
	sgd := &SGD{LearningRate: 0.1, Momentum: 0.9}
	params := []float64{0}
	grad := []float64{1}

	sgd.StepInPlace(params, grad) // v = 1
	sgd.StepInPlace(params, grad) // v = 1.9

	if math.Abs(params[0]-(-0.29)) > 1e-12 {
		t.Errorf("params[0] = %v, want -0.29", params[0])
	}
}

func TestSGDWeightDecay(t *testing.T) {
	sgd := &SGD{LearningRate: 0.5, WeightDecay: 0.1}
	params := []float64{2}
	sgd.StepInPlace(params, []float64{0})

	// p - lr * wd * p = 2 - 0.5*0.2
	if math.Abs(params[0]-1.9) > 1e-12 {
		t.Errorf("params[0] = %v, want 1.9", params[0])
	}
}

func TestAdamFirstStepIsLearningRate(t *testing.T) {
	adam := NewAdam(0.01)
	params := []float64{1, 1}
	adam.StepInPlace(params, []float64{5, -0.001})

	// After bias correction the first step has magnitude ~lr regardless of
	// the gradient scale.
	if math.Abs(params[0]-0.99) > 1e-6 {
		t.Errorf("params[0] = %v, want 0.99", params[0])
	}
	if math.Abs(params[1]-1.01) > 1e-4 {
		t.Errorf("params[1] = %v, want 1.01", params[1])
	}
}

func TestAdamMinimizesQuadratic(t *testing.T) {
	adam := NewAdam(0.1)
	params := []float64{3, -2}
	for i := 0; i < 500; i++ {
		// d/dp (p^2) = 2p
		grads := []float64{2 * params[0], 2 * params[1]}
		adam.StepInPlace(params, grads)
	}
	for i, p := range params {
		if math.Abs(p) > 0.05 {
			t.Errorf("params[%d] = %v, want ~0", i, p)
		}
	}
}

func TestStepLR(t *testing.T) {
	sgd := &SGD{LearningRate: 1}
	s := NewStepLR(sgd, 2, 0.1)

	s.Step()
	if s.LR() != 1 {
		t.Errorf("LR after 1 epoch = %v, want 1", s.LR())
	}
	s.Step()
	if math.Abs(s.LR()-0.1) > 1e-12 {
		t.Errorf("LR after 2 epochs = %v, want 0.1", s.LR())
	}
	s.Step()
	s.Step()
	if math.Abs(sgd.LearningRate-0.01) > 1e-12 {
		t.Errorf("LR after 4 epochs = %v, want 0.01", sgd.LearningRate)
	}
}

func TestExponentialLR(t *testing.T) {
	adam := NewAdam(1)
	s := NewExponentialLR(adam, 0.5)
	s.Step()
	s.Step()
	if adam.LR() != 0.25 {
		t.Errorf("LR = %v, want 0.25", adam.LR())
	}
}

func TestReduceLROnPlateau(t *testing.T) {
	sgd := &SGD{LearningRate: 1}
	s := NewReduceLROnPlateau(sgd, 0.5, 2, 0, 0.3)

	s.StepWithLoss(1.0)
	s.StepWithLoss(1.0)
	if sgd.LR() != 1 {
		t.Errorf("LR reduced too early: %v", sgd.LR())
	}
	s.StepWithLoss(1.0)
	if sgd.LR() != 0.5 {
		t.Errorf("LR = %v, want 0.5", sgd.LR())
	}
	s.StepWithLoss(1.0)
	s.StepWithLoss(1.0)
	if sgd.LR() != 0.3 {
		t.Errorf("LR = %v, want clamp to 0.3", sgd.LR())
	}
}

func BenchmarkSGDStepInPlace(b *testing.B) {
	sgd := &SGD{LearningRate: 0.01, Momentum: 0.9}
	params := make([]float64, 100000)
	gradients := make([]float64, 100000)
	for i := range gradients {
		gradients[i] = float64(i%7) * 0.01
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		sgd.StepInPlace(params, gradients)
	}
}
