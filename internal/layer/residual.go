package layer

import (
	"github.com/FlavioCFOliveira/GoACNN/internal/activations"
)

// Residual computes act(main(x) + shortcut(x)). An empty shortcut is the
// identity, in which case main must preserve the sample size.
type Residual struct {
	main     []Layer
	shortcut []Layer
	act      activations.Activation

	preAct    []float64
	outputBuf []float64
	dz        []float64
	gradInBuf []float64
	params    []float64
	grads     []float64
}

// NewResidual creates a residual block. A nil activation is the identity.
func NewResidual(main, shortcut []Layer, act activations.Activation) *Residual {
	if act == nil {
		act = activations.Linear{}
	}
	return &Residual{main: main, shortcut: shortcut, act: act}
}

func (r *Residual) layers() []Layer {
	return append(append([]Layer(nil), r.main...), r.shortcut...)
}

// Forward runs both paths and sums them.
func (r *Residual) Forward(x []float64) []float64 {
	h := x
	for _, l := range r.main {
		h = l.Forward(h)
	}
	s := x
	for _, l := range r.shortcut {
		s = l.Forward(s)
	}
	if len(h) != len(s) {
		panic("Residual: main and shortcut outputs differ in size")
	}

	r.preAct = grow(r.preAct, len(h))
	r.outputBuf = grow(r.outputBuf, len(h))
	for i := range h {
		r.preAct[i] = h[i] + s[i]
		r.outputBuf[i] = r.act.Activate(r.preAct[i])
	}
	return r.outputBuf
}

// Backward sends the same gradient down both paths and sums the results.
func (r *Residual) Backward(grad []float64) []float64 {
	r.dz = grow(r.dz, len(r.preAct))
	for i, z := range r.preAct {
		r.dz[i] = grad[i] * r.act.Derivative(z)
	}

	g := r.dz
	for i := len(r.main) - 1; i >= 0; i-- {
		g = r.main[i].Backward(g)
	}
	r.gradInBuf = grow(r.gradInBuf, len(g))
	copy(r.gradInBuf, g)

	g = r.dz
	for i := len(r.shortcut) - 1; i >= 0; i-- {
		g = r.shortcut[i].Backward(g)
	}
	for i, v := range g {
		r.gradInBuf[i] += v
	}
	return r.gradInBuf
}

// Params returns a concatenated copy of main then shortcut parameters.
func (r *Residual) Params() []float64 {
	r.params = r.params[:0]
	for _, l := range r.layers() {
		r.params = append(r.params, l.Params()...)
	}
	return r.params
}

// SetParams distributes params over main then shortcut layers.
func (r *Residual) SetParams(params []float64) {
	off := 0
	for _, l := range r.layers() {
		n := len(l.Params())
		l.SetParams(params[off : off+n])
		off += n
	}
}

// Gradients returns a concatenated copy of the child gradients.
func (r *Residual) Gradients() []float64 {
	r.grads = r.grads[:0]
	for _, l := range r.layers() {
		r.grads = append(r.grads, l.Gradients()...)
	}
	return r.grads
}

// State returns the concatenated state of the stateful children.
func (r *Residual) State() []float64 { return CollectState(r.layers()) }

// SetState distributes state over the stateful children.
func (r *Residual) SetState(state []float64) { RestoreState(r.layers(), state) }

// ClearGradients clears every child.
func (r *Residual) ClearGradients() {
	for _, l := range r.layers() {
		l.ClearGradients()
	}
}

// SetTraining propagates the mode to children that care.
func (r *Residual) SetTraining(training bool) {
	for _, l := range r.layers() {
		if t, ok := l.(Trainable); ok {
			t.SetTraining(training)
		}
	}
}

func (r *Residual) InSize() int {
	return r.main[0].InSize()
}

func (r *Residual) OutSize() int {
	return r.main[len(r.main)-1].OutSize()
}
