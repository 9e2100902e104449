// Package net provides the sequential layer container and parameter
// persistence shared by every model.
package net

import (
	"fmt"
	"io"

	"github.com/FlavioCFOliveira/GoACNN/internal/layer"
	"github.com/FlavioCFOliveira/GoACNN/internal/opt"
)

// Parametric is anything with a flat parameter vector and matching
// gradients.
type Parametric interface {
	Params() []float64
	SetParams([]float64)
	Gradients() []float64
	ClearGradients()
}

// Stateful is a model with non-trainable state persisted next to its
// parameters.
type Stateful = layer.Stateful

// StateOf returns the state of p, or nil when p carries none.
func StateOf(p Parametric) []float64 {
	if s, ok := p.(Stateful); ok {
		return s.State()
	}
	return nil
}

// Network is an ordered stack of layers. It is itself a layer.
type Network struct {
	layers []layer.Layer
}

// New creates a new network with the given layers.
func New(layers ...layer.Layer) *Network {
	return &Network{layers: layers}
}

// Add appends layers to the network.
func (n *Network) Add(layers ...layer.Layer) {
	n.layers = append(n.layers, layers...)
}

// Forward performs a forward pass through all layers.
func (n *Network) Forward(x []float64) []float64 {
	curr := x
	for i := range n.layers {
		curr = n.layers[i].Forward(curr)
	}
	return curr
}

// Backward performs a backward pass through all layers.
func (n *Network) Backward(grad []float64) []float64 {
	curr := grad
	for i := len(n.layers) - 1; i >= 0; i-- {
		curr = n.layers[i].Backward(curr)
	}
	return curr
}

// Params returns all network parameters flattened (copy).
func (n *Network) Params() []float64 {
	var params []float64
	for _, l := range n.layers {
		params = append(params, l.Params()...)
	}
	return params
}

// SetParams distributes a flattened parameter vector over the layers.
func (n *Network) SetParams(params []float64) {
	offset := 0
	for _, l := range n.layers {
		size := len(l.Params())
		l.SetParams(params[offset : offset+size])
		offset += size
	}
}

// Gradients returns all network gradients flattened (copy).
func (n *Network) Gradients() []float64 {
	var gradients []float64
	for _, l := range n.layers {
		gradients = append(gradients, l.Gradients()...)
	}
	return gradients
}

// State returns the non-trainable state of every stateful layer (copy).
func (n *Network) State() []float64 { return layer.CollectState(n.layers) }

// SetState distributes a state vector written by State over the layers.
func (n *Network) SetState(state []float64) { layer.RestoreState(n.layers, state) }

// ClearGradients zeroes every layer's gradients.
func (n *Network) ClearGradients() {
	for _, l := range n.layers {
		l.ClearGradients()
	}
}

// SetTraining sets the training mode on every layer that has one.
func (n *Network) SetTraining(training bool) {
	for _, l := range n.layers {
		if t, ok := l.(layer.Trainable); ok {
			t.SetTraining(training)
		}
	}
}

// InSize returns the per-sample input size of the first layer.
func (n *Network) InSize() int { return n.layers[0].InSize() }

// OutSize returns the per-sample output size of the last layer.
func (n *Network) OutSize() int { return n.layers[len(n.layers)-1].OutSize() }

// Layers returns the network's layers slice.
func (n *Network) Layers() []layer.Layer {
	return n.layers
}

// Summary writes a table of layers, output sizes and parameter counts.
func (n *Network) Summary(w io.Writer, name string) {
	fmt.Fprintf(w, "Model: %s\n", name)
	fmt.Fprintln(w, "_________________________________________________________________")
	fmt.Fprintf(w, "%-25s %-20s %-10s\n", "Layer (type)", "Output Shape", "Param #")
	fmt.Fprintln(w, "=================================================================")

	totalParams := 0
	for i, l := range n.layers {
		lType := fmt.Sprintf("%T", l)
		// Extract simple type name
		for j := len(lType) - 1; j >= 0; j-- {
			if lType[j] == '.' {
				lType = lType[j+1:]
				break
			}
		}

		outShape := fmt.Sprintf("(%d)", l.OutSize())
		params := len(l.Params())
		totalParams += params

		fmt.Fprintf(w, "%-25s %-20s %-10d\n", fmt.Sprintf("%s_%d", lType, i), outShape, params)
	}
	fmt.Fprintln(w, "=================================================================")
	fmt.Fprintf(w, "Total params: %d\n", totalParams)
	fmt.Fprintln(w, "_________________________________________________________________")
}

// Step applies one optimizer update to p using its accumulated gradients.
func Step(p Parametric, o opt.Optimizer) {
	params := append([]float64(nil), p.Params()...)
	o.StepInPlace(params, p.Gradients())
	p.SetParams(params)
}
