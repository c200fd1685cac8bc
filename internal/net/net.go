// Package net provides core neural network types.
package net

import (
	"github.com/FlavioCFOliveira/mnistcmp/internal/data"
	"github.com/FlavioCFOliveira/mnistcmp/internal/layer"
	"github.com/FlavioCFOliveira/mnistcmp/internal/loss"
	"github.com/FlavioCFOliveira/mnistcmp/internal/opt"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Network is a collection of layers that can be forwarded and backwarded.
type Network struct {
	layers []layer.Layer
	loss   loss.Loss
	opt    opt.Optimizer

	// Raw views of every parameter and gradient, built on first Step
	values [][]float64
	grads  [][]float64
}

// New creates a new neural network with the given layers.
func New(layers []layer.Layer, loss loss.Loss, optimizer opt.Optimizer) *Network {
	return &Network{
		layers: layers,
		loss:   loss,
		opt:    optimizer,
	}
}

// Forward performs a forward pass through all layers.
func (n *Network) Forward(x *mat.Dense) *mat.Dense {
	curr := x
	for _, l := range n.layers {
		curr = l.Forward(curr)
	}
	return curr
}

// Backward performs a backward pass through all layers.
func (n *Network) Backward(grad *mat.Dense) *mat.Dense {
	curr := grad
	for i := len(n.layers) - 1; i >= 0; i-- {
		curr = n.layers[i].Backward(curr)
	}
	return curr
}

// Params returns the learnable parameters of every layer, in layer order.
func (n *Network) Params() []*layer.Param {
	var ps []*layer.Param
	for _, l := range n.layers {
		ps = append(ps, l.Params()...)
	}
	return ps
}

// NumParams returns the number of learnable scalars.
func (n *Network) NumParams() int {
	total := 0
	for _, p := range n.Params() {
		total += p.Len()
	}
	return total
}

// ZeroGrad clears every accumulated gradient.
func (n *Network) ZeroGrad() {
	for _, p := range n.Params() {
		p.ZeroGrad()
	}
}

// Step performs one optimization step using the stored optimizer.
func (n *Network) Step() {
	if n.values == nil {
		for _, p := range n.Params() {
			n.values = append(n.values, p.Value.RawMatrix().Data)
			n.grads = append(n.grads, p.Grad.RawMatrix().Data)
		}
	}
	n.opt.Step(n.values, n.grads)
}

// SetTraining switches layers such as Dropout between training and inference.
func (n *Network) SetTraining(training bool) {
	for _, l := range n.layers {
		if t, ok := l.(layer.Trainable); ok {
			t.SetTraining(training)
		}
	}
}

// TrainBatch runs forward, loss, backward and one optimizer update on a
// batch. It returns the mean batch loss and the number of correct
// predictions made by the forward pass.
func (n *Network) TrainBatch(b data.Batch) (float64, int) {
	n.ZeroGrad()
	out := n.Forward(b.X)
	l := n.loss.Forward(out, b.Labels)
	n.Backward(n.loss.Backward(out, b.Labels))
	n.Step()
	return l, Correct(out, b.Labels)
}

// Layers returns the layers of the network.
func (n *Network) Layers() []layer.Layer {
	return n.layers
}

// Argmax returns the index of the largest value in each row.
func Argmax(out *mat.Dense) []int {
	rows, _ := out.Dims()
	idx := make([]int, rows)
	for r := range idx {
		idx[r] = floats.MaxIdx(out.RawRowView(r))
	}
	return idx
}

// Correct counts rows whose argmax equals the label.
func Correct(out *mat.Dense, labels []int) int {
	c := 0
	for r, p := range Argmax(out) {
		if p == labels[r] {
			c++
		}
	}
	return c
}
