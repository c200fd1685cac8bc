// Package graph builds the multilayer perceptron of the graph pipeline on
// gorgonia's tape machine: define the expression graph once, then feed it
// fixed-size batches.
package graph

import (
	"math/rand"
	"strconv"

	"github.com/FlavioCFOliveira/mnistcmp/internal/data"
	"github.com/FlavioCFOliveira/mnistcmp/internal/layer"
	"github.com/pkg/errors"
	G "gorgonia.org/gorgonia"
	T "gorgonia.org/tensor"
)

// MLPConfig describes a fully connected ReLU network with a linear output.
type MLPConfig struct {
	// Sizes lists the layer widths, input first: {784, 128, 64, 10}.
	Sizes []int
	// Batch is the fixed batch dimension of the graph. Smaller batches are
	// zero-padded and masked out of the loss.
	Batch        int
	LearningRate float64
	Seed         int64
}

func (c MLPConfig) validate() error {
	if len(c.Sizes) < 2 {
		return errors.Errorf("graph: need at least 2 layer sizes, got %v", c.Sizes)
	}
	for _, s := range c.Sizes {
		if s <= 0 {
			return errors.Errorf("graph: layer sizes must be positive, got %v", c.Sizes)
		}
	}
	if c.Batch <= 0 {
		return errors.Errorf("graph: batch must be positive, got %d", c.Batch)
	}
	if c.LearningRate <= 0 {
		return errors.Errorf("graph: learning rate must be positive, got %v", c.LearningRate)
	}
	return nil
}

// MLP is the trainable graph. It holds the forward pass, the masked cross
// entropy cost and its gradients.
type MLP struct {
	cfg MLPConfig
	g   *G.ExprGraph

	weights []*G.Node
	biases  []*G.Node

	x, y, w *G.Node
	logits  *G.Node
	cost    *G.Node
	costVal G.Value

	// Input buffers backing the tensors bound to x, y and w
	xs, ys, ws []float64
	xT, yT, wT *T.Dense

	vm     G.VM
	solver G.Solver
}

// NewMLP builds the graph with weights and biases drawn from
// U(-1/sqrt(in), 1/sqrt(in)).
func NewMLP(cfg MLPConfig) (*MLP, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	values := make([][2][]float64, len(cfg.Sizes)-1)
	for i := range values {
		in, out := cfg.Sizes[i], cfg.Sizes[i+1]
		w, b := make([]float64, in*out), make([]float64, out)
		layer.FanInUniform(w, b, in, out, rng.Float64)
		values[i] = [2][]float64{w, b}
	}

	m := &MLP{cfg: cfg, g: G.NewGraph()}
	var err error
	m.weights, m.biases = learnables(m.g, cfg.Sizes, values)
	m.x, m.logits, err = forward(m.g, cfg, m.weights, m.biases)
	if err != nil {
		return nil, err
	}

	classes := cfg.Sizes[len(cfg.Sizes)-1]
	m.y = G.NewMatrix(m.g, T.Float64, G.WithShape(cfg.Batch, classes), G.WithName("y"))
	m.w = G.NewVector(m.g, T.Float64, G.WithShape(cfg.Batch), G.WithName("rowWeight"))
	if m.cost, err = maskedCrossEntropy(m.logits, m.y, m.w); err != nil {
		return nil, err
	}
	G.Read(m.cost, &m.costVal)

	if _, err = G.Grad(m.cost, m.learnables()...); err != nil {
		return nil, errors.Wrap(err, "graph: symbolic gradient")
	}

	m.xs = make([]float64, cfg.Batch*cfg.Sizes[0])
	m.ys = make([]float64, cfg.Batch*classes)
	m.ws = make([]float64, cfg.Batch)
	m.xT = T.New(T.WithShape(cfg.Batch, cfg.Sizes[0]), T.WithBacking(m.xs))
	m.yT = T.New(T.WithShape(cfg.Batch, classes), T.WithBacking(m.ys))
	m.wT = T.New(T.WithShape(cfg.Batch), T.WithBacking(m.ws))

	m.vm = G.NewTapeMachine(m.g, G.BindDualValues(m.learnables()...))
	m.solver = G.NewVanillaSolver(G.WithLearnRate(cfg.LearningRate))
	return m, nil
}

func learnables(g *G.ExprGraph, sizes []int, values [][2][]float64) (weights, biases []*G.Node) {
	for i, v := range values {
		in, out := sizes[i], sizes[i+1]
		wT := T.New(T.WithShape(in, out), T.WithBacking(v[0]))
		bT := T.New(T.WithShape(1, out), T.WithBacking(v[1]))
		weights = append(weights, G.NewMatrix(g, T.Float64, G.WithShape(in, out), G.WithName(nodeName("w", i)), G.WithValue(wT)))
		biases = append(biases, G.NewMatrix(g, T.Float64, G.WithShape(1, out), G.WithName(nodeName("b", i)), G.WithValue(bT)))
	}
	return weights, biases
}

func nodeName(prefix string, i int) string {
	return prefix + strconv.Itoa(i)
}

// forward adds x and the layer stack to g and returns x and the logits.
func forward(g *G.ExprGraph, cfg MLPConfig, weights, biases []*G.Node) (x, logits *G.Node, err error) {
	x = G.NewMatrix(g, T.Float64, G.WithShape(cfg.Batch, cfg.Sizes[0]), G.WithName("x"))
	h := x
	for i := range weights {
		if h, err = G.Mul(h, weights[i]); err != nil {
			return nil, nil, errors.Wrapf(err, "graph: layer %d matmul", i)
		}
		if h, err = G.BroadcastAdd(h, biases[i], nil, []byte{0}); err != nil {
			return nil, nil, errors.Wrapf(err, "graph: layer %d bias", i)
		}
		if i < len(weights)-1 {
			if h, err = G.Rectify(h); err != nil {
				return nil, nil, errors.Wrapf(err, "graph: layer %d relu", i)
			}
		}
	}
	return x, h, nil
}

// maskedCrossEntropy computes sum_i w_i * (log(sum_j exp(z_ij)) - z_i,label).
// With w_i = 1/n for the n real rows and 0 for padding this is the mean
// cross entropy of the unpadded batch.
func maskedCrossEntropy(logits, y, w *G.Node) (*G.Node, error) {
	exp, err := G.Exp(logits)
	if err != nil {
		return nil, errors.Wrap(err, "graph: exp")
	}
	sum, err := G.Sum(exp, 1)
	if err != nil {
		return nil, errors.Wrap(err, "graph: row sum")
	}
	lse, err := G.Log(sum)
	if err != nil {
		return nil, errors.Wrap(err, "graph: log")
	}
	picked, err := G.HadamardProd(logits, y)
	if err != nil {
		return nil, errors.Wrap(err, "graph: pick label logits")
	}
	target, err := G.Sum(picked, 1)
	if err != nil {
		return nil, errors.Wrap(err, "graph: label logit sum")
	}
	ce, err := G.Sub(lse, target)
	if err != nil {
		return nil, errors.Wrap(err, "graph: cross entropy")
	}
	weighted, err := G.HadamardProd(ce, w)
	if err != nil {
		return nil, errors.Wrap(err, "graph: row weights")
	}
	cost, err := G.Sum(weighted)
	return cost, errors.Wrap(err, "graph: cost")
}

func (m *MLP) learnables() G.Nodes {
	var ns G.Nodes
	for i := range m.weights {
		ns = append(ns, m.weights[i], m.biases[i])
	}
	return ns
}

// Batch returns the fixed batch dimension.
func (m *MLP) Batch() int { return m.cfg.Batch }

// fill copies b into the input buffers, zero-padding up to the graph batch.
// It returns the number of real rows.
func fill(b data.Batch, batch, features int, xs []float64) (int, error) {
	n := b.Size()
	if n == 0 {
		return 0, errors.New("graph: empty batch")
	}
	if n > batch {
		return 0, errors.Errorf("graph: batch of %d exceeds graph batch %d", n, batch)
	}
	if _, c := b.X.Dims(); c != features {
		return 0, errors.Errorf("graph: batch has %d features, want %d", c, features)
	}
	for i := range xs {
		xs[i] = 0
	}
	for r := 0; r < n; r++ {
		copy(xs[r*features:(r+1)*features], b.X.RawRowView(r))
	}
	return n, nil
}

// Step runs one forward/backward pass on b and applies an SGD update. It
// returns the mean cross entropy of b under the weights before the update.
func (m *MLP) Step(b data.Batch) (float64, error) {
	n, err := fill(b, m.cfg.Batch, m.cfg.Sizes[0], m.xs)
	if err != nil {
		return 0, err
	}
	classes := m.cfg.Sizes[len(m.cfg.Sizes)-1]
	for i := range m.ys {
		m.ys[i] = 0
	}
	for i := range m.ws {
		m.ws[i] = 0
	}
	for r, l := range b.Labels {
		if l < 0 || l >= classes {
			return 0, errors.Errorf("graph: label %d outside [0, %d)", l, classes)
		}
		m.ys[r*classes+l] = 1
		m.ws[r] = 1 / float64(n)
	}

	if err := G.Let(m.x, m.xT); err != nil {
		return 0, errors.Wrap(err, "graph: bind x")
	}
	if err := G.Let(m.y, m.yT); err != nil {
		return 0, errors.Wrap(err, "graph: bind y")
	}
	if err := G.Let(m.w, m.wT); err != nil {
		return 0, errors.Wrap(err, "graph: bind row weights")
	}
	defer m.vm.Reset()

	if err := m.vm.RunAll(); err != nil {
		return 0, errors.Wrap(err, "graph: run")
	}
	if err := m.solver.Step(G.NodesToValueGrads(m.learnables())); err != nil {
		return 0, errors.Wrap(err, "graph: solver step")
	}

	cost, ok := m.costVal.Data().(float64)
	if !ok {
		return 0, errors.Errorf("graph: cost has type %T", m.costVal.Data())
	}
	return cost, nil
}

// Params returns a copy of every weight and bias, in layer order. Weights
// are [in, out] row-major.
func (m *MLP) Params() [][]float64 {
	var ps [][]float64
	for _, n := range m.learnables() {
		src := n.Value().Data().([]float64)
		ps = append(ps, append([]float64(nil), src...))
	}
	return ps
}

// Close releases the tape machine.
func (m *MLP) Close() error {
	return m.vm.Close()
}
