package graph

import (
	"github.com/FlavioCFOliveira/mnistcmp/internal/data"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	G "gorgonia.org/gorgonia"
	T "gorgonia.org/tensor"
)

// Classifier is an inference-only copy of an MLP. It has no cost or
// gradient nodes, so running it never changes the weights.
type Classifier struct {
	cfg       MLPConfig
	g         *G.ExprGraph
	x, logits *G.Node
	out       G.Value
	xs        []float64
	xT        *T.Dense
	vm        G.VM
}

// Freeze copies the current weights of m into a new inference graph.
func (m *MLP) Freeze() (*Classifier, error) {
	ps := m.Params()
	values := make([][2][]float64, len(ps)/2)
	for i := range values {
		values[i] = [2][]float64{ps[2*i], ps[2*i+1]}
	}

	c := &Classifier{cfg: m.cfg, g: G.NewGraph()}
	weights, biases := learnables(c.g, m.cfg.Sizes, values)
	var err error
	if c.x, c.logits, err = forward(c.g, m.cfg, weights, biases); err != nil {
		return nil, err
	}
	G.Read(c.logits, &c.out)

	c.xs = make([]float64, m.cfg.Batch*m.cfg.Sizes[0])
	c.xT = T.New(T.WithShape(m.cfg.Batch, m.cfg.Sizes[0]), T.WithBacking(c.xs))
	c.vm = G.NewTapeMachine(c.g)
	return c, nil
}

// Logits returns one row of raw class scores per real row of b.
func (c *Classifier) Logits(b data.Batch) (*mat.Dense, error) {
	n, err := fill(b, c.cfg.Batch, c.cfg.Sizes[0], c.xs)
	if err != nil {
		return nil, err
	}
	if err := G.Let(c.x, c.xT); err != nil {
		return nil, errors.Wrap(err, "graph: bind x")
	}
	defer c.vm.Reset()

	if err := c.vm.RunAll(); err != nil {
		return nil, errors.Wrap(err, "graph: run")
	}
	raw, ok := c.out.Data().([]float64)
	if !ok {
		return nil, errors.Errorf("graph: logits have type %T", c.out.Data())
	}
	classes := c.cfg.Sizes[len(c.cfg.Sizes)-1]
	return mat.NewDense(n, classes, append([]float64(nil), raw[:n*classes]...)), nil
}

// Predict returns the argmax class of each real row of b.
func (c *Classifier) Predict(b data.Batch) ([]int, error) {
	logits, err := c.Logits(b)
	if err != nil {
		return nil, err
	}
	n, _ := logits.Dims()
	pred := make([]int, n)
	for r := range pred {
		pred[r] = floats.MaxIdx(logits.RawRowView(r))
	}
	return pred, nil
}

// Close releases the tape machine.
func (c *Classifier) Close() error {
	return c.vm.Close()
}
