// Package layer provides neural network layer implementations.
package layer

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/FlavioCFOliveira/mnistcmp/internal/activations"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Layer is a neural network layer operating on batches: one example per row.
type Layer interface {
	Forward(x *mat.Dense) *mat.Dense
	// Backward takes dL/d(output) of the last Forward call, adds the
	// parameter gradients into each Param.Grad and returns dL/d(input).
	Backward(grad *mat.Dense) *mat.Dense
	Params() []*Param
	InSize() int
	OutSize() int
}

// Trainable is implemented by layers that behave differently while training.
type Trainable interface {
	SetTraining(training bool)
}

// Param is a learnable tensor and its accumulated gradient.
type Param struct {
	Name  string
	Value *mat.Dense
	Grad  *mat.Dense
}

func newParam(name string, r, c int) *Param {
	return &Param{
		Name:  name,
		Value: mat.NewDense(r, c, nil),
		Grad:  mat.NewDense(r, c, nil),
	}
}

// ZeroGrad clears the accumulated gradient.
func (p *Param) ZeroGrad() {
	p.Grad.Zero()
}

// Len returns the number of scalars in the parameter.
func (p *Param) Len() int {
	r, c := p.Value.Dims()
	return r * c
}

// Init fills the weights (out*in, row-major) and biases of a dense layer.
// uniform returns samples from [0, 1).
type Init func(weights, biases []float64, in, out int, uniform func() float64)

// GlorotUniform draws weights from U(-l, l), l = sqrt(6/(in+out)), with
// zero biases. This is the Keras Dense default.
func GlorotUniform(weights, biases []float64, in, out int, uniform func() float64) {
	limit := math.Sqrt(6.0 / float64(in+out))
	for i := range weights {
		weights[i] = uniform()*2*limit - limit
	}
	for i := range biases {
		biases[i] = 0
	}
}

// FanInUniform draws weights and biases from U(-k, k), k = 1/sqrt(in).
// This matches the PyTorch nn.Linear default.
func FanInUniform(weights, biases []float64, in, out int, uniform func() float64) {
	k := 1 / math.Sqrt(float64(in))
	for i := range weights {
		weights[i] = uniform()*2*k - k
	}
	for i := range biases {
		biases[i] = uniform()*2*k - k
	}
}

// DenseOption configures NewDense.
type DenseOption func(*denseConfig)

type denseConfig struct {
	init    Init
	uniform func() float64
}

// WithInit selects the parameter initializer.
func WithInit(init Init) DenseOption {
	return func(c *denseConfig) { c.init = init }
}

// WithRand draws initial parameters from rng instead of the global source.
func WithRand(rng *rand.Rand) DenseOption {
	return func(c *denseConfig) { c.uniform = rng.Float64 }
}

// Dense is a fully connected layer: y = act(x·Wᵀ + b).
type Dense struct {
	// Shape [out, in]
	weight *Param
	// Shape [1, out]
	bias    *Param
	act     activations.Activation
	inSize  int
	outSize int

	// Saved by Forward for Backward
	input  *mat.Dense
	preAct *mat.Dense
	output *mat.Dense
}

// NewDense creates a dense layer initialized with GlorotUniform unless
// another Init is given.
func NewDense(in, out int, act activations.Activation, opts ...DenseOption) *Dense {
	cfg := denseConfig{init: GlorotUniform, uniform: rand.Float64}
	for _, o := range opts {
		o(&cfg)
	}

	d := &Dense{
		weight:  newParam("kernel", out, in),
		bias:    newParam("bias", 1, out),
		act:     act,
		inSize:  in,
		outSize: out,
	}
	cfg.init(d.weight.Value.RawMatrix().Data, d.bias.Value.RawMatrix().Data, in, out, cfg.uniform)
	return d
}

// Forward computes the layer output for a batch.
func (d *Dense) Forward(x *mat.Dense) *mat.Dense {
	rows, cols := x.Dims()
	if cols != d.inSize {
		panic(fmt.Sprintf("Dense: input has %d features, want %d", cols, d.inSize))
	}

	z := mat.NewDense(rows, d.outSize, nil)
	z.Mul(x, d.weight.Value.T())
	bias := d.bias.Value.RawRowView(0)
	for r := 0; r < rows; r++ {
		floats.Add(z.RawRowView(r), bias)
	}

	y := mat.NewDense(rows, d.outSize, nil)
	if va, ok := d.act.(activations.VectorActivation); ok {
		for r := 0; r < rows; r++ {
			va.ActivateVec(y.RawRowView(r), z.RawRowView(r))
		}
	} else {
		y.Apply(func(_, _ int, v float64) float64 { return d.act.Activate(v) }, z)
	}

	d.input, d.preAct, d.output = x, z, y
	return y
}

// Backward accumulates dL/dW and dL/db and returns dL/dx.
func (d *Dense) Backward(grad *mat.Dense) *mat.Dense {
	if d.input == nil {
		panic("Dense: Backward called before Forward")
	}
	rows, cols := grad.Dims()
	if r, _ := d.input.Dims(); rows != r || cols != d.outSize {
		panic(fmt.Sprintf("Dense: gradient is %dx%d, want %dx%d", rows, cols, r, d.outSize))
	}

	dz := mat.NewDense(rows, d.outSize, nil)
	if va, ok := d.act.(activations.VectorActivation); ok {
		for r := 0; r < rows; r++ {
			va.BackwardVec(dz.RawRowView(r), d.output.RawRowView(r), grad.RawRowView(r))
		}
	} else {
		dz.Apply(func(i, j int, v float64) float64 {
			return v * d.act.Derivative(d.preAct.At(i, j))
		}, grad)
	}

	var gw mat.Dense
	gw.Mul(dz.T(), d.input)
	d.weight.Grad.Add(d.weight.Grad, &gw)

	gb := d.bias.Grad.RawRowView(0)
	for r := 0; r < rows; r++ {
		floats.Add(gb, dz.RawRowView(r))
	}

	gx := mat.NewDense(rows, d.inSize, nil)
	gx.Mul(dz, d.weight.Value)
	return gx
}

// Params returns the kernel and bias.
func (d *Dense) Params() []*Param {
	return []*Param{d.weight, d.bias}
}

// SetWeight sets the weight connecting input col to output row.
func (d *Dense) SetWeight(row, col int, val float64) {
	d.weight.Value.Set(row, col, val)
}

// SetBias sets a single bias.
func (d *Dense) SetBias(idx int, val float64) {
	d.bias.Value.Set(0, idx, val)
}

// Weight returns the weight connecting input col to output row.
func (d *Dense) Weight(row, col int) float64 {
	return d.weight.Value.At(row, col)
}

// Bias returns a single bias.
func (d *Dense) Bias(idx int) float64 {
	return d.bias.Value.At(0, idx)
}

// InSize returns the input size of the layer.
func (d *Dense) InSize() int { return d.inSize }

// OutSize returns the output size of the layer.
func (d *Dense) OutSize() int { return d.outSize }

// Activation returns the activation function used by this layer.
func (d *Dense) Activation() activations.Activation { return d.act }
