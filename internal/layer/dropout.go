package layer

import (
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// Dropout implements inverted dropout regularization.
// During training, inputs are zeroed with probability rate and the survivors
// are scaled by 1/(1-rate). During inference, inputs pass through unchanged.
type Dropout struct {
	// Probability of dropping a unit
	rate float64

	// Training mode
	training bool

	size int

	// Scale factor per element of the last training batch, 0 for dropped units
	mask *mat.Dense

	rng *rand.Rand
}

// NewDropout creates a dropout layer over size units. The layer starts in
// training mode. A nil rng uses a source seeded with 42.
func NewDropout(rate float64, size int, rng *rand.Rand) *Dropout {
	if rate < 0 || rate >= 1 {
		panic(fmt.Sprintf("Dropout: rate %v outside [0, 1)", rate))
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(42))
	}
	return &Dropout{
		rate:     rate,
		training: true,
		size:     size,
		rng:      rng,
	}
}

// SetTraining sets whether the layer should be in training or inference mode.
func (d *Dropout) SetTraining(training bool) {
	d.training = training
}

// IsTraining returns whether the layer is in training mode.
func (d *Dropout) IsTraining() bool {
	return d.training
}

// Rate returns the drop probability.
func (d *Dropout) Rate() float64 { return d.rate }

func (d *Dropout) Forward(x *mat.Dense) *mat.Dense {
	rows, cols := x.Dims()
	if cols != d.size {
		panic(fmt.Sprintf("Dropout: input has %d features, want %d", cols, d.size))
	}

	out := mat.DenseCopyOf(x)
	if !d.training || d.rate == 0 {
		d.mask = nil
		return out
	}

	keep := 1 / (1 - d.rate)
	d.mask = mat.NewDense(rows, cols, nil)
	m := d.mask.RawMatrix().Data
	for i := range m {
		if d.rng.Float64() >= d.rate {
			m[i] = keep
		}
	}
	out.MulElem(out, d.mask)
	return out
}

func (d *Dropout) Backward(grad *mat.Dense) *mat.Dense {
	out := mat.DenseCopyOf(grad)
	if d.mask != nil {
		out.MulElem(out, d.mask)
	}
	return out
}

// Params returns nil: dropout has no learnable parameters.
func (d *Dropout) Params() []*Param { return nil }

func (d *Dropout) InSize() int  { return d.size }
func (d *Dropout) OutSize() int { return d.size }
