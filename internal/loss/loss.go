// Package loss provides classification loss functions over batches.
package loss

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Loss is a loss function with derivative. Rows of out are examples and
// labels holds one class index per row.
type Loss interface {
	// Forward computes the mean loss over the batch.
	Forward(out *mat.Dense, labels []int) float64

	// Backward computes the gradient of the mean loss w.r.t. out.
	Backward(out *mat.Dense, labels []int) *mat.Dense
}

func checkBatch(name string, out *mat.Dense, labels []int) (rows, cols int) {
	rows, cols = out.Dims()
	if rows != len(labels) {
		panic(fmt.Sprintf("%s: %d rows but %d labels", name, rows, len(labels)))
	}
	for _, l := range labels {
		if l < 0 || l >= cols {
			panic(fmt.Sprintf("%s: label %d outside [0, %d)", name, l, cols))
		}
	}
	return rows, cols
}

// CrossEntropy is softmax cross entropy on raw logits, the same as PyTorch's
// nn.CrossEntropyLoss with mean reduction.
type CrossEntropy struct{}

// Forward computes mean(logsumexp(z) - z[label]).
func (CrossEntropy) Forward(out *mat.Dense, labels []int) float64 {
	rows, _ := checkBatch("CrossEntropy", out, labels)
	if rows == 0 {
		return 0
	}

	var sum float64
	for r := 0; r < rows; r++ {
		z := out.RawRowView(r)
		sum += floats.LogSumExp(z) - z[labels[r]]
	}
	return sum / float64(rows)
}

// Backward computes (softmax(z) - onehot(label)) / batch.
func (CrossEntropy) Backward(out *mat.Dense, labels []int) *mat.Dense {
	rows, cols := checkBatch("CrossEntropy", out, labels)
	grad := mat.NewDense(rows, cols, nil)

	scale := 1 / float64(rows)
	for r := 0; r < rows; r++ {
		z := out.RawRowView(r)
		g := grad.RawRowView(r)
		lse := floats.LogSumExp(z)
		for j, v := range z {
			g[j] = math.Exp(v - lse)
		}
		g[labels[r]] -= 1
		floats.Scale(scale, g)
	}
	return grad
}

// ProbEpsilon clips probabilities before the logarithm, as Keras does.
const ProbEpsilon = 1e-7

// SparseCategoricalCrossEntropy works on probabilities (a softmax output)
// with integer labels, the same as Keras'
// sparse_categorical_crossentropy with from_logits=False.
type SparseCategoricalCrossEntropy struct{}

func clip(p float64) float64 {
	return math.Min(math.Max(p, ProbEpsilon), 1-ProbEpsilon)
}

// Forward computes mean(-log(clip(p[label]))).
func (SparseCategoricalCrossEntropy) Forward(out *mat.Dense, labels []int) float64 {
	rows, _ := checkBatch("SparseCategoricalCrossEntropy", out, labels)
	if rows == 0 {
		return 0
	}

	var sum float64
	for r, l := range labels {
		sum -= math.Log(clip(out.At(r, l)))
	}
	return sum / float64(rows)
}

// Backward returns -1/(batch*p[label]) at the label and zero elsewhere.
// Clipped probabilities get a zero gradient.
func (SparseCategoricalCrossEntropy) Backward(out *mat.Dense, labels []int) *mat.Dense {
	rows, cols := checkBatch("SparseCategoricalCrossEntropy", out, labels)
	grad := mat.NewDense(rows, cols, nil)

	for r, l := range labels {
		p := out.At(r, l)
		if p > ProbEpsilon && p < 1-ProbEpsilon {
			grad.Set(r, l, -1/(float64(rows)*p))
		}
	}
	return grad
}
