// Package activations provides activation functions for dense layers.
package activations

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Activation is an element-wise activation function with derivative.
type Activation interface {
	// Activate computes f(x)
	Activate(x float64) float64

	// Derivative computes f'(x) from the pre-activation value.
	Derivative(x float64) float64
}

// VectorActivation is implemented by activations that couple the
// elements of a row, such as Softmax. Layers prefer it over the
// element-wise methods when present.
type VectorActivation interface {
	// ActivateVec writes f(z) into dst.
	ActivateVec(dst, z []float64)

	// BackwardVec writes dL/dz into dst given the activated row y and
	// the upstream gradient dL/dy.
	BackwardVec(dst, y, grad []float64)
}

// ReLU activation function.
type ReLU struct{}

// Activate computes max(0, x)
func (r ReLU) Activate(x float64) float64 {
	if x > 0 {
		return x
	}
	return 0
}

// Derivative returns 1 if x > 0, else 0
func (r ReLU) Derivative(x float64) float64 {
	if x > 0 {
		return 1
	}
	return 0
}

// Linear is the identity activation. Output layers that emit logits use it.
type Linear struct{}

// Activate returns x unchanged.
func (l Linear) Activate(x float64) float64 { return x }

// Derivative is always 1.
func (l Linear) Derivative(x float64) float64 { return 1 }

// Softmax activation function for output layers producing probabilities.
type Softmax struct{}

// Activate panics: softmax is defined over a whole row.
func (s Softmax) Activate(x float64) float64 {
	panic("Softmax.Activate: use ActivateVec for Softmax")
}

// Derivative panics: softmax is defined over a whole row.
func (s Softmax) Derivative(x float64) float64 {
	panic("Softmax.Derivative: use BackwardVec for Softmax")
}

// ActivateVec computes exp(z - max) / sum(exp(z - max)).
func (s Softmax) ActivateVec(dst, z []float64) {
	copy(dst, z)
	floats.AddConst(-floats.Max(dst), dst)

	var sum float64
	for i := range dst {
		dst[i] = math.Exp(dst[i])
		sum += dst[i]
	}
	floats.Scale(1/sum, dst)
}

// BackwardVec applies the softmax Jacobian: dz_i = y_i * (g_i - sum_j g_j y_j).
func (s Softmax) BackwardVec(dst, y, grad []float64) {
	dot := floats.Dot(y, grad)
	for i := range dst {
		dst[i] = y[i] * (grad[i] - dot)
	}
}

// Name returns a short display name for an activation.
func Name(a Activation) string {
	switch a.(type) {
	case ReLU:
		return "relu"
	case Linear:
		return "linear"
	case Softmax:
		return "softmax"
	default:
		return "custom"
	}
}
