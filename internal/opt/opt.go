// Package opt provides optimization algorithms.
package opt

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Optimizer updates network parameters based on gradients.
type Optimizer interface {
	// Step updates every params[i] in place from gradients[i]. The same
	// parameter list must be passed on every call.
	Step(params, gradients [][]float64)

	// LearningRate returns the base step size.
	LearningRate() float64
}

// SGD (Stochastic Gradient Descent) optimizer without momentum.
type SGD struct {
	LR float64
}

// NewSGD creates an SGD optimizer.
func NewSGD(learningRate float64) *SGD {
	return &SGD{LR: learningRate}
}

// Step updates params in-place: params = params - lr * gradients
func (s *SGD) Step(params, gradients [][]float64) {
	checkShapes("SGD", params, gradients)
	for i := range params {
		floats.AddScaled(params[i], -s.LR, gradients[i])
	}
}

func (s *SGD) LearningRate() float64 { return s.LR }

// Adam optimizer with the Keras defaults.
type Adam struct {
	LR      float64
	Beta1   float64 // Exponential decay rate for first moment
	Beta2   float64 // Exponential decay rate for second moment
	Epsilon float64 // Small constant for numerical stability

	t int
	m [][]float64
	v [][]float64
}

// NewAdam creates a new Adam optimizer with beta1 0.9, beta2 0.999 and
// epsilon 1e-7.
func NewAdam(learningRate float64) *Adam {
	return &Adam{
		LR:      learningRate,
		Beta1:   0.9,
		Beta2:   0.999,
		Epsilon: 1e-7,
	}
}

// Step applies one bias-corrected Adam update:
//
//	m = b1*m + (1-b1)*g
//	v = b2*v + (1-b2)*g²
//	p -= lr * sqrt(1-b2^t)/(1-b1^t) * m / (sqrt(v) + eps)
func (a *Adam) Step(params, gradients [][]float64) {
	checkShapes("Adam", params, gradients)
	if a.m == nil {
		a.m = make([][]float64, len(params))
		a.v = make([][]float64, len(params))
		for i, p := range params {
			a.m[i] = make([]float64, len(p))
			a.v[i] = make([]float64, len(p))
		}
	}
	if len(a.m) != len(params) {
		panic(fmt.Sprintf("Adam: got %d parameters, state has %d", len(params), len(a.m)))
	}

	a.t++
	t := float64(a.t)
	alpha := a.LR * math.Sqrt(1-math.Pow(a.Beta2, t)) / (1 - math.Pow(a.Beta1, t))

	for i, p := range params {
		g, m, v := gradients[i], a.m[i], a.v[i]
		if len(m) != len(p) {
			panic(fmt.Sprintf("Adam: parameter %d has %d values, state has %d", i, len(p), len(m)))
		}
		for j := range p {
			m[j] = a.Beta1*m[j] + (1-a.Beta1)*g[j]
			v[j] = a.Beta2*v[j] + (1-a.Beta2)*g[j]*g[j]
			p[j] -= alpha * m[j] / (math.Sqrt(v[j]) + a.Epsilon)
		}
	}
}

func (a *Adam) LearningRate() float64 { return a.LR }

// Iterations returns the number of steps taken.
func (a *Adam) Iterations() int { return a.t }

func checkShapes(name string, params, gradients [][]float64) {
	if len(params) != len(gradients) {
		panic(fmt.Sprintf("%s: %d parameters but %d gradients", name, len(params), len(gradients)))
	}
	for i := range params {
		if len(params[i]) != len(gradients[i]) {
			panic(fmt.Sprintf("%s: parameter %d has %d values but gradient has %d", name, i, len(params[i]), len(gradients[i])))
		}
	}
}
