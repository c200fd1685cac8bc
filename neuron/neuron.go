// Package neuron is the Keras-like public surface of the layer framework:
// build a Sequential model, Compile it and Fit it on a data.Loader.
package neuron

import (
	"io"
	"math/rand"

	"github.com/FlavioCFOliveira/mnistcmp/internal/activations"
	"github.com/FlavioCFOliveira/mnistcmp/internal/layer"
	"github.com/FlavioCFOliveira/mnistcmp/internal/loss"
	"github.com/FlavioCFOliveira/mnistcmp/internal/net"
	"github.com/FlavioCFOliveira/mnistcmp/internal/opt"
)

// Re-export common types and functions for easier access
type (
	Model      = net.Sequential
	Layer      = layer.Layer
	Optimizer  = opt.Optimizer
	Loss       = loss.Loss
	History    = net.History
	EpochLogs  = net.EpochLogs
	Evaluation = net.Evaluation
	Callback   = net.Callback
)

// Model creation
func NewSequential(layers ...Layer) *Model {
	return net.NewSequential(layers...)
}

// Activations
var (
	ReLU    = activations.ReLU{}
	Softmax = activations.Softmax{}
	Linear  = activations.Linear{}
)

// Layers

// Dense creates a Glorot-initialized dense layer drawing from rng; a nil
// rng uses the global source.
func Dense(in, out int, act activations.Activation, rng *rand.Rand) Layer {
	if rng == nil {
		return layer.NewDense(in, out, act)
	}
	return layer.NewDense(in, out, act, layer.WithRand(rng))
}

func Dropout(rate float64, in int, rng *rand.Rand) Layer {
	return layer.NewDropout(rate, in, rng)
}

func Flatten(rows, cols int) Layer {
	return layer.NewFlatten(rows, cols)
}

// Optimizers
func Adam(lr float64) Optimizer {
	return opt.NewAdam(lr)
}

func SGD(lr float64) Optimizer {
	return opt.NewSGD(lr)
}

// Losses
var (
	SparseCategoricalCrossEntropy Loss = loss.SparseCategoricalCrossEntropy{}
	CrossEntropy                  Loss = loss.CrossEntropy{}
)

// Callbacks
func ProgressLogger(w io.Writer) Callback {
	return net.NewProgressLogger(w)
}

func CSVLogger(filename, model string, append bool) *net.CSVLogger {
	return net.NewCSVLogger(filename, model, append)
}
