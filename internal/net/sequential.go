package net

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/FlavioCFOliveira/mnistcmp/internal/activations"
	"github.com/FlavioCFOliveira/mnistcmp/internal/data"
	"github.com/FlavioCFOliveira/mnistcmp/internal/layer"
	"github.com/FlavioCFOliveira/mnistcmp/internal/loss"
	"github.com/FlavioCFOliveira/mnistcmp/internal/opt"
	"gonum.org/v1/gonum/mat"
)

// ErrNotCompiled is returned by Fit and Evaluate before Compile.
var ErrNotCompiled = errors.New("net: model is not compiled")

// Sequential is a high-level wrapper around Network to provide a Keras-like API.
type Sequential struct {
	*Network
}

// NewSequential creates a new Sequential model.
func NewSequential(layers ...layer.Layer) *Sequential {
	return &Sequential{
		Network: &Network{
			layers: layers,
		},
	}
}

// Compile configures the model for training.
func (s *Sequential) Compile(optimizer opt.Optimizer, lossFn loss.Loss) {
	s.opt = optimizer
	s.loss = lossFn
	s.values, s.grads = nil, nil
}

// History records the per-epoch logs of a Fit call.
type History struct {
	Epochs []EpochLogs
}

// Last returns the logs of the final epoch.
func (h *History) Last() EpochLogs {
	if len(h.Epochs) == 0 {
		return EpochLogs{}
	}
	return h.Epochs[len(h.Epochs)-1]
}

// Fit trains the model for the given number of epochs. The reported epoch
// loss is the mean per-example loss, each batch weighted by its size.
func (s *Sequential) Fit(loader *data.Loader, epochs int, callbacks ...Callback) (*History, error) {
	if s.opt == nil || s.loss == nil {
		return nil, ErrNotCompiled
	}

	hist := &History{}
	for _, c := range callbacks {
		c.OnTrainBegin(epochs)
	}
	for epoch := 1; epoch <= epochs; epoch++ {
		for _, c := range callbacks {
			c.OnEpochBegin(epoch)
		}

		s.SetTraining(true)
		var lossSum float64
		var correct, seen, batches int
		for it := loader.Epoch(); it.Next(); {
			b := it.Batch()
			l, c := s.TrainBatch(b)
			lossSum += l * float64(b.Size())
			correct += c
			seen += b.Size()
			for _, cb := range callbacks {
				cb.OnBatchEnd(batches, l)
			}
			batches++
		}

		logs := EpochLogs{Epoch: epoch, Batches: batches}
		if seen > 0 {
			logs.Loss = lossSum / float64(seen)
			logs.Accuracy = float64(correct) / float64(seen)
		}
		hist.Epochs = append(hist.Epochs, logs)
		for _, c := range callbacks {
			c.OnEpochEnd(logs)
		}
	}
	for _, c := range callbacks {
		c.OnTrainEnd()
	}
	s.SetTraining(false)
	return hist, nil
}

// Evaluation is the outcome of Evaluate.
type Evaluation struct {
	// Mean per-example loss
	Loss    float64
	Correct int
	Total   int
}

// Evaluate runs the model in inference mode over every batch of loader.
func (s *Sequential) Evaluate(loader *data.Loader) (Evaluation, error) {
	if s.loss == nil {
		return Evaluation{}, ErrNotCompiled
	}

	s.SetTraining(false)
	var ev Evaluation
	var lossSum float64
	for it := loader.Epoch(); it.Next(); {
		b := it.Batch()
		out := s.Forward(b.X)
		lossSum += s.loss.Forward(out, b.Labels) * float64(b.Size())
		ev.Correct += Correct(out, b.Labels)
		ev.Total += b.Size()
	}
	if ev.Total > 0 {
		ev.Loss = lossSum / float64(ev.Total)
	}
	return ev, nil
}

// Predict performs an inference-mode forward pass and returns the output.
func (s *Sequential) Predict(x *mat.Dense) *mat.Dense {
	s.SetTraining(false)
	return s.Forward(x)
}

// PredictClasses returns the most likely class of each row of x.
func (s *Sequential) PredictClasses(x *mat.Dense) []int {
	return Argmax(s.Predict(x))
}

// Summary writes a summary of the network architecture.
func (s *Sequential) Summary(w io.Writer) {
	rule := strings.Repeat("_", 65)
	fmt.Fprintln(w, "Model: Sequential")
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "%-25s %-20s %-10s\n", "Layer (type)", "Output Shape", "Param #")
	fmt.Fprintln(w, strings.Repeat("=", 65))

	totalParams := 0
	for i, l := range s.layers {
		lType := fmt.Sprintf("%T", l)
		// Extract simple type name
		if j := strings.LastIndexByte(lType, '.'); j >= 0 {
			lType = lType[j+1:]
		}
		if d, ok := l.(*layer.Dense); ok {
			lType += "/" + activations.Name(d.Activation())
		}

		params := 0
		for _, p := range l.Params() {
			params += p.Len()
		}
		totalParams += params

		fmt.Fprintf(w, "%-25s %-20s %-10d\n", fmt.Sprintf("%s_%d", lType, i), fmt.Sprintf("(None, %d)", l.OutSize()), params)
	}
	fmt.Fprintln(w, strings.Repeat("=", 65))
	fmt.Fprintf(w, "Total params: %d\n", totalParams)
	fmt.Fprintln(w, rule)
}
