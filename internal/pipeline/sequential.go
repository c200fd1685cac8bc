package pipeline

import (
	"fmt"
	"io"
	"log"
	"math/rand"

	"github.com/FlavioCFOliveira/mnistcmp/internal/data"
	"github.com/FlavioCFOliveira/mnistcmp/internal/mnist"
	"github.com/FlavioCFOliveira/mnistcmp/neuron"
)

// BuildSequential creates and compiles
// Flatten -> Dense(128, relu) -> Dropout -> Dense(10, softmax).
func BuildSequential(cfg Config) *neuron.Model {
	rng := rand.New(rand.NewSource(cfg.Seed))
	m := neuron.NewSequential(
		neuron.Flatten(mnist.Rows, mnist.Cols),
		neuron.Dense(mnist.Pixels, 128, neuron.ReLU, rng),
		neuron.Dropout(cfg.Dropout, 128, rng),
		neuron.Dense(128, mnist.Classes, neuron.Softmax, rng),
	)
	m.Compile(neuron.Adam(cfg.LearningRate), neuron.SparseCategoricalCrossEntropy)
	return m
}

// TrainSequential fits the model for cfg.Epochs epochs.
func TrainSequential(cfg Config, m *neuron.Model, loader *data.Loader, cbs ...neuron.Callback) (*neuron.History, error) {
	hist, err := m.Fit(loader, cfg.Epochs, cbs...)
	if err != nil {
		return nil, fmt.Errorf("train sequential: %w", err)
	}
	return hist, nil
}

// EvaluateSequential runs the model in inference mode over every test batch.
func EvaluateSequential(m *neuron.Model, loader *data.Loader) (Result, error) {
	ev, err := m.Evaluate(loader)
	if err != nil {
		return Result{}, fmt.Errorf("evaluate sequential: %w", err)
	}
	return Result{Correct: ev.Correct, Total: ev.Total, Loss: ev.Loss}, nil
}

// RunSequential runs the sequential pipeline end to end. It writes the model
// summary, the epoch lines, the test loss and the accuracy line to out.
func RunSequential(cfg Config, out io.Writer, logger *log.Logger) (Result, error) {
	if err := cfg.Validate(); err != nil {
		return Result{}, err
	}

	train, test, err := LoadData(cfg, mnist.ZeroOne, logger)
	if err != nil {
		return Result{}, err
	}
	trainL, testL := Loaders(cfg, train, test)

	m := BuildSequential(cfg)
	m.Summary(out)

	cbs, csv := callbacks(cfg, out, "sequential")
	if _, err := TrainSequential(cfg, m, trainL, cbs...); err != nil {
		return Result{}, err
	}
	if csv != nil && csv.Err() != nil {
		return Result{}, csv.Err()
	}

	res, err := EvaluateSequential(m, testL)
	if err != nil {
		return Result{}, err
	}
	fmt.Fprintf(out, "Test loss: %.4f\n", res.Loss)
	res.Report(out)
	return res, nil
}
