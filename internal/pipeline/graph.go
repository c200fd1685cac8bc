package pipeline

import (
	"fmt"
	"io"
	"log"

	"github.com/FlavioCFOliveira/mnistcmp/internal/data"
	"github.com/FlavioCFOliveira/mnistcmp/internal/graph"
	"github.com/FlavioCFOliveira/mnistcmp/internal/loss"
	"github.com/FlavioCFOliveira/mnistcmp/internal/mnist"
	"github.com/FlavioCFOliveira/mnistcmp/internal/net"
)

// GraphSizes is the graph pipeline topology, input first.
var GraphSizes = []int{mnist.Pixels, 128, 64, mnist.Classes}

// BuildGraph creates the trainable graph with the batch dimension set to
// cfg.BatchSize.
func BuildGraph(cfg Config) (*graph.MLP, error) {
	m, err := graph.NewMLP(graph.MLPConfig{
		Sizes:        GraphSizes,
		Batch:        cfg.BatchSize,
		LearningRate: cfg.LearningRate,
		Seed:         cfg.Seed,
	})
	if err != nil {
		return nil, fmt.Errorf("build graph: %w", err)
	}
	return m, nil
}

// TrainGraph runs cfg.Epochs epochs of SGD. The loss reported for an epoch
// is the loss of its last batch.
func TrainGraph(cfg Config, m *graph.MLP, loader *data.Loader, cbs ...net.Callback) (*net.History, error) {
	hist := &net.History{}
	for _, c := range cbs {
		c.OnTrainBegin(cfg.Epochs)
	}
	defer func() {
		for _, c := range cbs {
			c.OnTrainEnd()
		}
	}()
	for epoch := 1; epoch <= cfg.Epochs; epoch++ {
		for _, c := range cbs {
			c.OnEpochBegin(epoch)
		}

		logs := net.EpochLogs{Epoch: epoch, Accuracy: -1}
		for it := loader.Epoch(); it.Next(); logs.Batches++ {
			l, err := m.Step(it.Batch())
			if err != nil {
				return hist, fmt.Errorf("train graph: epoch %d batch %d: %w", epoch, logs.Batches, err)
			}
			logs.Loss = l
			for _, c := range cbs {
				c.OnBatchEnd(logs.Batches, l)
			}
		}

		hist.Epochs = append(hist.Epochs, logs)
		for _, c := range cbs {
			c.OnEpochEnd(logs)
		}
	}
	return hist, nil
}

// EvaluateGraph counts argmax hits of the frozen classifier over every test
// batch. Loss is the mean cross entropy.
func EvaluateGraph(c *graph.Classifier, loader *data.Loader) (Result, error) {
	var r Result
	var lossSum float64
	for it := loader.Epoch(); it.Next(); {
		b := it.Batch()
		logits, err := c.Logits(b)
		if err != nil {
			return Result{}, fmt.Errorf("evaluate graph: %w", err)
		}
		lossSum += loss.CrossEntropy{}.Forward(logits, b.Labels) * float64(b.Size())
		r.Correct += net.Correct(logits, b.Labels)
		r.Total += b.Size()
	}
	if r.Total > 0 {
		r.Loss = lossSum / float64(r.Total)
	}
	return r, nil
}

// RunGraph runs the graph pipeline end to end, writing the epoch lines and
// the accuracy line to out.
func RunGraph(cfg Config, out io.Writer, logger *log.Logger) (Result, error) {
	if err := cfg.Validate(); err != nil {
		return Result{}, err
	}

	train, test, err := LoadData(cfg, mnist.SignedUnit, logger)
	if err != nil {
		return Result{}, err
	}
	trainL, testL := Loaders(cfg, train, test)

	m, err := BuildGraph(cfg)
	if err != nil {
		return Result{}, err
	}
	defer m.Close()

	cbs, csv := callbacks(cfg, out, "graph")
	if _, err := TrainGraph(cfg, m, trainL, cbs...); err != nil {
		return Result{}, err
	}
	if csv != nil && csv.Err() != nil {
		return Result{}, csv.Err()
	}

	c, err := m.Freeze()
	if err != nil {
		return Result{}, fmt.Errorf("freeze graph: %w", err)
	}
	defer c.Close()

	res, err := EvaluateGraph(c, testL)
	if err != nil {
		return Result{}, err
	}
	res.Report(out)
	return res, nil
}
