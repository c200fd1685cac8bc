package net

import (
	"fmt"
	"io"
)

// EpochLogs summarizes one training epoch.
type EpochLogs struct {
	// Epoch is 1-based.
	Epoch   int
	Loss    float64
	Batches int
	// Training accuracy in [0, 1]; negative when not measured.
	Accuracy float64
}

// Callback defines the interface for training callbacks. Callbacks only
// see logs, so any training loop can drive them.
type Callback interface {
	OnTrainBegin(epochs int)
	OnTrainEnd()
	OnEpochBegin(epoch int)
	OnEpochEnd(logs EpochLogs)
	OnBatchEnd(batch int, loss float64)
}

// BaseCallback provides default empty implementations for Callback.
type BaseCallback struct{}

func (BaseCallback) OnTrainBegin(epochs int)            {}
func (BaseCallback) OnTrainEnd()                        {}
func (BaseCallback) OnEpochBegin(epoch int)             {}
func (BaseCallback) OnEpochEnd(logs EpochLogs)          {}
func (BaseCallback) OnBatchEnd(batch int, loss float64) {}

// ProgressLogger writes "Epoch [i/n], Loss: x" after every epoch.
type ProgressLogger struct {
	BaseCallback
	Out io.Writer

	epochs int
}

// NewProgressLogger creates a ProgressLogger writing to w.
func NewProgressLogger(w io.Writer) *ProgressLogger {
	return &ProgressLogger{Out: w}
}

func (p *ProgressLogger) OnTrainBegin(epochs int) {
	p.epochs = epochs
}

func (p *ProgressLogger) OnEpochEnd(logs EpochLogs) {
	fmt.Fprintf(p.Out, "Epoch [%d/%d], Loss: %.4f\n", logs.Epoch, p.epochs, logs.Loss)
}
