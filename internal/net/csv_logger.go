package net

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// CSVLogger logs training progress to a CSV file. Every row carries the
// run id so several runs can share one appended file.
type CSVLogger struct {
	BaseCallback
	Filename string
	Append   bool
	// Model names the pipeline in the model column.
	Model string
	RunID string

	file   *os.File
	writer *csv.Writer
	start  time.Time
	err    error
}

// NewCSVLogger creates a new CSVLogger with a fresh run id.
func NewCSVLogger(filename, model string, append bool) *CSVLogger {
	return &CSVLogger{
		Filename: filename,
		Append:   append,
		Model:    model,
		RunID:    uuid.New().String(),
	}
}

// Err returns the first error met while opening or writing the file.
func (c *CSVLogger) Err() error {
	return c.err
}

func (c *CSVLogger) fail(err error) {
	if c.err == nil {
		c.err = err
	}
}

func (c *CSVLogger) OnTrainBegin(epochs int) {
	mode := os.O_CREATE | os.O_WRONLY
	if c.Append {
		mode |= os.O_APPEND
	} else {
		mode |= os.O_TRUNC
	}

	file, err := os.OpenFile(c.Filename, mode, 0644)
	if err != nil {
		c.fail(fmt.Errorf("csv logger: open %s: %w", c.Filename, err))
		return
	}
	c.file = file
	c.writer = csv.NewWriter(file)
	c.start = time.Now()

	// Write header if not appending or if file is empty
	info, err := file.Stat()
	if err == nil && (info.Size() == 0 || !c.Append) {
		if err := c.writer.Write([]string{"run_id", "model", "epoch", "loss", "accuracy", "batches", "time_seconds"}); err != nil {
			c.fail(fmt.Errorf("csv logger: header: %w", err))
		}
		c.writer.Flush()
		if err := c.writer.Error(); err != nil {
			c.fail(fmt.Errorf("csv logger: header: %w", err))
		}
	}
}

func (c *CSVLogger) OnEpochEnd(logs EpochLogs) {
	if c.writer == nil {
		return
	}

	acc := ""
	if logs.Accuracy >= 0 {
		acc = strconv.FormatFloat(logs.Accuracy, 'f', 6, 64)
	}
	record := []string{
		c.RunID,
		c.Model,
		strconv.Itoa(logs.Epoch),
		strconv.FormatFloat(logs.Loss, 'f', 6, 64),
		acc,
		strconv.Itoa(logs.Batches),
		fmt.Sprintf("%.2f", time.Since(c.start).Seconds()),
	}

	if err := c.writer.Write(record); err != nil {
		c.fail(fmt.Errorf("csv logger: write: %w", err))
	}
	c.writer.Flush()
	if err := c.writer.Error(); err != nil {
		c.fail(fmt.Errorf("csv logger: flush: %w", err))
	}
}

func (c *CSVLogger) OnTrainEnd() {
	if c.file != nil {
		c.writer.Flush()
		if err := c.file.Close(); err != nil {
			c.fail(fmt.Errorf("csv logger: close: %w", err))
		}
		c.file = nil
		c.writer = nil
	}
}
