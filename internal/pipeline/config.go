// Package pipeline wires the load, build, train and evaluate stages of the
// two MNIST pipelines.
package pipeline

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/FlavioCFOliveira/mnistcmp/internal/mnist"
)

// Config captures the runtime knobs for one pipeline run.
type Config struct {
	// DataDir caches the dataset files.
	DataDir string
	Mirror  string
	// Verify checks the SHA-256 of the dataset files.
	Verify bool

	Epochs       int
	BatchSize    int
	DropLast     bool
	Seed         int64
	LearningRate float64
	// Dropout rate after the hidden layer; sequential pipeline only.
	Dropout float64

	// MetricsCSV, when set, receives one CSV row per epoch.
	MetricsCSV string
}

func defaults() Config {
	return Config{
		DataDir:   "data",
		Mirror:    mnist.DefaultMirror,
		Verify:    true,
		Epochs:    5,
		BatchSize: 64,
		Seed:      1,
	}
}

// GraphDefaults returns the graph pipeline settings: SGD at 0.01.
func GraphDefaults() Config {
	c := defaults()
	c.LearningRate = 0.01
	return c
}

// SequentialDefaults returns the sequential pipeline settings: Adam at
// 0.001 and dropout 0.2.
func SequentialDefaults() Config {
	c := defaults()
	c.LearningRate = 0.001
	c.Dropout = 0.2
	return c
}

// ApplyEnv overrides fields from MNIST_* variables found by lookup
// (usually os.LookupEnv). Empty values are ignored.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		return v, ok && v != ""
	}

	if v, ok := get("MNIST_DATA_DIR"); ok {
		c.DataDir = v
	}
	if v, ok := get("MNIST_MIRROR"); ok {
		c.Mirror = v
	}
	if v, ok := get("MNIST_METRICS_CSV"); ok {
		c.MetricsCSV = v
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"MNIST_EPOCHS", &c.Epochs},
		{"MNIST_BATCH_SIZE", &c.BatchSize},
	}
	for _, f := range ints {
		if v, ok := get(f.key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s: %w", f.key, err)
			}
			*f.dst = n
		}
	}

	bools := []struct {
		key string
		dst *bool
	}{
		{"MNIST_DROP_LAST", &c.DropLast},
		{"MNIST_VERIFY", &c.Verify},
	}
	for _, f := range bools {
		if v, ok := get(f.key); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("%s: %w", f.key, err)
			}
			*f.dst = b
		}
	}

	if v, ok := get("MNIST_SEED"); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("MNIST_SEED: %w", err)
		}
		c.Seed = n
	}
	if v, ok := get("MNIST_LEARNING_RATE"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("MNIST_LEARNING_RATE: %w", err)
		}
		c.LearningRate = f
	}
	return nil
}

// Validate verifies the config is runnable.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if c.DataDir == "" {
		return errors.New("data dir must be set")
	}
	if c.Mirror == "" {
		return errors.New("mirror must be set")
	}
	if c.Epochs <= 0 {
		return fmt.Errorf("epochs must be > 0 (got %d)", c.Epochs)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch_size must be > 0 (got %d)", c.BatchSize)
	}
	if c.LearningRate <= 0 {
		return fmt.Errorf("learning_rate must be > 0 (got %v)", c.LearningRate)
	}
	if c.Dropout < 0 || c.Dropout >= 1 {
		return fmt.Errorf("dropout must be in [0, 1) (got %v)", c.Dropout)
	}
	return nil
}
