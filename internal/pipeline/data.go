package pipeline

import (
	"fmt"
	"log"

	"github.com/FlavioCFOliveira/mnistcmp/internal/data"
	"github.com/FlavioCFOliveira/mnistcmp/internal/mnist"
)

// LoadData makes sure the dataset is cached in cfg.DataDir and loads it
// with the given normalization. Retrieval failures wrap mnist.ErrUnavailable.
func LoadData(cfg Config, scheme mnist.Scheme, logger *log.Logger) (train, test *mnist.Set, err error) {
	d := mnist.NewDownloader()
	d.Mirror = cfg.Mirror
	d.Logger = logger
	if !cfg.Verify {
		d.Checksums = nil
	}

	if err := d.Fetch(cfg.DataDir); err != nil {
		return nil, nil, fmt.Errorf("load data: %w", err)
	}
	train, test, err = mnist.Load(cfg.DataDir, scheme)
	if err != nil {
		return nil, nil, fmt.Errorf("load data: %w", err)
	}
	return train, test, nil
}

// Loaders batches the two sets: shuffled training batches, fixed-order
// test batches.
func Loaders(cfg Config, train, test data.Set) (trainL, testL *data.Loader) {
	trainL = data.NewLoader(train, data.Options{
		BatchSize: cfg.BatchSize,
		Shuffle:   true,
		DropLast:  cfg.DropLast,
		Seed:      cfg.Seed,
	})
	testL = data.NewLoader(test, data.Options{BatchSize: cfg.BatchSize})
	return trainL, testL
}
