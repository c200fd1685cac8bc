package neuron

import (
	"bytes"
	"path/filepath"
	"strings"
	"math/rand"
	"testing"

	"github.com/FlavioCFOliveira/mnistcmp/internal/data"
)

func TestFacadeBuildsTrainableModel(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	m := NewSequential(
		Flatten(1, 2),
		Dense(2, 4, ReLU, rng),
		Dropout(0.2, 4, rng),
		Dense(4, 2, Softmax, rng),
	)
	m.Compile(Adam(0.01), SparseCategoricalCrossEntropy)

	set, err := data.NewSliceSet([][]float64{{0, 1}, {1, 0}, {0, 0.9}, {0.8, 0}}, []int{0, 1, 0, 1})
	if err != nil {
		t.Fatal(err)
	}
	hist, err := m.Fit(data.NewLoader(set, data.Options{BatchSize: 2}), 3)
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	if len(hist.Epochs) != 3 {
		t.Errorf("history has %d epochs, want 3", len(hist.Epochs))
	}
	if got := m.NumParams(); got != 2*4+4+4*2+2 {
		t.Errorf("NumParams() = %d", got)
	}
}

func TestFacadeLinearOutputWithSGD(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	m := NewSequential(
		Dense(2, 8, ReLU, rng),
		Dense(8, 2, Linear, rng),
	)
	m.Compile(SGD(0.5), CrossEntropy)

	set, err := data.NewSliceSet([][]float64{{0, 1}, {1, 0}, {0, 0.9}, {0.8, 0}}, []int{0, 1, 0, 1})
	if err != nil {
		t.Fatal(err)
	}
	var progress bytes.Buffer
	csvPath := filepath.Join(t.TempDir(), "metrics.csv")
	csv := CSVLogger(csvPath, "sequential", false)

	hist, err := m.Fit(data.NewLoader(set, data.Options{BatchSize: 4}), 50, ProgressLogger(&progress), csv)
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	if err := csv.Err(); err != nil {
		t.Fatalf("csv logger: %v", err)
	}
	if first, last := hist.Epochs[0].Loss, hist.Last().Loss; last >= first {
		t.Errorf("loss went from %v to %v, want a decrease", first, last)
	}
	if !strings.HasPrefix(progress.String(), "Epoch [1/50], Loss: ") {
		t.Errorf("progress output = %q", progress.String())
	}
}
