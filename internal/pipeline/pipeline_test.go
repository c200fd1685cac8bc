package pipeline

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/FlavioCFOliveira/mnistcmp/internal/mnist"
)

var quiet = log.New(io.Discard, "", 0)

func epochLines(out string) []string {
	var lines []string
	for _, l := range strings.Split(out, "\n") {
		if strings.HasPrefix(l, "Epoch [") {
			lines = append(lines, l)
		}
	}
	return lines
}

func TestRunGraph(t *testing.T) {
	cfg := testConfig(t, GraphDefaults())

	var out bytes.Buffer
	res, err := RunGraph(cfg, &out, quiet)
	if err != nil {
		t.Fatalf("RunGraph: %v", err)
	}

	lines := epochLines(out.String())
	if len(lines) != 2 || !strings.HasPrefix(lines[0], "Epoch [1/2], Loss: ") || !strings.HasPrefix(lines[1], "Epoch [2/2], Loss: ") {
		t.Errorf("epoch lines = %q", lines)
	}
	if res.Total != 50 {
		t.Errorf("Total = %d, want 50", res.Total)
	}
	if p := res.Percent(); p < 0 || p > 100 {
		t.Errorf("Percent() = %v out of range", p)
	}
	if want := fmt.Sprintf("Accuracy of the model on the 50 test images: %.2f %%\n", res.Percent()); !strings.HasSuffix(out.String(), want) {
		t.Errorf("missing accuracy line:\n%s", out.String())
	}
}

func TestRunSequential(t *testing.T) {
	cfg := testConfig(t, SequentialDefaults())
	cfg.LearningRate = 0.01
	cfg.Epochs = 3

	var out bytes.Buffer
	res, err := RunSequential(cfg, &out, quiet)
	if err != nil {
		t.Fatalf("RunSequential: %v", err)
	}

	s := out.String()
	if !strings.Contains(s, "Total params: 101770") {
		t.Errorf("missing model summary:\n%s", s)
	}
	if lines := epochLines(s); len(lines) != 3 {
		t.Errorf("got %d epoch lines, want 3", len(lines))
	}
	if !strings.Contains(s, "Test loss: ") {
		t.Errorf("missing test loss:\n%s", s)
	}
	if res.Total != 50 {
		t.Errorf("Total = %d, want 50", res.Total)
	}
	// The bands are trivially separable.
	if res.Percent() < 90 {
		t.Errorf("accuracy = %.2f%%, want >= 90%%", res.Percent())
	}
}

func TestGraphEvaluationIsDeterministic(t *testing.T) {
	cfg := testConfig(t, GraphDefaults())
	train, test, err := LoadData(cfg, mnist.SignedUnit, quiet)
	if err != nil {
		t.Fatal(err)
	}
	trainL, testL := Loaders(cfg, train, test)

	m, err := BuildGraph(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()
	hist, err := TrainGraph(cfg, m, trainL)
	if err != nil {
		t.Fatal(err)
	}
	// 200/16: 12 full batches and one of 8
	for _, e := range hist.Epochs {
		if e.Batches != 13 {
			t.Errorf("epoch %d: %d batches, want 13", e.Epoch, e.Batches)
		}
	}

	c, err := m.Freeze()
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	a, err := EvaluateGraph(c, testL)
	if err != nil {
		t.Fatal(err)
	}
	b, err := EvaluateGraph(c, testL)
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Errorf("evaluations differ: %+v vs %+v", a, b)
	}
}

func TestSequentialEvaluationIsDeterministic(t *testing.T) {
	cfg := testConfig(t, SequentialDefaults())
	cfg.DropLast = true
	train, test, err := LoadData(cfg, mnist.ZeroOne, quiet)
	if err != nil {
		t.Fatal(err)
	}
	trainL, testL := Loaders(cfg, train, test)

	m := BuildSequential(cfg)
	hist, err := TrainSequential(cfg, m, trainL)
	if err != nil {
		t.Fatal(err)
	}
	if got := hist.Last().Batches; got != 12 {
		t.Errorf("batches with DropLast = %d, want 12", got)
	}

	a, err := EvaluateSequential(m, testL)
	if err != nil {
		t.Fatal(err)
	}
	b, err := EvaluateSequential(m, testL)
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Errorf("evaluations differ: %+v vs %+v", a, b)
	}
	// DropLast only applies to training; all 50 test images are scored.
	if a.Total != 50 {
		t.Errorf("Total = %d, want 50", a.Total)
	}
}

func TestMetricsCSV(t *testing.T) {
	cfg := testConfig(t, GraphDefaults())
	cfg.MetricsCSV = filepath.Join(t.TempDir(), "metrics.csv")

	if _, err := RunGraph(cfg, io.Discard, quiet); err != nil {
		t.Fatalf("RunGraph: %v", err)
	}

	f, err := os.Open(cfg.MetricsCSV)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1+cfg.Epochs {
		t.Fatalf("got %d records, want header + %d", len(records), cfg.Epochs)
	}
	if records[1][1] != "graph" || records[1][5] != "13" {
		t.Errorf("first row = %v", records[1])
	}
}

func TestDatasetUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	for name, run := range map[string]func(Config, io.Writer, *log.Logger) (Result, error){
		"graph":      RunGraph,
		"sequential": RunSequential,
	} {
		t.Run(name, func(t *testing.T) {
			cfg := GraphDefaults()
			if name == "sequential" {
				cfg = SequentialDefaults()
			}
			cfg.DataDir = t.TempDir()
			cfg.Mirror = srv.URL + "/"

			_, err := run(cfg, io.Discard, quiet)
			if !errors.Is(err, mnist.ErrUnavailable) {
				t.Errorf("err = %v, want ErrUnavailable", err)
			}
		})
	}
}

func TestRunRejectsInvalidConfig(t *testing.T) {
	cfg := GraphDefaults()
	cfg.Epochs = 0
	if _, err := RunGraph(cfg, io.Discard, quiet); err == nil {
		t.Error("RunGraph accepted zero epochs")
	}
	cfg = SequentialDefaults()
	cfg.BatchSize = -1
	if _, err := RunSequential(cfg, io.Discard, quiet); err == nil {
		t.Error("RunSequential accepted a negative batch size")
	}
}
