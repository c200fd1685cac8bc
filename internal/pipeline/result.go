package pipeline

import (
	"fmt"
	"io"

	"github.com/FlavioCFOliveira/mnistcmp/internal/net"
	"github.com/FlavioCFOliveira/mnistcmp/neuron"
)

// Result is the outcome of the evaluation stage.
type Result struct {
	Correct int
	Total   int
	// Mean test loss
	Loss float64
}

// Percent returns 100*Correct/Total, or 0 for an empty test set.
func (r Result) Percent() float64 {
	if r.Total == 0 {
		return 0
	}
	return 100 * float64(r.Correct) / float64(r.Total)
}

// Report writes the accuracy line.
func (r Result) Report(w io.Writer) {
	fmt.Fprintf(w, "Accuracy of the model on the %d test images: %.2f %%\n", r.Total, r.Percent())
}

// callbacks returns the progress logger plus the CSV logger when
// cfg.MetricsCSV is set.
func callbacks(cfg Config, out io.Writer, model string) ([]net.Callback, *net.CSVLogger) {
	cbs := []net.Callback{neuron.ProgressLogger(out)}
	if cfg.MetricsCSV == "" {
		return cbs, nil
	}
	csv := neuron.CSVLogger(cfg.MetricsCSV, model, true)
	return append(cbs, csv), csv
}
