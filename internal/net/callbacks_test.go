package net

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestProgressLogger(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgressLogger(&buf)
	p.OnTrainBegin(5)
	p.OnEpochEnd(EpochLogs{Epoch: 1, Loss: 0.123456})
	p.OnEpochEnd(EpochLogs{Epoch: 5, Loss: 2})

	want := "Epoch [1/5], Loss: 0.1235\nEpoch [5/5], Loss: 2.0000\n"
	if buf.String() != want {
		t.Errorf("output = %q, want %q", buf.String(), want)
	}
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	return records
}

func runCSV(c *CSVLogger, logs ...EpochLogs) {
	c.OnTrainBegin(len(logs))
	for _, l := range logs {
		c.OnEpochEnd(l)
	}
	c.OnTrainEnd()
}

func TestCSVLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metrics.csv")
	c := NewCSVLogger(path, "sequential", false)
	runCSV(c,
		EpochLogs{Epoch: 1, Loss: 0.5, Accuracy: 0.9, Batches: 938},
		EpochLogs{Epoch: 2, Loss: 0.25, Accuracy: -1, Batches: 938},
	)
	if err := c.Err(); err != nil {
		t.Fatalf("Err() = %v", err)
	}

	records := readCSV(t, path)
	if len(records) != 3 {
		t.Fatalf("got %d records, want header + 2", len(records))
	}
	if records[0][0] != "run_id" || records[0][4] != "accuracy" {
		t.Errorf("header = %v", records[0])
	}
	row := records[1]
	if _, err := uuid.Parse(row[0]); err != nil {
		t.Errorf("run id %q is not a uuid: %v", row[0], err)
	}
	if row[1] != "sequential" || row[2] != "1" || row[3] != "0.500000" || row[4] != "0.900000" || row[5] != "938" {
		t.Errorf("row = %v", row)
	}
	if records[2][4] != "" {
		t.Errorf("unmeasured accuracy = %q, want empty", records[2][4])
	}
}

func TestCSVLoggerAppend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metrics.csv")
	first := NewCSVLogger(path, "graph", true)
	runCSV(first, EpochLogs{Epoch: 1, Accuracy: -1})
	second := NewCSVLogger(path, "graph", true)
	runCSV(second, EpochLogs{Epoch: 1, Accuracy: -1})

	records := readCSV(t, path)
	if len(records) != 3 {
		t.Fatalf("got %d records, want one header and 2 rows", len(records))
	}
	if records[1][0] == records[2][0] {
		t.Error("both runs share a run id")
	}
}

func TestCSVLoggerOpenError(t *testing.T) {
	c := NewCSVLogger(filepath.Join(t.TempDir(), "missing", "metrics.csv"), "graph", false)
	runCSV(c, EpochLogs{Epoch: 1})
	if c.Err() == nil {
		t.Error("expected an open error")
	}
}

func TestCSVLoggerHeaderWriteError(t *testing.T) {
	// writes to /dev/full fail with ENOSPC
	if _, err := os.Stat("/dev/full"); err != nil {
		t.Skip("no /dev/full on this system")
	}
	c := NewCSVLogger("/dev/full", "graph", false)
	runCSV(c, EpochLogs{Epoch: 1})
	if c.Err() == nil || !strings.Contains(c.Err().Error(), "header") {
		t.Errorf("Err() = %v, want a header write error", c.Err())
	}
}
