package pipeline

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/FlavioCFOliveira/mnistcmp/internal/mnist"
)

// writeDigits writes a tiny gzip IDX dataset where an image of class c has
// a bright horizontal band on rows 2c..2c+2 and is dark elsewhere.
func writeDigits(t *testing.T, dir string, trainN, testN int) {
	t.Helper()
	write := func(name string, header []int32, body []byte) {
		var raw bytes.Buffer
		binary.Write(&raw, binary.BigEndian, header)
		raw.Write(body)

		var gz bytes.Buffer
		z := gzip.NewWriter(&gz)
		z.Write(raw.Bytes())
		if err := z.Close(); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(dir, name), gz.Bytes(), 0644); err != nil {
			t.Fatal(err)
		}
	}
	partition := func(images, labels string, n int) {
		pixels := make([]byte, n*mnist.Pixels)
		ls := make([]byte, n)
		for i := 0; i < n; i++ {
			c := i % mnist.Classes
			ls[i] = byte(c)
			img := pixels[i*mnist.Pixels : (i+1)*mnist.Pixels]
			for r := 2 * c; r < 2*c+3; r++ {
				for col := 0; col < mnist.Cols; col++ {
					img[r*mnist.Cols+col] = 255
				}
			}
		}
		write(images, []int32{0x803, int32(n), mnist.Rows, mnist.Cols}, pixels)
		write(labels, []int32{0x801, int32(n)}, ls)
	}
	partition(mnist.TrainImages, mnist.TrainLabels, trainN)
	partition(mnist.TestImages, mnist.TestLabels, testN)
}

// testConfig points cfg at a fixture dataset and an unreachable mirror.
func testConfig(t *testing.T, cfg Config) Config {
	t.Helper()
	cfg.DataDir = t.TempDir()
	cfg.Mirror = "http://127.0.0.1:1/"
	cfg.Verify = false
	cfg.Epochs = 2
	cfg.BatchSize = 16
	writeDigits(t, cfg.DataDir, 200, 50)
	return cfg
}
