package mnist

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

func imageIDX(t *testing.T, n, rows, cols int, fill func(i int) byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	binary.Write(&buf, binary.BigEndian, [4]int32{imageMagic, int32(n), int32(rows), int32(cols)})
	for i := 0; i < n; i++ {
		for p := 0; p < rows*cols; p++ {
			buf.WriteByte(fill(i))
		}
	}
	return buf.Bytes()
}

func labelIDX(t *testing.T, labels []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	binary.Write(&buf, binary.BigEndian, [2]int32{labelMagic, int32(len(labels))})
	buf.Write(labels)
	return buf.Bytes()
}

func gzipBytes(t *testing.T, raw []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	z := gzip.NewWriter(&buf)
	if _, err := z.Write(raw); err != nil {
		t.Fatalf("gzip: %v", err)
	}
	if err := z.Close(); err != nil {
		t.Fatalf("gzip close: %v", err)
	}
	return buf.Bytes()
}

// writeDataset writes a small gzip dataset into dir. Image i of a partition
// has every pixel set to i and label i%10.
func writeDataset(t *testing.T, dir string, trainN, testN int) {
	t.Helper()
	write := func(name string, raw []byte) {
		if err := os.WriteFile(filepath.Join(dir, name), gzipBytes(t, raw), 0644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	labels := func(n int) []byte {
		l := make([]byte, n)
		for i := range l {
			l[i] = byte(i % 10)
		}
		return l
	}
	pixel := func(i int) byte { return byte(i) }

	write(TrainImages, imageIDX(t, trainN, Rows, Cols, pixel))
	write(TrainLabels, labelIDX(t, labels(trainN)))
	write(TestImages, imageIDX(t, testN, Rows, Cols, pixel))
	write(TestLabels, labelIDX(t, labels(testN)))
}
