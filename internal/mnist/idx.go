// Package mnist loads the MNIST handwritten digit dataset from its gzip
// IDX files and downloads them into a local cache directory.
package mnist

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

const (
	imageMagic = 0x00000803
	labelMagic = 0x00000801

	// Rows and Cols are the image dimensions.
	Rows = 28
	Cols = 28
	// Pixels is the length of one flattened image.
	Pixels = Rows * Cols
	// Classes is the number of digit labels.
	Classes = 10
)

// ErrFormat reports a malformed IDX stream.
var ErrFormat = errors.New("mnist: malformed idx data")

// ReadImages parses an uncompressed IDX image stream and returns the
// pixels of all images back to back, one byte per pixel.
func ReadImages(r io.Reader) (pixels []byte, count int, err error) {
	var header [4]int32
	if err := binary.Read(r, binary.BigEndian, &header); err != nil {
		return nil, 0, errors.Wrapf(ErrFormat, "image header: %v", err)
	}
	magic, n, rows, cols := header[0], header[1], header[2], header[3]
	if magic != imageMagic {
		return nil, 0, errors.Wrapf(ErrFormat, "image magic %#x", magic)
	}
	if n < 0 {
		return nil, 0, errors.Wrapf(ErrFormat, "image count %d", n)
	}
	if rows != Rows || cols != Cols {
		return nil, 0, errors.Wrapf(ErrFormat, "image size %dx%d, want %dx%d", rows, cols, Rows, Cols)
	}

	pixels, err = readExactly(r, int64(n)*Pixels)
	if err != nil {
		return nil, 0, errors.Wrapf(ErrFormat, "reading %d images: %v", n, err)
	}
	return pixels, int(n), nil
}

// ReadLabels parses an uncompressed IDX label stream.
func ReadLabels(r io.Reader) ([]byte, error) {
	var header [2]int32
	if err := binary.Read(r, binary.BigEndian, &header); err != nil {
		return nil, errors.Wrapf(ErrFormat, "label header: %v", err)
	}
	magic, n := header[0], header[1]
	if magic != labelMagic {
		return nil, errors.Wrapf(ErrFormat, "label magic %#x", magic)
	}
	if n < 0 {
		return nil, errors.Wrapf(ErrFormat, "label count %d", n)
	}

	labels, err := readExactly(r, int64(n))
	if err != nil {
		return nil, errors.Wrapf(ErrFormat, "reading %d labels: %v", n, err)
	}
	for i, l := range labels {
		if l >= Classes {
			return nil, errors.Wrapf(ErrFormat, "label %d at index %d", l, i)
		}
	}
	return labels, nil
}

// readExactly reads n bytes from r. The buffer grows with the data
// actually read, so a forged count cannot force a huge allocation.
func readExactly(r io.Reader, n int64) ([]byte, error) {
	b, err := io.ReadAll(io.LimitReader(r, n))
	if err != nil {
		return nil, err
	}
	if int64(len(b)) != n {
		return nil, io.ErrUnexpectedEOF
	}
	return b, nil
}
