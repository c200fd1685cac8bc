package mnist

import (
	"compress/gzip"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// Scheme maps a raw 0-255 pixel intensity to a float.
type Scheme int

const (
	// ZeroOne maps intensities to [0, 1].
	ZeroOne Scheme = iota
	// SignedUnit maps intensities to [-1, 1] (mean 0.5, std 0.5).
	SignedUnit
)

// Normalize converts a raw intensity under the scheme.
func (s Scheme) Normalize(v byte) float64 {
	x := float64(v) / 255
	if s == SignedUnit {
		return (x - 0.5) / 0.5
	}
	return x
}

func (s Scheme) String() string {
	switch s {
	case ZeroOne:
		return "[0,1]"
	case SignedUnit:
		return "[-1,1]"
	default:
		return fmt.Sprintf("Scheme(%d)", int(s))
	}
}

// Set is an immutable partition of labeled images. It implements data.Set.
type Set struct {
	pixels []byte
	labels []byte
	scheme Scheme
}

// NewSet wraps raw pixels (Pixels bytes per image) and labels.
func NewSet(pixels, labels []byte, scheme Scheme) (*Set, error) {
	if len(pixels) != len(labels)*Pixels {
		return nil, errors.Wrapf(ErrFormat, "%d pixel bytes for %d labels", len(pixels), len(labels))
	}
	return &Set{pixels: pixels, labels: labels, scheme: scheme}, nil
}

// Len returns the number of images.
func (s *Set) Len() int { return len(s.labels) }

// Features returns the flattened image length.
func (s *Set) Features() int { return Pixels }

// Scheme returns the normalization applied by Example.
func (s *Set) Scheme() Scheme { return s.scheme }

// Label returns the class of image i.
func (s *Set) Label(i int) int { return int(s.labels[i]) }

// Example writes the normalized, row-major pixels of image i into dst.
func (s *Set) Example(i int, dst []float64) int {
	img := s.pixels[i*Pixels : (i+1)*Pixels]
	for j, v := range img {
		dst[j] = s.scheme.Normalize(v)
	}
	return int(s.labels[i])
}

// Load reads the train and test partitions from the gzip files in dir.
func Load(dir string, scheme Scheme) (train, test *Set, err error) {
	train, err = loadPartition(dir, TrainImages, TrainLabels, scheme)
	if err != nil {
		return nil, nil, errors.Wrap(err, "train set")
	}
	test, err = loadPartition(dir, TestImages, TestLabels, scheme)
	if err != nil {
		return nil, nil, errors.Wrap(err, "test set")
	}
	return train, test, nil
}

func loadPartition(dir, imageFile, labelFile string, scheme Scheme) (*Set, error) {
	var pixels, labels []byte
	var count int

	err := readGzip(filepath.Join(dir, imageFile), func(z *gzip.Reader) (err error) {
		pixels, count, err = ReadImages(z)
		return err
	})
	if err != nil {
		return nil, err
	}
	err = readGzip(filepath.Join(dir, labelFile), func(z *gzip.Reader) (err error) {
		labels, err = ReadLabels(z)
		return err
	})
	if err != nil {
		return nil, err
	}

	if count != len(labels) {
		return nil, errors.Wrapf(ErrFormat, "%d images but %d labels", count, len(labels))
	}
	return NewSet(pixels, labels, scheme)
}

func readGzip(path string, fn func(*gzip.Reader) error) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "open")
	}
	defer f.Close()

	z, err := gzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "gunzip %s", filepath.Base(path))
	}
	defer z.Close()

	return errors.Wrap(fn(z), filepath.Base(path))
}
