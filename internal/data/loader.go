// Package data groups labeled examples into mini-batches.
package data

import (
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// Set is an ordered, read-only collection of labeled examples.
type Set interface {
	// Len returns the number of examples.
	Len() int

	// Features returns the length of one flattened example.
	Features() int

	// Example writes example i into dst (len(dst) == Features()) and
	// returns its class label.
	Example(i int, dst []float64) int
}

// Batch is one mini-batch: X holds one flattened example per row.
type Batch struct {
	X      *mat.Dense
	Labels []int
}

// Size returns the number of examples in the batch.
func (b Batch) Size() int {
	return len(b.Labels)
}

// Options configures a Loader.
type Options struct {
	BatchSize int
	// Shuffle draws a fresh permutation every epoch.
	Shuffle bool
	// DropLast discards the final batch when it is smaller than BatchSize.
	DropLast bool
	Seed     int64
}

// Loader regroups a Set into batches once per epoch.
type Loader struct {
	set  Set
	opts Options
	rng  *rand.Rand
}

// NewLoader creates a loader over set. It panics on a non-positive batch size.
func NewLoader(set Set, opts Options) *Loader {
	if opts.BatchSize <= 0 {
		panic(fmt.Sprintf("data: batch size must be > 0 (got %d)", opts.BatchSize))
	}
	return &Loader{
		set:  set,
		opts: opts,
		rng:  rand.New(rand.NewSource(opts.Seed)),
	}
}

// Len returns the number of examples behind the loader.
func (l *Loader) Len() int {
	return l.set.Len()
}

// BatchSize returns the configured batch size.
func (l *Loader) BatchSize() int {
	return l.opts.BatchSize
}

// NumBatches returns how many batches one epoch yields.
func (l *Loader) NumBatches() int {
	n, b := l.set.Len(), l.opts.BatchSize
	if l.opts.DropLast {
		return n / b
	}
	return (n + b - 1) / b
}

// Epoch starts a new pass over the set.
func (l *Loader) Epoch() *Iterator {
	n := l.set.Len()
	var order []int
	if l.opts.Shuffle {
		order = l.rng.Perm(n)
	} else {
		order = make([]int, n)
		for i := range order {
			order[i] = i
		}
	}
	return &Iterator{loader: l, order: order, remaining: l.NumBatches()}
}

// Iterator walks the batches of one epoch in order.
type Iterator struct {
	loader    *Loader
	order     []int
	pos       int
	remaining int
	cur       Batch
}

// Next advances to the next batch and reports whether one is available.
func (it *Iterator) Next() bool {
	if it.remaining == 0 {
		return false
	}
	it.remaining--

	size := it.loader.opts.BatchSize
	if left := len(it.order) - it.pos; left < size {
		size = left
	}
	features := it.loader.set.Features()
	x := mat.NewDense(size, features, nil)
	labels := make([]int, size)
	for r := 0; r < size; r++ {
		labels[r] = it.loader.set.Example(it.order[it.pos+r], x.RawRowView(r))
	}
	it.pos += size
	it.cur = Batch{X: x, Labels: labels}
	return true
}

// Batch returns the current batch.
func (it *Iterator) Batch() Batch {
	return it.cur
}
