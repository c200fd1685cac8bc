package data

import "fmt"

// SliceSet is an in-memory Set backed by feature rows.
type SliceSet struct {
	rows   [][]float64
	labels []int
}

// NewSliceSet builds a set from rows and labels of equal length.
func NewSliceSet(rows [][]float64, labels []int) (*SliceSet, error) {
	if len(rows) != len(labels) {
		return nil, fmt.Errorf("data: %d rows but %d labels", len(rows), len(labels))
	}
	for i, r := range rows {
		if len(r) != len(rows[0]) {
			return nil, fmt.Errorf("data: row %d has %d features, want %d", i, len(r), len(rows[0]))
		}
	}
	return &SliceSet{rows: rows, labels: labels}, nil
}

func (s *SliceSet) Len() int { return len(s.rows) }

func (s *SliceSet) Features() int {
	if len(s.rows) == 0 {
		return 0
	}
	return len(s.rows[0])
}

func (s *SliceSet) Example(i int, dst []float64) int {
	copy(dst, s.rows[i])
	return s.labels[i]
}
