// Package series holds the append-only time history of derived quantities.
package series

import (
	"errors"
	"fmt"
	"math"
	"slices"
)

var (
	ErrWidthMismatch = errors.New("sample width does not match quantity count")
	ErrOutOfOrder    = errors.New("sample time precedes the last stored sample")
	ErrUnknownName   = errors.New("unknown quantity")
)

// Sample is one timestamped row. Values are in quantity order; NaN marks a
// quantity that was undefined at this time.
type Sample struct {
	Time   float64
	Values []float64
}

// Defined reports whether quantity i carries a value.
func (s Sample) Defined(i int) bool {
	return !math.IsNaN(s.Values[i])
}

// Store keeps every sample in order plus, per quantity, the parallel
// sequences of defined values and their times. Nothing is ever removed.
type Store struct {
	names   []string
	index   map[string]int
	samples []Sample
	times   [][]float64
	values  [][]float64
}

func NewStore(names []string) *Store {
	index := make(map[string]int, len(names))
	for i, n := range names {
		index[n] = i
	}
	return &Store{
		names:  slices.Clone(names),
		index:  index,
		times:  make([][]float64, len(names)),
		values: make([][]float64, len(names)),
	}
}

// Append stores a sample. The values slice is copied.
func (s *Store) Append(sample Sample) error {
	if len(sample.Values) != len(s.names) {
		return fmt.Errorf("%w: got %d, want %d", ErrWidthMismatch, len(sample.Values), len(s.names))
	}
	if n := len(s.samples); n > 0 && sample.Time < s.samples[n-1].Time {
		return fmt.Errorf("%w: %g < %g", ErrOutOfOrder, sample.Time, s.samples[n-1].Time)
	}
	stored := Sample{Time: sample.Time, Values: slices.Clone(sample.Values)}
	s.samples = append(s.samples, stored)
	for i, v := range stored.Values {
		if math.IsNaN(v) {
			continue
		}
		s.times[i] = append(s.times[i], stored.Time)
		s.values[i] = append(s.values[i], v)
	}
	return nil
}

// Len is the number of samples appended so far.
func (s *Store) Len() int { return len(s.samples) }

func (s *Store) Names() []string { return slices.Clone(s.names) }

// At returns a copy of sample i.
func (s *Store) At(i int) Sample {
	sm := s.samples[i]
	return Sample{Time: sm.Time, Values: slices.Clone(sm.Values)}
}

// Last returns the newest sample.
func (s *Store) Last() (Sample, bool) {
	if len(s.samples) == 0 {
		return Sample{}, false
	}
	return s.At(len(s.samples) - 1), true
}

// Series returns copies of the defined values of one quantity and the times
// they were taken at.
func (s *Store) Series(name string) (times, values []float64, err error) {
	i, ok := s.index[name]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownName, name)
	}
	return slices.Clone(s.times[i]), slices.Clone(s.values[i]), nil
}
