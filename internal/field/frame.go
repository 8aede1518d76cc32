package field

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"
)

// Surface holds the faces of one named boundary surface for one timestep.
type Surface struct {
	Sf      []r3.Vec
	Cf      []r3.Vec
	Scalars map[string][]float64
	Vectors map[string][]r3.Vec
}

// Frame is an in-memory snapshot of one timestep. It implements Accessor.
type Frame struct {
	Time      float64
	TimeIndex int
	Dt        float64
	End       bool
	Surfaces  map[string]*Surface
}

// NewFrame creates an empty frame at the given time.
func NewFrame(time float64, index int, dt float64) *Frame {
	return &Frame{
		Time:      time,
		TimeIndex: index,
		Dt:        dt,
		Surfaces:  make(map[string]*Surface),
	}
}

// AddSurface registers a surface with its area vectors and face centres.
func (f *Frame) AddSurface(name string, sf, cf []r3.Vec) *Surface {
	s := &Surface{
		Sf:      sf,
		Cf:      cf,
		Scalars: make(map[string][]float64),
		Vectors: make(map[string][]r3.Vec),
	}
	f.Surfaces[name] = s
	return s
}

// Validate checks that every field and centre list matches the face count.
func (f *Frame) Validate() error {
	for name, s := range f.Surfaces {
		n := len(s.Sf)
		if len(s.Cf) != 0 && len(s.Cf) != n {
			return fmt.Errorf("%w: surface %q has %d centres for %d faces", ErrMisaligned, name, len(s.Cf), n)
		}
		for fld, v := range s.Scalars {
			if len(v) != n {
				return fmt.Errorf("%w: field %q on %q has %d values for %d faces", ErrMisaligned, fld, name, len(v), n)
			}
		}
		for fld, v := range s.Vectors {
			if len(v) != n {
				return fmt.Errorf("%w: field %q on %q has %d values for %d faces", ErrMisaligned, fld, name, len(v), n)
			}
		}
	}
	return nil
}

func (f *Frame) HasSurface(name string) bool {
	_, ok := f.Surfaces[name]
	return ok
}

// HasField reports whether any surface carries the field.
func (f *Frame) HasField(name string) bool {
	for _, s := range f.Surfaces {
		if _, ok := s.Scalars[name]; ok {
			return true
		}
		if _, ok := s.Vectors[name]; ok {
			return true
		}
	}
	return false
}

func (f *Frame) surface(name string) (*Surface, error) {
	s, ok := f.Surfaces[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSurface, name)
	}
	return s, nil
}

func (f *Frame) SurfaceAreaVectors(surface string) ([]r3.Vec, error) {
	s, err := f.surface(surface)
	if err != nil {
		return nil, err
	}
	return s.Sf, nil
}

func (f *Frame) FaceCentres(surface string) ([]r3.Vec, error) {
	s, err := f.surface(surface)
	if err != nil {
		return nil, err
	}
	if len(s.Cf) != len(s.Sf) {
		return nil, fmt.Errorf("%w: surface %q has no face centres", ErrMisaligned, surface)
	}
	return s.Cf, nil
}

func (f *Frame) ScalarValues(field, surface string) ([]float64, error) {
	s, err := f.surface(surface)
	if err != nil {
		return nil, err
	}
	v, ok := s.Scalars[field]
	if !ok {
		return nil, fmt.Errorf("%w: %q on surface %q", ErrUnknownField, field, surface)
	}
	return v, nil
}

func (f *Frame) VectorValues(field, surface string) ([]r3.Vec, error) {
	s, err := f.surface(surface)
	if err != nil {
		return nil, err
	}
	v, ok := s.Vectors[field]
	if !ok {
		return nil, fmt.Errorf("%w: %q on surface %q", ErrUnknownField, field, surface)
	}
	return v, nil
}

func (f *Frame) CurrentTime() float64 { return f.Time }
func (f *Frame) CurrentTimeIndex() int { return f.TimeIndex }
func (f *Frame) DeltaT() float64 { return f.Dt }
