// Package field defines what the statistics engine needs from the running
// simulation: surface geometry, face-centred field values, the clock, and a
// global reduction over all workers that own faces of a surface.
package field

import (
	"errors"

	"gonum.org/v1/gonum/spatial/r3"
)

var (
	ErrUnknownSurface = errors.New("unknown surface")
	ErrUnknownField   = errors.New("unknown field")
	ErrMisaligned     = errors.New("field values are not aligned with surface faces")
)

// Catalog answers name lookups. The engine validates its configuration
// against it once, before any timestep is processed.
type Catalog interface {
	HasSurface(name string) bool
	HasField(name string) bool
}

// Accessor exposes the current timestep of the simulation. Values returned
// for a surface are aligned index-for-index with its area vectors and cover
// only the faces owned by the calling worker.
type Accessor interface {
	Catalog

	// SurfaceAreaVectors returns one vector per face: outward normal times area.
	SurfaceAreaVectors(surface string) ([]r3.Vec, error)
	// FaceCentres returns the position of each face centre.
	FaceCentres(surface string) ([]r3.Vec, error)
	ScalarValues(field, surface string) ([]float64, error)
	VectorValues(field, surface string) ([]r3.Vec, error)

	CurrentTime() float64
	CurrentTimeIndex() int
	DeltaT() float64
}

// Reducer sums a worker-local partial over every worker. Each call is a
// barrier: all workers must issue the same calls in the same order.
type Reducer interface {
	SumScalar(local float64) float64
	SumVec(local r3.Vec) r3.Vec
}

// LocalReducer is the single-process reduction.
type LocalReducer struct{}

func (LocalReducer) SumScalar(local float64) float64 { return local }

func (LocalReducer) SumVec(local r3.Vec) r3.Vec { return local }
