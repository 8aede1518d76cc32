// Package integrate computes area-weighted integrals over named surfaces.
//
// Every public method reduces its worker-local partial sums through the
// configured field.Reducer exactly once per partial, in a fixed order, and
// only then judges the result. A worker that owns no faces of a surface, or
// whose lookup failed, still takes part in the reduction.
package integrate

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/sanspareilsmyn/pumplens/internal/field"
)

type Integrator struct {
	acc     field.Accessor
	reducer field.Reducer
}

func New(acc field.Accessor, reducer field.Reducer) *Integrator {
	if reducer == nil {
		reducer = field.LocalReducer{}
	}
	return &Integrator{acc: acc, reducer: reducer}
}

// Area returns the total face area of the surface set.
func (in *Integrator) Area(surfaces []string) (float64, error) {
	var local float64
	err := eachSurface(surfaces, func(name string) error {
		sf, err := in.acc.SurfaceAreaVectors(name)
		if err != nil {
			return err
		}
		local += floats.Sum(magnitudes(sf))
		return nil
	})
	total := in.reducer.SumScalar(local)
	if err != nil {
		return 0, err
	}
	return total, nil
}

// Flow sums a face-flux scalar field (already integrated per face, like phi).
func (in *Integrator) Flow(fieldName string, surfaces []string) (float64, error) {
	var local float64
	err := eachSurface(surfaces, func(name string) error {
		phi, err := in.acc.ScalarValues(fieldName, name)
		if err != nil {
			return err
		}
		local += floats.Sum(phi)
		return nil
	})
	total := in.reducer.SumScalar(local)
	if err != nil {
		return 0, err
	}
	return finite(total)
}

// VectorFlux sums U·Sf for a face-centred vector field.
func (in *Integrator) VectorFlux(fieldName string, surfaces []string) (float64, error) {
	var local float64
	err := eachSurface(surfaces, func(name string) error {
		sf, err := in.acc.SurfaceAreaVectors(name)
		if err != nil {
			return err
		}
		u, err := in.acc.VectorValues(fieldName, name)
		if err != nil {
			return err
		}
		if len(u) != len(sf) {
			return fmt.Errorf("%w: %q on %q", field.ErrMisaligned, fieldName, name)
		}
		for i := range sf {
			local += r3.Dot(u[i], sf[i])
		}
		return nil
	})
	total := in.reducer.SumScalar(local)
	if err != nil {
		return 0, err
	}
	return finite(total)
}

// AreaAverage returns sum(v*|Sf|)/sum(|Sf|) of a scalar field.
func (in *Integrator) AreaAverage(fieldName string, surfaces []string) (float64, error) {
	return in.WeightedAverage(surfaces, func(name string) ([]float64, error) {
		return in.acc.ScalarValues(fieldName, name)
	})
}

// WeightedAverage is AreaAverage over values produced per surface by fn.
func (in *Integrator) WeightedAverage(surfaces []string, fn func(surface string) ([]float64, error)) (float64, error) {
	var localSum, localArea float64
	err := eachSurface(surfaces, func(name string) error {
		sf, err := in.acc.SurfaceAreaVectors(name)
		if err != nil {
			return err
		}
		v, err := fn(name)
		if err != nil {
			return err
		}
		if len(v) != len(sf) {
			return fmt.Errorf("%w: surface %q", field.ErrMisaligned, name)
		}
		mag := magnitudes(sf)
		localSum += floats.Dot(v, mag)
		localArea += floats.Sum(mag)
		return nil
	})
	sum := in.reducer.SumScalar(localSum)
	area := in.reducer.SumScalar(localArea)
	if err != nil {
		return math.NaN(), err
	}
	if area == 0 {
		return math.NaN(), fmt.Errorf("%w: zero area", ErrIllDefined)
	}
	return finite(sum / area)
}

// Moment integrates the axial moment of the pressure traction about origin.
// The sign is chosen so that a machine absorbing power (pump, compressor)
// reports a positive moment: M = -sum((Cf-origin) x (t*Sf)) . unit(omega).
// A zero omega comes from configuration, so every worker skips the
// reduction alike.
func (in *Integrator) Moment(stress *StressEvaluator, surfaces []string, origin, omega r3.Vec) (float64, error) {
	if r3.Norm(omega) == 0 {
		return math.NaN(), fmt.Errorf("%w: zero rotation axis", ErrIllDefined)
	}
	var local r3.Vec
	err := eachSurface(surfaces, func(name string) error {
		sf, err := in.acc.SurfaceAreaVectors(name)
		if err != nil {
			return err
		}
		cf, err := in.acc.FaceCentres(name)
		if err != nil {
			return err
		}
		tn, err := stress.NormalStress(in.acc, name)
		if err != nil {
			return err
		}
		if len(tn) != len(sf) {
			return fmt.Errorf("%w: surface %q", field.ErrMisaligned, name)
		}
		for i := range sf {
			force := r3.Scale(tn[i], sf[i])
			local = r3.Add(local, r3.Cross(r3.Sub(cf[i], origin), force))
		}
		return nil
	})
	total := in.reducer.SumVec(local)
	if err != nil {
		return math.NaN(), err
	}
	return finite(-r3.Dot(total, r3.Unit(omega)))
}

// eachSurface stops at the first failing surface. Callers still reduce
// their partial sums afterwards and only then report the error.
func eachSurface(surfaces []string, fn func(name string) error) error {
	for _, name := range surfaces {
		if err := fn(name); err != nil {
			return err
		}
	}
	return nil
}

func magnitudes(sf []r3.Vec) []float64 {
	mag := make([]float64, len(sf))
	for i, s := range sf {
		mag[i] = r3.Norm(s)
	}
	return mag
}

func finite(v float64) (float64, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v, ErrNonFinite
	}
	return v, nil
}
