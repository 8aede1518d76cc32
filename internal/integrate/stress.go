package integrate

import (
	"github.com/sanspareilsmyn/pumplens/internal/field"
)

// StressSettings selects how face pressure becomes normal traction.
type StressSettings struct {
	PName string
	// Incompressible means the solver pressure is kinematic (p/rho) and is
	// scaled by RhoRef. It is decided once from configuration.
	Incompressible bool
	RhoRef         float64
	PRef           float64
}

// StressEvaluator derives per-face normal traction from the pressure field.
type StressEvaluator struct {
	settings StressSettings
}

func NewStressEvaluator(settings StressSettings) *StressEvaluator {
	return &StressEvaluator{settings: settings}
}

// Scale converts solver pressure into Pa.
func (s *StressEvaluator) Scale() float64 {
	if s.settings.Incompressible {
		return s.settings.RhoRef
	}
	return 1
}

// NormalStress returns scale*(p - pRef) for every face of the surface.
func (s *StressEvaluator) NormalStress(acc field.Accessor, surface string) ([]float64, error) {
	p, err := acc.ScalarValues(s.settings.PName, surface)
	if err != nil {
		return nil, err
	}
	scale := s.Scale()
	out := make([]float64, len(p))
	for i, v := range p {
		out[i] = scale * (v - s.settings.PRef)
	}
	return out, nil
}
