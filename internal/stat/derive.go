package stat

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/sanspareilsmyn/pumplens/internal/config"
	"github.com/sanspareilsmyn/pumplens/internal/field"
	"github.com/sanspareilsmyn/pumplens/internal/integrate"
)

const (
	reasonIllDefined  = "ill_defined"
	reasonNonFinite   = "non_finite"
	reasonIntegration = "integration_failed"
	reasonDependency  = "dependency_undefined"
	reasonNonPositive = "non_positive_power"
)

// failure records why a quantity was withheld from a sample.
type failure struct {
	quantity string
	reason   string
	err      error
}

func reasonOf(err error) string {
	switch {
	case errors.Is(err, integrate.ErrIllDefined):
		return reasonIllDefined
	case errors.Is(err, integrate.ErrNonFinite):
		return reasonNonFinite
	default:
		return reasonIntegration
	}
}

// row collects the derived values of one sample.
type row struct {
	cols     columns
	values   []float64
	failures []failure
}

func newRow(cols columns) *row {
	values := make([]float64, len(cols.names))
	for i := range values {
		values[i] = math.NaN()
	}
	return &row{cols: cols, values: values}
}

// set stores v, or records err as the root cause of an undefined quantity.
func (r *row) set(name string, v float64, err error) {
	i, ok := r.cols.index[name]
	if !ok {
		return
	}
	if err == nil && (math.IsNaN(v) || math.IsInf(v, 0)) {
		err = integrate.ErrNonFinite
	}
	if err != nil {
		r.values[i] = math.NaN()
		r.failures = append(r.failures, failure{quantity: name, reason: reasonOf(err), err: err})
		return
	}
	r.values[i] = v
}

// skip marks a quantity undefined because something it needs is undefined.
func (r *row) skip(name, reason string) {
	if i, ok := r.cols.index[name]; ok {
		r.values[i] = math.NaN()
		r.failures = append(r.failures, failure{quantity: name, reason: reason})
	}
}

func (r *row) get(name string) (float64, bool) {
	i, ok := r.cols.index[name]
	if !ok || math.IsNaN(r.values[i]) {
		return math.NaN(), false
	}
	return r.values[i], true
}

// derive computes one sample from the current timestep. Every integral is
// evaluated regardless of earlier failures so that all workers issue the
// same sequence of reductions.
func (e *Engine) derive(acc field.Accessor) *row {
	cfg := e.cfg
	in := integrate.New(acc, e.reducer)
	r := newRow(e.cols)

	var moment float64
	var momentErr error
	if len(cfg.MomentPatches) > 0 {
		moment, momentErr = in.Moment(e.stress, cfg.MomentPatches, e.origin, e.omega)
	}

	flowIn, flowInErr := in.Flow(cfg.PhiName, cfg.InflowPatches)
	flowOut, flowOutErr := in.Flow(cfg.PhiName, cfg.OutflowPatches)
	pIn, pInErr := in.AreaAverage(cfg.PName, cfg.InflowPatches)
	pOut, pOutErr := in.AreaAverage(cfg.PName, cfg.OutflowPatches)

	var tIn, tOut float64
	var tInErr, tOutErr error
	if cfg.TName != "" {
		tIn, tInErr = in.AreaAverage(cfg.TName, cfg.InflowPatches)
		tOut, tOutErr = in.AreaAverage(cfg.TName, cfg.OutflowPatches)
	}

	rhoIn, rhoInErr := cfg.RhoRef, error(nil)
	if !cfg.Incompressible() {
		rhoIn, rhoInErr = in.AreaAverage(cfg.RhoName, cfg.InflowPatches)
	}

	// Flux through inflow faces is negative along outward normals.
	massScale := 1.0
	if cfg.Incompressible() {
		massScale = cfg.RhoRef
	}
	pScale := e.stress.Scale()

	r.set(QMoment, moment, momentErr)
	if m, ok := r.get(QMoment); ok {
		r.set(QPower, m*r3.Norm(e.omega), nil)
	} else {
		r.skip(QPower, reasonDependency)
	}
	r.set(QMassFlow, flowOut*massScale, flowOutErr)
	r.set(QMassFlowIn, -flowIn*massScale, flowInErr)
	r.set(QPIn, pIn*pScale, pInErr)
	r.set(QPOut, pOut*pScale, pOutErr)
	r.set(QTIn, tIn, tInErr)
	r.set(QTOut, tOut, tOutErr)

	pi, okIn := r.get(QPIn)
	po, okOut := r.get(QPOut)
	switch {
	case !okIn || !okOut:
		r.skip(QPressureRatio, reasonDependency)
	case pi == 0:
		r.set(QPressureRatio, math.NaN(), integrate.ErrIllDefined)
	default:
		r.set(QPressureRatio, po/pi, nil)
	}

	if r.cols.has(QEfficiency) {
		e.deriveEfficiency(r, rhoIn, rhoInErr)
	}
	return r
}

func (e *Engine) deriveEfficiency(r *row, rhoIn float64, rhoInErr error) {
	power, ok := r.get(QPower)
	if !ok {
		r.skip(QEfficiency, reasonDependency)
		return
	}
	if power <= 0 {
		r.skip(QEfficiency, reasonNonPositive)
		return
	}
	mdot, ok := r.get(QMassFlow)
	if !ok {
		r.skip(QEfficiency, reasonDependency)
		return
	}

	var ideal float64
	switch e.cfg.EfficiencyModel() {
	case config.EfficiencyIsentropic:
		ratio, okR := r.get(QPressureRatio)
		tIn, okT := r.get(QTIn)
		if !okR || !okT {
			r.skip(QEfficiency, reasonDependency)
			return
		}
		ideal = IsentropicWork(mdot, e.cfg.HeatCapacity, e.cfg.Gamma, tIn, ratio)
	default:
		pIn, okIn := r.get(QPIn)
		pOut, okOut := r.get(QPOut)
		if !okIn || !okOut || rhoInErr != nil {
			r.skip(QEfficiency, reasonDependency)
			return
		}
		if rhoIn <= 0 {
			r.set(QEfficiency, math.NaN(), integrate.ErrIllDefined)
			return
		}
		ideal = HydraulicWork(mdot, pIn, pOut, rhoIn)
	}
	r.set(QEfficiency, ideal/power, nil)
}

// IsentropicWork is the ideal compression power mdot*cp*T_in*(PR^((g-1)/g)-1).
func IsentropicWork(mdot, cp, gamma, tIn, ratio float64) float64 {
	return mdot * cp * tIn * (math.Pow(ratio, (gamma-1)/gamma) - 1)
}

// HydraulicWork is the ideal pumping power mdot*(p_out-p_in)/rho.
func HydraulicWork(mdot, pIn, pOut, rho float64) float64 {
	return mdot * (pOut - pIn) / rho
}
