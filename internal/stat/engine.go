// Package stat derives turbomachinery performance statistics (moment, shaft
// power, pressure ratio, mass flow, efficiency) once per sampled timestep,
// keeps their time history and periodically writes its spectrum.
package stat

import (
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"slices"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/sanspareilsmyn/pumplens/internal/config"
	"github.com/sanspareilsmyn/pumplens/internal/field"
	"github.com/sanspareilsmyn/pumplens/internal/integrate"
	"github.com/sanspareilsmyn/pumplens/internal/series"
	"github.com/sanspareilsmyn/pumplens/internal/spectrum"
)

const (
	historyFilename = "pumpStat.dat"
	timeTolerance   = 1e-6 // fraction of deltaT
)

// State is the position of the engine in its run lifecycle.
type State int

const (
	StateInactive State = iota
	StateActive
	StateFinalizing
)

func (s State) String() string {
	switch s {
	case StateInactive:
		return "inactive"
	case StateActive:
		return "active"
	case StateFinalizing:
		return "finalizing"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Engine is driven synchronously by the simulation loop, once per timestep.
// It is not safe for concurrent use.
type Engine struct {
	logger  *zap.Logger
	reducer field.Reducer

	cfg        config.StatConfig
	configured bool
	stress     *integrate.StressEvaluator
	origin     r3.Vec
	omega      r3.Vec
	cols       columns

	state    State
	probeI   int
	dir      string
	store    *series.Store
	history  *historyFile
	spectra  map[string]*outputFile
	analyzer *spectrum.Analyzer
}

// New creates an unconfigured engine. A nil reducer means single process.
func New(logger *zap.Logger, reducer field.Reducer) *Engine {
	if reducer == nil {
		reducer = field.LocalReducer{}
	}
	return &Engine{logger: logger, reducer: reducer}
}

// Configure validates cfg against the simulation's surfaces and fields and
// resets the time series. Every surface is checked for the fields it is
// integrated with. Any error leaves the engine unable to activate.
func (e *Engine) Configure(cfg config.StatConfig, acc field.Accessor) error {
	if e.state == StateActive {
		return ErrReconfigureActive
	}
	e.configured = false

	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := checkCatalog(cfg, acc); err != nil {
		return err
	}
	origin, err := cfg.OriginVec()
	if err != nil {
		return err
	}
	omega, err := cfg.Omega()
	if err != nil {
		return err
	}

	e.cfg = cfg
	e.origin = origin
	e.omega = omega
	e.stress = integrate.NewStressEvaluator(integrate.StressSettings{
		PName:          cfg.PName,
		Incompressible: cfg.Incompressible(),
		RhoRef:         cfg.RhoRef,
		PRef:           cfg.PRef,
	})
	e.cols = newColumns(cfg)
	e.store = series.NewStore(e.cols.names)
	e.history = nil
	e.spectra = make(map[string]*outputFile)
	e.analyzer = nil
	e.state = StateInactive
	e.probeI = 0
	e.dir = ""
	e.configured = true

	e.logger.Info("Pump statistics configured",
		zap.String("name", cfg.Name),
		zap.Strings("moment_patches", cfg.MomentPatches),
		zap.Strings("inflow_patches", cfg.InflowPatches),
		zap.Strings("outflow_patches", cfg.OutflowPatches),
		zap.Float64("time_start", cfg.TimeStart),
		zap.Float64("time_end", cfg.TimeEnd),
		zap.Int("probe_frequency", cfg.ProbeFrequency),
		zap.Int("fft_frequency", cfg.FftFrequency),
		zap.Bool("incompressible", cfg.Incompressible()),
		zap.String("efficiency", cfg.EfficiencyModel()),
		zap.Float64("omega", r3.Norm(omega)),
		zap.Strings("quantities", e.cols.names),
	)
	return nil
}

// Read replaces the configuration between runs.
func (e *Engine) Read(cfg config.StatConfig, acc field.Accessor) error {
	e.logger.Debug("Re-reading pump statistics configuration", zap.String("name", cfg.Name))
	return e.Configure(cfg, acc)
}

func checkCatalog(cfg config.StatConfig, acc field.Accessor) error {
	for _, group := range [][]string{cfg.MomentPatches, cfg.InflowPatches, cfg.OutflowPatches} {
		for _, name := range group {
			if !acc.HasSurface(name) {
				return fmt.Errorf("%w: %q", ErrUnknownSurface, name)
			}
		}
	}

	through := []string{cfg.PName, cfg.PhiName}
	if cfg.TName != "" {
		through = append(through, cfg.TName)
	}
	inflow := through
	if !cfg.Incompressible() {
		inflow = append(slices.Clone(through), cfg.RhoName)
	}

	if err := requireScalars(acc, cfg.InflowPatches, inflow); err != nil {
		return err
	}
	if err := requireScalars(acc, cfg.OutflowPatches, through); err != nil {
		return err
	}
	if err := requireScalars(acc, cfg.MomentPatches, []string{cfg.PName}); err != nil {
		return err
	}
	for _, name := range cfg.MomentPatches {
		if _, err := acc.FaceCentres(name); err != nil {
			return fmt.Errorf("%w: face centres on surface %q: %w", ErrUnknownField, name, err)
		}
	}
	return nil
}

func requireScalars(acc field.Accessor, surfaces, fields []string) error {
	for _, surface := range surfaces {
		for _, name := range fields {
			if _, err := acc.ScalarValues(name, surface); err != nil {
				return fmt.Errorf("%w: %q on surface %q", ErrUnknownField, name, surface)
			}
		}
	}
	return nil
}

// OnTimestep processes the accessor's current timestep. Numerical problems
// never surface as errors; only calling an unconfigured engine does.
func (e *Engine) OnTimestep(acc field.Accessor) error {
	if !e.configured {
		return ErrNotConfigured
	}
	if !e.cfg.Enabled || e.state == StateFinalizing {
		return nil
	}

	t := acc.CurrentTime()
	eps := timeTolerance * math.Abs(acc.DeltaT())
	switch {
	case t < e.cfg.TimeStart-eps:
		return nil
	case t > e.cfg.TimeEnd+eps:
		if e.state == StateActive {
			e.finalize("left active window")
		}
		return nil
	}

	if e.state == StateInactive {
		e.activate(t)
	}

	tick := e.probeI
	e.probeI++
	if tick%e.cfg.ProbeFrequency != 0 {
		return nil
	}
	e.sample(acc)
	return nil
}

func (e *Engine) activate(t float64) {
	e.state = StateActive
	e.dir = filepath.Join(e.cfg.OutputDir, e.cfg.Name, formatFloat(t))
	e.history = newHistoryFile(filepath.Join(e.dir, historyFilename))
	e.logger.Info("Pump statistics active", zap.String("name", e.cfg.Name), zap.Float64("time", t))
}

func (e *Engine) sample(acc field.Accessor) {
	t := acc.CurrentTime()
	r := e.derive(acc)
	e.report(t, r.failures)

	s := series.Sample{Time: t, Values: r.values}
	if err := e.store.Append(s); err != nil {
		e.logger.Warn("Sample rejected by time series store", zap.Float64("time", t), zap.Error(err))
		return
	}
	samplesRecorded.WithLabelValues(e.cfg.Name).Inc()
	for i, name := range e.cols.names {
		if s.Defined(i) {
			quantityValue.WithLabelValues(e.cfg.Name, name).Set(s.Values[i])
		}
	}

	e.emit(s)

	if e.cfg.Fft && e.store.Len()%e.cfg.FftFrequency == 0 {
		e.spectralPass(t, acc.DeltaT())
	}
}

func (e *Engine) report(t float64, failures []failure) {
	level := zapcore.WarnLevel
	if e.cfg.Undefined == config.UndefinedSilent {
		level = zapcore.DebugLevel
	}
	for _, f := range failures {
		quantityUndefined.WithLabelValues(e.cfg.Name, f.quantity, f.reason).Inc()
		if f.err == nil {
			e.logger.Debug("Quantity withheld",
				zap.String("quantity", f.quantity),
				zap.Float64("time", t),
				zap.String("reason", f.reason),
			)
			continue
		}
		e.logger.Log(level, "Quantity undefined for this sample",
			zap.String("quantity", f.quantity),
			zap.Float64("time", t),
			zap.String("reason", f.reason),
			zap.Error(f.err),
		)
	}
}

// emit echoes the newest row and brings the history file up to date.
func (e *Engine) emit(s series.Sample) {
	if e.cfg.Log {
		e.logger.Info("Pump statistics sample",
			zap.String("name", e.cfg.Name),
			zap.String("row", strings.TrimSuffix(formatRow(s), "\n")),
		)
	}
	if !e.cfg.FileLogging {
		return
	}
	if err := e.history.sync(e.store); err != nil {
		outputWriteFailures.WithLabelValues(e.cfg.Name, "history").Inc()
		e.logger.Warn("Failed to write time history, keeping samples in memory",
			zap.String("path", e.history.out.path),
			zap.Int("pending", e.history.pending(e.store)),
			zap.Error(err),
		)
	}
}

func (e *Engine) spectralPass(t, deltaT float64) {
	interval := float64(e.cfg.ProbeFrequency) * deltaT
	if e.analyzer == nil || e.analyzer.Interval() != interval {
		a, err := spectrum.NewAnalyzer(interval)
		if err != nil {
			e.logger.Warn("Skipping spectral pass", zap.Float64("time", t), zap.Error(err))
			return
		}
		e.analyzer = a
	}

	for _, name := range e.cols.names {
		_, values, err := e.store.Series(name)
		if err != nil {
			continue
		}
		bins := e.analyzer.Spectrum(values)
		if bins == nil {
			continue
		}
		if peak, ok := spectrum.Peak(bins); ok {
			e.logger.Debug("Spectrum peak",
				zap.String("quantity", name),
				zap.Float64("frequency", peak.Frequency),
				zap.Float64("magnitude", peak.Magnitude),
			)
		}
		out, ok := e.spectra[name]
		if !ok {
			out = &outputFile{path: filepath.Join(e.dir, "fft_"+name+".dat")}
			e.spectra[name] = out
		}
		if err := writeSpectrum(out, t, len(values), bins); err != nil {
			outputWriteFailures.WithLabelValues(e.cfg.Name, "spectrum").Inc()
			e.logger.Warn("Failed to write spectrum",
				zap.String("quantity", name),
				zap.String("path", out.path),
				zap.Error(err),
			)
		}
	}
	spectralPasses.WithLabelValues(e.cfg.Name).Inc()
	e.logger.Debug("Spectral pass complete", zap.Float64("time", t), zap.Int("samples", e.store.Len()))
}

// OnRunEnd flushes pending rows and closes every output file.
func (e *Engine) OnRunEnd() error {
	if !e.configured {
		return ErrNotConfigured
	}
	return e.finalize("run end")
}

func (e *Engine) finalize(reason string) error {
	if e.state == StateFinalizing {
		return nil
	}
	e.state = StateFinalizing

	var errs []error
	if e.history != nil {
		if e.cfg.FileLogging && e.history.pending(e.store) > 0 {
			if err := e.history.sync(e.store); err != nil {
				outputWriteFailures.WithLabelValues(e.cfg.Name, "history").Inc()
				errs = append(errs, err)
			}
		}
		if err := e.history.out.close(); err != nil {
			errs = append(errs, err)
		}
	}
	for _, out := range e.spectra {
		if err := out.close(); err != nil {
			errs = append(errs, err)
		}
	}
	err := errors.Join(errs...)

	fields := []zap.Field{
		zap.String("name", e.cfg.Name),
		zap.String("reason", reason),
		zap.Int("samples", e.store.Len()),
	}
	if err != nil {
		e.logger.Warn("Pump statistics finalized with output errors", append(fields, zap.Error(err))...)
	} else {
		e.logger.Info("Pump statistics finalized", fields...)
	}
	return err
}

// OnMeshChange is a no-op: geometry is queried afresh on every timestep.
func (e *Engine) OnMeshChange(mapping any) {
	e.logger.Debug("Mesh change ignored", zap.Any("mapping", mapping))
}

// OnMovePoints is a no-op for the same reason as OnMeshChange.
func (e *Engine) OnMovePoints() {}

func (e *Engine) Name() string { return e.cfg.Name }

func (e *Engine) State() State { return e.state }

// Quantities lists the tracked quantities in column order.
func (e *Engine) Quantities() []string {
	return append([]string(nil), e.cols.names...)
}

// Store exposes the time history for reading. Callers must not append.
func (e *Engine) Store() *series.Store { return e.store }

// OutputDir is where this run's files go; empty before activation.
func (e *Engine) OutputDir() string { return e.dir }

// HistoryOpened reports whether the time history file has been created.
func (e *Engine) HistoryOpened() bool {
	return e.history != nil && (e.history.out.opened() || e.history.written > 0)
}
