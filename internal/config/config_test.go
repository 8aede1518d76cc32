package config

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"
)

func validStat() StatConfig {
	return StatConfig{
		Name:           "pumpStat",
		Enabled:        true,
		MomentPatches:  []string{"impeller"},
		InflowPatches:  []string{"inlet"},
		OutflowPatches: []string{"outlet"},
		TimeStart:      0,
		TimeEnd:        10,
		ProbeFrequency: 1,
		FftFrequency:   10,
		PName:          "p",
		PhiName:        "phi",
		RhoName:        RhoInf,
		RhoRef:         998,
		HeatCapacity:   4180,
		Gamma:          1.4,
		OmegaVec:       []float64{0, 0, 100},
		Efficiency:     EfficiencyAuto,
		Undefined:      UndefinedWarn,
	}
}

func TestStatConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(s *StatConfig)
		wantErr error
	}{
		{"valid", func(s *StatConfig) {}, nil},
		{"empty name", func(s *StatConfig) { s.Name = "" }, ErrEmptyName},
		{"no inflow", func(s *StatConfig) { s.InflowPatches = nil }, ErrEmptyInflowPatches},
		{"no outflow", func(s *StatConfig) { s.OutflowPatches = nil }, ErrEmptyOutflowPatches},
		{"zero probe frequency", func(s *StatConfig) { s.ProbeFrequency = 0 }, ErrInvalidProbeFrequency},
		{"negative fft frequency", func(s *StatConfig) { s.FftFrequency = -2 }, ErrInvalidFftFrequency},
		{"inverted window", func(s *StatConfig) { s.TimeStart, s.TimeEnd = 5, 1 }, ErrInvalidTimeWindow},
		{"unbound pressure", func(s *StatConfig) { s.PName = "" }, ErrMissingFieldName},
		{"bad origin", func(s *StatConfig) { s.Origin = []float64{1, 2} }, ErrInvalidVector},
		{"degenerate omega", func(s *StatConfig) { s.OmegaVec = []float64{0, 0, 0} }, ErrDegenerateAxis},
		{"degenerate omega without moment patches", func(s *StatConfig) {
			s.OmegaVec = []float64{0, 0, 0}
			s.MomentPatches = nil
		}, nil},
		{"zero rhoRef incompressible", func(s *StatConfig) { s.RhoRef = 0 }, ErrInvalidRhoRef},
		{"unknown efficiency", func(s *StatConfig) { s.Efficiency = "polytropic" }, ErrInvalidEfficiencyModel},
		{"isentropic without T", func(s *StatConfig) { s.Efficiency = EfficiencyIsentropic }, ErrMissingFieldName},
		{"isentropic bad gamma", func(s *StatConfig) {
			s.Efficiency = EfficiencyIsentropic
			s.TName = "T"
			s.Gamma = 1
		}, ErrInvalidGamma},
		{"compressible auto needs T", func(s *StatConfig) { s.RhoName = "rho" }, ErrMissingFieldName},
		{"compressible auto with T", func(s *StatConfig) {
			s.RhoName = "rho"
			s.TName = "T"
		}, nil},
		{"unknown undefined policy", func(s *StatConfig) { s.Undefined = "panic" }, ErrInvalidUndefinedPolicy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validStat()
			tt.mutate(&s)
			err := s.Validate()
			if tt.wantErr == nil && err != nil {
				t.Fatalf("Validate() unexpected error = %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestOmegaFromRPM(t *testing.T) {
	s := validStat()
	s.OmegaVec = nil
	s.RPM = 60
	s.Axis = []float64{0, 0, 2}

	omega, err := s.Omega()
	if err != nil {
		t.Fatalf("Omega() error = %v", err)
	}
	want := r3.Vec{Z: 2 * math.Pi}
	if r3.Norm(r3.Sub(omega, want)) > 1e-12 {
		t.Errorf("Omega() = %v, want %v", omega, want)
	}
}

func TestEfficiencyModel(t *testing.T) {
	s := validStat()
	if got := s.EfficiencyModel(); got != EfficiencyHydraulic {
		t.Errorf("incompressible auto = %q, want %q", got, EfficiencyHydraulic)
	}
	s.RhoName = "rho"
	if got := s.EfficiencyModel(); got != EfficiencyIsentropic {
		t.Errorf("compressible auto = %q, want %q", got, EfficiencyIsentropic)
	}
	s.Efficiency = EfficiencyHydraulic
	if got := s.EfficiencyModel(); got != EfficiencyHydraulic {
		t.Errorf("explicit = %q, want %q", got, EfficiencyHydraulic)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pumplens.yaml")
	content := `
source:
  type: file
  path: frames.jsonl
stat:
  name: pump1
  momentPatches: [impeller]
  inflowPatches: [inlet]
  outflowPatches: [outlet]
  timeStart: 0
  timeEnd: 10
  rpm: 3000
  axis: [0, 0, 1]
  fftFrequency: 64
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Stat.Name != "pump1" {
		t.Errorf("Stat.Name = %q, want pump1", cfg.Stat.Name)
	}
	if cfg.Stat.ProbeFrequency != defaultProbeFrequency {
		t.Errorf("ProbeFrequency = %d, want default %d", cfg.Stat.ProbeFrequency, defaultProbeFrequency)
	}
	if cfg.Stat.FftFrequency != 64 {
		t.Errorf("FftFrequency = %d, want 64", cfg.Stat.FftFrequency)
	}
	if !cfg.Stat.Incompressible() {
		t.Error("expected incompressible default")
	}
	if cfg.Log.Level != defaultLogLevel {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, defaultLogLevel)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err == nil {
		t.Fatal("Load() expected error for missing file")
	}
}

func TestConfigValidateSource(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr error
	}{
		{"kafka without brokers", Config{Source: SourceConfig{Type: SourceKafka}, Stat: validStat()}, ErrEmptyKafkaBrokers},
		{"kafka ok", Config{
			Source: SourceConfig{Type: SourceKafka},
			Kafka:  KafkaConfig{Brokers: []string{"localhost:9092"}, Topic: "frames", GroupID: "g"},
			Stat:   validStat(),
		}, nil},
		{"file without path", Config{Source: SourceConfig{Type: SourceFile}, Stat: validStat()}, ErrEmptySourcePath},
		{"unknown source", Config{Source: SourceConfig{Type: "mqtt"}, Stat: validStat()}, ErrInvalidSource},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == nil && err != nil {
				t.Fatalf("Validate() unexpected error = %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
