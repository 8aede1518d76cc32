package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap/zaptest"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/sanspareilsmyn/pumplens/internal/config"
	"github.com/sanspareilsmyn/pumplens/internal/field"
	"github.com/sanspareilsmyn/pumplens/internal/message"
	"github.com/sanspareilsmyn/pumplens/internal/stat"
)

// pumpFrame is a single-face pump: 5 kg/s from 200 kPa to 100 kPa with a
// 50 N·m moment about +z.
func pumpFrame(t float64) *field.Frame {
	f := field.NewFrame(t, int(t), 1)

	inlet := f.AddSurface("inlet", []r3.Vec{{X: -1}}, []r3.Vec{{X: -2}})
	inlet.Scalars["p"] = []float64{200e3}
	inlet.Scalars["phi"] = []float64{-5}
	inlet.Scalars["rho"] = []float64{1000}

	outlet := f.AddSurface("outlet", []r3.Vec{{X: 1}}, []r3.Vec{{X: 2}})
	outlet.Scalars["p"] = []float64{100e3}
	outlet.Scalars["phi"] = []float64{5}
	outlet.Scalars["rho"] = []float64{1000}

	impeller := f.AddSurface("impeller", []r3.Vec{{Y: -1}}, []r3.Vec{{X: 1}})
	impeller.Scalars["p"] = []float64{50}
	impeller.Scalars["phi"] = []float64{0}
	impeller.Scalars["rho"] = []float64{1000}
	return f
}

func writeFrames(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "frames.jsonl")
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatalf("write frames: %v", err)
	}
	return path
}

func encode(t *testing.T, f *field.Frame) string {
	t.Helper()
	data, err := message.EncodeFrame(f)
	if err != nil {
		t.Fatalf("EncodeFrame() error = %v", err)
	}
	return string(data)
}

func fileConfig(t *testing.T, path string) *config.Config {
	t.Helper()
	return &config.Config{
		Source: config.SourceConfig{Type: config.SourceFile, Path: path},
		Stat: config.StatConfig{
			Name:           "pump",
			Enabled:        true,
			MomentPatches:  []string{"impeller"},
			InflowPatches:  []string{"inlet"},
			OutflowPatches: []string{"outlet"},
			TimeEnd:        100,
			ProbeFrequency: 1,
			FftFrequency:   100,
			PName:          "p",
			PhiName:        "phi",
			RhoName:        "rho",
			RhoRef:         1,
			HeatCapacity:   1005,
			Gamma:          1.4,
			OmegaVec:       []float64{0, 0, 100},
			Efficiency:     config.EfficiencyHydraulic,
			Undefined:      config.UndefinedWarn,
			OutputDir:      t.TempDir(),
			FileLogging:    true,
		},
	}
}

func historyLines(t *testing.T, cfg *config.Config) []string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(cfg.Stat.OutputDir, "pump", "0", "pumpStat.dat"))
	if err != nil {
		t.Fatalf("read history: %v", err)
	}
	return strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
}

func TestPipelineReplaysFile(t *testing.T) {
	tests := []struct {
		name      string
		extra     []string
		wantLines int
	}{
		{
			name:      "clean stream",
			wantLines: 6,
		},
		{
			name:      "malformed lines are skipped",
			extra:     []string{`{"time": `, "", `{"time": 1, "deltaT": 1, "surfaces": {"inlet": {"Sf": [[1,0,0]], "scalars": {"p": []}}}}`},
			wantLines: 6,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var lines []string
			lines = append(lines, tt.extra...)
			for i := 0; i < 5; i++ {
				lines = append(lines, encode(t, pumpFrame(float64(i))))
			}
			lines = append(lines, `{"time": 5, "deltaT": 1, "end": true}`)
			// Frames after the end marker are never processed.
			lines = append(lines, encode(t, pumpFrame(6)))

			cfg := fileConfig(t, writeFrames(t, lines...))
			logger := zaptest.NewLogger(t)
			engine := stat.New(logger.Named("stat"), nil)

			p, err := New(cfg, engine, logger)
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			if err := p.Run(context.Background()); err != nil {
				t.Fatalf("Run() error = %v", err)
			}

			if engine.State() != stat.StateFinalizing {
				t.Errorf("engine state = %v, want %v", engine.State(), stat.StateFinalizing)
			}
			got := historyLines(t, cfg)
			if len(got) != tt.wantLines {
				t.Fatalf("history has %d lines, want %d:\n%s", len(got), tt.wantLines, strings.Join(got, "\n"))
			}
			if !strings.HasPrefix(got[0], "# Time\tmoment\tpower\tmassFlow") {
				t.Errorf("header = %q", got[0])
			}
			if want := "4\t50\t5000\t5\t5\t200000\t100000\t0.5\t"; !strings.HasPrefix(got[5], want) {
				t.Errorf("last row = %q, want prefix %q", got[5], want)
			}
		})
	}
}

func TestPipelineStreamWithoutEndMarker(t *testing.T) {
	cfg := fileConfig(t, writeFrames(t, encode(t, pumpFrame(0)), encode(t, pumpFrame(1))))
	logger := zaptest.NewLogger(t)
	engine := stat.New(logger, nil)

	p, err := New(cfg, engine, logger)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got := engine.Store().Len(); got != 2 {
		t.Errorf("samples = %d, want 2", got)
	}
	if got := len(historyLines(t, cfg)); got != 3 {
		t.Errorf("history lines = %d, want 3", got)
	}
}

func TestPipelineUnknownPatchStopsRun(t *testing.T) {
	cfg := fileConfig(t, writeFrames(t, encode(t, pumpFrame(0))))
	cfg.Stat.MomentPatches = []string{"rotor"}
	logger := zaptest.NewLogger(t)

	p, err := New(cfg, stat.New(logger, nil), logger)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	err = p.Run(context.Background())
	if !errors.Is(err, ErrEngineConfigureFailed) || !errors.Is(err, stat.ErrUnknownSurface) {
		t.Fatalf("Run() error = %v, want %v wrapping %v", err, ErrEngineConfigureFailed, stat.ErrUnknownSurface)
	}
}

func TestPipelineMissingFile(t *testing.T) {
	cfg := fileConfig(t, filepath.Join(t.TempDir(), "absent.jsonl"))
	logger := zaptest.NewLogger(t)

	p, err := New(cfg, stat.New(logger, nil), logger)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	err = p.Run(context.Background())
	if !errors.Is(err, ErrSourceRunFailed) || !errors.Is(err, ErrFileReadFailed) {
		t.Fatalf("Run() error = %v, want %v", err, ErrFileReadFailed)
	}
}

func TestNewSourceErrors(t *testing.T) {
	tests := []struct {
		name    string
		source  config.SourceConfig
		kafka   config.KafkaConfig
		wantErr error
	}{
		{
			name:    "unknown type",
			source:  config.SourceConfig{Type: "socket"},
			wantErr: ErrUnknownSourceType,
		},
		{
			name:    "kafka without brokers",
			source:  config.SourceConfig{Type: config.SourceKafka},
			kafka:   config.KafkaConfig{Topic: "frames", GroupID: "g"},
			wantErr: ErrInvalidKafkaConfig,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{Source: tt.source, Kafka: tt.kafka}
			_, err := New(cfg, &fakeEngine{}, zaptest.NewLogger(t))
			if !errors.Is(err, ErrSourceCreationFailed) || !errors.Is(err, tt.wantErr) {
				t.Errorf("New() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
