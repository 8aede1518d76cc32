package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sanspareilsmyn/pumplens/internal/config"
	"github.com/sanspareilsmyn/pumplens/internal/field"
)

// Engine is the part of the statistics engine the driver calls into.
type Engine interface {
	Configure(cfg config.StatConfig, acc field.Accessor) error
	OnTimestep(acc field.Accessor) error
	OnRunEnd() error
}

// Driver feeds frames to the engine one at a time, in arrival order. It plays
// the role of the simulation's control loop: the engine is configured against
// the first frame and finalized when the stream ends.
type Driver struct {
	cfg    config.StatConfig
	engine Engine
	input  <-chan *field.Frame
	logger *zap.Logger

	configured bool
	frames     int
}

// NewDriver creates a new Driver instance.
func NewDriver(cfg config.StatConfig, engine Engine, input <-chan *field.Frame, logger *zap.Logger) *Driver {
	return &Driver{
		cfg:    cfg,
		engine: engine,
		input:  input,
		logger: logger,
	}
}

// Run processes frames until an end frame arrives, the input closes or the
// context is cancelled. The engine is finalized in every case.
func (d *Driver) Run(ctx context.Context) error {
	sugar := d.logger.Sugar()
	sugar.Info("Starting driver loop...")
	defer sugar.Infow("Driver loop stopped.", "frames", d.frames)

	for {
		select {
		case f, ok := <-d.input:
			if !ok {
				d.finish("frame stream closed")
				return nil
			}
			if err := d.step(f); err != nil {
				return err
			}
			if f.End {
				d.finish("end frame received")
				return nil
			}

		case <-ctx.Done():
			d.finish("shutdown")
			return ctx.Err()
		}
	}
}

func (d *Driver) step(f *field.Frame) error {
	// A bare end marker carries no geometry.
	if f.End && len(f.Surfaces) == 0 {
		return nil
	}

	if !d.configured {
		if err := d.engine.Configure(d.cfg, f); err != nil {
			d.logger.Error("Statistics engine rejected its configuration",
				zap.Float64("time", f.Time),
				zap.Error(err),
			)
			return fmt.Errorf("%w: %w", ErrEngineConfigureFailed, err)
		}
		d.configured = true
	}

	start := time.Now()
	if err := d.engine.OnTimestep(f); err != nil {
		return err
	}
	frameProcessingSeconds.Observe(time.Since(start).Seconds())
	d.frames++
	return nil
}

func (d *Driver) finish(reason string) {
	if !d.configured {
		d.logger.Info("No frames processed, nothing to finalize", zap.String("reason", reason))
		return
	}
	if err := d.engine.OnRunEnd(); err != nil {
		d.logger.Warn("Run ended with output errors", zap.String("reason", reason), zap.Error(err))
		return
	}
	d.logger.Debug("Run ended", zap.String("reason", reason), zap.Int("frames", d.frames))
}
