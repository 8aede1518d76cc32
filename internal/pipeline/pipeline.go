// internal/pipeline/pipeline.go
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/sanspareilsmyn/pumplens/internal/config"
	"github.com/sanspareilsmyn/pumplens/internal/field"
	"github.com/sanspareilsmyn/pumplens/internal/message"
)

// Source pushes raw frame payloads downstream until exhausted or cancelled.
type Source interface {
	Run(ctx context.Context) error
}

// Pipeline orchestrates the stages: source, parsing, driving the engine.
type Pipeline struct {
	cfg    *config.Config
	source Source
	driver *Driver
	logger *zap.Logger

	rawMessages chan []byte
	frames      chan *field.Frame
}

// New creates and wires up a new pipeline around the given engine.
func New(cfg *config.Config, engine Engine, logger *zap.Logger) (*Pipeline, error) {
	initLogger := logger.Named("pipeline.init")
	initLogger.Debug("Creating pipeline components...")

	const channelBufferSize = 100
	rawMessages := make(chan []byte, channelBufferSize)
	frames := make(chan *field.Frame, channelBufferSize)
	initLogger.Debug("Channels created", zap.Int("bufferSize", channelBufferSize))

	source, err := newSource(cfg, rawMessages, logger)
	if err != nil {
		initLogger.Error("Failed to create frame source", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrSourceCreationFailed, err)
	}
	initLogger.Debug("Source created", zap.String("type", cfg.Source.Type))

	driver := NewDriver(cfg.Stat, engine, frames, logger.Named("driver"))

	p := &Pipeline{
		cfg:         cfg,
		source:      source,
		driver:      driver,
		logger:      logger.Named("pipeline"),
		rawMessages: rawMessages,
		frames:      frames,
	}

	initLogger.Info("Pipeline instance created successfully")
	return p, nil
}

func newSource(cfg *config.Config, output chan<- []byte, logger *zap.Logger) (Source, error) {
	switch cfg.Source.Type {
	case config.SourceKafka:
		return NewConsumer(cfg.Kafka, output, logger.Named("consumer"))
	case config.SourceFile:
		return NewFileSource(cfg.Source.Path, output, logger.Named("file-source")), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSourceType, cfg.Source.Type)
	}
}

// Run starts all stages and waits until the driver finishes, a stage fails or
// the context is cancelled.
func (p *Pipeline) Run(ctx context.Context) error {
	sugar := p.logger.Sugar()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	pipelineErr := make(chan error, 2) // source, driver
	driverDone := make(chan struct{})

	sugar.Info("Pipeline Run: Starting components...")

	wg.Add(3)
	go p.runSource(ctx, &wg, pipelineErr)
	go p.runParser(ctx, &wg)
	go p.runDriver(ctx, &wg, pipelineErr, driverDone)

	var firstErr error
	select {
	case <-ctx.Done():
		sugar.Info("Pipeline Run: Context cancelled. Waiting for components to finish...")
		firstErr = ctx.Err()
	case err := <-pipelineErr:
		sugar.Errorw("Pipeline Run: Received error from a component, initiating shutdown...", zap.Error(err))
		firstErr = err
	case <-driverDone:
		sugar.Info("Pipeline Run: Run complete, stopping source...")
	}

	cancel()
	sugar.Debug("Pipeline Run: Waiting on WaitGroup...")
	wg.Wait()
	sugar.Info("Pipeline Run: All components finished.")

	if firstErr == nil {
		select {
		case err := <-pipelineErr:
			firstErr = err
		default:
		}
	}
	if firstErr != nil && !errors.Is(firstErr, context.Canceled) {
		return firstErr
	}
	return nil
}

func (p *Pipeline) runSource(ctx context.Context, wg *sync.WaitGroup, errCh chan<- error) {
	defer wg.Done()
	defer func() {
		close(p.rawMessages)
		p.logger.Debug("Raw messages channel closed")
	}()

	p.logger.Debug("Starting source goroutine...")
	if err := p.source.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		p.logger.Error("Source component exited with error", zap.Error(err))
		errCh <- fmt.Errorf("%w: %w", ErrSourceRunFailed, err)
	} else if err == nil {
		p.logger.Debug("Source goroutine finished normally")
	} else {
		p.logger.Debug("Source goroutine cancelled gracefully")
	}
}

func (p *Pipeline) runParser(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()
	defer func() {
		close(p.frames)
		p.logger.Debug("Frames channel closed")
	}()

	parserLogger := p.logger.Named("parser").Sugar()
	parserLogger.Debug("Starting parser goroutine...")

	for {
		select {
		case rawMsg, ok := <-p.rawMessages:
			if !ok {
				parserLogger.Debug("Parser finished (raw message channel closed).")
				return
			}

			frame, err := message.ParseFrame(rawMsg)
			if err != nil {
				framesRejected.WithLabelValues("parse").Inc()
				parserLogger.Warnw("Failed to parse frame, skipping", zap.Error(err))
				continue
			}

			select {
			case p.frames <- frame:

			case <-ctx.Done():
				parserLogger.Debug("Parser context cancelled during send.", zap.Error(ctx.Err()))
				return
			}

		case <-ctx.Done():
			parserLogger.Debug("Parser context cancelled while waiting for raw message.", zap.Error(ctx.Err()))
			return
		}
	}
}

func (p *Pipeline) runDriver(ctx context.Context, wg *sync.WaitGroup, errCh chan<- error, done chan<- struct{}) {
	defer wg.Done()
	defer close(done)

	p.logger.Debug("Starting driver goroutine...")
	if err := p.driver.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		p.logger.Error("Driver component exited with error", zap.Error(err))
		errCh <- fmt.Errorf("%w: %w", ErrDriverRunFailed, err)
	} else if err == nil {
		p.logger.Debug("Driver goroutine finished normally")
	} else {
		p.logger.Debug("Driver goroutine cancelled gracefully")
	}
}
