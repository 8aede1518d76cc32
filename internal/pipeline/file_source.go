package pipeline

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/sanspareilsmyn/pumplens/internal/config"
)

const maxFrameBytes = 64 << 20

// FileSource replays frames from a JSON-lines file, one frame per line.
type FileSource struct {
	path   string
	output chan<- []byte
	logger *zap.Logger
}

func NewFileSource(path string, output chan<- []byte, logger *zap.Logger) *FileSource {
	return &FileSource{path: path, output: output, logger: logger}
}

// Run sends every non-blank line downstream and returns nil at end of file.
func (s *FileSource) Run(ctx context.Context) error {
	f, err := os.Open(s.path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFileReadFailed, err)
	}
	defer f.Close()

	s.logger.Info("Replaying frames from file", zap.String("path", s.path))

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxFrameBytes)
	lines := 0
	for scanner.Scan() {
		lines++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		framesReceived.WithLabelValues(config.SourceFile).Inc()

		// The scanner reuses its buffer.
		frame := append([]byte(nil), line...)
		select {
		case s.output <- frame:
		case <-ctx.Done():
			s.logger.Debug("Context cancelled while sending frame downstream.", zap.Int("line", lines))
			return context.Canceled
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("%w: line %d: %w", ErrFileReadFailed, lines+1, err)
	}

	s.logger.Info("Frame file exhausted", zap.String("path", s.path), zap.Int("lines", lines))
	return nil
}
