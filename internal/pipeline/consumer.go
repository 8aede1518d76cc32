package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/sanspareilsmyn/pumplens/internal/config"
)

// readerLog adapts a zap logging method to kafka-go's Logger. The reader's
// routine chatter (rebalances, offset fetches) goes to Debug, its errors to
// Warn: the reader retries on its own and only FetchMessage errors stop a run.
type readerLog func(msg string, fields ...zap.Field)

func (l readerLog) Printf(msg string, args ...interface{}) {
	l(fmt.Sprintf(msg, args...))
}

func newReaderLogs(logger *zap.Logger) (info, errs readerLog) {
	l := logger.Named("kafka").WithOptions(zap.AddCallerSkip(1))
	return l.Debug, l.Warn
}

// Consumer reads one simulation frame per Kafka message. Offsets are
// committed only after the frame is queued for the parser, so a restarted
// consumer resumes at the first frame it had not handed over.
type Consumer struct {
	reader *kafka.Reader
	output chan<- []byte
	logger *zap.Logger
}

// NewConsumer joins the configured consumer group on the frame topic.
func NewConsumer(cfg config.KafkaConfig, output chan<- []byte, logger *zap.Logger) (*Consumer, error) {
	if len(cfg.Brokers) == 0 || cfg.Topic == "" || cfg.GroupID == "" {
		return nil, fmt.Errorf("%w: brokers=%v topic=%q group=%q", ErrInvalidKafkaConfig, cfg.Brokers, cfg.Topic, cfg.GroupID)
	}

	info, errs := newReaderLogs(logger)
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		GroupID:     cfg.GroupID,
		Topic:       cfg.Topic,
		MaxBytes:    maxFrameBytes,
		Logger:      info,
		ErrorLogger: errs,
	})

	logger.Info("Subscribed to frame topic",
		zap.String("topic", cfg.Topic),
		zap.String("group_id", cfg.GroupID),
	)
	return &Consumer{reader: r, output: output, logger: logger}, nil
}

// Run forwards frames until the context is cancelled or a fetch fails. The
// reader is closed on return.
func (c *Consumer) Run(ctx context.Context) error {
	defer func() {
		if err := c.reader.Close(); err != nil {
			c.logger.Warn("Kafka reader did not close cleanly", zap.Error(err))
		}
	}()

	for {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return context.Canceled
			}
			return fmt.Errorf("%w: %w", ErrKafkaFetchFailed, err)
		}
		framesReceived.WithLabelValues(config.SourceKafka).Inc()

		if err := c.forward(ctx, m); err != nil {
			return err
		}
	}
}

func (c *Consumer) forward(ctx context.Context, m kafka.Message) error {
	select {
	case c.output <- m.Value:
	case <-ctx.Done():
		return context.Canceled
	}

	if err := c.reader.CommitMessages(ctx, m); err != nil && ctx.Err() == nil {
		c.logger.Warn("Failed to commit frame offset",
			zap.Int("partition", m.Partition),
			zap.Int64("offset", m.Offset),
			zap.Error(err),
		)
	}
	return nil
}
