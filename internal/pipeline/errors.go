package pipeline

import "errors"

var (
	ErrInvalidKafkaConfig    = errors.New("invalid Kafka configuration provided")
	ErrKafkaFetchFailed      = errors.New("failed to fetch message from Kafka")
	ErrFileReadFailed        = errors.New("failed to read frame file")
	ErrUnknownSourceType     = errors.New("unknown frame source type")
	ErrSourceCreationFailed  = errors.New("failed to create frame source")
	ErrSourceRunFailed       = errors.New("frame source failed")
	ErrEngineConfigureFailed = errors.New("failed to configure statistics engine")
	ErrDriverRunFailed       = errors.New("driver component failed")
)
