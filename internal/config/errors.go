package config

import "errors"

var (
	ErrReadingConfigFile      = errors.New("failed to read config file")
	ErrUnmarshallingConfig    = errors.New("failed to unmarshal config")
	ErrConfigFileMissing      = errors.New("config file not found")
	ErrEmptyKafkaBrokers      = errors.New("kafka brokers list cannot be empty")
	ErrEmptyKafkaTopic        = errors.New("kafka topic cannot be empty")
	ErrEmptyKafkaGroupID      = errors.New("kafka groupID cannot be empty")
	ErrInvalidSource          = errors.New("source type must be 'kafka' or 'file'")
	ErrEmptySourcePath        = errors.New("file source requires a path")
	ErrEmptyName              = errors.New("stat name cannot be empty")
	ErrEmptyInflowPatches     = errors.New("inflowPatches cannot be empty")
	ErrEmptyOutflowPatches    = errors.New("outflowPatches cannot be empty")
	ErrInvalidProbeFrequency  = errors.New("probeFrequency must be positive")
	ErrInvalidFftFrequency    = errors.New("fftFrequency must be positive")
	ErrInvalidTimeWindow      = errors.New("timeEnd must not precede timeStart")
	ErrInvalidVector          = errors.New("vector must have exactly 3 components")
	ErrDegenerateAxis         = errors.New("rotation axis is degenerate")
	ErrMissingFieldName       = errors.New("required field name is not bound")
	ErrInvalidRhoRef          = errors.New("rhoRef must be positive for incompressible cases")
	ErrInvalidHeatCapacity    = errors.New("heatCapacity must be positive for isentropic efficiency")
	ErrInvalidGamma           = errors.New("gamma must be greater than 1 for isentropic efficiency")
	ErrInvalidEfficiencyModel = errors.New("efficiency must be 'auto', 'isentropic' or 'hydraulic'")
	ErrInvalidUndefinedPolicy = errors.New("undefined must be 'warn' or 'silent'")
)
