package config

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/spf13/viper"
	"gonum.org/v1/gonum/spatial/r3"
)

const (
	defaultKafkaGroupID   = "pumplens-default-group"
	defaultSourceType     = SourceKafka
	defaultStatName       = "pumpStat"
	defaultProbeFrequency = 1
	defaultFftFrequency   = 100
	defaultPName          = "p"
	defaultPhiName        = "phi"
	defaultRhoName        = RhoInf
	defaultRhoRef         = 1.0
	defaultHeatCapacity   = 1005.0
	defaultGamma          = 1.4
	defaultEfficiency     = EfficiencyAuto
	defaultUndefined      = UndefinedWarn
	defaultOutputDir      = "postProcessing"
	defaultMetricsAddress = ":9102"
	defaultLogLevel       = "info"
	defaultLogFormat      = "console"
	defaultLogFileEnabled = false
	defaultLogDirectory   = "log"
	defaultLogFilename    = "pumplens.log"
	defaultLogMaxSizeMB   = 100
	defaultLogMaxBackups  = 3
	defaultLogMaxAgeDays  = 7
	defaultLogCompress    = false

	// Environment variable prefix
	envPrefix = "PUMPLENS"
)

// RhoInf as the density field name selects the incompressible formulation.
const RhoInf = "rhoInf"

const (
	SourceKafka = "kafka"
	SourceFile  = "file"
)

const (
	EfficiencyAuto       = "auto"
	EfficiencyIsentropic = "isentropic"
	EfficiencyHydraulic  = "hydraulic"
)

const (
	UndefinedWarn   = "warn"
	UndefinedSilent = "silent"
)

type Config struct {
	Stat    StatConfig    `mapstructure:"stat"`
	Source  SourceConfig  `mapstructure:"source"`
	Kafka   KafkaConfig   `mapstructure:"kafka"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Log     LogConfig     `mapstructure:"log"`
}

type SourceConfig struct {
	Type string `mapstructure:"type"` // "kafka" or "file"
	Path string `mapstructure:"path"` // JSON-lines frame file for type "file"
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
	GroupID string   `mapstructure:"groupID"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Address string `mapstructure:"address"`
}

// StatConfig describes one pump statistics object.
type StatConfig struct {
	Name    string `mapstructure:"name"`
	Enabled bool   `mapstructure:"enabled"`

	MomentPatches  []string `mapstructure:"momentPatches"`
	InflowPatches  []string `mapstructure:"inflowPatches"`
	OutflowPatches []string `mapstructure:"outflowPatches"`

	TimeStart      float64 `mapstructure:"timeStart"`
	TimeEnd        float64 `mapstructure:"timeEnd"`
	ProbeFrequency int     `mapstructure:"probeFrequency"` // timesteps between samples
	FftFrequency   int     `mapstructure:"fftFrequency"`   // samples between spectral passes

	PName   string `mapstructure:"p"`
	TName   string `mapstructure:"T"`
	PhiName string `mapstructure:"phi"`
	RhoName string `mapstructure:"rho"`

	RhoRef       float64 `mapstructure:"rhoRef"`
	PRef         float64 `mapstructure:"pRef"`
	HeatCapacity float64 `mapstructure:"heatCapacity"`
	Gamma        float64 `mapstructure:"gamma"`

	Origin   []float64 `mapstructure:"origin"`
	OmegaVec []float64 `mapstructure:"omega"` // rad/s, takes precedence over rpm
	RPM      float64   `mapstructure:"rpm"`
	Axis     []float64 `mapstructure:"axis"`

	Efficiency string `mapstructure:"efficiency"`
	Undefined  string `mapstructure:"undefined"`

	OutputDir   string `mapstructure:"outputDir"`
	FileLogging bool   `mapstructure:"fileLogging"` // write the time-history file
	Fft         bool   `mapstructure:"fft"`
	Log         bool   `mapstructure:"log"` // echo rows to the interactive log
}

type LogConfig struct {
	Level              string `mapstructure:"level"`
	Format             string `mapstructure:"format"`
	FileLoggingEnabled bool   `mapstructure:"fileLoggingEnabled"`
	Directory          string `mapstructure:"directory"`
	Filename           string `mapstructure:"filename"`
	MaxSize            int    `mapstructure:"maxSize"`    // Max size in MB
	MaxBackups         int    `mapstructure:"maxBackups"` // Max backup files
	MaxAge             int    `mapstructure:"maxAge"`     // Max days to retain
	Compress           bool   `mapstructure:"compress"`   // Compress rotated files?
}

// Load initializes viper, reads config, applies defaults, unmarshals, and validates.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	configureViper(v, configPath)

	// Set default values before reading config source .yaml
	setDefaults(v)

	// Read configuration from file (error if mandatory file is missing)
	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnmarshallingConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// configureViper sets up viper instance for file and environment variables.
func configureViper(v *viper.Viper, configPath string) {
	if configPath != "" {
		v.SetConfigFile(configPath)
	}

	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
}

// setDefaults applies default configuration values using Viper.
func setDefaults(v *viper.Viper) {
	v.SetDefault("source.type", defaultSourceType)
	v.SetDefault("kafka.groupID", defaultKafkaGroupID)
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.address", defaultMetricsAddress)

	v.SetDefault("stat.name", defaultStatName)
	v.SetDefault("stat.enabled", true)
	v.SetDefault("stat.timeStart", 0.0)
	v.SetDefault("stat.timeEnd", math.MaxFloat64)
	v.SetDefault("stat.probeFrequency", defaultProbeFrequency)
	v.SetDefault("stat.fftFrequency", defaultFftFrequency)
	v.SetDefault("stat.p", defaultPName)
	v.SetDefault("stat.phi", defaultPhiName)
	v.SetDefault("stat.rho", defaultRhoName)
	v.SetDefault("stat.rhoRef", defaultRhoRef)
	v.SetDefault("stat.heatCapacity", defaultHeatCapacity)
	v.SetDefault("stat.gamma", defaultGamma)
	v.SetDefault("stat.origin", []float64{0, 0, 0})
	v.SetDefault("stat.efficiency", defaultEfficiency)
	v.SetDefault("stat.undefined", defaultUndefined)
	v.SetDefault("stat.outputDir", defaultOutputDir)
	v.SetDefault("stat.fileLogging", true)
	v.SetDefault("stat.fft", true)

	v.SetDefault("log.level", defaultLogLevel)
	v.SetDefault("log.format", defaultLogFormat)
	v.SetDefault("log.fileLoggingEnabled", defaultLogFileEnabled)
	v.SetDefault("log.directory", defaultLogDirectory)
	v.SetDefault("log.filename", defaultLogFilename)
	v.SetDefault("log.maxSize", defaultLogMaxSizeMB)
	v.SetDefault("log.maxBackups", defaultLogMaxBackups)
	v.SetDefault("log.maxAge", defaultLogMaxAgeDays)
	v.SetDefault("log.compress", defaultLogCompress)
}

// readConfigFile attempts to read the configuration file specified in viper.
func readConfigFile(v *viper.Viper) error {
	err := v.ReadInConfig()
	if err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			return ErrConfigFileMissing
		}
		return fmt.Errorf("%w: %w", ErrReadingConfigFile, err)
	}
	return nil
}

// Validate checks the whole configuration tree.
func (c *Config) Validate() error {
	switch c.Source.Type {
	case SourceKafka:
		if len(c.Kafka.Brokers) == 0 {
			return ErrEmptyKafkaBrokers
		}
		if c.Kafka.Topic == "" {
			return ErrEmptyKafkaTopic
		}
		if c.Kafka.GroupID == "" {
			return ErrEmptyKafkaGroupID
		}
	case SourceFile:
		if c.Source.Path == "" {
			return ErrEmptySourcePath
		}
	default:
		return fmt.Errorf("%w: got %q", ErrInvalidSource, c.Source.Type)
	}
	return c.Stat.Validate()
}

// Validate checks the statistics settings that can be judged without a mesh.
func (s *StatConfig) Validate() error {
	if s.Name == "" {
		return ErrEmptyName
	}
	if len(s.InflowPatches) == 0 {
		return ErrEmptyInflowPatches
	}
	if len(s.OutflowPatches) == 0 {
		return ErrEmptyOutflowPatches
	}
	if s.ProbeFrequency <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidProbeFrequency, s.ProbeFrequency)
	}
	if s.FftFrequency <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidFftFrequency, s.FftFrequency)
	}
	if s.TimeEnd < s.TimeStart {
		return fmt.Errorf("%w: [%g, %g]", ErrInvalidTimeWindow, s.TimeStart, s.TimeEnd)
	}
	if s.PName == "" {
		return fmt.Errorf("%w: p", ErrMissingFieldName)
	}
	if s.PhiName == "" {
		return fmt.Errorf("%w: phi", ErrMissingFieldName)
	}
	if _, err := s.OriginVec(); err != nil {
		return fmt.Errorf("origin: %w", err)
	}
	omega, err := s.Omega()
	if err != nil {
		return fmt.Errorf("omega: %w", err)
	}
	if len(s.MomentPatches) > 0 && r3.Norm(omega) == 0 {
		return ErrDegenerateAxis
	}
	if s.Incompressible() && s.RhoRef <= 0 {
		return fmt.Errorf("%w: got %g", ErrInvalidRhoRef, s.RhoRef)
	}
	switch s.Efficiency {
	case EfficiencyAuto, EfficiencyIsentropic, EfficiencyHydraulic:
	default:
		return fmt.Errorf("%w: got %q", ErrInvalidEfficiencyModel, s.Efficiency)
	}
	if s.EfficiencyModel() == EfficiencyIsentropic {
		if s.TName == "" {
			return fmt.Errorf("%w: T is required for isentropic efficiency", ErrMissingFieldName)
		}
		if s.HeatCapacity <= 0 {
			return fmt.Errorf("%w: got %g", ErrInvalidHeatCapacity, s.HeatCapacity)
		}
		if s.Gamma <= 1 {
			return fmt.Errorf("%w: got %g", ErrInvalidGamma, s.Gamma)
		}
	}
	switch s.Undefined {
	case UndefinedWarn, UndefinedSilent:
	default:
		return fmt.Errorf("%w: got %q", ErrInvalidUndefinedPolicy, s.Undefined)
	}
	return nil
}

// Incompressible reports whether no transported density field is bound.
func (s *StatConfig) Incompressible() bool {
	return s.RhoName == "" || s.RhoName == RhoInf
}

// EfficiencyModel resolves "auto" by density formulation.
func (s *StatConfig) EfficiencyModel() string {
	if s.Efficiency != EfficiencyAuto && s.Efficiency != "" {
		return s.Efficiency
	}
	if s.Incompressible() {
		return EfficiencyHydraulic
	}
	return EfficiencyIsentropic
}

// OriginVec returns the axis origin, defaulting to zero when unset.
func (s *StatConfig) OriginVec() (r3.Vec, error) {
	if len(s.Origin) == 0 {
		return r3.Vec{}, nil
	}
	return toVec(s.Origin)
}

// Omega returns the angular velocity in rad/s. An explicit omega vector wins;
// otherwise rpm is converted along the unit axis.
func (s *StatConfig) Omega() (r3.Vec, error) {
	if len(s.OmegaVec) > 0 {
		return toVec(s.OmegaVec)
	}
	if s.RPM == 0 && len(s.Axis) == 0 {
		return r3.Vec{}, nil
	}
	axis, err := toVec(s.Axis)
	if err != nil {
		return r3.Vec{}, err
	}
	if r3.Norm(axis) == 0 {
		return r3.Vec{}, ErrDegenerateAxis
	}
	return r3.Scale(s.RPM*2*math.Pi/60, r3.Unit(axis)), nil
}

func toVec(c []float64) (r3.Vec, error) {
	if len(c) != 3 {
		return r3.Vec{}, fmt.Errorf("%w: got %d", ErrInvalidVector, len(c))
	}
	return r3.Vec{X: c[0], Y: c[1], Z: c[2]}, nil
}
