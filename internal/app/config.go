package app

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"levelview/internal/camera"
	"levelview/internal/source"
	"levelview/internal/topology"
)

// Default configuration constants
const (
	DefaultFPS        = 30
	DefaultSerialPort = "/dev/ttyUSB0"
	DefaultLogDir     = "./logs"
	DefaultRecordPath = "levelview.db"
	DefaultExportDir  = "."
	DefaultReplay     = 500 * time.Millisecond
	MaxFPS            = 120
)

// Source kinds
const (
	SourceSerial = "serial"
	SourceModbus = "modbus"
	SourceFile   = "file"
)

// SerialConfig selects the serial feed.
type SerialConfig struct {
	Port     string `yaml:"port"`
	BaudRate int    `yaml:"baud_rate"`
}

// ModbusConfig selects a Modbus TCP gateway.
type ModbusConfig struct {
	Endpoint string        `yaml:"endpoint"`
	UnitID   uint8         `yaml:"unit_id"`
	Address  uint16        `yaml:"address"`
	Interval time.Duration `yaml:"interval"`
	Timeout  time.Duration `yaml:"timeout"`
}

// SourceConfig selects where frames come from.
type SourceConfig struct {
	Kind   string       `yaml:"kind"`
	Serial SerialConfig `yaml:"serial"`
	Modbus ModbusConfig `yaml:"modbus"`
	// File is a capture replayed by the file source.
	File     string        `yaml:"file"`
	Interval time.Duration `yaml:"interval"`
	// HoldZero keeps the previous snapshot when the serial feed sends all
	// zeros, as the level board does between readings. On by default.
	HoldZero bool `yaml:"hold_zero"`
}

// Config holds application configuration
type Config struct {
	Source      SourceConfig   `yaml:"source"`
	Layout      topology.Table `yaml:"layout"`
	Camera      camera.Config  `yaml:"camera"`
	FPS         int            `yaml:"fps"`
	RecordPath  string         `yaml:"record_path"`
	Record      bool           `yaml:"record"`
	ExportDir   string         `yaml:"export_dir"`
	MetricsAddr string         `yaml:"metrics_addr"`

	LogDir       string `yaml:"log_dir"`
	LogRotateUTC bool   `yaml:"log_rotate_utc"`
	Verbose      bool   `yaml:"verbose"`
	ShowVersion  bool   `yaml:"-"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Source: SourceConfig{
			Kind: SourceSerial,
			Serial: SerialConfig{
				Port:     DefaultSerialPort,
				BaudRate: source.DefaultBaudRate,
			},
			Modbus: ModbusConfig{
				Interval: source.DefaultPollInterval,
				Timeout:  source.DefaultModbusTimeout,
			},
			Interval: DefaultReplay,
			HoldZero: true,
		},
		Layout:       topology.DefaultTable(),
		Camera:       camera.DefaultConfig(),
		FPS:          DefaultFPS,
		RecordPath:   DefaultRecordPath,
		ExportDir:    DefaultExportDir,
		LogDir:       DefaultLogDir,
		LogRotateUTC: true,
	}
}

// LoadFile reads a YAML file over the defaults. Keys the file leaves out
// keep their default values.
func LoadFile(path string) (Config, error) {
	config := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return config, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return config, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return config, nil
}

// Validate checks every section. The layout is validated by building it.
func (c Config) Validate() error {
	var errs []error
	if c.FPS <= 0 || c.FPS > MaxFPS {
		errs = append(errs, fmt.Errorf("fps %d outside 1..%d", c.FPS, MaxFPS))
	}
	if err := c.Camera.Validate(); err != nil {
		errs = append(errs, err)
	}
	if _, err := topology.New(c.Layout); err != nil {
		errs = append(errs, fmt.Errorf("layout: %w", err))
	}

	switch c.Source.Kind {
	case SourceSerial:
		if c.Source.Serial.Port == "" {
			errs = append(errs, errors.New("serial source needs a port"))
		}
	case SourceModbus:
		if c.Source.Modbus.Endpoint == "" {
			errs = append(errs, errors.New("modbus source needs an endpoint"))
		}
	case SourceFile:
		if c.Source.File == "" {
			errs = append(errs, errors.New("file source needs a file"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown source kind %q", c.Source.Kind))
	}
	return errors.Join(errs...)
}

// Topology builds the configured layout.
func (c Config) Topology() (*topology.Topology, error) {
	return topology.New(c.Layout)
}
