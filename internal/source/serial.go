package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/sirupsen/logrus"
	"go.bug.st/serial"

	"levelview/internal/telemetry"
)

// DefaultBaudRate is the field boards' serial speed.
const DefaultBaudRate = 9600

// Port is the part of a serial port the source needs.
type Port interface {
	io.ReadWriteCloser
}

// Opener opens a serial port. Tests substitute an in-memory port.
type Opener func(path string, mode *serial.Mode) (Port, error)

// OpenSerialPort opens a real serial device.
func OpenSerialPort(path string, mode *serial.Mode) (Port, error) {
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, err
	}
	return port, nil
}

// SerialConfig describes the serial feed.
type SerialConfig struct {
	Path        string
	BaudRate    int
	SensorCount int
	// HoldZero treats all-zero payloads as "no value".
	HoldZero bool
}

// Serial reads level lines from a serial port.
type Serial struct {
	config SerialConfig
	open   Opener
	logger *logrus.Logger

	mu   sync.Mutex
	port Port
}

// NewSerial creates a serial source. A nil opener opens real devices.
func NewSerial(config SerialConfig, open Opener, logger *logrus.Logger) *Serial {
	if config.BaudRate <= 0 {
		config.BaudRate = DefaultBaudRate
	}
	if config.SensorCount <= 0 {
		config.SensorCount = telemetry.DefaultSensorCount
	}
	if open == nil {
		open = OpenSerialPort
	}
	return &Serial{
		config: config,
		open:   open,
		logger: logger,
	}
}

// Mode returns the line settings used to open the port: 8N1 at the
// configured speed.
func (s *Serial) Mode() *serial.Mode {
	return &serial.Mode{
		BaudRate: s.config.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
}

// Stream implements Source.
func (s *Serial) Stream(ctx context.Context, frames chan<- string) error {
	port, err := s.open(s.config.Path, s.Mode())
	if err != nil {
		return fmt.Errorf("failed to open serial port %s: %w", s.config.Path, err)
	}
	s.mu.Lock()
	s.port = port
	s.mu.Unlock()

	s.logger.WithFields(logrus.Fields{
		"port":      s.config.Path,
		"baud_rate": s.config.BaudRate,
	}).Info("Serial port opened")

	// A blocked Read only returns once the port is closed.
	stop := context.AfterFunc(ctx, func() { _ = s.Close() })
	defer stop()

	parser := telemetry.NewLineParser(s.config.SensorCount, s.config.HoldZero)
	framer := NewFramer(s.logger, 0)
	buf := make([]byte, 256)
	var lines, ignored uint64

	for {
		n, err := port.Read(buf)
		for _, line := range framer.Feed(buf[:n]) {
			lines++
			payload, ok := parser.Parse(line)
			if !ok {
				ignored++
				s.logger.WithField("line", line).Debug("Ignoring line without level field")
				continue
			}
			if err := send(ctx, frames, payload); err != nil {
				return nil
			}
		}
		if err != nil {
			s.logger.WithFields(logrus.Fields{
				"lines":   lines,
				"ignored": ignored,
			}).Info("Serial stream ended")
			if errors.Is(err, io.EOF) {
				return nil
			}
			return finished(ctx, fmt.Errorf("serial read failed: %w", err))
		}
	}
}

// Close closes the port if it is open. It is safe to call repeatedly.
func (s *Serial) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.port == nil {
		return nil
	}
	err := s.port.Close()
	s.port = nil
	return err
}
