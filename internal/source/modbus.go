package source

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/goburrow/modbus"
	"github.com/sirupsen/logrus"

	"levelview/internal/telemetry"
)

// Modbus defaults
const (
	DefaultPollInterval  = 500 * time.Millisecond
	DefaultModbusTimeout = 2 * time.Second
)

// RegisterReader is the part of a Modbus client the source uses.
type RegisterReader interface {
	ReadHoldingRegisters(address, quantity uint16) ([]byte, error)
}

// ModbusConfig describes a Modbus TCP level gateway. Two sensors share a
// holding register, the lower-numbered one in the high byte.
type ModbusConfig struct {
	Endpoint    string
	SlaveID     byte
	Address     uint16
	SensorCount int
	Interval    time.Duration
	Timeout     time.Duration
}

// Modbus polls holding registers and converts them to frames.
type Modbus struct {
	config ModbusConfig
	logger *logrus.Logger

	mu      sync.Mutex
	handler *modbus.TCPClientHandler
	client  RegisterReader
}

// NewModbus creates a source that connects on Stream.
func NewModbus(config ModbusConfig, logger *logrus.Logger) *Modbus {
	if config.SensorCount <= 0 {
		config.SensorCount = telemetry.DefaultSensorCount
	}
	if config.Interval <= 0 {
		config.Interval = DefaultPollInterval
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultModbusTimeout
	}
	return &Modbus{
		config: config,
		logger: logger,
	}
}

// NewModbusWithClient creates a source over an existing client.
func NewModbusWithClient(config ModbusConfig, client RegisterReader, logger *logrus.Logger) *Modbus {
	m := NewModbus(config, logger)
	m.client = client
	return m
}

// Registers returns how many holding registers one frame spans.
func (m *Modbus) Registers() uint16 {
	return uint16((m.config.SensorCount + 1) / 2)
}

func (m *Modbus) connect() (RegisterReader, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.client != nil {
		return m.client, nil
	}
	if m.config.Endpoint == "" {
		return nil, errors.New("modbus endpoint required")
	}

	handler := modbus.NewTCPClientHandler(m.config.Endpoint)
	handler.Timeout = m.config.Timeout
	handler.SlaveId = m.config.SlaveID
	if err := handler.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", m.config.Endpoint, err)
	}
	m.handler = handler
	m.client = modbus.NewClient(handler)
	return m.client, nil
}

// Stream implements Source. Failed polls are logged and retried on the
// next interval.
func (m *Modbus) Stream(ctx context.Context, frames chan<- string) error {
	client, err := m.connect()
	if err != nil {
		return err
	}
	m.logger.WithFields(logrus.Fields{
		"endpoint":  m.config.Endpoint,
		"slave_id":  m.config.SlaveID,
		"registers": m.Registers(),
		"interval":  m.config.Interval,
	}).Info("Polling Modbus level registers")

	var failures int
	for {
		frame, err := m.poll(client)
		if err != nil {
			failures++
			m.logger.WithError(err).WithField("consecutive_failures", failures).Warn("Modbus poll failed")
		} else {
			failures = 0
			if err := send(ctx, frames, frame); err != nil {
				return nil
			}
		}
		if err := wait(ctx, m.config.Interval); err != nil {
			return nil
		}
	}
}

func (m *Modbus) poll(client RegisterReader) (string, error) {
	quantity := m.Registers()
	data, err := client.ReadHoldingRegisters(m.config.Address, quantity)
	if err != nil {
		return "", err
	}
	if len(data) != int(quantity)*2 {
		return "", fmt.Errorf("short register read: got %d bytes, want %d", len(data), quantity*2)
	}

	registers := make([]uint16, quantity)
	for i := range registers {
		registers[i] = binary.BigEndian.Uint16(data[i*2:])
	}
	// an odd sensor count leaves a padding byte in the last register
	frame := telemetry.FromRegisters(registers)
	return frame[:m.config.SensorCount*telemetry.BitsPerSensor], nil
}

// Close drops the TCP connection.
func (m *Modbus) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.handler == nil {
		return nil
	}
	err := m.handler.Close()
	m.handler = nil
	m.client = nil
	return err
}
