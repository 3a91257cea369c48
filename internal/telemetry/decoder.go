package telemetry

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrFrameLength is returned by Check when a frame does not carry
	// exactly BitsPerSensor bits per sensor.
	ErrFrameLength = errors.New("frame length mismatch")
	// ErrFrameSymbol is returned by Check when a frame contains anything
	// other than '0' and '1'.
	ErrFrameSymbol = errors.New("frame contains non-binary symbol")
)

// Check reports whether frame is a well-formed packed bit string for
// sensorCount sensors.
func Check(frame string, sensorCount int) error {
	if len(frame) != sensorCount*BitsPerSensor {
		return fmt.Errorf("%w: got %d bits, expected %d", ErrFrameLength, len(frame), sensorCount*BitsPerSensor)
	}
	for i := 0; i < len(frame); i++ {
		if frame[i] != '0' && frame[i] != '1' {
			return fmt.Errorf("%w: %q at offset %d", ErrFrameSymbol, frame[i], i)
		}
	}
	return nil
}

// Decode splits a packed bit string into sensorCount readings, most
// significant bit first. A frame that fails Check decodes to all zeros:
// that is the "no usable data" reading, not an error.
func Decode(frame string, sensorCount int) []uint8 {
	if sensorCount < 0 {
		sensorCount = 0
	}
	values := make([]uint8, sensorCount)
	if Check(frame, sensorCount) != nil {
		return values
	}

	for i := range values {
		chunk := frame[i*BitsPerSensor : (i+1)*BitsPerSensor]
		var value uint8
		for j := 0; j < BitsPerSensor; j++ {
			value = value<<1 | (chunk[j] - '0')
		}
		values[i] = value
	}
	return values
}

// Bits expands a reading into its 8 flags, position 0 being the MSB.
func Bits(value uint8) [BitsPerSensor]bool {
	var bits [BitsPerSensor]bool
	for p := 0; p < BitsPerSensor; p++ {
		bits[p] = (value>>(7-p))&1 == 1
	}
	return bits
}

// FormatBits renders a reading as an 8-digit binary string.
func FormatBits(value uint8) string {
	return fmt.Sprintf("%08b", value)
}

// FromRegisters packs 16-bit holding registers into a frame, register
// order preserved and each register MSB first. Two sensors share one
// register: the high byte is the lower-numbered sensor.
func FromRegisters(registers []uint16) string {
	var builder strings.Builder
	builder.Grow(len(registers) * 16)
	for _, register := range registers {
		fmt.Fprintf(&builder, "%016b", register)
	}
	return builder.String()
}
