package telemetry

import (
	"strings"
)

// LineParser extracts level payloads from serial feed lines.
type LineParser struct {
	sensorCount int
	holdZero    bool
}

// NewLineParser creates a parser for frames of sensorCount sensors. With
// holdZero set, an all-zero payload is reported as "no value" so the
// previous reading stays on screen; the field boards emit all zeros while
// the level bus is resetting.
func NewLineParser(sensorCount int, holdZero bool) *LineParser {
	return &LineParser{
		sensorCount: sensorCount,
		holdZero:    holdZero,
	}
}

// Parse inspects one line. ok is false when the line carries no level
// field at all and should be ignored. When ok is true, an empty payload
// means the board reported no value for this cycle.
func (p *LineParser) Parse(line string) (payload string, ok bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return "", false
	}
	if strings.EqualFold(line, NotAvailable) {
		return "", true
	}

	rest, found := afterPrefix(line)
	if !found {
		return "", false
	}
	if len(rest) >= len(NotAvailable) && strings.EqualFold(rest[:len(NotAvailable)], NotAvailable) {
		return "", true
	}

	want := p.sensorCount * BitsPerSensor
	if len(rest) < want {
		return "", false
	}
	payload = rest[:want]
	if Check(payload, p.sensorCount) != nil {
		return "", false
	}
	if p.holdZero && strings.Count(payload, "0") == want {
		return "", true
	}
	return payload, true
}

// afterPrefix returns the text following the level marker, preferring the
// current marker over the legacy one.
func afterPrefix(line string) (string, bool) {
	for _, prefix := range []string{PrefixCurrent, PrefixLegacy} {
		if idx := strings.Index(line, prefix); idx >= 0 {
			return line[idx+len(prefix):], true
		}
	}
	return "", false
}
