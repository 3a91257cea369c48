package source

import (
	"bytes"

	"github.com/sirupsen/logrus"
)

// DefaultMaxLine bounds a buffered partial line. A board that never sends
// a terminator would otherwise grow the buffer without limit.
const DefaultMaxLine = 4096

// Framer splits raw serial bytes into CR or LF terminated lines.
type Framer struct {
	logger  *logrus.Logger
	buffer  []byte
	maxLine int
}

// NewFramer creates a framer. maxLine <= 0 uses DefaultMaxLine.
func NewFramer(logger *logrus.Logger, maxLine int) *Framer {
	if maxLine <= 0 {
		maxLine = DefaultMaxLine
	}
	return &Framer{
		logger:  logger,
		buffer:  make([]byte, 0, 512),
		maxLine: maxLine,
	}
}

// Feed appends data and returns every line it completed. Empty lines
// (CRLF pairs, blank keep-alives) are dropped.
func (f *Framer) Feed(data []byte) []string {
	f.buffer = append(f.buffer, data...)

	var lines []string
	rest := f.buffer
	for {
		end := bytes.IndexAny(rest, "\r\n")
		if end == -1 {
			break
		}
		if end > 0 {
			lines = append(lines, string(rest[:end]))
		}
		rest = rest[end+1:]
	}
	f.buffer = append(f.buffer[:0], rest...)

	if len(f.buffer) > f.maxLine {
		f.logger.WithFields(logrus.Fields{
			"buffer_size": len(f.buffer),
			"max_line":    f.maxLine,
		}).Debug("No line terminator found, clearing buffer")
		f.buffer = f.buffer[:0]
	}
	return lines
}

// Pending returns the bytes of the incomplete trailing line.
func (f *Framer) Pending() int {
	return len(f.buffer)
}
