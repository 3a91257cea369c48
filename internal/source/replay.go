package source

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"levelview/internal/telemetry"
)

// Reader replays a capture line by line. Lines may be serial feed lines
// or bare frames as written by the recorder.
type Reader struct {
	r        io.Reader
	interval time.Duration
	parser   *telemetry.LineParser
	count    int
	logger   *logrus.Logger
}

// NewReader creates a replay source that waits interval between frames.
func NewReader(r io.Reader, sensorCount int, interval time.Duration, logger *logrus.Logger) *Reader {
	if sensorCount <= 0 {
		sensorCount = telemetry.DefaultSensorCount
	}
	return &Reader{
		r:        r,
		interval: interval,
		parser:   telemetry.NewLineParser(sensorCount, false),
		count:    sensorCount,
		logger:   logger,
	}
}

// Stream implements Source. It returns nil at the end of the input.
func (s *Reader) Stream(ctx context.Context, frames chan<- string) error {
	scanner := bufio.NewScanner(s.r)
	scanner.Buffer(make([]byte, 0, 1024), DefaultMaxLine)

	sent := 0
	for scanner.Scan() {
		line := scanner.Text()
		frame, ok := s.parser.Parse(line)
		if !ok {
			if telemetry.Check(line, s.count) != nil {
				continue
			}
			frame = line
		}
		if sent > 0 {
			if err := wait(ctx, s.interval); err != nil {
				return nil
			}
		}
		if err := send(ctx, frames, frame); err != nil {
			return nil
		}
		sent++
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("replay read failed after %d frames: %w", sent, err)
	}
	s.logger.WithField("frames", sent).Debug("Replay finished")
	return nil
}

// Close closes the underlying reader when it is closable.
func (s *Reader) Close() error {
	if closer, ok := s.r.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// Frames replays a fixed list of frames.
type Frames struct {
	frames   []string
	interval time.Duration
}

// NewFrames creates a source over frames.
func NewFrames(frames []string, interval time.Duration) *Frames {
	return &Frames{frames: frames, interval: interval}
}

// Stream implements Source.
func (s *Frames) Stream(ctx context.Context, frames chan<- string) error {
	for i, frame := range s.frames {
		if i > 0 {
			if err := wait(ctx, s.interval); err != nil {
				return nil
			}
		}
		if err := send(ctx, frames, frame); err != nil {
			return nil
		}
	}
	return nil
}

// Close implements Source.
func (s *Frames) Close() error {
	return nil
}
