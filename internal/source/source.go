// Package source produces level frames from the field feed: a serial
// port, a Modbus TCP gateway, or a recorded capture.
package source

import (
	"context"
	"time"
)

// Source streams level frames. An empty frame means the feed reported no
// value for a cycle.
type Source interface {
	// Stream sends frames until the feed ends, ctx is cancelled or an
	// unrecoverable error occurs. Cancellation is not an error.
	Stream(ctx context.Context, frames chan<- string) error
	Close() error
}

// Run streams src and hands every frame to apply from a single goroutine.
// It returns when the stream ends.
func Run(ctx context.Context, src Source, apply func(frame string)) error {
	frames := make(chan string, 16)
	done := make(chan error, 1)
	go func() {
		done <- src.Stream(ctx, frames)
		close(frames)
	}()

	for frame := range frames {
		apply(frame)
	}
	return <-done
}

// send delivers one frame unless ctx is cancelled first.
func send(ctx context.Context, frames chan<- string, frame string) error {
	select {
	case frames <- frame:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// wait sleeps for d unless ctx is cancelled first.
func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// finished maps cancellation to a clean exit.
func finished(ctx context.Context, err error) error {
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}
