// Package logging provides the daily-rotating log file the viewer logs
// to while the terminal UI owns stdout.
package logging

import (
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrClosed is returned by Write after Close.
var ErrClosed = errors.New("log rotator closed")

const dateLayout = "2006-01-02"

// Rotator is an io.Writer that starts a new file each day and gzips the
// previous one. The logger passed to it reports rotation events and must
// not write to the rotator itself.
type Rotator struct {
	dir    string
	prefix string
	useUTC bool
	logger *logrus.Logger
	now    func() time.Time

	mu          sync.Mutex
	currentFile *os.File
	currentDate string
	closed      bool
	compressing sync.WaitGroup
}

// NewRotator creates dir if needed and opens today's file
// (<prefix>_YYYY-MM-DD.log).
func NewRotator(dir, prefix string, useUTC bool, logger *logrus.Logger) (*Rotator, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	r := &Rotator{
		dir:    dir,
		prefix: prefix,
		useUTC: useUTC,
		logger: logger,
		now:    time.Now,
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.rotate(r.date()); err != nil {
		return nil, fmt.Errorf("failed to initialize log file: %w", err)
	}
	return r, nil
}

func (r *Rotator) date() string {
	now := r.now()
	if r.useUTC {
		now = now.UTC()
	}
	return now.Format(dateLayout)
}

func (r *Rotator) path(date string) string {
	return filepath.Join(r.dir, fmt.Sprintf("%s_%s.log", r.prefix, date))
}

// Write implements io.Writer, switching files first when the date changed.
func (r *Rotator) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return 0, ErrClosed
	}
	if date := r.date(); date != r.currentDate {
		r.logger.WithFields(logrus.Fields{
			"old_date": r.currentDate,
			"new_date": date,
		}).Info("Rotating log file")
		if err := r.rotate(date); err != nil {
			return 0, err
		}
	}
	return r.currentFile.Write(p)
}

// rotate closes the current file, schedules its compression and opens the
// file for date. Callers hold mu.
func (r *Rotator) rotate(date string) error {
	if r.currentFile != nil {
		if err := r.currentFile.Close(); err != nil {
			r.logger.WithError(err).Error("Failed to close old log file")
		}
		oldDate := r.currentDate
		r.compressing.Add(1)
		go func() {
			defer r.compressing.Done()
			r.compress(oldDate)
		}()
	}

	path := r.path(date)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to create log file %s: %w", path, err)
	}
	r.currentFile = file
	r.currentDate = date

	r.logger.WithField("file", path).Debug("Opened log file")
	return nil
}

// compress gzips the file for date and removes the original.
func (r *Rotator) compress(date string) {
	logFile := r.path(date)
	gzipFile := logFile + ".gz"

	src, err := os.Open(logFile)
	if err != nil {
		if !os.IsNotExist(err) {
			r.logger.WithError(err).WithField("file", logFile).Error("Failed to open log file for compression")
		}
		return
	}
	defer src.Close()

	dst, err := os.Create(gzipFile)
	if err != nil {
		r.logger.WithError(err).WithField("file", gzipFile).Error("Failed to create compressed file")
		return
	}
	defer dst.Close()

	gz := gzip.NewWriter(dst)
	gz.Name = filepath.Base(logFile)
	gz.ModTime = r.now()

	if _, err := io.Copy(gz, src); err != nil {
		r.logger.WithError(err).Error("Failed to compress log file")
		return
	}
	if err := gz.Close(); err != nil {
		r.logger.WithError(err).Error("Failed to close gzip writer")
		return
	}
	if err := dst.Close(); err != nil {
		r.logger.WithError(err).Error("Failed to close compressed file")
		return
	}
	if err := os.Remove(logFile); err != nil {
		r.logger.WithError(err).WithField("file", logFile).Error("Failed to remove original log file")
		return
	}
	r.logger.WithField("file", gzipFile).Debug("Log file compressed")
}

// CurrentFile returns the path being written, or "" after Close.
func (r *Rotator) CurrentFile() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ""
	}
	return r.path(r.currentDate)
}

// Files lists every log file of this prefix, compressed or not.
func (r *Rotator) Files() ([]string, error) {
	files, err := filepath.Glob(filepath.Join(r.dir, r.prefix+"_*.log*"))
	if err != nil {
		return nil, fmt.Errorf("failed to list log files: %w", err)
	}
	return files, nil
}

// CleanupOld removes log files last modified more than maxDays ago. The
// current file is kept.
func (r *Rotator) CleanupOld(maxDays int) (int, error) {
	if maxDays <= 0 {
		return 0, fmt.Errorf("maxDays must be positive, got %d", maxDays)
	}
	files, err := r.Files()
	if err != nil {
		return 0, err
	}

	cutoff := r.now().AddDate(0, 0, -maxDays)
	current := r.CurrentFile()
	removed := 0
	for _, file := range files {
		if file == current {
			continue
		}
		info, err := os.Stat(file)
		if err != nil {
			r.logger.WithError(err).WithField("file", file).Warn("Failed to stat log file")
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(file); err != nil {
			r.logger.WithError(err).WithField("file", file).Error("Failed to remove old log file")
			continue
		}
		removed++
	}
	return removed, nil
}

// Close closes the current file and waits for pending compression.
func (r *Rotator) Close() error {
	r.mu.Lock()
	var err error
	if !r.closed {
		r.closed = true
		err = r.currentFile.Close()
		r.currentFile = nil
	}
	r.mu.Unlock()

	r.compressing.Wait()
	return err
}
