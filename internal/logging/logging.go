// Package logging builds the run logger. Records go to the console and to a
// size-capped log file that rotates once it grows past MaxSizeMB.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	// DefaultFileName is the log file written into the report directory
	DefaultFileName = "test_output.log"
	// DefaultMaxSizeMB caps the log file before it rotates
	DefaultMaxSizeMB = 5
	// DefaultMaxBackups is the number of rotated files kept
	DefaultMaxBackups = 1
)

// Options configures New
type Options struct {
	Dir       string    // directory for the log file; empty disables file output
	File      string    // log file name, DefaultFileName when empty
	MaxSizeMB int       // rotation threshold, DefaultMaxSizeMB when zero
	Verbose   bool      // include debug records
	Console   io.Writer // console sink, nil for none
}

// Logger is a slog.Logger that owns its log file
type Logger struct {
	*slog.Logger
	file *lumberjack.Logger
	path string
}

// New creates a Logger writing text records to the console and the log file
func New(opts Options) (*Logger, error) {
	level := slog.LevelInfo
	if opts.Verbose {
		level = slog.LevelDebug
	}

	var writers []io.Writer
	if opts.Console != nil {
		writers = append(writers, opts.Console)
	}

	l := &Logger{}
	if opts.Dir != "" {
		if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		name := opts.File
		if name == "" {
			name = DefaultFileName
		}
		size := opts.MaxSizeMB
		if size <= 0 {
			size = DefaultMaxSizeMB
		}
		l.path = filepath.Join(opts.Dir, name)
		l.file = &lumberjack.Logger{
			Filename:   l.path,
			MaxSize:    size,
			MaxBackups: DefaultMaxBackups,
		}
		writers = append(writers, l.file)
	}

	var w io.Writer = io.Discard
	if len(writers) > 0 {
		w = io.MultiWriter(writers...)
	}
	l.Logger = slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	return l, nil
}

// Path returns the log file path, or "" when logging only to the console
func (l *Logger) Path() string {
	return l.path
}

// Close flushes and closes the log file
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}
