// Package logging configures the process-wide slog logger.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Options selects the log output.
type Options struct {
	Format     string // "json" or "text"
	Production bool   // info level instead of debug
	File       string // optional rotated log file, written in addition to stdout
}

// New builds a logger tagged with service=star-infinity. The returned closer
// releases the log file, if any.
func New(opts Options, stdout io.Writer) (*slog.Logger, io.Closer) {
	level := slog.LevelDebug
	if opts.Production {
		level = slog.LevelInfo
	}

	w := stdout
	var closer io.Closer = nopCloser{}
	if opts.File != "" {
		lj := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    100, // megabytes
			MaxBackups: 5,
			MaxAge:     30, // days
			Compress:   true,
		}
		w = io.MultiWriter(stdout, lj)
		closer = lj
	}

	handlerOpts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	if opts.Format == "text" {
		h = slog.NewTextHandler(w, handlerOpts)
	} else {
		h = slog.NewJSONHandler(w, handlerOpts)
	}
	return slog.New(h).With("service", "star-infinity"), closer
}

// Setup installs the logger from New as the slog default.
func Setup(opts Options) io.Closer {
	logger, closer := New(opts, os.Stdout)
	slog.SetDefault(logger)
	return closer
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Stopwatch measures an operation and logs its duration.
type Stopwatch struct {
	name  string
	start time.Time
}

// StartStopwatch starts timing the named operation.
func StartStopwatch(name string) *Stopwatch {
	return &Stopwatch{name: name, start: time.Now()}
}

// Checkpoint logs the elapsed time at an intermediate step at debug level.
func (s *Stopwatch) Checkpoint(step string) time.Duration {
	elapsed := time.Since(s.start)
	slog.Debug("checkpoint reached", "operation", s.name, "checkpoint", step, "elapsed", FormatDuration(elapsed))
	return elapsed
}

// Stop logs the total elapsed time at info level.
func (s *Stopwatch) Stop() time.Duration {
	elapsed := time.Since(s.start)
	slog.Info("operation completed", "operation", s.name, "elapsed", FormatDuration(elapsed))
	return elapsed
}

// FormatDuration renders d as "1h 2m 3s 4ms", omitting zero units.
// Durations under a millisecond render as "0".
func FormatDuration(d time.Duration) string {
	ms := d.Milliseconds()
	parts := []struct {
		n    int64
		unit string
	}{
		{ms / 3_600_000, "h"},
		{ms / 60_000 % 60, "m"},
		{ms / 1000 % 60, "s"},
		{ms % 1000, "ms"},
	}
	var b strings.Builder
	for _, p := range parts {
		if p.n == 0 {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(strconv.FormatInt(p.n, 10))
		b.WriteString(p.unit)
	}
	if b.Len() == 0 {
		return "0"
	}
	return b.String()
}
