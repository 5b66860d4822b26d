// Package logging builds the component loggers used across soulsync.
//
// Components take a *log.Logger with a bracketed prefix ("[sync] ",
// "[bridge] ") and fall back to a stderr logger when given nil. When a log
// file is configured, output goes through lumberjack for rotation.
package logging

import (
	"io"
	"log"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Options controls where logs are written.
type Options struct {
	// File, when non-empty, enables rotating file output.
	File string
	// Quiet suppresses stderr output (file-only logging).
	Quiet bool
}

// Writer returns the shared log destination for the given options.
func Writer(opts Options) io.Writer {
	if opts.File == "" {
		if opts.Quiet {
			return io.Discard
		}
		return os.Stderr
	}
	rotating := &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     30, // days
	}
	if opts.Quiet {
		return rotating
	}
	return io.MultiWriter(os.Stderr, rotating)
}

// New returns a component logger with the given prefix writing to w.
func New(w io.Writer, prefix string) *log.Logger {
	if w == nil {
		w = os.Stderr
	}
	return log.New(w, prefix, log.LstdFlags)
}
