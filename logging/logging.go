// Package logging configures the process-wide logger: everything goes to the
// console and to a size-rotated log file.
package logging

import (
	"io"
	"os"

	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options controls logger setup.
type Options struct {
	// File is the log file path. Empty disables file output.
	File string

	// Level is a logrus level name ("debug", "info", ...). Empty means info.
	Level string

	// MaxSizeMB caps the log file size before rotation. Zero means 10.
	MaxSizeMB int
}

// Setup configures the standard logrus logger. Safe to call once at startup.
func Setup(opts Options) {
	level := log.InfoLevel
	if opts.Level != "" {
		if parsed, err := log.ParseLevel(opts.Level); err == nil {
			level = parsed
		} else {
			log.Warnf("unknown log level %q, using info", opts.Level)
		}
	}
	log.SetLevel(level)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	// Console output goes to stderr: stdout belongs to the pipeline-worker
	// protocol when running as a subprocess child.
	out := io.Writer(os.Stderr)
	if opts.File != "" {
		maxSize := opts.MaxSizeMB
		if maxSize <= 0 {
			maxSize = 10
		}
		out = io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    maxSize,
			MaxBackups: 3,
		})
	}
	log.SetOutput(out)
}
