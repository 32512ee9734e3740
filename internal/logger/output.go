package logger

import (
	"io"
	"log"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// FileOptions configures the rotated log file. An empty Filename disables
// file output.
type FileOptions struct {
	Filename   string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// NewStdLogger builds the underlying *log.Logger. Under systemd the
// journal adds timestamps, so the prefix is left empty there.
func NewStdLogger(stdout io.Writer, file FileOptions) (*log.Logger, io.Closer) {
	var closer io.Closer = nopCloser{}
	w := stdout
	if file.Filename != "" {
		lj := &lumberjack.Logger{
			Filename:   file.Filename,
			MaxSize:    file.MaxSizeMB,
			MaxBackups: file.MaxBackups,
			MaxAge:     file.MaxAgeDays,
			Compress:   file.Compress,
		}
		w = io.MultiWriter(stdout, lj)
		closer = lj
	}

	if os.Getenv("INVOCATION_ID") != "" {
		return log.New(w, "", 0), closer
	}
	return log.New(w, "", log.LstdFlags|log.Lmicroseconds|log.Lmsgprefix), closer
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
