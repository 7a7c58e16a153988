// Package logging configures zerolog for the extcap binaries. Log output goes
// to stderr: stdout carries the extcap handshake and the pcap stream, so it
// must stay clean.
package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Setup builds the process logger. level is a zerolog level name; an empty or
// unknown level falls back to info. When file is non-empty, log lines are
// additionally written to a size-rotated file.
func Setup(level, file string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	var w io.Writer = zerolog.ConsoleWriter{Out: os.Stderr}
	if file != "" {
		rotated := &lumberjack.Logger{
			Filename:   file,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     14, // days
		}
		w = zerolog.MultiLevelWriter(zerolog.ConsoleWriter{Out: os.Stderr}, rotated)
	}

	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}
