// Package logger builds the logrus logger shared by every component.
package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Options struct {
	Level string
	// Format is text or json.
	Format string
	// File, when set, receives the logs instead of stderr and is rotated.
	File string
	// Env set to test discards all output.
	Env string
}

// NewLogger returns a logger configured from opts.
func NewLogger(opts Options) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetLevel(GetLevel(opts.Level))

	if strings.EqualFold(opts.Format, "json") {
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyMsg:   "message",
				logrus.FieldKeyLevel: "level",
			},
		})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.RFC3339,
		})
	}

	switch {
	case opts.Env == "test":
		logger.SetOutput(io.Discard)
	case opts.File != "":
		logger.SetOutput(&lumberjack.Logger{
			Filename: opts.File,
			MaxSize:  10, // megabytes
			MaxAge:   30, // days
			Compress: true,
		})
	}

	return logger
}

// GetLevel maps a level name to a logrus level, defaulting to info.
func GetLevel(level string) logrus.Level {
	switch strings.ToLower(level) {
	case "trace":
		return logrus.TraceLevel
	case "debug":
		return logrus.DebugLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}
