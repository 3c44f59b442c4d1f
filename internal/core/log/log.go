// Package log wires logrus to the chnl configuration.
package log

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/guiyumin/chnl/internal/core/config"
	"github.com/sirupsen/logrus"
)

var logger = newLogger(os.Stderr)

func newLogger(out io.Writer) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(out)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	l.SetLevel(logrus.WarnLevel)
	return l
}

// Setup applies the log section of the config. An unknown level falls back
// to warn. When cfg.File is set, logs are appended to it.
func Setup(cfg config.LogConfig) error {
	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0755); err != nil {
			return fmt.Errorf("create log directory: %w", err)
		}
		f, err := os.OpenFile(cfg.File, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		logger.SetOutput(f)
	}

	if cfg.JSON {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	lvl, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		lvl = logrus.WarnLevel
	}
	logger.SetLevel(lvl)
	return nil
}

// SetOutput redirects log output, mainly for tests and the TUI
func SetOutput(w io.Writer) {
	logger.SetOutput(w)
}

// SetLevel overrides the level, e.g. for --verbose
func SetLevel(lvl logrus.Level) {
	logger.SetLevel(lvl)
}

// Logger exposes the underlying logger for integrations such as gin
func Logger() *logrus.Logger {
	return logger
}

// WithFields starts a structured entry
func WithFields(fields logrus.Fields) *logrus.Entry {
	return logger.WithFields(fields)
}

// WithField starts a structured entry with a single field
func WithField(key string, value any) *logrus.Entry {
	return logger.WithField(key, value)
}

func Debugf(format string, args ...any) { logger.Debugf(format, args...) }
func Infof(format string, args ...any)  { logger.Infof(format, args...) }
func Warnf(format string, args ...any)  { logger.Warnf(format, args...) }
func Errorf(format string, args ...any) { logger.Errorf(format, args...) }
