// Package logging builds the logrus loggers shared by the server and tools.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// New creates a logger for the given level and format ("json" or "text").
// Unknown levels fall back to info.
func New(level, format string, out io.Writer) *logrus.Logger {
	log := logrus.New()

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)

	if strings.ToLower(format) == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	if out == nil {
		out = os.Stdout
	}
	log.SetOutput(out)
	return log
}

// FromEnv creates a logger configured by LOG_LEVEL and LOG_FORMAT
func FromEnv() *logrus.Logger {
	level, ok := os.LookupEnv("LOG_LEVEL")
	if !ok {
		level = "info"
	}
	return New(level, os.Getenv("LOG_FORMAT"), os.Stdout)
}

// Discard returns a logger that writes nowhere, for tests
func Discard() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// ForSession returns a child logger tagged with the session ID
func ForSession(log logrus.FieldLogger, sessionID string) logrus.FieldLogger {
	return log.WithField("session", sessionID)
}
