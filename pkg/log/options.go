package log

import (
	"io"

	"github.com/sirupsen/logrus"
)

// Option configures a logger created by New or changed by SetOptions.
type Option func(logger *logger)

// WithLevel sets the most verbose level that is written.
func WithLevel(level Level) Option {
	return func(logger *logger) {
		logger.Logger.SetLevel(level.ToLogrusLevel())
	}
}

// WithOutput sets where entries are written.
func WithOutput(output io.Writer) Option {
	return func(logger *logger) {
		logger.Logger.SetOutput(output)
	}
}

// WithFormatter sets the entry formatter, see NewFormatter.
func WithFormatter(formatter logrus.Formatter) Option {
	return func(logger *logger) {
		logger.Logger.SetFormatter(formatter)
	}
}
