package log

import (
	"io"

	"github.com/sirupsen/logrus"
)

// Logger is the leveled logger passed through the build in the context.
// Field methods return a new Logger and leave the receiver unchanged.
type Logger interface {
	// Clone returns a logger with its own output, level and formatter, and the same fields.
	Clone() Logger
	// SetOptions changes the logger in place.
	SetOptions(opts ...Option)
	// WithOptions returns a clone with the options applied.
	WithOptions(opts ...Option) Logger

	Level() Level
	// SetLevel parses and sets the level.
	SetLevel(str string) error

	WithField(key string, value any) Logger
	WithFields(fields Fields) Logger
	WithError(err error) Logger

	// WriterLevel returns a writer whose lines are logged at level. The caller must close it.
	WriterLevel(level Level) *io.PipeWriter

	Trace(args ...any)
	Tracef(format string, args ...any)
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

type logger struct {
	*logrus.Entry
}

// New returns an info level logger using the pretty format, then applies opts.
func New(opts ...Option) Logger {
	base := logrus.New()
	base.SetLevel(InfoLevel.ToLogrusLevel())
	base.SetFormatter(NewPrettyFormatter())

	logger := &logger{Entry: logrus.NewEntry(base)}
	logger.SetOptions(opts...)

	return logger
}

func (logger *logger) Clone() Logger {
	return logger.clone()
}

func (logger *logger) SetOptions(opts ...Option) {
	for _, opt := range opts {
		opt(logger)
	}
}

func (logger *logger) WithOptions(opts ...Option) Logger {
	clone := logger.clone()
	clone.SetOptions(opts...)

	return clone
}

func (logger *logger) Level() Level {
	return FromLogrusLevel(logger.Logger.GetLevel())
}

func (logger *logger) SetLevel(str string) error {
	level, err := ParseLevel(str)
	if err != nil {
		return err
	}

	logger.Logger.SetLevel(level.ToLogrusLevel())

	return nil
}

func (logger *logger) WriterLevel(level Level) *io.PipeWriter {
	return logger.Logger.WriterLevel(level.ToLogrusLevel())
}

func (logger *logger) WithField(key string, value any) Logger {
	return logger.WithFields(Fields{key: value})
}

func (logger *logger) WithFields(fields Fields) Logger {
	return logger.withEntry(logger.Entry.WithFields(logrus.Fields(fields)))
}

func (logger *logger) WithError(err error) Logger {
	return logger.withEntry(logger.Entry.WithError(err))
}

func (logger *logger) Trace(args ...any) { logger.Entry.Log(TraceLevel.ToLogrusLevel(), args...) }

func (logger *logger) Tracef(format string, args ...any) { logger.logf(TraceLevel, format, args) }
func (logger *logger) Debugf(format string, args ...any) { logger.logf(DebugLevel, format, args) }
func (logger *logger) Infof(format string, args ...any)  { logger.logf(InfoLevel, format, args) }
func (logger *logger) Warnf(format string, args ...any)  { logger.logf(WarnLevel, format, args) }
func (logger *logger) Errorf(format string, args ...any) { logger.logf(ErrorLevel, format, args) }

func (logger *logger) logf(level Level, format string, args []any) {
	logger.Entry.Logf(level.ToLogrusLevel(), format, args...)
}

func (logger *logger) clone() *logger {
	parent := logger.Logger

	base := logrus.New()
	base.SetOutput(parent.Out)
	base.SetLevel(parent.GetLevel())
	base.SetFormatter(parent.Formatter)
	base.ReplaceHooks(parent.Hooks)

	entry := logger.Dup()
	entry.Logger = base

	return logger.withEntry(entry)
}

func (logger *logger) withEntry(entry *logrus.Entry) *logger {
	clone := *logger
	clone.Entry = entry

	return &clone
}
