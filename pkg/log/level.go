package log

import (
	"strings"

	"github.com/distbuild/distbuild/internal/errors"
	"github.com/sirupsen/logrus"
)

// Level orders log entries from always shown to most verbose.
type Level uint32

const (
	// StderrLevel carries the raw stderr of an external command.
	StderrLevel Level = iota
	// StdoutLevel carries the raw stdout of an external command.
	StdoutLevel
	ErrorLevel
	WarnLevel
	InfoLevel
	DebugLevel
	TraceLevel
)

// logrus reserves its two lowest levels for panic and fatal, which distbuild never emits.
const logrusOffset = logrus.ErrorLevel

var levelNames = []string{"stderr", "stdout", "error", "warn", "info", "debug", "trace"}

// Levels is a list of levels, rendered as a comma separated string.
type Levels []Level

// AllLevels are the values accepted by `--log-level`.
var AllLevels = Levels{StderrLevel, StdoutLevel, ErrorLevel, WarnLevel, InfoLevel, DebugLevel, TraceLevel}

func (levels Levels) String() string {
	names := make([]string, len(levels))
	for i, level := range levels {
		names[i] = level.String()
	}

	return strings.Join(names, ", ")
}

// ParseLevel resolves a level name, ignoring case.
func ParseLevel(str string) (Level, error) {
	for i, name := range levelNames {
		if strings.EqualFold(name, str) {
			return Level(i), nil
		}
	}

	return InfoLevel, errors.Errorf("invalid level %q, supported levels: %s", str, AllLevels)
}

func (level Level) String() string {
	if int(level) < len(levelNames) {
		return levelNames[level]
	}

	return ""
}

// ToLogrusLevel maps the level onto the logrus scale.
func (level Level) ToLogrusLevel() logrus.Level {
	return logrus.Level(level) + logrusOffset
}

// FromLogrusLevel maps a logrus level back. Panic and fatal become ErrorLevel.
func FromLogrusLevel(lvl logrus.Level) Level {
	if lvl < logrusOffset {
		return ErrorLevel
	}

	return Level(lvl - logrusOffset)
}
