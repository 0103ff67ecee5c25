package log

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/distbuild/distbuild/internal/errors"
	"github.com/mgutz/ansi"
	"github.com/sirupsen/logrus"
)

const (
	PrettyFormatName = "pretty"
	JSONFormatName   = "json"

	defaultTimestampFormat = "15:04:05.000"
)

// AllFormats lists the supported `--log-format` values.
var AllFormats = []string{PrettyFormatName, JSONFormatName}

var levelColors = map[Level]string{
	StderrLevel: ansi.ColorCode("default"),
	StdoutLevel: ansi.ColorCode("default"),
	ErrorLevel:  ansi.ColorCode("red+b"),
	WarnLevel:   ansi.ColorCode("yellow+b"),
	InfoLevel:   ansi.ColorCode("white"),
	DebugLevel:  ansi.ColorCode("blue"),
	TraceLevel:  ansi.ColorCode("cyan"),
}

// PrettyFormatter renders `time level [prefix] message key=value` lines.
type PrettyFormatter struct {
	TimestampFormat  string
	DisableColors    bool
	DisableTimestamp bool
}

// NewPrettyFormatter returns a new PrettyFormatter instance with default values.
func NewPrettyFormatter() *PrettyFormatter {
	return &PrettyFormatter{
		TimestampFormat: defaultTimestampFormat,
	}
}

// NewFormatter returns the formatter registered under the given name.
func NewFormatter(name string, disableColors bool) (logrus.Formatter, error) {
	switch strings.ToLower(name) {
	case "", PrettyFormatName:
		formatter := NewPrettyFormatter()
		formatter.DisableColors = disableColors

		return formatter, nil
	case JSONFormatName:
		return &JSONFormatter{TimestampFormat: time.RFC3339}, nil
	}

	return nil, errors.Errorf("invalid log format %q, supported formats: %s", name, strings.Join(AllFormats, ", "))
}

// Format implements logrus.Formatter.
func (formatter *PrettyFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	buf := entry.Buffer
	if buf == nil {
		buf = new(bytes.Buffer)
	}

	level := FromLogrusLevel(entry.Level)

	// stdout/stderr levels carry raw command output.
	if level == StdoutLevel || level == StderrLevel {
		buf.WriteString(entry.Message)
		buf.WriteByte('\n')

		return buf.Bytes(), nil
	}

	if !formatter.DisableTimestamp {
		buf.WriteString(entry.Time.Format(formatter.TimestampFormat))
		buf.WriteByte(' ')
	}

	levelName := fmt.Sprintf("%-6s", strings.ToUpper(level.String()))
	buf.WriteString(formatter.colorize(level, levelName))
	buf.WriteByte(' ')

	fields := Fields(entry.Data)

	if prefix, ok := fields[FieldKeyPrefix]; ok && prefix != "" {
		fmt.Fprintf(buf, "[%v] ", prefix)
	}

	buf.WriteString(entry.Message)

	for _, key := range fields.Keys(FieldKeyPrefix) {
		fmt.Fprintf(buf, " %s=%v", formatter.colorize(level, key), fields[key])
	}

	buf.WriteByte('\n')

	return buf.Bytes(), nil
}

func (formatter *PrettyFormatter) colorize(level Level, str string) string {
	if formatter.DisableColors {
		return str
	}

	return levelColors[level] + str + ansi.Reset
}

// JSONFormatter formats logs into parsable json, one object per line.
type JSONFormatter struct {
	TimestampFormat string
}

// Format implements logrus.Formatter.
func (formatter *JSONFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	data := make(Fields, len(entry.Data)+3) //nolint:mnd

	for key, val := range entry.Data {
		if err, ok := val.(error); ok {
			val = err.Error()
		}

		switch key {
		case FieldKeyMsg, FieldKeyLevel, FieldKeyTime:
			key = "fields." + key
		}

		data[key] = val
	}

	data[FieldKeyMsg] = entry.Message
	data[FieldKeyLevel] = FromLogrusLevel(entry.Level).String()
	data[FieldKeyTime] = entry.Time.Format(formatter.TimestampFormat)

	buf := entry.Buffer
	if buf == nil {
		buf = new(bytes.Buffer)
	}

	if err := json.NewEncoder(buf).Encode(data); err != nil {
		return nil, errors.Errorf("failed to marshal fields to JSON: %w", err)
	}

	return buf.Bytes(), nil
}
