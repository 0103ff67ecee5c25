package log

import (
	"maps"
	"slices"
)

const (
	// FieldKeyPrefix holds the task name; the pretty format prints it in brackets.
	FieldKeyPrefix = "prefix"

	FieldKeyMsg   = "msg"
	FieldKeyLevel = "level"
	FieldKeyTime  = "time"
)

// Fields type, used to pass to `WithFields`.
type Fields map[string]any

// Keys returns the sorted field names, leaving out skip.
func (fields Fields) Keys(skip ...string) []string {
	return slices.DeleteFunc(slices.Sorted(maps.Keys(fields)), func(key string) bool {
		return slices.Contains(skip, key)
	})
}
