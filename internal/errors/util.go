package errors

import (
	"errors"
	"fmt"
	"strings"

	goerrors "github.com/go-errors/errors"
)

type stackTracer interface {
	ErrorStack() string
}

// ErrorStack returns the stack traces carried by err and every error it joins, one per line.
func ErrorStack(err error) string {
	var stacks []string

	for _, err := range UnwrapMultiErrors(err) {
		if st := findStackTracer(err); st != nil {
			stacks = append(stacks, st.ErrorStack())
		}
	}

	return strings.Join(stacks, "\n")
}

// ContainsStackTrace reports whether err, or any error it wraps, carries a stack trace.
func ContainsStackTrace(err error) bool {
	for _, err := range UnwrapMultiErrors(err) {
		if findStackTracer(err) != nil {
			return true
		}
	}

	return false
}

func findStackTracer(err error) stackTracer {
	for ; err != nil; err = errors.Unwrap(err) {
		if st, ok := err.(stackTracer); ok {
			return st
		}
	}

	return nil
}

// Recover turns a panic into an error carrying the stack of the panicking call and passes it to onPanic.
// It must be called directly from a defer statement.
func Recover(onPanic func(cause error)) {
	rec := recover()
	if rec == nil {
		return
	}

	err, ok := rec.(error)
	if !ok {
		err = fmt.Errorf("%v", rec) //nolint:err113
	}

	onPanic(goerrors.Wrap(err, 2))
}

// UnwrapMultiErrors flattens every joined error in err's tree into a slice of leaf errors.
// A plain error is returned as a single-element slice.
func UnwrapMultiErrors(err error) []error {
	if err == nil {
		return nil
	}

	for cur := err; cur != nil; cur = errors.Unwrap(cur) {
		joined, ok := cur.(interface{ Unwrap() []error })
		if !ok {
			continue
		}

		var leaves []error

		for _, child := range joined.Unwrap() {
			leaves = append(leaves, UnwrapMultiErrors(child)...)
		}

		return leaves
	}

	return []error{err}
}
