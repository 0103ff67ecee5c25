package errors

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// MultiError collects independent failures, such as every missing file of a distribution,
// so they are reported together. The zero value and a nil pointer are both empty.
type MultiError struct {
	inner *multierror.Error
}

// Append returns a MultiError holding the current errors followed by the non-nil errs.
func (errs *MultiError) Append(appendErrs ...error) *MultiError {
	var inner *multierror.Error
	if errs != nil {
		inner = errs.inner
	}

	for _, err := range appendErrs {
		if err != nil {
			inner = multierror.Append(inner, err)
		}
	}

	return &MultiError{inner: inner}
}

// Len returns the number of collected errors.
func (errs *MultiError) Len() int {
	if errs == nil || errs.inner == nil {
		return 0
	}

	return len(errs.inner.Errors)
}

// ErrorOrNil returns errs as an error, or nil when nothing was collected.
func (errs *MultiError) ErrorOrNil() error {
	if errs.Len() == 0 {
		return nil
	}

	return errs
}

// WrappedErrors returns the collected errors.
func (errs *MultiError) WrappedErrors() []error {
	if errs.Len() == 0 {
		return nil
	}

	return errs.inner.WrappedErrors()
}

func (errs *MultiError) Unwrap() []error {
	return errs.WrappedErrors()
}

// Error renders every leaf error as a bullet, indenting continuation lines.
func (errs *MultiError) Error() string {
	leaves := UnwrapMultiErrors(errs)

	items := make([]string, 0, len(leaves))
	for _, err := range leaves {
		items = append(items, bullet(err.Error()))
	}

	header := "error occurred"
	if len(leaves) != 1 {
		header = fmt.Sprintf("%d errors occurred", len(leaves))
	}

	return fmt.Sprintf("%s:\n\n%s\n", header, strings.Join(items, "\n\n"))
}

func bullet(msg string) string {
	lines := strings.Split(strings.ReplaceAll(msg, "\r\n", "\n"), "\n")

	for i := range lines {
		if i == 0 {
			lines[i] = "* " + lines[i]
		} else {
			lines[i] = "  " + lines[i]
		}
	}

	return strings.Join(lines, "\n")
}
