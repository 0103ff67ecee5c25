package errors

import "errors"

// As, Is, Join and Unwrap re-export the standard helpers so callers only import this package.
var (
	As     = errors.As
	Is     = errors.Is
	Join   = errors.Join
	Unwrap = errors.Unwrap
)
