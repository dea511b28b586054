// Package deckerr defines the failures that abort an analyze or create run.
//
// All three kinds are fatal for the current operation and are raised before
// any output is written. They carry enough context (path, plan entry, field)
// for a caller to correct its input and retry.
package deckerr

import (
	"errors"
	"fmt"
)

// NotFoundError reports an input path that does not exist.
type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("file not found: %s", e.Path)
}

// FormatError reports a file that is not a readable presentation package.
type FormatError struct {
	Path   string
	Reason string
	Err    error
}

func (e *FormatError) Error() string {
	msg := fmt.Sprintf("invalid presentation %s: %s", e.Path, e.Reason)
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	return msg
}

func (e *FormatError) Unwrap() error { return e.Err }

// PlanError reports a malformed plan or a plan entry that cannot be resolved.
// Entry is the zero-based position in the plan, or -1 when the problem is
// with the plan as a whole.
type PlanError struct {
	Entry  int
	Field  string
	Reason string
	Err    error
}

func (e *PlanError) Error() string {
	var msg string
	switch {
	case e.Entry < 0:
		msg = "invalid plan"
	case e.Field != "":
		msg = fmt.Sprintf("invalid plan entry %d (%s)", e.Entry, e.Field)
	default:
		msg = fmt.Sprintf("invalid plan entry %d", e.Entry)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	return msg
}

func (e *PlanError) Unwrap() error { return e.Err }

func NotFound(path string) error {
	return &NotFoundError{Path: path}
}

func Format(path, reason string, err error) error {
	return &FormatError{Path: path, Reason: reason, Err: err}
}

func Plan(entry int, field, reason string) error {
	return &PlanError{Entry: entry, Field: field, Reason: reason}
}

func IsNotFound(err error) bool {
	var e *NotFoundError
	return errors.As(err, &e)
}

func IsFormat(err error) bool {
	var e *FormatError
	return errors.As(err, &e)
}

func IsPlan(err error) bool {
	var e *PlanError
	return errors.As(err, &e)
}

// Process exit codes used by the command line front end.
const (
	ExitOK       = 0
	ExitFailure  = 1
	ExitUsage    = 2
	ExitNotFound = 3
	ExitFormat   = 4
	ExitPlan     = 5
)

// ExitCode maps an error onto a process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case IsNotFound(err):
		return ExitNotFound
	case IsFormat(err):
		return ExitFormat
	case IsPlan(err):
		return ExitPlan
	default:
		return ExitFailure
	}
}
