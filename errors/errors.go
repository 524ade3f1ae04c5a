// Package errors defines the sentinel error kinds used throughout the FAT32
// engine. Every fallible operation in blockio, cluster, fat, bootsector,
// dirent, and session surfaces one of these kinds to its caller, optionally
// annotated with a message or a wrapped cause via WithMessage/WrapError.
package errors

import (
	stderrors "errors"
	"fmt"
)

// DriverError is an error that can be annotated with extra context without
// losing its identity for comparison with errors.Is.
type DriverError interface {
	error
	WithMessage(message string) DriverError
	WrapError(err error) DriverError
	Unwrap() error
}

// DiskoError is a sentinel error kind. Each kind is one of the package-level
// Err* constants below; no other kind is ever returned by this engine.
type DiskoError string

func (e DiskoError) Error() string {
	return string(e)
}

func (e DiskoError) WithMessage(message string) DriverError {
	return customDriverError{
		message:       fmt.Sprintf("%s: %s", string(e), message),
		originalError: e,
	}
}

func (e DiskoError) WrapError(err error) DriverError {
	return customDriverError{
		message:       fmt.Sprintf("%s: %s", string(e), err.Error()),
		originalError: stderrors.Join(e, err),
	}
}

func (e DiskoError) Unwrap() error {
	return nil
}

// The seven error kinds this engine's operations can surface, per spec.md §7.
const (
	// ErrIO covers short reads/writes and seek failures at the block layer.
	ErrIO = DiskoError("I/O failure")
	// ErrInvalidImage means the boot sector signature or fs_type field didn't
	// match what a formatted FAT32 image must contain.
	ErrInvalidImage = DiskoError("invalid FAT32 image")
	// ErrOutOfSpace means no free FAT entry or no free directory slot could
	// be found.
	ErrOutOfSpace = DiskoError("out of space")
	// ErrNameExists means a directory already has an entry with the given
	// normalized 8.3 name.
	ErrNameExists = DiskoError("name already exists")
	// ErrNotFound means a cd target could not be resolved.
	ErrNotFound = DiskoError("not found")
	// ErrUnsupported means a cd path contained more than one component.
	ErrUnsupported = DiskoError("unsupported path")
	// ErrBadArgument means an empty/null name or non-absolute path was given.
	ErrBadArgument = DiskoError("bad argument")
)

// -----------------------------------------------------------------------------

type customDriverError struct {
	message       string
	originalError error
}

// Error implements the `error` object interface. When called, it returns a
// string describing the error.
func (e customDriverError) Error() string {
	return e.message
}

func (e customDriverError) WithMessage(message string) DriverError {
	return customDriverError{
		message:       fmt.Sprintf("%s: %s", e.message, message),
		originalError: e.originalError,
	}
}

func (e customDriverError) WrapError(err error) DriverError {
	return customDriverError{
		message:       fmt.Sprintf("%s: %s", e.Error(), err.Error()),
		originalError: stderrors.Join(e.originalError, err),
	}
}

func (e customDriverError) Unwrap() error {
	return e.originalError
}

// Is lets errors.Is(err, ErrNotFound) succeed through a chain of WithMessage
// annotations by walking back to the first DiskoError kind. WrapError joins
// the kind with the wrapped cause, so errors.Is finds both the kind and the
// cause through WrapError annotations as well.
func (e customDriverError) Is(target error) bool {
	kind, ok := target.(DiskoError)
	if !ok {
		return false
	}

	var cause error = e
	for cause != nil {
		if dk, ok := cause.(DiskoError); ok {
			return dk == kind
		}
		unwrapper, ok := cause.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		cause = unwrapper.Unwrap()
	}
	return false
}
