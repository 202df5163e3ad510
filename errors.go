package aiopipe

import (
	"errors"
	"fmt"

	"github.com/fhs/aiopipe/internal/posix"
)

var (
	// ErrClosed is returned by operations on an endpoint that was closed
	// or detached, including operations interrupted by Close.
	ErrClosed = errors.New("aiopipe: endpoint closed")

	// ErrBrokenPipe matches, through errors.Is, a write that failed
	// because the read end was closed.
	ErrBrokenPipe = errors.New("aiopipe: broken pipe")

	// ErrDirection is returned when reading from the write end or
	// writing to the read end.
	ErrDirection = errors.New("aiopipe: wrong direction for endpoint")

	// ErrPipeState is returned by Open on a pipe that is not unopened.
	ErrPipeState = errors.New("aiopipe: pipe already opened or closed")

	// ErrUnsupported is wrapped by the CreationError returned on hosts
	// without POSIX pipes.
	ErrUnsupported = posix.ErrUnsupported
)

// CreationError is returned when the pipe syscall fails.
// No descriptor is held when it is returned.
type CreationError struct {
	Err error
}

func (e *CreationError) Error() string {
	return fmt.Sprintf("aiopipe: create pipe: %v", e.Err)
}

func (e *CreationError) Unwrap() error { return e.Err }

// ConfigurationError is returned when a descriptor cannot be switched to
// non-blocking mode. The descriptor has already been closed.
type ConfigurationError struct {
	Fd  int
	Err error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("aiopipe: set non-blocking on fd %d: %v", e.Fd, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// IOError records a failed read or write and the endpoint it happened on.
type IOError struct {
	Op   string // "read" or "write"
	Name string // endpoint name, "|0" or "|1"
	Err  error
}

func (e *IOError) Error() string {
	return e.Op + " " + e.Name + ": " + e.Err.Error()
}

func (e *IOError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrBrokenPipe) true for EPIPE failures.
func (e *IOError) Is(target error) bool {
	return target == ErrBrokenPipe && posix.IsBrokenPipe(e.Err)
}

// IsBrokenPipe reports whether err is a write to a pipe whose read end
// was closed.
func IsBrokenPipe(err error) bool {
	return errors.Is(err, ErrBrokenPipe) || posix.IsBrokenPipe(err)
}

// IsClosed reports whether err comes from using a closed endpoint.
func IsClosed(err error) bool {
	return errors.Is(err, ErrClosed)
}
