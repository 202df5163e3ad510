//go:build darwin || dragonfly || freebsd || linux || netbsd || openbsd || solaris

package posix

import (
	"errors"
	"syscall"

	"golang.org/x/sys/unix"
)

// SetNonblock sets or clears O_NONBLOCK on fd.
func SetNonblock(fd int, nonblocking bool) error {
	return unix.SetNonblock(fd, nonblocking)
}

// Read reads from fd, retrying when interrupted by a signal.
func Read(fd int, p []byte) (int, error) {
	for {
		n, err := unix.Read(fd, p)
		if err == unix.EINTR {
			continue
		}
		if n < 0 {
			n = 0
		}
		return n, err
	}
}

// Write writes to fd, retrying when interrupted by a signal.
// It performs a single successful write(2); n may be short.
func Write(fd int, p []byte) (int, error) {
	for {
		n, err := unix.Write(fd, p)
		if err == unix.EINTR {
			continue
		}
		if n < 0 {
			n = 0
		}
		return n, err
	}
}

// Close closes fd. EINTR is not retried: POSIX leaves the descriptor
// state unspecified and Linux has already released it, so a retry
// could close a descriptor reused by another goroutine.
func Close(fd int) error {
	return unix.Close(fd)
}

// Dup returns a close-on-exec duplicate of fd.
func Dup(fd int) (int, error) {
	syscall.ForkLock.RLock()
	defer syscall.ForkLock.RUnlock()
	nfd, err := unix.Dup(fd)
	if err != nil {
		return -1, err
	}
	unix.CloseOnExec(nfd)
	return nfd, nil
}

// WouldBlock reports whether err means the operation must wait for
// readiness.
func WouldBlock(err error) bool {
	return errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK)
}

// IsBrokenPipe reports whether err is EPIPE.
func IsBrokenPipe(err error) bool {
	return errors.Is(err, unix.EPIPE)
}

// IsBadDescriptor reports whether err is EBADF.
func IsBadDescriptor(err error) bool {
	return errors.Is(err, unix.EBADF)
}
