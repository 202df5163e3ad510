// Package posix wraps the handful of descriptor syscalls used by aiopipe.
package posix

import (
	"errors"
)

// ErrUnsupported is returned on hosts without POSIX pipes.
var ErrUnsupported = errors.New("posix pipes are not supported on this system")

// Pipe returns a connected pair of descriptors; bytes written to w are
// readable from r. Both descriptors are close-on-exec and blocking.
func Pipe() (r, w int, err error) {
	var p [2]int
	if err := pipe(p[:]); err != nil {
		return -1, -1, err
	}
	return p[0], p[1], nil
}

// NonblockingPipe is like Pipe but both ends are in non-blocking mode.
// On failure no descriptor is left open.
func NonblockingPipe() (r, w int, err error) {
	r, w, err = Pipe()
	if err != nil {
		return -1, -1, err
	}
	for _, fd := range []int{r, w} {
		if err := SetNonblock(fd, true); err != nil {
			Close(r)
			Close(w)
			return -1, -1, err
		}
	}
	return r, w, nil
}
