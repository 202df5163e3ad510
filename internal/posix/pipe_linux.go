package posix

import (
	"errors"

	"golang.org/x/sys/unix"
)

func pipe(p []int) error {
	if len(p) != 2 {
		return errors.New("bad argument to pipe")
	}
	return unix.Pipe2(p, unix.O_CLOEXEC)
}
