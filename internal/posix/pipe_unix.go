//go:build darwin || dragonfly || freebsd || netbsd || openbsd || solaris

package posix

import (
	"errors"
	"syscall"

	"golang.org/x/sys/unix"
)

func pipe(p []int) error {
	if len(p) != 2 {
		return errors.New("bad argument to pipe")
	}
	// No pipe2 everywhere, so hold ForkLock until both ends are
	// close-on-exec or a concurrent fork may inherit them.
	syscall.ForkLock.RLock()
	defer syscall.ForkLock.RUnlock()
	if err := unix.Pipe(p); err != nil {
		return err
	}
	unix.CloseOnExec(p[0])
	unix.CloseOnExec(p[1])
	return nil
}
