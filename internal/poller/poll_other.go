//go:build !(darwin || dragonfly || freebsd || linux || netbsd || openbsd || solaris)

package poller

import "github.com/fhs/aiopipe/internal/posix"

func newBackend() (backend, error) {
	return nil, posix.ErrUnsupported
}
