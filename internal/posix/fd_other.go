//go:build !(darwin || dragonfly || freebsd || linux || netbsd || openbsd || solaris)

package posix

import "net"

func pipe(p []int) error {
	return ErrUnsupported
}

func SetNonblock(fd int, nonblocking bool) error {
	return ErrUnsupported
}

func Read(fd int, p []byte) (int, error) {
	return 0, ErrUnsupported
}

func Write(fd int, p []byte) (int, error) {
	return 0, ErrUnsupported
}

func Close(fd int) error {
	return ErrUnsupported
}

func Dup(fd int) (int, error) {
	return -1, ErrUnsupported
}

func WouldBlock(err error) bool      { return false }
func IsBrokenPipe(err error) bool    { return false }
func IsBadDescriptor(err error) bool { return false }

func SendFD(conn *net.UnixConn, fd int) error {
	return ErrUnsupported
}

func ReceiveFD(conn *net.UnixConn) (int, error) {
	return -1, ErrUnsupported
}
