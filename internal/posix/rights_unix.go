//go:build darwin || dragonfly || freebsd || linux || netbsd || openbsd || solaris

package posix

import (
	"errors"
	"net"

	"golang.org/x/sys/unix"
)

// SendFD sends a duplicate of fd through a unix domain socket.
// The caller still owns fd.
func SendFD(conn *net.UnixConn, fd int) error {
	// Some systems drop ancillary data sent without a payload byte.
	_, _, err := conn.WriteMsgUnix([]byte{0}, unix.UnixRights(fd), nil)
	return err
}

// ReceiveFD receives a file descriptor sent with SendFD.
func ReceiveFD(conn *net.UnixConn) (int, error) {
	b := make([]byte, 1)
	oob := make([]byte, unix.CmsgSpace(4))
	_, oobn, _, _, err := conn.ReadMsgUnix(b, oob)
	if err != nil {
		return -1, err
	}
	msgs, err := unix.ParseSocketControlMessage(oob[:oobn])
	if err != nil {
		return -1, err
	}
	if len(msgs) == 0 {
		return -1, errors.New("no control message")
	}
	fds, err := unix.ParseUnixRights(&msgs[0])
	if err != nil {
		return -1, err
	}
	if len(fds) == 0 {
		return -1, errors.New("no file descriptor")
	}
	for _, extra := range fds[1:] {
		unix.Close(extra)
	}
	unix.CloseOnExec(fds[0])
	return fds[0], nil
}
