package aiopipe

import (
	"net"
	"os"

	"github.com/fhs/aiopipe/internal/posix"
)

// Send passes e's descriptor to the process at the other end of conn
// and closes it locally, so ownership moves with it. On failure e keeps
// the descriptor. The transfer uses a duplicate, so a peer that is slow
// to read never holds up Close.
func (e *Endpoint) Send(conn *net.UnixConn) error {
	e.mu.RLock()
	fd := e.fd
	if fd < 0 {
		e.mu.RUnlock()
		return ErrClosed
	}
	dup, err := posix.Dup(fd)
	e.mu.RUnlock()
	if err != nil {
		return &IOError{Op: "send", Name: e.name, Err: os.NewSyscallError("dup", err)}
	}

	err = posix.SendFD(conn, dup)
	if cerr := posix.Close(dup); cerr != nil {
		e.cfg.log("pipe %v: close %s duplicate fd %d: %v\n", e.pipe, e.name, dup, cerr)
	}
	if err != nil {
		return err
	}
	e.cfg.log("pipe %v: sent %s fd %d to %v\n", e.pipe, e.name, fd, conn.RemoteAddr())
	return e.Close()
}

// ReceiveFile receives a descriptor passed with Endpoint.Send and
// returns it as an *os.File named name. The descriptor is in whatever
// mode the sender left it; it is non-blocking if sent from an Endpoint.
func ReceiveFile(conn *net.UnixConn, name string) (*os.File, error) {
	fd, err := posix.ReceiveFD(conn)
	if err != nil {
		return nil, err
	}
	return os.NewFile(uintptr(fd), name), nil
}
