//go:build darwin || dragonfly || freebsd || linux || netbsd || openbsd || solaris

package aiopipe

import (
	"io"
	"net"
	"os"
	"testing"
	"time"

	"golang.org/x/sys/unix"
)

// socketpair returns two connected unix domain sockets.
func socketpair(t *testing.T) (*net.UnixConn, *net.UnixConn) {
	t.Helper()
	fd, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		t.Fatalf("socketpair: %v", err)
	}
	var conns [2]*net.UnixConn
	for i, name := range []string{"|0", "|1"} {
		f := os.NewFile(uintptr(fd[i]), name)
		c, err := net.FileConn(f)
		f.Close()
		if err != nil {
			t.Fatalf("FileConn: %v", err)
		}
		conns[i] = c.(*net.UnixConn)
		t.Cleanup(func() { c.Close() })
	}
	return conns[0], conns[1]
}

func TestSendWriteEnd(t *testing.T) {
	p := newTestPipe(t)
	a, b := socketpair(t)
	w := p.WriteEnd()

	if err := w.Send(a); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if w.Fd() != -1 {
		t.Errorf("sent endpoint still owns fd %d", w.Fd())
	}

	f, err := ReceiveFile(b, "|1")
	if err != nil {
		t.Fatalf("ReceiveFile failed: %v", err)
	}
	if _, err := f.Write([]byte("passed")); err != nil {
		t.Fatalf("write on received file: %v", err)
	}
	f.Close()

	got, err := io.ReadAll(p.ReadEnd())
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if string(got) != "passed" {
		t.Fatalf("read %q; want %q", got, "passed")
	}
}

func TestSendClosed(t *testing.T) {
	p := newTestPipe(t)
	a, _ := socketpair(t)
	p.ReadEnd().Close()

	if err := p.ReadEnd().Send(a); err != ErrClosed {
		t.Fatalf("Send of closed endpoint returned %v; want ErrClosed", err)
	}
}

func TestSendBlockedPeer(t *testing.T) {
	p := newTestPipe(t)
	a, _ := socketpair(t)

	// Fill a's send buffer so the next message blocks until the peer,
	// which never reads, drains it.
	a.SetWriteDeadline(time.Now().Add(100 * time.Millisecond))
	junk := make([]byte, 1<<16)
	for {
		if _, err := a.Write(junk); err != nil {
			break
		}
	}
	a.SetWriteDeadline(time.Time{})

	sent := make(chan error, 1)
	go func() { sent <- p.WriteEnd().Send(a) }()
	time.Sleep(50 * time.Millisecond)
	select {
	case err := <-sent:
		t.Skipf("Send to a full socket returned %v; buffer did not fill", err)
	default:
	}

	closed := make(chan struct{})
	go func() {
		p.WriteEnd().Close()
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(5 * time.Second):
		t.Fatalf("Close waited for a blocked Send")
	}

	a.Close()
	select {
	case <-sent:
	case <-time.After(5 * time.Second):
		t.Fatalf("Send did not return after the socket closed")
	}
}
