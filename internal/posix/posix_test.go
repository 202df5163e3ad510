//go:build darwin || dragonfly || freebsd || linux || netbsd || openbsd || solaris

package posix

import (
	"testing"

	"golang.org/x/sys/unix"
)

func fcntl(t *testing.T, fd, cmd int) int {
	t.Helper()
	v, err := unix.FcntlInt(uintptr(fd), cmd, 0)
	if err != nil {
		t.Fatalf("fcntl(%d, %d): %v", fd, cmd, err)
	}
	return v
}

func TestPipe(t *testing.T) {
	r, w, err := Pipe()
	if err != nil {
		t.Fatalf("Pipe failed: %v", err)
	}
	defer Close(r)
	defer Close(w)

	for _, fd := range []int{r, w} {
		if fcntl(t, fd, unix.F_GETFD)&unix.FD_CLOEXEC == 0 {
			t.Errorf("fd %d is not close-on-exec", fd)
		}
		if fcntl(t, fd, unix.F_GETFL)&unix.O_NONBLOCK != 0 {
			t.Errorf("fd %d is non-blocking", fd)
		}
	}

	if n, err := Write(w, []byte("abc")); n != 3 || err != nil {
		t.Fatalf("Write = %v, %v", n, err)
	}
	buf := make([]byte, 8)
	n, err := Read(r, buf)
	if err != nil || string(buf[:n]) != "abc" {
		t.Fatalf("Read = %q, %v", buf[:n], err)
	}
}

func TestNonblockingPipe(t *testing.T) {
	r, w, err := NonblockingPipe()
	if err != nil {
		t.Fatalf("NonblockingPipe failed: %v", err)
	}
	defer Close(r)

	for _, fd := range []int{r, w} {
		if fcntl(t, fd, unix.F_GETFL)&unix.O_NONBLOCK == 0 {
			t.Errorf("fd %d is blocking", fd)
		}
	}

	buf := make([]byte, 8)
	n, err := Read(r, buf)
	if n != 0 || !WouldBlock(err) {
		t.Fatalf("Read on empty pipe = %v, %v; want would-block", n, err)
	}

	Close(w)
	n, err = Read(r, buf)
	if n != 0 || err != nil {
		t.Fatalf("Read after writer close = %v, %v; want 0, nil", n, err)
	}
}

func TestBrokenPipe(t *testing.T) {
	r, w, err := NonblockingPipe()
	if err != nil {
		t.Fatalf("NonblockingPipe failed: %v", err)
	}
	defer Close(w)
	Close(r)

	_, err = Write(w, []byte("x"))
	if !IsBrokenPipe(err) {
		t.Fatalf("Write to broken pipe returned %v; want EPIPE", err)
	}
}

func TestSetNonblockBadDescriptor(t *testing.T) {
	r, w, err := Pipe()
	if err != nil {
		t.Fatalf("Pipe failed: %v", err)
	}
	Close(r)
	Close(w)

	if err := SetNonblock(r, true); !IsBadDescriptor(err) {
		t.Fatalf("SetNonblock on closed fd returned %v; want EBADF", err)
	}
}

func TestDup(t *testing.T) {
	r, w, err := Pipe()
	if err != nil {
		t.Fatalf("Pipe failed: %v", err)
	}
	defer Close(r)

	d, err := Dup(w)
	if err != nil {
		t.Fatalf("Dup failed: %v", err)
	}
	if fcntl(t, d, unix.F_GETFD)&unix.FD_CLOEXEC == 0 {
		t.Errorf("duplicate fd %d is not close-on-exec", d)
	}
	Close(w)
	if n, err := Write(d, []byte("x")); n != 1 || err != nil {
		t.Fatalf("write through duplicate = %v, %v", n, err)
	}
	Close(d)

	buf := make([]byte, 2)
	if n, err := Read(r, buf); n != 1 || err != nil {
		t.Fatalf("Read = %v, %v; want 1, nil", n, err)
	}
}
