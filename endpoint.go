package aiopipe

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/fhs/aiopipe/internal/posix"
	"github.com/google/uuid"
)

// Direction is the one way an Endpoint may transfer bytes.
type Direction int

const (
	ReadOnly Direction = iota
	WriteOnly
)

func (d Direction) String() string {
	switch d {
	case ReadOnly:
		return "read"
	case WriteOnly:
		return "write"
	}
	return fmt.Sprintf("Direction(%d)", int(d))
}

var (
	_ io.ReadCloser  = (*Endpoint)(nil)
	_ io.WriteCloser = (*Endpoint)(nil)
)

// Endpoint owns one end of a pipe. Its descriptor is non-blocking;
// operations that would block park the goroutine on the Config's
// Notifier instead.
//
// One goroutine may read the read end while another writes the write
// end. Two goroutines must not read (or write) the same Endpoint at once.
// Close may be called from anywhere, any number of times.
type Endpoint struct {
	name string // "|0" or "|1"
	dir  Direction
	pipe uuid.UUID
	cfg  *Config

	// Held shared by I/O and exclusively by release, so the descriptor
	// is never closed under a running syscall or wait.
	mu sync.RWMutex
	fd int // -1 once released

	done   context.Context // cancelled when release starts
	cancel context.CancelFunc
}

// setNonblock is replaced by tests.
var setNonblock = posix.SetNonblock

// newEndpoint takes ownership of fd and makes it non-blocking.
// On failure fd is closed.
func newEndpoint(fd int, dir Direction, name string, pipe uuid.UUID, cfg *Config) (*Endpoint, error) {
	if err := setNonblock(fd, true); err != nil {
		if cerr := posix.Close(fd); cerr != nil {
			cfg.log("pipe %v: close %s fd %d: %v\n", pipe, name, fd, cerr)
		}
		return nil, &ConfigurationError{Fd: fd, Err: err}
	}
	done, cancel := context.WithCancel(context.Background())
	return &Endpoint{
		name:   name,
		dir:    dir,
		pipe:   pipe,
		cfg:    cfg,
		fd:     fd,
		done:   done,
		cancel: cancel,
	}, nil
}

// Direction returns whether e is the read or the write end.
func (e *Endpoint) Direction() Direction { return e.dir }

// Fd returns the descriptor, or -1 once e is closed or detached.
// The descriptor remains owned by e.
func (e *Endpoint) Fd() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.fd
}

func (e *Endpoint) String() string {
	return fmt.Sprintf("%s (%v, fd %d)", e.name, e.dir, e.Fd())
}

// Read implements io.Reader; see ReadContext.
func (e *Endpoint) Read(p []byte) (int, error) {
	return e.ReadContext(context.Background(), p)
}

// ReadContext reads up to len(p) bytes, waiting for data if none is
// buffered. It returns io.EOF once the write end is closed and the pipe
// is drained. If ctx is done while waiting, it returns ctx.Err() and
// consumes nothing.
func (e *Endpoint) ReadContext(ctx context.Context, p []byte) (int, error) {
	if e.dir != ReadOnly {
		return 0, &IOError{Op: "read", Name: e.name, Err: ErrDirection}
	}
	if len(p) == 0 {
		return 0, nil
	}
	n, err := e.do(ctx, "read", EventRead, func(fd int) (int, error) {
		return posix.Read(fd, p)
	})
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, io.EOF
	}
	return n, nil
}

// Write implements io.Writer; see WriteContext.
func (e *Endpoint) Write(p []byte) (int, error) {
	return e.WriteContext(context.Background(), p)
}

// WriteContext writes all of p, waiting for buffer space as needed. It
// returns once the kernel has accepted every byte, not when the reader
// has consumed them. A write after the read end is closed fails with an
// error matching ErrBrokenPipe. If ctx is done while waiting, it returns
// the count accepted so far and ctx.Err(); the rest of p is dropped.
func (e *Endpoint) WriteContext(ctx context.Context, p []byte) (int, error) {
	if e.dir != WriteOnly {
		return 0, &IOError{Op: "write", Name: e.name, Err: ErrDirection}
	}
	var written int
	for written < len(p) {
		n, err := e.do(ctx, "write", EventWrite, func(fd int) (int, error) {
			return posix.Write(fd, p[written:])
		})
		written += n
		if err != nil {
			return written, err
		}
		if n == 0 {
			return written, &IOError{Op: "write", Name: e.name, Err: io.ErrShortWrite}
		}
	}
	return written, nil
}

// do calls fn until it stops reporting would-block, parking on the
// notifier for ev in between. Interrupted syscalls never reach here;
// posix retries them.
func (e *Endpoint) do(ctx context.Context, op string, ev Event, fn func(fd int) (int, error)) (int, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.fd < 0 || e.done.Err() != nil {
		return 0, &IOError{Op: op, Name: e.name, Err: ErrClosed}
	}
	for {
		n, err := fn(e.fd)
		if err == nil {
			return n, nil
		}
		if !posix.WouldBlock(err) {
			return n, &IOError{Op: op, Name: e.name, Err: err}
		}
		if err := e.wait(ctx, op, ev); err != nil {
			return 0, err
		}
	}
}

// wait parks until the descriptor is ready for ev, ctx is done or e
// starts closing. Must be called with e.mu held for reading.
func (e *Endpoint) wait(ctx context.Context, op string, ev Event) error {
	wctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(e.done, cancel)
	defer stop()

	e.cfg.log2("pipe %v: %s waits for %v on fd %d\n", e.pipe, e.name, ev, e.fd)
	fired, err := e.cfg.Notifier.Wait(wctx, e.fd, ev)
	if e.done.Err() != nil {
		return &IOError{Op: op, Name: e.name, Err: ErrClosed}
	}
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &IOError{Op: op, Name: e.name, Err: err}
	}
	e.cfg.log2("pipe %v: %s fd %d ready: %v\n", e.pipe, e.name, e.fd, fired)
	return nil
}

// Close releases the descriptor. Goroutines waiting on e are woken and
// fail with ErrClosed; Close returns after they have left. Closing
// again is a no-op. A failure of close(2) is logged, never returned.
func (e *Endpoint) Close() error {
	e.release(true)
	return nil
}

// Detach gives up ownership of the descriptor without closing it and
// returns it, still in non-blocking mode. e behaves as closed afterwards.
func (e *Endpoint) Detach() (int, error) {
	fd, ok := e.release(false)
	if !ok {
		return -1, ErrClosed
	}
	return fd, nil
}

// File detaches the descriptor, puts it back in blocking mode and wraps
// it in an *os.File, e.g. to hand it to a child process. The caller owns
// the returned file.
func (e *Endpoint) File() (*os.File, error) {
	fd, err := e.Detach()
	if err != nil {
		return nil, err
	}
	if err := setNonblock(fd, false); err != nil {
		if cerr := posix.Close(fd); cerr != nil {
			e.cfg.log("pipe %v: close %s fd %d: %v\n", e.pipe, e.name, fd, cerr)
		}
		return nil, &ConfigurationError{Fd: fd, Err: err}
	}
	return os.NewFile(uintptr(fd), e.name), nil
}

// release invalidates e.fd exactly once, closing it if closeFd is set.
// It reports the old descriptor and whether this call released it.
func (e *Endpoint) release(closeFd bool) (int, bool) {
	e.cancel()

	e.mu.Lock()
	defer e.mu.Unlock()

	fd := e.fd
	if fd < 0 {
		return -1, false
	}
	e.fd = -1
	if !closeFd {
		e.cfg.log("pipe %v: %s detached fd %d\n", e.pipe, e.name, fd)
		return fd, true
	}
	if err := posix.Close(fd); err != nil {
		e.cfg.log("pipe %v: close %s fd %d: %v\n", e.pipe, e.name, fd, err)
	} else {
		e.cfg.log("pipe %v: %s closed fd %d\n", e.pipe, e.name, fd)
	}
	return fd, true
}
