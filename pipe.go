// Package aiopipe implements POSIX pipes that do not block goroutines
// in read(2) or write(2).
//
// Open creates a kernel pipe and wraps its two descriptors in
// non-blocking Endpoints. A read on an empty pipe, or a write to a full
// one, parks the calling goroutine on a readiness Notifier (a shared
// epoll or poll(2) multiplexer by default) until the descriptor is ready, the context is cancelled or
// the Endpoint is closed:
//
//	p, err := aiopipe.Open(nil)
//	if err != nil {
//		// handle error
//	}
//	defer p.Close()
//
//	go p.WriteEnd().WriteContext(ctx, []byte("hello"))
//	buf := make([]byte, 5)
//	n, err := p.ReadEnd().ReadContext(ctx, buf)
//
// Endpoints own their descriptors: Close releases a descriptor exactly
// once however often it is called, and Detach or File hand ownership to
// the caller, for example to pass one end to a child process.
package aiopipe

import (
	"fmt"
	"os"
	"sync"

	"github.com/fhs/aiopipe/internal/posix"
	"github.com/google/uuid"
)

// State is the lifecycle stage of a Pipe.
type State int

const (
	StateUnopened State = iota
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUnopened:
		return "unopened"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Pipe is a connected pair of Endpoints. Bytes written to WriteEnd are
// read from ReadEnd in order, without loss or duplication; message
// boundaries are not preserved.
//
// A Pipe is single use: Unopened, then Open, then Closed.
type Pipe struct {
	id  uuid.UUID
	cfg *Config

	mu    sync.Mutex
	state State
	r, w  *Endpoint
}

// newPipe is replaced by tests.
var newPipe = posix.Pipe

// New returns an unopened pipe. cfg may be nil.
func New(cfg *Config) *Pipe {
	return &Pipe{
		id:  uuid.New(),
		cfg: cfg.init(),
	}
}

// Open creates and opens a pipe. cfg may be nil.
func Open(cfg *Config) (*Pipe, error) {
	p := New(cfg)
	if err := p.Open(); err != nil {
		return nil, err
	}
	return p, nil
}

// Open creates the kernel pipe and both Endpoints. On failure no
// descriptor is left open and the pipe stays unopened. It fails with
// ErrPipeState unless the pipe is unopened.
func (p *Pipe) Open() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != StateUnopened {
		return ErrPipeState
	}
	rfd, wfd, err := newPipe()
	if err != nil {
		p.cfg.log("pipe %v: create failed: %v\n", p.id, err)
		return &CreationError{Err: os.NewSyscallError("pipe", err)}
	}
	r, err := newEndpoint(rfd, ReadOnly, "|0", p.id, p.cfg)
	if err != nil {
		if cerr := posix.Close(wfd); cerr != nil {
			p.cfg.log("pipe %v: close |1 fd %d: %v\n", p.id, wfd, cerr)
		}
		return err
	}
	w, err := newEndpoint(wfd, WriteOnly, "|1", p.id, p.cfg)
	if err != nil {
		r.Close()
		return err
	}
	p.r, p.w = r, w
	p.state = StateOpen
	p.cfg.log("pipe %v: open, read fd %d, write fd %d\n", p.id, rfd, wfd)
	return nil
}

// Close closes both Endpoints. It is idempotent and always returns nil.
// Closing an unopened pipe makes it unusable.
func (p *Pipe) Close() error {
	p.mu.Lock()
	r, w := p.r, p.w
	already := p.state == StateClosed
	p.state = StateClosed
	p.mu.Unlock()

	// Endpoint.Close waits for in-flight I/O, so p.mu is not held here.
	if r != nil {
		r.Close()
	}
	if w != nil {
		w.Close()
	}
	if !already {
		p.cfg.log("pipe %v: closed\n", p.id)
	}
	return nil
}

// ReadEnd returns the read Endpoint, or nil if the pipe was never opened.
func (p *Pipe) ReadEnd() *Endpoint {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.r
}

// WriteEnd returns the write Endpoint, or nil if the pipe was never opened.
func (p *Pipe) WriteEnd() *Endpoint {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.w
}

// State returns the pipe's lifecycle stage. Endpoints closed one by one
// do not change it; only Pipe.Close does.
func (p *Pipe) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// ID identifies the pipe in log output.
func (p *Pipe) ID() uuid.UUID { return p.id }

func (p *Pipe) String() string {
	return fmt.Sprintf("pipe %v (%v)", p.id, p.State())
}
