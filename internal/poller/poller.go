// Package poller multiplexes descriptor readiness waits.
//
// A Poller owns one kernel event queue (epoll on Linux, a poll(2) set
// elsewhere) and one goroutine that blocks on it. Any number of
// goroutines can wait on any number of descriptors; a parked waiter
// holds neither an OS thread nor a descriptor of its own. Interest is
// one-shot: it is armed when a waiter arrives and re-armed only while
// waiters remain.
package poller

import (
	"context"
	"errors"
	"sync"

	"github.com/fhs/aiopipe/internal/posix"
)

// Events is a set of readiness conditions.
type Events uint8

const (
	In  Events = 1 << iota // readable
	Out                    // writable
	Err                    // error condition or invalid descriptor
	Hup                    // peer hung up
)

// ErrClosed is returned by Wait after Close.
var ErrClosed = errors.New("poller closed")

// backend is the kernel side of a Poller. arm and disarm are called
// with Poller.mu held; wait and wake are called without it.
type backend interface {
	// arm sets the one-shot interest for fd, replacing any earlier one.
	arm(fd int, ev Events) error
	disarm(fd int) error
	// wait blocks until at least one armed descriptor fires or wake is
	// called, and appends what fired to ready.
	wait(ready []readiness) ([]readiness, error)
	wake()
	close() error
}

type readiness struct {
	fd int
	ev Events
}

type waiter struct {
	events Events
	c      chan Events // buffered; receives exactly once
}

type fdState struct {
	waiters []*waiter
}

func (st *fdState) interest() Events {
	var ev Events
	for _, w := range st.waiters {
		ev |= w.events
	}
	return ev
}

func (st *fdState) remove(w *waiter) bool {
	for i, x := range st.waiters {
		if x == w {
			st.waiters = append(st.waiters[:i], st.waiters[i+1:]...)
			return true
		}
	}
	return false
}

// Poller is safe for concurrent use.
type Poller struct {
	be     backend
	done   chan struct{} // closed by Close or a backend failure
	exited chan struct{}

	mu  sync.Mutex
	fds map[int]*fdState
	err error // why done was closed
}

// New returns a Poller with its event queue and dispatch goroutine
// running. The descriptors it needs are allocated here, never in Wait.
func New() (*Poller, error) {
	be, err := newBackend()
	if err != nil {
		return nil, err
	}
	p := &Poller{
		be:     be,
		done:   make(chan struct{}),
		exited: make(chan struct{}),
		fds:    make(map[int]*fdState),
	}
	go p.loop()
	return p, nil
}

// Wait blocks until fd reports one of events, an error or a hang-up,
// or until ctx is done. It returns the conditions that fired.
// A descriptor the kernel rejects as invalid is reported as Err.
func (p *Poller) Wait(ctx context.Context, fd int, events Events) (Events, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	w := &waiter{events: events, c: make(chan Events, 1)}

	p.mu.Lock()
	if p.err != nil {
		p.mu.Unlock()
		return 0, p.err
	}
	st := p.fds[fd]
	if st == nil {
		st = &fdState{}
		p.fds[fd] = st
	}
	st.waiters = append(st.waiters, w)
	if err := p.be.arm(fd, st.interest()); err != nil {
		st.remove(w)
		p.rearm(fd, st)
		p.mu.Unlock()
		if posix.IsBadDescriptor(err) {
			return Err, nil
		}
		return 0, err
	}
	p.mu.Unlock()

	select {
	case ev := <-w.c:
		return ev, nil
	case <-p.done:
		return 0, p.err
	case <-ctx.Done():
		p.mu.Lock()
		removed := false
		if st := p.fds[fd]; st != nil && st.remove(w) {
			removed = true
			p.rearm(fd, st)
		}
		p.mu.Unlock()
		if !removed {
			// Dispatched before we got the lock.
			return <-w.c, nil
		}
		return 0, ctx.Err()
	}
}

// Close stops the dispatch goroutine and releases the event queue.
// Waits in progress and later waits return ErrClosed.
func (p *Poller) Close() error {
	p.mu.Lock()
	if p.err != nil {
		p.mu.Unlock()
		<-p.exited
		return nil
	}
	p.err = ErrClosed
	close(p.done)
	// Under mu, so the loop cannot have released the backend yet.
	p.be.wake()
	p.mu.Unlock()

	<-p.exited
	return nil
}

func (p *Poller) loop() {
	defer close(p.exited)

	var ready []readiness
	for {
		var err error
		ready, err = p.be.wait(ready[:0])

		p.mu.Lock()
		if p.err == nil && err != nil {
			p.err = err
			close(p.done)
		}
		if p.err != nil {
			p.mu.Unlock()
			p.be.close()
			return
		}
		for _, r := range ready {
			p.dispatch(r.fd, r.ev)
		}
		p.mu.Unlock()
	}
}

// dispatch hands ev to the waiters on fd it satisfies. Error and
// hang-up satisfy every waiter. Called with p.mu held.
func (p *Poller) dispatch(fd int, ev Events) {
	st := p.fds[fd]
	if st == nil {
		return
	}
	keep := st.waiters[:0]
	for _, w := range st.waiters {
		if fired := ev & (w.events | Err | Hup); fired != 0 {
			w.c <- fired
		} else {
			keep = append(keep, w)
		}
	}
	for i := len(keep); i < len(st.waiters); i++ {
		st.waiters[i] = nil
	}
	st.waiters = keep
	p.rearm(fd, st)
}

// rearm re-arms fd for the remaining waiters, or drops it when none
// are left. Called with p.mu held.
func (p *Poller) rearm(fd int, st *fdState) {
	if p.err != nil {
		// The backend is gone; done wakes everyone.
		return
	}
	if len(st.waiters) == 0 {
		delete(p.fds, fd)
		p.be.disarm(fd)
		return
	}
	if err := p.be.arm(fd, st.interest()); err != nil {
		// The syscall that follows the wake-up reports the real error.
		for _, w := range st.waiters {
			w.c <- Err
		}
		delete(p.fds, fd)
		p.be.disarm(fd)
	}
}

// waiting is used by tests.
func (p *Poller) waiting() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := 0
	for _, st := range p.fds {
		n += len(st.waiters)
	}
	return n
}

// waker is a non-blocking self-pipe that interrupts a backend's wait.
type waker struct {
	r, w int
}

func newWaker() (*waker, error) {
	r, w, err := posix.NonblockingPipe()
	if err != nil {
		return nil, err
	}
	return &waker{r: r, w: w}, nil
}

func (wk *waker) wake() {
	// A full pipe is already pending a wake-up.
	posix.Write(wk.w, []byte{0})
}

func (wk *waker) drain() {
	var buf [64]byte
	for {
		n, err := posix.Read(wk.r, buf[:])
		if n <= 0 || err != nil {
			return
		}
	}
}

func (wk *waker) close() {
	posix.Close(wk.r)
	posix.Close(wk.w)
}
