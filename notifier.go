package aiopipe

import (
	"context"
	"strings"

	"github.com/fhs/aiopipe/internal/poller"
)

// Event is a set of descriptor readiness conditions.
type Event uint8

const (
	EventRead   Event = 1 << iota // readable without blocking
	EventWrite                    // writable without blocking
	EventError                    // error condition on the descriptor
	EventHangup                   // peer closed its end
)

func (ev Event) String() string {
	if ev == 0 {
		return "none"
	}
	var s []string
	for _, x := range []struct {
		ev   Event
		name string
	}{
		{EventRead, "read"},
		{EventWrite, "write"},
		{EventError, "error"},
		{EventHangup, "hangup"},
	} {
		if ev&x.ev != 0 {
			s = append(s, x.name)
		}
	}
	return strings.Join(s, "|")
}

// Notifier is the readiness mechanism endpoints park on when a read or
// write would block.
//
// Wait blocks until fd is ready for ev, or reports an error or hang-up,
// and returns the conditions that fired. It must return ctx.Err() when
// ctx is done first, and must not busy-wait.
type Notifier interface {
	Wait(ctx context.Context, fd int, ev Event) (Event, error)
}

// failedNotifier stands in for a default notifier that could not be
// created.
type failedNotifier struct {
	err error
}

func (n failedNotifier) Wait(ctx context.Context, fd int, ev Event) (Event, error) {
	return 0, n.err
}

// PollNotifier is the default Notifier. It multiplexes every wait
// onto one kernel event queue (epoll on Linux, poll(2) elsewhere)
// served by a single goroutine, so a parked read or write costs no OS
// thread and no descriptor.
// It is safe for concurrent use by any number of endpoints.
type PollNotifier struct {
	p *poller.Poller
}

// NewPollNotifier returns a PollNotifier with its event queue open.
func NewPollNotifier() (*PollNotifier, error) {
	p, err := poller.New()
	if err != nil {
		return nil, err
	}
	return &PollNotifier{p: p}, nil
}

func (n *PollNotifier) Wait(ctx context.Context, fd int, ev Event) (Event, error) {
	revents, err := n.p.Wait(ctx, fd, toPollerEvents(ev))
	if err != nil {
		return 0, err
	}
	return fromPollerEvents(revents), nil
}

// Close releases the event queue. Pending and later waits fail.
func (n *PollNotifier) Close() error {
	return n.p.Close()
}

func toPollerEvents(ev Event) poller.Events {
	var e poller.Events
	if ev&EventRead != 0 {
		e |= poller.In
	}
	if ev&EventWrite != 0 {
		e |= poller.Out
	}
	return e
}

func fromPollerEvents(e poller.Events) Event {
	var ev Event
	if e&poller.In != 0 {
		ev |= EventRead
	}
	if e&poller.Out != 0 {
		ev |= EventWrite
	}
	if e&poller.Err != 0 {
		ev |= EventError
	}
	if e&poller.Hup != 0 {
		ev |= EventHangup
	}
	return ev
}
