//go:build darwin || dragonfly || freebsd || netbsd || openbsd || solaris

package poller

import (
	"sync"

	"golang.org/x/sys/unix"
)

// pollSet keeps the armed descriptors in a map and hands them to
// poll(2) on each pass. Changes wake the pass in progress so the next
// one sees them.
//
// TODO: use kqueue on darwin and the BSDs so a pass is not linear in
// the number of armed descriptors.
type pollSet struct {
	wk *waker

	mu       sync.Mutex
	interest map[int]Events

	fds []unix.PollFd // owned by wait
}

func newBackend() (backend, error) {
	wk, err := newWaker()
	if err != nil {
		return nil, err
	}
	return &pollSet{wk: wk, interest: make(map[int]Events)}, nil
}

func (s *pollSet) arm(fd int, ev Events) error {
	s.mu.Lock()
	s.interest[fd] = ev
	s.mu.Unlock()
	s.wk.wake()
	return nil
}

func (s *pollSet) disarm(fd int) error {
	s.mu.Lock()
	_, ok := s.interest[fd]
	delete(s.interest, fd)
	s.mu.Unlock()
	if ok {
		s.wk.wake()
	}
	return nil
}

func (s *pollSet) wait(ready []readiness) ([]readiness, error) {
	s.mu.Lock()
	s.fds = append(s.fds[:0], unix.PollFd{Fd: int32(s.wk.r), Events: unix.POLLIN})
	for fd, ev := range s.interest {
		s.fds = append(s.fds, unix.PollFd{Fd: int32(fd), Events: toPoll(ev)})
	}
	s.mu.Unlock()

	_, err := unix.Poll(s.fds, -1) // no timeout
	if err == unix.EINTR {
		return ready, nil
	}
	if err != nil {
		return ready, err
	}
	if s.fds[0].Revents != 0 {
		s.wk.drain()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, pfd := range s.fds[1:] {
		if pfd.Revents == 0 {
			continue
		}
		// One-shot: the Poller re-arms what it still needs.
		delete(s.interest, int(pfd.Fd))
		ready = append(ready, readiness{fd: int(pfd.Fd), ev: fromPoll(pfd.Revents)})
	}
	return ready, nil
}

func (s *pollSet) wake() {
	s.wk.wake()
}

func (s *pollSet) close() error {
	s.wk.close()
	return nil
}

func toPoll(ev Events) int16 {
	var e int16
	if ev&In != 0 {
		e |= unix.POLLIN
	}
	if ev&Out != 0 {
		e |= unix.POLLOUT
	}
	return e
}

func fromPoll(e int16) Events {
	var ev Events
	if e&unix.POLLIN != 0 {
		ev |= In
	}
	if e&unix.POLLOUT != 0 {
		ev |= Out
	}
	if e&(unix.POLLERR|unix.POLLNVAL) != 0 {
		ev |= Err
	}
	if e&unix.POLLHUP != 0 {
		ev |= Hup
	}
	return ev
}
