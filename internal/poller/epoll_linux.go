package poller

import (
	"golang.org/x/sys/unix"
)

type epoll struct {
	fd    int
	wk    *waker
	added map[int]bool // registered with the kernel, armed or not
	buf   []unix.EpollEvent
}

func newBackend() (backend, error) {
	fd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}
	wk, err := newWaker()
	if err != nil {
		unix.Close(fd)
		return nil, err
	}
	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(wk.r)}
	if err := unix.EpollCtl(fd, unix.EPOLL_CTL_ADD, wk.r, &ev); err != nil {
		wk.close()
		unix.Close(fd)
		return nil, err
	}
	return &epoll{
		fd:    fd,
		wk:    wk,
		added: make(map[int]bool),
		buf:   make([]unix.EpollEvent, 128),
	}, nil
}

func (e *epoll) arm(fd int, events Events) error {
	ev := unix.EpollEvent{
		Events: toEpoll(events) | unix.EPOLLONESHOT,
		Fd:     int32(fd),
	}
	op := unix.EPOLL_CTL_ADD
	if e.added[fd] {
		op = unix.EPOLL_CTL_MOD
	}
	err := unix.EpollCtl(e.fd, op, fd, &ev)
	switch err {
	case unix.EEXIST:
		err = unix.EpollCtl(e.fd, unix.EPOLL_CTL_MOD, fd, &ev)
	case unix.ENOENT:
		// fd was closed and its number reused since it was added.
		err = unix.EpollCtl(e.fd, unix.EPOLL_CTL_ADD, fd, &ev)
	}
	if err != nil {
		return err
	}
	e.added[fd] = true
	return nil
}

func (e *epoll) disarm(fd int) error {
	if !e.added[fd] {
		return nil
	}
	delete(e.added, fd)
	return unix.EpollCtl(e.fd, unix.EPOLL_CTL_DEL, fd, &unix.EpollEvent{})
}

func (e *epoll) wait(ready []readiness) ([]readiness, error) {
	for {
		n, err := unix.EpollWait(e.fd, e.buf, -1) // no timeout
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return ready, err
		}
		for _, ev := range e.buf[:n] {
			if int(ev.Fd) == e.wk.r {
				e.wk.drain()
				continue
			}
			ready = append(ready, readiness{fd: int(ev.Fd), ev: fromEpoll(ev.Events)})
		}
		return ready, nil
	}
}

func (e *epoll) wake() {
	e.wk.wake()
}

func (e *epoll) close() error {
	e.wk.close()
	return unix.Close(e.fd)
}

func toEpoll(ev Events) uint32 {
	var e uint32
	if ev&In != 0 {
		e |= unix.EPOLLIN
	}
	if ev&Out != 0 {
		e |= unix.EPOLLOUT
	}
	return e
}

func fromEpoll(e uint32) Events {
	var ev Events
	if e&unix.EPOLLIN != 0 {
		ev |= In
	}
	if e&unix.EPOLLOUT != 0 {
		ev |= Out
	}
	if e&unix.EPOLLERR != 0 {
		ev |= Err
	}
	if e&(unix.EPOLLHUP|unix.EPOLLRDHUP) != 0 {
		ev |= Hup
	}
	return ev
}
