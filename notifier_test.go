//go:build darwin || dragonfly || freebsd || linux || netbsd || openbsd || solaris

package aiopipe

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestEventString(t *testing.T) {
	for _, tc := range []struct {
		ev   Event
		want string
	}{
		{0, "none"},
		{EventRead, "read"},
		{EventWrite | EventHangup, "write|hangup"},
		{EventRead | EventWrite | EventError | EventHangup, "read|write|error|hangup"},
	} {
		if got := tc.ev.String(); got != tc.want {
			t.Errorf("Event(%d).String() = %q; want %q", tc.ev, got, tc.want)
		}
	}
}

func TestPollNotifier(t *testing.T) {
	n, err := NewPollNotifier()
	if err != nil {
		t.Fatalf("NewPollNotifier failed: %v", err)
	}
	defer n.Close()
	p := newTestPipe(t)
	rfd, wfd := p.ReadEnd().Fd(), p.WriteEnd().Fd()
	bg := context.Background()

	ev, err := n.Wait(bg, wfd, EventWrite)
	if err != nil || ev&EventWrite == 0 {
		t.Fatalf("Wait on empty pipe's write end = %v, %v; want write", ev, err)
	}

	ctx, cancel := context.WithTimeout(bg, 50*time.Millisecond)
	defer cancel()
	if ev, err := n.Wait(ctx, rfd, EventRead); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Wait on empty pipe's read end = %v, %v; want deadline exceeded", ev, err)
	}

	if _, err := p.WriteEnd().Write([]byte("x")); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	ev, err = n.Wait(bg, rfd, EventRead)
	if err != nil || ev&EventRead == 0 {
		t.Fatalf("Wait with data buffered = %v, %v; want read", ev, err)
	}

	p.ReadEnd().Read(make([]byte, 1))
	p.WriteEnd().Close()
	ev, err = n.Wait(bg, rfd, EventRead)
	if err != nil || ev&(EventRead|EventHangup) == 0 {
		t.Fatalf("Wait after writer close = %v, %v; want read or hangup", ev, err)
	}

	n.Close()
	if _, err := n.Wait(bg, rfd, EventRead); err == nil {
		t.Fatalf("Wait on closed notifier succeeded")
	}
}

// countingNotifier records every wait it forwards.
type countingNotifier struct {
	Notifier

	mu    sync.Mutex
	waits []Event
}

func (n *countingNotifier) Wait(ctx context.Context, fd int, ev Event) (Event, error) {
	n.mu.Lock()
	n.waits = append(n.waits, ev)
	n.mu.Unlock()
	return n.Notifier.Wait(ctx, fd, ev)
}

func (n *countingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.waits)
}

func TestConfigNotifier(t *testing.T) {
	pn, err := NewPollNotifier()
	if err != nil {
		t.Fatalf("NewPollNotifier failed: %v", err)
	}
	defer pn.Close()
	cn := &countingNotifier{Notifier: pn}
	cfg := testConfig(t)
	cfg.Notifier = cn
	p, err := Open(cfg)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer p.Close()

	// Data already buffered: no wait.
	p.WriteEnd().Write([]byte("a"))
	p.ReadEnd().Read(make([]byte, 1))
	if c := cn.count(); c != 0 {
		t.Fatalf("%d waits for buffered data; want 0", c)
	}

	done := make(chan error, 1)
	go func() {
		_, err := p.ReadEnd().Read(make([]byte, 1))
		done <- err
	}()
	for cn.count() == 0 {
		time.Sleep(time.Millisecond)
	}
	p.WriteEnd().Write([]byte("b"))
	if err := <-done; err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if c := cn.count(); c != 1 {
		t.Errorf("%d waits for one readiness signal; want 1", c)
	}
	if cn.waits[0] != EventRead {
		t.Errorf("read waited for %v", cn.waits[0])
	}
}
