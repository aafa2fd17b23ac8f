package game

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

// recorder implements Surface and FeedbackSink and logs every call in order.
type recorder struct {
	mu      sync.Mutex
	calls   []string
	inputOn chan struct{}
}

func newRecorder() *recorder {
	return &recorder{inputOn: make(chan struct{}, 64)}
}

func (r *recorder) add(s string) {
	r.mu.Lock()
	r.calls = append(r.calls, s)
	r.mu.Unlock()
}

func (r *recorder) SetHighlighted(p Panel, on bool) { r.add(fmt.Sprintf("hl:%d:%t", p, on)) }
func (r *recorder) SetLoseState(p Panel, on bool)   { r.add(fmt.Sprintf("lose:%d:%t", p, on)) }
func (r *recorder) ReportScore(current, best int)   { r.add(fmt.Sprintf("score:%d:%d", current, best)) }
func (r *recorder) Play(c Cue)                      { r.add("cue:" + string(c)) }

func (r *recorder) SetInputEnabled(on bool) {
	r.add(fmt.Sprintf("input:%t", on))
	if on {
		r.inputOn <- struct{}{}
	}
}

func (r *recorder) log() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func (r *recorder) waitInput(t *testing.T) {
	t.Helper()
	select {
	case <-r.inputOn:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for input to be enabled")
	}
}

// memScores is an in-memory ScoreStore with an optional save failure.
type memScores struct {
	mu      sync.Mutex
	best    int
	saves   []int
	saveErr error
	loadErr error
}

func (m *memScores) Load(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return 0, m.loadErr
	}
	return m.best, nil
}

func (m *memScores) Save(_ context.Context, best int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves = append(m.saves, best)
	if m.saveErr != nil {
		return m.saveErr
	}
	m.best = best
	return nil
}

func (m *memScores) saved() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int(nil), m.saves...)
}

var errDiskFull = errors.New("disk full")

// script returns its sequences in order and then repeats the last one.
type script struct {
	seqs [][]Panel
	i    int
}

func (s *script) Next() []Panel {
	seq := s.seqs[s.i]
	if s.i < len(s.seqs)-1 {
		s.i++
	}
	return seq
}

// instantClock fires every timer immediately and records the requested durations.
type instantClock struct {
	mu  sync.Mutex
	req []time.Duration
}

func (c *instantClock) NewTimer(d time.Duration) Timer {
	c.mu.Lock()
	c.req = append(c.req, d)
	c.mu.Unlock()
	ch := make(chan time.Time, 1)
	ch <- time.Now()
	return fakeTimer{ch}
}

func (c *instantClock) durations() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.req...)
}

type fakeTimer struct{ ch chan time.Time }

func (f fakeTimer) C() <-chan time.Time { return f.ch }
func (f fakeTimer) Stop() bool          { return true }

// gatedClock hands each timer to the test, which fires it explicitly.
type gatedClock struct {
	timers chan fakeTimer
}

func newGatedClock() *gatedClock { return &gatedClock{timers: make(chan fakeTimer, 64)} }

func (c *gatedClock) NewTimer(time.Duration) Timer {
	t := fakeTimer{make(chan time.Time, 1)}
	c.timers <- t
	return t
}

func (c *gatedClock) next(t *testing.T) fakeTimer {
	t.Helper()
	select {
	case tm := <-c.timers:
		return tm
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a timer")
		return fakeTimer{}
	}
}

func indexOf(log []string, s string, from int) int {
	for i := from; i < len(log); i++ {
		if log[i] == s {
			return i
		}
	}
	return -1
}

func lastIndexOf(log []string, s string) int {
	for i := len(log) - 1; i >= 0; i-- {
		if log[i] == s {
			return i
		}
	}
	return -1
}
