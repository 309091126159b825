package main

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
)

// fakeControl is an in-memory Control. failChannel >= 0 makes SetValue fail
// for that channel.
type fakeControl struct {
	rng         VolumeRange
	values      []int
	setCalls    int
	failChannel int
	readErr     error
	closed      bool
}

func newFakeControl(lo, hi int, values ...int) *fakeControl {
	return &fakeControl{
		rng:         VolumeRange{Min: lo, Max: hi},
		values:      values,
		failChannel: -1,
	}
}

func (c *fakeControl) Range() VolumeRange { return c.rng }
func (c *fakeControl) Channels() int      { return len(c.values) }

func (c *fakeControl) Value(channel int) (int, error) {
	if c.readErr != nil {
		return 0, c.readErr
	}
	return c.values[channel], nil
}

func (c *fakeControl) SetValue(channel int, value int) error {
	c.setCalls++
	if channel == c.failChannel {
		return errors.New("EIO")
	}
	c.values[channel] = value
	return nil
}

func (c *fakeControl) Close() error {
	c.closed = true
	return nil
}

// fakeSource replays a fixed list of events and then returns endErr
// (io.EOF when nil).
type fakeSource struct {
	mu     sync.Mutex
	events []KeyEvent
	endErr error
	closed bool
}

func newFakeSource(events ...KeyEvent) *fakeSource {
	return &fakeSource{events: events}
}

func (s *fakeSource) Next() (KeyEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.events) == 0 {
		if s.endErr != nil {
			return KeyEvent{}, s.endErr
		}
		return KeyEvent{}, io.EOF
	}
	ev := s.events[0]
	s.events = s.events[1:]
	return ev, nil
}

func (s *fakeSource) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// blockingSource blocks in Next until Close is called.
type blockingSource struct {
	once sync.Once
	done chan struct{}
}

func newBlockingSource() *blockingSource {
	return &blockingSource{done: make(chan struct{})}
}

func (s *blockingSource) Next() (KeyEvent, error) {
	<-s.done
	return KeyEvent{}, errors.New("file already closed")
}

func (s *blockingSource) Close() error {
	s.once.Do(func() { close(s.done) })
	return nil
}

func up(t Transition) KeyEvent   { return KeyEvent{Code: KeyVolumeUp, Transition: t} }
func down(t Transition) KeyEvent { return KeyEvent{Code: KeyVolumeDown, Transition: t} }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timeout: %s", msg)
}
