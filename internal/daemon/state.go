// Package daemon implements the privileged enforcement daemon: the control
// socket server, request handling and the periodic enforcement loop.
package daemon

import (
	"sync"
	"sync/atomic"
	"time"
)

// State is the daemon's shared runtime state. Every worker holds the same
// *State; counters are updated atomically.
type State struct {
	running   atomic.Bool
	blocked   atomic.Uint64
	startTime time.Time

	done     chan struct{}
	stopOnce sync.Once
}

// NewState returns a running state started at start.
func NewState(start time.Time) *State {
	s := &State{startTime: start, done: make(chan struct{})}
	s.running.Store(true)
	return s
}

// Running reports whether the daemon should keep serving.
func (s *State) Running() bool {
	return s.running.Load()
}

// Stop flips the running flag. Safe to call more than once.
func (s *State) Stop() {
	s.stopOnce.Do(func() {
		s.running.Store(false)
		close(s.done)
	})
}

// Done is closed once Stop has been called.
func (s *State) Done() <-chan struct{} {
	return s.done
}

// AddBlocked adds n terminated processes to the running total.
func (s *State) AddBlocked(n int) {
	if n > 0 {
		s.blocked.Add(uint64(n))
	}
}

// BlockedCount returns the processes terminated since start.
func (s *State) BlockedCount() uint64 {
	return s.blocked.Load()
}

// StartTime returns when the daemon started.
func (s *State) StartTime() time.Time {
	return s.startTime
}

// Uptime returns whole seconds elapsed since start.
func (s *State) Uptime(now time.Time) uint64 {
	d := now.Sub(s.startTime)
	if d < 0 {
		return 0
	}
	return uint64(d / time.Second)
}
