package engine

import (
	"sync"
	"time"
)

// scheduler coalesces mutation and viewport bursts into single engine
// passes. Mutations debounce from the last event: a stream of mutations
// arriving faster than the window postpones the pass until the stream goes
// quiet. Viewport changes throttle instead: the first event arms the timer
// and later events within the window ride along, so continuous scrolling
// still repositions at a steady cadence.
type scheduler struct {
	clock              Clock
	mutationDebounce   time.Duration
	repositionDebounce time.Duration
	onMutation         func()
	onReposition       func()

	mu       sync.Mutex
	mutTimer Timer
	posTimer Timer
	stopped  bool
}

func newScheduler(clock Clock, mutation, reposition time.Duration, onMutation, onReposition func()) *scheduler {
	return &scheduler{
		clock:              clock,
		mutationDebounce:   mutation,
		repositionDebounce: reposition,
		onMutation:         onMutation,
		onReposition:       onReposition,
	}
}

func (s *scheduler) noteMutation() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	if s.mutTimer != nil {
		s.mutTimer.Stop()
	}
	s.mutTimer = s.clock.AfterFunc(s.mutationDebounce, s.fireMutation)
}

func (s *scheduler) noteReposition() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped || s.posTimer != nil {
		return
	}
	s.posTimer = s.clock.AfterFunc(s.repositionDebounce, s.fireReposition)
}

func (s *scheduler) fireMutation() {
	s.mu.Lock()
	s.mutTimer = nil
	stopped := s.stopped
	s.mu.Unlock()
	if !stopped {
		s.onMutation()
	}
}

func (s *scheduler) fireReposition() {
	s.mu.Lock()
	s.posTimer = nil
	stopped := s.stopped
	s.mu.Unlock()
	if !stopped {
		s.onReposition()
	}
}

// stop cancels pending work permanently.
func (s *scheduler) stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	if s.mutTimer != nil {
		s.mutTimer.Stop()
		s.mutTimer = nil
	}
	if s.posTimer != nil {
		s.posTimer.Stop()
		s.posTimer = nil
	}
}
