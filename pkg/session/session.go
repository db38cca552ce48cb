package session

import (
	"io"
	"sync/atomic"
	"time"

	"github.com/muxable/avbridge/pkg/continuity"
)

// State of one session.
// Created -> Initialized -> Running -> {Completed, Failed, Cancelled} -> Released.
type State int32

const (
	StateCreated State = iota
	StateInitialized
	StateRunning
	StateCompleted
	StateFailed
	StateCancelled
	StateReleased
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateInitialized:
		return "initialized"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	case StateReleased:
		return "released"
	}
	return "unknown"
}

func (s State) terminal() bool {
	switch s {
	case StateCompleted, StateFailed, StateCancelled:
		return true
	}
	return false
}

// Session is one transcode attempt. The cancellation flag transitions only
// false -> true and is polled by the engine once per decoded frame.
type Session struct {
	handle  int64
	url     string
	params  *Params
	tracker *continuity.Tracker

	// source is an optional live capture reader; releasing the session
	// joins it so the queue is never written after release.
	source io.Closer

	state     int32
	cancelled int32
	startedAt time.Time
}

// Handle returns the session's registry handle.
func (s *Session) Handle() int64 { return s.handle }

// URL returns the input url the session was initialized with.
func (s *Session) URL() string { return s.url }

// State returns the session's lifecycle state.
func (s *Session) State() State {
	return State(atomic.LoadInt32(&s.state))
}

func (s *Session) setState(st State) {
	atomic.StoreInt32(&s.state, int32(st))
}

func (s *Session) casState(from, to State) bool {
	return atomic.CompareAndSwapInt32(&s.state, int32(from), int32(to))
}

// Cancelled reports whether cancellation has been requested. Engines poll
// this at every natural suspension point.
func (s *Session) Cancelled() bool {
	return atomic.LoadInt32(&s.cancelled) != 0
}

func (s *Session) cancel() {
	atomic.StoreInt32(&s.cancelled, 1)
}

// Continuity returns the counters the engine reported so far.
func (s *Session) Continuity() continuity.State {
	return s.tracker.State()
}
