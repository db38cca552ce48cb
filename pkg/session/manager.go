// Package session tracks concurrent transcode sessions: handle issuance,
// init/run/cancel/release lifecycle, cooperative cancellation and the
// continuity counters needed to chain live invocations.
package session

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/muxable/avbridge/pkg/continuity"
	"github.com/muxable/avbridge/pkg/dispatch"
	"github.com/muxable/avbridge/pkg/metrics"
	"github.com/muxable/avbridge/pkg/pipeline"
	"github.com/rs/zerolog/log"
)

// MaxSessions is the default concurrent-session ceiling.
const MaxSessions = 128

var (
	// ErrTableFull is returned by Init when the session table is at its
	// ceiling. Init never blocks waiting for a free entry.
	ErrTableFull = errors.New("session table full")
	// ErrNotFound is returned for handles with no live session.
	ErrNotFound = errors.New("session not found")
	// ErrBadState is returned when an operation does not apply to the
	// session's current state.
	ErrBadState = errors.New("invalid session state")
	// ErrCancelled is the distinct completion status of a cancelled run.
	// It is not a transcode failure.
	ErrCancelled = errors.New("session cancelled")
)

// Engine runs one transcode attempt synchronously on the calling goroutine.
// Implementations must poll job.Cancelled at least once per decoded frame -
// coarser polling makes cancellation latency visible to callers - and return
// ErrCancelled (wrapped or not) when they stop because of it.
type Engine interface {
	Run(job *Job) error
}

// Job is what an engine needs to execute one session.
type Job struct {
	Handle    int64
	Params    *Params
	IO        *dispatch.Boundary
	Cancelled func() bool
}

// Manager owns the session table. All table access is serialized by one
// lock held only for lookup/mutation, never across an engine call.
type Manager struct {
	ctx        pipeline.Context
	engine     Engine
	dispatcher *dispatch.Dispatcher
	boundary   *dispatch.Boundary

	mu       sync.Mutex
	sessions map[int64]*Session
	max      int
}

// NewManager creates a manager running sessions on engine through d.
// maxSessions <= 0 uses MaxSessions.
func NewManager(ctx pipeline.Context, engine Engine, d *dispatch.Dispatcher, maxSessions int) *Manager {
	if maxSessions <= 0 {
		maxSessions = MaxSessions
	}
	return &Manager{
		ctx:        ctx,
		engine:     engine,
		dispatcher: d,
		boundary:   dispatch.NewBoundary(d),
		sessions:   make(map[int64]*Session),
		max:        maxSessions,
	}
}

// Init opens the input for url through the dispatcher and allocates a
// session with a fresh handle. source, if non-nil, is a live capture reader
// owned by the session and joined at release. On failure all partial
// resources are released and no handle is returned.
func (m *Manager) Init(params *Params, url string, source io.Closer) (int64, error) {
	// the session owns source from the first line on; every failure joins
	// it so its goroutine and socket never outlive a rejected init.
	fail := func(err error) (int64, error) {
		if source != nil {
			if cerr := source.Close(); cerr != nil {
				log.Error().Err(cerr).Str("URL", url).Msg("failed to close capture source after init failure")
			}
		}
		return -1, err
	}

	if params == nil {
		return fail(fmt.Errorf("%w: params not set", ErrBadState))
	}

	m.mu.Lock()
	if len(m.sessions) >= m.max {
		m.mu.Unlock()
		return fail(fmt.Errorf("%w: ceiling=%d", ErrTableFull, m.max))
	}
	m.mu.Unlock()

	tracker := continuity.NewTracker()
	h, size, err := m.dispatcher.OpenInput(url, tracker)
	if err != nil {
		return fail(err)
	}

	s := &Session{
		handle:    h,
		url:       url,
		params:    params,
		tracker:   tracker,
		source:    source,
		startedAt: m.ctx.Clock.Now(),
	}
	s.setState(StateInitialized)

	m.mu.Lock()
	// re-check under the lock; a burst of inits may have raced past the
	// early ceiling test.
	if len(m.sessions) >= m.max {
		m.mu.Unlock()
		m.dispatcher.CloseInput(h)
		return fail(fmt.Errorf("%w: ceiling=%d", ErrTableFull, m.max))
	}
	m.sessions[h] = s
	m.mu.Unlock()

	metrics.ActiveSessions.Inc()
	log.Info().Int64("Handle", h).Str("URL", url).Int64("Size", size).Msg("session initialized")
	return h, nil
}

func (m *Manager) session(h int64) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[h]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, h)
	}
	return s, nil
}

// Run invokes the engine synchronously for session h. It returns nil when
// the engine completes, ErrCancelled when the session was cancelled, and
// the engine's error otherwise; the session moves to the matching terminal
// state and never re-enters Running.
func (m *Manager) Run(h int64) error {
	// the transition to Running happens under the table lock so Release's
	// running-session guard and this check are ordered, never interleaved.
	m.mu.Lock()
	s, ok := m.sessions[h]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrNotFound, h)
	}
	if !s.casState(StateInitialized, StateRunning) {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrBadState, s.State())
	}
	m.mu.Unlock()

	job := &Job{
		Handle:    h,
		Params:    s.params,
		IO:        m.boundary,
		Cancelled: s.Cancelled,
	}
	err := m.engine.Run(job)

	switch {
	case errors.Is(err, ErrCancelled) || (err == nil && s.Cancelled()):
		s.setState(StateCancelled)
		err = ErrCancelled
	case err != nil:
		s.setState(StateFailed)
	default:
		s.setState(StateCompleted)
	}
	metrics.SessionsTotal.WithLabelValues(s.State().String()).Inc()
	log.Info().Int64("Handle", h).Str("State", s.State().String()).Dur("Elapsed", m.ctx.Clock.Since(s.startedAt)).Err(err).Msg("session finished")
	return err
}

// Cancel requests cooperative cancellation of session h. Safe to call
// concurrently with Run and idempotent; the engine observes the flag at its
// next per-frame check.
func (m *Manager) Cancel(h int64) error {
	s, err := m.session(h)
	if err != nil {
		return err
	}
	s.cancel()
	log.Info().Int64("Handle", h).Msg("session cancel requested")
	return nil
}

// State returns the lifecycle state of session h.
func (m *Manager) State(h int64) (State, error) {
	s, err := m.session(h)
	if err != nil {
		return StateReleased, err
	}
	return s.State(), nil
}

// Continuity returns the counters session h reported, used to seed the next
// session's SkipOverPts. Valid until Release.
func (m *Manager) Continuity(h int64) (continuity.State, error) {
	s, err := m.session(h)
	if err != nil {
		return continuity.State{}, err
	}
	return s.Continuity(), nil
}

// Release closes the session's input, joins its capture source and frees
// the table entry. Callable exactly once per handle; a second release
// returns ErrNotFound. A running session cannot be released.
func (m *Manager) Release(h int64) error {
	m.mu.Lock()
	s, ok := m.sessions[h]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrNotFound, h)
	}
	if s.State() == StateRunning {
		m.mu.Unlock()
		return fmt.Errorf("%w: running (cancel first)", ErrBadState)
	}
	delete(m.sessions, h)
	m.mu.Unlock()

	err := m.dispatcher.CloseInput(h)
	if errors.Is(err, dispatch.ErrNoHandler) {
		// the engine already closed the input on its way out.
		err = nil
	}
	if s.source != nil {
		// join the capture reader so nothing writes into a freed queue.
		if cerr := s.source.Close(); err == nil {
			err = cerr
		}
	}
	s.setState(StateReleased)
	metrics.ActiveSessions.Dec()
	log.Info().Int64("Handle", h).Msg("session released")
	return err
}

// Len returns the number of live (initialized, running or finished but not
// yet released) sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
