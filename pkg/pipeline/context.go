package pipeline

import (
	"github.com/benbjohnson/clock"
)

// Context is a context for a pipeline. The clock is injected so inactivity
// windows and session timing are controllable in tests.
type Context struct {
	Clock clock.Clock
}

// New returns a Context backed by the wall clock.
func New() Context {
	return Context{Clock: clock.New()}
}
