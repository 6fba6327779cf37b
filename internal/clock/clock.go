// Package clock issues identifiers and timestamps. Now carries a monotonic
// reading on the real clock, so deadline math is immune to wall-clock jumps.
package clock

import (
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// Source combines a clock with an identifier generator.
type Source struct {
	clockwork.Clock
}

// New wraps c. A nil clock means the real system clock.
func New(c clockwork.Clock) *Source {
	if c == nil {
		c = clockwork.NewRealClock()
	}
	return &Source{Clock: c}
}

// NewID returns a random UUID string.
func (s *Source) NewID() string {
	return uuid.NewString()
}
