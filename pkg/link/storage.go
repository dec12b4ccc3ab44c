package link

import (
	"github.com/backkem/keylink/pkg/session"
)

// Storage abstracts persistent storage for link counters.
// Implementations can use flash pages, files, or in-memory storage.
//
// All methods must be safe for concurrent use.
type Storage interface {
	LoadCounters() (*CounterState, error)
	SaveCounters(state *CounterState) error
}

// CounterState holds counter state for persistence.
type CounterState struct {
	// Reserved maps a half to the first counter it has not reserved yet.
	// A transmitter resumes from this value after a restart; every counter
	// below it may already have been sent.
	Reserved map[session.Half]uint32

	// PeerCounters maps a half to the highest counter the receiver accepted
	// from it.
	PeerCounters map[session.Half]uint32
}

// NewCounterState creates a new CounterState with initialized maps.
func NewCounterState() *CounterState {
	return &CounterState{
		Reserved:     make(map[session.Half]uint32),
		PeerCounters: make(map[session.Half]uint32),
	}
}

// Clone creates a deep copy of the counter state.
func (c *CounterState) Clone() *CounterState {
	if c == nil {
		return NewCounterState()
	}

	clone := &CounterState{
		Reserved:     make(map[session.Half]uint32, len(c.Reserved)),
		PeerCounters: make(map[session.Half]uint32, len(c.PeerCounters)),
	}

	for k, v := range c.Reserved {
		clone.Reserved[k] = v
	}
	for k, v := range c.PeerCounters {
		clone.PeerCounters[k] = v
	}

	return clone
}
