package message

import (
	"crypto/rand"
	"encoding/binary"
	"sync"
)

// MessageCounter manages outgoing message counter values.
// It is safe for concurrent use.
type MessageCounter struct {
	value uint32
	mu    sync.Mutex
}

// NewMessageCounter creates a new message counter initialized with a random
// value in [1, CounterInitMax].
func NewMessageCounter() *MessageCounter {
	return &MessageCounter{
		value: randomCounterInit(),
	}
}

// NewMessageCounterWithValue creates a counter with a specific initial value.
// Used for testing or restoring persisted counters.
func NewMessageCounterWithValue(initial uint32) *MessageCounter {
	return &MessageCounter{
		value: initial,
	}
}

// Next returns the next counter value and increments the internal counter.
// The plain counter wraps silently; SessionCounter detects exhaustion.
func (c *MessageCounter) Next() (uint32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	current := c.value
	c.value++
	return current, nil
}

// Current returns the current counter value without incrementing.
func (c *MessageCounter) Current() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

// randomCounterInit generates a random initial counter value in [1, 2^28].
// The upper bits stay clear so a session has at least 2^32 - 2^28 counters
// before it is exhausted.
func randomCounterInit() uint32 {
	var buf [4]byte
	_, err := rand.Read(buf[:])
	if err != nil {
		// Fallback to 1 if random fails (should never happen)
		return 1
	}

	value := binary.LittleEndian.Uint32(buf[:])
	value = (value & (CounterInitMax - 1)) + 1

	return value
}

// SessionCounter is the outbound counter of one session.
// It tracks whether the counter has wrapped; a wrapped counter would repeat a
// CTR counter block, so the session must be re-derived.
type SessionCounter struct {
	*MessageCounter
	exhausted bool
}

// NewSessionCounter creates a new session counter.
func NewSessionCounter() *SessionCounter {
	return &SessionCounter{
		MessageCounter: NewMessageCounter(),
		exhausted:      false,
	}
}

// NewSessionCounterWithValue creates a session counter with a specific initial value.
// Used for testing or restoring persisted counters.
func NewSessionCounterWithValue(initial uint32) *SessionCounter {
	return &SessionCounter{
		MessageCounter: NewMessageCounterWithValue(initial),
		exhausted:      false,
	}
}

// Next returns the next counter value.
// Returns ErrCounterExhausted once 0xFFFFFFFF has been handed out.
func (c *SessionCounter) Next() (uint32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.exhausted {
		return 0, ErrCounterExhausted
	}

	current := c.value
	c.value++

	if c.value == 0 {
		c.exhausted = true
	}

	return current, nil
}

// IsExhausted returns true if the counter has wrapped.
func (c *SessionCounter) IsExhausted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.exhausted
}

// ReceptionState is the replay policy for the inbound counters of one
// session.
//
// Check is side-effect free and may run before authentication to drop stale
// frames cheaply. Accept records a counter and must only be called after the
// payload authenticated; otherwise a forged frame could advance the state and
// lock out the genuine sender.
//
// In ReplayWindow mode a bitmap tracks the CounterWindowSize counters below
// maxCounter: bit n set means maxCounter-n-1 was received.
type ReceptionState struct {
	mode        ReplayMode
	maxCounter  uint32 // Largest counter accepted
	bitmap      uint32 // Bitmap for window [maxCounter-32, maxCounter-1]
	initialized bool   // Whether any counter has been accepted
	mu          sync.Mutex
}

// NewReceptionState creates a reception state with a known max counter.
// Only counters above initialMax are accepted. Used when the last counter of
// the peer is known, e.g. restored from storage.
func NewReceptionState(mode ReplayMode, initialMax uint32) *ReceptionState {
	return &ReceptionState{
		mode:        mode,
		maxCounter:  initialMax,
		bitmap:      0xFFFFFFFF, // All bits set = all positions marked as received
		initialized: true,
	}
}

// NewReceptionStateEmpty creates a reception state that accepts any first
// counter.
func NewReceptionStateEmpty(mode ReplayMode) *ReceptionState {
	return &ReceptionState{
		mode: mode,
	}
}

// Mode returns the replay mode.
func (r *ReceptionState) Mode() ReplayMode {
	return r.mode
}

// Check reports whether counter would be accepted, without recording it.
// Returns ErrReplayDetected if it would not.
func (r *ReceptionState) Check(counter uint32) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.isNew(counter) {
		return ErrReplayDetected
	}
	return nil
}

// Accept records counter as received.
// Returns ErrReplayDetected, leaving the state unchanged, if the counter was
// already received or is too old.
func (r *ReceptionState) Accept(counter uint32) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.isNew(counter) {
		return ErrReplayDetected
	}

	switch {
	case !r.initialized:
		r.maxCounter = counter
		r.bitmap = 0
		r.initialized = true
	case counter > r.maxCounter:
		r.advanceWindow(counter)
	default:
		r.bitmap |= uint32(1) << (r.maxCounter - counter - 1)
	}
	return nil
}

// CheckAndAccept checks if a counter is new and accepts it.
// Returns true if the message should be processed, false if it's a duplicate.
func (r *ReceptionState) CheckAndAccept(counter uint32) bool {
	return r.Accept(counter) == nil
}

// isNew is the acceptance rule. Counters never roll over within a session.
func (r *ReceptionState) isNew(counter uint32) bool {
	if !r.initialized {
		return true
	}

	// Counter ahead of window - definitely new
	if counter > r.maxCounter {
		return true
	}

	// Counter equal to max - duplicate
	if counter == r.maxCounter {
		return false
	}

	if r.mode != ReplayWindow {
		return false
	}

	offset := r.maxCounter - counter - 1
	if offset >= CounterWindowSize {
		// Counter is behind window
		return false
	}
	return r.bitmap&(uint32(1)<<offset) == 0
}

// advanceWindow updates maxCounter and shifts the bitmap.
// The caller has already determined newMax > maxCounter.
func (r *ReceptionState) advanceWindow(newMax uint32) {
	shift := newMax - r.maxCounter
	if shift > CounterWindowSize {
		// New counter is far ahead (jumped beyond window), reset bitmap
		r.bitmap = 0
	} else {
		// Shift bitmap left and mark the old max position as received.
		// When shift == CounterWindowSize, the left shift clears all bits,
		// then bit (shift-1) marks the old max.
		r.bitmap = (r.bitmap << shift) | (1 << (shift - 1))
	}

	r.maxCounter = newMax
}

// MaxCounter returns the current maximum counter value.
func (r *ReceptionState) MaxCounter() uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.maxCounter
}

// IsInitialized reports whether any counter has been accepted or a known max
// was supplied.
func (r *ReceptionState) IsInitialized() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.initialized
}

// Reset forgets every accepted counter. Used after the session is re-derived.
func (r *ReceptionState) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.maxCounter = 0
	r.bitmap = 0
	r.initialized = false
}
