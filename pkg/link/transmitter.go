package link

import (
	"fmt"
	"math"
	"sync"

	"github.com/backkem/keylink/pkg/message"
	"github.com/backkem/keylink/pkg/session"
	"github.com/pion/logging"
)

// TransmitterStats counts what a transmitter has done.
type TransmitterStats struct {
	Sent       uint64
	SendErrors uint64
}

// Transmitter seals key-state reports of one keyboard half and sends them to
// the receiver.
// It is safe for concurrent use.
type Transmitter struct {
	config  TransmitterConfig
	log     logging.LeveledLogger
	session *session.Context
	codec   *message.Codec
	counter *message.SessionCounter

	// limit is the first counter not covered by the stored reservation.
	limit uint32

	mu     sync.Mutex
	stats  TransmitterStats
	closed bool
}

// NewTransmitter derives the half's session and restores its counter from
// storage.
func NewTransmitter(config TransmitterConfig) (*Transmitter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	config.applyDefaults()

	t := &Transmitter{
		config: config,
	}
	if config.LoggerFactory != nil {
		t.log = config.LoggerFactory.NewLogger("link-tx")
	}

	ctx, err := session.DeriveWithConfig(session.Config{
		RootSecret: config.RootSecret,
		Half:       config.Half,
		Primitive:  config.Primitive,
		ECBTimeout: config.ECBTimeout,
	})
	if err != nil {
		return nil, err
	}

	codec, err := message.NewCodec(ctx, message.CodecConfig{TagSize: config.TagSize})
	if err != nil {
		ctx.Destroy()
		return nil, err
	}
	t.session = ctx
	t.codec = codec

	if err := t.restoreCounter(); err != nil {
		ctx.Destroy()
		return nil, err
	}

	if t.log != nil {
		t.log.Infof("%s half ready, counter %d", config.Half, t.counter.Current())
	}
	return t, nil
}

// restoreCounter resumes from the stored reservation, or starts a fresh
// random counter, and reserves the first block.
func (t *Transmitter) restoreCounter() error {
	state, err := t.config.Storage.LoadCounters()
	if err != nil {
		return fmt.Errorf("link: load counters: %w", err)
	}

	if next, ok := state.Reserved[t.config.Half]; ok {
		if next == math.MaxUint32 {
			return message.ErrCounterExhausted
		}
		t.counter = message.NewSessionCounterWithValue(next)
	} else {
		t.counter = message.NewSessionCounter()
	}

	return t.reserve(state, t.counter.Current())
}

// reserve stores a reservation covering CounterReserve counters from next.
// The limit saturates at math.MaxUint32, which is never sent.
func (t *Transmitter) reserve(state *CounterState, next uint32) error {
	limit := uint64(next) + uint64(t.config.CounterReserve)
	if limit > math.MaxUint32 {
		limit = math.MaxUint32
	}

	state.Reserved[t.config.Half] = uint32(limit)
	if err := t.config.Storage.SaveCounters(state); err != nil {
		return fmt.Errorf("link: save counters: %w", err)
	}
	t.limit = uint32(limit)

	if t.log != nil {
		t.log.Debugf("%s half reserved counters up to %d", t.config.Half, t.limit)
	}
	return nil
}

// Half returns the half this transmitter runs on.
func (t *Transmitter) Half() session.Half {
	return t.config.Half
}

// NextCounter returns the counter the next report will be sealed with.
func (t *Transmitter) NextCounter() uint32 {
	return t.counter.Current()
}

// Seal seals a report into an encoded frame under the next counter without
// sending it. The counter is consumed even if sealing fails.
func (t *Transmitter) Seal(report []byte) ([]byte, uint32, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sealLocked(report)
}

func (t *Transmitter) sealLocked(report []byte) ([]byte, uint32, error) {
	if t.closed {
		return nil, 0, ErrClosed
	}
	if len(report) != t.config.ReportSize {
		return nil, 0, ErrInvalidReportSize
	}

	if t.counter.Current() >= t.limit {
		if t.limit == math.MaxUint32 {
			return nil, 0, message.ErrCounterExhausted
		}
		state, err := t.config.Storage.LoadCounters()
		if err != nil {
			return nil, 0, fmt.Errorf("link: load counters: %w", err)
		}
		if err := t.reserve(state, t.counter.Current()); err != nil {
			return nil, 0, err
		}
	}

	counter, err := t.counter.Next()
	if err != nil {
		return nil, 0, err
	}

	frame, err := t.codec.SealFrame(report, counter)
	if err != nil {
		return nil, counter, fmt.Errorf("link: seal counter %d: %w", counter, err)
	}
	return frame.Encode(), counter, nil
}

// Send seals a report and sends it to the receiver. It returns the counter
// the report was sealed with.
func (t *Transmitter) Send(report []byte) (uint32, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	data, counter, err := t.sealLocked(report)
	if err != nil {
		t.stats.SendErrors++
		if t.log != nil {
			t.log.Warnf("seal failed: %v", err)
		}
		return counter, err
	}

	if err := t.config.Sender.Send(data, t.config.PeerAddr); err != nil {
		t.stats.SendErrors++
		if t.log != nil {
			t.log.Warnf("send of counter %d failed: %v", counter, err)
		}
		return counter, fmt.Errorf("link: send counter %d: %w", counter, err)
	}

	t.stats.Sent++
	if t.log != nil {
		t.log.Tracef("sent counter %d (%d bytes)", counter, len(data))
	}
	return counter, nil
}

// Stats returns a snapshot of the transmitter counters.
func (t *Transmitter) Stats() TransmitterStats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stats
}

// Close wipes the session keys. Further sends fail with ErrClosed.
func (t *Transmitter) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true
	t.session.Destroy()

	if t.log != nil {
		t.log.Infof("%s half closed", t.config.Half)
	}
	return nil
}
