package link

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/backkem/keylink/pkg/message"
	"github.com/backkem/keylink/pkg/session"
	"github.com/backkem/keylink/pkg/transport"
	"github.com/pion/logging"
)

// Report is one authenticated key-state report.
type Report struct {
	Half    session.Half
	Counter uint32
	Data    []byte
}

// ReceiverStats counts the fate of received frames.
type ReceiverStats struct {
	// Accepted frames authenticated and passed the replay policy.
	Accepted uint64
	// Replayed frames carried a counter the replay policy refused.
	Replayed uint64
	// Rejected frames failed authentication.
	Rejected uint64
	// Malformed frames could not be parsed or had the wrong report size.
	Malformed uint64
	// Expired counts reports cleared by the inactivity timeout.
	Expired uint64
}

// halfState is the receive side of one half.
type halfState struct {
	codec    *message.Codec
	replay   *message.ReceptionState
	report   []byte
	lastSeen time.Time
}

// Receiver verifies frames from both halves and merges their reports.
// It is safe for concurrent use.
type Receiver struct {
	config ReceiverConfig
	log    logging.LeveledLogger
	table  *session.Table

	mu       sync.Mutex
	halves   map[session.Half]*halfState
	counters *CounterState
	stats    ReceiverStats
	closed   bool
}

// NewReceiver derives the sessions of both halves and restores their replay
// state from storage.
func NewReceiver(config ReceiverConfig) (*Receiver, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	config.applyDefaults()

	r := &Receiver{
		config: config,
		halves: make(map[session.Half]*halfState, len(session.Halves)),
	}
	if config.LoggerFactory != nil {
		r.log = config.LoggerFactory.NewLogger("link-rx")
	}

	counters, err := config.Storage.LoadCounters()
	if err != nil {
		return nil, fmt.Errorf("link: load counters: %w", err)
	}
	r.counters = counters

	table, err := session.DeriveTable(session.Config{
		RootSecret: config.RootSecret,
		Primitive:  config.Primitive,
		ECBTimeout: config.ECBTimeout,
	})
	if err != nil {
		return nil, err
	}
	r.table = table

	for _, half := range session.Halves {
		ctx, err := table.Find(half)
		if err != nil {
			table.Clear()
			return nil, err
		}
		codec, err := message.NewCodec(ctx, message.CodecConfig{TagSize: config.TagSize})
		if err != nil {
			table.Clear()
			return nil, err
		}

		var replay *message.ReceptionState
		if last, ok := counters.PeerCounters[half]; ok {
			replay = message.NewReceptionState(config.ReplayMode, last)
		} else {
			replay = message.NewReceptionStateEmpty(config.ReplayMode)
		}

		r.halves[half] = &halfState{
			codec:  codec,
			replay: replay,
		}
	}

	if r.log != nil {
		r.log.Infof("receiver ready, replay mode %s", config.ReplayMode)
	}
	return r, nil
}

// HandleFrame verifies and decrypts one encoded frame.
//
// The counter is checked against the half's replay state before any crypto
// runs, and recorded only after the tag verified. A frame that fails leaves
// every half's state unchanged.
func (r *Receiver) HandleFrame(data []byte) (*Report, error) {
	report, err := r.handleFrame(data)
	if err != nil {
		return nil, err
	}
	if r.config.OnReport != nil {
		r.config.OnReport(*report)
	}
	return report, nil
}

func (r *Receiver) handleFrame(data []byte) (*Report, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrClosed
	}

	frame, err := message.DecodeFrame(data, r.config.TagSize)
	if err != nil {
		r.stats.Malformed++
		return nil, err
	}
	if len(frame.Payload.Ciphertext) != r.config.ReportSize {
		r.stats.Malformed++
		return nil, ErrInvalidReportSize
	}

	hs := r.halves[frame.Half]
	counter := frame.Payload.Counter

	if err := hs.replay.Check(counter); err != nil {
		r.stats.Replayed++
		return nil, err
	}

	plaintext, err := hs.codec.Open(&frame.Payload)
	if err != nil {
		if errors.Is(err, message.ErrAuthenticationFailed) {
			r.stats.Rejected++
		}
		return nil, err
	}

	if err := hs.replay.Accept(counter); err != nil {
		r.stats.Replayed++
		return nil, err
	}

	hs.report = plaintext
	hs.lastSeen = r.config.Now()
	r.stats.Accepted++

	r.counters.PeerCounters[frame.Half] = hs.replay.MaxCounter()
	if err := r.config.Storage.SaveCounters(r.counters); err != nil && r.log != nil {
		r.log.Warnf("save counters: %v", err)
	}

	out := make([]byte, len(plaintext))
	copy(out, plaintext)
	return &Report{Half: frame.Half, Counter: counter, Data: out}, nil
}

// HandleMessage is a transport.MessageHandler feeding received datagrams to
// HandleFrame. Refused frames are counted and dropped.
func (r *Receiver) HandleMessage(msg *transport.ReceivedMessage) {
	report, err := r.HandleFrame(msg.Data)
	if err != nil {
		if r.log != nil {
			r.log.Debugf("dropped %s frame from %v: %v", msg.Half, msg.PeerAddr, err)
		}
		return
	}
	if r.log != nil {
		r.log.Tracef("accepted %s counter %d", report.Half, report.Counter)
	}
}

// Expire clears the report of every half that has been silent for longer
// than the inactivity timeout. It returns the halves it cleared.
func (r *Receiver) Expire() []session.Half {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.expireLocked(r.config.Now())
}

func (r *Receiver) expireLocked(now time.Time) []session.Half {
	var expired []session.Half
	for _, half := range session.Halves {
		hs := r.halves[half]
		if hs.report == nil || now.Sub(hs.lastSeen) <= r.config.InactivityTimeout {
			continue
		}
		clear(hs.report)
		hs.report = nil
		r.stats.Expired++
		expired = append(expired, half)
		if r.log != nil {
			r.log.Infof("%s half inactive, key state cleared", half)
		}
	}
	return expired
}

// KeyState returns the bitwise OR of the live reports of both halves.
// Expired reports are cleared first.
func (r *Receiver) KeyState() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.expireLocked(r.config.Now())

	state := make([]byte, r.config.ReportSize)
	for _, half := range session.Halves {
		for i, b := range r.halves[half].report {
			state[i] |= b
		}
	}
	return state
}

// LastReport returns a copy of the live report of a half.
func (r *Receiver) LastReport(half session.Half) ([]byte, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	hs, ok := r.halves[half]
	if !ok {
		return nil, false
	}
	r.expireLocked(r.config.Now())
	if hs.report == nil {
		return nil, false
	}
	out := make([]byte, len(hs.report))
	copy(out, hs.report)
	return out, true
}

// Run calls Expire periodically until ctx is done.
func (r *Receiver) Run(ctx context.Context) error {
	interval := r.config.InactivityTimeout / 4
	if interval <= 0 {
		interval = time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.Expire()
		}
	}
}

// Stats returns a snapshot of the receiver counters.
func (r *Receiver) Stats() ReceiverStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

// Close wipes the session keys of both halves.
func (r *Receiver) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true
	r.table.Clear()
	for _, hs := range r.halves {
		clear(hs.report)
		hs.report = nil
	}

	if r.log != nil {
		r.log.Info("receiver closed")
	}
	return nil
}
