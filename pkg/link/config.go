package link

import (
	"net"
	"time"

	"github.com/backkem/keylink/pkg/crypto"
	"github.com/backkem/keylink/pkg/message"
	"github.com/backkem/keylink/pkg/session"
	"github.com/backkem/keylink/pkg/transport"
	"github.com/pion/logging"
)

// Defaults.
const (
	// DefaultReportSize is the size of a key-state report: one bit per switch
	// of a half's matrix.
	DefaultReportSize = 4

	// DefaultInactivityTimeout is how long a half's last report stays in the
	// merged key state without a newer one.
	DefaultInactivityTimeout = 2 * time.Second

	// DefaultCounterReserve is how many counters a transmitter reserves in
	// storage at a time.
	DefaultCounterReserve = 1024
)

// Sender sends one frame to addr. transport.Datagram satisfies it.
type Sender interface {
	Send(data []byte, addr net.Addr) error
}

// TransmitterConfig configures a Transmitter.
type TransmitterConfig struct {
	// RootSecret is the shared secret from pairing. Required.
	RootSecret []byte

	// Half is the keyboard half this transmitter runs on. Required.
	Half session.Half

	// Sender delivers encoded frames. Required.
	Sender Sender

	// PeerAddr is the receiver's address. Required.
	PeerAddr net.Addr

	// ReportSize is the size of every report.
	// Default: DefaultReportSize
	ReportSize int

	// TagSize is the transmitted tag length.
	// Default: message.DefaultTagSize
	TagSize int

	// CounterReserve is how many counters are reserved in Storage at a time.
	// Default: DefaultCounterReserve
	CounterReserve uint32

	// Storage persists the counter reservation. If nil, a MemoryStorage is
	// used and counters start from a random value on every run.
	Storage Storage

	// Primitive is the block primitive. Default: crypto.SoftwareAES
	Primitive crypto.Primitive

	// ECBTimeout bounds the primitive completion wait.
	// Default: crypto.DefaultECBTimeout
	ECBTimeout time.Duration

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// Validate checks the configuration for errors.
func (c *TransmitterConfig) Validate() error {
	if len(c.RootSecret) != session.RootSecretSize {
		return session.ErrInvalidRootSecret
	}
	if !c.Half.IsValid() {
		return session.ErrInvalidHalf
	}
	if c.Sender == nil {
		return ErrNoSender
	}
	if c.PeerAddr == nil {
		return ErrNoPeerAddr
	}
	return validateSizes(c.ReportSize, c.TagSize)
}

// applyDefaults fills in default values for unset fields.
func (c *TransmitterConfig) applyDefaults() {
	if c.ReportSize == 0 {
		c.ReportSize = DefaultReportSize
	}
	if c.TagSize == 0 {
		c.TagSize = message.DefaultTagSize
	}
	if c.CounterReserve == 0 {
		c.CounterReserve = DefaultCounterReserve
	}
	if c.Storage == nil {
		c.Storage = NewMemoryStorage()
	}
}

// ReceiverConfig configures a Receiver.
type ReceiverConfig struct {
	// RootSecret is the shared secret from pairing. Required.
	RootSecret []byte

	// ReplayMode selects the replay policy applied to both halves.
	// Default: message.ReplayStrict
	ReplayMode message.ReplayMode

	// ReportSize is the size of every report.
	// Default: DefaultReportSize
	ReportSize int

	// TagSize is the transmitted tag length.
	// Default: message.DefaultTagSize
	TagSize int

	// InactivityTimeout clears a half's report when no authenticated frame
	// arrived from it for this long.
	// Default: DefaultInactivityTimeout
	InactivityTimeout time.Duration

	// Storage persists the highest accepted counter of each half. If nil, a
	// MemoryStorage is used.
	Storage Storage

	// OnReport is called for each authenticated report, outside any lock.
	// Optional.
	OnReport func(Report)

	// Primitive is the block primitive. Default: crypto.SoftwareAES
	Primitive crypto.Primitive

	// ECBTimeout bounds the primitive completion wait.
	// Default: crypto.DefaultECBTimeout
	ECBTimeout time.Duration

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory

	// Now returns the current time. Default: time.Now
	Now func() time.Time
}

// Validate checks the configuration for errors.
func (c *ReceiverConfig) Validate() error {
	if len(c.RootSecret) != session.RootSecretSize {
		return session.ErrInvalidRootSecret
	}
	if !c.ReplayMode.IsValid() {
		return ErrInvalidReplayMode
	}
	return validateSizes(c.ReportSize, c.TagSize)
}

// applyDefaults fills in default values for unset fields.
func (c *ReceiverConfig) applyDefaults() {
	if c.ReportSize == 0 {
		c.ReportSize = DefaultReportSize
	}
	if c.TagSize == 0 {
		c.TagSize = message.DefaultTagSize
	}
	if c.InactivityTimeout == 0 {
		c.InactivityTimeout = DefaultInactivityTimeout
	}
	if c.Storage == nil {
		c.Storage = NewMemoryStorage()
	}
	if c.Now == nil {
		c.Now = time.Now
	}
}

// validateSizes checks that a report fits a datagram. Zero means default.
func validateSizes(reportSize, tagSize int) error {
	if reportSize < 0 {
		return ErrInvalidReportSize
	}
	if reportSize == 0 {
		reportSize = DefaultReportSize
	}
	if tagSize == 0 {
		tagSize = message.DefaultTagSize
	}
	if tagSize < message.MinTagSize || tagSize > message.MaxTagSize {
		return message.ErrInvalidTagSize
	}
	if message.FrameSize(reportSize, tagSize) > transport.MaxFrameSize {
		return ErrInvalidReportSize
	}
	return nil
}
