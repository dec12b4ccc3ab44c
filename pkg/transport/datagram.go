package transport

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/backkem/keylink/pkg/session"
	"github.com/pion/logging"
)

// DatagramConfig configures a Datagram transport.
type DatagramConfig struct {
	// Conn is the packet connection frames travel over: a UDP socket or one
	// end of a Pipe. If nil, a UDP socket is opened on ListenAddr.
	Conn net.PacketConn

	// ListenAddr is the UDP address to listen on when Conn is nil.
	// Default: an ephemeral port on all interfaces.
	ListenAddr string

	// Half binds the transport to one keyboard half. When set, Send refuses
	// frames tagged for the other half and received frames tagged for it are
	// dropped. HalfUnknown carries both halves.
	Half session.Half

	// MessageHandler receives every frame passing the size and half checks.
	// Required for Start; a send-only transport may leave it nil.
	MessageHandler MessageHandler

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// DatagramStats counts frames by outcome.
type DatagramStats struct {
	Sent       uint64
	SendErrors uint64
	Received   uint64
	Oversized  uint64
	Untagged   uint64
	Misrouted  uint64
}

// Datagram carries link frames, one per packet, over a net.PacketConn.
//
// Outgoing frames are checked before they are written: at most MaxFrameSize
// bytes and tagged with a known half (the bound half, if any). Incoming
// packets get the same checks; failures are counted and never reach the
// handler.
type Datagram struct {
	conn    net.PacketConn
	half    session.Half
	handler MessageHandler
	log     logging.LeveledLogger

	done chan struct{}
	wg   sync.WaitGroup

	mu      sync.Mutex
	running bool
	closed  bool
	stats   DatagramStats
}

// NewDatagram creates a frame transport from config.
func NewDatagram(config DatagramConfig) (*Datagram, error) {
	if config.Half != session.HalfUnknown && !config.Half.IsValid() {
		return nil, fmt.Errorf("%w: bound to %d", ErrUntaggedFrame, config.Half)
	}

	conn := config.Conn
	if conn == nil {
		addr := config.ListenAddr
		if addr == "" {
			addr = ":0"
		}
		c, err := net.ListenPacket("udp", addr)
		if err != nil {
			return nil, err
		}
		conn = c
	}

	d := &Datagram{
		conn:    conn,
		half:    config.Half,
		handler: config.MessageHandler,
		done:    make(chan struct{}),
	}
	if config.LoggerFactory != nil {
		d.log = config.LoggerFactory.NewLogger("transport-datagram")
	}
	return d, nil
}

// Half returns the half the transport is bound to, or HalfUnknown.
func (d *Datagram) Half() session.Half {
	return d.half
}

// LocalAddr returns the address of the underlying connection.
func (d *Datagram) LocalAddr() net.Addr {
	return d.conn.LocalAddr()
}

// Start launches the receive loop delivering frames to the handler.
func (d *Datagram) Start() error {
	if d.handler == nil {
		return ErrNoHandler
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}
	if d.running {
		return ErrAlreadyStarted
	}
	d.running = true

	if d.log != nil {
		d.log.Infof("receiving %s frames on %s", d.halfName(), d.conn.LocalAddr())
	}

	d.wg.Add(1)
	go d.receive()
	return nil
}

// Close closes the connection and waits for the receive loop to exit.
func (d *Datagram) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrClosed
	}
	d.closed = true
	d.mu.Unlock()

	close(d.done)
	d.conn.SetReadDeadline(time.Now())
	err := d.conn.Close()
	d.wg.Wait()
	return err
}

// Send writes one frame to addr.
func (d *Datagram) Send(frame []byte, addr net.Addr) error {
	if addr == nil {
		return ErrInvalidAddress
	}

	half, err := frameHalf(frame)
	if err != nil {
		return fmt.Errorf("%w: %d bytes", err, len(frame))
	}
	if d.half != session.HalfUnknown && half != d.half {
		return fmt.Errorf("%w: %s frame on %s transport", ErrHalfMismatch, half, d.half)
	}

	d.mu.Lock()
	closed := d.closed
	d.mu.Unlock()
	if closed {
		return ErrClosed
	}

	if _, err := d.conn.WriteTo(frame, addr); err != nil {
		d.count(func(s *DatagramStats) { s.SendErrors++ })
		if d.log != nil {
			d.log.Warnf("send %s frame to %v: %v", half, addr, err)
		}
		return err
	}
	d.count(func(s *DatagramStats) { s.Sent++ })
	return nil
}

// Stats returns a snapshot of the frame counters.
func (d *Datagram) Stats() DatagramStats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stats
}

func (d *Datagram) count(fn func(s *DatagramStats)) {
	d.mu.Lock()
	fn(&d.stats)
	d.mu.Unlock()
}

func (d *Datagram) halfName() string {
	if d.half == session.HalfUnknown {
		return "all"
	}
	return d.half.String()
}

// receive reads packets until Close. One spare byte in the buffer detects
// packets longer than MaxFrameSize.
func (d *Datagram) receive() {
	defer d.wg.Done()

	buf := make([]byte, MaxFrameSize+1)
	for {
		n, addr, err := d.conn.ReadFrom(buf)
		if err != nil {
			select {
			case <-d.done:
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) || errors.Is(err, io.EOF) {
				if d.log != nil {
					d.log.Warn("connection closed underneath transport")
				}
				return
			}
			if d.log != nil {
				d.log.Warnf("read: %v", err)
			}
			continue
		}

		half, err := frameHalf(buf[:n])
		switch {
		case errors.Is(err, ErrFrameTooLarge):
			d.count(func(s *DatagramStats) { s.Oversized++ })
		case err != nil:
			d.count(func(s *DatagramStats) { s.Untagged++ })
		case d.half != session.HalfUnknown && half != d.half:
			d.count(func(s *DatagramStats) { s.Misrouted++ })
			err = ErrHalfMismatch
		}
		if err != nil {
			if d.log != nil {
				d.log.Debugf("dropped %d byte packet from %v: %v", n, addr, err)
			}
			continue
		}

		d.count(func(s *DatagramStats) { s.Received++ })
		d.handler(&ReceivedMessage{
			Half:     half,
			Data:     append([]byte(nil), buf[:n]...),
			PeerAddr: addr,
		})
	}
}
