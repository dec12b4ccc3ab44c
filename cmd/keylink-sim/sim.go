package main

import (
	"context"
	"encoding/binary"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/backkem/keylink/pkg/link"
	"github.com/backkem/keylink/pkg/message"
	"github.com/backkem/keylink/pkg/session"
	"github.com/backkem/keylink/pkg/transport"
)

// settleTimeout bounds the wait for in-flight frames after the last send.
const settleTimeout = time.Second

// Result summarizes one simulator run.
type Result struct {
	Sent     map[session.Half]uint64
	Radio    transport.PipeStats
	Receiver link.ReceiverStats
	KeyState []byte
}

// radio is the datagram path from one half to the receiver.
type radio struct {
	pipe   *transport.Pipe
	txConn net.PacketConn
	rxConn net.PacketConn
	peer   net.Addr
}

func (r *radio) close() {
	if r.pipe != nil {
		r.pipe.Close()
	}
}

func newRadio(opts Options, half session.Half) (*radio, error) {
	if opts.Transport == "udp" {
		rxConn, err := net.ListenPacket("udp", "127.0.0.1:0")
		if err != nil {
			return nil, err
		}
		txConn, err := net.ListenPacket("udp", "127.0.0.1:0")
		if err != nil {
			rxConn.Close()
			return nil, err
		}
		return &radio{txConn: txConn, rxConn: rxConn, peer: rxConn.LocalAddr()}, nil
	}

	var seed int64
	if opts.Seed != 0 {
		seed = opts.Seed + int64(half)
	}
	pipe := transport.NewPipeWithConfig(transport.PipeConfig{
		AutoProcess: true,
		Seed:        seed,
	})
	pipe.SetCondition(transport.NetworkCondition{
		DropRate:      opts.Drop,
		DuplicateRate: opts.Dup,
		ReorderRate:   opts.Reorder,
	})
	txConn, _ := pipe.PacketConn(0)
	rxConn, _ := pipe.PacketConn(1)
	return &radio{pipe: pipe, txConn: txConn, rxConn: rxConn, peer: txConn.PeerAddr()}, nil
}

// run sends opts.Frames reports from each half to one receiver and returns
// what the receiver made of them.
func run(ctx context.Context, opts Options, root []byte) (*Result, error) {
	lf := opts.loggerFactory()
	log := lf.NewLogger("keylink-sim")

	mode := message.ReplayStrict
	if opts.Window {
		mode = message.ReplayWindow
	}

	rx, err := link.NewReceiver(link.ReceiverConfig{
		RootSecret:    root,
		ReplayMode:    mode,
		TagSize:       opts.TagSize,
		LoggerFactory: lf,
	})
	if err != nil {
		return nil, fmt.Errorf("create receiver: %w", err)
	}
	defer rx.Close()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go rx.Run(runCtx)

	txs := make(map[session.Half]*link.Transmitter, len(session.Halves))
	radios := make(map[session.Half]*radio, len(session.Halves))
	for _, half := range session.Halves {
		r, err := newRadio(opts, half)
		if err != nil {
			return nil, fmt.Errorf("%s radio: %w", half, err)
		}
		defer r.close()
		radios[half] = r

		rxTransport, err := transport.NewDatagram(transport.DatagramConfig{
			Conn:           r.rxConn,
			Half:           half,
			MessageHandler: rx.HandleMessage,
			LoggerFactory:  lf,
		})
		if err != nil {
			return nil, err
		}
		if err := rxTransport.Start(); err != nil {
			return nil, err
		}
		defer rxTransport.Close()

		txTransport, err := transport.NewDatagram(transport.DatagramConfig{
			Conn:          r.txConn,
			Half:          half,
			LoggerFactory: lf,
		})
		if err != nil {
			return nil, err
		}
		defer txTransport.Close()

		tx, err := link.NewTransmitter(link.TransmitterConfig{
			RootSecret:    root,
			Half:          half,
			Sender:        txTransport,
			PeerAddr:      r.peer,
			TagSize:       opts.TagSize,
			LoggerFactory: lf,
		})
		if err != nil {
			return nil, fmt.Errorf("create %s transmitter: %w", half, err)
		}
		defer tx.Close()
		txs[half] = tx
	}

	var wg sync.WaitGroup
	errCh := make(chan error, len(txs))
	for half, tx := range txs {
		wg.Add(1)
		go func(half session.Half, tx *link.Transmitter) {
			defer wg.Done()
			if err := sendReports(ctx, tx, opts); err != nil {
				errCh <- fmt.Errorf("%s half: %w", half, err)
			}
		}(half, tx)
	}
	wg.Wait()
	close(errCh)
	if err, ok := <-errCh; ok {
		return nil, err
	}

	res := &Result{Sent: make(map[session.Half]uint64, len(txs))}
	var expected uint64
	for half, tx := range txs {
		sent := tx.Stats().Sent
		res.Sent[half] = sent
		if p := radios[half].pipe; p != nil {
			s := p.Stats()
			res.Radio.Written += s.Written
			res.Radio.Dropped += s.Dropped
			res.Radio.Duplicated += s.Duplicated
			res.Radio.Reordered += s.Reordered
			expected += s.Written - s.Dropped + s.Duplicated
		} else {
			expected += sent
		}
	}

	deadline := time.Now().Add(settleTimeout)
	for time.Now().Before(deadline) {
		s := rx.Stats()
		if s.Accepted+s.Replayed+s.Rejected+s.Malformed >= expected {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	res.Receiver = rx.Stats()
	res.KeyState = rx.KeyState()
	log.Infof("run complete: %d frames expected at receiver, %d accepted", expected, res.Receiver.Accepted)
	return res, nil
}

// sendReports walks a single pressed key across the half's matrix.
func sendReports(ctx context.Context, tx *link.Transmitter, opts Options) error {
	report := make([]byte, link.DefaultReportSize)
	for i := 0; i < opts.Frames; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		binary.LittleEndian.PutUint32(report, uint32(1)<<(i%32))
		if _, err := tx.Send(report); err != nil {
			return err
		}
		if opts.Interval > 0 {
			time.Sleep(opts.Interval)
		}
	}
	return nil
}
