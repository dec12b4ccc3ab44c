// Package transport carries sealed frames between the keyboard halves and the
// receiver.
//
// Every frame starts with the half byte of the keyboard half that sealed it.
// Two pieces are provided: Datagram, which moves frames over any
// net.PacketConn (UDP sockets in practice) and checks their size and half
// tag at both ends, and Pipe, an in-memory radio simulator that can drop,
// duplicate, delay and reorder packets. Neither gives delivery guarantees;
// replay and loss are handled by the receiver's replay policy.
package transport

import (
	"net"

	"github.com/backkem/keylink/pkg/session"
)

// MaxFrameSize is the largest frame carried in one packet, the maximum
// dynamic payload of the 2.4 GHz radio.
const MaxFrameSize = 252

// ReceivedMessage is one frame that passed the transport's size and half
// checks. Authentication is left to the layer above.
type ReceivedMessage struct {
	// Half is the half byte the frame is tagged with.
	Half session.Half
	// Data contains the whole frame, half byte included.
	Data []byte
	// PeerAddr identifies the source of the packet.
	PeerAddr net.Addr
}

// MessageHandler is called for each received message.
// Implementations should process messages quickly or dispatch to a goroutine
// to avoid blocking the transport's read loop.
type MessageHandler func(msg *ReceivedMessage)

// frameHalf returns the half a frame is tagged with, or the reason it cannot
// be carried.
func frameHalf(frame []byte) (session.Half, error) {
	if len(frame) == 0 {
		return session.HalfUnknown, ErrEmptyFrame
	}
	if len(frame) > MaxFrameSize {
		return session.HalfUnknown, ErrFrameTooLarge
	}
	half := session.Half(frame[0])
	if !half.IsValid() {
		return session.HalfUnknown, ErrUntaggedFrame
	}
	return half, nil
}
