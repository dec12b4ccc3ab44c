// Package link ties the crypto, session, message and transport layers into
// the two ends of a keyboard link.
//
// A Transmitter runs on each keyboard half. It seals fixed-size key-state
// reports under its half's session and sends them as frames. A Receiver runs
// on the dongle. It holds the sessions of both halves, verifies and decrypts
// incoming frames, applies the replay policy, and merges the last report of
// each half into one key state.
//
// # Provisioning
//
// Both ends are configured with the same root secret. The pairing that
// establishes it is not part of this package; for development a secret can be
// stretched from a passphrase:
//
//	root, err := crypto.StretchPassphrase([]byte("correct horse"), salt, session.RootSecretSize)
//
// # Wiring
//
//	pipe := transport.NewPipe()
//	txConn, _ := pipe.PacketConn(0)
//	rxConn, _ := pipe.PacketConn(1)
//
//	rx, _ := link.NewReceiver(link.ReceiverConfig{RootSecret: root})
//	rxTransport, _ := transport.NewDatagram(transport.DatagramConfig{
//	    Conn:           rxConn,
//	    MessageHandler: rx.HandleMessage,
//	})
//	rxTransport.Start()
//
//	txTransport, _ := transport.NewDatagram(transport.DatagramConfig{
//	    Conn: txConn,
//	    Half: session.HalfLeft,
//	})
//	tx, _ := link.NewTransmitter(link.TransmitterConfig{
//	    RootSecret: root,
//	    Half:       session.HalfLeft,
//	    Sender:     txTransport,
//	    PeerAddr:   txConn.PeerAddr(),
//	})
//	tx.Send([]byte{0x01, 0x00, 0x00, 0x00})
//
// # Counters
//
// A transmitter never reuses a counter under one session. Counter values are
// reserved from Storage in blocks before they are used, so a half that
// restarts resumes above every counter it may have sent.
package link
