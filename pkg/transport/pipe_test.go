package transport

import (
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type testError struct {
	msg string
}

func (e *testError) Error() string { return e.msg }

// mustConns returns both endpoints of a pipe.
func mustConns(t *testing.T, p *Pipe) (*PipePacketConn, *PipePacketConn) {
	t.Helper()
	c0, err := p.PacketConn(0)
	if err != nil {
		t.Fatalf("PacketConn(0) failed: %v", err)
	}
	c1, err := p.PacketConn(1)
	if err != nil {
		t.Fatalf("PacketConn(1) failed: %v", err)
	}
	return c0, c1
}

// TestPipe_AutoProcess verifies that messages flow automatically by default.
func TestPipe_AutoProcess(t *testing.T) {
	pipe := NewPipe()
	defer pipe.Close()

	if !pipe.AutoProcess() {
		t.Fatal("AutoProcess should be true by default")
	}

	conn0, conn1 := mustConns(t, pipe)

	testData := []byte("auto-delivered frame")
	done := make(chan error, 1)

	go func() {
		buf := make([]byte, 100)
		n, _, err := conn1.ReadFrom(buf)
		if err != nil {
			done <- err
			return
		}
		if string(buf[:n]) != string(testData) {
			done <- &testError{msg: "data mismatch"}
			return
		}
		done <- nil
	}()

	// Give reader time to block
	time.Sleep(10 * time.Millisecond)

	conn0.WriteTo(testData, conn0.PeerAddr())

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("read error: %v", err)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timeout - auto-process may not be working")
	}
}

// TestPipe_ManualProcess verifies that manual processing works when auto-process is disabled.
func TestPipe_ManualProcess(t *testing.T) {
	pipe := NewPipeWithConfig(PipeConfig{
		AutoProcess: false,
	})
	defer pipe.Close()

	if pipe.AutoProcess() {
		t.Fatal("AutoProcess should be false")
	}

	conn0, conn1 := mustConns(t, pipe)

	testData := []byte("manually-delivered frame")
	done := make(chan error, 1)

	go func() {
		buf := make([]byte, 100)
		n, _, err := conn1.ReadFrom(buf)
		if err != nil {
			done <- err
			return
		}
		if string(buf[:n]) != string(testData) {
			done <- &testError{msg: "data mismatch"}
			return
		}
		done <- nil
	}()

	time.Sleep(10 * time.Millisecond)

	conn0.WriteTo(testData, conn0.PeerAddr())

	// Not delivered yet
	select {
	case <-done:
		t.Fatal("frame delivered without Process() - auto-process may be on")
	case <-time.After(50 * time.Millisecond):
	}

	if n := pipe.Process(); n != 1 {
		t.Errorf("Process() = %d, want 1", n)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("read error: %v", err)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timeout after Process()")
	}
}

func TestPipe_Bidirectional(t *testing.T) {
	pipe := NewPipe()
	defer pipe.Close()

	conn0, conn1 := mustConns(t, pipe)

	var wg sync.WaitGroup
	errs := make(chan error, 2)

	read := func(c net.PacketConn, want string) {
		defer wg.Done()
		buf := make([]byte, 100)
		c.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
		n, _, err := c.ReadFrom(buf)
		if err != nil {
			errs <- err
			return
		}
		if string(buf[:n]) != want {
			errs <- &testError{msg: "got " + string(buf[:n]) + ", want " + want}
		}
	}

	wg.Add(2)
	go read(conn1, "left to receiver")
	go read(conn0, "receiver to left")

	time.Sleep(10 * time.Millisecond)
	conn0.WriteTo([]byte("left to receiver"), conn0.PeerAddr())
	conn1.WriteTo([]byte("receiver to left"), conn1.PeerAddr())

	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestPipe_PacketConnInvalidEndpoint(t *testing.T) {
	pipe := NewPipe()
	defer pipe.Close()

	for _, id := range []int{-1, 2, 10} {
		if _, err := pipe.PacketConn(id); !errors.Is(err, ErrInvalidEndpoint) {
			t.Errorf("PacketConn(%d) error = %v, want ErrInvalidEndpoint", id, err)
		}
	}
}

func TestPipePacketConn_Interface(t *testing.T) {
	pipe := NewPipe()
	defer pipe.Close()

	conn0, _ := mustConns(t, pipe)
	var _ net.PacketConn = conn0
}

func TestPipePacketConn_Addr(t *testing.T) {
	pipe := NewPipe()
	defer pipe.Close()

	conn0, conn1 := mustConns(t, pipe)

	tests := []struct {
		name string
		got  net.Addr
		want string
	}{
		{"conn0 local", conn0.LocalAddr(), "pipe:0"},
		{"conn0 peer", conn0.PeerAddr(), "pipe:1"},
		{"conn1 local", conn1.LocalAddr(), "pipe:1"},
		{"conn1 peer", conn1.PeerAddr(), "pipe:0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got.String() != tt.want {
				t.Errorf("String() = %q, want %q", tt.got.String(), tt.want)
			}
			if tt.got.Network() != "pipe" {
				t.Errorf("Network() = %q, want %q", tt.got.Network(), "pipe")
			}
		})
	}
}

func TestPipePacketConn_ReadFromReturnsPeer(t *testing.T) {
	pipe := NewPipe()
	defer pipe.Close()

	conn0, conn1 := mustConns(t, pipe)
	conn0.WriteTo([]byte{0x01}, conn0.PeerAddr())

	buf := make([]byte, 10)
	conn1.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	_, addr, err := conn1.ReadFrom(buf)
	if err != nil {
		t.Fatalf("ReadFrom failed: %v", err)
	}
	if addr.String() != "pipe:0" {
		t.Errorf("ReadFrom addr = %v, want pipe:0", addr)
	}
}

func TestNetworkCondition_DropRate(t *testing.T) {
	pipe := NewPipe()
	defer pipe.Close()

	pipe.SetCondition(NetworkCondition{DropRate: 1.0})

	conn0, conn1 := mustConns(t, pipe)

	data := []byte("dropped")
	n, err := conn0.WriteTo(data, conn0.PeerAddr())
	if err != nil {
		t.Fatalf("WriteTo failed: %v", err)
	}
	if n != len(data) {
		t.Errorf("WriteTo = %d, want %d", n, len(data))
	}

	buf := make([]byte, 100)
	conn1.SetReadDeadline(time.Now().Add(50 * time.Millisecond))
	if _, _, err := conn1.ReadFrom(buf); err == nil {
		t.Error("expected timeout, frame should have been dropped")
	}

	stats := pipe.Stats()
	if stats.Written != 1 || stats.Dropped != 1 {
		t.Errorf("Stats = %+v, want Written=1 Dropped=1", stats)
	}
}

func TestNetworkCondition_Delay(t *testing.T) {
	pipe := NewPipe()
	defer pipe.Close()

	delay := 30 * time.Millisecond
	pipe.SetCondition(NetworkCondition{
		DelayMin: delay,
		DelayMax: delay + time.Millisecond,
	})

	conn0, conn1 := mustConns(t, pipe)

	done := make(chan time.Duration, 1)
	start := time.Now()
	go func() {
		buf := make([]byte, 100)
		conn1.SetReadDeadline(time.Now().Add(500 * time.Millisecond))
		if _, _, err := conn1.ReadFrom(buf); err != nil {
			done <- -1
			return
		}
		done <- time.Since(start)
	}()

	conn0.WriteTo([]byte("late"), conn0.PeerAddr())

	elapsed := <-done
	if elapsed < 0 {
		t.Fatal("read failed")
	}
	if elapsed < delay {
		t.Errorf("elapsed %v, want at least %v", elapsed, delay)
	}
}

func TestNetworkCondition_Duplicate(t *testing.T) {
	pipe := NewPipeWithConfig(PipeConfig{AutoProcess: false})
	defer pipe.Close()

	pipe.SetCondition(NetworkCondition{DuplicateRate: 1.0})

	conn0, conn1 := mustConns(t, pipe)

	data := []byte("twice")
	if _, err := conn0.WriteTo(data, conn0.PeerAddr()); err != nil {
		t.Fatalf("WriteTo failed: %v", err)
	}

	got := make(chan string, 2)
	go func() {
		buf := make([]byte, 100)
		for i := 0; i < 2; i++ {
			n, _, err := conn1.ReadFrom(buf)
			if err != nil {
				return
			}
			got <- string(buf[:n])
		}
	}()

	// One packet per Tick per direction
	for i := 0; i < 2; i++ {
		time.Sleep(10 * time.Millisecond)
		pipe.Tick()
		select {
		case s := <-got:
			if s != string(data) {
				t.Errorf("copy %d = %q, want %q", i, s, data)
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("copy %d not delivered", i)
		}
	}

	if d := pipe.Stats().Duplicated; d != 1 {
		t.Errorf("Duplicated = %d, want 1", d)
	}
}

func TestNetworkCondition_Reorder(t *testing.T) {
	pipe := NewPipeWithConfig(PipeConfig{AutoProcess: false})
	defer pipe.Close()

	conn0, conn1 := mustConns(t, pipe)

	got := make(chan string, 2)
	go func() {
		buf := make([]byte, 100)
		for i := 0; i < 2; i++ {
			n, _, err := conn1.ReadFrom(buf)
			if err != nil {
				return
			}
			got <- string(buf[:n])
		}
	}()

	// First frame is held back, second goes straight through
	pipe.SetCondition(NetworkCondition{ReorderRate: 1.0, ReorderDelay: 20 * time.Millisecond})
	conn0.WriteTo([]byte("first"), conn0.PeerAddr())
	pipe.SetCondition(NetworkCondition{})
	conn0.WriteTo([]byte("second"), conn0.PeerAddr())

	time.Sleep(10 * time.Millisecond)
	pipe.Process()
	select {
	case s := <-got:
		if s != "second" {
			t.Fatalf("first delivery = %q, want %q", s, "second")
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("second frame not delivered")
	}

	time.Sleep(50 * time.Millisecond)
	pipe.Process()
	select {
	case s := <-got:
		if s != "first" {
			t.Fatalf("second delivery = %q, want %q", s, "first")
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("held-back frame not delivered")
	}

	if r := pipe.Stats().Reordered; r != 1 {
		t.Errorf("Reordered = %d, want 1", r)
	}
}

func TestNetworkCondition_ReorderAfterEndpointClosed(t *testing.T) {
	pipe := NewPipeWithConfig(PipeConfig{AutoProcess: false})
	defer pipe.Close()

	conn0, _ := mustConns(t, pipe)

	pipe.SetCondition(NetworkCondition{ReorderRate: 1.0, ReorderDelay: 5 * time.Millisecond})
	if _, err := conn0.WriteTo([]byte("held"), conn0.PeerAddr()); err != nil {
		t.Fatalf("WriteTo() error = %v", err)
	}
	conn0.Close()

	time.Sleep(30 * time.Millisecond)

	stats := pipe.Stats()
	if stats.Reordered != 1 {
		t.Errorf("Reordered = %d, want 1", stats.Reordered)
	}
	if stats.Dropped != 1 {
		t.Errorf("Dropped = %d, want 1 for the undeliverable held frame", stats.Dropped)
	}
}

func TestPipeAddr_String(t *testing.T) {
	addr := PipeAddr{ID: 0}
	if addr.String() != "pipe:0" {
		t.Errorf("String() = %q, want %q", addr.String(), "pipe:0")
	}
}

func TestPipe_Tick(t *testing.T) {
	pipe := NewPipeWithConfig(PipeConfig{AutoProcess: false})
	defer pipe.Close()

	conn0, conn1 := mustConns(t, pipe)

	var received atomic.Int32
	go func() {
		buf := make([]byte, 100)
		for {
			if _, _, err := conn1.ReadFrom(buf); err != nil {
				return
			}
			received.Add(1)
		}
	}()

	for i := 0; i < 3; i++ {
		conn0.WriteTo([]byte{byte(i)}, conn0.PeerAddr())
	}

	for want := int32(1); want <= 3; want++ {
		// Let the reader block before delivering
		time.Sleep(10 * time.Millisecond)
		if n := pipe.Tick(); n != 1 {
			t.Errorf("Tick() = %d, want 1", n)
		}
		deadline := time.Now().Add(100 * time.Millisecond)
		for received.Load() < want && time.Now().Before(deadline) {
			time.Sleep(time.Millisecond)
		}
		if got := received.Load(); got != want {
			t.Fatalf("received %d after tick, want %d", got, want)
		}
	}

	if n := pipe.Tick(); n != 0 {
		t.Errorf("Tick() on empty pipe = %d, want 0", n)
	}
}

func TestNetworkCondition_StatisticalDropRate(t *testing.T) {
	pipe := NewPipeWithConfig(PipeConfig{AutoProcess: false, Seed: 7})
	defer pipe.Close()

	pipe.SetCondition(NetworkCondition{DropRate: 0.5})

	conn0, _ := mustConns(t, pipe)

	const total = 1000
	for i := 0; i < total; i++ {
		conn0.WriteTo([]byte{byte(i)}, conn0.PeerAddr())
	}

	stats := pipe.Stats()
	if stats.Written != total {
		t.Errorf("Written = %d, want %d", stats.Written, total)
	}
	rate := float64(stats.Dropped) / total
	if rate < 0.4 || rate > 0.6 {
		t.Errorf("drop rate %.2f outside [0.4, 0.6]", rate)
	}
}

func TestPipeConfig_SeedIsDeterministic(t *testing.T) {
	run := func() PipeStats {
		pipe := NewPipeWithConfig(PipeConfig{AutoProcess: false, Seed: 42})
		defer pipe.Close()
		pipe.SetCondition(NetworkCondition{DropRate: 0.3, DuplicateRate: 0.2})
		conn0, _ := mustConns(t, pipe)
		for i := 0; i < 200; i++ {
			conn0.WriteTo([]byte{byte(i)}, conn0.PeerAddr())
		}
		return pipe.Stats()
	}

	a, b := run(), run()
	if a != b {
		t.Errorf("same seed gave different stats: %+v vs %+v", a, b)
	}
}

func TestPipe_Close(t *testing.T) {
	pipe := NewPipe()

	if err := pipe.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}

	// Second close is a no-op
	if err := pipe.Close(); err != nil {
		t.Errorf("Second Close failed: %v", err)
	}
}

func TestPipe_CloseUnblocksReader(t *testing.T) {
	pipe := NewPipe()
	_, conn1 := mustConns(t, pipe)

	done := make(chan error, 1)
	go func() {
		buf := make([]byte, 10)
		_, _, err := conn1.ReadFrom(buf)
		done <- err
	}()

	time.Sleep(10 * time.Millisecond)
	pipe.Close()

	select {
	case err := <-done:
		if err == nil {
			t.Error("ReadFrom after Close should fail")
		}
	case <-time.After(200 * time.Millisecond):
		t.Fatal("reader not unblocked by Close")
	}
}

func TestPipe_SetAutoProcess(t *testing.T) {
	pipe := NewPipe()
	defer pipe.Close()

	if !pipe.AutoProcess() {
		t.Error("AutoProcess should be true by default")
	}

	pipe.SetAutoProcess(false)
	if pipe.AutoProcess() {
		t.Error("AutoProcess should be false after disabling")
	}

	pipe.SetAutoProcess(true)
	if !pipe.AutoProcess() {
		t.Error("AutoProcess should be true after re-enabling")
	}
}

func TestPipeConfig_Defaults(t *testing.T) {
	config := DefaultPipeConfig()

	if !config.AutoProcess {
		t.Error("AutoProcess should be true by default")
	}
	if config.ProcessInterval != 1*time.Millisecond {
		t.Errorf("ProcessInterval = %v, want 1ms", config.ProcessInterval)
	}
	if config.Seed != 0 {
		t.Errorf("Seed = %d, want 0", config.Seed)
	}
}

func TestPipe_Condition(t *testing.T) {
	pipe := NewPipe()
	defer pipe.Close()

	cond := NetworkCondition{DropRate: 0.1, DuplicateRate: 0.2, ReorderRate: 0.3}
	pipe.SetCondition(cond)
	if got := pipe.Condition(); got != cond {
		t.Errorf("Condition() = %+v, want %+v", got, cond)
	}
}
