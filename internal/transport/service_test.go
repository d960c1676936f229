package transport

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"ubxmon/internal/ubx"
)

// fakePort is an in-memory serial port. Reads consume the queued
// stream and block when drained until Close.
type fakePort struct {
	mu     sync.Mutex
	buf    []byte
	closed chan struct{}
	once   sync.Once

	wmu    sync.Mutex
	writes []byte
}

func newFakePort(stream []byte) *fakePort {
	return &fakePort{buf: stream, closed: make(chan struct{})}
}

func (f *fakePort) Read(p []byte) (int, error) {
	for {
		f.mu.Lock()
		if len(f.buf) > 0 {
			n := copy(p, f.buf)
			f.buf = f.buf[n:]
			f.mu.Unlock()
			return n, nil
		}
		f.mu.Unlock()
		select {
		case <-f.closed:
			return 0, io.EOF
		case <-time.After(time.Millisecond):
		}
	}
}

func (f *fakePort) Write(p []byte) (int, error) {
	f.wmu.Lock()
	f.writes = append(f.writes, p...)
	f.wmu.Unlock()
	return len(p), nil
}

func (f *fakePort) Close() error {
	f.once.Do(func() { close(f.closed) })
	return nil
}

func (f *fakePort) written() []byte {
	f.wmu.Lock()
	defer f.wmu.Unlock()
	out := make([]byte, len(f.writes))
	copy(out, f.writes)
	return out
}

type countingProcessor struct {
	mu     sync.Mutex
	frames [][]byte
	seen   chan struct{}
}

func (c *countingProcessor) Process(raw []byte) (ubx.Message, error) {
	msg, err := ubx.Parse(raw, false)
	if err != nil {
		return ubx.Message{}, err
	}
	c.mu.Lock()
	c.frames = append(c.frames, raw)
	c.mu.Unlock()
	select {
	case c.seen <- struct{}{}:
	default:
	}
	return msg, nil
}

func (c *countingProcessor) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.frames)
}

func withFakePort(t *testing.T, port *fakePort) {
	t.Helper()
	orig := openSerial
	openSerial = func(device string, baud int) (io.ReadWriteCloser, error) {
		return port, nil
	}
	t.Cleanup(func() { openSerial = orig })
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("condition not met in time")
}

func TestService_DeliversFramesInOrder(t *testing.T) {
	f1 := ubx.Encode(0x01, 0x04, make([]byte, 18))
	f2 := ubx.Encode(0x01, 0x02, make([]byte, 28))
	stream := append([]byte("$GNGGA,noise*00\r\n"), f1...)
	stream = append(stream, f2...)

	port := newFakePort(stream)
	withFakePort(t, port)

	proc := &countingProcessor{seen: make(chan struct{}, 16)}
	svc := New(Config{Device: "/dev/ttyFAKE", Baud: 9600, ReopenDelay: time.Hour}, proc)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := svc.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer svc.Close()

	waitFor(t, func() bool { return proc.count() == 2 })

	proc.mu.Lock()
	defer proc.mu.Unlock()
	if proc.frames[0][3] != 0x04 || proc.frames[1][3] != 0x02 {
		t.Fatalf("frames out of order: ids 0x%02X 0x%02X", proc.frames[0][3], proc.frames[1][3])
	}
}

func TestService_PollSweepOnStart(t *testing.T) {
	port := newFakePort(nil)
	withFakePort(t, port)

	proc := &countingProcessor{seen: make(chan struct{}, 1)}
	svc := New(Config{Device: "/dev/ttyFAKE", PollOnStart: true, ReopenDelay: time.Hour}, proc)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := svc.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer svc.Close()

	var want []byte
	for _, f := range ubx.PollFrames() {
		want = append(want, f...)
	}
	waitFor(t, func() bool { return len(port.written()) == len(want) })

	got := port.written()
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sweep byte %d = 0x%02X, want 0x%02X", i, got[i], want[i])
		}
	}
}

func TestService_CountsDroppedFrames(t *testing.T) {
	bad := ubx.Encode(0x01, 0x04, make([]byte, 18))
	bad[len(bad)-1] ^= 0xFF
	good := ubx.Encode(0x01, 0x04, make([]byte, 18))

	port := newFakePort(append(append([]byte{}, bad...), good...))
	withFakePort(t, port)

	proc := &countingProcessor{seen: make(chan struct{}, 16)}
	svc := New(Config{Device: "/dev/ttyFAKE", ReopenDelay: time.Hour}, proc)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := svc.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer svc.Close()

	waitFor(t, func() bool {
		snap := svc.Snapshot()
		return snap.Frames == 1 && snap.Dropped == 1
	})
}

func TestService_CloseStopsLoop(t *testing.T) {
	port := newFakePort(nil)
	withFakePort(t, port)

	proc := &countingProcessor{seen: make(chan struct{}, 1)}
	svc := New(Config{Device: "/dev/ttyFAKE", ReopenDelay: time.Hour}, proc)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := svc.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	done := make(chan struct{})
	go func() {
		svc.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Close did not return")
	}
}
