// Package transport feeds the dispatcher from a serial GNSS receiver.
package transport

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jacobsa/go-serial/serial"
	log "github.com/sirupsen/logrus"

	"ubxmon/internal/observability"
	"ubxmon/internal/ubx"
)

// Processor consumes raw frames strictly in arrival order. The service
// guarantees no concurrent or overlapping calls.
type Processor interface {
	Process(raw []byte) (ubx.Message, error)
}

type Config struct {
	// Device may be empty to auto-detect.
	Device string
	Baud   int
	// PollOnStart emits the configuration poll sweep after each open.
	PollOnStart bool
	// ReopenDelay is the wait before reopening after a read failure.
	ReopenDelay time.Duration
}

// Snapshot describes the ingest state for status consumers.
type Snapshot struct {
	Device    string `json:"device,omitempty"`
	Baud      int    `json:"baud,omitempty"`
	Frames    uint64 `json:"frames"`
	Dropped   uint64 `json:"dropped"`
	LastError string `json:"last_error,omitempty"`
}

// Service owns the serial port and the read loop. Failures reopen the
// port; they never bring down the process.
type Service struct {
	cfg  Config
	proc Processor

	cancel context.CancelFunc
	wg     sync.WaitGroup

	last atomic.Value // Snapshot

	mu     sync.Mutex
	closer io.Closer
}

// openSerial is swapped out by tests.
var openSerial = func(device string, baud int) (io.ReadWriteCloser, error) {
	return serial.Open(serial.OpenOptions{
		PortName:        device,
		BaudRate:        uint(baud),
		DataBits:        8,
		StopBits:        1,
		ParityMode:      serial.PARITY_NONE,
		MinimumReadSize: 1,
	})
}

func New(cfg Config, proc Processor) *Service {
	if cfg.Baud == 0 {
		cfg.Baud = 9600
	}
	if cfg.ReopenDelay <= 0 {
		cfg.ReopenDelay = 2 * time.Second
	}
	s := &Service{cfg: cfg, proc: proc}
	s.last.Store(Snapshot{Device: cfg.Device, Baud: cfg.Baud})
	return s
}

func (s *Service) Start(ctx context.Context) error {
	if s == nil || s.proc == nil {
		return fmt.Errorf("transport service not initialized")
	}
	if ctx == nil {
		return fmt.Errorf("ctx is nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return nil
	}

	device := s.cfg.Device
	if device == "" {
		device = autoDetectDevice()
		if device == "" {
			return fmt.Errorf("serial auto-detect failed: no /dev/ttyACM* or /dev/ttyUSB* found")
		}
	}

	childCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(childCtx, device)
	}()
	return nil
}

func (s *Service) run(ctx context.Context, device string) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		port, err := openSerial(device, s.cfg.Baud)
		if err != nil {
			s.setError(fmt.Sprintf("serial open failed device=%s baud=%d: %v", device, s.cfg.Baud, err))
			if !sleepCtx(ctx, s.cfg.ReopenDelay) {
				return
			}
			continue
		}
		log.Printf("serial open device=%s baud=%d", device, s.cfg.Baud)

		s.mu.Lock()
		s.closer = port
		s.mu.Unlock()

		if s.cfg.PollOnStart {
			if err := ubx.PollConfig(port); err != nil {
				s.setError(fmt.Sprintf("config poll sweep: %v", err))
			} else {
				observability.PollsWritten.Add(float64(len(ubx.PollFrames())))
			}
		}

		s.readLoop(ctx, port)
		_ = port.Close()

		if ctx.Err() != nil {
			return
		}
		if !sleepCtx(ctx, s.cfg.ReopenDelay) {
			return
		}
	}
}

func (s *Service) readLoop(ctx context.Context, port io.Reader) {
	br := bufio.NewReader(port)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		frame, err := ubx.ReadFrame(br)
		if err != nil {
			s.setError(fmt.Sprintf("serial read stopped: %v", err))
			return
		}

		if _, err := s.proc.Process(frame); err != nil {
			var fe *ubx.FramingError
			if errors.As(err, &fe) {
				s.bumpDropped(err.Error())
				continue
			}
			s.setError(fmt.Sprintf("process: %v", err))
			continue
		}
		s.bumpFrames()
	}
}

func (s *Service) Close() {
	if s == nil {
		return
	}
	s.mu.Lock()
	cancel := s.cancel
	closer := s.closer
	s.cancel = nil
	s.closer = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if closer != nil {
		_ = closer.Close()
	}
	s.wg.Wait()
}

func (s *Service) Snapshot() Snapshot {
	if s == nil {
		return Snapshot{}
	}
	v := s.last.Load()
	if v == nil {
		return Snapshot{}
	}
	return v.(Snapshot)
}

func (s *Service) bumpFrames() {
	cur := s.Snapshot()
	cur.Frames++
	s.last.Store(cur)
}

func (s *Service) bumpDropped(msg string) {
	cur := s.Snapshot()
	cur.Dropped++
	cur.LastError = msg
	s.last.Store(cur)
}

func (s *Service) setError(msg string) {
	cur := s.Snapshot()
	cur.LastError = msg
	s.last.Store(cur)
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

func autoDetectDevice() string {
	candidates := []string{}
	for i := 0; i < 10; i++ {
		candidates = append(candidates, fmt.Sprintf("/dev/ttyACM%d", i))
	}
	for i := 0; i < 10; i++ {
		candidates = append(candidates, fmt.Sprintf("/dev/ttyUSB%d", i))
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
