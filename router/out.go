package router

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"
)

var (
	ErrNotOpen = errors.New("hardware output not open")
	ErrClosed  = errors.New("bridge closed")
)

// Sender accepts one short message or one complete SysEx block per call.
type Sender interface {
	Send(msg []byte) error
}

// HardwareOut is the single physical output. Open, Close and Send are
// serialized, so bytes of two callers never interleave on the wire.
type HardwareOut struct {
	mu  sync.Mutex
	out OutPort
}

func NewHardwareOut() *HardwareOut {
	return &HardwareOut{}
}

// Open switches to out, closing the port in use before.
func (h *HardwareOut) Open(out OutPort) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.out != nil && h.out.IsOpen() {
		if err := h.out.Close(); err != nil {
			log.Printf("[out] close %s: %v", h.out, err)
		}
	}
	h.out = nil
	if !out.IsOpen() {
		if err := out.Open(); err != nil {
			return fmt.Errorf("open %s: %w", out, err)
		}
	}
	h.out = out
	log.Println("[out] opened hardware output", out.String())
	return nil
}

// OpenPort opens the first hardware output matching nameFragment.
func (h *HardwareOut) OpenPort(nameFragment string) error {
	out, err := FindOutPort(nameFragment)
	if err != nil {
		return err
	}
	return h.Open(out)
}

func (h *HardwareOut) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.out == nil {
		return nil
	}
	out := h.out
	h.out = nil
	if !out.IsOpen() {
		return nil
	}
	return out.Close()
}

func (h *HardwareOut) IsOpen() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.out != nil && h.out.IsOpen()
}

// Name is the port name, or "" when nothing is open.
func (h *HardwareOut) Name() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.out == nil {
		return ""
	}
	return h.out.String()
}

// Send writes msg to the open port.
func (h *HardwareOut) Send(msg []byte) error {
	if len(msg) == 0 {
		return nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.out == nil || !h.out.IsOpen() {
		return ErrNotOpen
	}
	if err := h.out.Send(msg); err != nil {
		return fmt.Errorf("send %d bytes to %s: %w", len(msg), h.out, err)
	}
	return nil
}

// Dispatch sends msgs one after another, waiting delay between them so slow
// receivers can digest large SysEx dumps.
func Dispatch(ctx context.Context, s Sender, msgs [][]byte, delay time.Duration) error {
	for i, msg := range msgs {
		if i > 0 && delay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.Send(msg); err != nil {
			return fmt.Errorf("message %d of %d: %w", i+1, len(msgs), err)
		}
	}
	return nil
}
