package router

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"gitlab.com/gomidi/midi/v2/drivers"
)

type fakeOut struct {
	name string

	mu      sync.Mutex
	open    bool
	sent    [][]byte
	failN   int // fail the first failN sends
	openErr error
}

func (f *fakeOut) Open() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.openErr != nil {
		return f.openErr
	}
	f.open = true
	return nil
}

func (f *fakeOut) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.open = false
	return nil
}

func (f *fakeOut) IsOpen() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.open
}

func (f *fakeOut) String() string { return f.name }

func (f *fakeOut) Send(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failN > 0 {
		f.failN--
		return errors.New("driver timeout")
	}
	f.sent = append(f.sent, append([]byte(nil), data...))
	return nil
}

func (f *fakeOut) messages() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.sent...)
}

type fakeIn struct {
	name    string
	open    bool
	closed  bool
	stopped bool
	onMsg   func([]byte, int32)
	config  drivers.ListenConfig
}

func (f *fakeIn) Open() error    { f.open = true; return nil }
func (f *fakeIn) Close() error   { f.open = false; f.closed = true; return nil }
func (f *fakeIn) IsOpen() bool   { return f.open }
func (f *fakeIn) String() string { return f.name }

func (f *fakeIn) Listen(onMsg func(msg []byte, milliseconds int32), config drivers.ListenConfig) (func(), error) {
	f.onMsg = onMsg
	f.config = config
	return func() { f.stopped = true }, nil
}

func TestHardwareOutSend(t *testing.T) {
	h := NewHardwareOut()
	if err := h.Send([]byte{0x90, 0x40, 0x7F}); !errors.Is(err, ErrNotOpen) {
		t.Fatalf("send before open: err = %v", err)
	}

	out := &fakeOut{name: "DX7"}
	if err := h.Open(out); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if !h.IsOpen() || h.Name() != "DX7" {
		t.Fatalf("IsOpen = %v, Name = %q", h.IsOpen(), h.Name())
	}
	if err := h.Send([]byte{0xF8}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if err := h.Send(nil); err != nil {
		t.Fatalf("empty Send: %v", err)
	}
	if got := out.messages(); len(got) != 1 || got[0][0] != 0xF8 {
		t.Errorf("sent = % X", got)
	}

	out.failN = 1
	if err := h.Send([]byte{0xF8}); err == nil {
		t.Errorf("expected driver error")
	}

	if err := h.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if out.IsOpen() || h.IsOpen() {
		t.Errorf("port still open after Close")
	}
	if err := h.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestHardwareOutReopen(t *testing.T) {
	h := NewHardwareOut()
	first := &fakeOut{name: "one"}
	second := &fakeOut{name: "two"}
	if err := h.Open(first); err != nil {
		t.Fatal(err)
	}
	if err := h.Open(second); err != nil {
		t.Fatal(err)
	}
	if first.IsOpen() {
		t.Errorf("previous port left open")
	}
	if h.Name() != "two" {
		t.Errorf("Name = %q", h.Name())
	}

	broken := &fakeOut{name: "broken", openErr: errors.New("busy")}
	if err := h.Open(broken); err == nil {
		t.Fatalf("expected open error")
	}
	if h.IsOpen() {
		t.Errorf("output reports open after failed Open")
	}
}

func TestHardwareOutSerializesSenders(t *testing.T) {
	h := NewHardwareOut()
	out := &fakeOut{name: "DX7"}
	if err := h.Open(out); err != nil {
		t.Fatal(err)
	}
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_ = h.Send([]byte{0x90 | byte(i), byte(j), 0x40})
			}
		}(i)
	}
	wg.Wait()
	if got := len(out.messages()); got != 400 {
		t.Errorf("sent %d messages, want 400", got)
	}
}

func TestDispatch(t *testing.T) {
	out := &fakeOut{name: "DX7", open: true}
	msgs := [][]byte{{0xF0, 0x01, 0xF7}, {0xF0, 0x02, 0xF7}, {0xF0, 0x03, 0xF7}}
	if err := Dispatch(context.Background(), out, msgs, time.Millisecond); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if got := out.messages(); len(got) != 3 || got[2][1] != 0x03 {
		t.Errorf("sent = % X", got)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := Dispatch(ctx, out, msgs, time.Hour); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled dispatch: err = %v", err)
	}

	failing := &fakeOut{name: "DX7", open: true, failN: 1}
	if err := Dispatch(context.Background(), failing, msgs, 0); err == nil {
		t.Errorf("expected send error")
	}
}

func TestBridgeForwardsReframedMessages(t *testing.T) {
	out := &fakeOut{name: "DX7", open: true}
	b := NewBridge(out, Options{})

	b.Feed([]byte{0x90, 0x40, 0x7F, 0x41, 0x7F})
	b.Feed([]byte{0xF0, 0x43, 0xFA})
	b.Feed([]byte{0x00, 0xF7})
	if err := b.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	want := [][]byte{
		{0x90, 0x40, 0x7F},
		{0x90, 0x41, 0x7F},
		{0xFA},
		{0xF0, 0x43, 0x00, 0xF7},
	}
	got := out.messages()
	if len(got) != len(want) {
		t.Fatalf("got %d messages % X, want %d", len(got), got, len(want))
	}
	for i := range want {
		if !bytes.Equal(got[i], want[i]) {
			t.Errorf("message %d = % X, want % X", i, got[i], want[i])
		}
	}

	st := b.Stats()
	if st.Chunks != 3 || st.ChannelVoice != 2 || st.RealTime != 1 || st.SysEx != 1 {
		t.Errorf("stats = %+v", st)
	}
	if b.Feed([]byte{0xF8}) {
		t.Errorf("Feed accepted a chunk after Close")
	}
}

func TestBridgeSurvivesSendFailures(t *testing.T) {
	out := &fakeOut{name: "DX7", open: true, failN: 2}
	b := NewBridge(out, Options{})
	b.Feed([]byte{0xF8, 0xF8, 0x90, 0x40, 0x7F})
	b.Close()

	got := out.messages()
	if len(got) != 1 || !bytes.Equal(got[0], []byte{0x90, 0x40, 0x7F}) {
		t.Errorf("sent = % X", got)
	}
	if st := b.Stats(); st.SendErrors != 2 {
		t.Errorf("SendErrors = %d", st.SendErrors)
	}
}

func TestBridgeStartListensAndCloses(t *testing.T) {
	out := &fakeOut{name: "DX7", open: true}
	in := &fakeIn{name: "MIDI Bridge"}
	b := NewBridge(out, Options{MaxSysEx: 1024})

	if err := b.Start(in); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !in.open || in.onMsg == nil {
		t.Fatalf("input not opened or not listened")
	}
	if !in.config.SysEx || !in.config.TimeCode || in.config.SysExBufferSize != 1024 {
		t.Errorf("listen config = %+v", in.config)
	}
	if err := b.Start(in); err == nil {
		t.Errorf("second Start should fail")
	}

	in.onMsg([]byte{0xC0, 0x05}, 0)
	if err := b.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !in.stopped || !in.closed {
		t.Errorf("input not stopped (%v) or closed (%v)", in.stopped, in.closed)
	}
	if got := out.messages(); len(got) != 1 || !bytes.Equal(got[0], []byte{0xC0, 0x05}) {
		t.Errorf("sent = % X", got)
	}
	if err := b.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if err := b.Start(in); !errors.Is(err, ErrClosed) {
		t.Errorf("Start after Close: err = %v", err)
	}
}

type blockingOut struct {
	release chan struct{}
}

func (b *blockingOut) Send([]byte) error {
	<-b.release
	return nil
}

func TestBridgeDropsWhenQueueFull(t *testing.T) {
	out := &blockingOut{release: make(chan struct{})}
	b := NewBridge(out, Options{QueueSize: 1})

	dropped := false
	for i := 0; i < 100; i++ {
		if !b.Feed([]byte{0xF8}) {
			dropped = true
			break
		}
	}
	if !dropped {
		t.Errorf("Feed never reported a full queue")
	}
	close(out.release)
	b.Close()
	if st := b.Stats(); st.DroppedChunks == 0 {
		t.Errorf("DroppedChunks = 0")
	}
}
