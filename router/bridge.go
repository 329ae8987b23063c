package router

import (
	"fmt"
	"log"
	"sync"

	"gitlab.com/gomidi/midi/v2/drivers"

	"dx7bridge/reframe"
)

// Options configure a Bridge.
type Options struct {
	// QueueSize is the number of chunks buffered between the driver callback
	// and the reframer. A full queue drops the incoming chunk.
	QueueSize int
	// CarryPartial keeps short messages split across chunks, see
	// reframe.WithCarryPartial.
	CarryPartial bool
	// MaxSysEx bounds a single SysEx block.
	MaxSysEx int
}

const defaultQueueSize = 256

// Bridge is one open virtual-input session. Chunks from the driver are
// reframed on a reader goroutine and written to the output by a sender
// goroutine; send failures are logged and counted but never stop the session.
type Bridge struct {
	out      Sender
	session  *reframe.Session
	stats    *Stats
	maxSysEx int

	chunks chan []byte
	msgs   chan reframe.Message
	wg     sync.WaitGroup

	mu         sync.Mutex
	closed     bool
	in         InPort
	stopListen func()
}

// NewBridge starts the worker goroutines. Feed chunks directly or attach a
// port with Start; Close stops and joins the workers.
func NewBridge(out Sender, opts Options) *Bridge {
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	var ropts []reframe.Option
	if opts.CarryPartial {
		ropts = append(ropts, reframe.WithCarryPartial())
	}
	if opts.MaxSysEx == 0 {
		opts.MaxSysEx = reframe.DefaultMaxSysEx
	}
	ropts = append(ropts, reframe.WithMaxSysEx(opts.MaxSysEx))

	b := &Bridge{
		out:      out,
		session:  reframe.New(ropts...),
		stats:    NewStats(),
		maxSysEx: opts.MaxSysEx,
		chunks:   make(chan []byte, opts.QueueSize),
		msgs:     make(chan reframe.Message, opts.QueueSize),
	}
	b.wg.Add(2)
	go b.readLoop()
	go b.sendLoop()
	return b
}

// Start attaches in and forwards everything it delivers. The bridge owns in
// from here on and closes it in Close.
func (b *Bridge) Start(in InPort) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}
	if b.in != nil {
		return fmt.Errorf("bridge already listening on %s", b.in)
	}
	if !in.IsOpen() {
		if err := in.Open(); err != nil {
			return fmt.Errorf("open %s: %w", in, err)
		}
	}

	bufSize := uint32(reframe.DefaultMaxSysEx)
	if b.maxSysEx > 0 {
		bufSize = uint32(b.maxSysEx)
	}
	stop, err := in.Listen(func(msg []byte, _ int32) {
		b.Feed(msg)
	}, drivers.ListenConfig{
		TimeCode:        true,
		ActiveSense:     true,
		SysEx:           true,
		SysExBufferSize: bufSize,
		OnErr: func(err error) {
			log.Printf("[bridge] input %s: %v", in, err)
		},
	})
	if err != nil {
		return fmt.Errorf("listen on %s: %w", in, err)
	}
	b.in = in
	b.stopListen = stop
	log.Printf("[bridge] listening on %s", in)
	return nil
}

// Feed queues one raw chunk. It never blocks; it reports false when the
// chunk was dropped because the queue is full or the bridge is closed.
func (b *Bridge) Feed(chunk []byte) bool {
	if len(chunk) == 0 {
		return true
	}
	c := make([]byte, len(chunk))
	copy(c, chunk)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return false
	}
	select {
	case b.chunks <- c:
		b.stats.AddChunk(len(c))
		return true
	default:
		b.stats.IncDropped()
		return false
	}
}

func (b *Bridge) readLoop() {
	defer b.wg.Done()
	defer close(b.msgs)

	for chunk := range b.chunks {
		b.session.Process(chunk, func(m reframe.Message) {
			b.msgs <- m
		})
	}
}

func (b *Bridge) sendLoop() {
	defer b.wg.Done()

	for m := range b.msgs {
		b.stats.AddMessage(m.Kind)
		if err := b.out.Send(m.Data); err != nil {
			n := b.stats.IncSendError()
			log.Printf("[bridge] send %s message failed (%d so far): %v", m.Kind, n, err)
		}
	}
}

// Stats returns the counters of this session.
func (b *Bridge) Stats() StatsSnapshot {
	return b.stats.Snapshot()
}

// Close detaches the input, lets the workers drain what is queued and waits
// for them to exit. It is safe to call more than once.
func (b *Bridge) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	in, stop := b.in, b.stopListen
	b.in, b.stopListen = nil, nil
	close(b.chunks)
	b.mu.Unlock()

	if stop != nil {
		stop()
	}
	var err error
	if in != nil && in.IsOpen() {
		err = in.Close()
	}
	b.wg.Wait()
	log.Printf("[bridge] closed: %s", b.stats.Snapshot())
	return err
}
