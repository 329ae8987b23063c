// Package reframe rebuilds complete MIDI messages from a raw byte stream
// delivered in arbitrary chunks.
package reframe

import (
	"gitlab.com/gomidi/midi/v2"
)

// Kind tags a Message.
type Kind int

const (
	ChannelVoice Kind = iota + 1
	SystemCommon
	RealTime
	SysEx
)

func (k Kind) String() string {
	switch k {
	case ChannelVoice:
		return "channel"
	case SystemCommon:
		return "common"
	case RealTime:
		return "realtime"
	case SysEx:
		return "sysex"
	default:
		return "invalid"
	}
}

// Message is one outbound MIDI message. Data is owned by the message and is
// never a view into the chunk it was read from.
type Message struct {
	Kind Kind
	Data []byte
}

// MIDI returns the message as a gomidi message.
func (m Message) MIDI() midi.Message {
	return midi.Message(m.Data)
}

const (
	sysExStart = 0xF0
	sysExEnd   = 0xF7

	// DefaultMaxSysEx matches the buffer the virtual MIDI driver allocates.
	DefaultMaxSysEx = 65535
)

// Option configures a Session.
type Option func(*Session)

// WithCarryPartial keeps an incomplete channel or system common message
// pending across chunks instead of dropping it at the end of the chunk.
func WithCarryPartial() Option {
	return func(s *Session) {
		s.carryPartial = true
	}
}

// WithMaxSysEx bounds the SysEx accumulator. A block growing past n bytes is
// discarded. n <= 0 disables the bound.
func WithMaxSysEx(n int) Option {
	return func(s *Session) {
		s.maxSysEx = n
	}
}

// Session holds the state carried between chunks of one input stream:
// running status, the SysEx accumulator and, with WithCarryPartial, a pending
// short message. A Session is not safe for concurrent use.
type Session struct {
	running byte
	sysex   []byte
	// skipping is set after an oversized SysEx block was discarded, until its
	// F7 or the next status byte.
	skipping bool

	pending []byte
	need    int

	carryPartial bool
	maxSysEx     int
}

// New returns a session with no running status.
func New(opts ...Option) *Session {
	s := &Session{maxSysEx: DefaultMaxSysEx}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RunningStatus returns the active running status byte, or 0.
func (s *Session) RunningStatus() byte {
	return s.running
}

// InSysEx reports whether a SysEx block is being accumulated.
func (s *Session) InSysEx() bool {
	return s.sysex != nil
}

// Reset drops all carried state.
func (s *Session) Reset() {
	s.running = 0
	s.sysex = nil
	s.skipping = false
	s.pending = nil
	s.need = 0
}

// ProcessChunk is Process collecting the output into a slice.
func (s *Session) ProcessChunk(chunk []byte) []Message {
	var out []Message
	s.Process(chunk, func(m Message) {
		out = append(out, m)
	})
	return out
}

// Process consumes one chunk and calls emit for every message it completes,
// in stream order. Real-time bytes are emitted as soon as they are read,
// including in the middle of a SysEx block or a running status message.
func (s *Session) Process(chunk []byte, emit func(Message)) {
	for _, b := range chunk {
		s.step(b, emit)
	}
	if s.pending != nil && !s.carryPartial {
		// System common messages go out short; channel messages are dropped.
		if s.pending[0] >= 0xF0 {
			emit(Message{Kind: SystemCommon, Data: s.pending})
		}
		s.pending = nil
		s.need = 0
	}
}

func (s *Session) step(b byte, emit func(Message)) {
	switch {
	case b >= 0xF8:
		emit(Message{Kind: RealTime, Data: []byte{b}})

	case s.sysex != nil || s.skipping:
		s.stepSysEx(b, emit)

	case b == sysExStart:
		s.beginSysEx()

	case b >= 0xF0:
		s.pending = nil
		s.running = 0
		n, ok := commonDataLen(b)
		if !ok {
			// F4, F5 and a stray F7 carry nothing.
			return
		}
		if n == 0 {
			emit(Message{Kind: SystemCommon, Data: []byte{b}})
			return
		}
		s.pending = append(make([]byte, 0, n+1), b)
		s.need = n

	case b >= 0x80:
		s.running = b
		s.need = channelDataLen(b)
		s.pending = append(make([]byte, 0, s.need+1), b)

	case s.pending != nil:
		s.pending = append(s.pending, b)
		s.flushIfComplete(emit)

	case s.running != 0:
		s.need = channelDataLen(s.running)
		s.pending = append(make([]byte, 0, s.need+1), s.running, b)
		s.flushIfComplete(emit)

	default:
		// Data byte without status: skip until the stream resyncs.
	}
}

func (s *Session) flushIfComplete(emit func(Message)) {
	if len(s.pending) < s.need+1 {
		return
	}
	kind := ChannelVoice
	if s.pending[0] >= 0xF0 {
		kind = SystemCommon
	}
	emit(Message{Kind: kind, Data: s.pending})
	s.pending = nil
	s.need = 0
}

func (s *Session) beginSysEx() {
	s.pending = nil
	s.running = 0
	s.skipping = false
	s.sysex = append(make([]byte, 0, 256), sysExStart)
}

func (s *Session) stepSysEx(b byte, emit func(Message)) {
	switch {
	case b == sysExEnd:
		if !s.skipping {
			msg := append(s.sysex, sysExEnd)
			emit(Message{Kind: SysEx, Data: msg})
		}
		s.sysex = nil
		s.skipping = false
		s.running = 0

	case b == sysExStart:
		// A new block starts before the old one ended; the old one is lost.
		s.beginSysEx()

	case b >= 0x80:
		// Any other status byte aborts the block and is handled normally.
		s.sysex = nil
		s.skipping = false
		s.step(b, emit)

	case s.skipping:
		// Oversized block, wait for its end.

	default:
		if s.maxSysEx > 0 && len(s.sysex)+2 > s.maxSysEx {
			s.sysex = nil
			s.skipping = true
			return
		}
		s.sysex = append(s.sysex, b)
	}
}

// channelDataLen is the number of data bytes after a channel status byte.
func channelDataLen(status byte) int {
	switch status & 0xF0 {
	case 0xC0, 0xD0:
		return 1
	default:
		return 2
	}
}

func commonDataLen(status byte) (int, bool) {
	switch status {
	case 0xF1, 0xF3:
		return 1, true
	case 0xF2:
		return 2, true
	case 0xF6:
		return 0, true
	default:
		return 0, false
	}
}
