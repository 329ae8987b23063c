package reframe

import (
	"bytes"
	"testing"

	"gitlab.com/gomidi/midi/v2"
)

func msgs(kind Kind, data ...[]byte) []Message {
	out := make([]Message, len(data))
	for i, d := range data {
		out[i] = Message{Kind: kind, Data: d}
	}
	return out
}

func equalMessages(t *testing.T, got, want []Message) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d messages %v, want %d %v", len(got), got, len(want), want)
	}
	for i := range got {
		if got[i].Kind != want[i].Kind || !bytes.Equal(got[i].Data, want[i].Data) {
			t.Errorf("message %d = %v % X, want %v % X", i, got[i].Kind, got[i].Data, want[i].Kind, want[i].Data)
		}
	}
}

func TestSingleChunk(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		want []Message
	}{
		{
			name: "running status note on",
			in:   []byte{0x90, 0x40, 0x7F, 0x41, 0x7F},
			want: msgs(ChannelVoice, []byte{0x90, 0x40, 0x7F}, []byte{0x90, 0x41, 0x7F}),
		},
		{
			name: "program change running status",
			in:   []byte{0xC3, 0x01, 0x02},
			want: msgs(ChannelVoice, []byte{0xC3, 0x01}, []byte{0xC3, 0x02}),
		},
		{
			name: "channel pressure",
			in:   []byte{0xD0, 0x40},
			want: msgs(ChannelVoice, []byte{0xD0, 0x40}),
		},
		{
			name: "stray data bytes skipped",
			in:   []byte{0x10, 0x20, 0xB0, 0x07, 0x64},
			want: msgs(ChannelVoice, []byte{0xB0, 0x07, 0x64}),
		},
		{
			name: "realtime only",
			in:   []byte{0xF8, 0xFA, 0xFC},
			want: msgs(RealTime, []byte{0xF8}, []byte{0xFA}, []byte{0xFC}),
		},
		{
			name: "realtime inside running status message",
			in:   []byte{0x90, 0x40, 0xF8, 0x7F},
			want: []Message{
				{RealTime, []byte{0xF8}},
				{ChannelVoice, []byte{0x90, 0x40, 0x7F}},
			},
		},
		{
			name: "song position",
			in:   []byte{0xF2, 0x10, 0x20},
			want: msgs(SystemCommon, []byte{0xF2, 0x10, 0x20}),
		},
		{
			name: "tune request",
			in:   []byte{0xF6},
			want: msgs(SystemCommon, []byte{0xF6}),
		},
		{
			name: "system common clears running status",
			in:   []byte{0x90, 0x40, 0x7F, 0xF3, 0x05, 0x41, 0x7F},
			want: []Message{
				{ChannelVoice, []byte{0x90, 0x40, 0x7F}},
				{SystemCommon, []byte{0xF3, 0x05}},
			},
		},
		{
			name: "short system common forwarded",
			in:   []byte{0xF2, 0x10},
			want: msgs(SystemCommon, []byte{0xF2, 0x10}),
		},
		{
			name: "short channel message dropped",
			in:   []byte{0x90, 0x40},
			want: nil,
		},
		{
			name: "dangling running status byte dropped",
			in:   []byte{0x90, 0x40, 0x7F, 0x41},
			want: msgs(ChannelVoice, []byte{0x90, 0x40, 0x7F}),
		},
		{
			name: "complete sysex",
			in:   []byte{0xF0, 0x43, 0x10, 0xF7},
			want: msgs(SysEx, []byte{0xF0, 0x43, 0x10, 0xF7}),
		},
		{
			name: "realtime pulled out of sysex",
			in:   []byte{0xF0, 0x43, 0xF8, 0x10, 0xF7},
			want: []Message{
				{RealTime, []byte{0xF8}},
				{SysEx, []byte{0xF0, 0x43, 0x10, 0xF7}},
			},
		},
		{
			name: "sysex clears running status",
			in:   []byte{0x90, 0x40, 0x7F, 0xF0, 0x01, 0xF7, 0x41, 0x7F},
			want: []Message{
				{ChannelVoice, []byte{0x90, 0x40, 0x7F}},
				{SysEx, []byte{0xF0, 0x01, 0xF7}},
			},
		},
		{
			name: "status byte aborts sysex",
			in:   []byte{0xF0, 0x43, 0x90, 0x40, 0x7F},
			want: msgs(ChannelVoice, []byte{0x90, 0x40, 0x7F}),
		},
		{
			name: "stray end of exclusive",
			in:   []byte{0xF7, 0x40},
			want: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New()
			equalMessages(t, s.ProcessChunk(tt.in), tt.want)
		})
	}
}

func TestSysExAcrossChunks(t *testing.T) {
	s := New()

	got := s.ProcessChunk([]byte{0xF0, 0x43, 0xFA})
	equalMessages(t, got, msgs(RealTime, []byte{0xFA}))
	if !s.InSysEx() {
		t.Fatalf("expected accumulator to be open")
	}

	params := make([]byte, 155)
	for i := range params {
		params[i] = byte(i % 100)
	}
	second := append([]byte{0x00, 0x01, 0x1B}, params...)
	second = append(second, 0x11, 0xF7)

	got = s.ProcessChunk(second)
	want := append([]byte{0xF0, 0x43}, second...)
	equalMessages(t, got, msgs(SysEx, want))
	if s.InSysEx() {
		t.Errorf("accumulator still open")
	}
	if s.RunningStatus() != 0 {
		t.Errorf("running status = %02X after sysex", s.RunningStatus())
	}
}

func TestRunningStatusAcrossChunks(t *testing.T) {
	s := New()
	equalMessages(t, s.ProcessChunk([]byte{0x91, 0x3C, 0x64}), msgs(ChannelVoice, []byte{0x91, 0x3C, 0x64}))
	equalMessages(t, s.ProcessChunk([]byte{0x3C, 0x00}), msgs(ChannelVoice, []byte{0x91, 0x3C, 0x00}))
	if s.RunningStatus() != 0x91 {
		t.Errorf("running status = %02X", s.RunningStatus())
	}
}

func TestSplitChannelMessageDroppedByDefault(t *testing.T) {
	s := New()
	equalMessages(t, s.ProcessChunk([]byte{0x90, 0x40}), nil)
	// The status byte still sets running status, so the lone 0x7F pairs with
	// nothing and is dropped too.
	equalMessages(t, s.ProcessChunk([]byte{0x7F}), nil)
	equalMessages(t, s.ProcessChunk([]byte{0x41, 0x7F}), msgs(ChannelVoice, []byte{0x90, 0x41, 0x7F}))
}

func TestCarryPartial(t *testing.T) {
	s := New(WithCarryPartial())
	equalMessages(t, s.ProcessChunk([]byte{0x90, 0x40}), nil)
	equalMessages(t, s.ProcessChunk([]byte{0x7F, 0x41}), msgs(ChannelVoice, []byte{0x90, 0x40, 0x7F}))
	equalMessages(t, s.ProcessChunk([]byte{0x7F}), msgs(ChannelVoice, []byte{0x90, 0x41, 0x7F}))

	equalMessages(t, s.ProcessChunk([]byte{0xF2, 0x01}), nil)
	equalMessages(t, s.ProcessChunk([]byte{0x02}), msgs(SystemCommon, []byte{0xF2, 0x01, 0x02}))
}

func TestMaxSysEx(t *testing.T) {
	s := New(WithMaxSysEx(8))
	in := []byte{0xF0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 0xF7, 0xF0, 1, 0xF7}
	equalMessages(t, s.ProcessChunk(in), msgs(SysEx, []byte{0xF0, 1, 0xF7}))

	s = New(WithMaxSysEx(8))
	exact := []byte{0xF0, 1, 2, 3, 4, 5, 6, 0xF7}
	equalMessages(t, s.ProcessChunk(exact), msgs(SysEx, exact))
}

func TestReset(t *testing.T) {
	s := New()
	s.ProcessChunk([]byte{0x90, 0x40, 0x7F, 0xF0, 0x01})
	s.Reset()
	if s.InSysEx() || s.RunningStatus() != 0 {
		t.Fatalf("state survived Reset")
	}
	equalMessages(t, s.ProcessChunk([]byte{0x02, 0xF7}), nil)
}

func TestMessagesDoNotAliasChunk(t *testing.T) {
	s := New()
	chunk := []byte{0x90, 0x40, 0x7F}
	got := s.ProcessChunk(chunk)
	chunk[1] = 0x00
	if got[0].Data[1] != 0x40 {
		t.Errorf("message aliases the input chunk")
	}
}

func TestMIDI(t *testing.T) {
	s := New()
	got := s.ProcessChunk([]byte{0x92, 0x3C, 0x50})
	var ch, key, vel uint8
	if !got[0].MIDI().GetNoteOn(&ch, &key, &vel) {
		t.Fatalf("not a note on: %v", got[0].MIDI())
	}
	if ch != 2 || key != 0x3C || vel != 0x50 {
		t.Errorf("note on = ch %d key %d vel %d", ch, key, vel)
	}
	if !bytes.Equal(got[0].MIDI().Bytes(), midi.NoteOn(2, 0x3C, 0x50).Bytes()) {
		t.Errorf("bytes differ from midi.NoteOn")
	}
}

// Every emitted message is non-empty and every SysEx is framed, whatever the
// chunking.
func TestArbitraryChunking(t *testing.T) {
	stream := []byte{
		0xF8, 0x90, 0x40, 0x7F, 0x41, 0x7F, 0xFA,
		0xF0, 0x43, 0x00, 0xF8, 0x00, 0x01, 0x1B, 0x10, 0x20, 0xF7,
		0xB0, 0x07, 0x64, 0xF2, 0x00, 0x10, 0xC1, 0x05, 0xF6,
		0x33, 0xF0, 0x01, 0x02,
	}
	for size := 1; size <= len(stream); size++ {
		s := New()
		var all []Message
		for i := 0; i < len(stream); i += size {
			end := i + size
			if end > len(stream) {
				end = len(stream)
			}
			all = append(all, s.ProcessChunk(stream[i:end])...)
		}
		sysexCount := 0
		for _, m := range all {
			if len(m.Data) == 0 {
				t.Fatalf("size %d: empty message", size)
			}
			if m.Kind == SysEx {
				sysexCount++
				if m.Data[0] != 0xF0 || m.Data[len(m.Data)-1] != 0xF7 {
					t.Fatalf("size %d: unframed sysex % X", size, m.Data)
				}
				if bytes.IndexByte(m.Data, 0xF8) >= 0 {
					t.Fatalf("size %d: realtime byte left in sysex", size)
				}
			}
		}
		if sysexCount != 1 {
			t.Errorf("size %d: got %d sysex messages, want 1", size, sysexCount)
		}
	}
}
