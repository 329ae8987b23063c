package main

import (
	"context"
	"testing"
	"time"

	"gitlab.com/gomidi/midi/v2"
)

var fastTiming = noteTiming{gate: time.Millisecond, gap: time.Millisecond}

func TestParseNoteToken(t *testing.T) {
	tests := []struct {
		tok    string
		note   uint8
		isRest bool
		ok     bool
	}{
		{"C4", 60, false, true},
		{"c4", 60, false, true},
		{"A4", 69, false, true},
		{"C#4", 61, false, true},
		{"Db4", 61, false, true},
		{"bb3", 58, false, true},
		{"C-1", 0, false, true},
		{"G9", 127, false, true},
		{"r", 0, true, true},
		{"REST", 0, true, true},
		{"", 0, false, false},
		{"C", 0, false, false},
		{"H4", 0, false, false},
		{"C#", 0, false, false},
		{"Cx", 0, false, false},
		{"G#9", 0, false, false},
	}
	for _, tt := range tests {
		n, isRest, err := parseNoteToken(tt.tok)
		if (err == nil) != tt.ok {
			t.Errorf("%q: err = %v, want ok %v", tt.tok, err, tt.ok)
			continue
		}
		if !tt.ok {
			continue
		}
		if n != tt.note || isRest != tt.isRest {
			t.Errorf("%q = %d rest %v, want %d rest %v", tt.tok, n, isRest, tt.note, tt.isRest)
		}
	}
}

func TestPlayNotesFromText(t *testing.T) {
	rec := &recorder{}
	dx := NewDX7(rec, 1)
	if err := playNotesFromText(context.Background(), dx, "C4, r | E4;G4", fastTiming); err != nil {
		t.Fatalf("playNotesFromText: %v", err)
	}

	sent := rec.sent()
	if len(sent) != 6 {
		t.Fatalf("sent %d messages, want 6", len(sent))
	}
	var ch, key, vel uint8
	if !midi.Message(sent[0]).GetNoteOn(&ch, &key, &vel) || ch != 1 || key != 60 || vel != 100 {
		t.Errorf("first message = % X", sent[0])
	}
	if !midi.Message(sent[5]).GetNoteOff(&ch, &key, &vel) || key != 67 {
		t.Errorf("last message = % X", sent[5])
	}
}

func TestPlayNotesFromTextRejectsTypos(t *testing.T) {
	rec := &recorder{}
	if err := playNotesFromText(context.Background(), NewDX7(rec, 0), "C4 X9 E4", fastTiming); err == nil {
		t.Fatalf("expected error")
	}
	if n := len(rec.sent()); n != 0 {
		t.Errorf("sent %d messages before reporting the typo", n)
	}
	if err := playNotesFromText(context.Background(), NewDX7(rec, 0), " ,; ", fastTiming); err == nil {
		t.Errorf("expected error for empty input")
	}
}

func TestPlayMinor7ChordReleasesOnCancel(t *testing.T) {
	rec := &recorder{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := playMinor7Chord(ctx, NewDX7(rec, 0), time.Hour); err == nil {
		t.Errorf("expected context error")
	}
	if n := len(rec.sent()); n != 8 {
		t.Errorf("sent %d messages, want 4 note on and 4 note off", n)
	}
}
