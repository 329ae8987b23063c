package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"gitlab.com/gomidi/midi/v2"
)

// noteTiming is the gate and gap used for single notes; rests last
// gate+gap.
type noteTiming struct {
	gate time.Duration
	gap  time.Duration
}

var defaultTiming = noteTiming{gate: 300 * time.Millisecond, gap: 60 * time.Millisecond}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func playTestNotes(ctx context.Context, dx *DX7) error {
	notes := []uint8{midi.C(4), midi.E(4), midi.G(4)}
	ch := dx.Channel()
	for _, n := range notes {
		if err := dx.Send(midi.NoteOn(ch, n, 100)); err != nil {
			return fmt.Errorf("note on failed for %d: %w", n, err)
		}
		err := sleep(ctx, 200*time.Millisecond)
		if offErr := dx.Send(midi.NoteOff(ch, n)); offErr != nil {
			return fmt.Errorf("note off failed for %d: %w", n, offErr)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func playMinor7Chord(ctx context.Context, dx *DX7, hold time.Duration) error {
	root := midi.C(4)
	chord := []uint8{root, root + 3, root + 7, root + 10}
	ch := dx.Channel()

	for _, n := range chord {
		if err := dx.Send(midi.NoteOn(ch, n, 100)); err != nil {
			return fmt.Errorf("note on failed for %d: %w", n, err)
		}
	}

	err := sleep(ctx, hold)

	// Release the chord even when cancelled so no note hangs.
	for _, n := range chord {
		if offErr := dx.Send(midi.NoteOff(ch, n)); offErr != nil {
			return fmt.Errorf("note off failed for %d: %w", n, offErr)
		}
	}

	return err
}

func playNotesFromText(ctx context.Context, dx *DX7, notesText string, timing noteTiming) error {
	tokens := strings.FieldsFunc(notesText, func(r rune) bool {
		return unicode.IsSpace(r) || r == ',' || r == ';' || r == '|'
	})
	if len(tokens) == 0 {
		return fmt.Errorf("no notes provided")
	}

	// Parse everything first so a typo does not leave a half-played phrase.
	notes := make([]uint8, len(tokens))
	rests := make([]bool, len(tokens))
	for i, tok := range tokens {
		n, isRest, err := parseNoteToken(tok)
		if err != nil {
			return fmt.Errorf("invalid note %q: %w", tok, err)
		}
		notes[i], rests[i] = n, isRest
	}

	ch := dx.Channel()
	for i, n := range notes {
		if rests[i] {
			if err := sleep(ctx, timing.gate+timing.gap); err != nil {
				return err
			}
			continue
		}

		if err := dx.Send(midi.NoteOn(ch, n, 100)); err != nil {
			return fmt.Errorf("note on failed for %d: %w", n, err)
		}
		err := sleep(ctx, timing.gate)
		if offErr := dx.Send(midi.NoteOff(ch, n)); offErr != nil {
			return fmt.Errorf("note off failed for %d: %w", n, offErr)
		}
		if err != nil {
			return err
		}
		if err := sleep(ctx, timing.gap); err != nil {
			return err
		}
	}

	return nil
}

func parseNoteToken(tok string) (uint8, bool, error) {
	t := strings.TrimSpace(tok)
	if t == "" {
		return 0, false, fmt.Errorf("empty token")
	}

	if strings.EqualFold(t, "r") || strings.EqualFold(t, "rest") {
		return 0, true, nil
	}

	if len(t) < 2 {
		return 0, false, fmt.Errorf("too short")
	}

	base := strings.ToUpper(string(t[0]))
	accidental := 0
	rest := t[1:]

	if len(rest) > 0 {
		switch rest[0] {
		case '#':
			accidental = 1
			rest = rest[1:]
		case 'b', 'B':
			accidental = -1
			rest = rest[1:]
		}
	}

	if rest == "" {
		return 0, false, fmt.Errorf("missing octave")
	}

	octave, err := strconv.Atoi(rest)
	if err != nil {
		return 0, false, fmt.Errorf("invalid octave: %w", err)
	}

	var semitone int
	switch base {
	case "C":
		semitone = 0
	case "D":
		semitone = 2
	case "E":
		semitone = 4
	case "F":
		semitone = 5
	case "G":
		semitone = 7
	case "A":
		semitone = 9
	case "B":
		semitone = 11
	default:
		return 0, false, fmt.Errorf("invalid note letter %q", base)
	}

	semitone += accidental
	n := 12*(octave+1) + semitone

	if n < 0 || n > 127 {
		return 0, false, fmt.Errorf("MIDI note out of range: %d", n)
	}

	return uint8(n), false, nil
}
