package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"time"

	"dx7bridge/router"
	"dx7bridge/sysex"
)

const dumpTimeout = 5 * time.Second

// getVoice reads the edit buffer of the DX7 and writes it as JSON to w.
func getVoice(ctx context.Context, dx *DX7, in router.InPort, w io.Writer) error {
	ctx, cancel := context.WithTimeout(ctx, dumpTimeout)
	defer cancel()

	v, err := dx.RequestVoiceDump(ctx, in)
	if err != nil {
		return fmt.Errorf("failed to read voice: %w", err)
	}
	log.Println("Voice name", v.Name)

	asJSON, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal voice to JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(asJSON))
	return err
}

// setVoice reads a voice as JSON from r and sends it to the edit buffer.
func setVoice(dx *DX7, r io.Reader) (*sysex.Voice, error) {
	asJSON, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read voice JSON: %w", err)
	}

	v := &sysex.Voice{}
	if err := json.Unmarshal(asJSON, v); err != nil {
		return nil, fmt.Errorf("failed to unmarshal voice JSON: %w", err)
	}

	if err := dx.SendVoice(v); err != nil {
		return nil, err
	}
	return v, nil
}
