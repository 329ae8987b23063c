package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"

	"dx7bridge/router"
	"dx7bridge/sysex"
)

func dumpBytes(w io.Writer, data []byte, label string) {
	fmt.Fprintf(w, "Dumping %d bytes of %s:\n", len(data), label)

	for off := 0; off < len(data); off += 16 {
		end := min(off+16, len(data))
		fmt.Fprintf(w, "%04X  % X\n", off, data[off:end])
	}
}

// DX7 addresses the synth through the shared hardware output on one channel.
type DX7 struct {
	channel uint8
	out     router.Sender
}

func NewDX7(out router.Sender, channel uint8) *DX7 {
	return &DX7{channel: channel & 0x0F, out: out}
}

func (d *DX7) Channel() uint8 { return d.channel }

// Send transmits a MIDI message to the DX7 output port.
func (d *DX7) Send(msg midi.Message) error {
	return d.out.Send(msg.Bytes())
}

// SendSysEx transmits a raw SysEx payload.
func (d *DX7) SendSysEx(data []byte) error {
	if len(data) < 2 || data[0] != sysex.Start || data[len(data)-1] != sysex.End {
		return errors.New("message is not a SysEx frame")
	}
	return d.Send(midi.Message(data))
}

// patchData returns the bytes to send for p. Single voices are moved to the
// synth channel; everything else goes out as loaded.
func (d *DX7) patchData(p sysex.Patch) []byte {
	if p.Format != sysex.SingleVoice || len(p.Data) < 3 || p.Data[2]&0x0F == d.channel {
		return p.Data
	}
	params, err := sysex.ParamsFromSingleVoice(p.Data)
	if err != nil {
		return p.Data
	}
	return sysex.PackVoice(params, d.channel)
}

// SendPatch transmits a library patch.
func (d *DX7) SendPatch(p sysex.Patch) error {
	if err := d.SendSysEx(d.patchData(p)); err != nil {
		return fmt.Errorf("send patch %q: %w", p.Name, err)
	}
	return nil
}

// SendPatches transmits patches in order, delay apart.
func (d *DX7) SendPatches(ctx context.Context, patches []sysex.Patch, delay time.Duration) error {
	msgs := make([][]byte, 0, len(patches))
	for _, p := range patches {
		data := d.patchData(p)
		if len(data) < 2 || data[0] != sysex.Start || data[len(data)-1] != sysex.End {
			return fmt.Errorf("patch %q is not a SysEx frame", p.Name)
		}
		msgs = append(msgs, data)
	}
	return router.Dispatch(ctx, d.out, msgs, delay)
}

// SendVoice builds a single-voice dump for v on the synth channel and sends
// it. The DX7 loads it into its edit buffer.
func (d *DX7) SendVoice(v *sysex.Voice) error {
	msg := sysex.PackVoice(v.Params(), d.channel)
	if err := d.SendSysEx(msg); err != nil {
		return fmt.Errorf("send voice %q: %w", v.Name, err)
	}
	return nil
}

// RequestVoiceDump asks the DX7 for its edit buffer and waits on in for the
// single-voice dump, until ctx is done.
func (d *DX7) RequestVoiceDump(ctx context.Context, in router.InPort) (*sysex.Voice, error) {
	if !in.IsOpen() {
		if err := in.Open(); err != nil {
			return nil, fmt.Errorf("open %s: %w", in, err)
		}
	}

	msgCh := make(chan []byte, 1)
	stop, err := in.Listen(func(msg []byte, _ int32) {
		if sysex.Classify(msg) != sysex.SingleVoice {
			return
		}
		c := make([]byte, len(msg))
		copy(c, msg)
		select {
		case msgCh <- c:
		default:
		}
	}, drivers.ListenConfig{SysEx: true, SysExBufferSize: 2048})
	if err != nil {
		return nil, fmt.Errorf("failed to listen for voice dump: %w", err)
	}
	defer stop()

	req, err := sysex.DumpRequest(d.channel, sysex.SingleVoice)
	if err != nil {
		return nil, err
	}
	log.Printf("Requesting voice dump on channel %d", d.channel+1)
	if err := d.SendSysEx(req); err != nil {
		return nil, fmt.Errorf("failed to request voice dump: %w", err)
	}

	select {
	case msg := <-msgCh:
		log.Println("Received voice dump")
		return parseVoiceDump(msg)
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for voice dump: %w", ctx.Err())
	}
}

func parseVoiceDump(msg []byte) (*sysex.Voice, error) {
	if err := sysex.VerifyChecksum(msg); err != nil {
		return nil, fmt.Errorf("voice dump: %w", err)
	}
	p, err := sysex.ParamsFromSingleVoice(msg)
	if err != nil {
		return nil, err
	}
	return sysex.VoiceFromParams(p), nil
}
