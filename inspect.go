package main

import (
	"fmt"
	"io"

	"dx7bridge/sysex"
)

// inspect prints one line per SysEx message of data and, with dump set, the
// message bytes.
func inspect(w io.Writer, data []byte, origin string, dump bool) {
	packets := sysex.SplitPackets(data)
	fmt.Fprintf(w, "%s: %d bytes, %d SysEx messages\n", origin, len(data), len(packets))

	for i, msg := range packets {
		format := sysex.Classify(msg)
		line := fmt.Sprintf("%3d  %-18s %5d bytes", i, format, len(msg))

		switch format {
		case sysex.SingleVoice:
			line += fmt.Sprintf("  %-10s  channel %d  %s", sysex.NameFromSingleVoice(msg), msg[2]&0x0F+1, checksumState(msg))
		case sysex.Bank32:
			line += fmt.Sprintf("  channel %d  %s", msg[2]&0x0F+1, checksumState(msg))
		}
		fmt.Fprintln(w, line)

		if format == sysex.Bank32 {
			for _, p := range sysex.LoadBank(msg, origin).Patches {
				fmt.Fprintf(w, "       %s\n", p.Name)
			}
		}
		if dump {
			dumpBytes(w, msg, fmt.Sprintf("message %d", i))
		}
	}
}

func checksumState(msg []byte) string {
	if err := sysex.VerifyChecksum(msg); err != nil {
		return err.Error()
	}
	return "checksum ok"
}
