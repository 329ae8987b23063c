// Package sysex decodes and builds Yamaha DX7 System Exclusive dumps.
package sysex

import (
	"errors"
	"fmt"
	"strings"
)

const (
	Start = 0xF0
	End   = 0xF7

	yamahaID = 0x43

	formatSingleVoice = 0x00
	formatBank32      = 0x09

	// Header is F0 43 0n ff MS LS.
	headerSize = 6

	ChunkSize  = 128  // packed voice inside a bank dump
	ParamsSize = 155  // unpacked single-voice parameter block
	BankVoices = 32   // voices per bank dump
	BankSize   = 4096 // BankVoices * ChunkSize

	nameSize    = 10
	defaultName = "Voice"
)

var (
	ErrShortChunk      = errors.New("packed voice chunk shorter than 128 bytes")
	ErrNotSingleVoice  = errors.New("not a DX7 single-voice dump")
	ErrBankSize        = errors.New("bank needs exactly 32 voices")
	ErrChecksumInvalid = errors.New("checksum mismatch")
	ErrTruncated       = errors.New("dump shorter than its header count")
)

// Format is the result of Classify.
type Format int

const (
	Unknown Format = iota
	Bank32
	SingleVoice
	VendorOther
)

func (f Format) String() string {
	switch f {
	case Bank32:
		return "DX7 32-voice bank"
	case SingleVoice:
		return "DX7 single voice"
	case VendorOther:
		return "Yamaha (other)"
	default:
		return "unknown"
	}
}

// SplitPackets returns every complete F0..F7 block in data, in order.
// A trailing block with no terminating F7 is dropped.
func SplitPackets(data []byte) [][]byte {
	var packets [][]byte
	i := 0
	for i < len(data) {
		for i < len(data) && data[i] != Start {
			i++
		}
		if i >= len(data) {
			break
		}
		begin := i
		i++
		for i < len(data) && data[i] != End {
			i++
		}
		if i >= len(data) {
			break
		}
		p := make([]byte, i+1-begin)
		copy(p, data[begin:i+1])
		packets = append(packets, p)
		i++
	}
	return packets
}

func isYamaha(msg []byte) bool {
	return len(msg) >= 2 && msg[0] == Start && msg[1] == yamahaID
}

// byteCount reads the 14-bit MS/LS count from a Yamaha header.
func byteCount(msg []byte) int {
	if len(msg) < 7 {
		return 0
	}
	return int(msg[4])<<7 | int(msg[5])
}

// Classify reports which DX7 dump format msg carries.
func Classify(msg []byte) Format {
	if !isYamaha(msg) {
		return Unknown
	}
	if len(msg) >= 7 {
		switch {
		case msg[3] == formatBank32 && byteCount(msg) == BankSize:
			return Bank32
		case msg[3] == formatSingleVoice && byteCount(msg) == ParamsSize:
			return SingleVoice
		}
	}
	return VendorOther
}

// DumpRequest builds F0 43 2n ff F7, asking a DX7 listening on channel to
// transmit its edit buffer (SingleVoice) or its 32 internal voices (Bank32).
func DumpRequest(channel uint8, f Format) ([]byte, error) {
	var format byte
	switch f {
	case SingleVoice:
		format = formatSingleVoice
	case Bank32:
		format = formatBank32
	default:
		return nil, fmt.Errorf("no dump request for %s", f)
	}
	return []byte{Start, yamahaID, 0x20 | channel&0x0F, format, End}, nil
}

// Checksum returns the Yamaha 7-bit checksum: the value that brings the sum of
// data plus checksum to a multiple of 128.
func Checksum(data []byte) byte {
	var sum int
	for _, b := range data {
		sum += int(b)
	}
	return byte((128 - sum%128) % 128)
}

// VerifyChecksum checks the checksum byte of a single-voice or bank dump.
func VerifyChecksum(msg []byte) error {
	n := byteCount(msg)
	if n == 0 || len(msg) < headerSize+n+2 {
		return ErrTruncated
	}
	payload := msg[headerSize : headerSize+n]
	if got, want := msg[headerSize+n], Checksum(payload); got != want {
		return ErrChecksumInvalid
	}
	return nil
}

func cleanName(raw []byte) string {
	b := make([]byte, len(raw))
	for i, c := range raw {
		if c < 0x20 || c > 0x7E {
			c = ' '
		}
		b[i] = c
	}
	name := strings.TrimRight(string(b), " ")
	if name == "" {
		return defaultName
	}
	return name
}

// NameFromChunk returns the voice name stored in a packed 128-byte chunk.
func NameFromChunk(chunk []byte) string {
	if len(chunk) < ChunkSize {
		return defaultName
	}
	return cleanName(chunk[118 : 118+nameSize])
}

// NameFromSingleVoice returns the voice name of a single-voice dump; the name
// is the last ten bytes of the 155-byte parameter block.
func NameFromSingleVoice(msg []byte) string {
	if len(msg) < headerSize+ParamsSize+2 {
		return defaultName
	}
	off := headerSize + ParamsSize - nameSize
	return cleanName(msg[off : off+nameSize])
}
