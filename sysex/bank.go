package sysex

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Patch is one sendable SysEx message with a display name.
type Patch struct {
	Name   string `json:"name"`
	Data   []byte `json:"-"`
	Format Format `json:"-"`
}

// Bank is everything loaded from one file.
type Bank struct {
	Origin  string  `json:"origin"`
	Patches []Patch `json:"patches"`
}

// LoadBank splits data into SysEx packets and turns each into patches. A DX7
// 32-voice bank is exploded into 32 single-voice dumps on channel 0; other
// messages are kept as they are. origin is the file name used for fallback
// names.
func LoadBank(data []byte, origin string) Bank {
	bank := Bank{Origin: origin}
	stem := strings.TrimSuffix(origin, filepath.Ext(origin))

	voiceIndex, otherIndex := 0, 0
	for _, msg := range SplitPackets(data) {
		switch format := Classify(msg); format {
		case Bank32:
			if len(msg) < headerSize+BankSize+2 {
				otherIndex++
				bank.Patches = append(bank.Patches, Patch{
					Name:   fmt.Sprintf("%s (Yamaha message %d)", origin, otherIndex),
					Data:   msg,
					Format: VendorOther,
				})
				continue
			}
			bank.Patches = append(bank.Patches, explodeBank(msg)...)
		case SingleVoice:
			name := NameFromSingleVoice(msg)
			if name == defaultName {
				voiceIndex++
				name = fmt.Sprintf("%s (Voice %d)", stem, voiceIndex)
			}
			bank.Patches = append(bank.Patches, Patch{Name: name, Data: msg, Format: SingleVoice})
		case VendorOther:
			otherIndex++
			bank.Patches = append(bank.Patches, Patch{
				Name:   fmt.Sprintf("%s (Yamaha message %d)", origin, otherIndex),
				Data:   msg,
				Format: format,
			})
		default:
			otherIndex++
			bank.Patches = append(bank.Patches, Patch{
				Name:   fmt.Sprintf("%s (message %d)", origin, otherIndex),
				Data:   msg,
				Format: format,
			})
		}
	}
	return bank
}

func explodeBank(msg []byte) []Patch {
	patches := make([]Patch, 0, BankVoices)
	payload := msg[headerSize : headerSize+BankSize]
	for i := 0; i < BankVoices; i++ {
		chunk := payload[i*ChunkSize : (i+1)*ChunkSize]
		// chunk is always ChunkSize long here.
		params, _ := UnpackVoice(chunk)
		patches = append(patches, Patch{
			Name:   NameFromChunk(chunk),
			Data:   PackVoice(params, 0),
			Format: SingleVoice,
		})
	}
	return patches
}

// PackBank builds a 32-voice bank dump from exactly 32 parameter blocks.
func PackBank(voices []Params, channel uint8) ([]byte, error) {
	if len(voices) != BankVoices {
		return nil, fmt.Errorf("%w: got %d", ErrBankSize, len(voices))
	}
	msg := make([]byte, 0, headerSize+BankSize+2)
	msg = append(msg, Start, yamahaID, channel&0x0F, formatBank32, BankSize>>7, BankSize&0x7F)
	for _, v := range voices {
		chunk := PackChunk(v)
		msg = append(msg, chunk[:]...)
	}
	msg = append(msg, Checksum(msg[headerSize:]), End)
	return msg, nil
}
