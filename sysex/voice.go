package sysex

// Params is the canonical 155-byte DX7 voice parameter block, the form
// carried by a single-voice dump.
type Params [ParamsSize]byte

// field places one canonical parameter inside the packed 128-byte chunk.
type field struct {
	offset int  // byte in the packed chunk
	shift  uint // lowest bit of the field inside that byte
	width  uint
}

func (f field) mask() byte {
	return byte(1<<f.width - 1)
}

const (
	operatorCount  = 6
	operatorFields = 21
	packedOpSize   = 17
)

// operatorLayout lists the 21 canonical operator parameters in single-voice
// order, positioned relative to the operator's 17-byte packed block.
var operatorLayout = [operatorFields]field{
	{0, 0, 7}, {1, 0, 7}, {2, 0, 7}, {3, 0, 7}, // EG rates 1-4
	{4, 0, 7}, {5, 0, 7}, {6, 0, 7}, {7, 0, 7}, // EG levels 1-4
	{8, 0, 7},  // keyboard level scaling break point
	{9, 0, 7},  // left depth
	{10, 0, 7}, // right depth
	{11, 0, 2}, // left curve
	{11, 2, 2}, // right curve
	{12, 0, 3}, // rate scaling
	{13, 0, 2}, // amp mod sensitivity
	{13, 2, 3}, // key velocity sensitivity
	{14, 0, 7}, // output level
	{15, 0, 1}, // oscillator mode
	{15, 1, 5}, // coarse
	{16, 0, 7}, // fine
	{12, 3, 4}, // detune
}

// voiceLayout lists the 29 voice-wide parameters that follow the operators.
var voiceLayout = [...]field{
	{102, 0, 7}, {103, 0, 7}, {104, 0, 7}, {105, 0, 7}, // pitch EG rates
	{106, 0, 7}, {107, 0, 7}, {108, 0, 7}, {109, 0, 7}, // pitch EG levels
	{110, 0, 5}, // algorithm
	{111, 0, 3}, // feedback
	{111, 3, 1}, // oscillator key sync
	{112, 0, 7}, // LFO speed
	{113, 0, 7}, // LFO delay
	{114, 0, 7}, // LFO pitch mod depth
	{115, 0, 7}, // LFO amp mod depth
	{116, 0, 1}, // LFO sync
	{116, 1, 3}, // LFO waveform
	{116, 4, 3}, // pitch mod sensitivity
	{117, 0, 7}, // transpose
	{118, 0, 7}, {119, 0, 7}, {120, 0, 7}, {121, 0, 7}, {122, 0, 7}, // name
	{123, 0, 7}, {124, 0, 7}, {125, 0, 7}, {126, 0, 7}, {127, 0, 7},
}

// layout maps every canonical parameter index to its packed position. Both
// UnpackVoice and PackChunk walk this table.
var layout = buildLayout()

func buildLayout() [ParamsSize]field {
	var l [ParamsSize]field
	i := 0
	// Operators are stored 6 down to 1 in both forms.
	for op := 0; op < operatorCount; op++ {
		base := op * packedOpSize
		for _, f := range operatorLayout {
			f.offset += base
			l[i] = f
			i++
		}
	}
	for _, f := range voiceLayout {
		l[i] = f
		i++
	}
	if i != ParamsSize {
		panic("sysex: voice layout does not cover 155 parameters")
	}
	return l
}

// UnpackVoice expands one packed 128-byte bank chunk into the canonical
// parameter block.
func UnpackVoice(chunk []byte) (Params, error) {
	var p Params
	if len(chunk) < ChunkSize {
		return p, ErrShortChunk
	}
	for i, f := range layout {
		p[i] = chunk[f.offset] >> f.shift & f.mask()
	}
	return p, nil
}

// PackChunk is the inverse of UnpackVoice.
func PackChunk(p Params) [ChunkSize]byte {
	var chunk [ChunkSize]byte
	for i, f := range layout {
		chunk[f.offset] |= (p[i] & f.mask()) << f.shift
	}
	return chunk
}

// PackVoice builds a complete single-voice dump for the given MIDI channel:
// F0 43 0n 00 01 1B <155 params> <checksum> F7.
func PackVoice(p Params, channel uint8) []byte {
	msg := make([]byte, 0, headerSize+ParamsSize+2)
	msg = append(msg, Start, yamahaID, channel&0x0F, formatSingleVoice)
	// 155 = 1<<7 | 0x1B
	msg = append(msg, ParamsSize>>7, ParamsSize&0x7F)
	msg = append(msg, p[:]...)
	msg = append(msg, Checksum(p[:]), End)
	return msg
}

// ParamsFromSingleVoice extracts the parameter block of a single-voice dump.
// The checksum is not verified here; see VerifyChecksum.
func ParamsFromSingleVoice(msg []byte) (Params, error) {
	var p Params
	if Classify(msg) != SingleVoice {
		return p, ErrNotSingleVoice
	}
	if len(msg) < headerSize+ParamsSize+2 {
		return p, ErrTruncated
	}
	copy(p[:], msg[headerSize:headerSize+ParamsSize])
	return p, nil
}

// Name returns the cleaned voice name stored in the block.
func (p Params) Name() string {
	return cleanName(p[ParamsSize-nameSize:])
}
