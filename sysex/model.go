package sysex

import "math/rand"

type Envelope struct {
	Rates  [4]byte `json:"rates"`
	Levels [4]byte `json:"levels"`
}

type Operator struct {
	EG             Envelope `json:"eg"`
	BreakPoint     byte     `json:"break_point"`
	LeftDepth      byte     `json:"left_depth"`
	RightDepth     byte     `json:"right_depth"`
	LeftCurve      byte     `json:"left_curve"`
	RightCurve     byte     `json:"right_curve"`
	RateScaling    byte     `json:"rate_scaling"`
	AmpModSens     byte     `json:"amp_mod_sens"`
	KeyVelocitySen byte     `json:"key_velocity_sens"`
	OutputLevel    byte     `json:"output_level"`
	OscMode        byte     `json:"osc_mode"` // 0 ratio, 1 fixed
	Coarse         byte     `json:"coarse"`
	Fine           byte     `json:"fine"`
	Detune         byte     `json:"detune"` // 7 is centre
}

type LFO struct {
	Speed     byte `json:"speed"`
	Delay     byte `json:"delay"`
	PitchMod  byte `json:"pitch_mod_depth"`
	AmpMod    byte `json:"amp_mod_depth"`
	Sync      byte `json:"sync"`
	Wave      byte `json:"wave"`
	PitchSens byte `json:"pitch_mod_sens"`
}

// Voice is the editable view of a parameter block. Operators[0] is OP1.
type Voice struct {
	Operators  [6]Operator `json:"operators"`
	PitchEG    Envelope    `json:"pitch_eg"`
	Algorithm  byte        `json:"algorithm"` // 0-31, displayed as 1-32
	Feedback   byte        `json:"feedback"`
	OscKeySync byte        `json:"osc_key_sync"`
	LFO        LFO         `json:"lfo"`
	Transpose  byte        `json:"transpose"` // 24 is C3
	Name       string      `json:"name"`
}

// Offsets into the 21-byte canonical operator block.
var operatorFieldMapping = struct {
	egRates, egLevels                 int
	breakPoint, leftDepth, rightDepth int
	leftCurve, rightCurve             int
	rateScaling, ampModSens, kvs      int
	outputLevel                       int
	oscMode, coarse, fine, detune     int
}{
	egRates: 0, egLevels: 4,
	breakPoint: 8, leftDepth: 9, rightDepth: 10,
	leftCurve: 11, rightCurve: 12,
	rateScaling: 13, ampModSens: 14, kvs: 15,
	outputLevel: 16,
	oscMode: 17, coarse: 18, fine: 19, detune: 20,
}

const (
	pitchEGIdx    = 126
	algorithmIdx  = 134
	feedbackIdx   = 135
	oscKeySyncIdx = 136
	lfoSpeedIdx   = 137
	lfoDelayIdx   = 138
	lfoPMDIdx     = 139
	lfoAMDIdx     = 140
	lfoSyncIdx    = 141
	lfoWaveIdx    = 142
	lfoPMSIdx     = 143
	transposeIdx  = 144
	nameIdx       = 145
)

// operatorBase returns where OPn (0-based, OP1 = 0) starts in the block.
func operatorBase(op int) int {
	return (operatorCount - 1 - op) * operatorFields
}

// VoiceFromParams decodes a parameter block.
func VoiceFromParams(p Params) *Voice {
	v := &Voice{}
	m := operatorFieldMapping
	for i := range v.Operators {
		b := operatorBase(i)
		o := &v.Operators[i]
		copy(o.EG.Rates[:], p[b+m.egRates:b+m.egRates+4])
		copy(o.EG.Levels[:], p[b+m.egLevels:b+m.egLevels+4])
		o.BreakPoint = p[b+m.breakPoint]
		o.LeftDepth = p[b+m.leftDepth]
		o.RightDepth = p[b+m.rightDepth]
		o.LeftCurve = p[b+m.leftCurve]
		o.RightCurve = p[b+m.rightCurve]
		o.RateScaling = p[b+m.rateScaling]
		o.AmpModSens = p[b+m.ampModSens]
		o.KeyVelocitySen = p[b+m.kvs]
		o.OutputLevel = p[b+m.outputLevel]
		o.OscMode = p[b+m.oscMode]
		o.Coarse = p[b+m.coarse]
		o.Fine = p[b+m.fine]
		o.Detune = p[b+m.detune]
	}

	copy(v.PitchEG.Rates[:], p[pitchEGIdx:pitchEGIdx+4])
	copy(v.PitchEG.Levels[:], p[pitchEGIdx+4:pitchEGIdx+8])
	v.Algorithm = p[algorithmIdx]
	v.Feedback = p[feedbackIdx]
	v.OscKeySync = p[oscKeySyncIdx]
	v.LFO = LFO{
		Speed:     p[lfoSpeedIdx],
		Delay:     p[lfoDelayIdx],
		PitchMod:  p[lfoPMDIdx],
		AmpMod:    p[lfoAMDIdx],
		Sync:      p[lfoSyncIdx],
		Wave:      p[lfoWaveIdx],
		PitchSens: p[lfoPMSIdx],
	}
	v.Transpose = p[transposeIdx]
	v.Name = p.Name()
	return v
}

// Params encodes the voice. Each value is clipped to its packed bit width so
// the block always survives a trip through a bank chunk.
func (v *Voice) Params() Params {
	var p Params
	m := operatorFieldMapping
	for i := range v.Operators {
		b := operatorBase(i)
		o := v.Operators[i]
		copy(p[b+m.egRates:], o.EG.Rates[:])
		copy(p[b+m.egLevels:], o.EG.Levels[:])
		p[b+m.breakPoint] = o.BreakPoint
		p[b+m.leftDepth] = o.LeftDepth
		p[b+m.rightDepth] = o.RightDepth
		p[b+m.leftCurve] = o.LeftCurve
		p[b+m.rightCurve] = o.RightCurve
		p[b+m.rateScaling] = o.RateScaling
		p[b+m.ampModSens] = o.AmpModSens
		p[b+m.kvs] = o.KeyVelocitySen
		p[b+m.outputLevel] = o.OutputLevel
		p[b+m.oscMode] = o.OscMode
		p[b+m.coarse] = o.Coarse
		p[b+m.fine] = o.Fine
		p[b+m.detune] = o.Detune
	}

	copy(p[pitchEGIdx:], v.PitchEG.Rates[:])
	copy(p[pitchEGIdx+4:], v.PitchEG.Levels[:])
	p[algorithmIdx] = v.Algorithm
	p[feedbackIdx] = v.Feedback
	p[oscKeySyncIdx] = v.OscKeySync
	p[lfoSpeedIdx] = v.LFO.Speed
	p[lfoDelayIdx] = v.LFO.Delay
	p[lfoPMDIdx] = v.LFO.PitchMod
	p[lfoAMDIdx] = v.LFO.AmpMod
	p[lfoSyncIdx] = v.LFO.Sync
	p[lfoWaveIdx] = v.LFO.Wave
	p[lfoPMSIdx] = v.LFO.PitchSens
	p[transposeIdx] = v.Transpose

	name := []byte(v.Name)
	if len(name) > nameSize {
		name = name[:nameSize]
	}
	for i := 0; i < nameSize; i++ {
		c := byte(' ')
		if i < len(name) {
			c = name[i]
		}
		p[nameIdx+i] = c
	}

	for i, f := range layout {
		p[i] &= f.mask()
	}
	return p
}

// RandomizeOperators rewrites the frequency and level settings of every
// operator, leaving envelopes and voice-wide settings alone.
func (v *Voice) RandomizeOperators() {
	for i := range v.Operators {
		o := &v.Operators[i]
		o.OscMode = 0
		o.Coarse = byte(rand.Intn(32))
		o.Fine = byte(rand.Intn(100))
		o.Detune = byte(rand.Intn(15))
		o.OutputLevel = byte(50 + rand.Intn(50))
		o.KeyVelocitySen = byte(rand.Intn(8))
	}
}
