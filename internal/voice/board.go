// Package voice implements the per-note signal chain.
package voice

import (
	"math"

	"github.com/cbegin/amsynth-go/internal/dsp"
	"github.com/cbegin/amsynth-go/internal/lfo"
	"github.com/cbegin/amsynth-go/internal/preset"
	"github.com/cwbudde/algo-approx"
)

// MaxProcessFrames is the largest block ProcessMix accepts.
const MaxProcessFrames = 64

const (
	// Cutoff reference for keyboard tracking: middle C.
	keyTrackBase = 261.63

	declickHz        = 300.0
	silenceThreshold = 1e-4
	smoothingSeconds = 0.005

	ln2 = 0.6931471805599453
)

// Board renders one voice: two oscillators mixed (with optional ring
// modulation), a resonant filter swept by its own envelope, and an
// amplifier envelope, all modulated by a per-voice LFO.
type Board struct {
	sampleRate float64

	lfo       *lfo.LFO
	osc1      *dsp.Oscillator
	osc2      *dsp.Oscillator
	filter    *dsp.Filter
	filterEnv *dsp.ADSR
	ampEnv    *dsp.ADSR
	vca       dsp.OnePole

	frequency dsp.Smoother
	pitchBend float64
	velocity  float64

	lfoFreq       float64
	osc1PW        float64
	osc2PW        float64
	osc2Detune    float64
	osc2Octave    float64
	osc2Pitch     float64
	freqModAmount float64
	freqModDest   int

	filterCutoff    float64
	filterRes       float64
	filterEnvAmount float64
	filterModAmount float64
	filterKbdTrack  float64
	filterType      dsp.FilterType
	filterSlope     dsp.FilterSlope

	oscMix        dsp.Smoother
	ringMod       dsp.Smoother
	ampModAmount  dsp.Smoother
	ampVelSens    dsp.Smoother
	filterVelSens dsp.Smoother

	lfoBuf       [MaxProcessFrames]float32
	osc1Buf      [MaxProcessFrames]float32
	osc2Buf      [MaxProcessFrames]float32
	filterEnvBuf [MaxProcessFrames]float32
	ampEnvBuf    [MaxProcessFrames]float32
}

// NewBoard returns a board with every parameter at its default. index
// seeds the noise sources so voices don't share a noise stream.
func NewBoard(sampleRate int, index int) *Board {
	seed := uint32(index)*2654435761 + 1
	b := &Board{
		lfo:       lfo.New(sampleRate, seed),
		osc1:      dsp.NewOscillator(sampleRate, seed^0x5bd1e995),
		osc2:      dsp.NewOscillator(sampleRate, seed^0x1b873593),
		filter:    dsp.NewFilter(sampleRate),
		filterEnv: dsp.NewADSR(sampleRate),
		ampEnv:    dsp.NewADSR(sampleRate),
		pitchBend: 1,
		velocity:  1,
	}
	b.SetSampleRate(sampleRate)
	defaults := preset.New("")
	for id := preset.ParamID(0); id < preset.ParamCount; id++ {
		b.SetParameter(id, defaults.Parameter(id).ControlValue())
	}
	b.Reset()
	return b
}

func (b *Board) SetSampleRate(sampleRate int) {
	b.sampleRate = float64(sampleRate)
	b.lfo.SetSampleRate(sampleRate)
	b.osc1.SetSampleRate(sampleRate)
	b.osc2.SetSampleRate(sampleRate)
	b.filter.SetSampleRate(sampleRate)
	b.filterEnv.SetSampleRate(sampleRate)
	b.ampEnv.SetSampleRate(sampleRate)
	b.vca.SetCutoff(declickHz, b.sampleRate)

	ramp := int(smoothingSeconds * b.sampleRate)
	b.oscMix.SetRamp(ramp)
	b.ringMod.SetRamp(ramp)
	b.ampModAmount.SetRamp(ramp)
	b.ampVelSens.SetRamp(ramp)
	b.filterVelSens.SetRamp(ramp)
}

// SetParameter applies a control value. Master-bus parameters are ignored.
func (b *Board) SetParameter(id preset.ParamID, cv float64) {
	switch id {
	case preset.AmpAttack:
		b.ampEnv.SetAttack(cv)
	case preset.AmpDecay:
		b.ampEnv.SetDecay(cv)
	case preset.AmpSustain:
		b.ampEnv.SetSustain(cv)
	case preset.AmpRelease:
		b.ampEnv.SetRelease(cv)
	case preset.FilterAttack:
		b.filterEnv.SetAttack(cv)
	case preset.FilterDecay:
		b.filterEnv.SetDecay(cv)
	case preset.FilterSustain:
		b.filterEnv.SetSustain(cv)
	case preset.FilterRelease:
		b.filterEnv.SetRelease(cv)
	case preset.Osc1Waveform:
		b.osc1.SetWaveform(dsp.Waveform(int(cv)))
	case preset.Osc2Waveform:
		b.osc2.SetWaveform(dsp.Waveform(int(cv)))
	case preset.Osc1PulseWidth:
		b.osc1PW = cv
	case preset.Osc2PulseWidth:
		b.osc2PW = cv
	case preset.Osc2Detune:
		b.osc2Detune = cv
	case preset.Osc2Range:
		b.osc2Octave = cv
	case preset.Osc2Pitch:
		b.osc2Pitch = cv
	case preset.Osc2Sync:
		b.osc2.SetSync(cv >= 0.5)
	case preset.LFOFreq:
		b.lfoFreq = cv
	case preset.LFOWaveform:
		b.lfo.SetWaveform(lfo.Waveform(int(cv)))
	case preset.FreqModAmount:
		b.freqModAmount = cv
	case preset.FreqModOsc:
		b.freqModDest = int(cv)
	case preset.OscMix:
		b.oscMix.SetTarget(cv)
	case preset.OscMixMode:
		b.ringMod.SetTarget(cv)
	case preset.AmpModAmount:
		b.ampModAmount.SetTarget((cv + 1) / 2)
	case preset.AmpVelSens:
		b.ampVelSens.SetTarget(cv)
	case preset.FilterCutoff:
		b.filterCutoff = cv
	case preset.FilterResonance:
		b.filterRes = cv
	case preset.FilterEnvAmount:
		b.filterEnvAmount = cv
	case preset.FilterModAmount:
		b.filterModAmount = (cv + 1) / 2
	case preset.FilterKbdTrack:
		b.filterKbdTrack = cv
	case preset.FilterVelSens:
		b.filterVelSens.SetTarget(cv)
	case preset.FilterType:
		b.filterType = dsp.FilterType(int(cv))
	case preset.FilterSlope:
		b.filterSlope = dsp.FilterSlope(int(cv))
	}
}

// SetFrequency glides from start to target over seconds. A zero time
// jumps straight to target.
func (b *Board) SetFrequency(start, target, seconds float64) {
	b.frequency.Ramp(start, target, int(seconds*b.sampleRate))
}

// Frequency is the current (possibly gliding) pitch in Hz.
func (b *Board) Frequency() float64 { return b.frequency.Value() }

// SetVelocity takes a normalised key velocity in [0, 1].
func (b *Board) SetVelocity(v float64) { b.velocity = v }

// SetPitchBend takes a frequency ratio.
func (b *Board) SetPitchBend(ratio float64) { b.pitchBend = ratio }

// TriggerOn starts both envelopes. Smoothed controls jump to their
// targets when the voice was silent so a new note starts clean.
func (b *Board) TriggerOn(fromSilence bool) {
	if fromSilence {
		b.oscMix.Snap()
		b.ringMod.Snap()
		b.ampModAmount.Snap()
		b.ampVelSens.Snap()
		b.filterVelSens.Snap()
	}
	b.ampEnv.TriggerOn()
	b.filterEnv.TriggerOn()
}

func (b *Board) TriggerOff() {
	b.ampEnv.TriggerOff()
	b.filterEnv.TriggerOff()
}

// AmpLevel is the current amplifier envelope level.
func (b *Board) AmpLevel() float64 { return b.ampEnv.Value() }

// IsReleasing reports whether the amplifier envelope is past sustain.
func (b *Board) IsReleasing() bool {
	s := b.ampEnv.State()
	return s == dsp.EnvRelease || s == dsp.EnvOff
}

// IsSilent reports whether the voice has finished sounding: its envelope
// is off and the declick filter has settled.
func (b *Board) IsSilent() bool {
	return b.ampEnv.State() == dsp.EnvOff && math.Abs(b.vca.Value()) < silenceThreshold
}

// Reset returns the voice to silence with all phases at zero.
func (b *Board) Reset() {
	b.lfo.Reset()
	b.osc1.Reset()
	b.osc2.Reset()
	b.filter.Reset()
	b.filterEnv.Reset()
	b.ampEnv.Reset()
	b.vca.Reset(0)
	b.oscMix.Snap()
	b.ringMod.Snap()
	b.ampModAmount.Snap()
	b.ampVelSens.Snap()
	b.filterVelSens.Snap()
}

// ProcessMix renders len(out) frames (at most MaxProcessFrames) and adds
// them to out scaled by vol.
func (b *Board) ProcessMix(out []float32, vol float64) {
	n := len(out)
	if n > MaxProcessFrames {
		n = MaxProcessFrames
		out = out[:n]
	}
	if n == 0 {
		return
	}
	lfoBuf := b.lfoBuf[:n]
	osc1Buf := b.osc1Buf[:n]
	osc2Buf := b.osc2Buf[:n]
	filterEnvBuf := b.filterEnvBuf[:n]
	ampEnvBuf := b.ampEnvBuf[:n]

	b.lfo.Process(lfoBuf, b.lfoFreq)
	lfoValue := float64(lfoBuf[0])

	b.frequency.Advance(n)
	baseFreq := b.frequency.Value()

	// pitch
	osc1Freq := b.pitchBend * baseFreq
	osc2Freq := osc1Freq * b.osc2Detune * b.osc2Octave * b.osc2Pitch
	if b.freqModAmount > 0 {
		mod := pow2(b.freqModAmount * lfoValue)
		switch b.freqModDest {
		case 1:
			osc1Freq *= mod
		case 2:
			osc2Freq *= mod
		default:
			osc1Freq *= mod
			osc2Freq *= mod
		}
	}
	b.osc1.Process(osc1Buf, osc1Freq, b.osc1PW, 0)
	b.osc2.Process(osc2Buf, osc2Freq, b.osc2PW, osc1Freq)

	for i := range osc1Buf {
		ring := b.ringMod.Next()
		mix := b.oscMix.Next()
		o1 := float64(osc1Buf[i])
		o2 := float64(osc2Buf[i])
		v1 := (1 - ring) * (1 - mix) / 2
		v2 := (1 - ring) * (1 + mix) / 2
		osc1Buf[i] = float32(v1*o1 + v2*o2 + ring*o1*o2)
	}

	// filter
	b.filterEnv.Process(filterEnvBuf)
	b.filterVelSens.Advance(n)
	b.filter.Process(osc1Buf, b.cutoff(baseFreq, lfoValue, float64(filterEnvBuf[0])),
		b.filterRes, b.filterType, b.filterSlope)

	// amp
	b.ampEnv.Process(ampEnvBuf)
	for i := range out {
		ampMod := b.ampModAmount.Next()
		velSens := b.ampVelSens.Next()
		lfoGain := (float64(lfoBuf[i])*0.5+0.5)*ampMod + 1 - ampMod
		velGain := (1 - velSens) + velSens*b.velocity
		gain := b.vca.Process(float64(ampEnvBuf[i]) * velGain * lfoGain)
		out[i] += float32(float64(osc1Buf[i]) * gain * vol)
	}
}

func (b *Board) cutoff(keyFreq, lfoValue, env float64) float64 {
	cutoff := keyTrackBase * b.filterCutoff
	velSens := b.filterVelSens.Value()
	cutoff *= (1 - velSens) + velSens*b.velocity
	cutoff *= (1 - b.filterKbdTrack) + b.filterKbdTrack*keyFreq/keyTrackBase
	cutoff *= (lfoValue*0.5+0.5)*b.filterModAmount + 1 - b.filterModAmount

	if b.filterEnvAmount > 0 {
		cutoff += keyFreq * env * b.filterEnvAmount
	} else {
		cutoff *= (16 + b.filterEnvAmount*env) / 16
	}
	return cutoff
}

func pow2(x float64) float64 {
	return float64(approx.FastExp(float32(x * ln2)))
}
