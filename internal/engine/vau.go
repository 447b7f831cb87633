// Package engine allocates voices to notes and mixes them onto the
// master bus.
package engine

import (
	"math"

	"github.com/cbegin/amsynth-go/internal/effects"
	"github.com/cbegin/amsynth-go/internal/preset"
	"github.com/cbegin/amsynth-go/internal/tuning"
	"github.com/cbegin/amsynth-go/internal/voice"
)

// NumVoices is the number of voice slots, one per MIDI note.
const NumVoices = 128

// KeyboardMode matches the keyboard_mode parameter.
type KeyboardMode int

const (
	KeyboardPoly KeyboardMode = iota
	KeyboardMono
	KeyboardLegato
)

// PortamentoMode matches the portamento_mode parameter.
type PortamentoMode int

const (
	PortamentoAlways PortamentoMode = iota
	PortamentoLegato
)

const (
	limiterThresholdDB = -0.3
	limiterAttackMs    = 1
	limiterReleaseMs   = 100
	dcBlockHz          = 5
)

// VoiceAllocationUnit owns every voice and the master bus. All methods
// must be called from the render goroutine, or while it is stopped.
type VoiceAllocationUnit struct {
	sampleRate int

	voices     [NumVoices]*voice.Board
	active     [NumVoices]bool
	fading     [NumVoices]bool // released over the limit; not counted
	keyPressed [NumVoices]bool
	keyPresses [NumVoices]uint64

	keyPressCounter uint64
	sustain         bool
	maxVoices       int

	keyboardMode      KeyboardMode
	portamentoTime    float64
	portamentoMode    PortamentoMode
	lastNoteFrequency float64
	monoNote          int

	pitchBendRange float64
	pitchBend      float64
	masterVol      float64
	panL, panR     float32

	tuning     *tuning.Map
	distortion *effects.Distortion
	dcBlock    *effects.DCBlocker
	reverb     *effects.Reverb
	limiter    *effects.Limiter
	bus        *effects.Chain

	buf [voice.MaxProcessFrames]float32
}

func New(sampleRate int) *VoiceAllocationUnit {
	u := &VoiceAllocationUnit{
		tuning:         tuning.NewMap(),
		pitchBendRange: 2,
		pitchBend:      1,
		panL:           1,
		panR:           1,
		monoNote:       -1,
	}
	defaults := preset.New("")
	u.masterVol = defaults.Parameter(preset.MasterVolume).ControlValue()
	u.SetSampleRate(sampleRate)
	for i := range u.voices {
		u.voices[i] = voice.NewBoard(sampleRate, i)
	}
	return u
}

// SetSampleRate rebuilds the master bus and retunes every voice. It
// allocates, so it must not run concurrently with Process.
func (u *VoiceAllocationUnit) SetSampleRate(sampleRate int) {
	u.sampleRate = sampleRate
	for _, v := range u.voices {
		if v != nil {
			v.SetSampleRate(sampleRate)
		}
	}
	var crunch, room, damp, wet, width float32
	width = 1
	if u.distortion != nil {
		crunch = u.distortion.Crunch()
	}
	if u.reverb != nil {
		room, damp, wet, width = u.reverb.Settings()
	}
	u.distortion = effects.NewDistortion(crunch)
	u.dcBlock = effects.NewDCBlocker(sampleRate, dcBlockHz)
	u.reverb = effects.NewReverb(sampleRate, room, damp, wet, width)
	u.limiter = effects.NewLimiter(sampleRate, limiterThresholdDB, limiterAttackMs, limiterReleaseMs)
	u.bus = effects.NewChain(u.reverb, u.limiter)
}

func (u *VoiceAllocationUnit) SampleRate() int       { return u.sampleRate }
func (u *VoiceAllocationUnit) Tuning() *tuning.Map   { return u.tuning }
func (u *VoiceAllocationUnit) MaxVoices() int        { return u.maxVoices }
func (u *VoiceAllocationUnit) Sustain() bool         { return u.sustain }
func (u *VoiceAllocationUnit) Mode() KeyboardMode    { return u.keyboardMode }
func (u *VoiceAllocationUnit) PitchBendRange() int   { return int(u.pitchBendRange) }
func (u *VoiceAllocationUnit) MasterVolume() float64 { return u.masterVol }

// SetMaxVoices limits polyphony; 0 means every slot may sound. Voices
// beyond a lowered limit are released in stealing order and stop
// counting as active at once.
func (u *VoiceAllocationUnit) SetMaxVoices(n int) {
	u.maxVoices = max(n, 0)
	if u.maxVoices == 0 {
		return
	}
	for u.ActiveVoices() > u.maxVoices {
		victim := u.stealVoice(-1)
		if victim < 0 {
			return
		}
		u.active[victim] = false
		u.fading[victim] = true
		u.voices[victim].TriggerOff()
	}
}

func (u *VoiceAllocationUnit) SetPitchBendRange(semitones int) {
	u.pitchBendRange = float64(max(semitones, 0))
}

// ActiveVoices counts voices currently sounding.
func (u *VoiceAllocationUnit) ActiveVoices() int {
	n := 0
	for _, a := range u.active {
		if a {
			n++
		}
	}
	return n
}

// IsActive reports whether the voice slot for note is sounding.
func (u *VoiceAllocationUnit) IsActive(note int) bool {
	return note >= 0 && note < NumVoices && u.active[note]
}

// ParameterDidChange routes a parameter change: master-bus parameters are
// handled here, everything else goes to every voice.
func (u *VoiceAllocationUnit) ParameterDidChange(id preset.ParamID, cv float64) {
	switch id {
	case preset.MasterVolume:
		u.masterVol = cv
	case preset.ReverbRoomSize:
		u.reverb.SetRoomSize(float32(cv))
	case preset.ReverbDamp:
		u.reverb.SetDamp(float32(cv))
	case preset.ReverbWet:
		u.reverb.SetWet(float32(cv))
	case preset.ReverbWidth:
		u.reverb.SetWidth(float32(cv))
	case preset.DistortionCrunch:
		u.distortion.SetCrunch(float32(cv))
	case preset.PortamentoTime:
		u.portamentoTime = cv
	case preset.PortamentoMode:
		u.portamentoMode = PortamentoMode(int(cv))
	case preset.KeyboardMode:
		mode := KeyboardMode(int(cv))
		if mode != u.keyboardMode {
			u.keyboardMode = mode
			u.ResetAllVoices()
		}
	default:
		for _, v := range u.voices {
			v.SetParameter(id, cv)
		}
	}
}

// HandleMidiNoteOn starts note. velocity is normalised to [0, 1].
func (u *VoiceAllocationUnit) HandleMidiNoteOn(note int, velocity float64) {
	if note < 0 || note >= NumVoices {
		return
	}
	pitch := u.tuning.NoteToPitch(note)
	if pitch < 0 {
		return
	}

	u.keyPressCounter++
	u.keyPressed[note] = true
	u.keyPresses[note] = u.keyPressCounter

	if u.keyboardMode == KeyboardPoly {
		u.polyNoteOn(note, pitch, velocity)
	} else {
		u.monoNoteOn(note, pitch, velocity)
	}
	u.lastNoteFrequency = pitch
}

func (u *VoiceAllocationUnit) polyNoteOn(note int, pitch, velocity float64) {
	if !u.active[note] && u.maxVoices > 0 && u.ActiveVoices() >= u.maxVoices {
		// The new note inherits the stolen voice so it carries on from
		// the victim's current level instead of cutting it.
		if victim := u.stealVoice(note); victim >= 0 {
			u.voices[note], u.voices[victim] = u.voices[victim], u.voices[note]
			u.fading[victim], u.fading[note] = u.fading[note], false
			u.active[victim] = false
			u.active[note] = true
		}
	}

	v := u.voices[note]
	sounding := (u.active[note] || u.fading[note]) && !v.IsSilent()
	if sounding {
		v.SetFrequency(v.Frequency(), pitch, u.portamentoTime)
	} else {
		v.Reset()
		start := pitch
		if u.lastNoteFrequency > 0 && u.glideAllowed(note) {
			start = u.lastNoteFrequency
		}
		v.SetFrequency(start, pitch, u.portamentoTime)
	}
	v.SetVelocity(velocity)
	v.SetPitchBend(u.pitchBend)
	v.TriggerOn(!sounding)
	u.active[note] = true
	u.fading[note] = false
}

// glideAllowed reports whether a fresh voice should glide from the last
// note: always in "always" mode, otherwise only while another key is held.
func (u *VoiceAllocationUnit) glideAllowed(note int) bool {
	if u.portamentoTime <= 0 {
		return false
	}
	if u.portamentoMode == PortamentoAlways {
		return true
	}
	for i, held := range u.keyPressed {
		if held && i != note {
			return true
		}
	}
	return false
}

// stealVoice picks the active voice to give up: the oldest one whose key
// is released, else the oldest of all. It returns -1 if none is active.
func (u *VoiceAllocationUnit) stealVoice(except int) int {
	best, bestReleased := -1, -1
	for i := range u.active {
		if !u.active[i] || i == except {
			continue
		}
		if best < 0 || u.keyPresses[i] < u.keyPresses[best] {
			best = i
		}
		if !u.keyPressed[i] && (bestReleased < 0 || u.keyPresses[i] < u.keyPresses[bestReleased]) {
			bestReleased = i
		}
	}
	if bestReleased >= 0 {
		return bestReleased
	}
	return best
}

func (u *VoiceAllocationUnit) monoNoteOn(note int, pitch, velocity float64) {
	v := u.voices[0]
	sounding := u.active[0] && !v.IsReleasing()
	held := u.monoNote >= 0 && u.keyPressed[u.monoNote] && u.monoNote != note

	glide := 0.0
	if u.portamentoTime > 0 && (u.portamentoMode == PortamentoAlways || held) {
		glide = u.portamentoTime
	}

	if u.active[0] && !v.IsSilent() {
		v.SetFrequency(v.Frequency(), pitch, glide)
	} else {
		v.Reset()
		start := pitch
		if u.lastNoteFrequency > 0 && glide > 0 {
			start = u.lastNoteFrequency
		}
		v.SetFrequency(start, pitch, glide)
	}
	v.SetPitchBend(u.pitchBend)

	// Legato keeps the envelope running while the previous key is held.
	if u.keyboardMode == KeyboardMono || !sounding || !held {
		v.SetVelocity(velocity)
		v.TriggerOn(!u.active[0])
	}
	u.active[0] = true
	u.monoNote = note
}

// HandleMidiNoteOff releases note unless the sustain pedal holds it.
func (u *VoiceAllocationUnit) HandleMidiNoteOff(note int, velocity float64) {
	if note < 0 || note >= NumVoices {
		return
	}
	u.keyPressed[note] = false
	if u.sustain {
		return
	}
	if u.keyboardMode == KeyboardPoly {
		if u.active[note] {
			u.voices[note].TriggerOff()
		}
		return
	}
	if note == u.monoNote {
		u.monoRelease()
	}
}

// monoRelease hands the mono voice to the most recent key still held, or
// releases it when no key is down.
func (u *VoiceAllocationUnit) monoRelease() {
	if !u.active[0] {
		return
	}
	next := -1
	for i, held := range u.keyPressed {
		if held && (next < 0 || u.keyPresses[i] > u.keyPresses[next]) {
			next = i
		}
	}
	v := u.voices[0]
	if next < 0 {
		v.TriggerOff()
		return
	}
	pitch := u.tuning.NoteToPitch(next)
	if pitch < 0 {
		v.TriggerOff()
		return
	}
	v.SetFrequency(v.Frequency(), pitch, u.portamentoTime)
	if u.keyboardMode == KeyboardMono {
		v.TriggerOn(false)
	}
	u.monoNote = next
	u.lastNoteFrequency = pitch
}

// HandleMidiSustainPedal treats values >= 64 as down. Lifting the pedal
// releases every voice whose key is already up.
func (u *VoiceAllocationUnit) HandleMidiSustainPedal(value uint8) {
	down := value >= 64
	if down == u.sustain {
		return
	}
	u.sustain = down
	if down {
		return
	}
	if u.keyboardMode != KeyboardPoly {
		if u.monoNote >= 0 && !u.keyPressed[u.monoNote] {
			u.monoRelease()
		}
		return
	}
	for i := range u.voices {
		if u.active[i] && !u.keyPressed[i] {
			u.voices[i].TriggerOff()
		}
	}
}

// HandleMidiPitchWheel takes a bend in [-1, 1] scaled by the bend range.
func (u *VoiceAllocationUnit) HandleMidiPitchWheel(value float64) {
	u.pitchBend = math.Pow(2, value*u.pitchBendRange/12)
	for _, v := range u.voices {
		v.SetPitchBend(u.pitchBend)
	}
}

// HandleMidiPitchWheelSensitivity sets the bend range from RPN 0.
func (u *VoiceAllocationUnit) HandleMidiPitchWheelSensitivity(semitones int) {
	u.SetPitchBendRange(semitones)
}

// HandleMidiPan takes a position in [-1, 1] and applies a balance law:
// centre is unity on both sides.
func (u *VoiceAllocationUnit) HandleMidiPan(value float64) {
	value = max(-1, min(1, value))
	u.panL, u.panR = 1, 1
	if value > 0 {
		u.panL = float32(1 - value)
	} else if value < 0 {
		u.panR = float32(1 + value)
	}
}

func (u *VoiceAllocationUnit) HandleMidiAllSoundOff() { u.ResetAllVoices() }
func (u *VoiceAllocationUnit) HandleMidiAllNotesOff() { u.ResetAllVoices() }

// ResetAllVoices silences everything immediately and clears key and
// pedal state. Calling it twice is the same as calling it once.
func (u *VoiceAllocationUnit) ResetAllVoices() {
	for i := range u.voices {
		u.active[i] = false
		u.fading[i] = false
		u.keyPressed[i] = false
		u.voices[i].Reset()
	}
	u.sustain = false
	u.monoNote = -1
	u.dcBlock.Reset()
	u.bus.Reset()
}

// Process renders nframes (at most voice.MaxProcessFrames) into left and
// right, writing every stride-th element.
func (u *VoiceAllocationUnit) Process(left, right []float32, nframes, stride int) {
	nframes = min(nframes, voice.MaxProcessFrames)
	if nframes <= 0 {
		return
	}
	if stride < 1 {
		stride = 1
	}
	buf := u.buf[:nframes]
	clear(buf)

	for i, v := range u.voices {
		if !u.active[i] && !u.fading[i] {
			continue
		}
		if v.IsSilent() {
			u.active[i] = false
			u.fading[i] = false
			continue
		}
		v.ProcessMix(buf, u.masterVol)
	}

	u.distortion.ProcessBuffer(buf)
	u.dcBlock.ProcessBuffer(buf)

	for i, s := range buf {
		left[i*stride] = s * u.panL
		right[i*stride] = s * u.panR
	}
	u.bus.ProcessFrames(left, right, nframes, stride)
}
