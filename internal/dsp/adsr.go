package dsp

// EnvState is the stage an ADSR envelope is in.
type EnvState int

const (
	EnvAttack EnvState = iota
	EnvDecay
	EnvSustain
	EnvRelease
	EnvOff
)

func (s EnvState) String() string {
	switch s {
	case EnvAttack:
		return "attack"
	case EnvDecay:
		return "decay"
	case EnvSustain:
		return "sustain"
	case EnvRelease:
		return "release"
	default:
		return "off"
	}
}

const (
	// MinStageSeconds is the shortest ramp any stage takes, so a zero
	// attack or release never produces a step.
	MinStageSeconds = 0.0005

	// Decays shorter than this are skipped and the attack heads
	// straight for the sustain level.
	decaySkipSeconds = 0.001

	sustainSmoothingHz = 30.0
)

// ADSR is a linear attack/decay/release envelope with a smoothed
// sustain level. Stage lengths are counted in frames and the increment
// is fixed when a stage is entered.
type ADSR struct {
	sampleRate float64

	attack  float64
	decay   float64
	sustain float64
	release float64

	state      EnvState
	value      float64
	target     float64
	inc        float64
	framesLeft int

	sustainFilter OnePole
}

func NewADSR(sampleRate int) *ADSR {
	a := &ADSR{
		attack:  MinStageSeconds,
		decay:   MinStageSeconds,
		sustain: 1,
		release: MinStageSeconds,
		state:   EnvOff,
	}
	a.SetSampleRate(sampleRate)
	return a
}

func (a *ADSR) SetSampleRate(sampleRate int) {
	a.sampleRate = float64(sampleRate)
	a.sustainFilter.SetCutoff(sustainSmoothingHz, a.sampleRate)
}

func (a *ADSR) SetAttack(seconds float64)  { a.attack = seconds }
func (a *ADSR) SetDecay(seconds float64)   { a.decay = seconds }
func (a *ADSR) SetRelease(seconds float64) { a.release = seconds }

// SetSustain changes the sustain level. An envelope already sustaining
// glides to the new level.
func (a *ADSR) SetSustain(level float64) {
	a.sustain = clamp(level, 0, 1)
}

func (a *ADSR) State() EnvState { return a.state }
func (a *ADSR) Value() float64  { return a.value }

// TriggerOn starts the attack from wherever the envelope currently is.
func (a *ADSR) TriggerOn() {
	target := 1.0
	if a.decay < decaySkipSeconds {
		target = a.sustain
	}
	a.enter(EnvAttack, target, a.attack)
}

// TriggerOff starts the release from the current level.
func (a *ADSR) TriggerOff() {
	if a.state == EnvOff {
		return
	}
	a.enter(EnvRelease, 0, a.release)
}

// Reset silences the envelope immediately.
func (a *ADSR) Reset() {
	a.state = EnvOff
	a.value = 0
	a.inc = 0
	a.framesLeft = 0
	a.sustainFilter.Reset(0)
}

// Process writes the next len(buf) envelope values.
func (a *ADSR) Process(buf []float32) {
	for i := range buf {
		buf[i] = float32(a.next())
	}
}

func (a *ADSR) next() float64 {
	switch a.state {
	case EnvAttack, EnvDecay, EnvRelease:
		a.value += a.inc
		a.framesLeft--
		if a.framesLeft <= 0 {
			a.value = a.target
			a.finishStage()
		}
	case EnvSustain:
		a.value = a.sustainFilter.Process(a.sustain)
	default:
		a.value = 0
	}
	return a.value
}

func (a *ADSR) finishStage() {
	switch a.state {
	case EnvAttack:
		if a.decay < decaySkipSeconds {
			a.enterSustain()
			return
		}
		a.enter(EnvDecay, a.sustain, a.decay)
	case EnvDecay:
		a.enterSustain()
	case EnvRelease:
		a.Reset()
	}
}

func (a *ADSR) enterSustain() {
	a.state = EnvSustain
	a.sustainFilter.Reset(a.value)
}

func (a *ADSR) enter(state EnvState, target, seconds float64) {
	frames := a.stageFrames(seconds)
	a.state = state
	a.target = target
	a.framesLeft = frames
	a.inc = (target - a.value) / float64(frames)
}

func (a *ADSR) stageFrames(seconds float64) int {
	if seconds < MinStageSeconds {
		seconds = MinStageSeconds
	}
	frames := int(seconds*a.sampleRate + 0.5)
	if frames < 1 {
		frames = 1
	}
	return frames
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
