package dsp

import "math"

// Waveform selects an oscillator shape.
type Waveform int

const (
	WaveSine Waveform = iota
	WavePulse
	WaveSaw
	WaveNoise
	WaveRandom
)

// Oscillator is a phase-accumulating oscillator. Phase is kept in
// radians and wrapped every sample. Frequency changes are ramped
// linearly across each block.
type Oscillator struct {
	sampleRate float64
	twoPiRate  float64
	waveform   Waveform

	rads float64
	freq float64 // frequency at the end of the last block, <0 after reset
	step float64
	f    float64

	sync     bool
	syncFreq float64
	syncRads float64

	seed        uint32
	randomValue float32
	randomCount int
}

func NewOscillator(sampleRate int, seed uint32) *Oscillator {
	o := &Oscillator{waveform: WaveSaw, seed: seed | 1}
	o.SetSampleRate(sampleRate)
	o.Reset()
	return o
}

func (o *Oscillator) SetSampleRate(sampleRate int) {
	o.sampleRate = float64(sampleRate)
	o.twoPiRate = twoPi / o.sampleRate
}

func (o *Oscillator) SetWaveform(w Waveform) {
	if w < WaveSine || w > WaveRandom {
		w = WaveSaw
	}
	o.waveform = w
}

func (o *Oscillator) Waveform() Waveform { return o.waveform }

// SetSync enables hard sync. While enabled the phase snaps to zero each
// time the sync frequency passed to Process completes a cycle.
func (o *Oscillator) SetSync(enabled bool) {
	o.sync = enabled
}

// Reset zeroes the phase. The next block starts directly at its
// requested frequency.
func (o *Oscillator) Reset() {
	o.rads = 0
	o.syncRads = 0
	o.freq = -1
	o.randomCount = 0
}

// Process fills buf. pw is the pulse width (or saw shape) in [-1, 1];
// syncFreq is the master frequency used when sync is enabled.
func (o *Oscillator) Process(buf []float32, freqHz, pw, syncFreq float64) {
	if len(buf) == 0 {
		return
	}
	start := o.freq
	if start < 0 {
		start = freqHz
	}
	o.f = start
	o.step = (freqHz - start) / float64(len(buf))
	o.syncFreq = syncFreq

	switch o.waveform {
	case WaveSine:
		o.doSine(buf)
	case WavePulse:
		o.doPulse(buf, pw)
	case WaveSaw:
		o.doSaw(buf, pw)
	case WaveNoise:
		o.doNoise(buf)
	case WaveRandom:
		o.doRandom(buf)
	}
	o.freq = freqHz
}

func (o *Oscillator) nextFreq() float64 {
	o.f += o.step
	return o.f
}

func (o *Oscillator) advance(radsPer float64) {
	o.rads += radsPer
	if o.rads >= twoPi {
		o.rads = math.Mod(o.rads, twoPi)
	}
	o.advanceSync()
}

// advanceSync reports whether the sync master wrapped this sample.
func (o *Oscillator) advanceSync() bool {
	if !o.sync || o.syncFreq <= 0 {
		return false
	}
	o.syncRads += o.twoPiRate * o.syncFreq
	if o.syncRads < twoPi {
		return false
	}
	o.syncRads = math.Mod(o.syncRads, twoPi)
	o.rads = 0
	return true
}

func (o *Oscillator) doSine(buf []float32) {
	for i := range buf {
		o.advance(o.twoPiRate * o.nextFreq())
		buf[i] = float32(math.Sin(o.rads))
	}
}

// doPulse integrates each edge over the sample it falls in so the
// transitions are band-limited to first order.
func (o *Oscillator) doPulse(buf []float32, pw float64) {
	if pw > 0.9 {
		pw = 0.9
	}
	if pw < -0.9 {
		pw = -0.9
	}
	for i := range buf {
		radsPer := o.twoPiRate * o.nextFreq()
		if radsPer <= 0 {
			buf[i] = 0
			continue
		}
		// Narrow the usable width near Nyquist so both edges stay
		// further than a sample apart.
		scale := 1.0
		if radsPer > 0.3 {
			scale = 1 - (radsPer-0.3)/2
			if scale < 0 {
				scale = 0
			}
		}
		edge := math.Pi + scale*math.Pi*pw

		o.rads += radsPer
		synced := o.advanceSync()
		var y float64
		switch {
		case synced:
			y = 1
		case o.rads >= twoPi:
			o.rads -= twoPi
			if o.rads >= twoPi {
				o.rads = math.Mod(o.rads, twoPi)
			}
			frac := o.rads / radsPer
			y = 2*frac - 1
		case o.rads <= edge:
			y = 1
		case o.rads-radsPer < edge:
			frac := (o.rads - edge) / radsPer
			y = 1 - 2*frac
		default:
			y = -1
		}
		buf[i] = float32(y)
	}
}

// doSaw produces a variable-slope triangle: pw=0 gives a rising saw,
// pw=1 a symmetric triangle. The peak never sits closer than two
// samples to the end of the cycle.
func (o *Oscillator) doSaw(buf []float32, pw float64) {
	shape := clamp(pw, -1, 1)
	for i := range buf {
		f := o.nextFreq()
		inc := f / o.sampleRate
		peak := 1 - 0.5*math.Abs(shape)
		if limit := 1 - 2*inc; peak > limit {
			peak = limit
		}
		if peak < 0.5 {
			peak = 0.5
		}
		o.advance(o.twoPiRate * f)
		t := o.rads / twoPi
		var y float64
		if t < peak {
			y = 2*t/peak - 1
		} else {
			y = 1 - 2*(t-peak)/(1-peak)
		}
		if shape < 0 {
			y = -y
		}
		buf[i] = float32(y)
	}
}

func (o *Oscillator) noise() float32 {
	o.seed = o.seed*196314165 + 907633515
	return float32(int32(o.seed)) * (1.0 / 2147483648.0)
}

func (o *Oscillator) doNoise(buf []float32) {
	for i := range buf {
		o.nextFreq()
		buf[i] = o.noise()
	}
}

// doRandom holds a new random value for one period of the frequency.
func (o *Oscillator) doRandom(buf []float32) {
	for i := range buf {
		f := o.nextFreq()
		period := math.MaxInt32
		if f > 0 {
			period = int(o.sampleRate / f)
			if period < 1 {
				period = 1
			}
		}
		if o.randomCount == 0 {
			o.randomValue = o.noise()
		}
		o.randomCount++
		if o.randomCount >= period {
			o.randomCount = 0
		}
		buf[i] = o.randomValue
	}
}
