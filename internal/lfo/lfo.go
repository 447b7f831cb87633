package lfo

import "math"

// Waveform selects the LFO shape. The order matches the lfo_waveform
// parameter.
type Waveform int

const (
	WaveSine Waveform = iota
	WaveSquare
	WaveTriangle
	WaveNoise
	WaveRandom
	WaveSawUp
	WaveSawDown
)

// NumWaveforms is the number of selectable shapes.
const NumWaveforms = 7

// LFO is a low-frequency oscillator producing a block of modulation in
// [-1, 1]. Each voice owns one so that its phase restarts with the note.
type LFO struct {
	sampleRate float64
	waveform   Waveform
	phase      float64 // current phase [0, 1)
	held       float64 // value held by the sample-and-hold shape
	seed       uint32
}

func New(sampleRate int, seed uint32) *LFO {
	return &LFO{sampleRate: float64(sampleRate), seed: seed | 1}
}

func (l *LFO) SetSampleRate(sampleRate int) {
	l.sampleRate = float64(sampleRate)
}

// SetWaveform selects the shape; out-of-range values fall back to sine.
func (l *LFO) SetWaveform(w Waveform) {
	if w < 0 || w >= NumWaveforms {
		w = WaveSine
	}
	l.waveform = w
}

func (l *LFO) Waveform() Waveform { return l.waveform }

// Reset zeros the phase and draws a fresh held value.
func (l *LFO) Reset() {
	l.phase = 0
	l.held = l.random()
}

// Process writes len(dst) samples at rateHz.
func (l *LFO) Process(dst []float32, rateHz float64) {
	inc := 0.0
	if l.sampleRate > 0 {
		inc = rateHz / l.sampleRate
	}
	for i := range dst {
		dst[i] = float32(l.sample())

		old := l.phase
		l.phase += inc
		if l.phase >= 1 {
			l.phase -= math.Floor(l.phase)
		}
		// sample-and-hold redraws at each cycle boundary
		if l.waveform == WaveRandom && l.phase < old {
			l.held = l.random()
		}
	}
}

func (l *LFO) sample() float64 {
	switch l.waveform {
	case WaveSquare:
		if l.phase < 0.5 {
			return 1
		}
		return -1
	case WaveTriangle:
		if l.phase < 0.5 {
			return 4*l.phase - 1
		}
		return 3 - 4*l.phase
	case WaveNoise:
		return l.random()
	case WaveRandom:
		return l.held
	case WaveSawUp:
		return 2*l.phase - 1
	case WaveSawDown:
		return 1 - 2*l.phase
	default:
		return math.Sin(2 * math.Pi * l.phase)
	}
}

func (l *LFO) random() float64 {
	l.seed = l.seed*196314165 + 907633515
	return float64(int32(l.seed)) / 2147483648.0
}
