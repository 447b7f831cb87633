package dsp

import "math"

const twoPi = math.Pi * 2

// OnePole is a first-order low-pass used for declicking gain and
// control signals.
type OnePole struct {
	a float64
	z float64
}

// NewOnePole returns a low-pass with the given -3 dB cutoff.
func NewOnePole(cutoffHz, sampleRate float64) OnePole {
	var f OnePole
	f.SetCutoff(cutoffHz, sampleRate)
	return f
}

func (f *OnePole) SetCutoff(cutoffHz, sampleRate float64) {
	if cutoffHz <= 0 || sampleRate <= 0 {
		f.a = 0
		return
	}
	f.a = math.Exp(-twoPi * cutoffHz / sampleRate)
}

func (f *OnePole) Process(x float64) float64 {
	f.z = (1-f.a)*x + f.a*f.z
	return f.z
}

// Reset sets the filter state, so the next output starts from v.
func (f *OnePole) Reset(v float64) {
	f.z = v
}

// Value is the last output.
func (f *OnePole) Value() float64 {
	return f.z
}
