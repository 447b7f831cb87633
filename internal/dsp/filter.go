package dsp

import (
	"math"

	"github.com/cwbudde/algo-dsp/dsp/filter/biquad"
	dspcore "github.com/cwbudde/algo-dsp/dsp/core"
)

// FilterType selects the response of the voice filter.
type FilterType int

const (
	FilterLowPass FilterType = iota
	FilterHighPass
	FilterBandPass
	FilterBandStop
	FilterBypass
)

// FilterSlope is the rolloff: one or two cascaded 2-pole stages.
type FilterSlope int

const (
	Slope12 FilterSlope = iota
	Slope24
)

const minCutoffHz = 10.0

// Filter is a resonant 2-pole section (optionally doubled) in transposed
// direct form II. Coefficients are recomputed once per block.
type Filter struct {
	sampleRate float64
	nyquist    float64
	coeffs     biquad.Coefficients

	d1, d2 float64
	d3, d4 float64
}

func NewFilter(sampleRate int) *Filter {
	f := &Filter{}
	f.SetSampleRate(sampleRate)
	return f
}

func (f *Filter) SetSampleRate(sampleRate int) {
	f.sampleRate = float64(sampleRate)
	f.nyquist = f.sampleRate / 2
}

func (f *Filter) Reset() {
	f.d1, f.d2, f.d3, f.d4 = 0, 0, 0, 0
}

// Coefficients returns the section computed by the last Process call.
func (f *Filter) Coefficients() biquad.Coefficients {
	return f.coeffs
}

// Process filters buf in place. res is in [0, 1); higher is sharper.
func (f *Filter) Process(buf []float32, cutoffHz, res float64, typ FilterType, slope FilterSlope) {
	if typ == FilterBypass || len(buf) == 0 {
		return
	}
	f.coeffs = f.design(cutoffHz, res, typ)
	c := f.coeffs

	for i, s := range buf {
		x := float64(s)
		y := c.B0*x + f.d1
		f.d1 = f.d2 + c.B1*x - c.A1*y
		f.d2 = c.B2*x - c.A2*y
		if slope == Slope24 {
			x = y
			y = c.B0*x + f.d3
			f.d3 = f.d4 + c.B1*x - c.A1*y
			f.d4 = c.B2*x - c.A2*y
		}
		buf[i] = float32(y)
	}

	f.d1 = dspcore.FlushDenormals(f.d1)
	f.d2 = dspcore.FlushDenormals(f.d2)
	f.d3 = dspcore.FlushDenormals(f.d3)
	f.d4 = dspcore.FlushDenormals(f.d4)
}

func (f *Filter) design(cutoffHz, res float64, typ FilterType) biquad.Coefficients {
	cutoff := clamp(cutoffHz, minCutoffHz, f.nyquist*0.99)
	r := 2 * (1 - clamp(res, 0, 0.995))
	k := math.Tan(cutoff * math.Pi / f.sampleRate)
	k2 := k * k
	bh := 1 + r*k + k2

	c := biquad.Coefficients{
		A1: 2 * (k2 - 1) / bh,
		A2: (1 - r*k + k2) / bh,
	}
	switch typ {
	case FilterLowPass:
		c.B0 = k2 / bh
		c.B1 = 2 * c.B0
		c.B2 = c.B0
	case FilterHighPass:
		c.B0 = 1 / bh
		c.B1 = -2 / bh
		c.B2 = c.B0
	case FilterBandPass:
		c.B0 = r * k / bh
		c.B2 = -c.B0
	case FilterBandStop:
		c.B0 = (1 + k2) / bh
		c.B1 = 2 * (k2 - 1) / bh
		c.B2 = c.B0
	}
	return c
}
