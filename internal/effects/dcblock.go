package effects

import (
	"math"

	"github.com/cwbudde/algo-dsp/dsp/filter/biquad"
	"github.com/cwbudde/algo-dsp/dsp/filter/design"
)

// DCBlocker removes the offset asymmetric waveshaping can leave on the
// bus. It is a 2nd-order Butterworth high-pass well below the audio band.
type DCBlocker struct {
	section *biquad.Section
}

// NewDCBlocker passes audio through untouched when cutoffHz is not
// below Nyquist.
func NewDCBlocker(sampleRate int, cutoffHz float64) *DCBlocker {
	c := biquad.Coefficients{B0: 1}
	if sr := float64(sampleRate); cutoffHz > 0 && cutoffHz < sr/2 {
		c = design.Highpass(cutoffHz, 1/math.Sqrt2, sr)
	}
	return &DCBlocker{section: biquad.NewSection(c)}
}

// ProcessBuffer filters a mono buffer in place.
func (d *DCBlocker) ProcessBuffer(buf []float32) {
	for i, v := range buf {
		buf[i] = float32(d.section.ProcessSample(float64(v)))
	}
}

func (d *DCBlocker) Reset() {
	d.section.Reset()
}
