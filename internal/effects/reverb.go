package effects

import dspcore "github.com/cwbudde/algo-dsp/dsp/core"

// Freeverb tuning, in samples at 44.1kHz.
var (
	combTuning    = [8]int{1116, 1188, 1277, 1356, 1422, 1491, 1557, 1617}
	allpassTuning = [4]int{556, 441, 341, 225}
)

const (
	stereoSpread = 23
	fixedGain    = 0.015
	scaleWet     = 3
	scaleDamp    = 0.4
	scaleRoom    = 0.28
	offsetRoom   = 0.7
)

// Reverb is a Schroeder/Moorer reverb in the Freeverb layout: eight
// damped comb filters in parallel feeding four allpasses, with a second
// set offset in length for the right channel.
type Reverb struct {
	combL    [8]combFilter
	combR    [8]combFilter
	allpassL [4]allpassFilter
	allpassR [4]allpassFilter

	roomSize float32
	damp     float32
	wet      float32
	width    float32

	wet1, wet2, dry float32
}

type combFilter struct {
	buf      []float32
	pos      int
	feedback float32
	store    float32
	damp1    float32
	damp2    float32
}

type allpassFilter struct {
	buf []float32
	pos int
}

// NewReverb allocates delay lines for sampleRate. All parameters are in
// [0, 1]; wet 0 leaves the signal dry.
func NewReverb(sampleRate int, roomSize, damp, wet, width float32) *Reverb {
	r := &Reverb{}
	scale := float64(sampleRate) / 44100
	for i := range combTuning {
		r.combL[i].buf = make([]float32, scaled(combTuning[i], scale))
		r.combR[i].buf = make([]float32, scaled(combTuning[i]+stereoSpread, scale))
	}
	for i := range allpassTuning {
		r.allpassL[i].buf = make([]float32, scaled(allpassTuning[i], scale))
		r.allpassR[i].buf = make([]float32, scaled(allpassTuning[i]+stereoSpread, scale))
	}
	r.roomSize = clamp(roomSize, 0, 1)
	r.damp = clamp(damp, 0, 1)
	r.wet = clamp(wet, 0, 1)
	r.width = clamp(width, 0, 1)
	r.update()
	return r
}

func scaled(n int, scale float64) int {
	return max(int(float64(n)*scale), 1)
}

func (r *Reverb) SetRoomSize(v float32) {
	r.roomSize = clamp(v, 0, 1)
	r.update()
}

func (r *Reverb) SetDamp(v float32) {
	r.damp = clamp(v, 0, 1)
	r.update()
}

func (r *Reverb) SetWet(v float32) {
	r.wet = clamp(v, 0, 1)
	r.update()
}

func (r *Reverb) SetWidth(v float32) {
	r.width = clamp(v, 0, 1)
	r.update()
}

// Settings returns room size, damping, wet level and width.
func (r *Reverb) Settings() (roomSize, damp, wet, width float32) {
	return r.roomSize, r.damp, r.wet, r.width
}

func (r *Reverb) update() {
	w := r.wet * scaleWet
	r.wet1 = w * (r.width/2 + 0.5)
	r.wet2 = w * ((1 - r.width) / 2)
	r.dry = 1 - r.wet

	fb := r.roomSize*scaleRoom + offsetRoom
	d := r.damp * scaleDamp
	for i := range r.combL {
		r.combL[i].feedback, r.combL[i].damp1, r.combL[i].damp2 = fb, d, 1-d
		r.combR[i].feedback, r.combR[i].damp1, r.combR[i].damp2 = fb, d, 1-d
	}
}

func (r *Reverb) Process(l, r2 float32) (float32, float32) {
	if r.wet == 0 {
		return l, r2
	}
	in := (l + r2) * fixedGain
	var outL, outR float32
	for i := range r.combL {
		outL += r.combL[i].process(in)
		outR += r.combR[i].process(in)
	}
	for i := range r.allpassL {
		outL = r.allpassL[i].process(outL)
		outR = r.allpassR[i].process(outR)
	}
	return l*r.dry + outL*r.wet1 + outR*r.wet2,
		r2*r.dry + outR*r.wet1 + outL*r.wet2
}

func (r *Reverb) Reset() {
	for i := range r.combL {
		r.combL[i].reset()
		r.combR[i].reset()
	}
	for i := range r.allpassL {
		clear(r.allpassL[i].buf)
		clear(r.allpassR[i].buf)
		r.allpassL[i].pos = 0
		r.allpassR[i].pos = 0
	}
}

func (c *combFilter) process(in float32) float32 {
	out := c.buf[c.pos]
	c.store = float32(dspcore.FlushDenormals(float64(out*c.damp2 + c.store*c.damp1)))
	c.buf[c.pos] = in + c.store*c.feedback
	c.pos++
	if c.pos >= len(c.buf) {
		c.pos = 0
	}
	return out
}

func (c *combFilter) reset() {
	clear(c.buf)
	c.pos = 0
	c.store = 0
}

func (a *allpassFilter) process(in float32) float32 {
	bufOut := a.buf[a.pos]
	out := -in + bufOut
	a.buf[a.pos] = in + bufOut*0.5
	a.pos++
	if a.pos >= len(a.buf) {
		a.pos = 0
	}
	return out
}
