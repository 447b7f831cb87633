package dsp

// Smoother ramps linearly from its current value to a target over a fixed
// number of samples. Values that can jump in the middle of a block (mix
// levels, modulation amounts) are read through one of these.
type Smoother struct {
	current float64
	target  float64
	step    float64
	left    int
	ramp    int
}

// NewSmoother returns a smoother resting at value that ramps over
// rampSamples samples on every SetTarget.
func NewSmoother(rampSamples int, value float64) Smoother {
	return Smoother{current: value, target: value, ramp: rampSamples}
}

// SetRamp changes the ramp length used by later SetTarget calls.
func (s *Smoother) SetRamp(rampSamples int) {
	s.ramp = rampSamples
}

func (s *Smoother) SetTarget(v float64) {
	s.Ramp(s.current, v, s.ramp)
}

// Ramp starts a linear ramp from 'from' to 'to' lasting frames samples.
// A non-positive length jumps straight to 'to'.
func (s *Smoother) Ramp(from, to float64, frames int) {
	s.target = to
	if frames <= 0 || from == to {
		s.current = to
		s.left = 0
		return
	}
	s.current = from
	s.step = (to - from) / float64(frames)
	s.left = frames
}

// Snap finishes any ramp in progress.
func (s *Smoother) Snap() {
	s.current = s.target
	s.left = 0
}

// Reset jumps to v with no ramp.
func (s *Smoother) Reset(v float64) {
	s.current = v
	s.target = v
	s.left = 0
}

// Next advances one sample and returns the new value.
func (s *Smoother) Next() float64 {
	if s.left > 0 {
		s.current += s.step
		s.left--
		if s.left == 0 {
			s.current = s.target
		}
	}
	return s.current
}

// Advance moves the ramp forward by n samples at once.
func (s *Smoother) Advance(n int) {
	if s.left == 0 || n <= 0 {
		return
	}
	if n >= s.left {
		s.Snap()
		return
	}
	s.current += s.step * float64(n)
	s.left -= n
}

func (s *Smoother) Value() float64  { return s.current }
func (s *Smoother) Target() float64 { return s.target }
func (s *Smoother) Ramping() bool   { return s.left > 0 }
