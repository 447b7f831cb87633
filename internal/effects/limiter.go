package effects

import "math"

// Limiter is a stereo-linked peak limiter: a compressor with an infinite
// ratio followed by a hard ceiling, so the bus never leaves [-1, 1].
type Limiter struct {
	threshold float32
	attack    float32 // coefficient
	release   float32 // coefficient
	env       float32
}

// NewLimiter creates a limiter.
// thresholdDB: ceiling in dBFS (e.g., -0.3)
// attackMs: attack time in ms
// releaseMs: release time in ms
func NewLimiter(sampleRate int, thresholdDB, attackMs, releaseMs float32) *Limiter {
	sr := float64(sampleRate)
	return &Limiter{
		threshold: float32(math.Pow(10, float64(thresholdDB)/20)),
		attack:    float32(1.0 - math.Exp(-1.0/(float64(attackMs)*sr/1000.0))),
		release:   float32(1.0 - math.Exp(-1.0/(float64(releaseMs)*sr/1000.0))),
	}
}

func (lim *Limiter) Process(l, r float32) (float32, float32) {
	peak := max(abs32(l), abs32(r))
	// Envelope follower
	if peak > lim.env {
		lim.env += lim.attack * (peak - lim.env)
	} else {
		lim.env += lim.release * (peak - lim.env)
	}
	gain := lim.Gain()
	ceil := lim.threshold
	return clamp(l*gain, -ceil, ceil), clamp(r*gain, -ceil, ceil)
}

// Gain is the current gain reduction factor in (0, 1].
func (lim *Limiter) Gain() float32 {
	if lim.env <= lim.threshold {
		return 1
	}
	return lim.threshold / lim.env
}

func (lim *Limiter) Reset() {
	lim.env = 0
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
