// Package effects holds the master-bus processors that run after the
// voices are mixed.
package effects

// Effector transforms one stereo frame. Reset clears any internal
// state such as delay lines or envelope followers.
type Effector interface {
	Process(l, r float32) (float32, float32)
	Reset()
}

// Chain runs a fixed series of effects, first to last.
type Chain struct {
	stages []Effector
}

func NewChain(stages ...Effector) *Chain {
	return &Chain{stages: stages}
}

func (c *Chain) Len() int { return len(c.stages) }

func (c *Chain) Process(l, r float32) (float32, float32) {
	for _, e := range c.stages {
		l, r = e.Process(l, r)
	}
	return l, r
}

// ProcessFrames runs n frames in place. Frame i is left[i*stride] and
// right[i*stride], so planar and interleaved buffers both work.
func (c *Chain) ProcessFrames(left, right []float32, n, stride int) {
	for i := 0; i < n; i++ {
		j := i * stride
		left[j], right[j] = c.Process(left[j], right[j])
	}
}

func (c *Chain) Reset() {
	for _, e := range c.stages {
		e.Reset()
	}
}

func clamp(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
