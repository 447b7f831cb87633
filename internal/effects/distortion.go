package effects

import "math"

// Distortion is a power-law waveshaper: y = sign(x)*|x|^(1-crunch).
// Crunch 0 passes the signal unchanged.
type Distortion struct {
	crunch float32
	exp    float64
}

func NewDistortion(crunch float32) *Distortion {
	d := &Distortion{}
	d.SetCrunch(crunch)
	return d
}

// SetCrunch takes a value in [0, 0.9].
func (d *Distortion) SetCrunch(crunch float32) {
	d.crunch = clamp(crunch, 0, 0.9)
	d.exp = 1 - float64(d.crunch)
}

func (d *Distortion) Crunch() float32 { return d.crunch }

func (d *Distortion) shape(x float32) float32 {
	if d.crunch == 0 || x == 0 {
		return x
	}
	y := float32(math.Pow(math.Abs(float64(x)), d.exp))
	if x < 0 {
		return -y
	}
	return y
}

// ProcessBuffer shapes a mono buffer in place.
func (d *Distortion) ProcessBuffer(buf []float32) {
	if d.crunch == 0 {
		return
	}
	for i, v := range buf {
		buf[i] = d.shape(v)
	}
}

func (d *Distortion) Process(l, r float32) (float32, float32) {
	return d.shape(l), d.shape(r)
}

func (d *Distortion) Reset() {}
