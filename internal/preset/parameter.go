package preset

import (
	"math"
	"strconv"
)

// Listener is told about every value change with the parameter's new
// control value. Callbacks run synchronously on the caller's goroutine,
// which is the render goroutine during playback.
type Listener interface {
	ParameterDidChange(id ParamID, controlValue float64)
}

// MaxListeners bounds the subscribers per parameter so notification never
// allocates.
const MaxListeners = 4

// Parameter is one value of a Preset.
type Parameter struct {
	id    ParamID
	spec  *Spec
	value float64

	listeners  [MaxListeners]Listener
	nListeners int
}

func newParameter(id ParamID) Parameter {
	s := &specs[id]
	return Parameter{id: id, spec: s, value: s.Default}
}

func (p *Parameter) ID() ParamID          { return p.id }
func (p *Parameter) Name() string         { return p.spec.Name }
func (p *Parameter) Label() string        { return p.spec.Label }
func (p *Parameter) Min() float64         { return p.spec.Min }
func (p *Parameter) Max() float64         { return p.spec.Max }
func (p *Parameter) Step() float64        { return p.spec.Step }
func (p *Parameter) Default() float64     { return p.spec.Default }
func (p *Parameter) Value() float64       { return p.value }
func (p *Parameter) Spec() *Spec          { return p.spec }
func (p *Parameter) IsEnum() bool         { return p.spec.ValueNames != nil }
func (p *Parameter) ValueNames() []string { return p.spec.ValueNames }

// Steps is the number of discrete values, or 0 for a continuous parameter.
func (p *Parameter) Steps() int {
	if p.spec.Step <= 0 {
		return 0
	}
	return int(math.Round((p.spec.Max-p.spec.Min)/p.spec.Step)) + 1
}

// SetValue clamps v to the declared range, snaps it to the step grid and
// notifies listeners if the result differs from the current value.
func (p *Parameter) SetValue(v float64) {
	if math.IsNaN(v) {
		return
	}
	s := p.spec
	if s.Step > 0 {
		v = s.Min + math.Round((v-s.Min)/s.Step)*s.Step
	}
	if v < s.Min {
		v = s.Min
	}
	if v > s.Max {
		v = s.Max
	}
	if v == p.value {
		return
	}
	p.value = v
	p.Notify()
}

// NormalizedValue maps the value into [0, 1].
func (p *Parameter) NormalizedValue() float64 {
	return (p.value - p.spec.Min) / (p.spec.Max - p.spec.Min)
}

func (p *Parameter) SetNormalizedValue(n float64) {
	p.SetValue(p.spec.Min + n*(p.spec.Max-p.spec.Min))
}

// ControlValue is the value after the parameter's law has been applied.
func (p *Parameter) ControlValue() float64 {
	return p.spec.control(p.value)
}

// Display renders the value for a user: the step name for enumerated
// parameters, otherwise the control value and its label.
func (p *Parameter) Display() string {
	s := p.spec
	if s.ValueNames != nil {
		i := int(math.Round(p.value - s.Min))
		if i >= 0 && i < len(s.ValueNames) {
			return s.ValueNames[i]
		}
	}
	v := p.ControlValue()
	if s.ShowValue {
		v = p.value
	}
	str := strconv.FormatFloat(v, 'g', 4, 64)
	if s.Label != "" {
		str += " " + s.Label
	}
	return str
}

// AddListener subscribes l. It reports false when the list is full.
func (p *Parameter) AddListener(l Listener) bool {
	for i := 0; i < p.nListeners; i++ {
		if p.listeners[i] == l {
			return true
		}
	}
	if p.nListeners == MaxListeners {
		return false
	}
	p.listeners[p.nListeners] = l
	p.nListeners++
	return true
}

func (p *Parameter) RemoveListener(l Listener) {
	for i := 0; i < p.nListeners; i++ {
		if p.listeners[i] != l {
			continue
		}
		copy(p.listeners[i:], p.listeners[i+1:p.nListeners])
		p.nListeners--
		p.listeners[p.nListeners] = nil
		return
	}
}

// Notify pushes the current control value to every listener.
func (p *Parameter) Notify() {
	if p.nListeners == 0 {
		return
	}
	cv := p.ControlValue()
	for i := 0; i < p.nListeners; i++ {
		p.listeners[i].ParameterDidChange(p.id, cv)
	}
}
