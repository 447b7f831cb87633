package midi

import (
	"errors"
	"fmt"

	"github.com/cbegin/amsynth-go/internal/preset"
)

// NumControllers is the number of MIDI continuous controllers.
const NumControllers = 128

// NoParam marks a controller with no parameter assigned.
const NoParam preset.ParamID = -1

// ControllerMap is a two-way assignment between MIDI controllers and
// parameters. A controller drives at most one parameter and a parameter
// is driven by at most one controller.
type ControllerMap struct {
	ccToParam [NumControllers]preset.ParamID
	paramToCC [preset.ParamCount]int
}

// NewControllerMap returns a map holding the default assignments:
// modulation wheel to LFO pitch depth and channel volume to master volume.
func NewControllerMap() *ControllerMap {
	m := &ControllerMap{}
	m.Reset()
	return m
}

// Clear removes every assignment.
func (m *ControllerMap) Clear() {
	for i := range m.ccToParam {
		m.ccToParam[i] = NoParam
	}
	for i := range m.paramToCC {
		m.paramToCC[i] = -1
	}
}

// Reset restores the default assignments.
func (m *ControllerMap) Reset() {
	m.Clear()
	m.Set(1, preset.FreqModAmount)
	m.Set(7, preset.MasterVolume)
}

// Set assigns cc to id, dropping whatever either side was previously
// assigned to. Passing NoParam unassigns cc.
func (m *ControllerMap) Set(cc int, id preset.ParamID) {
	if cc < 0 || cc >= NumControllers {
		return
	}
	if old := m.ccToParam[cc]; old != NoParam {
		m.paramToCC[old] = -1
	}
	m.ccToParam[cc] = NoParam
	if id < 0 || id >= preset.ParamCount {
		return
	}
	if old := m.paramToCC[id]; old >= 0 {
		m.ccToParam[old] = NoParam
	}
	m.ccToParam[cc] = id
	m.paramToCC[id] = cc
}

// Unassign removes the controller assigned to id, if any.
func (m *ControllerMap) Unassign(id preset.ParamID) {
	if id < 0 || id >= preset.ParamCount {
		return
	}
	if cc := m.paramToCC[id]; cc >= 0 {
		m.ccToParam[cc] = NoParam
		m.paramToCC[id] = -1
	}
}

// Parameter returns the parameter assigned to cc.
func (m *ControllerMap) Parameter(cc int) (preset.ParamID, bool) {
	if cc < 0 || cc >= NumControllers || m.ccToParam[cc] == NoParam {
		return NoParam, false
	}
	return m.ccToParam[cc], true
}

// Controller returns the controller assigned to id.
func (m *ControllerMap) Controller(id preset.ParamID) (int, bool) {
	if id < 0 || id >= preset.ParamCount || m.paramToCC[id] < 0 {
		return -1, false
	}
	return m.paramToCC[id], true
}

// Names returns the assignments keyed by parameter name, the form they
// are persisted in.
func (m *ControllerMap) Names() map[string]int {
	out := make(map[string]int)
	for id, cc := range m.paramToCC {
		if cc >= 0 {
			out[preset.ParamID(id).String()] = cc
		}
	}
	return out
}

// SetNames replaces the map with assignments keyed by parameter name.
// Entries naming an unknown parameter or an invalid controller are
// skipped and reported together in the returned error.
func (m *ControllerMap) SetNames(names map[string]int) error {
	m.Clear()
	var errs []error
	for name, cc := range names {
		id, ok := preset.IDForName(name)
		if !ok {
			errs = append(errs, fmt.Errorf("midi: unknown parameter %q", name))
			continue
		}
		if cc < 0 || cc >= NumControllers {
			errs = append(errs, fmt.Errorf("midi: controller %d for %s out of range", cc, name))
			continue
		}
		m.Set(cc, id)
	}
	return errors.Join(errs...)
}
