// Package preset holds synthesis parameters, presets, banks of presets
// and the controller that tracks which preset is live.
package preset

import (
	"bufio"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrBadFormat is returned (wrapped) for preset or bank text that cannot
// be parsed.
var ErrBadFormat = errors.New("preset: bad format")

const (
	presetTag    = "<preset>"
	nameTag      = "<name>"
	parameterTag = "<parameter>"

	// DefaultName is given to empty bank slots.
	DefaultName = "New Preset"
)

// Preset is a named set of every parameter.
type Preset struct {
	name   string
	params [ParamCount]Parameter
}

// New returns a preset with every parameter at its default.
func New(name string) *Preset {
	p := &Preset{name: name}
	for i := range p.params {
		p.params[i] = newParameter(ParamID(i))
	}
	return p
}

func (p *Preset) Name() string        { return p.name }
func (p *Preset) SetName(name string) { p.name = name }

// Parameter returns the parameter for id, or nil if id is out of range.
func (p *Preset) Parameter(id ParamID) *Parameter {
	if id < 0 || id >= ParamCount {
		return nil
	}
	return &p.params[id]
}

func (p *Preset) ParameterByName(name string) *Parameter {
	id, ok := IDForName(name)
	if !ok {
		return nil
	}
	return &p.params[id]
}

// AddListener subscribes l to every parameter.
func (p *Preset) AddListener(l Listener) bool {
	ok := true
	for i := range p.params {
		ok = p.params[i].AddListener(l) && ok
	}
	return ok
}

func (p *Preset) RemoveListener(l Listener) {
	for i := range p.params {
		p.params[i].RemoveListener(l)
	}
}

// NotifyAll pushes every parameter's control value to its listeners.
func (p *Preset) NotifyAll() {
	for i := range p.params {
		p.params[i].Notify()
	}
}

// CopyFrom takes src's name and values. Listeners stay attached to p and
// hear about every value that changed.
func (p *Preset) CopyFrom(src *Preset) {
	p.CopyFromIgnoring(src, nil)
}

// CopyFromIgnoring is CopyFrom but leaves the parameters flagged in
// ignore untouched.
func (p *Preset) CopyFromIgnoring(src *Preset, ignore *[ParamCount]bool) {
	p.name = src.name
	for i := range p.params {
		if ignore != nil && ignore[i] {
			continue
		}
		p.params[i].SetValue(src.params[i].value)
	}
}

// IsEqual compares values, not names.
func (p *Preset) IsEqual(other *Preset) bool {
	for i := range p.params {
		if p.params[i].value != other.params[i].value {
			return false
		}
	}
	return true
}

// ResetToDefaults restores every parameter to its default value.
func (p *Preset) ResetToDefaults() {
	for i := range p.params {
		p.params[i].SetValue(p.params[i].spec.Default)
	}
}

// String serialises the preset in bank-file syntax.
func (p *Preset) String() string {
	var b strings.Builder
	p.write(&b)
	return b.String()
}

func (p *Preset) write(b *strings.Builder) {
	fmt.Fprintf(b, "%s %s %s\n", presetTag, nameTag, p.name)
	for i := range p.params {
		fmt.Fprintf(b, "%s %s %s\n", parameterTag, p.params[i].spec.Name, formatValue(p.params[i].value))
	}
}

// FromString loads a preset written by String. Parameters the text does
// not mention are reset to their defaults; unknown names are ignored.
// On error p is unchanged.
func (p *Preset) FromString(s string) error {
	tmp := New("")
	started := false
	sc := bufio.NewScanner(strings.NewReader(s))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if name, ok := parsePresetLine(line); ok {
			if started {
				return fmt.Errorf("%w: more than one preset", ErrBadFormat)
			}
			tmp.name = name
			started = true
			continue
		}
		if !started {
			return fmt.Errorf("%w: %q before %s", ErrBadFormat, line, presetTag)
		}
		if err := tmp.applyParameterLine(line); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return err
	}
	if !started {
		return fmt.Errorf("%w: no %s line", ErrBadFormat, presetTag)
	}
	p.CopyFrom(tmp)
	return nil
}

func parsePresetLine(line string) (string, bool) {
	rest, ok := strings.CutPrefix(line, presetTag)
	if !ok {
		return "", false
	}
	rest = strings.TrimSpace(rest)
	rest, _ = strings.CutPrefix(rest, nameTag)
	return strings.TrimSpace(rest), true
}

func (p *Preset) applyParameterLine(line string) error {
	fields := strings.Fields(line)
	if len(fields) != 3 || fields[0] != parameterTag {
		return fmt.Errorf("%w: bad parameter line %q", ErrBadFormat, line)
	}
	v, err := strconv.ParseFloat(fields[2], 64)
	if err != nil {
		return fmt.Errorf("%w: bad value in %q", ErrBadFormat, line)
	}
	if param := p.ParameterByName(fields[1]); param != nil {
		param.SetValue(v)
	}
	return nil
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
