package preset

import "math"

// ParamID identifies a synthesis parameter. The numeric order is also the
// order parameters are written to bank files.
type ParamID int

const (
	AmpAttack ParamID = iota
	AmpDecay
	AmpSustain
	AmpRelease
	Osc1Waveform
	FilterAttack
	FilterDecay
	FilterSustain
	FilterRelease
	FilterResonance
	FilterEnvAmount
	FilterCutoff
	Osc2Detune
	Osc2Waveform
	MasterVolume
	LFOFreq
	LFOWaveform
	Osc2Range
	OscMix
	FreqModAmount
	FilterModAmount
	AmpModAmount
	OscMixMode
	Osc1PulseWidth
	Osc2PulseWidth
	ReverbRoomSize
	ReverbDamp
	ReverbWet
	ReverbWidth
	DistortionCrunch
	Osc2Sync
	PortamentoTime
	KeyboardMode
	Osc2Pitch
	FilterType
	FilterSlope
	FreqModOsc
	FilterKbdTrack
	FilterVelSens
	AmpVelSens
	PortamentoMode

	ParamCount
)

// Law converts a stored value into the control value the DSP uses.
type Law int

const (
	LawLinear      Law = iota // base*v + offset
	LawExponential            // offset + base^v
	LawPower                  // offset + v^base
)

// Spec is the static description of a parameter.
type Spec struct {
	Name    string
	Label   string
	Min     float64
	Max     float64
	Default float64
	Step    float64
	Law     Law
	Base    float64
	Offset  float64

	// ValueNames labels each step of an enumerated parameter.
	ValueNames []string
	// ShowValue displays the stored value instead of the control value.
	ShowValue bool
}

func (s *Spec) control(v float64) float64 {
	switch s.Law {
	case LawExponential:
		return s.Offset + math.Pow(s.Base, v)
	case LawPower:
		return s.Offset + math.Pow(v, s.Base)
	default:
		return s.Base*v + s.Offset
	}
}

var (
	oscWaveNames  = []string{"sine", "pulse", "saw", "noise", "random"}
	lfoWaveNames  = []string{"sine", "square", "triangle", "noise", "random", "saw up", "saw down"}
	onOffNames    = []string{"off", "on"}
	kbdModeNames  = []string{"poly", "mono", "legato"}
	filterNames   = []string{"low pass", "high pass", "band pass", "notch", "bypass"}
	slopeNames    = []string{"12 dB", "24 dB"}
	modDestNames  = []string{"osc 1+2", "osc 1", "osc 2"}
	portModeNames = []string{"always", "legato"}
)

func timeSpec(name string) Spec {
	return Spec{Name: name, Label: "s", Max: 2.5, Law: LawPower, Base: 3, Offset: 0.0005}
}

func levelSpec(name string, def float64) Spec {
	return Spec{Name: name, Max: 1, Default: def, Base: 1}
}

func enumSpec(name string, def float64, names []string) Spec {
	return Spec{Name: name, Max: float64(len(names) - 1), Default: def, Step: 1, Base: 1, ValueNames: names}
}

var specs = [ParamCount]Spec{
	AmpAttack:        timeSpec("amp_attack"),
	AmpDecay:         timeSpec("amp_decay"),
	AmpSustain:       levelSpec("amp_sustain", 1),
	AmpRelease:       timeSpec("amp_release"),
	Osc1Waveform:     enumSpec("osc1_waveform", 2, oscWaveNames),
	FilterAttack:     timeSpec("filter_attack"),
	FilterDecay:      timeSpec("filter_decay"),
	FilterSustain:    levelSpec("filter_sustain", 1),
	FilterRelease:    timeSpec("filter_release"),
	FilterResonance:  {Name: "filter_resonance", Max: 0.97, Base: 1},
	FilterEnvAmount:  {Name: "filter_env_amount", Min: -16, Max: 16, Base: 1},
	FilterCutoff:     {Name: "filter_cutoff", Min: -0.5, Max: 1.5, Default: 1.5, Law: LawExponential, Base: 16},
	Osc2Detune:       {Name: "osc2_detune", Min: -1, Max: 1, Law: LawExponential, Base: 1.25},
	Osc2Waveform:     enumSpec("osc2_waveform", 2, oscWaveNames),
	MasterVolume:     {Name: "master_vol", Max: 1, Default: 0.67, Law: LawPower, Base: 2},
	LFOFreq:          {Name: "lfo_freq", Label: "Hz", Max: 7.5, Law: LawPower, Base: 2},
	LFOWaveform:      enumSpec("lfo_waveform", 0, lfoWaveNames),
	Osc2Range:        {Name: "osc2_range", Min: -3, Max: 4, Step: 1, Law: LawExponential, Base: 2, ShowValue: true},
	OscMix:           {Name: "osc_mix", Min: -1, Max: 1, Base: 1},
	FreqModAmount:    {Name: "freq_mod_amount", Max: 1.25992, Law: LawPower, Base: 3},
	FilterModAmount:  {Name: "filter_mod_amount", Min: -1, Max: 1, Default: -1, Base: 1},
	AmpModAmount:     {Name: "amp_mod_amount", Min: -1, Max: 1, Default: -1, Base: 1},
	OscMixMode:       levelSpec("osc_mix_mode", 0),
	Osc1PulseWidth:   levelSpec("osc1_pulsewidth", 0),
	Osc2PulseWidth:   levelSpec("osc2_pulsewidth", 0),
	ReverbRoomSize:   levelSpec("reverb_roomsize", 0),
	ReverbDamp:       levelSpec("reverb_damp", 0),
	ReverbWet:        levelSpec("reverb_wet", 0),
	ReverbWidth:      levelSpec("reverb_width", 1),
	DistortionCrunch: {Name: "distortion_crunch", Max: 0.9, Base: 1},
	Osc2Sync:         enumSpec("osc2_sync", 0, onOffNames),
	PortamentoTime:   {Name: "portamento_time", Label: "s", Max: 1, Base: 1},
	KeyboardMode:     enumSpec("keyboard_mode", 0, kbdModeNames),
	Osc2Pitch: {Name: "osc2_pitch", Label: "semitones", Min: -12, Max: 12, Step: 1,
		Law: LawExponential, Base: 1.0594630943592953, ShowValue: true},
	FilterType:     enumSpec("filter_type", 0, filterNames),
	FilterSlope:    enumSpec("filter_slope", 1, slopeNames),
	FreqModOsc:     enumSpec("freq_mod_osc", 0, modDestNames),
	FilterKbdTrack: levelSpec("filter_kbd_track", 1),
	FilterVelSens:  levelSpec("filter_vel_sens", 1),
	AmpVelSens:     levelSpec("amp_vel_sens", 1),
	PortamentoMode: enumSpec("portamento_mode", 0, portModeNames),
}

var nameToID = func() map[string]ParamID {
	m := make(map[string]ParamID, ParamCount)
	for i := range specs {
		m[specs[i].Name] = ParamID(i)
	}
	return m
}()

// SpecFor returns the static description of id, or nil if id is out of range.
func SpecFor(id ParamID) *Spec {
	if id < 0 || id >= ParamCount {
		return nil
	}
	return &specs[id]
}

// IDForName looks a parameter up by its bank-file name.
func IDForName(name string) (ParamID, bool) {
	id, ok := nameToID[name]
	return id, ok
}

func (id ParamID) String() string {
	if s := SpecFor(id); s != nil {
		return s.Name
	}
	return "unknown"
}
