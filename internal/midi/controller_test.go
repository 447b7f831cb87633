package midi

import (
	"fmt"
	"math"
	"reflect"
	"testing"

	gomidi "gitlab.com/gomidi/midi/v2"

	"github.com/cbegin/amsynth-go/internal/preset"
)

type recorder struct {
	calls []string
}

func (r *recorder) add(format string, args ...any) {
	r.calls = append(r.calls, fmt.Sprintf(format, args...))
}

func (r *recorder) HandleMidiNoteOn(note int, velocity float64) {
	r.add("on %d %.3f", note, velocity)
}

func (r *recorder) HandleMidiNoteOff(note int, velocity float64) {
	r.add("off %d", note)
}

func (r *recorder) HandleMidiSustainPedal(value uint8) { r.add("sustain %d", value) }
func (r *recorder) HandleMidiPitchWheel(value float64) { r.add("bend %.4f", value) }
func (r *recorder) HandleMidiPan(value float64)        { r.add("pan %.3f", value) }
func (r *recorder) HandleMidiAllSoundOff()             { r.add("sound off") }
func (r *recorder) HandleMidiAllNotesOff()             { r.add("notes off") }

func (r *recorder) HandleMidiPitchWheelSensitivity(semitones int) {
	r.add("bend range %d", semitones)
}

func newTestController() (*Controller, *recorder, *preset.Controller) {
	presets := preset.NewController()
	rec := &recorder{}
	return NewController(presets, rec), rec, presets
}

func TestParserDispatch(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		want []string
	}{
		{"note on", gomidi.NoteOn(0, 60, 127), []string{"on 60 1.000"}},
		{"note off", gomidi.NoteOff(0, 60), []string{"off 60"}},
		{"zero velocity note on", []byte{0x90, 64, 0}, []string{"off 64"}},
		{"running status", []byte{0x90, 60, 100, 62, 100, 60, 0}, []string{"on 60 0.787", "on 62 0.787", "off 60"}},
		{"realtime inside message", []byte{0x90, 60, 0xf8, 100}, []string{"on 60 0.787"}},
		{"sysex cancels status", []byte{0x90, 60, 100, 0xf0, 1, 2, 3, 0xf7, 62, 100}, []string{"on 60 0.787"}},
		{"data without status", []byte{60, 100}, nil},
		{"pressure ignored", []byte{0xa0, 60, 10, 0xd0, 20}, nil},
		{"sustain", gomidi.ControlChange(0, 64, 127), []string{"sustain 127"}},
		{"pan centre", gomidi.ControlChange(0, 10, 64), []string{"pan 0.000"}},
		{"pan left", gomidi.ControlChange(0, 10, 0), []string{"pan -1.000"}},
		{"pan right", gomidi.ControlChange(0, 10, 127), []string{"pan 1.000"}},
		{"all sound off", gomidi.ControlChange(0, 120, 0), []string{"sound off"}},
		{"all notes off", gomidi.ControlChange(0, 123, 0), []string{"notes off"}},
		{"omni on", gomidi.ControlChange(0, 125, 0), []string{"notes off"}},
		{"reset controllers", gomidi.ControlChange(0, 121, 0), []string{"bend 0.0000", "sustain 0"}},
		{"bend centre", gomidi.Pitchbend(0, 0), []string{"bend 0.0000"}},
		{"bend down", gomidi.Pitchbend(0, -8192), []string{"bend -1.0000"}},
		{"bend up", gomidi.Pitchbend(0, 8191), []string{"bend 0.9999"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, rec, _ := newTestController()
			c.HandleMidiData(tt.in)
			if !reflect.DeepEqual(rec.calls, tt.want) {
				t.Errorf("got %q, want %q", rec.calls, tt.want)
			}
		})
	}
}

func TestMessageSplitAcrossCalls(t *testing.T) {
	c, rec, _ := newTestController()
	c.HandleMidiData([]byte{0x90})
	c.HandleMidiData([]byte{60})
	c.HandleMidiData([]byte{127, 61})
	c.HandleMidiData([]byte{127})
	want := []string{"on 60 1.000", "on 61 1.000"}
	if !reflect.DeepEqual(rec.calls, want) {
		t.Errorf("got %q, want %q", rec.calls, want)
	}
}

func TestChannelFilter(t *testing.T) {
	c, rec, _ := newTestController()
	c.SetChannel(3)
	c.HandleMessage(gomidi.NoteOn(0, 60, 100))
	c.HandleMessage(gomidi.NoteOn(2, 61, 100))
	c.SetChannel(17)
	if c.Channel() != 3 {
		t.Errorf("invalid channel accepted: %d", c.Channel())
	}
	c.SetChannel(0)
	c.HandleMessage(gomidi.NoteOn(9, 62, 100))
	want := []string{"on 61 0.787", "on 62 0.787"}
	if !reflect.DeepEqual(rec.calls, want) {
		t.Errorf("got %q, want %q", rec.calls, want)
	}
}

func TestPitchBendRangeRPN(t *testing.T) {
	c, rec, _ := newTestController()
	c.HandleMidiData([]byte{
		0xb0, 101, 0, 100, 0, 6, 12, // RPN 0, data 12
		99, 1, 6, 5, // NRPN select nulls the RPN
	})
	want := []string{"bend range 12"}
	if !reflect.DeepEqual(rec.calls, want) {
		t.Errorf("got %q, want %q", rec.calls, want)
	}
}

func TestMappedControllerSetsParameter(t *testing.T) {
	c, rec, presets := newTestController()
	c.ControllerMap().Set(74, preset.FilterCutoff)
	c.HandleMessage(gomidi.ControlChange(0, 74, 127))
	p := presets.CurrentPreset().Parameter(preset.FilterCutoff)
	if p.Value() != p.Max() {
		t.Errorf("cutoff: got %f, want %f", p.Value(), p.Max())
	}
	c.HandleMessage(gomidi.ControlChange(0, 74, 0))
	if p.Value() != p.Min() {
		t.Errorf("cutoff: got %f, want %f", p.Value(), p.Min())
	}
	if len(rec.calls) != 0 {
		t.Errorf("mapped controller reached voices: %q", rec.calls)
	}
}

func TestMappedControllerRoundTrip(t *testing.T) {
	tests := []struct {
		id    preset.ParamID
		value byte
	}{
		{preset.FilterResonance, 0},
		{preset.FilterResonance, 37},
		{preset.OscMix, 64},
		{preset.AmpAttack, 127},
		{preset.FilterType, 50},
		{preset.KeyboardMode, 100},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s/%d", tt.id, tt.value), func(t *testing.T) {
			c, _, presets := newTestController()
			c.ControllerMap().Set(20, tt.id)
			c.GenerateMidiOutput(nil)

			c.HandleMessage(gomidi.ControlChange(0, 20, tt.value))
			p := presets.CurrentPreset().Parameter(tt.id)
			tol := 1e-9
			if p.Step() > 0 {
				tol = p.Step() / (p.Max() - p.Min()) / 2
			}
			if got := p.NormalizedValue(); math.Abs(got-float64(tt.value)/127) > tol+1e-9 {
				t.Errorf("normalized: got %f, want %f", got, float64(tt.value)/127)
			}
			if out := c.GenerateMidiOutput(nil); len(out) != 0 {
				t.Errorf("controller input echoed: %+v", out)
			}
		})
	}
}

func TestGenerateMidiOutput(t *testing.T) {
	c, _, presets := newTestController()
	c.SetChannel(2)
	out := c.GenerateMidiOutput(nil)
	if len(out) != 2 {
		t.Fatalf("initial sync: got %d messages, want 2", len(out))
	}
	if out := c.GenerateMidiOutput(out[:0]); len(out) != 0 {
		t.Fatalf("unchanged parameters resent: %+v", out)
	}

	presets.CurrentPreset().Parameter(preset.MasterVolume).SetNormalizedValue(1)
	out = c.GenerateMidiOutput(out[:0])
	want := []CCMessage{{Channel: 1, Controller: 7, Value: 127}}
	if !reflect.DeepEqual(out, want) {
		t.Fatalf("got %+v, want %+v", out, want)
	}
	var ch, cc, val uint8
	if !out[0].Message().GetControlChange(&ch, &cc, &val) || ch != 1 || cc != 7 || val != 127 {
		t.Errorf("message: %v", out[0].Message())
	}
}

func TestModeMessagesSetKeyboardMode(t *testing.T) {
	c, rec, presets := newTestController()
	mode := presets.CurrentPreset().Parameter(preset.KeyboardMode)
	c.HandleMessage(gomidi.ControlChange(0, 126, 1))
	if mode.Value() != keyboardModeMono {
		t.Errorf("mono on: mode %f", mode.Value())
	}
	c.HandleMessage(gomidi.ControlChange(0, 127, 0))
	if mode.Value() != keyboardModePoly {
		t.Errorf("poly on: mode %f", mode.Value())
	}
	if len(rec.calls) != 2 {
		t.Errorf("mode changes should silence notes: %q", rec.calls)
	}
}

func TestProgramChange(t *testing.T) {
	c, _, presets := newTestController()
	second := preset.NewBank("second")
	second.Presets[5].SetName("Bright")
	presets.SetBanks([]*preset.Bank{preset.NewBank("first"), second})

	var gotBank, gotProgram int
	c.OnProgramChange(func(bank, program int) { gotBank, gotProgram = bank, program })

	c.HandleMessage(gomidi.ControlChange(0, 32, 1))
	c.HandleMessage(gomidi.ProgramChange(0, 5))
	if gotBank != 1 || gotProgram != 5 {
		t.Errorf("callback: bank %d program %d", gotBank, gotProgram)
	}
	if name := presets.CurrentPreset().Name(); name != "Bright" {
		t.Errorf("preset: got %q", name)
	}

	// an unknown bank falls back to the current one
	c.HandleMessage(gomidi.ControlChange(0, 0, 9))
	c.HandleMessage(gomidi.ProgramChange(0, 7))
	if presets.CurrentBankIndex() != 1 || presets.CurrentIndex() != 7 {
		t.Errorf("fallback: bank %d index %d", presets.CurrentBankIndex(), presets.CurrentIndex())
	}
}

func TestLearn(t *testing.T) {
	c, _, presets := newTestController()
	var learned int
	c.OnLearn(func(cc int, id preset.ParamID) { learned = cc })
	c.Learn(preset.FilterResonance)
	c.HandleMessage(gomidi.ControlChange(0, 21, 127))
	if learned != 21 {
		t.Errorf("learn callback: cc %d", learned)
	}
	if id, ok := c.ControllerMap().Parameter(21); !ok || id != preset.FilterResonance {
		t.Errorf("map: %v %v", id, ok)
	}
	if c.Learning() != NoParam {
		t.Error("learn still pending")
	}
	if v := presets.CurrentPreset().Parameter(preset.FilterResonance).NormalizedValue(); v != 1 {
		t.Errorf("learned controller value not applied: %f", v)
	}
}
