package preset

import (
	"bytes"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type recorder struct {
	calls []ParamID
	last  float64
}

func (r *recorder) ParameterDidChange(id ParamID, cv float64) {
	r.calls = append(r.calls, id)
	r.last = cv
}

func TestParameterTableIsComplete(t *testing.T) {
	if ParamCount != 41 {
		t.Fatalf("ParamCount: got %d, want 41", ParamCount)
	}
	seen := map[string]bool{}
	for id := ParamID(0); id < ParamCount; id++ {
		s := SpecFor(id)
		if s.Name == "" {
			t.Errorf("param %d has no name", id)
		}
		if seen[s.Name] {
			t.Errorf("duplicate name %q", s.Name)
		}
		seen[s.Name] = true
		if s.Min >= s.Max {
			t.Errorf("%s: min %f not below max %f", s.Name, s.Min, s.Max)
		}
		if s.Default < s.Min || s.Default > s.Max {
			t.Errorf("%s: default %f outside range", s.Name, s.Default)
		}
		if got, ok := IDForName(s.Name); !ok || got != id {
			t.Errorf("%s: IDForName got %d, %v", s.Name, got, ok)
		}
	}
}

func TestSetValueClamps(t *testing.T) {
	p := New("x")
	for id := ParamID(0); id < ParamCount; id++ {
		param := p.Parameter(id)
		tests := []float64{param.Min() - 10, param.Min(), param.Max(), param.Max() + 10}
		for _, v := range tests {
			param.SetValue(v)
			want := math.Min(math.Max(v, param.Min()), param.Max())
			if got := param.Value(); math.Abs(got-want) > 1e-12 {
				t.Errorf("%s SetValue(%f): got %f, want %f", param.Name(), v, got, want)
			}
		}
	}
}

func TestSetValueQuantizes(t *testing.T) {
	p := New("x")
	param := p.Parameter(Osc2Range)
	param.SetValue(1.4)
	if param.Value() != 1 {
		t.Errorf("osc2_range 1.4: got %f, want 1", param.Value())
	}
	param.SetValue(2.6)
	if param.Value() != 3 {
		t.Errorf("osc2_range 2.6: got %f, want 3", param.Value())
	}
}

func TestControlLaws(t *testing.T) {
	p := New("x")
	tests := []struct {
		id    ParamID
		value float64
		want  float64
	}{
		{AmpAttack, 0, 0.0005},
		{AmpAttack, 1, 1.0005},
		{FilterCutoff, 1, 16},
		{FilterCutoff, -0.5, 0.25},
		{MasterVolume, 0.5, 0.25},
		{Osc2Range, -1, 0.5},
		{Osc2Pitch, 12, 2},
		{OscMix, -0.5, -0.5},
	}
	for _, tt := range tests {
		param := p.Parameter(tt.id)
		param.SetValue(tt.value)
		if got := param.ControlValue(); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("%s(%f): control %f, want %f", param.Name(), tt.value, got, tt.want)
		}
	}
}

func TestNormalizedRoundTrip(t *testing.T) {
	p := New("x")
	param := p.Parameter(FilterEnvAmount)
	param.SetNormalizedValue(0.75)
	if param.Value() != 8 {
		t.Errorf("value: got %f, want 8", param.Value())
	}
	if param.NormalizedValue() != 0.75 {
		t.Errorf("normalized: got %f, want 0.75", param.NormalizedValue())
	}
}

func TestDisplay(t *testing.T) {
	p := New("x")
	tests := []struct {
		id    ParamID
		value float64
		want  string
	}{
		{FilterType, 3, "notch"},
		{KeyboardMode, 2, "legato"},
		{Osc2Pitch, -5, "-5 semitones"},
		{AmpSustain, 0.5, "0.5"},
		{LFOFreq, 2, "4 Hz"},
	}
	for _, tt := range tests {
		param := p.Parameter(tt.id)
		param.SetValue(tt.value)
		if got := param.Display(); got != tt.want {
			t.Errorf("%s: got %q, want %q", param.Name(), got, tt.want)
		}
	}
}

func TestListenersNotifiedOnChangeOnly(t *testing.T) {
	p := New("x")
	r := &recorder{}
	p.Parameter(AmpSustain).AddListener(r)

	p.Parameter(AmpSustain).SetValue(0.25)
	p.Parameter(AmpSustain).SetValue(0.25)
	if len(r.calls) != 1 || r.last != 0.25 {
		t.Fatalf("calls %v last %f, want one call with 0.25", r.calls, r.last)
	}

	p.Parameter(AmpSustain).RemoveListener(r)
	p.Parameter(AmpSustain).SetValue(0.5)
	if len(r.calls) != 1 {
		t.Errorf("removed listener still notified")
	}
}

func TestListenerCapacity(t *testing.T) {
	p := New("x")
	param := p.Parameter(OscMix)
	for i := 0; i < MaxListeners; i++ {
		if !param.AddListener(&recorder{}) {
			t.Fatalf("listener %d rejected", i)
		}
	}
	if param.AddListener(&recorder{}) {
		t.Error("listener beyond capacity accepted")
	}
}

func TestPresetStringRoundTrip(t *testing.T) {
	src := New("Round Trip")
	src.Parameter(AmpAttack).SetValue(0.123456789)
	src.Parameter(FilterCutoff).SetValue(0.3)
	src.Parameter(KeyboardMode).SetValue(1)
	src.Parameter(Osc2Detune).SetValue(-0.77)

	text := src.String()
	for i := 0; i < 3; i++ {
		dst := New("")
		if err := dst.FromString(text); err != nil {
			t.Fatal(err)
		}
		if !dst.IsEqual(src) || dst.Name() != src.Name() {
			t.Fatalf("pass %d: round trip changed the preset", i)
		}
		text = dst.String()
	}
}

func TestPresetFromStringRejectsGarbage(t *testing.T) {
	tests := []string{
		"",
		"<parameter> amp_attack 1\n",
		"<preset> <name> x\n<parameter> amp_attack\n",
		"<preset> <name> x\n<parameter> amp_attack one\n",
	}
	for _, text := range tests {
		p := New("keep")
		p.Parameter(AmpSustain).SetValue(0.3)
		if err := p.FromString(text); !errors.Is(err, ErrBadFormat) {
			t.Errorf("%q: got %v, want ErrBadFormat", text, err)
		}
		if p.Name() != "keep" || p.Parameter(AmpSustain).Value() != 0.3 {
			t.Errorf("%q: preset modified by failed parse", text)
		}
	}
}

func TestBankSaveLoad(t *testing.T) {
	b := NewBank("test")
	b.Presets[0].SetName("Test")
	b.Presets[0].Parameter(AmpAttack).SetValue(0.5)

	path := filepath.Join(t.TempDir(), "test.bank")
	if err := b.Save(path); err != nil {
		t.Fatal(err)
	}
	got, err := LoadBank(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.Presets[0].Name() != "Test" {
		t.Errorf("name: got %q, want Test", got.Presets[0].Name())
	}
	if v := got.Presets[0].Parameter(AmpAttack).Value(); v != 0.5 {
		t.Errorf("amp_attack: got %v, want 0.5", v)
	}
	if got.Name != "test" || got.Path != path {
		t.Errorf("bank identity: %q %q", got.Name, got.Path)
	}
	if got.Presets[1].Name() != DefaultName {
		t.Errorf("slot 1 name: got %q", got.Presets[1].Name())
	}
}

func TestReadBankIgnoresUnknownParameters(t *testing.T) {
	text := "amSynth1.0preset\n" +
		"<preset> <name> Old\n" +
		"<parameter> amp_attack 0.25\n" +
		"<parameter> some_future_param 3\n" +
		"EOF\n" +
		"trailing junk\n"
	b, err := ReadBank(strings.NewReader(text))
	if err != nil {
		t.Fatal(err)
	}
	if v := b.Presets[0].Parameter(AmpAttack).Value(); v != 0.25 {
		t.Errorf("amp_attack: got %v", v)
	}
}

func TestReadBankRejectsBadHeader(t *testing.T) {
	_, err := ReadBank(strings.NewReader("not a bank\n"))
	if !errors.Is(err, ErrBadFormat) {
		t.Errorf("got %v, want ErrBadFormat", err)
	}
}

func TestBankWriteStartsWithHeader(t *testing.T) {
	var buf bytes.Buffer
	if _, err := NewBank("x").WriteTo(&buf); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(buf.String(), "amSynth1.0preset\n") {
		t.Errorf("missing header")
	}
	if !strings.HasSuffix(buf.String(), "EOF\n") {
		t.Errorf("missing EOF")
	}
	if n := strings.Count(buf.String(), "<preset>"); n != BankSize {
		t.Errorf("preset count: got %d", n)
	}
}

func TestControllerSelectHonoursIgnored(t *testing.T) {
	c := NewController()
	r := &recorder{}
	c.CurrentPreset().AddListener(r)

	c.Bank().Presets[5].SetName("Five")
	c.Bank().Presets[5].Parameter(AmpRelease).SetValue(1.5)
	c.Bank().Presets[5].Parameter(MasterVolume).SetValue(0.1)
	c.SetIgnored(MasterVolume, true)

	if !c.SelectPreset(5) {
		t.Fatal("select failed")
	}
	cur := c.CurrentPreset()
	if cur.Name() != "Five" || cur.Parameter(AmpRelease).Value() != 1.5 {
		t.Errorf("preset not loaded")
	}
	if cur.Parameter(MasterVolume).Value() != SpecFor(MasterVolume).Default {
		t.Errorf("ignored parameter changed")
	}
	if len(r.calls) != 1 || r.calls[0] != AmpRelease {
		t.Errorf("notifications: %v", r.calls)
	}
	if c.SelectPreset(BankSize) {
		t.Error("out of range select accepted")
	}
}

func TestControllerLoadAndSaveBank(t *testing.T) {
	dir := t.TempDir()
	b := NewBank("mine")
	b.Presets[0].SetName("Test")
	b.Presets[0].Parameter(AmpAttack).SetValue(0.5)
	path := filepath.Join(dir, "mine.bank")
	if err := b.Save(path); err != nil {
		t.Fatal(err)
	}

	c := NewController()
	if err := c.LoadBank(path); err != nil {
		t.Fatal(err)
	}
	if c.CurrentPreset().Name() != "Test" {
		t.Errorf("current preset: got %q", c.CurrentPreset().Name())
	}
	c.CurrentPreset().Parameter(AmpDecay).SetValue(2)
	c.Commit()
	if err := c.SaveBank(""); err != nil {
		t.Fatal(err)
	}
	again, err := LoadBank(path)
	if err != nil {
		t.Fatal(err)
	}
	if again.Presets[0].Parameter(AmpDecay).Value() != 2 {
		t.Errorf("committed value not saved")
	}

	if err := c.LoadBank(filepath.Join(dir, "missing.bank")); err == nil {
		t.Error("expected error")
	}
	if _, err := os.Stat(path); err != nil {
		t.Error(err)
	}
}

func TestFindBanks(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.bank", "b.bank", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	paths, err := FindBanks([]string{dir, filepath.Join(dir, "missing")})
	if err != nil {
		t.Fatal(err)
	}
	if len(paths) != 2 {
		t.Errorf("found %v", paths)
	}
}
