package tuning

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func near(a, b float64) bool {
	return math.Abs(a-b) <= 1e-9*math.Max(1, math.Abs(b))
}

func TestDefaultIsEqualTemperament(t *testing.T) {
	m := NewMap()
	tests := []struct {
		note int
		want float64
	}{
		{69, 440},
		{81, 880},
		{57, 220},
		{60, 261.6255653005986},
		{0, 8.175798915643707},
	}
	for _, tt := range tests {
		if got := m.NoteToPitch(tt.note); !near(got, tt.want) {
			t.Errorf("note %d: got %f, want %f", tt.note, got, tt.want)
		}
	}
}

func TestPitchIsMonotonic(t *testing.T) {
	m := NewMap()
	if err := m.ReadScale(strings.NewReader(pentatonic)); err != nil {
		t.Fatal(err)
	}
	prev := 0.0
	for n := 0; n < 128; n++ {
		p := m.NoteToPitch(n)
		if p <= prev {
			t.Fatalf("note %d pitch %f not above %f", n, p, prev)
		}
		prev = p
	}
}

const pentatonic = `! pent.scl
!
Five note test scale
 5
!
 9/8
 5/4
 701.955
 5/3
 2/1
`

func TestFiveNoteScaleReference(t *testing.T) {
	m := NewMap()
	if err := m.ReadScale(strings.NewReader(pentatonic)); err != nil {
		t.Fatal(err)
	}
	if m.ScaleSize() != 5 {
		t.Fatalf("scale size: got %d, want 5", m.ScaleSize())
	}
	if m.ScaleDescription() != "Five note test scale" {
		t.Errorf("description: got %q", m.ScaleDescription())
	}
	if got := m.NoteToPitch(69); !near(got, 440) {
		t.Errorf("reference note: got %f, want 440", got)
	}
	if got := m.NoteToPitch(74); !near(got, 880) {
		t.Errorf("one period above reference: got %f, want 880", got)
	}
}

func TestKeymapActiveRangeAndUnmapped(t *testing.T) {
	const kbm = `! white keys only
12
48
72
60
69
432.0
12
0
x
2
x
4
5
x
7
x
9
x
11
`
	m := NewMap()
	if err := m.ReadKeymap(strings.NewReader(kbm)); err != nil {
		t.Fatal(err)
	}
	if got := m.NoteToPitch(69); !near(got, 432) {
		t.Errorf("reference: got %f, want 432", got)
	}
	if got := m.NoteToPitch(61); got != -1 {
		t.Errorf("unmapped key: got %f, want -1", got)
	}
	if got := m.NoteToPitch(47); got != -1 {
		t.Errorf("below range: got %f, want -1", got)
	}
	if got := m.NoteToPitch(73); got != -1 {
		t.Errorf("above range: got %f, want -1", got)
	}
	if got := m.NoteToPitch(72); !near(got, 2*m.NoteToPitch(60)) {
		t.Errorf("octave: got %f, want %f", got, 2*m.NoteToPitch(60))
	}
}

func TestZeroSizeKeymapIsLinear(t *testing.T) {
	m := NewMap()
	if err := m.ReadKeymap(strings.NewReader("0\n0\n127\n60\n60\n261.0\n0\n")); err != nil {
		t.Fatal(err)
	}
	if got := m.NoteToPitch(60); !near(got, 261) {
		t.Errorf("zero note: got %f, want 261", got)
	}
	if got := m.NoteToPitch(61); !near(got, 261*math.Pow(2, 1.0/12)) {
		t.Errorf("next key: got %f", got)
	}
}

func TestMalformedInputLeavesMapUnchanged(t *testing.T) {
	tests := []struct {
		name   string
		scale  string
		keymap string
	}{
		{name: "truncated scale", scale: "desc\n3\n100.0\n200.0\n"},
		{name: "bad count", scale: "desc\nthree\n"},
		{name: "zero count", scale: "desc\n0\n"},
		{name: "bad ratio", scale: "desc\n1\n3/0\n"},
		{name: "bad cents", scale: "desc\n1\n12.3.4\n"},
		{name: "short keymap header", keymap: "12\n0\n127\n"},
		{name: "bad reference frequency", keymap: "0\n0\n127\n60\n69\n-1\n0\n"},
		{name: "inverted range", keymap: "0\n100\n10\n60\n69\n440\n0\n"},
		{name: "truncated mapping", keymap: "3\n0\n127\n60\n69\n440\n3\n0\n1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMap()
			before := m.NoteToPitch(64)
			var err error
			if tt.scale != "" {
				err = m.ReadScale(strings.NewReader(tt.scale))
			} else {
				err = m.ReadKeymap(strings.NewReader(tt.keymap))
			}
			if !errors.Is(err, ErrMalformed) {
				t.Fatalf("got %v, want ErrMalformed", err)
			}
			if got := m.NoteToPitch(64); got != before {
				t.Errorf("pitch changed after failed load: %f -> %f", before, got)
			}
			if m.ScaleSize() != 12 {
				t.Errorf("scale size changed: %d", m.ScaleSize())
			}
		})
	}
}

func TestLoadScaleFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pent.scl")
	if err := os.WriteFile(path, []byte(pentatonic), 0o644); err != nil {
		t.Fatal(err)
	}
	m := NewMap()
	if err := m.LoadScale(path); err != nil {
		t.Fatal(err)
	}
	if m.ScaleSize() != 5 {
		t.Errorf("scale size: got %d", m.ScaleSize())
	}
	if err := m.LoadScale(filepath.Join(t.TempDir(), "missing.scl")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestDefaultRestoresAfterCustomScale(t *testing.T) {
	m := NewMap()
	if err := m.ReadScale(strings.NewReader(pentatonic)); err != nil {
		t.Fatal(err)
	}
	m.Default()
	if got := m.NoteToPitch(81); !near(got, 880) {
		t.Errorf("after Default: got %f, want 880", got)
	}
}
