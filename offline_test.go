package amsynth

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/cwbudde/wav"
	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

// writeTestMIDI writes a one-track file at 120 bpm, 960 ticks per beat:
// note 60 for one beat, then note 64 for one beat.
func writeTestMIDI(t *testing.T, path string) {
	t.Helper()
	s := smf.New()
	s.TimeFormat = smf.MetricTicks(960)
	var tr smf.Track
	tr.Add(0, smf.MetaTempo(120))
	tr.Add(0, gomidi.NoteOn(0, 60, 100))
	tr.Add(960, gomidi.NoteOff(0, 60))
	tr.Add(0, gomidi.NoteOn(0, 64, 100))
	tr.Add(960, gomidi.NoteOff(0, 64))
	tr.Close(0)
	if err := s.Add(tr); err != nil {
		t.Fatal(err)
	}
	if err := s.WriteFile(path); err != nil {
		t.Fatal(err)
	}
}

func TestReadMIDIFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.mid")
	writeTestMIDI(t, path)
	msgs, err := ReadMIDIFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 4 {
		t.Fatalf("got %d messages, want 4 (meta events dropped)", len(msgs))
	}
	wantSeconds := []float64{0, 0.5, 0.5, 1}
	for i, m := range msgs {
		if math.Abs(m.Seconds-wantSeconds[i]) > 1e-6 {
			t.Errorf("message %d at %f, want %f", i, m.Seconds, wantSeconds[i])
		}
	}
	if msgs[0].Data[0] != 0x90 || msgs[0].Data[1] != 60 {
		t.Errorf("first message: % x", msgs[0].Data)
	}
}

func TestReadMIDIFileMissing(t *testing.T) {
	if _, err := ReadMIDIFile(filepath.Join(t.TempDir(), "nope.mid")); err == nil {
		t.Error("expected error")
	}
}

func TestRenderMIDIFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.mid")
	writeTestMIDI(t, path)
	s := newSynth(t)
	left, right, err := RenderMIDIFile(s, path, 0.5)
	if err != nil {
		t.Fatal(err)
	}
	if want := int(1.5 * 44100); len(left) != want || len(right) != want {
		t.Fatalf("length: got %d, want %d", len(left), want)
	}
	if energy(left[:22050]) == 0 || energy(left[22050:44100]) == 0 {
		t.Error("notes did not sound")
	}
	for i := range left {
		if math.Abs(float64(left[i])) > 1 || math.Abs(float64(right[i])) > 1 {
			t.Fatalf("sample %d out of range", i)
		}
	}
	if s.ActiveVoices() != 0 {
		t.Errorf("%d voices still sounding after the tail", s.ActiveVoices())
	}
}

func TestRenderIsDeterministic(t *testing.T) {
	msgs := []TimedMessage{
		{Seconds: 0, Data: gomidi.NoteOn(0, 57, 90)},
		{Seconds: 0.1, Data: gomidi.NoteOn(0, 64, 90)},
		{Seconds: 0.3, Data: gomidi.NoteOff(0, 57)},
		{Seconds: 0.3, Data: gomidi.NoteOff(0, 64)},
	}
	a, _ := Render(newSynth(t), msgs, 0.2)
	b, _ := Render(newSynth(t), msgs, 0.2)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("renders differ at frame %d", i)
		}
	}
}

func TestWriteWAV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "render.wav")
	left := make([]float32, 4410)
	right := make([]float32, 4410)
	for i := range left {
		left[i] = float32(0.5 * math.Sin(2*math.Pi*440*float64(i)/44100))
		right[i] = -left[i]
	}
	if err := WriteWAV(path, left, right, 44100); err != nil {
		t.Fatal(err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		t.Fatal("invalid wav file")
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		t.Fatal(err)
	}
	if buf.Format.NumChannels != 2 || buf.Format.SampleRate != 44100 {
		t.Errorf("format: %+v", buf.Format)
	}
	if len(buf.Data) != 2*len(left) {
		t.Errorf("samples: got %d, want %d", len(buf.Data), 2*len(left))
	}
}

func TestWriteWAVLengthMismatch(t *testing.T) {
	err := WriteWAV(filepath.Join(t.TempDir(), "x.wav"), make([]float32, 2), make([]float32, 3), 44100)
	if err == nil {
		t.Error("expected error")
	}
}
