package amsynth

import (
	"cmp"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/cwbudde/wav"
	"github.com/go-audio/audio"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/cbegin/amsynth-go/internal/voice"
)

// TimedMessage is a MIDI channel message at a time in seconds.
type TimedMessage struct {
	Seconds float64
	Data    []byte
}

// ReadMIDIFile returns the channel messages of every track in a Standard
// MIDI File, merged and ordered by time. Meta and system exclusive events
// are dropped.
func ReadMIDIFile(path string) ([]TimedMessage, error) {
	var msgs []TimedMessage
	err := smf.ReadTracks(path).Do(func(te smf.TrackEvent) {
		b := []byte(te.Message)
		if len(b) == 0 || b[0] < 0x80 || b[0] >= 0xf0 {
			return
		}
		msgs = append(msgs, TimedMessage{
			Seconds: float64(te.AbsMicroSeconds) / 1e6,
			Data:    slices.Clone(b),
		})
	}).Error()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	slices.SortStableFunc(msgs, func(a, b TimedMessage) int {
		return cmp.Compare(a.Seconds, b.Seconds)
	})
	return msgs, nil
}

// Render plays msgs through synth and returns the planar stereo output,
// which runs tailSeconds past the last message so releases ring out.
func Render(synth *Synthesizer, msgs []TimedMessage, tailSeconds float64) (left, right []float32) {
	sr := float64(synth.SampleRate())
	var end float64
	if len(msgs) > 0 {
		end = msgs[len(msgs)-1].Seconds
	}
	frames := int((end + max(tailSeconds, 0)) * sr)
	left = make([]float32, frames)
	right = make([]float32, frames)

	events := make([]Event, 0, 64)
	next := 0
	for pos := 0; pos < frames; pos += voice.MaxProcessFrames {
		n := min(voice.MaxProcessFrames, frames-pos)
		events = events[:0]
		for next < len(msgs) {
			at := int(msgs[next].Seconds*sr) - pos
			if at >= n {
				break
			}
			events = append(events, MIDIEvent(max(at, 0), msgs[next].Data))
			next++
		}
		synth.Process(n, events, nil, left[pos:pos+n], right[pos:pos+n], 1)
	}
	return left, right
}

// RenderMIDIFile renders a Standard MIDI File through synth.
func RenderMIDIFile(synth *Synthesizer, path string, tailSeconds float64) (left, right []float32, err error) {
	msgs, err := ReadMIDIFile(path)
	if err != nil {
		return nil, nil, err
	}
	left, right = Render(synth, msgs, tailSeconds)
	return left, right, nil
}

// WriteWAV writes planar stereo samples as a 16-bit WAV file, creating
// the file's directory.
func WriteWAV(path string, left, right []float32, sampleRate int) error {
	if len(left) != len(right) {
		return fmt.Errorf("left/right length mismatch")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	data := make([]float32, len(left)*2)
	for i := range left {
		data[i*2] = left[i]
		data[i*2+1] = right[i]
	}
	enc := wav.NewEncoder(f, sampleRate, 16, 2, 1)
	buf := &audio.Float32Buffer{
		Format: &audio.Format{
			SampleRate:  sampleRate,
			NumChannels: 2,
		},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return err
	}
	return enc.Close()
}
