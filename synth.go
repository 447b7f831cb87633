// Package amsynth is a polyphonic subtractive synthesizer. A Synthesizer
// turns timestamped MIDI and parameter events into stereo audio; Player
// drives one in real time and RenderMIDIFile drives one offline.
package amsynth

import (
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/cbegin/amsynth-go/internal/config"
	intengine "github.com/cbegin/amsynth-go/internal/engine"
	intmidi "github.com/cbegin/amsynth-go/internal/midi"
	"github.com/cbegin/amsynth-go/internal/preset"
	"github.com/cbegin/amsynth-go/internal/voice"
)

// ParamID identifies a synthesis parameter.
type ParamID = preset.ParamID

// CCMessage is an outgoing MIDI control change produced by Process.
type CCMessage = intmidi.CCMessage

// NumParameters is the number of synthesis parameters; valid IDs are
// 0 through NumParameters-1.
const NumParameters = int(preset.ParamCount)

// ParamIDByName looks a parameter up by its bank-file name, such as
// "filter_cutoff".
func ParamIDByName(name string) (ParamID, bool) {
	return preset.IDForName(name)
}

type Option func(*options)

type options struct {
	sampleRate int
	logger     *log.Logger
	cfg        *config.Config
}

func WithSampleRate(sampleRate int) Option {
	return func(o *options) {
		o.sampleRate = sampleRate
	}
}

// WithLogger receives messages about file loading and configuration.
// Nothing is logged while rendering.
func WithLogger(logger *log.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithConfig applies saved settings: polyphony, MIDI channel, pitch bend
// range, tuning files, banks, ignored parameters and controller map.
// Its sample rate is used unless WithSampleRate is also given.
func WithConfig(cfg *config.Config) Option {
	return func(o *options) {
		o.cfg = cfg
	}
}

// Synthesizer ties the preset, MIDI and voice layers together.
//
// Process and the Set*/Load* methods must not run concurrently. A realtime
// host should run Process on its audio goroutine and deliver changes to
// it as events; Player does this.
type Synthesizer struct {
	sampleRate int
	logger     *log.Logger

	presets *preset.Controller
	vau     *intengine.VoiceAllocationUnit
	midi    *intmidi.Controller
}

func New(opts ...Option) (*Synthesizer, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = log.New(io.Discard, "", 0)
	}
	if o.sampleRate == 0 {
		o.sampleRate = 44100
		if o.cfg != nil {
			o.sampleRate = o.cfg.SampleRate
		}
	}
	if o.sampleRate <= 0 {
		return nil, errors.New("sampleRate must be positive")
	}

	s := &Synthesizer{
		sampleRate: o.sampleRate,
		logger:     o.logger,
		presets:    preset.NewController(),
		vau:        intengine.New(o.sampleRate),
	}
	s.midi = intmidi.NewController(s.presets, s.vau)
	s.midi.OnProgramChange(func(bank, program int) {
		s.vau.ResetAllVoices()
	})
	s.midi.OnLearn(func(cc int, id preset.ParamID) {
		s.logger.Printf("controller %d assigned to %s", cc, id)
	})

	live := s.presets.CurrentPreset()
	live.AddListener(s.vau)
	live.NotifyAll()

	if o.cfg != nil {
		if err := o.cfg.Validate(); err != nil {
			return nil, err
		}
		s.applyConfig(o.cfg)
	}
	return s, nil
}

// applyConfig loads what cfg names. Files that fail to load are logged
// and skipped so a stale path does not keep the synthesizer from
// starting.
func (s *Synthesizer) applyConfig(cfg *config.Config) {
	s.SetMaxPolyphony(cfg.MaxPolyphony)
	s.SetPitchBendRange(cfg.PitchBendRange)
	s.SetMidiChannel(cfg.Midi.Channel)
	if err := s.midi.ControllerMap().SetNames(cfg.Midi.ControllerMap); err != nil {
		s.logger.Printf("controller map: %v", err)
	}
	for _, name := range cfg.IgnoredParameters {
		id, ok := preset.IDForName(name)
		if !ok {
			s.logger.Printf("ignored parameters: unknown parameter %q", name)
			continue
		}
		s.presets.SetIgnored(id, true)
	}

	if cfg.Tuning.Scale != "" {
		if err := s.LoadTuningScale(cfg.Tuning.Scale); err != nil {
			s.logger.Printf("tuning: %v", err)
		}
	}
	if cfg.Tuning.Keymap != "" {
		if err := s.LoadTuningKeymap(cfg.Tuning.Keymap); err != nil {
			s.logger.Printf("tuning: %v", err)
		}
	}

	paths, err := preset.FindBanks(cfg.BankDirs)
	if err != nil {
		s.logger.Printf("banks: %v", err)
	}
	var banks []*preset.Bank
	current := 0
	for _, path := range paths {
		b, err := preset.LoadBank(path)
		if err != nil {
			s.logger.Printf("banks: %v", err)
			continue
		}
		if path == cfg.CurrentBank {
			current = len(banks)
		}
		banks = append(banks, b)
	}
	if len(banks) > 0 {
		s.presets.SetBanks(banks)
		s.presets.SelectBankPreset(current, 0)
		s.logger.Printf("loaded %d banks", len(banks))
	}
}

// Config captures the current settings and session state, for saving.
func (s *Synthesizer) Config(base *config.Config) *config.Config {
	cfg := config.DefaultConfig()
	if base != nil {
		*cfg = *base
	}
	cfg.SampleRate = s.sampleRate
	cfg.MaxPolyphony = s.MaxPolyphony()
	cfg.PitchBendRange = s.PitchBendRange()
	cfg.Midi.Channel = s.MidiChannel()
	cfg.Midi.ControllerMap = s.midi.ControllerMap().Names()
	cfg.IgnoredParameters = nil
	for id := preset.ParamID(0); id < preset.ParamCount; id++ {
		if s.presets.IsIgnored(id) {
			cfg.IgnoredParameters = append(cfg.IgnoredParameters, id.String())
		}
	}
	if b := s.presets.Bank(); b.Path != "" {
		cfg.CurrentBank = b.Path
	}
	return cfg
}

func (s *Synthesizer) SampleRate() int { return s.sampleRate }

// SetSampleRate reallocates the master effects. Voices are silenced.
func (s *Synthesizer) SetSampleRate(sampleRate int) {
	if sampleRate <= 0 || sampleRate == s.sampleRate {
		return
	}
	s.sampleRate = sampleRate
	s.vau.SetSampleRate(sampleRate)
	s.vau.ResetAllVoices()
}

// Process renders nframes of audio into left and right, writing every
// stride-th element; for interleaved stereo pass buf, buf[1:] and 2.
// events must be ordered by Offset. Each one is applied at its frame,
// splitting the block there; events at or beyond nframes are applied
// after the last frame. Control changes for external controllers are
// appended to midiOut and the result returned.
func (s *Synthesizer) Process(nframes int, events []Event, midiOut []CCMessage, left, right []float32, stride int) []CCMessage {
	if stride < 1 {
		stride = 1
	}
	nframes = min(nframes, framesFitting(len(left), stride), framesFitting(len(right), stride))

	pos, next := 0, 0
	for pos < nframes {
		for next < len(events) && events[next].Offset <= pos {
			s.apply(&events[next])
			next++
		}
		end := nframes
		if next < len(events) && events[next].Offset < end {
			end = events[next].Offset
		}
		n := min(end-pos, voice.MaxProcessFrames)
		s.vau.Process(left[pos*stride:], right[pos*stride:], n, stride)
		pos += n
	}
	for ; next < len(events); next++ {
		s.apply(&events[next])
	}
	return s.midi.GenerateMidiOutput(midiOut)
}

// framesFitting is the number of frames a buffer of length n holds at
// stride.
func framesFitting(n, stride int) int {
	if n <= 0 {
		return 0
	}
	return (n-1)/stride + 1
}

func (s *Synthesizer) apply(ev *Event) {
	switch ev.Kind {
	case EventMIDI:
		s.midi.HandleMidiData(ev.Data[:ev.Size])
	case EventParameter:
		s.SetParameterValue(ev.Param, ev.Value)
	}
}

// HandleMidi parses raw MIDI immediately, outside any block.
func (s *Synthesizer) HandleMidi(data []byte) {
	s.midi.HandleMidiData(data)
}

// LoadBank reads a bank file and makes it current, reloading the live
// preset from it. On error the previous bank stays in use.
func (s *Synthesizer) LoadBank(path string) error {
	if err := s.presets.LoadBank(path); err != nil {
		return fmt.Errorf("load bank: %w", err)
	}
	s.logger.Printf("loaded bank %s", path)
	return nil
}

// SaveBank writes the current bank to path, or back to the file it was
// loaded from when path is empty.
func (s *Synthesizer) SaveBank(path string) error {
	if err := s.presets.SaveBank(path); err != nil {
		return fmt.Errorf("save bank: %w", err)
	}
	return nil
}

// CommitPreset stores the live preset into its slot in the current bank.
func (s *Synthesizer) CommitPreset() { s.presets.Commit() }

// SelectPreset loads slot index of the current bank. Sounding notes are
// cut. It reports false for an index outside the bank.
func (s *Synthesizer) SelectPreset(index int) bool {
	if !s.presets.SelectPreset(index) {
		return false
	}
	s.vau.ResetAllVoices()
	return true
}

func (s *Synthesizer) PresetIndex() int          { return s.presets.CurrentIndex() }
func (s *Synthesizer) PresetName() string        { return s.presets.CurrentPreset().Name() }
func (s *Synthesizer) SetPresetName(name string) { s.presets.CurrentPreset().SetName(name) }

// Parameter returns the live parameter id for reading its value and
// metadata, or nil for an unknown id. Change it through SetParameterValue
// or an event.
func (s *Synthesizer) Parameter(id ParamID) *preset.Parameter {
	return s.presets.CurrentPreset().Parameter(id)
}

// SetParameterValue sets id to value, clamped and quantized to the
// parameter's range. Unknown ids are ignored.
func (s *Synthesizer) SetParameterValue(id ParamID, value float64) {
	if p := s.Parameter(id); p != nil {
		p.SetValue(value)
	}
}

// SetNormalizedParameterValue sets id from a position in [0, 1].
func (s *Synthesizer) SetNormalizedParameterValue(id ParamID, value float64) {
	if p := s.Parameter(id); p != nil {
		p.SetNormalizedValue(min(max(value, 0), 1))
	}
}

// ParameterDisplay formats id's value for display.
func (s *Synthesizer) ParameterDisplay(id ParamID) string {
	if p := s.Parameter(id); p != nil {
		return p.Display()
	}
	return ""
}

// SetParameterIgnored keeps id at its current value when presets change.
func (s *Synthesizer) SetParameterIgnored(id ParamID, ignored bool) {
	s.presets.SetIgnored(id, ignored)
}

// LoadTuningScale installs a Scala scale file. A malformed file leaves
// the current tuning in effect.
func (s *Synthesizer) LoadTuningScale(path string) error {
	if err := s.vau.Tuning().LoadScale(path); err != nil {
		return err
	}
	s.logger.Printf("loaded scale %q", s.vau.Tuning().ScaleDescription())
	return nil
}

// LoadTuningKeymap installs a Scala keyboard mapping file.
func (s *Synthesizer) LoadTuningKeymap(path string) error {
	if err := s.vau.Tuning().LoadKeymap(path); err != nil {
		return err
	}
	s.logger.Printf("loaded keymap %s", path)
	return nil
}

// DefaultTuning restores twelve-tone equal temperament with A4 at 440 Hz.
func (s *Synthesizer) DefaultTuning() {
	s.vau.Tuning().Default()
}

// NoteFrequency is the pitch note sounds at under the current tuning, or
// -1 if the note is unmapped.
func (s *Synthesizer) NoteFrequency(note int) float64 {
	return s.vau.Tuning().NoteToPitch(note)
}

func (s *Synthesizer) MaxPolyphony() int { return s.vau.MaxVoices() }

// SetMaxPolyphony limits simultaneous voices; 0 allows all 128.
func (s *Synthesizer) SetMaxPolyphony(n int) {
	s.vau.SetMaxVoices(min(n, intengine.NumVoices))
}

func (s *Synthesizer) PitchBendRange() int { return s.vau.PitchBendRange() }

// SetPitchBendRange sets the full-deflection bend in semitones.
func (s *Synthesizer) SetPitchBendRange(semitones int) {
	s.vau.SetPitchBendRange(semitones)
}

func (s *Synthesizer) MidiChannel() int { return s.midi.Channel() }

// SetMidiChannel listens on one channel, 1-16, or all channels for 0.
func (s *Synthesizer) SetMidiChannel(ch int) {
	s.midi.SetChannel(ch)
}

// ControllerMap is the live controller assignment table. Change it only
// while Process is not running.
func (s *Synthesizer) ControllerMap() *intmidi.ControllerMap {
	return s.midi.ControllerMap()
}

// LearnController assigns the next controller that moves to id.
func (s *Synthesizer) LearnController(id ParamID) {
	s.midi.Learn(id)
}

func (s *Synthesizer) ActiveVoices() int { return s.vau.ActiveVoices() }

// ResetAllVoices silences every voice at once, without release tails.
func (s *Synthesizer) ResetAllVoices() {
	s.vau.ResetAllVoices()
}
