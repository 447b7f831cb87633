package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"github.com/cbegin/amsynth-go"
	"github.com/cbegin/amsynth-go/internal/config"
)

func main() {
	var (
		configPath = flag.String("config", "", "config file (default ~/.config/amsynth-go/config.json)")
		saveConfig = flag.Bool("save-config", false, "write settings back to the config file on exit")
		sampleRate = flag.Int("sample-rate", 0, "output sample rate (overrides config)")
		polyphony  = flag.Int("polyphony", -1, "max voices, 0 = 128 (overrides config)")
		channel    = flag.Int("channel", -1, "MIDI channel 1-16, 0 = omni (overrides config)")
		bendRange  = flag.Int("bend-range", -1, "pitch bend range in semitones (overrides config)")
		bankPath   = flag.String("bank", "", "bank file to load")
		presetNum  = flag.Int("preset", 0, "preset number in the bank")
		scalePath  = flag.String("scale", "", "Scala .scl tuning file")
		keymapPath = flag.String("keymap", "", "Scala .kbm keyboard map")
		renderPath = flag.String("render", "", "render this MIDI file instead of playing live")
		outPath    = flag.String("o", "out.wav", "output WAV file for -render")
		tail       = flag.Float64("tail", 2, "seconds rendered after the last MIDI event")
		midiIn     = flag.String("midi-in", "", "MIDI input port (substring match; overrides config)")
		midiOut    = flag.String("midi-out", "", "MIDI output port for controller feedback")
		listPorts  = flag.Bool("list-ports", false, "list MIDI ports and exit")
		keys       = flag.Bool("keys", false, "play from the computer keyboard")
		verbose    = flag.Bool("v", false, "log file loading and configuration")
	)
	flag.Parse()

	if *listPorts {
		fmt.Print("inputs:\n", gomidi.GetInPorts(), "outputs:\n", gomidi.GetOutPorts())
		gomidi.CloseDriver()
		return
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatal(err)
	}
	applyFlags(cfg, *sampleRate, *polyphony, *channel, *bendRange, *scalePath, *keymapPath, *midiIn)

	opts := []amsynth.Option{amsynth.WithConfig(cfg)}
	if *verbose {
		opts = append(opts, amsynth.WithLogger(log.New(os.Stderr, "amsynth: ", 0)))
	}
	synth, err := amsynth.New(opts...)
	if err != nil {
		log.Fatal(err)
	}
	if *bankPath != "" {
		if err := synth.LoadBank(*bankPath); err != nil {
			log.Fatal(err)
		}
	}
	if !synth.SelectPreset(*presetNum) {
		log.Fatalf("no preset %d", *presetNum)
	}

	if *renderPath != "" {
		if err := render(synth, *renderPath, *outPath, *tail); err != nil {
			log.Fatal(err)
		}
		return
	}

	if err := playLive(synth, cfg.Midi.InputPort, firstNonEmpty(*midiOut, cfg.Midi.OutputPort), *keys); err != nil {
		log.Fatal(err)
	}
	if *saveConfig {
		if err := saveConfigFile(*configPath, synth.Config(cfg)); err != nil {
			log.Fatal(err)
		}
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Load()
	}
	return config.LoadFile(path)
}

func saveConfigFile(path string, cfg *config.Config) error {
	if path == "" {
		return cfg.Save()
	}
	return cfg.SaveFile(path)
}

// applyFlags overrides config values with the flags that were set.
func applyFlags(cfg *config.Config, sampleRate, polyphony, channel, bendRange int, scale, keymap, midiIn string) {
	if sampleRate > 0 {
		cfg.SampleRate = sampleRate
	}
	if polyphony >= 0 {
		cfg.MaxPolyphony = polyphony
	}
	if channel >= 0 {
		cfg.Midi.Channel = channel
	}
	if bendRange >= 0 {
		cfg.PitchBendRange = bendRange
	}
	if scale != "" {
		cfg.Tuning.Scale = scale
	}
	if keymap != "" {
		cfg.Tuning.Keymap = keymap
	}
	if midiIn != "" {
		cfg.Midi.InputPort = midiIn
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func render(synth *amsynth.Synthesizer, midiPath, wavPath string, tail float64) error {
	left, right, err := amsynth.RenderMIDIFile(synth, midiPath, tail)
	if err != nil {
		return err
	}
	if err := amsynth.WriteWAV(wavPath, left, right, synth.SampleRate()); err != nil {
		return err
	}
	fmt.Printf("wrote %s (%.1fs)\n", wavPath, float64(len(left))/float64(synth.SampleRate()))
	return nil
}

func playLive(synth *amsynth.Synthesizer, inPort, outPort string, keys bool) error {
	defer gomidi.CloseDriver()
	if inPort == "" && !keys {
		return errors.New("nothing to play from: use -midi-in, -keys or -render")
	}

	pl, err := amsynth.NewPlayer(synth.SampleRate(), synth)
	if err != nil {
		return err
	}
	defer pl.Close()

	if inPort != "" {
		stop, err := listen(inPort, pl)
		if err != nil {
			return err
		}
		defer stop()
	}
	if outPort != "" {
		if err := forwardFeedback(outPort, pl); err != nil {
			return err
		}
	}
	if err := pl.Play(); err != nil {
		return err
	}
	fmt.Printf("playing %q\n", synth.PresetName())

	if keys {
		return playKeys(pl, synth.MidiChannel())
	}
	fmt.Println("press Ctrl-C to quit")
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	return nil
}

func listen(name string, pl *amsynth.Player) (func(), error) {
	in, err := gomidi.FindInPort(name)
	if err != nil {
		return nil, fmt.Errorf("MIDI input %q: %w", name, err)
	}
	stop, err := gomidi.ListenTo(in, func(msg gomidi.Message, timestampms int32) {
		if !pl.SendMIDIAt(msg, time.Duration(timestampms)*time.Millisecond) {
			log.Printf("event queue full, dropped %v", msg)
		}
	}, gomidi.HandleError(func(err error) {
		log.Printf("MIDI input %s: %v", in, err)
	}))
	if err != nil {
		return nil, fmt.Errorf("MIDI input %q: %w", name, err)
	}
	fmt.Printf("listening on %s\n", in)
	return stop, nil
}

// forwardFeedback sends the controller values the synthesizer emits to a
// MIDI output so motorised or LED controllers follow preset changes.
func forwardFeedback(name string, pl *amsynth.Player) error {
	out, err := gomidi.FindOutPort(name)
	if err != nil {
		return fmt.Errorf("MIDI output %q: %w", name, err)
	}
	send, err := gomidi.SendTo(out)
	if err != nil {
		return fmt.Errorf("MIDI output %q: %w", name, err)
	}
	ch := pl.Watch()
	go func() {
		for m := range ch {
			if err := send(m.Message()); err != nil {
				log.Printf("MIDI output %s: %v", out, err)
				return
			}
		}
	}()
	return nil
}
