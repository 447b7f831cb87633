package main

import (
	"fmt"
	"os"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"
	"golang.org/x/term"

	"github.com/cbegin/amsynth-go"
)

// keyGate is how long a key sounds; terminals report presses, not
// releases.
const keyGate = 400 * time.Millisecond

// keyNotes maps two rows of a QWERTY keyboard to a piano layout starting
// at C.
var keyNotes = map[byte]int{
	'a': 0, 'w': 1, 's': 2, 'e': 3, 'd': 4, 'f': 5, 't': 6,
	'g': 7, 'y': 8, 'h': 9, 'u': 10, 'j': 11, 'k': 12, 'o': 13, 'l': 14,
}

type keyboard struct {
	pl      *amsynth.Player
	channel uint8
	octave  int
	timers  map[int]*time.Timer
}

// keyChannel is the zero-based channel a synth listening on midiChannel
// (1-16, or 0 for omni) responds to.
func keyChannel(midiChannel int) uint8 {
	if midiChannel < 1 || midiChannel > 16 {
		return 0
	}
	return uint8(midiChannel - 1)
}

// playKeys reads raw keystrokes from stdin until q or Ctrl-C, sending on
// midiChannel.
func playKeys(pl *amsynth.Player, midiChannel int) error {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return fmt.Errorf("-keys needs a terminal on stdin")
	}
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return err
	}
	defer term.Restore(fd, oldState)

	fmt.Print("keys a-l play, z/x octave, space silences, q quits\r\n")
	kb := &keyboard{pl: pl, channel: keyChannel(midiChannel), octave: 5, timers: make(map[int]*time.Timer)}
	buf := make([]byte, 1)
	for {
		n, err := os.Stdin.Read(buf)
		if err != nil {
			return err
		}
		if n == 0 {
			continue
		}
		if !kb.press(buf[0]) {
			kb.pl.SendMIDI(gomidi.ControlChange(kb.channel, 123, 0))
			return nil
		}
	}
}

// press handles one keystroke and reports false when the user quits.
func (kb *keyboard) press(b byte) bool {
	switch b {
	case 'q', 3: // 3 is Ctrl-C in raw mode
		return false
	case 'z':
		kb.octave = max(kb.octave-1, 0)
	case 'x':
		kb.octave = min(kb.octave+1, 9)
	case ' ':
		kb.pl.SendMIDI(gomidi.ControlChange(kb.channel, 120, 0))
	default:
		offset, ok := keyNotes[b]
		if !ok {
			return true
		}
		note := kb.octave*12 + offset
		if note > 127 {
			return true
		}
		kb.noteOn(note)
	}
	return true
}

func (kb *keyboard) noteOn(note int) {
	if t, ok := kb.timers[note]; ok {
		t.Stop()
	}
	kb.pl.SendMIDI(gomidi.NoteOn(kb.channel, uint8(note), 100))
	kb.timers[note] = time.AfterFunc(keyGate, func() {
		kb.pl.SendMIDI(gomidi.NoteOff(kb.channel, uint8(note)))
	})
}
