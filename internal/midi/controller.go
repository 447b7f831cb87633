// Package midi parses MIDI byte streams into synthesizer actions and keeps
// external controllers in step with parameter changes.
package midi

import (
	"math"

	gomidi "gitlab.com/gomidi/midi/v2"

	"github.com/cbegin/amsynth-go/internal/preset"
)

// VoiceHandler receives the note and performance events the parser
// decodes. The engine's VoiceAllocationUnit implements it.
type VoiceHandler interface {
	HandleMidiNoteOn(note int, velocity float64)
	HandleMidiNoteOff(note int, velocity float64)
	HandleMidiSustainPedal(value uint8)
	HandleMidiPitchWheel(value float64)
	HandleMidiPitchWheelSensitivity(semitones int)
	HandleMidiPan(value float64)
	HandleMidiAllSoundOff()
	HandleMidiAllNotesOff()
}

// Channel mode and standard controller numbers.
const (
	ccBankSelectMSB     = 0
	ccDataEntryMSB      = 6
	ccPan               = 10
	ccBankSelectLSB     = 32
	ccSustain           = 64
	ccNRPNLSB           = 98
	ccNRPNMSB           = 99
	ccRPNLSB            = 100
	ccRPNMSB            = 101
	ccAllSoundOff       = 120
	ccResetControllers  = 121
	ccAllNotesOff       = 123
	ccOmniOff           = 124
	ccOmniOn            = 125
	ccMonoOn            = 126
	ccPolyOn            = 127
	rpnPitchBendRange   = 0
	rpnNull             = 0x3fff
	keyboardModePoly    = 0
	keyboardModeMono    = 1
	pitchBendCenter     = 8192
	noValue             = -1
	statusNoteOff       = 0x80
	statusNoteOn        = 0x90
	statusPolyPressure  = 0xa0
	statusControlChange = 0xb0
	statusProgramChange = 0xc0
	statusChanPressure  = 0xd0
	statusPitchBend     = 0xe0
)

// CCMessage is an outgoing control change. Channel is zero based.
type CCMessage struct {
	Channel    uint8
	Controller uint8
	Value      uint8
}

// Message converts m to a gomidi message for sending to a port.
func (m CCMessage) Message() gomidi.Message {
	return gomidi.ControlChange(m.Channel, m.Controller, m.Value)
}

// Controller is the stateful MIDI input parser. It keeps running status
// across calls, routes controllers through a ControllerMap to preset
// parameters and everything else to a VoiceHandler.
//
// Controller is not safe for concurrent use; it is driven from the render
// loop.
type Controller struct {
	presets *preset.Controller
	voices  VoiceHandler
	ccMap   *ControllerMap

	channel int // 1-16, or 0 for omni

	status byte
	data   [2]byte
	count  int

	rpn     int
	// bank select, -1 until received
	bankMSB int
	bankLSB int

	learning  preset.ParamID
	onProgram func(bank, program int)
	onLearn   func(cc int, id preset.ParamID)

	// last controller value sent or received per parameter
	lastValue [preset.ParamCount]int
}

func NewController(presets *preset.Controller, voices VoiceHandler) *Controller {
	c := &Controller{
		presets:  presets,
		voices:   voices,
		ccMap:    NewControllerMap(),
		rpn:      rpnNull,
		bankMSB:  -1,
		bankLSB:  -1,
		learning: NoParam,
	}
	for i := range c.lastValue {
		c.lastValue[i] = noValue
	}
	return c
}

func (c *Controller) ControllerMap() *ControllerMap { return c.ccMap }
func (c *Controller) Channel() int                  { return c.channel }

// SetChannel restricts input to one channel, 1-16. Zero accepts all
// channels; anything else is ignored.
func (c *Controller) SetChannel(ch int) {
	if ch >= 0 && ch <= 16 {
		c.channel = ch
	}
}

// OnProgramChange registers fn to run after a program change has selected
// a preset.
func (c *Controller) OnProgramChange(fn func(bank, program int)) {
	c.onProgram = fn
}

// OnLearn registers fn to run when a learn request is completed.
func (c *Controller) OnLearn(fn func(cc int, id preset.ParamID)) {
	c.onLearn = fn
}

// Learn assigns the next incoming controller to id. NoParam cancels a
// pending request.
func (c *Controller) Learn(id preset.ParamID) {
	if id < 0 || id >= preset.ParamCount {
		id = NoParam
	}
	c.learning = id
}

func (c *Controller) Learning() preset.ParamID { return c.learning }

// Reset forgets running status and controller state.
func (c *Controller) Reset() {
	c.status = 0
	c.count = 0
	c.rpn = rpnNull
}

// HandleMidiData parses a buffer of raw MIDI bytes. Messages may span
// calls. Realtime bytes are skipped without disturbing running status;
// system common and exclusive bytes cancel it, so their data is dropped.
func (c *Controller) HandleMidiData(data []byte) {
	for _, b := range data {
		switch {
		case b >= 0xf8:
			continue
		case b >= 0xf0:
			c.status = 0
			c.count = 0
		case b&0x80 != 0:
			c.status = b
			c.count = 0
		case c.status != 0:
			c.data[c.count] = b
			c.count++
			if c.count == dataLength(c.status) {
				c.count = 0
				c.dispatch(c.status, c.data[0], c.data[1])
			}
		}
	}
}

// HandleMessage parses a single gomidi message.
func (c *Controller) HandleMessage(msg gomidi.Message) {
	c.HandleMidiData(msg.Bytes())
}

func dataLength(status byte) int {
	switch status & 0xf0 {
	case statusProgramChange, statusChanPressure:
		return 1
	}
	return 2
}

func (c *Controller) dispatch(status, d1, d2 byte) {
	if c.channel != 0 && int(status&0x0f) != c.channel-1 {
		return
	}
	switch status & 0xf0 {
	case statusNoteOff:
		c.voices.HandleMidiNoteOff(int(d1), float64(d2)/127)
	case statusNoteOn:
		if d2 == 0 {
			c.voices.HandleMidiNoteOff(int(d1), 0)
		} else {
			c.voices.HandleMidiNoteOn(int(d1), float64(d2)/127)
		}
	case statusPolyPressure, statusChanPressure:
		// pressure is not routed
	case statusControlChange:
		c.controlChange(int(d1), d2)
	case statusProgramChange:
		c.programChange(int(d1))
	case statusPitchBend:
		v := int(d1) | int(d2)<<7
		c.voices.HandleMidiPitchWheel(float64(v-pitchBendCenter) / pitchBendCenter)
	}
}

func (c *Controller) controlChange(cc int, value byte) {
	if c.learning != NoParam {
		id := c.learning
		c.learning = NoParam
		c.ccMap.Set(cc, id)
		if c.onLearn != nil {
			c.onLearn(cc, id)
		}
	}
	if id, ok := c.ccMap.Parameter(cc); ok {
		p := c.presets.CurrentPreset().Parameter(id)
		p.SetNormalizedValue(float64(value) / 127)
		c.lastValue[id] = ccValue(p)
		return
	}

	switch cc {
	case ccBankSelectMSB:
		c.bankMSB = int(value)
	case ccBankSelectLSB:
		c.bankLSB = int(value)
	case ccDataEntryMSB:
		if c.rpn == rpnPitchBendRange {
			c.voices.HandleMidiPitchWheelSensitivity(int(value))
		}
	case ccPan:
		c.voices.HandleMidiPan(panPosition(value))
	case ccSustain:
		c.voices.HandleMidiSustainPedal(value)
	case ccNRPNLSB, ccNRPNMSB:
		c.rpn = rpnNull
	case ccRPNLSB:
		c.rpn = c.rpn&^0x7f | int(value)
	case ccRPNMSB:
		c.rpn = c.rpn&0x7f | int(value)<<7
	case ccAllSoundOff:
		c.voices.HandleMidiAllSoundOff()
	case ccResetControllers:
		c.voices.HandleMidiPitchWheel(0)
		c.voices.HandleMidiSustainPedal(0)
		c.rpn = rpnNull
	case ccAllNotesOff, ccOmniOff, ccOmniOn:
		c.voices.HandleMidiAllNotesOff()
	case ccMonoOn:
		c.voices.HandleMidiAllNotesOff()
		c.presets.CurrentPreset().Parameter(preset.KeyboardMode).SetValue(keyboardModeMono)
	case ccPolyOn:
		c.voices.HandleMidiAllNotesOff()
		c.presets.CurrentPreset().Parameter(preset.KeyboardMode).SetValue(keyboardModePoly)
	}
}

// panPosition maps a controller value to [-1, 1] with 64 at the centre.
func panPosition(v byte) float64 {
	if v < 64 {
		return float64(int(v)-64) / 64
	}
	return float64(int(v)-64) / 63
}

// programChange selects program from the bank chosen by bank select,
// or from the current bank when none was sent or it does not exist.
func (c *Controller) programChange(program int) {
	if c.bankMSB >= 0 || c.bankLSB >= 0 {
		bank := max(c.bankMSB, 0)<<7 | max(c.bankLSB, 0)
		if c.presets.SelectBankPreset(bank, program) {
			c.programChanged(bank, program)
			return
		}
	}
	if c.presets.SelectPreset(program) {
		c.programChanged(c.presets.CurrentBankIndex(), program)
	}
}

func (c *Controller) programChanged(bank, program int) {
	if c.onProgram != nil {
		c.onProgram(bank, program)
	}
}

// ccValue is the controller value p would be sent as. Stepped parameters
// round-trip through it without drifting.
func ccValue(p *preset.Parameter) int {
	return int(math.Round(p.NormalizedValue() * 127))
}

// GenerateMidiOutput appends a control change to dst for every mapped
// parameter whose value has moved since it was last sent or received.
// Values arriving as controller input are not echoed back.
func (c *Controller) GenerateMidiOutput(dst []CCMessage) []CCMessage {
	ch := uint8(0)
	if c.channel > 0 {
		ch = uint8(c.channel - 1)
	}
	p := c.presets.CurrentPreset()
	for id := preset.ParamID(0); id < preset.ParamCount; id++ {
		cc, ok := c.ccMap.Controller(id)
		if !ok {
			continue
		}
		v := ccValue(p.Parameter(id))
		if v == c.lastValue[id] {
			continue
		}
		c.lastValue[id] = v
		dst = append(dst, CCMessage{Channel: ch, Controller: uint8(cc), Value: uint8(v)})
	}
	return dst
}
