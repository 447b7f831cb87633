package amsynth

import (
	"cmp"
	"errors"
	"slices"
	"sync"
	"time"

	intaudio "github.com/cbegin/amsynth-go/internal/audio"
)

type PlayerOption func(*playerConfig)

type playerConfig struct {
	queueSize  int
	bufferSize time.Duration
	sampleTap  func([]float32)
}

func defaultPlayerConfig() playerConfig {
	return playerConfig{queueSize: 1024, bufferSize: 20 * time.Millisecond}
}

// WithQueueSize bounds the number of events waiting for the next block.
func WithQueueSize(n int) PlayerOption {
	return func(cfg *playerConfig) {
		cfg.queueSize = n
	}
}

// WithBufferSize sets the audio device buffer. Smaller is lower latency.
func WithBufferSize(d time.Duration) PlayerOption {
	return func(cfg *playerConfig) {
		cfg.bufferSize = d
	}
}

// WithSampleTap is handed every interleaved block after rendering, on the
// audio goroutine. It must not block or keep dst.
func WithSampleTap(tap func([]float32)) PlayerOption {
	return func(cfg *playerConfig) {
		cfg.sampleTap = tap
	}
}

// Player renders a Synthesizer to the default audio device. The Send
// methods are safe to call from any goroutine; their events are applied
// during the next block the device pulls.
type Player struct {
	mu         sync.Mutex
	synth      *Synthesizer
	sampleRate int
	bufferSize time.Duration
	audio      *intaudio.Player
	queue      *EventQueue
	closed     bool

	// render goroutine only
	events     []Event
	ccOut      []CCMessage
	sampleTap  func([]float32)
	lastRender int64

	now      func() time.Time
	clockMu  sync.Mutex
	anchor   int64 // sender clock to wall clock, ns
	anchored bool

	feedbackCh   chan CCMessage
	feedbackChMu sync.Mutex
}

// NewPlayer prepares synth for realtime output at sampleRate. The device
// is opened by the first Play. synth must not be used directly while the
// player is running.
func NewPlayer(sampleRate int, synth *Synthesizer, opts ...PlayerOption) (*Player, error) {
	if sampleRate <= 0 {
		return nil, errors.New("sampleRate must be positive")
	}
	if synth == nil {
		return nil, errors.New("synth is nil")
	}
	cfg := defaultPlayerConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	synth.SetSampleRate(sampleRate)
	return &Player{
		synth:      synth,
		sampleRate: sampleRate,
		bufferSize: cfg.bufferSize,
		queue:      NewEventQueue(cfg.queueSize),
		events:     make([]Event, 0, max(cfg.queueSize, 1)),
		ccOut:      make([]CCMessage, 0, NumParameters),
		sampleTap:  cfg.sampleTap,
		now:        time.Now,
	}, nil
}

// Render fills dst with interleaved stereo frames. The audio stream calls
// it; it is exported for hosts that drive their own device.
func (p *Player) Render(dst []float32) {
	p.events = p.queue.Drain(p.events[:0])
	p.placeEvents(p.now().UnixNano(), len(dst)/2)
	left, right := dst, dst
	if len(dst) > 0 {
		right = dst[1:]
	}
	p.ccOut = p.synth.Process(len(dst)/2, p.events, p.ccOut[:0], left, right, 2)
	for _, m := range p.ccOut {
		p.sendFeedback(m)
	}
	if p.sampleTap != nil {
		p.sampleTap(dst)
	}
}

// placeEvents spreads the events that arrived during the previous block
// over this one by arrival time. Spacing between events is kept at the
// cost of one block of latency. Unstamped events go first.
func (p *Player) placeEvents(now int64, frames int) {
	span := now - p.lastRender
	for i := range p.events {
		ev := &p.events[i]
		ev.Offset = 0
		if ev.at == 0 || p.lastRender == 0 || span <= 0 || frames == 0 {
			continue
		}
		off := int(float64(ev.at-p.lastRender) / float64(span) * float64(frames))
		ev.Offset = min(max(off, 0), frames-1)
	}
	p.lastRender = now
	slices.SortStableFunc(p.events, func(a, b Event) int {
		return cmp.Compare(a.Offset, b.Offset)
	})
}

// Send queues ev for the start of the next block. It reports false if
// the queue is full and the event was dropped.
func (p *Player) Send(ev Event) bool {
	ev.at = 0
	return p.queue.Push(ev)
}

// SendMIDI queues raw MIDI bytes, timed by when they arrive here.
func (p *Player) SendMIDI(msg []byte) bool {
	ev := MIDIEvent(0, msg)
	ev.at = p.now().UnixNano()
	return p.queue.Push(ev)
}

// maxClockSkew is how far a sender timestamp may trail the wall clock
// before the sender's clock is tied to it again.
const maxClockSkew = 50 * time.Millisecond

// SendMIDIAt queues MIDI bytes timed on the sender's clock, such as the
// millisecond timestamps a gomidi listener receives. The first call ties
// that clock to the wall clock; a timestamp in the future, or one
// trailing by more than maxClockSkew, ties it again.
func (p *Player) SendMIDIAt(msg []byte, at time.Duration) bool {
	now := p.now().UnixNano()
	p.clockMu.Lock()
	stamp := p.anchor + int64(at)
	if !p.anchored || stamp > now || stamp < now-int64(maxClockSkew) {
		p.anchor = now - int64(at)
		p.anchored = true
		stamp = now
	}
	p.clockMu.Unlock()

	ev := MIDIEvent(0, msg)
	ev.at = stamp
	return p.queue.Push(ev)
}

// SetParameter queues a parameter change.
func (p *Player) SetParameter(id ParamID, value float64) bool {
	return p.queue.Push(ParameterEvent(0, id, value))
}

func (p *Player) sendFeedback(m CCMessage) {
	p.feedbackChMu.Lock()
	ch := p.feedbackCh
	p.feedbackChMu.Unlock()
	if ch == nil {
		return
	}
	select {
	case ch <- m:
	default:
	}
}

// Watch returns a channel receiving the control changes the synthesizer
// emits for external controllers, for forwarding to a MIDI output.
// Messages that find its 64-slot buffer full are lost. Calling Watch
// again replaces the previous channel.
func (p *Player) Watch() <-chan CCMessage {
	ch := make(chan CCMessage, 64)
	p.feedbackChMu.Lock()
	p.feedbackCh = ch
	p.feedbackChMu.Unlock()
	return ch
}

// Play starts or resumes output, opening the device on first use.
func (p *Player) Play() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return errors.New("player is closed")
	}
	if p.audio == nil {
		backend, err := intaudio.NewPlayer(p.sampleRate, p.bufferSize, p)
		if err != nil {
			return err
		}
		p.audio = backend
	}
	p.audio.Play()
	return nil
}

func (p *Player) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.audio != nil {
		p.audio.Pause()
	}
}

func (p *Player) IsPlaying() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.audio != nil && p.audio.IsPlaying()
}

// Close stops output for good.
func (p *Player) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	if p.audio == nil {
		return nil
	}
	err := p.audio.Close()
	p.audio = nil
	return err
}
