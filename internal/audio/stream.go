// Package audio connects a pull-based sample source to the ebiten audio
// device.
package audio

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"slices"
	"sync"
	"time"

	ebitaudio "github.com/hajimehoshi/ebiten/v2/audio"
)

// Source fills dst with interleaved stereo frames.
type Source interface {
	Render(dst []float32)
}

// StreamReader adapts a Source to the little-endian float32 byte stream
// the audio context pulls from.
type StreamReader struct {
	mu     sync.Mutex
	source Source
	buf    []float32
	closed bool
}

func NewStreamReader(source Source) *StreamReader {
	return &StreamReader{source: source}
}

func (r *StreamReader) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return 0, io.EOF
	}

	// 8 bytes per stereo frame; a partial frame waits for the next read.
	samples := len(p) / 8 * 2
	if samples == 0 {
		return 0, nil
	}
	r.buf = slices.Grow(r.buf[:0], samples)[:samples]
	clear(r.buf)
	r.source.Render(r.buf)
	for i, s := range r.buf {
		binary.LittleEndian.PutUint32(p[4*i:], math.Float32bits(min(max(s, -1), 1)))
	}
	return samples * 4, nil
}

// Close makes further reads return io.EOF.
func (r *StreamReader) Close() error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	return nil
}

type Player struct {
	player *ebitaudio.Player
	reader *StreamReader
}

// ebiten allows one context per process, fixed at its first sample rate.
var device struct {
	once sync.Once
	ctx  *ebitaudio.Context
}

func openDevice(sampleRate int) (*ebitaudio.Context, error) {
	device.once.Do(func() {
		device.ctx = ebitaudio.NewContext(sampleRate)
	})
	if rate := device.ctx.SampleRate(); rate != sampleRate {
		return nil, fmt.Errorf("audio: device is open at %d Hz, not %d Hz", rate, sampleRate)
	}
	return device.ctx, nil
}

// NewPlayer opens a stream from source. bufferSize trades latency for
// robustness; zero keeps the device default.
func NewPlayer(sampleRate int, bufferSize time.Duration, source Source) (*Player, error) {
	ctx, err := openDevice(sampleRate)
	if err != nil {
		return nil, err
	}
	p := &Player{reader: NewStreamReader(source)}
	if p.player, err = ctx.NewPlayerF32(p.reader); err != nil {
		return nil, fmt.Errorf("audio: %w", err)
	}
	if bufferSize > 0 {
		p.player.SetBufferSize(bufferSize)
	}
	return p, nil
}

func (p *Player) Play()           { p.player.Play() }
func (p *Player) Pause()          { p.player.Pause() }
func (p *Player) IsPlaying() bool { return p.player.IsPlaying() }

func (p *Player) Close() error {
	p.player.Pause()
	p.reader.Close()
	return p.player.Close()
}
