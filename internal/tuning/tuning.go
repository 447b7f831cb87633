// Package tuning maps MIDI note numbers to frequencies using Scala scale
// (.scl) and keyboard mapping (.kbm) files.
package tuning

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

// ErrMalformed is returned (wrapped) for any scale or keymap that fails
// to parse. The map is left unchanged in that case.
var ErrMalformed = errors.New("tuning: malformed file")

// Map holds a scale and a keyboard mapping. The zero value is not ready
// for use; call NewMap.
type Map struct {
	scaleDesc string
	scale     []float64 // degrees 1..n as ratios; the last entry is the period

	mapping      []int // scale degree per key relative to zeroNote, -1 unmapped
	mapRepeatInc int
	zeroNote     int
	refNote      int
	refPitch     float64
	activeLo     int
	activeHi     int

	basePitch float64
}

// NewMap returns 12-tone equal temperament with A4 (note 69) at 440 Hz.
func NewMap() *Map {
	m := &Map{}
	m.Default()
	return m
}

// Default restores 12-TET and the linear keymap.
func (m *Map) Default() {
	m.scaleDesc = "12-tone equal temperament"
	m.scale = m.scale[:0]
	for i := 1; i <= 12; i++ {
		m.scale = append(m.scale, math.Pow(2, float64(i)/12))
	}
	m.defaultKeymap()
	m.updateBasePitch()
}

func (m *Map) defaultKeymap() {
	m.mapping = []int{0}
	m.mapRepeatInc = 1
	m.zeroNote = 60
	m.refNote = 69
	m.refPitch = 440
	m.activeLo = 0
	m.activeHi = 127
}

func (m *Map) ScaleDescription() string { return m.scaleDesc }
func (m *Map) ScaleSize() int           { return len(m.scale) }
func (m *Map) RefNote() int             { return m.refNote }
func (m *Map) RefPitch() float64        { return m.refPitch }
func (m *Map) ActiveRange() (lo, hi int) {
	return m.activeLo, m.activeHi
}

// NoteToPitch returns the frequency in Hz for note, or -1 when the note
// is outside the active range or unmapped.
func (m *Map) NoteToPitch(note int) float64 {
	if note < m.activeLo || note > m.activeHi {
		return -1
	}
	rel := m.relativePitch(note)
	if rel < 0 {
		return -1
	}
	return m.basePitch * rel
}

// relativePitch is the pitch ratio of note relative to the zero note,
// ignoring the active range.
func (m *Map) relativePitch(note int) float64 {
	mapSize := len(m.mapping)
	nRepeats, mapIndex := floorDivMod(note-m.zeroNote, mapSize)
	degreeInMap := m.mapping[mapIndex]
	if degreeInMap < 0 {
		return -1
	}
	degree := nRepeats*m.mapRepeatInc + degreeInMap

	scaleSize := len(m.scale)
	nOctaves, scaleIndex := floorDivMod(degree, scaleSize)
	pitch := math.Pow(m.scale[scaleSize-1], float64(nOctaves))
	if scaleIndex > 0 {
		pitch *= m.scale[scaleIndex-1]
	}
	return pitch
}

func (m *Map) updateBasePitch() {
	rel := m.relativePitch(m.refNote)
	if rel <= 0 {
		// The reference key is unmapped; pin the zero note instead.
		rel = 1
	}
	m.basePitch = m.refPitch / rel
}

func floorDivMod(a, b int) (q, r int) {
	q = a / b
	r = a % b
	if r < 0 {
		r += b
		q--
	}
	return q, r
}

// LoadScale reads a Scala .scl file.
func (m *Map) LoadScale(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := m.ReadScale(f); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// ReadScale parses scale data from r. On error the current scale is kept.
func (m *Map) ReadScale(r io.Reader) error {
	lines, err := scalaLines(r)
	if err != nil {
		return err
	}
	if len(lines) < 2 {
		return fmt.Errorf("%w: scale is missing its header", ErrMalformed)
	}
	desc := strings.TrimSpace(lines[0])
	body := nonBlank(lines[1:])
	if len(body) == 0 {
		return fmt.Errorf("%w: scale has no note count", ErrMalformed)
	}
	count, err := strconv.Atoi(firstField(body[0]))
	if err != nil || count < 1 {
		return fmt.Errorf("%w: bad note count %q", ErrMalformed, body[0])
	}
	entries := body[1:]
	if len(entries) < count {
		return fmt.Errorf("%w: scale lists %d of %d notes", ErrMalformed, len(entries), count)
	}

	scale := make([]float64, 0, count)
	for _, line := range entries[:count] {
		ratio, err := parsePitch(firstField(line))
		if err != nil {
			return err
		}
		scale = append(scale, ratio)
	}

	m.scaleDesc = desc
	m.scale = scale
	m.updateBasePitch()
	return nil
}

// parsePitch reads a scale entry: cents when it contains a '.', otherwise
// a ratio "n/d" or a bare integer.
func parsePitch(s string) (float64, error) {
	if strings.Contains(s, ".") {
		cents, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: bad cents value %q", ErrMalformed, s)
		}
		return math.Pow(2, cents/1200), nil
	}
	num, den := s, "1"
	if i := strings.IndexByte(s, '/'); i >= 0 {
		num, den = s[:i], s[i+1:]
	}
	n, err1 := strconv.ParseUint(num, 10, 64)
	d, err2 := strconv.ParseUint(den, 10, 64)
	if err1 != nil || err2 != nil || n == 0 || d == 0 {
		return 0, fmt.Errorf("%w: bad ratio %q", ErrMalformed, s)
	}
	return float64(n) / float64(d), nil
}

// LoadKeymap reads a Scala .kbm file.
func (m *Map) LoadKeymap(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := m.ReadKeymap(f); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// ReadKeymap parses keyboard mapping data from r. On error the current
// mapping is kept.
func (m *Map) ReadKeymap(r io.Reader) error {
	lines, err := scalaLines(r)
	if err != nil {
		return err
	}
	lines = nonBlank(lines)
	if len(lines) < 7 {
		return fmt.Errorf("%w: keymap header needs 7 values, got %d", ErrMalformed, len(lines))
	}

	var hdr [7]int
	names := [7]string{"map size", "first note", "last note", "middle note", "reference note", "reference frequency", "octave degree"}
	for i := range hdr {
		if i == 5 {
			continue
		}
		v, err := strconv.Atoi(firstField(lines[i]))
		if err != nil {
			return fmt.Errorf("%w: bad %s %q", ErrMalformed, names[i], lines[i])
		}
		hdr[i] = v
	}
	refPitch, err := strconv.ParseFloat(firstField(lines[5]), 64)
	if err != nil || refPitch <= 0 {
		return fmt.Errorf("%w: bad reference frequency %q", ErrMalformed, lines[5])
	}

	size, lo, hi, zero, ref, repeat := hdr[0], hdr[1], hdr[2], hdr[3], hdr[4], hdr[6]
	switch {
	case size < 0:
		return fmt.Errorf("%w: negative map size", ErrMalformed)
	case !validNote(lo) || !validNote(hi) || lo > hi:
		return fmt.Errorf("%w: bad note range %d-%d", ErrMalformed, lo, hi)
	case !validNote(zero) || !validNote(ref):
		return fmt.Errorf("%w: middle or reference note out of range", ErrMalformed)
	}

	var mapping []int
	if size == 0 {
		mapping = []int{0}
		repeat = 1
	} else {
		entries := lines[7:]
		if len(entries) < size {
			return fmt.Errorf("%w: keymap lists %d of %d keys", ErrMalformed, len(entries), size)
		}
		mapping = make([]int, size)
		for i, line := range entries[:size] {
			field := firstField(line)
			if field == "x" || field == "X" {
				mapping[i] = -1
				continue
			}
			v, err := strconv.Atoi(field)
			if err != nil || v < 0 {
				return fmt.Errorf("%w: bad key mapping %q", ErrMalformed, line)
			}
			mapping[i] = v
		}
	}

	m.mapping = mapping
	m.mapRepeatInc = repeat
	m.zeroNote = zero
	m.refNote = ref
	m.refPitch = refPitch
	m.activeLo = lo
	m.activeHi = hi
	m.updateBasePitch()
	return nil
}

func validNote(n int) bool { return n >= 0 && n <= 127 }

// scalaLines returns the non-comment lines of a Scala file.
func scalaLines(r io.Reader) ([]string, error) {
	var lines []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if strings.HasPrefix(line, "!") {
			continue
		}
		lines = append(lines, line)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}

func nonBlank(lines []string) []string {
	out := lines[:0:0]
	for _, l := range lines {
		if strings.TrimSpace(l) != "" {
			out = append(out, l)
		}
	}
	return out
}

func firstField(line string) string {
	f := strings.Fields(line)
	if len(f) == 0 {
		return ""
	}
	return f[0]
}
