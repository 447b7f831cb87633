package amsynth

import "sync"

// MaxEventBytes is the most MIDI data one Event carries.
const MaxEventBytes = 16

type EventKind uint8

const (
	// EventMIDI carries raw MIDI bytes for the input parser.
	EventMIDI EventKind = iota
	// EventParameter sets a parameter to a value in its own range.
	EventParameter
)

// Event is one timestamped input to Synthesizer.Process. Offset is the
// frame within the block at which it takes effect.
type Event struct {
	Offset int
	Kind   EventKind

	Data [MaxEventBytes]byte
	Size uint8

	Param ParamID
	Value float64

	at int64 // arrival on the wall clock in ns, 0 if unstamped
}

// MIDIEvent wraps msg, which may hold several messages using running
// status. Bytes beyond MaxEventBytes are dropped.
func MIDIEvent(offset int, msg []byte) Event {
	ev := Event{Offset: offset, Kind: EventMIDI}
	ev.Size = uint8(copy(ev.Data[:], msg))
	return ev
}

func ParameterEvent(offset int, id ParamID, value float64) Event {
	return Event{Offset: offset, Kind: EventParameter, Param: id, Value: value}
}

// EventQueue is a bounded FIFO handing events from MIDI or UI goroutines
// to the render goroutine. It never grows: Push fails when it is full.
type EventQueue struct {
	mu   sync.Mutex
	buf  []Event
	head int
	n    int
}

func NewEventQueue(capacity int) *EventQueue {
	return &EventQueue{buf: make([]Event, max(capacity, 1))}
}

// Push appends ev and reports false if the queue was full.
func (q *EventQueue) Push(ev Event) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.n == len(q.buf) {
		return false
	}
	q.buf[(q.head+q.n)%len(q.buf)] = ev
	q.n++
	return true
}

// Drain moves every queued event onto dst in push order. It allocates
// only if dst lacks capacity.
func (q *EventQueue) Drain(dst []Event) []Event {
	q.mu.Lock()
	defer q.mu.Unlock()
	for ; q.n > 0; q.n-- {
		dst = append(dst, q.buf[q.head])
		q.head = (q.head + 1) % len(q.buf)
	}
	return dst
}

func (q *EventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.n
}

func (q *EventQueue) Cap() int { return len(q.buf) }
