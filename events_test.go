package amsynth

import (
	"sync"
	"testing"
)

func TestEventQueueOrderAndCapacity(t *testing.T) {
	q := NewEventQueue(3)
	for i := 0; i < 3; i++ {
		if !q.Push(ParameterEvent(i, 0, float64(i))) {
			t.Fatalf("push %d failed", i)
		}
	}
	if q.Push(ParameterEvent(9, 0, 9)) {
		t.Error("push into full queue succeeded")
	}
	got := q.Drain(nil)
	if len(got) != 3 {
		t.Fatalf("drained %d events", len(got))
	}
	for i, ev := range got {
		if ev.Offset != i {
			t.Errorf("event %d has offset %d", i, ev.Offset)
		}
	}
	if q.Len() != 0 {
		t.Errorf("len after drain: %d", q.Len())
	}

	// wrap around the ring
	q.Push(ParameterEvent(10, 0, 0))
	q.Push(ParameterEvent(11, 0, 0))
	got = q.Drain(got[:0])
	if len(got) != 2 || got[0].Offset != 10 || got[1].Offset != 11 {
		t.Errorf("after wrap: %+v", got)
	}
}

func TestEventQueueConcurrentPush(t *testing.T) {
	q := NewEventQueue(1000)
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 250; i++ {
				q.Push(MIDIEvent(0, []byte{0x90, 60, 100}))
			}
		}()
	}
	var drained []Event
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	for {
		select {
		case <-done:
			drained = q.Drain(drained)
			if len(drained) != 1000 {
				t.Errorf("drained %d events, want 1000", len(drained))
			}
			return
		default:
			drained = q.Drain(drained)
		}
	}
}

func TestMIDIEventTruncates(t *testing.T) {
	long := make([]byte, MaxEventBytes+5)
	for i := range long {
		long[i] = byte(i)
	}
	ev := MIDIEvent(3, long)
	if ev.Size != MaxEventBytes || ev.Kind != EventMIDI || ev.Offset != 3 {
		t.Errorf("got %+v", ev)
	}
	short := MIDIEvent(0, []byte{0x80, 60, 0})
	if short.Size != 3 || short.Data[1] != 60 {
		t.Errorf("got %+v", short)
	}
}
