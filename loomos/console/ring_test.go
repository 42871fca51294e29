package console

import (
	"strconv"
	"sync"
	"testing"

	"loom/hal"
)

var _ hal.Logger = (*Logger)(nil)

func TestRingTryPopEmpty(t *testing.T) {
	var r Ring

	_, ok := r.TryPop()
	if ok {
		t.Fatalf("TryPop() ok = true, want false")
	}
}

func TestRingTryPushFull(t *testing.T) {
	var r Ring

	for i := 0; i < ringSlots; i++ {
		if ok := r.TryPush("x"); !ok {
			t.Fatalf("TryPush() ok = false at slot %d, want true", i)
		}
	}
	if ok := r.TryPush("x"); ok {
		t.Fatalf("TryPush() ok = true when full, want false")
	}

	r.PushOrDrop("y")
	if got := r.Dropped(); got != 1 {
		t.Fatalf("Dropped() = %d, want 1", got)
	}
	if got := r.Drain(func(string) {}); got != ringSlots {
		t.Fatalf("Drain() = %d, want %d", got, ringSlots)
	}
	if got := r.Len(); got != 0 {
		t.Fatalf("Len() = %d, want 0", got)
	}
}

func TestLoggerKeepsOrder(t *testing.T) {
	var r Ring
	l := NewLogger(&r, false)

	l.WriteLineString("one")
	l.WriteLineBytes([]byte("two"))

	var got []string
	r.Drain(func(s string) { got = append(got, s) })
	if len(got) != 2 || got[0] != "one" || got[1] != "two" {
		t.Fatalf("Drain() lines = %q, want [one two]", got)
	}
}

func TestRingProducerConsumer(t *testing.T) {
	const total = 20_000

	var r Ring
	l := NewLogger(&r, true)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < total; i++ {
			l.WriteLineString(strconv.Itoa(i))
		}
	}()

	next := 0
	for next < total {
		r.Drain(func(s string) {
			if s != strconv.Itoa(next) {
				t.Errorf("line %d = %q", next, s)
			}
			next++
		})
	}
	wg.Wait()
}
