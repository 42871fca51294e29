// Package console moves text lines from kernel threads to the host.
//
// Kernel threads run on goroutines the host loop does not own, so the
// kernel never writes to the host directly: it pushes lines into a Ring and
// the host drains them once per frame.
package console

import (
	"runtime"
	"sync/atomic"
)

const ringSlots = 512

// Ring is a fixed-size single-producer, single-consumer queue of lines.
// Kernel threads hand the CPU to each other explicitly, so together they
// act as a single producer.
type Ring struct {
	_       [0]func() // prevent accidental copying.
	head    atomic.Uint32
	tail    atomic.Uint32
	dropped atomic.Uint64
	slots   [ringSlots]string
}

// TryPush enqueues a line, returning false if the ring is full.
func (r *Ring) TryPush(line string) bool {
	head := r.head.Load()
	tail := r.tail.Load()
	if head-tail >= ringSlots {
		return false
	}
	r.slots[head%ringSlots] = line
	r.head.Store(head + 1)
	return true
}

// Push enqueues a line, waiting for the consumer while the ring is full.
func (r *Ring) Push(line string) {
	for !r.TryPush(line) {
		runtime.Gosched()
	}
}

// PushOrDrop enqueues a line or counts it as dropped.
func (r *Ring) PushOrDrop(line string) {
	if !r.TryPush(line) {
		r.dropped.Add(1)
	}
}

// TryPop dequeues one line, returning false if the ring is empty.
func (r *Ring) TryPop() (string, bool) {
	tail := r.tail.Load()
	head := r.head.Load()
	if tail == head {
		return "", false
	}
	i := tail % ringSlots
	line := r.slots[i]
	r.slots[i] = ""
	r.tail.Store(tail + 1)
	return line, true
}

// Drain pops every queued line into fn and returns how many were popped.
func (r *Ring) Drain(fn func(string)) int {
	n := 0
	for {
		line, ok := r.TryPop()
		if !ok {
			return n
		}
		fn(line)
		n++
	}
}

// Len returns the number of queued lines.
func (r *Ring) Len() int { return int(r.head.Load() - r.tail.Load()) }

// Dropped returns how many lines PushOrDrop discarded.
func (r *Ring) Dropped() uint64 { return r.dropped.Load() }
