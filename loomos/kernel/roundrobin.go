package kernel

import "loom/hal"

// RoundRobinScheduler hands out access in arrival order. It keeps no
// per-thread state: every thread reports the default priority.
type RoundRobinScheduler struct {
	intr *hal.Interrupt
}

func NewRoundRobinScheduler(intr *hal.Interrupt) *RoundRobinScheduler {
	return &RoundRobinScheduler{intr: intr}
}

func (s *RoundRobinScheduler) NewThreadQueue(bool) ThreadQueue {
	return &fifoQueue{intr: s.intr}
}

func (s *RoundRobinScheduler) Priority(*Thread) int {
	assertf(s.intr.Disabled(), "Priority with interrupts enabled")
	return PriorityDefault
}

func (s *RoundRobinScheduler) EffectivePriority(*Thread) int {
	assertf(s.intr.Disabled(), "EffectivePriority with interrupts enabled")
	return PriorityDefault
}

// SetPriority validates priority and otherwise ignores it.
func (s *RoundRobinScheduler) SetPriority(t *Thread, priority int) {
	assertf(s.intr.Disabled(), "SetPriority with interrupts enabled")
	assertf(validPriority(priority), "priority %d of %s out of range", priority, t)
}

func (s *RoundRobinScheduler) IncreasePriority(*Thread) bool { return false }
func (s *RoundRobinScheduler) DecreasePriority(*Thread) bool { return false }
func (s *RoundRobinScheduler) Forget(*Thread)                {}

// fifoQueue is a growable ring. head and tail only ever increase; their
// difference is the number of queued threads.
type fifoQueue struct {
	intr  *hal.Interrupt
	head  uint32
	tail  uint32
	slots []*Thread
}

func (q *fifoQueue) WaitForAccess(t *Thread) {
	assertf(q.intr.Disabled(), "WaitForAccess(%s) with interrupts enabled", t)
	q.push(t)
}

func (q *fifoQueue) NextThread() *Thread {
	assertf(q.intr.Disabled(), "NextThread with interrupts enabled")
	t, _ := q.pop()
	return t
}

func (q *fifoQueue) Acquire(t *Thread) {
	assertf(q.intr.Disabled(), "Acquire(%s) with interrupts enabled", t)
	assertf(q.Len() == 0, "Acquire(%s) on a queue with %d waiters", t, q.Len())
}

func (q *fifoQueue) Pick() *Thread {
	if q.head == q.tail {
		return nil
	}
	return q.slots[q.tail%uint32(len(q.slots))]
}

func (q *fifoQueue) Len() int { return int(q.head - q.tail) }

func (q *fifoQueue) push(t *Thread) {
	if q.Len() == len(q.slots) {
		q.grow()
	}
	q.slots[q.head%uint32(len(q.slots))] = t
	q.head++
}

func (q *fifoQueue) pop() (*Thread, bool) {
	if q.tail == q.head {
		return nil, false
	}
	i := q.tail % uint32(len(q.slots))
	t := q.slots[i]
	q.slots[i] = nil
	q.tail++
	return t, true
}

func (q *fifoQueue) grow() {
	n := 2 * len(q.slots)
	if n == 0 {
		n = 8
	}
	slots := make([]*Thread, n)
	size := uint32(len(q.slots))
	for i := q.tail; i != q.head; i++ {
		slots[i-q.tail] = q.slots[i%size]
	}
	q.head -= q.tail
	q.tail = 0
	q.slots = slots
}
