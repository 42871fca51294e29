package kernel

import (
	"github.com/dolthub/swiss"
	"golang.org/x/exp/slices"

	"loom/hal"
)

// PriorityScheduler always hands access to the waiter with the highest
// effective priority, breaking ties by arrival. Queues created with
// transferPriority donate: the owner of such a queue runs at least at the
// effective priority of its best waiter, transitively.
//
// Effective priority is recomputed on demand rather than cached, so queues
// are scanned linearly. Donation cycles are not detected and must not be
// built; a thread waiting on a queue it transitively owns deadlocks anyway.
type PriorityScheduler struct {
	intr   *hal.Interrupt
	states *swiss.Map[ThreadID, *threadState]
}

func NewPriorityScheduler(intr *hal.Interrupt) *PriorityScheduler {
	return &PriorityScheduler{
		intr:   intr,
		states: swiss.NewMap[ThreadID, *threadState](16),
	}
}

type threadState struct {
	thread   *Thread
	priority int
	owned    []*priorityQueue
}

func (s *PriorityScheduler) NewThreadQueue(transferPriority bool) ThreadQueue {
	return &priorityQueue{s: s, transferPriority: transferPriority}
}

func (s *PriorityScheduler) Priority(t *Thread) int {
	assertf(s.intr.Disabled(), "Priority with interrupts enabled")
	return s.state(t).priority
}

func (s *PriorityScheduler) EffectivePriority(t *Thread) int {
	assertf(s.intr.Disabled(), "EffectivePriority with interrupts enabled")
	return s.effective(s.state(t))
}

func (s *PriorityScheduler) SetPriority(t *Thread, priority int) {
	assertf(s.intr.Disabled(), "SetPriority with interrupts enabled")
	assertf(validPriority(priority), "priority %d of %s out of range", priority, t)
	s.state(t).priority = priority
}

func (s *PriorityScheduler) IncreasePriority(t *Thread) bool {
	assertf(s.intr.Disabled(), "IncreasePriority with interrupts enabled")
	ts := s.state(t)
	if ts.priority == PriorityMaximum {
		return false
	}
	ts.priority++
	return true
}

func (s *PriorityScheduler) DecreasePriority(t *Thread) bool {
	assertf(s.intr.Disabled(), "DecreasePriority with interrupts enabled")
	ts := s.state(t)
	if ts.priority == PriorityMinimum {
		return false
	}
	ts.priority--
	return true
}

func (s *PriorityScheduler) Forget(t *Thread) {
	s.states.Delete(t.id)
}

func (s *PriorityScheduler) state(t *Thread) *threadState {
	ts, ok := s.states.Get(t.id)
	if !ok {
		ts = &threadState{thread: t, priority: PriorityDefault}
		s.states.Put(t.id, ts)
	}
	return ts
}

func (s *PriorityScheduler) effective(ts *threadState) int {
	eff := ts.priority
	for _, q := range ts.owned {
		if !q.transferPriority || len(q.waiters) == 0 {
			continue
		}
		if p := s.effective(s.state(q.waiters[q.pick()])); p > eff {
			eff = p
		}
	}
	return eff
}

func (ts *threadState) own(q *priorityQueue) {
	ts.owned = append(ts.owned, q)
}

func (ts *threadState) disown(q *priorityQueue) {
	if i := slices.Index(ts.owned, q); i >= 0 {
		ts.owned = slices.Delete(ts.owned, i, i+1)
	}
}

// priorityQueue keeps waiters in arrival order; selection scans for the
// first waiter with the highest effective priority.
type priorityQueue struct {
	s                *PriorityScheduler
	transferPriority bool
	owner            *Thread
	waiters          []*Thread
}

func (q *priorityQueue) WaitForAccess(t *Thread) {
	assertf(q.s.intr.Disabled(), "WaitForAccess(%s) with interrupts enabled", t)
	q.waiters = append(q.waiters, t)
}

func (q *priorityQueue) NextThread() *Thread {
	assertf(q.s.intr.Disabled(), "NextThread with interrupts enabled")

	q.setOwner(nil)
	if len(q.waiters) == 0 {
		return nil
	}
	i := q.pick()
	t := q.waiters[i]
	q.waiters = slices.Delete(q.waiters, i, i+1)
	q.setOwner(t)
	return t
}

func (q *priorityQueue) Acquire(t *Thread) {
	assertf(q.s.intr.Disabled(), "Acquire(%s) with interrupts enabled", t)
	assertf(len(q.waiters) == 0, "Acquire(%s) on a queue with %d waiters", t, len(q.waiters))
	q.setOwner(t)
}

func (q *priorityQueue) Pick() *Thread {
	if len(q.waiters) == 0 {
		return nil
	}
	return q.waiters[q.pick()]
}

func (q *priorityQueue) Len() int { return len(q.waiters) }

func (q *priorityQueue) pick() int {
	best, bestPrio := 0, -1
	for i, t := range q.waiters {
		if p := q.s.effective(q.s.state(t)); p > bestPrio {
			best, bestPrio = i, p
		}
	}
	return best
}

func (q *priorityQueue) setOwner(t *Thread) {
	if q.owner != nil {
		if ts, ok := q.s.states.Get(q.owner.id); ok {
			ts.disown(q)
		}
	}
	q.owner = t
	if t != nil {
		q.s.state(t).own(q)
	}
}
