package kernel

import (
	"fmt"
	"strings"

	"loom/hal"
)

// Priority bounds. Larger values are favored.
const (
	PriorityMinimum = 0
	PriorityDefault = 1
	PriorityMaximum = 7
)

// ThreadQueue is a set of threads waiting for one resource: the CPU, a lock,
// a condition or another thread's completion. All methods require
// interrupts to be disabled.
type ThreadQueue interface {
	// WaitForAccess adds t to the queue. t is about to sleep.
	WaitForAccess(t *Thread)
	// NextThread removes and returns the next thread to receive access,
	// which also becomes the queue's owner. It returns nil if the queue is
	// empty, clearing the owner.
	NextThread() *Thread
	// Acquire records that t received access without waiting. The queue
	// must be empty.
	Acquire(t *Thread)
	// Pick returns the thread NextThread would return, without removing it.
	Pick() *Thread
	// Len returns the number of waiting threads.
	Len() int
}

// Scheduler is a queueing policy. It builds the queues every primitive
// waits on and holds whatever per-thread state the policy needs. Methods
// taking a thread require interrupts to be disabled.
type Scheduler interface {
	// NewThreadQueue returns an empty queue. If transferPriority is set, and
	// the policy supports it, waiters donate their priority to the owner.
	NewThreadQueue(transferPriority bool) ThreadQueue

	Priority(t *Thread) int
	EffectivePriority(t *Thread) int
	SetPriority(t *Thread, priority int)

	// IncreasePriority raises t's priority one step. It returns false if t
	// is already at the maximum or the policy has no priorities.
	IncreasePriority(t *Thread) bool
	// DecreasePriority lowers t's priority one step. It returns false if t
	// is already at the minimum or the policy has no priorities.
	DecreasePriority(t *Thread) bool

	// Forget drops per-thread state once t is destroyed.
	Forget(t *Thread)
}

// Scheduler names accepted by NewScheduler.
const (
	SchedulerRoundRobin = "roundrobin"
	SchedulerPriority   = "priority"
)

// NewScheduler returns the policy registered under name. The empty name
// selects round robin.
func NewScheduler(name string, intr *hal.Interrupt) (Scheduler, error) {
	switch strings.ToLower(name) {
	case "", SchedulerRoundRobin, "rr", "fifo":
		return NewRoundRobinScheduler(intr), nil
	case SchedulerPriority:
		return NewPriorityScheduler(intr), nil
	default:
		return nil, fmt.Errorf("unknown scheduler %q", name)
	}
}

func validPriority(priority int) bool {
	return priority >= PriorityMinimum && priority <= PriorityMaximum
}
