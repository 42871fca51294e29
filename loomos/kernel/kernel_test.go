package kernel

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loom/hal"
)

// newTestKernel boots a kernel with the test goroutine as its main thread.
// Thread bodies must not call require: only the main thread may stop the
// test.
func newTestKernel(t *testing.T, sched string, opts ...Option) *Kernel {
	t.Helper()

	m := hal.NewMachine(hal.Config{KernelTick: 10, TimerTicks: 500, MaxTicks: 50_000_000}, nil)
	s, err := NewScheduler(sched, m.Interrupt)
	require.NoError(t, err)

	k := New(m, s, opts...)
	m.Interrupt.Enable()
	t.Cleanup(k.Terminate)
	return k
}

type recorder struct {
	events []string
}

func (r *recorder) add(format string, args ...any) {
	r.events = append(r.events, fmt.Sprintf(format, args...))
}

func TestKernelBootsMainAndIdle(t *testing.T) {
	k := newTestKernel(t, SchedulerRoundRobin)

	main := k.CurrentThread()
	assert.Equal(t, "main (#0)", main.String())
	assert.Equal(t, StatusRunning, main.Status())
	assert.Equal(t, "idle (#1)", k.IdleThread().String())
	assert.Equal(t, StatusReady, k.IdleThread().Status())
}

func TestYieldAloneReturns(t *testing.T) {
	k := newTestKernel(t, SchedulerRoundRobin)
	before := k.Machine().Interrupt.Time()

	k.Yield()

	assert.Equal(t, ThreadID(0), k.CurrentThread().ID())
	assert.Greater(t, k.Machine().Interrupt.Time(), before)
}

func TestForkRunsInFIFOOrder(t *testing.T) {
	k := newTestKernel(t, SchedulerRoundRobin)

	var rec recorder
	var threads []*Thread
	for i := 0; i < 3; i++ {
		name := fmt.Sprintf("worker-%d", i)
		threads = append(threads, k.Fork(name, func() {
			for j := 0; j < 3; j++ {
				rec.add("%s:%d", name, j)
				k.Yield()
			}
		}))
	}
	for _, th := range threads {
		th.Join()
	}

	want := []string{
		"worker-0:0", "worker-1:0", "worker-2:0",
		"worker-0:1", "worker-1:1", "worker-2:1",
		"worker-0:2", "worker-1:2", "worker-2:2",
	}
	require.Equal(t, want, rec.events)
	for _, th := range threads {
		assert.Equal(t, StatusFinished, th.Status(), th.String())
	}
}

func TestJoinFinishedThreadReturnsImmediately(t *testing.T) {
	k := newTestKernel(t, SchedulerRoundRobin)

	ran := false
	child := k.Fork("child", func() { ran = true })
	k.Yield()
	require.True(t, ran)
	require.Equal(t, StatusFinished, child.Status())

	before := k.Machine().ContextSwitches()
	child.Join()
	assert.Equal(t, before, k.Machine().ContextSwitches())
}

func TestJoinWakesEveryJoiner(t *testing.T) {
	k := newTestKernel(t, SchedulerRoundRobin)

	var rec recorder
	target := k.Fork("target", func() {
		for i := 0; i < 5; i++ {
			k.Yield()
		}
		rec.add("target done")
	})
	var joiners []*Thread
	for i := 0; i < 3; i++ {
		name := fmt.Sprintf("joiner-%d", i)
		joiners = append(joiners, k.Fork(name, func() {
			target.Join()
			rec.add("%s resumed", name)
		}))
	}
	for _, j := range joiners {
		j.Join()
	}

	require.Len(t, rec.events, 4)
	assert.Equal(t, "target done", rec.events[0])
}

func TestJoinSelfPanics(t *testing.T) {
	k := newTestKernel(t, SchedulerRoundRobin)
	main := k.CurrentThread()

	require.PanicsWithError(t, "assertion failed: thread main (#0) cannot join itself", main.Join)
}

func TestJoinTwicePanics(t *testing.T) {
	k := newTestKernel(t, SchedulerRoundRobin)

	child := k.Fork("child", func() {})
	child.Join()

	var err error
	func() {
		defer func() { err, _ = recover().(error) }()
		child.Join()
	}()
	var aerr *AssertionError
	require.ErrorAs(t, err, &aerr)
	assert.Contains(t, aerr.Msg, "already joined")
}

func TestForkTwicePanics(t *testing.T) {
	k := newTestKernel(t, SchedulerRoundRobin)

	child := k.Fork("child", func() {})
	assert.Panics(t, child.Fork)
	child.Join()
}

func TestFinishedThreadIsDestroyed(t *testing.T) {
	k := newTestKernel(t, SchedulerRoundRobin)

	child := k.Fork("child", func() {})
	tcb := child.tcb
	// the first thread dispatched after child finishes destroys its
	// context, so Join returns after the destroy
	child.Join()

	assert.Nil(t, child.tcb)
	assert.True(t, tcb.Destroyed())
	assert.Nil(t, k.toBeDestroyed)
}

type exclusionObserver struct {
	NopObserver
	threads  *[]*Thread
	overlaps int
	running  []string
}

func (o *exclusionObserver) ThreadRunning(t *Thread) {
	o.running = append(o.running, t.Name())
	for _, other := range *o.threads {
		if other.Status() == StatusRunning {
			o.overlaps++
		}
	}
}

func TestOneThreadRunsAtATime(t *testing.T) {
	var threads []*Thread
	obs := &exclusionObserver{threads: &threads}
	k := newTestKernel(t, SchedulerRoundRobin, WithObserver(obs))
	threads = append(threads, k.CurrentThread(), k.IdleThread())

	for i := 0; i < 4; i++ {
		threads = append(threads, k.NewThread(fmt.Sprintf("t%d", i), func() {
			for j := 0; j < 4; j++ {
				k.Yield()
			}
		}))
	}
	for _, th := range threads[2:] {
		th.Fork()
	}
	for _, th := range threads[2:] {
		th.Join()
	}

	assert.Zero(t, obs.overlaps)
	assert.Greater(t, len(obs.running), 16)
}

type readyQueueSpy struct {
	Scheduler
	queued []*Thread
	first  bool
}

func (s *readyQueueSpy) NewThreadQueue(transfer bool) ThreadQueue {
	q := s.Scheduler.NewThreadQueue(transfer)
	if !s.first {
		s.first = true
		return &spyQueue{ThreadQueue: q, s: s}
	}
	return q
}

type spyQueue struct {
	ThreadQueue
	s *readyQueueSpy
}

func (q *spyQueue) WaitForAccess(t *Thread) {
	q.s.queued = append(q.s.queued, t)
	q.ThreadQueue.WaitForAccess(t)
}

func TestIdleThreadNeverQueued(t *testing.T) {
	m := hal.NewMachine(hal.Config{MaxTicks: 1_000_000}, nil)
	spy := &readyQueueSpy{Scheduler: NewRoundRobinScheduler(m.Interrupt)}
	k := New(m, spy)
	m.Interrupt.Enable()
	t.Cleanup(k.Terminate)

	a := NewAlarm(k)
	child := k.Fork("sleeper", func() { a.WaitUntil(2000) })
	child.Join()

	require.NotEmpty(t, spy.queued)
	for _, th := range spy.queued {
		assert.NotSame(t, k.IdleThread(), th)
	}
}

func TestDebugOutput(t *testing.T) {
	var buf lineBuffer
	k := newTestKernel(t, SchedulerRoundRobin, WithDebug("t"), WithLogger(&buf))

	child := k.Fork("child", func() {})
	child.Join()

	assert.Contains(t, buf.lines, "Forking thread: child (#2) Runnable: "+fmt.Sprintf("%p", child.target))
	assert.Contains(t, buf.lines, "Joining to thread: child (#2)")
	assert.Contains(t, buf.lines, "Finishing thread: child (#2)")
}

type lineBuffer struct {
	lines []string
}

func (b *lineBuffer) WriteLineString(s string) { b.lines = append(b.lines, s) }
func (b *lineBuffer) WriteLineBytes(p []byte)  { b.lines = append(b.lines, string(p)) }

func TestNewScheduler(t *testing.T) {
	m := hal.NewMachine(hal.Config{}, nil)

	cases := []struct {
		name string
		want any
	}{
		{"", &RoundRobinScheduler{}},
		{"roundrobin", &RoundRobinScheduler{}},
		{"RR", &RoundRobinScheduler{}},
		{"priority", &PriorityScheduler{}},
	}
	for _, c := range cases {
		s, err := NewScheduler(c.name, m.Interrupt)
		require.NoError(t, err, c.name)
		assert.IsType(t, c.want, s, c.name)
	}

	_, err := NewScheduler("lottery", m.Interrupt)
	assert.EqualError(t, err, `unknown scheduler "lottery"`)
}

func TestAssertfPanicsWithAssertionError(t *testing.T) {
	assert.NotPanics(t, func() { assertf(true, "unused") })
	assert.PanicsWithError(t, "assertion failed: want 1, got 2", func() { assertf(false, "want %d, got %d", 1, 2) })
}
